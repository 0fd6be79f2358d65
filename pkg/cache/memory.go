package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value    string
	storedAt time.Time
}

// Memory 进程内 TTL 缓存，所有访问由同一把互斥锁串行化
type Memory struct {
	opts    options
	mu      sync.Mutex
	entries map[string]entry
	stats   Stats

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewMemory 创建内存缓存
func NewMemory(opts ...Option) *Memory {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	m := &Memory{
		opts:    o,
		entries: make(map[string]entry),
		stop:    make(chan struct{}),
	}
	if o.sweep > 0 {
		m.wg.Add(1)
		go m.sweepLoop(o.sweep)
	}
	return m
}

// Get 获取值，过期条目在此处删除
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		m.stats.Misses++
		return "", false, nil
	}
	if expired(e.storedAt, m.opts.now(), m.opts.ttl) {
		delete(m.entries, key)
		m.stats.Evictions++
		m.stats.Misses++
		return "", false, nil
	}
	m.stats.Hits++
	return e.value, true, nil
}

// Put 写入值
func (m *Memory) Put(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{value: value, storedAt: m.opts.now()}
	return nil
}

// Len 返回当前条目数（含尚未清理的过期条目）
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Stats 返回统计快照
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Sweep 删除所有过期条目，返回删除数量
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.opts.now()
	n := 0
	for k, e := range m.entries {
		if expired(e.storedAt, now, m.opts.ttl) {
			delete(m.entries, k)
			n++
		}
	}
	m.stats.Evictions += int64(n)
	return n
}

func (m *Memory) sweepLoop(interval time.Duration) {
	defer m.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-m.stop:
			return
		}
	}
}

// Close 停止后台清理
func (m *Memory) Close() error {
	m.once.Do(func() { close(m.stop) })
	m.wg.Wait()
	return nil
}

// compile-time interface check
var _ Cache = (*Memory)(nil)
