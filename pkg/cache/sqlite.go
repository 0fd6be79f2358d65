package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/easyops/ragcontext-go/pkg/compact"
)

// SQLite 基于 SQLite 的持久化缓存
//
// 值以压缩形式存储；过期语义与 Memory 相同。
type SQLite struct {
	db    *sql.DB
	opts  options
	mu    sync.Mutex
	stats Stats

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewSQLite 打开（必要时创建）SQLite 缓存
func NewSQLite(path string, opts ...Option) (*SQLite, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLite{db: db, opts: o, stop: make(chan struct{})}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	if o.sweep > 0 {
		s.wg.Add(1)
		go s.sweepLoop(o.sweep)
	}
	return s, nil
}

func (s *SQLite) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS cache_entries (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		stored_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cache_entries_stored_at ON cache_entries(stored_at);
	`)
	return err
}

// Get 获取值，过期条目在此处删除
func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var packed []byte
	var storedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value, stored_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&packed, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		s.stats.Misses++
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	if expired(time.Unix(0, storedAt), s.opts.now(), s.opts.ttl) {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
			return "", false, err
		}
		s.stats.Evictions++
		s.stats.Misses++
		return "", false, nil
	}

	value, err := compact.Decompress(packed)
	if err != nil {
		return "", false, fmt.Errorf("cache entry %q: %w", key, err)
	}
	s.stats.Hits++
	return value, true, nil
}

// Put 写入或覆盖值
func (s *SQLite) Put(ctx context.Context, key, value string) error {
	packed, err := compact.Compress(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
	INSERT INTO cache_entries (key, value, stored_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		stored_at = excluded.stored_at
	`, key, packed, s.opts.now().UnixNano())
	return err
}

// Sweep 删除所有过期条目，返回删除数量
func (s *SQLite) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.opts.now().Add(-s.opts.ttl).UnixNano()
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE stored_at <= ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	s.stats.Evictions += n
	return int(n), nil
}

// Stats 返回统计快照
func (s *SQLite) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *SQLite) sweepLoop(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.Sweep(context.Background())
		case <-s.stop:
			return
		}
	}
}

// Close 停止后台清理并关闭数据库
func (s *SQLite) Close() error {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
	return s.db.Close()
}

// compile-time interface check
var _ Cache = (*SQLite)(nil)
