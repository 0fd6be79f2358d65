// Package cache 提供带 TTL 的模型结果缓存
//
// 键由调用方构造（通常是提示内容与设置的哈希），缓存本身不解析键。
// 条目在写入时刻 T 起的 [T, T+ttl) 内可见，之后视为不存在并被惰性删除。
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/easyops/ragcontext-go/pkg/core/config"
)

// DefaultTTL 默认条目存活时间
const DefaultTTL = 5 * time.Minute

// Cache 结果缓存接口
type Cache interface {
	// Get 返回未过期的值；未命中不是错误
	Get(ctx context.Context, key string) (string, bool, error)
	// Put 写入或覆盖值，并重置存活时间
	Put(ctx context.Context, key, value string) error
	// Close 释放资源
	Close() error
}

// Stats 缓存统计
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

// Option 缓存选项
type Option func(*options)

type options struct {
	ttl   time.Duration
	sweep time.Duration
	now   func() time.Time
}

func defaultOptions() options {
	return options{ttl: DefaultTTL, now: time.Now}
}

// WithTTL 设置条目存活时间
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithSweepInterval 启用后台定期清理过期条目
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) {
		o.sweep = d
	}
}

// WithClock 替换时钟，主要用于测试
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// New 根据配置创建缓存
func New(cfg config.CacheConfig) (Cache, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []Option{WithTTL(cfg.TTL), WithSweepInterval(cfg.SweepInterval)}
	switch cfg.Backend {
	case config.CacheMemory:
		return NewMemory(opts...), nil
	case config.CacheSQLite:
		return NewSQLite(cfg.SQLitePath, opts...)
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrInvalidCacheBackend, cfg.Backend)
	}
}

// expired 判断写入于 storedAt 的条目在 now 时是否已过期
func expired(storedAt, now time.Time, ttl time.Duration) bool {
	return !now.Before(storedAt.Add(ttl))
}
