package config

import "time"

// RateConfig 外部调用的并发与速率上限
type RateConfig struct {
	// MaxConcurrent 同时进行的调用数上限
	// 默认: 5
	MaxConcurrent int `koanf:"max_concurrent"`
	// PerSecond 每秒允许开始的调用数
	// 默认: 0.25（两次放行至少间隔 4s）
	PerSecond float64 `koanf:"per_second"`
}

// Validate 验证配置
func (c *RateConfig) Validate() error {
	if c.MaxConcurrent < 1 {
		return ErrInvalidConcurrency
	}
	if c.PerSecond <= 0 {
		return ErrInvalidRate
	}
	return nil
}

// WithDefaults 返回带默认值的配置
func (c RateConfig) WithDefaults() RateConfig {
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 5
	}
	if c.PerSecond == 0 {
		c.PerSecond = 0.25
	}
	return c
}

// ContextConfig 上下文预算配置
type ContextConfig struct {
	// WindowTokens 模型上下文窗口大小
	// 默认: 4096
	WindowTokens int `koanf:"window_tokens"`
	// BufferFraction 用于文档内容的窗口比例
	// 默认: 0.75
	BufferFraction float64 `koanf:"buffer_fraction"`
	// CharsPerToken 每 token 估算字符数
	// 默认: 4
	CharsPerToken int `koanf:"chars_per_token"`
}

// Validate 验证配置
func (c *ContextConfig) Validate() error {
	if c.WindowTokens < 1 || c.CharsPerToken < 1 {
		return ErrInvalidWindow
	}
	if c.BufferFraction <= 0 || c.BufferFraction > 1 {
		return ErrInvalidBufferFraction
	}
	return nil
}

// WithDefaults 返回带默认值的配置
func (c ContextConfig) WithDefaults() ContextConfig {
	if c.WindowTokens == 0 {
		c.WindowTokens = 4096
	}
	if c.BufferFraction == 0 {
		c.BufferFraction = 0.75
	}
	if c.CharsPerToken == 0 {
		c.CharsPerToken = 4
	}
	return c
}

// CacheBackend 缓存后端类型
type CacheBackend string

const (
	// CacheMemory 进程内缓存
	CacheMemory CacheBackend = "memory"
	// CacheSQLite SQLite 持久化缓存
	CacheSQLite CacheBackend = "sqlite"
)

// CacheConfig 结果缓存配置
type CacheConfig struct {
	// Backend 后端类型
	// 默认: memory
	Backend CacheBackend `koanf:"backend"`
	// TTL 条目存活时间
	// 默认: 5m
	TTL time.Duration `koanf:"ttl"`
	// SQLitePath SQLite 数据库文件路径
	SQLitePath string `koanf:"sqlite_path"`
	// SweepInterval 后台清理间隔，0 表示只做惰性过期
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// Validate 验证配置
func (c *CacheConfig) Validate() error {
	switch c.Backend {
	case CacheMemory:
	case CacheSQLite:
		if c.SQLitePath == "" {
			return ErrSQLitePathRequired
		}
	default:
		return ErrInvalidCacheBackend
	}
	if c.TTL <= 0 || c.SweepInterval < 0 {
		return ErrInvalidTimeout
	}
	return nil
}

// WithDefaults 返回带默认值的配置
func (c CacheConfig) WithDefaults() CacheConfig {
	if c.Backend == "" {
		c.Backend = CacheMemory
	}
	if c.TTL == 0 {
		c.TTL = 5 * time.Minute
	}
	return c
}
