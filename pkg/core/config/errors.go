package config

import "errors"

// 配置验证相关错误
var (
	// ErrModelRequired 模型名称必填
	ErrModelRequired = errors.New("model name is required")
	// ErrInvalidProvider 提供商无效
	ErrInvalidProvider = errors.New("invalid llm provider")
	// ErrInvalidTimeout 超时时间无效
	ErrInvalidTimeout = errors.New("invalid timeout value")
	// ErrInvalidMaxRetries 重试次数无效
	ErrInvalidMaxRetries = errors.New("invalid max retries value")
	// ErrInvalidConcurrency 并发数无效
	ErrInvalidConcurrency = errors.New("max concurrent must be positive")
	// ErrInvalidRate 速率无效
	ErrInvalidRate = errors.New("rate per second must be positive")
	// ErrInvalidWindow 上下文窗口无效
	ErrInvalidWindow = errors.New("context window must be positive")
	// ErrInvalidBufferFraction 缓冲比例无效
	ErrInvalidBufferFraction = errors.New("buffer fraction must be in (0, 1]")
	// ErrInvalidCacheBackend 缓存后端无效
	ErrInvalidCacheBackend = errors.New("invalid cache backend")
	// ErrSQLitePathRequired SQLite 路径必填
	ErrSQLitePathRequired = errors.New("sqlite path is required for sqlite cache")
)
