package config

import "time"

// Provider 模型提供商类型
type Provider string

const (
	// ProviderOpenAI OpenAI 兼容接口
	ProviderOpenAI Provider = "openai"
	// ProviderOllama 本地 Ollama
	ProviderOllama Provider = "ollama"
)

// IsValid 检查提供商是否有效
func (p Provider) IsValid() bool {
	switch p {
	case ProviderOpenAI, ProviderOllama:
		return true
	default:
		return false
	}
}

// DefaultFallbackMessage 模型不可用时返回的默认内容
const DefaultFallbackMessage = "The model is currently unavailable. Please try again later."

// LLMConfig 模型调用配置
type LLMConfig struct {
	// Provider 提供商
	Provider Provider `koanf:"provider"`
	// Model 模型名称
	Model string `koanf:"model"`
	// APIKey API 密钥
	APIKey string `koanf:"api_key"`
	// BaseURL 自定义 API 端点
	BaseURL string `koanf:"base_url"`
	// Timeout 单次调用的截止时间，由超时执行器强制
	// 默认: 60s, 最大: 10m
	Timeout time.Duration `koanf:"timeout"`
	// MaxRetries 最大重试次数
	// 默认: 3, 最大: 10
	MaxRetries int `koanf:"max_retries"`
	// RetryDelay 重试间隔基数
	// 默认: 1s
	RetryDelay time.Duration `koanf:"retry_delay"`
	// EmbeddingModel 嵌入模型名称
	EmbeddingModel string `koanf:"embedding_model"`
	// FallbackMessage 超时时的静态回退内容
	FallbackMessage string `koanf:"fallback_message"`
	// Fallback 备用模型配置（超时回退时调用）
	Fallback *LLMConfig `koanf:"fallback"`
}

// Validate 验证配置
func (c *LLMConfig) Validate() error {
	if !c.Provider.IsValid() {
		return ErrInvalidProvider
	}
	if c.Model == "" {
		return ErrModelRequired
	}
	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}
	if c.Timeout > 10*time.Minute {
		c.Timeout = 10 * time.Minute
	}
	if c.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if c.MaxRetries > 10 {
		c.MaxRetries = 10
	}
	if c.Fallback != nil {
		return c.Fallback.Validate()
	}
	return nil
}

// WithDefaults 返回带默认值的配置
func (c LLMConfig) WithDefaults() LLMConfig {
	if c.Provider == "" {
		c.Provider = ProviderOllama
	}
	if c.Model == "" && c.Provider == ProviderOllama {
		c.Model = "llama3.2"
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = time.Second
	}
	if c.FallbackMessage == "" {
		c.FallbackMessage = DefaultFallbackMessage
	}
	if c.Fallback != nil {
		fb := c.Fallback.WithDefaults()
		c.Fallback = &fb
	}
	return c
}
