package llm

import "time"

// Option 客户端配置选项函数
type Option func(*Options)

// Options 客户端配置选项
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	// Timeout HTTP 层超时，调用截止时间由上层的超时执行器控制
	Timeout    time.Duration
	MaxRetries int
	// RetryDelay 重试间隔基数
	RetryDelay     time.Duration
	Temperature    float64
	MaxTokens      int
	EmbeddingModel string
}

// DefaultOptions 返回默认选项
func DefaultOptions() *Options {
	return &Options{
		Timeout:     5 * time.Minute,
		MaxRetries:  3,
		RetryDelay:  time.Second,
		Temperature: 0.7,
		MaxTokens:   1024,
	}
}

// WithAPIKey 设置 API 密钥
func WithAPIKey(key string) Option {
	return func(o *Options) {
		o.APIKey = key
	}
}

// WithBaseURL 设置自定义端点
func WithBaseURL(url string) Option {
	return func(o *Options) {
		o.BaseURL = url
	}
}

// WithModel 设置模型
func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// WithTimeout 设置 HTTP 超时时间
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithMaxRetries 设置最大重试次数
func WithMaxRetries(n int) Option {
	return func(o *Options) {
		o.MaxRetries = n
	}
}

// WithRetryDelay 设置重试间隔
func WithRetryDelay(d time.Duration) Option {
	return func(o *Options) {
		o.RetryDelay = d
	}
}

// WithMaxTokens 设置默认最大 token
func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

// WithEmbeddingModel 设置嵌入模型
func WithEmbeddingModel(model string) Option {
	return func(o *Options) {
		o.EmbeddingModel = model
	}
}

// RequestOption 请求选项函数
type RequestOption func(*Request)

// WithRequestModel 为单次请求指定模型
func WithRequestModel(model string) RequestOption {
	return func(r *Request) {
		r.Model = model
	}
}

// WithRequestTemperature 设置请求温度
func WithRequestTemperature(t float64) RequestOption {
	return func(r *Request) {
		r.Temperature = &t
	}
}

// WithRequestMaxTokens 设置请求最大 token
func WithRequestMaxTokens(n int) RequestOption {
	return func(r *Request) {
		r.MaxTokens = &n
	}
}
