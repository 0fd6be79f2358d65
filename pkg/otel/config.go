package otel

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Config 可观测性配置，对应配置文件中的 observability 段
type Config struct {
	// Enabled 总开关，关闭时追踪与指标使用空实现，日志仍按 Logging 输出
	Enabled bool `koanf:"enabled"`

	ServiceName    string `koanf:"service_name"`
	ServiceVersion string `koanf:"service_version"`
	// Environment 部署环境（dev, staging, prod）
	Environment string `koanf:"environment"`
	// ResourceAttributes 附加到所有 Span 与指标上的资源属性，如 team、region
	ResourceAttributes map[string]string `koanf:"resource_attributes"`

	Tracing TracingConfig `koanf:"tracing"`
	Metrics MetricsConfig `koanf:"metrics"`
	Logging LoggingConfig `koanf:"logging"`
}

// ExportConfig 追踪与指标共用的导出设置
type ExportConfig struct {
	// Exporter 导出器类型 (otlp-grpc, otlp-http, stdout, none)
	Exporter ExporterType `koanf:"exporter"`
	// Endpoint OTLP 端点，stdout/none 忽略
	Endpoint string `koanf:"endpoint"`
	Insecure bool   `koanf:"insecure"`
	// Headers 随导出请求发送的头，如 collector 的认证令牌
	Headers map[string]string `koanf:"headers"`
	// Timeout 单次导出超时
	Timeout time.Duration `koanf:"timeout"`
}

// exporterConfig 转为导出器工厂的参数
func (e ExportConfig) exporterConfig() ExporterConfig {
	return ExporterConfig{
		Type:     e.Exporter,
		Endpoint: e.Endpoint,
		Insecure: e.Insecure,
		Headers:  e.Headers,
		Timeout:  e.Timeout,
	}
}

func (e ExportConfig) validate() error {
	switch e.Exporter {
	case ExporterOTLPGRPC, ExporterOTLPHTTP, ExporterStdout, ExporterNone:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedExporter, e.Exporter)
	}
	if e.Timeout < 0 {
		return fmt.Errorf("%w: negative export timeout", ErrInvalidConfig)
	}
	return nil
}

func (e ExportConfig) withDefaults(d ExportConfig) ExportConfig {
	if e.Exporter == "" {
		e.Exporter = d.Exporter
	}
	if e.Endpoint == "" {
		e.Endpoint = d.Endpoint
	}
	if e.Timeout == 0 {
		e.Timeout = d.Timeout
	}
	return e
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled      bool `koanf:"enabled"`
	ExportConfig `koanf:",squash"`
	// SampleRate 根 Span 采样率 (0.0-1.0)，子 Span 跟随父 Span
	SampleRate float64 `koanf:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled      bool `koanf:"enabled"`
	ExportConfig `koanf:",squash"`
	// Interval 周期导出间隔
	Interval time.Duration `koanf:"interval"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	// Level 日志级别 (debug, info, warn, error)
	Level string `koanf:"level"`
	// Format 日志格式 (text, json)
	Format string `koanf:"format"`
	// AddSource 是否输出调用位置
	AddSource bool `koanf:"add_source"`
}

func (c LoggingConfig) validate() error {
	switch strings.ToLower(c.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.Level)
	}
	switch strings.ToLower(c.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log format %q", ErrInvalidConfig, c.Format)
	}
	return nil
}

// DefaultConfig 默认配置：关闭导出，本地 collector 端点，info 级文本日志
func DefaultConfig() Config {
	local := ExportConfig{
		Exporter: ExporterOTLPGRPC,
		Endpoint: "localhost:4317",
		Insecure: true,
		Timeout:  10 * time.Second,
	}
	return Config{
		ServiceName:    "ragcontext",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		Tracing:        TracingConfig{ExportConfig: local, SampleRate: 1.0},
		Metrics:        MetricsConfig{ExportConfig: local, Interval: 60 * time.Second},
		Logging:        LoggingConfig{Level: "info", Format: "text"},
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return ErrInvalidSampleRate
	}
	if c.Metrics.Interval < 0 {
		return fmt.Errorf("%w: negative metrics interval", ErrInvalidConfig)
	}
	if c.Tracing.Enabled {
		if err := c.Tracing.validate(); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}
	if c.Metrics.Enabled {
		if err := c.Metrics.validate(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}
	return c.Logging.validate()
}

// WithDefaults 返回补全默认值的配置
func (c Config) WithDefaults() Config {
	d := DefaultConfig()

	if c.ServiceName == "" {
		c.ServiceName = d.ServiceName
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = d.ServiceVersion
	}
	if c.Environment == "" {
		c.Environment = d.Environment
	}
	c.Tracing.ExportConfig = c.Tracing.withDefaults(d.Tracing.ExportConfig)
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = d.Tracing.SampleRate
	}
	c.Metrics.ExportConfig = c.Metrics.withDefaults(d.Metrics.ExportConfig)
	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = d.Metrics.Interval
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
	return c
}

// resourceAttributes 按键排序的附加资源属性
func (c Config) resourceAttributes() []attribute.KeyValue {
	keys := make([]string, 0, len(c.ResourceAttributes))
	for k := range c.ResourceAttributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, c.ResourceAttributes[k]))
	}
	return attrs
}
