// Package config 提供配置加载和管理功能
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/easyops/ragcontext-go/pkg/otel"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "RAGCTX_"

// Config 全局配置结构
type Config struct {
	// Rate 外部调用限流
	Rate RateConfig `koanf:"rate"`
	// Context 上下文预算
	Context ContextConfig `koanf:"context"`
	// Cache 结果缓存
	Cache CacheConfig `koanf:"cache"`
	// LLM 模型调用
	LLM LLMConfig `koanf:"llm"`
	// Observability 可观测性配置
	Observability otel.Config `koanf:"observability"`
}

// Validate 验证全部配置
func (c *Config) Validate() error {
	if err := c.Rate.Validate(); err != nil {
		return fmt.Errorf("rate: %w", err)
	}
	if err := c.Context.Validate(); err != nil {
		return fmt.Errorf("context: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	return nil
}

// Loader 配置加载器
type Loader struct {
	k *koanf.Koanf
}

// NewLoader 创建配置加载器
func NewLoader() *Loader {
	return &Loader{
		k: koanf.New("."),
	}
}

// LoadFile 从 YAML 文件加载配置
func (l *Loader) LoadFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // 文件不存在不报错，使用默认值
	}

	switch {
	case strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml"):
		if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return fmt.Errorf("load config file %s: %w", path, err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported config file type: %s", path)
	}
}

// LoadEnv 从环境变量加载配置
//
// 第一个下划线分隔配置段，双下划线表示更深的嵌套:
//
//	RAGCTX_LLM_API_KEY          -> llm.api_key
//	RAGCTX_LLM_FALLBACK__MODEL  -> llm.fallback.model
func (l *Loader) LoadEnv(prefix string) error {
	return l.k.Load(env.Provider(prefix, ".", func(s string) string {
		return envKey(prefix, s)
	}), nil)
}

func envKey(prefix, s string) string {
	s = strings.TrimPrefix(s, prefix)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "__", ".")
	return strings.Replace(s, "_", ".", 1)
}

// Unmarshal 解析配置到结构体
func (l *Loader) Unmarshal(cfg *Config) error {
	return l.k.Unmarshal("", cfg)
}

// GetString 获取字符串配置值
func (l *Loader) GetString(key string) string {
	return l.k.String(key)
}

// GetDuration 获取时间间隔配置值
func (l *Loader) GetDuration(key string) time.Duration {
	return l.k.Duration(key)
}

// Load 加载完整配置（文件 + 环境变量）
func Load(configPath string) (*Config, error) {
	loader := NewLoader()

	if configPath != "" {
		if err := loader.LoadFile(configPath); err != nil {
			return nil, err
		}
	}

	// 环境变量优先级更高
	if err := loader.LoadEnv(EnvPrefix); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := loader.Unmarshal(cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default 返回全默认值配置
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults 应用默认配置值
func applyDefaults(cfg *Config) {
	cfg.Rate = cfg.Rate.WithDefaults()
	cfg.Context = cfg.Context.WithDefaults()
	cfg.Cache = cfg.Cache.WithDefaults()
	cfg.LLM = cfg.LLM.WithDefaults()
	cfg.Observability = cfg.Observability.WithDefaults()
}
