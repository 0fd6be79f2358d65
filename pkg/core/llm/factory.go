package llm

import (
	"fmt"

	"github.com/easyops/ragcontext-go/pkg/core/config"
)

// New 根据配置选择并创建后端，调用方只持有 Provider 接口
func New(cfg config.LLMConfig) (Provider, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid llm config: %w", err)
	}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		opts := []Option{
			WithModel(cfg.Model),
			WithMaxRetries(cfg.MaxRetries),
			WithRetryDelay(cfg.RetryDelay),
			WithAPIKey(cfg.APIKey),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		if cfg.EmbeddingModel != "" {
			opts = append(opts, WithEmbeddingModel(cfg.EmbeddingModel))
		}
		return NewOpenAI(opts...)
	case config.ProviderOllama:
		opts := []OllamaOption{
			WithOllamaModel(cfg.Model),
			WithOllamaRetry(cfg.MaxRetries, cfg.RetryDelay),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, WithOllamaBaseURL(cfg.BaseURL))
		}
		if cfg.EmbeddingModel != "" {
			opts = append(opts, WithOllamaEmbeddingModel(cfg.EmbeddingModel))
		}
		return NewOllamaClient(opts...), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// FromConfig 创建提供商；配置了 Fallback 时返回按顺序故障转移的 FallbackProvider
func FromConfig(cfg config.LLMConfig) (Provider, error) {
	primary, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Fallback == nil {
		return primary, nil
	}

	fallback, err := FromConfig(*cfg.Fallback)
	if err != nil {
		_ = primary.Close()
		return nil, fmt.Errorf("failed to create fallback provider: %w", err)
	}
	return NewFallbackProvider(primary, []Provider{fallback}), nil
}
