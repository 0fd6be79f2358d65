package vector

import (
	"context"
	"fmt"

	"github.com/easyops/ragcontext-go/pkg/core/errors"
	"github.com/easyops/ragcontext-go/pkg/core/llm"
	"github.com/easyops/ragcontext-go/pkg/otel"
)

// ProviderVectorizer 通过模型提供商计算嵌入，失败时退回本地哈希
type ProviderVectorizer struct {
	provider llm.Provider
	fallback *HashingVectorizer
	logger   otel.Logger
}

// NewProviderVectorizer 创建提供商向量化器
func NewProviderVectorizer(provider llm.Provider, fallback *HashingVectorizer) *ProviderVectorizer {
	if fallback == nil {
		fallback = NewHashingVectorizer(0)
	}
	return &ProviderVectorizer{
		provider: provider,
		fallback: fallback,
		logger:   otel.GetLogger(),
	}
}

// Vectorize 计算文本向量
func (v *ProviderVectorizer) Vectorize(ctx context.Context, text string) (Embedding, error) {
	out, err := v.VectorizeBatch(ctx, []string{text})
	if err != nil {
		return Embedding{}, err
	}
	return out[0], nil
}

// VectorizeBatch 以一次 Embed 调用计算全部向量。
//
// 调用失败或结果数量不符时整批退回哈希向量，保证同批向量维度一致。
func (v *ProviderVectorizer) VectorizeBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	if err := checkBatch(texts); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return []Embedding{}, nil
	}
	if v.provider == nil {
		return v.fallback.VectorizeBatch(ctx, texts)
	}

	vecs, err := v.provider.Embed(ctx, texts)
	if err == nil {
		err = checkEmbeddings(vecs, len(texts))
	}
	if err != nil {
		if errors.IsCanceled(err) {
			return nil, err
		}
		v.logger.WithContext(ctx).Warn("embedding failed, using hashing vectorizer",
			"provider", v.provider.Name(), "texts", len(texts), "error", err)
		return v.fallback.VectorizeBatch(ctx, texts)
	}

	model := v.provider.Model()
	out := make([]Embedding, len(texts))
	for i, text := range texts {
		out[i] = Embedding{
			Values: vecs[i],
			Meta: Metadata{
				Model:      model,
				Dimensions: len(vecs[i]),
				Tokens:     len(tokenize(text)),
			},
		}
	}
	return out, nil
}

// Remote 配置了提供商时需要网络调用
func (v *ProviderVectorizer) Remote() bool { return v.provider != nil }

func checkEmbeddings(vecs [][]float32, want int) error {
	if len(vecs) != want {
		return fmt.Errorf("%w: expected %d embeddings, got %d", errors.ErrInvalidResponse, want, len(vecs))
	}
	dim := len(vecs[0])
	for i, vec := range vecs {
		if len(vec) == 0 || len(vec) != dim {
			return fmt.Errorf("%w: embedding %d has %d dimensions, want %d", errors.ErrInvalidResponse, i, len(vec), dim)
		}
	}
	return nil
}

// compile-time interface check
var (
	_ BatchVectorizer = (*ProviderVectorizer)(nil)
	_ Remote          = (*ProviderVectorizer)(nil)
)
