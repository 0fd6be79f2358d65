// Package vector 将文本映射为定长向量，并提供相似度计算与分句工具。
package vector

import (
	"context"
	"fmt"
	"math"

	"github.com/easyops/ragcontext-go/pkg/core/errors"
)

// Metadata 向量元信息
type Metadata struct {
	// Model 产生向量的模型，本地哈希为 "hashing"
	Model string
	// Dimensions 向量维度
	Dimensions int
	// Tokens 参与计算的词元数
	Tokens int
}

// Embedding 文本向量
type Embedding struct {
	Values []float32
	Meta   Metadata
}

// Vectorizer 向量化器
type Vectorizer interface {
	Vectorize(ctx context.Context, text string) (Embedding, error)
}

// BatchVectorizer 可一次计算多段文本的向量化器，结果与输入一一对应且来自同一模型
type BatchVectorizer interface {
	Vectorizer
	VectorizeBatch(ctx context.Context, texts []string) ([]Embedding, error)
}

// Remote 由 Remote() 报告是否需要网络调用
type Remote interface {
	Remote() bool
}

// IsRemote 判断向量化器是否会发起网络请求
func IsRemote(v Vectorizer) bool {
	r, ok := v.(Remote)
	return ok && r.Remote()
}

// VectorizeAll 计算 texts 的全部向量。
//
// 支持批量的向量化器只调用一次；否则逐条计算，任一失败即返回错误。
func VectorizeAll(ctx context.Context, v Vectorizer, texts []string) ([]Embedding, error) {
	if b, ok := v.(BatchVectorizer); ok {
		return b.VectorizeBatch(ctx, texts)
	}
	out := make([]Embedding, len(texts))
	for i, text := range texts {
		emb, err := v.Vectorize(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		out[i] = emb
	}
	return out, nil
}

func checkBatch(texts []string) error {
	for i, text := range texts {
		if text == "" {
			return fmt.Errorf("text %d: %w", i, errors.ErrEmptyText)
		}
	}
	return nil
}

// Dot 点积，长度不一致时返回 0
func Dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Cosine 余弦相似度，长度不一致或任一向量范数为 0 时返回 0
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func normalize(v []float32) bool {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return false
	}
	n := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= n
	}
	return true
}
