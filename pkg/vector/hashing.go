package vector

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/easyops/ragcontext-go/pkg/core/errors"
)

// DefaultDimensions 哈希向量默认维度
const DefaultDimensions = 384

// HashingModel 哈希向量化器的模型名
const HashingModel = "hashing"

// HashingVectorizer 基于特征哈希的本地向量化器
//
// 单词与相邻词对经 xxhash 映射到带符号的桶，权重为 1+ln(tf)，结果 L2 归一化。
// 无需训练，可并发使用。
type HashingVectorizer struct {
	dim int
}

// NewHashingVectorizer 创建哈希向量化器，dim <= 0 时使用默认维度
func NewHashingVectorizer(dim int) *HashingVectorizer {
	if dim <= 0 {
		dim = DefaultDimensions
	}
	return &HashingVectorizer{dim: dim}
}

// Dimensions 向量维度
func (h *HashingVectorizer) Dimensions() int { return h.dim }

// Vectorize 计算文本向量；非空文本（包括纯空白）总是得到非零向量
func (h *HashingVectorizer) Vectorize(_ context.Context, text string) (Embedding, error) {
	if text == "" {
		return Embedding{}, errors.ErrEmptyText
	}

	words := tokenize(text)
	features := make([]string, 0, 2*len(words))
	features = append(features, words...)
	for i := 0; i+1 < len(words); i++ {
		features = append(features, words[i]+" "+words[i+1])
	}

	values := h.hash(features)
	if !normalize(values) {
		values = h.hash(trigrams(strings.ToLower(text)))
		if !normalize(values) {
			values = make([]float32, h.dim)
			values[xxhash.Sum64String(text)%uint64(h.dim)] = 1
		}
	}

	return Embedding{
		Values: values,
		Meta:   Metadata{Model: HashingModel, Dimensions: h.dim, Tokens: len(words)},
	}, nil
}

// VectorizeBatch 逐条计算向量
func (h *HashingVectorizer) VectorizeBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	if err := checkBatch(texts); err != nil {
		return nil, err
	}
	out := make([]Embedding, len(texts))
	for i, text := range texts {
		out[i], _ = h.Vectorize(ctx, text)
	}
	return out, nil
}

func (h *HashingVectorizer) hash(features []string) []float32 {
	tf := make(map[string]int, len(features))
	for _, f := range features {
		tf[f]++
	}

	values := make([]float32, h.dim)
	for f, n := range tf {
		sum := xxhash.Sum64String(f)
		w := float32(1 + math.Log(float64(n)))
		if sum>>63 == 1 {
			w = -w
		}
		values[sum%uint64(h.dim)] += w
	}
	return values
}

// tokenize 小写分词，汉字单独成词
func tokenize(text string) []string {
	var (
		tokens []string
		word   strings.Builder
	)
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			word.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func trigrams(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) < 3 {
		return []string{string(runes)}
	}
	out := make([]string, 0, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		out = append(out, string(runes[i:i+3]))
	}
	return out
}

// compile-time interface check
var _ BatchVectorizer = (*HashingVectorizer)(nil)
