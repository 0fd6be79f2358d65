package trim

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/easyops/ragcontext-go/pkg/keyword"
	"github.com/easyops/ragcontext-go/pkg/otel"
	"github.com/easyops/ragcontext-go/pkg/rag"
	"github.com/easyops/ragcontext-go/pkg/vector"
)

// 默认信号权重
const (
	DefaultKeywordWeight = 0.5
	DefaultVectorWeight  = 0.5
)

// queryHints 查询未提供提示词时，从查询中抽取的关键短语数量
const queryHints = 5

// Ranker 按关键词与语义相似度为句子片段打分
type Ranker struct {
	Extractor     keyword.Extractor
	Vectorizer    vector.Vectorizer
	KeywordWeight float64
	VectorWeight  float64
	// Admit 远程向量化的准入控制（通常为 rate.Gate.Do），为空时直接调用
	Admit func(ctx context.Context, fn func(ctx context.Context) error) error
}

// WithAdmit 返回使用 admit 做准入控制的副本
func (r *Ranker) WithAdmit(admit func(ctx context.Context, fn func(ctx context.Context) error) error) *Ranker {
	cp := *r
	cp.Admit = admit
	return &cp
}

// NewRanker 创建使用 RAKE 与哈希向量的默认排序器
func NewRanker() *Ranker {
	return &Ranker{
		Extractor:     keyword.NewRAKE(),
		Vectorizer:    vector.NewHashingVectorizer(0),
		KeywordWeight: DefaultKeywordWeight,
		VectorWeight:  DefaultVectorWeight,
	}
}

// Rank 将 text 切分为句子片段并按得分降序返回，同分保持文档顺序。
//
// hints 为空时从 query 抽取关键短语。查询与句子的向量一次批量计算，
// 失败时退化为仅关键词打分。
func (r *Ranker) Rank(ctx context.Context, text string, hints []string, query string) []rag.RankedSpan {
	sentences := vector.Sentences(text)
	if len(sentences) == 0 {
		return nil
	}

	if len(hints) == 0 && r.Extractor != nil && query != "" {
		hints = keyword.Phrases(r.Extractor.Extract(query), queryHints)
	}
	lowered := make([]string, 0, len(hints))
	for _, h := range hints {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			lowered = append(lowered, h)
		}
	}

	vecs := r.embed(ctx, query, sentences)

	spans := make([]rag.RankedSpan, len(sentences))
	for i, s := range sentences {
		var score float64
		if len(lowered) > 0 {
			score += r.KeywordWeight * hintOverlap(strings.ToLower(s.Text), lowered)
		}
		if vecs != nil {
			score += r.VectorWeight * max(0, vector.Cosine(vecs[0], vecs[i+1]))
		}
		spans[i] = rag.RankedSpan{Text: s.Text, Start: s.Start, End: s.End, Score: score}
	}

	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].Score > spans[j].Score
	})
	for i := range spans {
		spans[i].Rank = i + 1
	}
	return spans
}

// embed 一次性计算查询与全部句子的向量，下标 0 为查询。失败时返回 nil。
func (r *Ranker) embed(ctx context.Context, query string, sentences []vector.Span) [][]float32 {
	if r.Vectorizer == nil || strings.TrimSpace(query) == "" {
		return nil
	}
	texts := make([]string, 0, len(sentences)+1)
	texts = append(texts, query)
	for _, s := range sentences {
		texts = append(texts, s.Text)
	}

	var embs []vector.Embedding
	run := func(ctx context.Context) error {
		var err error
		embs, err = vector.VectorizeAll(ctx, r.Vectorizer, texts)
		return err
	}
	var err error
	if r.Admit != nil && vector.IsRemote(r.Vectorizer) {
		err = r.Admit(ctx, run)
	} else {
		err = run(ctx)
	}
	if err == nil && len(embs) != len(texts) {
		err = fmt.Errorf("got %d embeddings for %d texts", len(embs), len(texts))
	}
	if err != nil {
		otel.GetLogger().WithContext(ctx).Debug("span vectorization failed", "error", err)
		return nil
	}

	vecs := make([][]float32, len(embs))
	for i, e := range embs {
		vecs[i] = e.Values
	}
	return vecs
}

func hintOverlap(text string, hints []string) float64 {
	n := 0
	for _, h := range hints {
		if strings.Contains(text, h) {
			n++
		}
	}
	return float64(n) / float64(len(hints))
}

// FitDocument 将 text 压缩到 limit 以内。
//
// 放得下时原样返回；否则按排序取片段前缀（经 Trim），再恢复文档顺序以空格连接。
// 首个片段本身超过 limit 时在 rune 边界处硬截断。第二个返回值是文中出现的提示词。
func FitDocument(ctx context.Context, ranker *Ranker, text string, hints []string, query string, limit int) (string, []string) {
	matched := matchedHints(text, hints)
	if limit <= 0 {
		return "", matched
	}
	if len(text) <= limit {
		return text, matched
	}
	if ranker == nil {
		ranker = NewRanker()
	}

	spans := ranker.Rank(ctx, text, hints, query)
	if len(spans) == 0 {
		return "", matched
	}

	// 每个片段计入一个分隔空格，最后一个不需要
	items := make([]string, len(spans))
	for i, s := range spans {
		items[i] = s.Text + " "
	}
	kept := spans[:len(Trim(items, limit+1))]
	if len(kept) == 0 {
		return Cut(spans[0].Text, limit), matched
	}

	ordered := make([]rag.RankedSpan, len(kept))
	copy(ordered, kept)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Start < ordered[j].Start
	})

	parts := make([]string, len(ordered))
	for i, s := range ordered {
		parts[i] = s.Text
	}
	return strings.Join(parts, " "), matched
}

func matchedHints(text string, hints []string) []string {
	lowered := strings.ToLower(text)
	var out []string
	for _, h := range hints {
		if h != "" && strings.Contains(lowered, strings.ToLower(h)) {
			out = append(out, h)
		}
	}
	return out
}
