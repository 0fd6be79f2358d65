package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/easyops/ragcontext-go/pkg/vector"
)

type sourceSentence struct {
	text   string
	source string
	values []float32
}

// Annotate 为响应中的每个句子标注最相近的来源句子。
//
// 相似度不低于 minSimilarity 的句子后追加 [n] 标记，文末附脚注列表；
// 同一来源句子复用同一编号，重复出现的响应句子各自标注。
// 少于 minWords 个单词的句子不参与匹配。全部句子一次批量向量化，
// 向量化失败时返回未标注的响应。未设置响应时返回空串。
func (m *MultiDocumentContext) Annotate(ctx context.Context, v vector.Vectorizer, minSimilarity float64, minWords int) (string, error) {
	response, ok := m.Response()
	if !ok || response == "" {
		return "", nil
	}

	var (
		sources []sourceSentence
		texts   []string
	)
	for _, c := range m.Contexts() {
		label := c.ID
		if label == "" {
			label = c.Source
		}
		for _, s := range vector.SplitSentences(c.Text, minWords) {
			sources = append(sources, sourceSentence{text: s, source: label})
			texts = append(texts, s)
		}
	}
	if len(sources) == 0 {
		return response, nil
	}

	var answers []vector.Span
	for _, s := range vector.Sentences(response) {
		if len(strings.Fields(s.Text)) >= minWords {
			answers = append(answers, s)
			texts = append(texts, s.Text)
		}
	}
	if len(answers) == 0 {
		return response, nil
	}

	embs, err := vector.VectorizeAll(ctx, v, texts)
	if err != nil || len(embs) != len(texts) {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return response, nil
	}
	for i := range sources {
		sources[i].values = embs[i].Values
	}
	embs = embs[len(sources):]

	var (
		out   strings.Builder
		last  int
		index = make(map[string]int)
		notes []string
	)
	for i, sentence := range answers {
		best, bestScore := -1, minSimilarity
		for j, src := range sources {
			if score := vector.Cosine(embs[i].Values, src.values); score >= bestScore {
				best, bestScore = j, score
			}
		}
		if best < 0 {
			continue
		}

		src := sources[best]
		n, seen := index[src.text]
		if !seen {
			n = len(index) + 1
			index[src.text] = n
			notes = append(notes, fmt.Sprintf("* [%d]: %s (%s)", n, src.text, src.source))
		}
		out.WriteString(response[last:sentence.End])
		fmt.Fprintf(&out, " [%d]", n)
		last = sentence.End
	}
	out.WriteString(response[last:])

	if len(notes) == 0 {
		return response, nil
	}
	return out.String() + "\n\n" + strings.Join(notes, "\n"), nil
}
