package vector

import (
	"strings"
	"unicode"
)

// Span 文本中的一个片段，Start/End 为原文字节偏移
type Span struct {
	Text  string
	Start int
	End   int
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '\n', '\r', '.', ';', '!', '?', '。', '；', '！', '？':
		return true
	}
	return false
}

// Sentences 按换行与句末标点切分，句末标点保留在句内，空白句被丢弃
func Sentences(text string) []Span {
	var spans []Span
	start := 0
	emit := func(end int) {
		raw := text[start:end]
		trimmed := strings.TrimFunc(raw, unicode.IsSpace)
		if trimmed != "" {
			lead := strings.Index(raw, trimmed)
			spans = append(spans, Span{
				Text:  trimmed,
				Start: start + lead,
				End:   start + lead + len(trimmed),
			})
		}
		start = end
	}

	for i, r := range text {
		if isSentenceEnd(r) {
			emit(i + len(string(r)))
		}
	}
	if start < len(text) {
		emit(len(text))
	}
	return spans
}

// SplitSentences 返回至少含 minWords 个单词的句子文本
func SplitSentences(text string, minWords int) []string {
	var out []string
	for _, s := range Sentences(text) {
		if len(strings.Fields(s.Text)) < minWords {
			continue
		}
		out = append(out, s.Text)
	}
	return out
}
