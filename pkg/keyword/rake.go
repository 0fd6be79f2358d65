// Package keyword 从自由文本中抽取关键短语。
package keyword

import (
	_ "embed"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

//go:embed stopwords.txt
var defaultStopWords string

// phraseDelims 短语分隔符，换行同样结束一个短语
const phraseDelims = "-,.?():;\"!/"

// Keyword 关键短语及其得分
type Keyword struct {
	Phrase string
	Score  float64
}

// Extractor 关键词抽取器
type Extractor interface {
	Extract(text string) []Keyword
}

// RAKE Rapid Automatic Keyword Extraction
//
// 候选短语由分隔符与停用词切分；单词得分为 degree/frequency，
// 短语得分为其单词得分之和。结果按得分降序，同分按首次出现顺序。
type RAKE struct {
	stopWords    map[string]struct{}
	minWordChars int
	maxWords     int
}

// Option RAKE 选项
type Option func(*RAKE)

// WithStopWords 替换默认停用词表
func WithStopWords(words []string) Option {
	return func(r *RAKE) {
		r.stopWords = make(map[string]struct{}, len(words))
		for _, w := range words {
			r.stopWords[strings.ToLower(w)] = struct{}{}
		}
	}
}

// WithMinWordChars 短于该长度的单词视为分隔
func WithMinWordChars(n int) Option {
	return func(r *RAKE) {
		if n > 0 {
			r.minWordChars = n
		}
	}
}

// WithMaxWords 丢弃单词数超过 n 的短语，0 表示不限制
func WithMaxWords(n int) Option {
	return func(r *RAKE) {
		if n >= 0 {
			r.maxWords = n
		}
	}
}

// NewRAKE 创建抽取器
func NewRAKE(opts ...Option) *RAKE {
	r := &RAKE{minWordChars: 1}
	WithStopWords(strings.Fields(defaultStopWords))(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Extract 抽取关键短语；空文本或仅含停用词时返回空切片
func (r *RAKE) Extract(text string) (out []Keyword) {
	defer func() {
		if rec := recover(); rec != nil {
			out = []Keyword{}
		}
	}()

	phrases := r.candidates(text)
	if len(phrases) == 0 {
		return []Keyword{}
	}

	freq := make(map[string]float64)
	degree := make(map[string]float64)
	for _, p := range phrases {
		for _, w := range p {
			freq[w]++
			degree[w] += float64(len(p))
		}
	}

	seen := make(map[string]struct{}, len(phrases))
	out = make([]Keyword, 0, len(phrases))
	for _, p := range phrases {
		phrase := strings.Join(p, " ")
		if _, ok := seen[phrase]; ok {
			continue
		}
		seen[phrase] = struct{}{}

		var score float64
		for _, w := range p {
			score += degree[w] / freq[w]
		}
		out = append(out, Keyword{Phrase: phrase, Score: score})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// candidates 切分候选短语，每个短语是小写单词序列
func (r *RAKE) candidates(text string) [][]string {
	text = strings.ToLower(norm.NFKC.String(text))

	var (
		phrases [][]string
		current []string
		word    strings.Builder
	)
	flushPhrase := func() {
		if len(current) > 0 && (r.maxWords == 0 || len(current) <= r.maxWords) {
			phrases = append(phrases, current)
		}
		current = nil
	}
	flushWord := func() {
		if word.Len() == 0 {
			return
		}
		w := strings.Trim(word.String(), "'")
		word.Reset()
		if r.isBreak(w) {
			flushPhrase()
			return
		}
		current = append(current, w)
	}

	for _, c := range text {
		switch {
		case unicode.IsLetter(c) || unicode.IsDigit(c) || c == '\'':
			word.WriteRune(c)
		case c == '\n' || c == '\r' || strings.ContainsRune(phraseDelims, c):
			flushWord()
			flushPhrase()
		case unicode.IsSpace(c):
			flushWord()
		default:
			// 其他符号同样截断短语
			flushWord()
			flushPhrase()
		}
	}
	flushWord()
	flushPhrase()
	return phrases
}

func (r *RAKE) isBreak(w string) bool {
	if w == "" {
		return true
	}
	if _, ok := r.stopWords[w]; ok {
		return true
	}
	if len([]rune(w)) < r.minWordChars {
		return true
	}
	return strings.IndexFunc(w, func(c rune) bool { return !unicode.IsDigit(c) }) < 0
}

// Phrases 返回前 n 个短语，n <= 0 时返回全部
func Phrases(kws []Keyword, n int) []string {
	if n <= 0 || n > len(kws) {
		n = len(kws)
	}
	out := make([]string, 0, n)
	for _, kw := range kws[:n] {
		out = append(out, kw.Phrase)
	}
	return out
}
