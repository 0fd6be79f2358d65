package gateway

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	thinkBlock   = regexp.MustCompile(`(?s)<think>.*?</think>`)
	thinkTrailer = regexp.MustCompile(`(?s)^.*?</think>`)
)

// AnswerFormatter 针对匹配模型名的回答做后处理
type AnswerFormatter struct {
	Name   string
	model  *regexp.Regexp
	Format func(answer string) string
}

// NewAnswerFormatter 创建格式化器，modelPattern 须匹配完整模型名
func NewAnswerFormatter(name, modelPattern string, format func(string) string) (AnswerFormatter, error) {
	re, err := regexp.Compile(`^(?:` + modelPattern + `)$`)
	if err != nil {
		return AnswerFormatter{}, fmt.Errorf("answer formatter %s: %w", name, err)
	}
	return AnswerFormatter{Name: name, model: re, Format: format}, nil
}

// Matches 判断模型名是否适用
func (f AnswerFormatter) Matches(model string) bool {
	return f.model != nil && f.model.MatchString(model)
}

// StripThinking 去掉推理模型输出的 <think> 块。
// 缺少开始标签时，删除第一个 </think> 及其之前的全部内容。
func StripThinking(answer string) string {
	if strings.TrimSpace(answer) == "" {
		return ""
	}
	answer = thinkBlock.ReplaceAllString(answer, "")
	answer = thinkTrailer.ReplaceAllString(answer, "")
	return strings.TrimSpace(answer)
}

// 会输出推理过程的模型
const (
	DeepseekModels = `deepseek-r1.*`
	QwenModels     = `(hf.co/unsloth/)?(qwq|[qQ]wen\d(\.\d)?).*`
	NemotronModels = `nemotron-3-.*`
	Phi4Models     = `Phi-4(-reasoning)?|phi4`
)

// DefaultFormatters 内置的推理模型格式化器
func DefaultFormatters() []AnswerFormatter {
	patterns := []struct{ name, pattern string }{
		{"deepseek", DeepseekModels},
		{"qwen", QwenModels},
		{"nemotron", NemotronModels},
		{"phi4", Phi4Models},
	}
	out := make([]AnswerFormatter, 0, len(patterns))
	for _, p := range patterns {
		f, err := NewAnswerFormatter(p.name, p.pattern, StripThinking)
		if err != nil {
			panic(err)
		}
		out = append(out, f)
	}
	return out
}

// FormatAnswer 使用第一个匹配 model 的格式化器处理 answer，没有匹配时原样返回
func FormatAnswer(formatters []AnswerFormatter, model, answer string) string {
	for _, f := range formatters {
		if f.Matches(model) {
			return f.Format(answer)
		}
	}
	return answer
}
