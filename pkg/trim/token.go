package trim

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/easyops/ragcontext-go/pkg/core/message"
)

// TokenCounter Token 计数接口
type TokenCounter interface {
	// Count 返回文本的 Token 数
	Count(text string) int
	// CountMessages 返回消息列表的总 Token 数，含角色与分隔开销
	CountMessages(messages []message.Message) int
}

// TiktokenCounter 使用 tiktoken 精确计数
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
}

// TiktokenOption 配置 TiktokenCounter
type TiktokenOption func(*TiktokenCounter)

// WithModel 按模型选择编码
func WithModel(model string) TiktokenOption {
	return func(c *TiktokenCounter) {
		if model != "" {
			c.model = model
		}
	}
}

// NewTiktokenCounter 创建 TiktokenCounter，未知模型降级到 cl100k_base
func NewTiktokenCounter(opts ...TiktokenOption) (*TiktokenCounter, error) {
	c := &TiktokenCounter{model: "gpt-4o"}
	for _, opt := range opts {
		opt(c)
	}

	encoding, err := tiktoken.EncodingForModel(c.model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	c.encoding = encoding
	return c, nil
}

// Count 返回 Token 数
func (c *TiktokenCounter) Count(text string) int {
	if c.encoding == nil {
		return estimateTokens(text)
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// CountMessages 按 OpenAI 的消息格式开销计数
func (c *TiktokenCounter) CountMessages(messages []message.Message) int {
	const tokensPerMessage = 3 // <|start|>{role}\n{content}<|end|>\n

	total := 0
	for _, msg := range messages {
		total += tokensPerMessage
		total += c.Count(string(msg.Role))
		total += c.Count(msg.Content)
	}
	return total + 3 // 回复引导
}

// EstimatedCounter 按字符数估算，tiktoken 不可用时使用
type EstimatedCounter struct {
	CharsPerToken float64
}

// NewEstimatedCounter 创建估算计数器
func NewEstimatedCounter(charsPerToken int) *EstimatedCounter {
	if charsPerToken <= 0 {
		charsPerToken = 4
	}
	return &EstimatedCounter{CharsPerToken: float64(charsPerToken)}
}

// Count 返回估算的 Token 数
func (c *EstimatedCounter) Count(text string) int {
	cpt := c.CharsPerToken
	if cpt <= 0 {
		cpt = 4
	}
	return int(float64(len(text)) / cpt)
}

// CountMessages 返回估算的消息 Token 数
func (c *EstimatedCounter) CountMessages(messages []message.Message) int {
	total := 0
	for _, msg := range messages {
		total += 4
		total += c.Count(string(msg.Role))
		total += c.Count(msg.Content)
	}
	return total + 3
}

// estimateTokens 取字符估算与词估算的平均
func estimateTokens(text string) int {
	charTokens := len(text) / 4
	words := len(strings.Fields(text))
	if words == 0 {
		return charTokens
	}
	return (charTokens + int(float64(words)*1.3)) / 2
}

// DefaultTokenCounter 优先使用 tiktoken，不可用时降级为估算
func DefaultTokenCounter() TokenCounter {
	counter, err := NewTiktokenCounter()
	if err != nil {
		return NewEstimatedCounter(4)
	}
	return counter
}

// compile-time interface check
var (
	_ TokenCounter = (*TiktokenCounter)(nil)
	_ TokenCounter = (*EstimatedCounter)(nil)
)
