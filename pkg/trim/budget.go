package trim

import "github.com/easyops/ragcontext-go/pkg/core/config"

// Budget 上下文字符预算
type Budget struct {
	// ContentWindowTokens 模型上下文窗口（token）
	ContentWindowTokens int
	// BufferFraction 分配给检索内容的比例，其余留给指令与回答
	BufferFraction float64
	// CharsPerToken 每个 token 折算的字符数
	CharsPerToken int
}

// DefaultBudget 默认预算：4096 token × 0.75 × 4 字符
func DefaultBudget() Budget {
	return BudgetFromConfig(config.ContextConfig{}.WithDefaults())
}

// BudgetFromConfig 从配置构造预算
func BudgetFromConfig(cfg config.ContextConfig) Budget {
	return Budget{
		ContentWindowTokens: cfg.WindowTokens,
		BufferFraction:      cfg.BufferFraction,
		CharsPerToken:       cfg.CharsPerToken,
	}
}

// Chars 可用于检索内容的字符数
func (b Budget) Chars() int {
	return int(float64(b.ContentWindowTokens) * b.BufferFraction * float64(b.CharsPerToken))
}

// Share 按权重切分字符预算。
//
// 非正权重按 1 计；整除余数归第一份。
func (b Budget) Share(weights []float64) []int {
	shares := make([]int, len(weights))
	if len(weights) == 0 {
		return shares
	}

	norm := make([]float64, len(weights))
	var sum float64
	for i, w := range weights {
		if w <= 0 {
			w = 1
		}
		norm[i] = w
		sum += w
	}

	total := b.Chars()
	assigned := 0
	for i, w := range norm {
		shares[i] = int(float64(total) * w / sum)
		assigned += shares[i]
	}
	shares[0] += total - assigned
	return shares
}
