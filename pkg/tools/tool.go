// Package tools 定义外部数据源工具，并在限流约束下并发地把它们的结果组装为上下文。
package tools

import (
	"context"

	"github.com/easyops/ragcontext-go/pkg/rag"
)

// Fetcher 数据源获取能力
//
// 实现需可并发调用；返回的文档在之后不会被修改。
type Fetcher interface {
	Fetch(ctx context.Context, params map[string]string) (rag.Document, error)
}

// FetcherFunc 函数适配器
type FetcherFunc func(ctx context.Context, params map[string]string) (rag.Document, error)

// Fetch 调用 f
func (f FetcherFunc) Fetch(ctx context.Context, params map[string]string) (rag.Document, error) {
	return f(ctx, params)
}

// Tool 可注册的命名数据源
type Tool interface {
	// Name 工具唯一名称，同时作为文档来源
	Name() string
	// Description 工具描述
	Description() string
	Fetcher
}
