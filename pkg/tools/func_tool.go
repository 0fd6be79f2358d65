package tools

import (
	"context"

	"github.com/easyops/ragcontext-go/pkg/core/errors"
	"github.com/easyops/ragcontext-go/pkg/rag"
)

// FuncTool 通过函数快速创建工具
//
// 使用示例:
//
//	issues := tools.NewFuncTool(
//	    "github",
//	    "Fetch the latest issues of a repository",
//	    func(ctx context.Context, params map[string]string) (rag.Document, error) {
//	        return rag.Document{ID: params["repo"], Text: "..."}, nil
//	    },
//	    tools.WithRequiredParams("repo"),
//	)
type FuncTool struct {
	name        string
	description string
	fn          FetcherFunc
	required    []string
}

// FuncToolOption FuncTool 配置选项
type FuncToolOption func(*FuncTool)

// WithRequiredParams 声明必需参数，缺失时 Fetch 返回校验错误
func WithRequiredParams(names ...string) FuncToolOption {
	return func(t *FuncTool) {
		t.required = append(t.required, names...)
	}
}

// NewFuncTool 创建函数工具
func NewFuncTool(name, description string, fn FetcherFunc, opts ...FuncToolOption) *FuncTool {
	t := &FuncTool{
		name:        name,
		description: description,
		fn:          fn,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *FuncTool) Name() string        { return t.name }
func (t *FuncTool) Description() string { return t.description }

// Validate 检查必需参数
func (t *FuncTool) Validate(params map[string]string) error {
	for _, name := range t.required {
		if params[name] == "" {
			return errors.Validationf("tool %s: missing required parameter %q", t.name, name)
		}
	}
	return nil
}

// Fetch 校验参数后调用函数；未设置 Source 时以工具名补齐
func (t *FuncTool) Fetch(ctx context.Context, params map[string]string) (rag.Document, error) {
	if err := t.Validate(params); err != nil {
		return rag.Document{}, err
	}
	if t.fn == nil {
		return rag.Document{}, errors.ErrNotImplemented
	}

	doc, err := t.fn(ctx, params)
	if err != nil {
		return rag.Document{}, err
	}
	if doc.Source == "" {
		doc.Source = t.name
	}
	return doc, nil
}

// compile-time interface check
var _ Tool = (*FuncTool)(nil)
