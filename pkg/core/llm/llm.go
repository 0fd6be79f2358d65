// Package llm 提供模型调用的统一接口
package llm

import (
	"context"

	"github.com/easyops/ragcontext-go/pkg/core/message"
)

// Provider 模型提供商接口
//
// 调用方不感知具体后端；后端在启动时由 New 根据配置选定一次。
type Provider interface {
	// Generate 生成一次完整回复
	Generate(ctx context.Context, req Request) (Response, error)

	// Embed 为每段文本生成嵌入向量，返回顺序与输入一致
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Name 返回提供商名称
	Name() string

	// Model 返回当前模型名称
	Model() string

	// Close 释放连接
	Close() error
}

// Request 模型请求
type Request struct {
	// Messages 消息列表
	Messages []message.Message
	// Model 覆盖客户端默认模型（可选）
	Model string
	// Temperature 温度参数（可选）
	Temperature *float64
	// MaxTokens 最大输出 token（可选）
	MaxTokens *int
	// Stop 停止序列（可选）
	Stop []string
}

// NewPromptRequest 由系统指令与用户提示构建请求，空指令会被省略
func NewPromptRequest(instructions, prompt string, opts ...RequestOption) Request {
	req := Request{}
	if instructions != "" {
		req.Messages = append(req.Messages, message.NewSystemMessage(instructions))
	}
	req.Messages = append(req.Messages, message.NewUserMessage(prompt))
	for _, opt := range opts {
		opt(&req)
	}
	return req
}

// Response 模型响应
type Response struct {
	// ID 响应标识
	ID string `json:"id"`
	// Content 响应文本内容
	Content string `json:"content"`
	// Model 实际使用的模型
	Model string `json:"model"`
	// TokenUsage Token 使用统计
	TokenUsage message.TokenUsage `json:"token_usage"`
	// FinishReason 结束原因 ("stop", "length", "content_filter")
	FinishReason string `json:"finish_reason"`
}
