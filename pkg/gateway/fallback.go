package gateway

import (
	"context"
	"strings"

	"github.com/easyops/ragcontext-go/pkg/core/config"
	"github.com/easyops/ragcontext-go/pkg/core/llm"
	"github.com/easyops/ragcontext-go/pkg/otel"
)

// FallbackFunc 超时后产生替代响应
type FallbackFunc func(ctx context.Context, req llm.Request) (string, error)

// StaticFallback 返回固定消息，msg 为空时使用默认消息
func StaticFallback(msg string) FallbackFunc {
	if msg == "" {
		msg = config.DefaultFallbackMessage
	}
	return func(context.Context, llm.Request) (string, error) {
		return msg, nil
	}
}

// ProviderFallback 使用备用模型重答；备用模型失败或返回空时使用静态消息。
// 备用模型的回答同样经 DefaultFormatters 处理。
func ProviderFallback(p llm.Provider, msg string) FallbackFunc {
	static := StaticFallback(msg)
	formatters := DefaultFormatters()
	return func(ctx context.Context, req llm.Request) (string, error) {
		// 原请求的模型覆盖只针对主模型
		req.Model = ""
		resp, err := p.Generate(ctx, req)
		var content string
		if err == nil {
			content = FormatAnswer(formatters, p.Model(), resp.Content)
		}
		if err != nil || strings.TrimSpace(content) == "" {
			otel.GetLogger().WithContext(ctx).Warn("fallback model failed, using static message",
				"provider", p.Name(), "error", err)
			return static(ctx, req)
		}
		return content, nil
	}
}
