// Package errors 定义上下文组装引擎的通用错误类型
package errors

import (
	"context"
	"errors"
	"fmt"
)

// 通用错误
var (
	// ErrNotImplemented 功能未实现
	ErrNotImplemented = errors.New("not implemented")
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrContextCanceled 上下文被取消
	ErrContextCanceled = errors.New("context canceled")
	// ErrValidation 输入校验失败，不重试
	ErrValidation = errors.New("validation failed")
	// ErrDeserialization 响应反序列化失败
	ErrDeserialization = errors.New("deserialization failed")
)

// 模型调用相关错误
var (
	// ErrRateLimited 请求被限速
	ErrRateLimited = errors.New("rate limited")
	// ErrTimeout 请求超时
	ErrTimeout = errors.New("request timeout")
	// ErrTokenLimitExceeded Token 限制超出
	ErrTokenLimitExceeded = errors.New("token limit exceeded")
	// ErrInvalidAPIKey API 密钥无效
	ErrInvalidAPIKey = errors.New("invalid API key")
	// ErrModelNotFound 模型未找到
	ErrModelNotFound = errors.New("model not found")
	// ErrProviderUnavailable 提供商不可用
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrInvalidResponse LLM 响应无效
	ErrInvalidResponse = errors.New("invalid LLM response")
)

// 工具相关错误
var (
	// ErrUpstream 外部数据源调用失败
	ErrUpstream = errors.New("upstream fetch failed")
	// ErrToolNotFound 工具未找到
	ErrToolNotFound = errors.New("tool not found")
	// ErrToolAlreadyRegistered 工具已注册
	ErrToolAlreadyRegistered = errors.New("tool already registered")
	// ErrInvalidTool 无效的工具
	ErrInvalidTool = errors.New("invalid tool")
)

// 上下文相关错误
var (
	// ErrDuplicateContext 同一来源的文档 ID 重复
	ErrDuplicateContext = errors.New("duplicate context entry")
	// ErrResponseAlreadySet 响应已被设置
	ErrResponseAlreadySet = errors.New("response already set")
	// ErrEmptyText 输入文本为空
	ErrEmptyText = errors.New("empty text")
)

// WrapError 包装错误并添加上下文信息
func WrapError(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Validationf 构造一个校验错误
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Upstream 将数据源错误标记为上游失败
func Upstream(source string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUpstream) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrUpstream, source, err)
}

// IsRetryable 判断错误是否可重试
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrProviderUnavailable)
}

// IsFatal 判断错误是否为致命错误（不可恢复）
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrInvalidAPIKey) ||
		errors.Is(err, ErrModelNotFound) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrValidation)
}

// IsCanceled 判断是否为上下文取消
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrContextCanceled)
}
