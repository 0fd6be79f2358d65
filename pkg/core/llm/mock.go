package llm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/easyops/ragcontext-go/pkg/core/errors"
)

var errNoEmbedder = fmt.Errorf("%w: mock provider has no embedder", errors.ErrNotImplemented)

// MockProvider 可编程的测试替身
type MockProvider struct {
	// GenerateFunc 自定义生成逻辑，为空时返回 Reply
	GenerateFunc func(ctx context.Context, req Request) (Response, error)
	// EmbedFunc 自定义嵌入逻辑，为空时返回错误
	EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)
	// Reply 默认回复内容
	Reply string
	// ModelName 模型名称
	ModelName string

	calls atomic.Int64
	mu    sync.Mutex
	last  Request
}

// NewMockProvider 创建返回固定回复的 MockProvider
func NewMockProvider(reply string) *MockProvider {
	return &MockProvider{Reply: reply, ModelName: "mock-model"}
}

// Generate 记录请求并返回预设回复
func (m *MockProvider) Generate(ctx context.Context, req Request) (Response, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.last = req
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return Response{Content: m.Reply, Model: m.ModelName, FinishReason: "stop"}, nil
}

// Embed 调用 EmbedFunc
func (m *MockProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, texts)
	}
	return nil, errNoEmbedder
}

// Calls 返回 Generate 被调用的次数
func (m *MockProvider) Calls() int {
	return int(m.calls.Load())
}

// LastRequest 返回最后一次请求
func (m *MockProvider) LastRequest() Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func (m *MockProvider) Name() string  { return "mock" }
func (m *MockProvider) Model() string { return m.ModelName }
func (m *MockProvider) Close() error  { return nil }

// compile-time interface check
var _ Provider = (*MockProvider)(nil)
