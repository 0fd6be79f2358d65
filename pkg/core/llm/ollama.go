package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/easyops/ragcontext-go/pkg/core/errors"
	"github.com/easyops/ragcontext-go/pkg/core/message"
)

// OllamaClient Ollama 客户端
type OllamaClient struct {
	baseURL    string
	model      string
	embedModel string
	maxRetries int
	retryDelay time.Duration
	httpClient *http.Client
}

// OllamaOption Ollama 客户端选项
type OllamaOption func(*OllamaClient)

// WithOllamaBaseURL 设置基础 URL
func WithOllamaBaseURL(url string) OllamaOption {
	return func(c *OllamaClient) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithOllamaModel 设置模型名称
func WithOllamaModel(model string) OllamaOption {
	return func(c *OllamaClient) {
		c.model = model
	}
}

// WithOllamaEmbeddingModel 设置嵌入模型，默认与对话模型相同
func WithOllamaEmbeddingModel(model string) OllamaOption {
	return func(c *OllamaClient) {
		c.embedModel = model
	}
}

// WithOllamaRetry 设置重试策略
func WithOllamaRetry(maxRetries int, delay time.Duration) OllamaOption {
	return func(c *OllamaClient) {
		c.maxRetries = maxRetries
		c.retryDelay = delay
	}
}

// WithOllamaHTTPClient 设置 HTTP 客户端
func WithOllamaHTTPClient(client *http.Client) OllamaOption {
	return func(c *OllamaClient) {
		c.httpClient = client
	}
}

// NewOllamaClient 创建 Ollama 客户端
func NewOllamaClient(opts ...OllamaOption) *OllamaClient {
	c := &OllamaClient{
		baseURL:    "http://localhost:11434",
		model:      "llama3.2",
		maxRetries: 3,
		retryDelay: time.Second,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.embedModel == "" {
		c.embedModel = c.model
	}
	return c
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model           string        `json:"model"`
	CreatedAt       string        `json:"created_at"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	DoneReason      string        `json:"done_reason"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

// Generate 调用 /api/chat（非流式）
func (c *OllamaClient) Generate(ctx context.Context, req Request) (Response, error) {
	chatReq := ollamaChatRequest{
		Model:    c.model,
		Messages: make([]ollamaMessage, len(req.Messages)),
	}
	if req.Model != "" {
		chatReq.Model = req.Model
	}
	for i, m := range req.Messages {
		chatReq.Messages[i] = ollamaMessage{Role: string(m.Role), Content: m.Content}
	}
	if req.Temperature != nil || req.MaxTokens != nil || len(req.Stop) > 0 {
		chatReq.Options = &ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
			Stop:        req.Stop,
		}
	}

	var out ollamaChatResponse
	err := retry(ctx, c.maxRetries, c.retryDelay, func() error {
		return c.post(ctx, "/api/chat", chatReq, &out)
	})
	if err != nil {
		return Response{}, err
	}
	if !out.Done {
		return Response{}, fmt.Errorf("%w: ollama response not done", errors.ErrInvalidResponse)
	}

	reason := out.DoneReason
	if reason == "" {
		reason = "stop"
	}
	return Response{
		ID:           out.CreatedAt,
		Content:      out.Message.Content,
		Model:        out.Model,
		FinishReason: reason,
		TokenUsage: message.TokenUsage{
			PromptTokens:     out.PromptEvalCount,
			CompletionTokens: out.EvalCount,
			TotalTokens:      out.PromptEvalCount + out.EvalCount,
		},
	}, nil
}

// Embed 逐条调用 /api/embeddings
func (c *OllamaClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		var out struct {
			Embedding []float32 `json:"embedding"`
		}
		body := map[string]string{"model": c.embedModel, "prompt": text}
		err := retry(ctx, c.maxRetries, c.retryDelay, func() error {
			return c.post(ctx, "/api/embeddings", body, &out)
		})
		if err != nil {
			return nil, err
		}
		if len(out.Embedding) == 0 {
			return nil, fmt.Errorf("%w: empty embedding", errors.ErrInvalidResponse)
		}
		results[i] = out.Embedding
	}
	return results, nil
}

func (c *OllamaClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", errors.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return mapOllamaStatus(resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrDeserialization, err)
	}
	return nil
}

func mapOllamaStatus(code int, body string) error {
	switch {
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", errors.ErrModelNotFound, body)
	case code == http.StatusTooManyRequests:
		return errors.ErrRateLimited
	case code >= 500:
		return fmt.Errorf("%w: ollama status %d: %s", errors.ErrProviderUnavailable, code, body)
	default:
		return fmt.Errorf("ollama error (code=%d): %s", code, body)
	}
}

func (c *OllamaClient) Name() string  { return "ollama" }
func (c *OllamaClient) Model() string { return c.model }
func (c *OllamaClient) Close() error  { return nil }

// compile-time interface check
var _ Provider = (*OllamaClient)(nil)
