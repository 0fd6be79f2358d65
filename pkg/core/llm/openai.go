package llm

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/easyops/ragcontext-go/pkg/core/errors"
	"github.com/easyops/ragcontext-go/pkg/core/message"
)

// OpenAIClient OpenAI 兼容接口客户端
type OpenAIClient struct {
	client  *openai.Client
	options *Options
}

// NewOpenAI 创建 OpenAI 客户端
func NewOpenAI(opts ...Option) (*OpenAIClient, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	if options.APIKey == "" {
		return nil, errors.ErrInvalidAPIKey
	}
	if options.Model == "" {
		options.Model = "gpt-4o-mini"
	}
	if options.EmbeddingModel == "" {
		options.EmbeddingModel = string(openai.SmallEmbedding3)
	}

	config := openai.DefaultConfig(options.APIKey)
	if options.BaseURL != "" {
		config.BaseURL = options.BaseURL
	}
	config.HTTPClient = &http.Client{Timeout: options.Timeout}

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(config),
		options: options,
	}, nil
}

func (c *OpenAIClient) Name() string  { return "openai" }
func (c *OpenAIClient) Model() string { return c.options.Model }
func (c *OpenAIClient) Close() error  { return nil }

// Generate 生成回复
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (Response, error) {
	chatReq := c.buildChatRequest(req)

	var resp openai.ChatCompletionResponse
	err := retry(ctx, c.options.MaxRetries, c.options.RetryDelay, func() error {
		var callErr error
		resp, callErr = c.client.CreateChatCompletion(ctx, chatReq)
		return mapOpenAIError(callErr)
	})
	if err != nil {
		return Response{}, err
	}
	if len(resp.Choices) == 0 {
		return Response{}, errors.ErrInvalidResponse
	}

	choice := resp.Choices[0]
	return Response{
		ID:           resp.ID,
		Content:      choice.Message.Content,
		Model:        resp.Model,
		FinishReason: string(choice.FinishReason),
		TokenUsage: message.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (c *OpenAIClient) buildChatRequest(req Request) openai.ChatCompletionRequest {
	model := c.options.Model
	if req.Model != "" {
		model = req.Model
	}

	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: float32(c.options.Temperature),
		MaxTokens:   c.options.MaxTokens,
		Stop:        req.Stop,
	}
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}
	if req.MaxTokens != nil {
		chatReq.MaxTokens = *req.MaxTokens
	}
	return chatReq
}

// Embed 生成文本嵌入向量
func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.options.EmbeddingModel),
	}

	var resp openai.EmbeddingResponse
	err := retry(ctx, c.options.MaxRetries, c.options.RetryDelay, func() error {
		var callErr error
		resp, callErr = c.client.CreateEmbeddings(ctx, req)
		return mapOpenAIError(callErr)
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", errors.ErrInvalidResponse, len(texts), len(resp.Data))
	}

	result := make([][]float32, len(resp.Data))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(result) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", errors.ErrInvalidResponse, data.Index)
		}
		result[data.Index] = data.Embedding
	}
	return result, nil
}

// mapOpenAIError 映射 OpenAI 错误到通用错误
func mapOpenAIError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if !stderrors.As(err, &apiErr) {
		return errors.WrapError(err, "openai request failed")
	}

	switch apiErr.HTTPStatusCode {
	case http.StatusUnauthorized:
		return errors.ErrInvalidAPIKey
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", errors.ErrModelNotFound, apiErr.Message)
	case http.StatusTooManyRequests:
		return errors.ErrRateLimited
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return errors.ErrProviderUnavailable
	default:
		return fmt.Errorf("openai error (code=%d): %w", apiErr.HTTPStatusCode, err)
	}
}

// compile-time interface check
var _ Provider = (*OpenAIClient)(nil)
