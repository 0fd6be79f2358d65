package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	coreerrors "github.com/easyops/ragcontext-go/pkg/core/errors"
	"github.com/easyops/ragcontext-go/pkg/core/llm"
)

func TestNewOpenAI_EmptyAPIKey(t *testing.T) {
	_, err := llm.NewOpenAI()
	if err != coreerrors.ErrInvalidAPIKey {
		t.Fatalf("expected ErrInvalidAPIKey, got %v", err)
	}
}

func TestNewOpenAI_Defaults(t *testing.T) {
	client, err := llm.NewOpenAI(llm.WithAPIKey("test-api-key"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if client.Model() != "gpt-4o-mini" {
		t.Fatalf("expected default model 'gpt-4o-mini', got %s", client.Model())
	}
	if client.Name() != "openai" {
		t.Fatalf("expected name 'openai', got %s", client.Name())
	}
}

func newOpenAIServer(t *testing.T, handler http.HandlerFunc) *llm.OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := llm.NewOpenAI(
		llm.WithAPIKey("test-api-key"),
		llm.WithBaseURL(srv.URL+"/v1"),
		llm.WithMaxRetries(0),
	)
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}
	return client
}

func TestOpenAIClient_Generate(t *testing.T) {
	var gotModel string
	client := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotModel = body.Model
		if len(body.Messages) != 2 || body.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", body.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "summary"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
		}`))
	})

	req := llm.NewPromptRequest("be brief", "summarise", llm.WithRequestModel("gpt-4o"))
	resp, err := client.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if gotModel != "gpt-4o" {
		t.Errorf("request model = %q, want per-request override", gotModel)
	}
	if resp.Content != "summary" || resp.TokenUsage.TotalTokens != 15 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestOpenAIClient_GenerateErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, coreerrors.ErrInvalidAPIKey},
		{http.StatusTooManyRequests, coreerrors.ErrRateLimited},
		{http.StatusServiceUnavailable, coreerrors.ErrProviderUnavailable},
		{http.StatusNotFound, coreerrors.ErrModelNotFound},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error": {"message": "nope", "type": "test"}}`))
			})

			_, err := client.Generate(context.Background(), llm.NewPromptRequest("", "hi"))
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestOpenAIClient_Embed(t *testing.T) {
	client := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0.0, 1.0]},
				{"object": "embedding", "index": 0, "embedding": [1.0, 0.0]}
			],
			"model": "text-embedding-3-small"
		}`))
	})

	vecs, err := client.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vecs) != 2 || vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Fatalf("embeddings not placed by index: %v", vecs)
	}
}
