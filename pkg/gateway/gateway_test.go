package gateway

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/easyops/ragcontext-go/pkg/cache"
	"github.com/easyops/ragcontext-go/pkg/core/config"
	agenterrors "github.com/easyops/ragcontext-go/pkg/core/errors"
	"github.com/easyops/ragcontext-go/pkg/core/llm"
	"github.com/easyops/ragcontext-go/pkg/otel"
	"github.com/easyops/ragcontext-go/pkg/rag"
)

func newDoc() *rag.MultiDocumentContext {
	doc := rag.NewMultiDocumentContext("What failed?", "Answer briefly.")
	_ = doc.Append(rag.IndividualContext{ID: "1", Source: "slack", Text: "The deploy failed at 10:00."})
	return doc
}

func TestCallWithCache_HitSkipsModel(t *testing.T) {
	mock := llm.NewMockProvider("The deploy failed.")
	metrics := otel.NewInMemoryMetrics()
	g := New(mock, cache.NewMemory(), WithMetrics(metrics))
	ctx := context.Background()

	first, err := g.CallWithCache(ctx, newDoc(), nil, "slack")
	if err != nil {
		t.Fatalf("first call error = %v", err)
	}
	second, err := g.CallWithCache(ctx, newDoc(), nil, "slack")
	if err != nil {
		t.Fatalf("second call error = %v", err)
	}

	if mock.Calls() != 1 {
		t.Errorf("provider called %d times, want 1", mock.Calls())
	}
	if r, _ := second.Response(); r != "The deploy failed." {
		t.Errorf("cached response = %q", r)
	}
	if first.CacheKey() == "" || first.CacheKey() != second.CacheKey() {
		t.Errorf("cache keys differ: %q vs %q", first.CacheKey(), second.CacheKey())
	}
	if !strings.Contains(second.Debug(), "cache=hit") || !strings.Contains(first.Debug(), "origin=live") {
		t.Errorf("unexpected debug: %q / %q", first.Debug(), second.Debug())
	}
	if metrics.CounterValue(otel.MetricCacheHits) != 1 || metrics.CounterValue(otel.MetricCacheMisses) != 1 {
		t.Errorf("hits=%d misses=%d", metrics.CounterValue(otel.MetricCacheHits), metrics.CounterValue(otel.MetricCacheMisses))
	}
}

func TestCallWithCache_TimeoutFallsBackAndSkipsCache(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan struct{})
	mock := &llm.MockProvider{ModelName: "slow", GenerateFunc: func(ctx context.Context, _ llm.Request) (llm.Response, error) {
		defer close(finished)
		<-release
		return llm.Response{Content: "late answer"}, nil
	}}

	store := cache.NewMemory()
	metrics := otel.NewInMemoryMetrics()
	g := New(mock, store, WithTimeout(20*time.Millisecond), WithMetrics(metrics))

	doc, err := g.CallWithCache(context.Background(), newDoc(), nil, "slack")
	if err != nil {
		t.Fatalf("CallWithCache() error = %v", err)
	}
	if r, _ := doc.Response(); r != config.DefaultFallbackMessage {
		t.Errorf("response = %q, want fallback message", r)
	}
	if !strings.Contains(doc.Debug(), "origin=fallback") {
		t.Errorf("debug = %q", doc.Debug())
	}

	// 迟到的结果被丢弃
	close(release)
	<-finished
	time.Sleep(10 * time.Millisecond)
	if store.Len() != 0 {
		t.Errorf("late or fallback result was cached, len = %d", store.Len())
	}
	if metrics.CounterValue(otel.MetricLLMTimeouts) != 1 || metrics.CounterValue(otel.MetricLLMFallbacks) != 1 {
		t.Errorf("timeouts=%d fallbacks=%d",
			metrics.CounterValue(otel.MetricLLMTimeouts), metrics.CounterValue(otel.MetricLLMFallbacks))
	}
}

func TestCallWithCache_ProviderErrorPropagates(t *testing.T) {
	mock := &llm.MockProvider{GenerateFunc: func(context.Context, llm.Request) (llm.Response, error) {
		return llm.Response{}, agenterrors.ErrInvalidAPIKey
	}}
	g := New(mock, cache.NewMemory())

	if _, err := g.CallWithCache(context.Background(), newDoc(), nil, "slack"); !errors.Is(err, agenterrors.ErrInvalidAPIKey) {
		t.Errorf("error = %v, want ErrInvalidAPIKey", err)
	}
}

func TestCallWithCache_EmptyResponseNotCached(t *testing.T) {
	mock := llm.NewMockProvider("")
	store := cache.NewMemory()
	g := New(mock, store)

	_, _ = g.CallWithCache(context.Background(), newDoc(), nil, "slack")
	_, _ = g.CallWithCache(context.Background(), newDoc(), nil, "slack")
	if mock.Calls() != 2 || store.Len() != 0 {
		t.Errorf("empty response should not be cached: calls=%d len=%d", mock.Calls(), store.Len())
	}
}

func TestCallWithCache_Validation(t *testing.T) {
	g := New(llm.NewMockProvider("x"), cache.NewMemory())

	if _, err := g.CallWithCache(context.Background(), nil, nil, "slack"); !errors.Is(err, agenterrors.ErrValidation) {
		t.Errorf("nil doc error = %v", err)
	}
	if _, err := g.CallWithCache(context.Background(), newDoc(), nil, ""); !errors.Is(err, agenterrors.ErrValidation) {
		t.Errorf("empty tool error = %v", err)
	}
}

func TestCallWithCache_EnvModelOverride(t *testing.T) {
	mock := llm.NewMockProvider("ok")
	g := New(mock, cache.NewMemory())

	doc, err := g.CallWithCache(context.Background(), newDoc(), map[string]string{"model": "llama3.1:70b"}, "slack")
	if err != nil {
		t.Fatalf("CallWithCache() error = %v", err)
	}
	if got := mock.LastRequest().Model; got != "llama3.1:70b" {
		t.Errorf("request model = %q", got)
	}
	other, _ := g.CallWithCache(context.Background(), newDoc(), nil, "slack")
	if doc.CacheKey() == other.CacheKey() {
		t.Error("model override must change the cache key")
	}
}

func TestCallWithCache_ResponseAlreadySet(t *testing.T) {
	g := New(llm.NewMockProvider("ok"), nil)
	doc := newDoc()
	_ = doc.SetResponse("preset")

	if _, err := g.CallWithCache(context.Background(), doc, nil, "slack"); !errors.Is(err, agenterrors.ErrResponseAlreadySet) {
		t.Errorf("error = %v", err)
	}
}

func TestCallWithCache_StripsThinking(t *testing.T) {
	tests := []struct {
		name  string
		model string
		reply string
		want  string
	}{
		{"think block", "deepseek-r1:32b", "<think>\nlet me check the logs\n</think>\n\nThe deploy failed.", "The deploy failed."},
		{"missing start tag", "qwen3:8b", "checking the logs first\n</think> The deploy failed.", "The deploy failed."},
		{"other model untouched", "llama3.2", "<think>kept</think> answer", "<think>kept</think> answer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &llm.MockProvider{ModelName: tt.model, Reply: tt.reply}
			store := cache.NewMemory()
			g := New(mock, store)
			ctx := context.Background()

			doc, err := g.CallWithCache(ctx, newDoc(), nil, "slack")
			if err != nil {
				t.Fatalf("CallWithCache() error = %v", err)
			}
			if got, _ := doc.Response(); got != tt.want {
				t.Errorf("response = %q, want %q", got, tt.want)
			}
			cached, ok, _ := store.Get(ctx, doc.CacheKey())
			if !ok || cached != tt.want {
				t.Errorf("cached = %q (ok=%v), want %q", cached, ok, tt.want)
			}
		})
	}
}

func TestCallWithCache_ThinkingOnlyNotCached(t *testing.T) {
	mock := &llm.MockProvider{ModelName: "deepseek-r1", Reply: "<think>nothing to say</think>"}
	store := cache.NewMemory()
	g := New(mock, store)

	doc, err := g.CallWithCache(context.Background(), newDoc(), nil, "slack")
	if err != nil {
		t.Fatalf("CallWithCache() error = %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("cache has %d entries, want 0", store.Len())
	}
	if got, _ := doc.Response(); got != "" {
		t.Errorf("response = %q, want empty", got)
	}
}

func TestFormatAnswer(t *testing.T) {
	formatters := DefaultFormatters()
	tests := []struct {
		model  string
		answer string
		want   string
	}{
		{"deepseek-r1", "This is a test <think>remove this</think> string.", "This is a test  string."},
		{"deepseek-r1", "This is a test remove this\n</think> string.", "string."},
		{"deepseek-r1", "This is a test string.", "This is a test string."},
		{"deepseek-r1", "   ", ""},
		{"hf.co/unsloth/Qwen3-30B", "<think>x</think>ok", "ok"},
		{"qwq", "<think>x</think>ok", "ok"},
		{"nemotron-3-nano", "a</think>b", "b"},
		{"phi4", "<think>x</think> ok", "ok"},
		{"Phi-4-reasoning", "<think>x</think> ok", "ok"},
		{"phi4-mini", "<think>x</think> ok", "<think>x</think> ok"},
		{"my-deepseek-r1", "<think>x</think> ok", "<think>x</think> ok"},
	}

	for _, tt := range tests {
		if got := FormatAnswer(formatters, tt.model, tt.answer); got != tt.want {
			t.Errorf("FormatAnswer(%q, %q) = %q, want %q", tt.model, tt.answer, got, tt.want)
		}
	}
}

func TestNewAnswerFormatter_InvalidPattern(t *testing.T) {
	if _, err := NewAnswerFormatter("broken", "(", StripThinking); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestCacheKey(t *testing.T) {
	base := CacheKey("p", "m", map[string]string{"a": "1", "b": "2"}, "t")

	if got := CacheKey("p", "m", map[string]string{"b": "2", "a": "1"}, "t"); got != base {
		t.Error("env order must not matter")
	}
	if len(base) != 64 {
		t.Errorf("key length = %d", len(base))
	}
	for name, other := range map[string]string{
		"prompt": CacheKey("q", "m", map[string]string{"a": "1", "b": "2"}, "t"),
		"model":  CacheKey("p", "n", map[string]string{"a": "1", "b": "2"}, "t"),
		"env":    CacheKey("p", "m", map[string]string{"a": "1"}, "t"),
		"tool":   CacheKey("p", "m", map[string]string{"a": "1", "b": "2"}, "u"),
	} {
		if other == base {
			t.Errorf("changing %s should change the key", name)
		}
	}
}

func TestProviderFallback(t *testing.T) {
	req := llm.NewPromptRequest("", "q", llm.WithRequestModel("big"))

	alt := llm.NewMockProvider("alt answer")
	got, err := ProviderFallback(alt, "")(context.Background(), req)
	if err != nil || got != "alt answer" {
		t.Errorf("ProviderFallback() = %q, %v", got, err)
	}
	if alt.LastRequest().Model != "" {
		t.Errorf("model override leaked to fallback: %q", alt.LastRequest().Model)
	}

	broken := &llm.MockProvider{GenerateFunc: func(context.Context, llm.Request) (llm.Response, error) {
		return llm.Response{}, agenterrors.ErrProviderUnavailable
	}}
	got, err = ProviderFallback(broken, "try later")(context.Background(), req)
	if err != nil || got != "try later" {
		t.Errorf("ProviderFallback() = %q, %v", got, err)
	}

	reasoning := &llm.MockProvider{ModelName: "deepseek-r1:7b", Reply: "<think>hmm</think> short answer"}
	got, _ = ProviderFallback(reasoning, "try later")(context.Background(), req)
	if got != "short answer" {
		t.Errorf("ProviderFallback() = %q, want formatted answer", got)
	}

	thinkingOnly := &llm.MockProvider{ModelName: "deepseek-r1:7b", Reply: "<think>hmm</think>"}
	got, _ = ProviderFallback(thinkingOnly, "try later")(context.Background(), req)
	if got != "try later" {
		t.Errorf("ProviderFallback() = %q, want static message", got)
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.LLMConfig{
		Provider: config.ProviderOllama,
		Model:    "llama3.2",
		Timeout:  5 * time.Second,
		Fallback: &config.LLMConfig{Model: "llama3.2:1b"},
	}
	g, err := NewFromConfig(cfg, cache.NewMemory())
	if err != nil {
		t.Fatalf("NewFromConfig() error = %v", err)
	}
	if g.timeout != 5*time.Second || g.provider.Model() != "llama3.2" {
		t.Errorf("unexpected gateway: timeout=%v model=%s", g.timeout, g.provider.Model())
	}
	if err := g.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	if _, err := NewFromConfig(config.LLMConfig{Provider: "bard"}, nil); err == nil {
		t.Error("expected error for unknown provider")
	}
}

type verdict struct {
	Status string   `json:"status"`
	Causes []string `json:"causes"`
}

func TestParseStructured(t *testing.T) {
	doc := rag.NewMultiDocumentContext("q", "")
	_ = doc.SetResponse("```json\n{\"status\":\"failed\",\"causes\":[\"disk\"]}\n```")

	v, err := ParseStructured[verdict](doc)
	if err != nil {
		t.Fatalf("ParseStructured() error = %v", err)
	}
	if v.Status != "failed" || len(v.Causes) != 1 {
		t.Errorf("ParseStructured() = %+v", v)
	}
	if _, ok := doc.Structured().(verdict); !ok {
		t.Errorf("Structured = %T", doc.Structured())
	}

	bad := rag.NewMultiDocumentContext("q", "")
	_ = bad.SetResponse("not json")
	if _, err := ParseStructured[verdict](bad); !errors.Is(err, agenterrors.ErrDeserialization) {
		t.Errorf("error = %v, want ErrDeserialization", err)
	}

	if _, err := ParseStructured[verdict](rag.NewMultiDocumentContext("q", "")); !errors.Is(err, agenterrors.ErrValidation) {
		t.Errorf("unset response error = %v", err)
	}
}
