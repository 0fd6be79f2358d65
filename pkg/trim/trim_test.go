package trim

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/easyops/ragcontext-go/pkg/core/config"
	agenterrors "github.com/easyops/ragcontext-go/pkg/core/errors"
	"github.com/easyops/ragcontext-go/pkg/core/llm"
	"github.com/easyops/ragcontext-go/pkg/core/message"
	"github.com/easyops/ragcontext-go/pkg/vector"
)

func TestTrim(t *testing.T) {
	tests := []struct {
		name  string
		items []string
		limit int
		want  []string
	}{
		{"all fit", []string{"ab", "cd"}, 10, []string{"ab", "cd"}},
		{"exact fit", []string{"ab", "cd"}, 4, []string{"ab", "cd"}},
		{"prefix", []string{"ab", "cd", "ef"}, 5, []string{"ab", "cd"}},
		{"first too long", []string{"abcdef", "a"}, 3, []string{}},
		{"zero limit", []string{"a"}, 0, []string{}},
		{"negative limit", []string{"a"}, -5, []string{}},
		{"empty items", []string{}, 5, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Trim(tt.items, tt.limit)
			if got == nil {
				t.Fatal("Trim() returned nil")
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Trim() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrim_PrefixProperty(t *testing.T) {
	items := []string{"alpha", "be", "gamma", "d", "epsilon", "zeta"}
	for limit := -1; limit <= 30; limit++ {
		got := Trim(items, limit)

		total := 0
		for i, s := range got {
			if items[i] != s {
				t.Fatalf("limit %d: result is not a prefix: %v", limit, got)
			}
			total += len(s)
		}
		if total > limit && len(got) > 0 {
			t.Fatalf("limit %d: total %d exceeds limit", limit, total)
		}
		if len(got) < len(items) && limit > 0 && total+len(items[len(got)]) <= limit {
			t.Fatalf("limit %d: prefix is not maximal: %v", limit, got)
		}
	}
}

func TestCut(t *testing.T) {
	s := "héllo wörld"
	for limit := 0; limit <= len(s)+1; limit++ {
		got := Cut(s, limit)
		if len(got) > limit || !utf8.ValidString(got) {
			t.Errorf("Cut(%d) = %q", limit, got)
		}
	}
}

func TestBudget(t *testing.T) {
	b := DefaultBudget()
	if b.Chars() != 12288 {
		t.Fatalf("Chars() = %d, want 12288", b.Chars())
	}

	custom := BudgetFromConfig(config.ContextConfig{WindowTokens: 1000, BufferFraction: 0.5, CharsPerToken: 2})
	if custom.Chars() != 1000 {
		t.Errorf("Chars() = %d, want 1000", custom.Chars())
	}
}

func TestBudget_Share(t *testing.T) {
	b := Budget{ContentWindowTokens: 100, BufferFraction: 1, CharsPerToken: 1}

	tests := []struct {
		name    string
		weights []float64
		want    []int
	}{
		{"equal", []float64{1, 1, 1}, []int{34, 33, 33}},
		{"weighted", []float64{3, 1}, []int{75, 25}},
		{"zero weights are equal", []float64{0, 0}, []int{50, 50}},
		{"negative counts as one", []float64{-2, 1}, []int{50, 50}},
		{"single", []float64{7}, []int{100}},
		{"none", nil, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.Share(tt.weights)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Share() = %v, want %v", got, tt.want)
			}
			sum := 0
			for _, s := range got {
				sum += s
			}
			if len(got) > 0 && sum != b.Chars() {
				t.Errorf("shares sum to %d, want %d", sum, b.Chars())
			}
		})
	}
}

func TestRanker_Rank(t *testing.T) {
	r := NewRanker()
	text := "Lunch menu was great. The deploy pipeline failed on staging. Weather is sunny."

	spans := r.Rank(context.Background(), text, []string{"deploy pipeline"}, "why did the deploy pipeline fail")
	if len(spans) != 3 {
		t.Fatalf("Rank() returned %d spans", len(spans))
	}
	if !strings.Contains(spans[0].Text, "deploy pipeline") {
		t.Errorf("best span = %q", spans[0].Text)
	}
	for i, s := range spans {
		if s.Rank != i+1 {
			t.Errorf("span %d rank = %d", i, s.Rank)
		}
		if text[s.Start:s.End] != s.Text {
			t.Errorf("span offsets mismatch: %+v", s)
		}
	}
}

func TestRanker_TiesKeepDocumentOrder(t *testing.T) {
	r := &Ranker{KeywordWeight: 1}
	spans := r.Rank(context.Background(), "One. Two. Three.", nil, "")
	got := []string{spans[0].Text, spans[1].Text, spans[2].Text}
	if !reflect.DeepEqual(got, []string{"One.", "Two.", "Three."}) {
		t.Errorf("tie order = %v", got)
	}
}

func TestRanker_RemoteEmbeddingBatched(t *testing.T) {
	var calls, admits int
	mock := llm.NewMockProvider("")
	mock.EmbedFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		calls++
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{0, 1}
		}
		// 查询与第二句方向一致
		out[0] = []float32{1, 0}
		out[2] = []float32{1, 0}
		return out, nil
	}

	r := NewRanker()
	r.Vectorizer = vector.NewProviderVectorizer(mock, nil)
	r = r.WithAdmit(func(ctx context.Context, fn func(context.Context) error) error {
		admits++
		return fn(ctx)
	})

	spans := r.Rank(context.Background(), "Alpha one. Beta two. Gamma three.", []string{"nothing"}, "beta")
	if calls != 1 || admits != 1 {
		t.Errorf("embed calls = %d, admits = %d, want 1 and 1", calls, admits)
	}
	if spans[0].Text != "Beta two." {
		t.Errorf("top span = %q, want the semantically closest", spans[0].Text)
	}
}

func TestRanker_FailedBatchUsesOneModel(t *testing.T) {
	mock := llm.NewMockProvider("")
	mock.EmbedFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, agenterrors.ErrProviderUnavailable
	}

	remote := NewRanker()
	remote.Vectorizer = vector.NewProviderVectorizer(mock, nil)
	local := NewRanker()

	text := "The deploy failed on staging. Lunch was great. Deploy retry worked."
	got := remote.Rank(context.Background(), text, nil, "deploy failure")
	want := local.Rank(context.Background(), text, nil, "deploy failure")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("fallback ranking differs from hashing ranking:\n got %+v\nwant %+v", got, want)
	}
}

func TestRanker_LocalVectorizerSkipsAdmit(t *testing.T) {
	admits := 0
	r := NewRanker().WithAdmit(func(ctx context.Context, fn func(context.Context) error) error {
		admits++
		return fn(ctx)
	})
	r.Rank(context.Background(), "One. Two.", nil, "two")
	if admits != 0 {
		t.Errorf("admits = %d, want 0 for hashing vectorizer", admits)
	}
}

func TestFitDocument(t *testing.T) {
	ctx := context.Background()
	text := "Lunch menu was great. The deploy pipeline failed on staging. Weather is sunny today. Pipeline retry succeeded."

	t.Run("fits", func(t *testing.T) {
		got, matched := FitDocument(ctx, nil, "short", []string{"short"}, "", 100)
		if got != "short" || !reflect.DeepEqual(matched, []string{"short"}) {
			t.Errorf("FitDocument() = %q, %v", got, matched)
		}
	})

	t.Run("ranked and reordered", func(t *testing.T) {
		limit := 70
		got, matched := FitDocument(ctx, NewRanker(), text, []string{"pipeline"}, "deploy pipeline failure", limit)
		if len(got) > limit {
			t.Fatalf("len = %d exceeds %d", len(got), limit)
		}
		if !strings.Contains(got, "The deploy pipeline failed on staging.") {
			t.Errorf("most relevant sentence missing: %q", got)
		}
		if i, j := strings.Index(got, "deploy"), strings.Index(got, "retry"); j >= 0 && j < i {
			t.Errorf("spans not in document order: %q", got)
		}
		if !reflect.DeepEqual(matched, []string{"pipeline"}) {
			t.Errorf("matched = %v", matched)
		}
	})

	t.Run("hard cut", func(t *testing.T) {
		long := strings.Repeat("word ", 40)
		got, _ := FitDocument(ctx, NewRanker(), long, nil, "", 12)
		if got == "" || len(got) > 12 {
			t.Errorf("FitDocument() = %q", got)
		}
	})

	t.Run("zero limit", func(t *testing.T) {
		if got, _ := FitDocument(ctx, nil, text, nil, "", 0); got != "" {
			t.Errorf("FitDocument() = %q", got)
		}
	})
}

func TestKeywordWindows(t *testing.T) {
	doc := "aaaaaaaaaa KEY bbbbbbbbbb cccccccccc other dddddddddd"

	t.Run("single window", func(t *testing.T) {
		got, found := KeywordWindows(doc, []string{"key"}, 10)
		if got != "aaaa KEY b" {
			t.Errorf("KeywordWindows() = %q", got)
		}
		if !reflect.DeepEqual(found, []string{"key"}) {
			t.Errorf("found = %v", found)
		}
	})

	t.Run("two windows", func(t *testing.T) {
		got, found := KeywordWindows(doc, []string{"other", "key"}, 10)
		if got != "aaaa KEY b cccc other" {
			t.Errorf("KeywordWindows() = %q", got)
		}
		if !reflect.DeepEqual(found, []string{"key", "other"}) {
			t.Errorf("found = %v", found)
		}
	})

	t.Run("overlap merged", func(t *testing.T) {
		got, _ := KeywordWindows("xx ab ab xx", []string{"ab"}, 6)
		if got != "xx ab ab" {
			t.Errorf("KeywordWindows() = %q", got)
		}
	})

	t.Run("no match returns document", func(t *testing.T) {
		if got, found := KeywordWindows(doc, []string{"missing"}, 10); got != doc || found != nil {
			t.Errorf("KeywordWindows() = %q, %v", got, found)
		}
	})

	t.Run("no keywords", func(t *testing.T) {
		if got, _ := KeywordWindows(doc, nil, 10); got != doc {
			t.Errorf("KeywordWindows() = %q", got)
		}
	})

	t.Run("empty document", func(t *testing.T) {
		if got, _ := KeywordWindows("", []string{"a"}, 10); got != "" {
			t.Errorf("KeywordWindows() = %q", got)
		}
	})
}

func TestEstimatedCounter(t *testing.T) {
	c := NewEstimatedCounter(4)
	if got := c.Count(strings.Repeat("a", 40)); got != 10 {
		t.Errorf("Count() = %d, want 10", got)
	}
	msgs := []message.Message{message.NewSystemMessage("abcd"), message.NewUserMessage("abcdabcd")}
	// 每条 4 开销 + 角色 + 内容，末尾 3
	want := (4 + c.Count("system") + 1) + (4 + c.Count("user") + 2) + 3
	if got := c.CountMessages(msgs); got != want {
		t.Errorf("CountMessages() = %d, want %d", got, want)
	}
}

func TestDefaultTokenCounter(t *testing.T) {
	if c := DefaultTokenCounter(); c.Count("hello world, this is a test") <= 0 {
		t.Error("DefaultTokenCounter().Count() should be positive")
	}
}
