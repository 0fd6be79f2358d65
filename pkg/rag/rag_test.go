package rag

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	agenterrors "github.com/easyops/ragcontext-go/pkg/core/errors"
	"github.com/easyops/ragcontext-go/pkg/vector"
)

func TestDocument_Validate(t *testing.T) {
	if err := (Document{Text: "x"}).Validate(); !errors.Is(err, agenterrors.ErrValidation) {
		t.Errorf("missing source: error = %v", err)
	}
	if err := (Document{Source: "slack"}).Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestDocument_Citation(t *testing.T) {
	tests := []struct {
		doc  Document
		want string
	}{
		{Document{ID: "1", Link: "https://x/1", LinkText: "Issue 1", Source: "github"}, "[Issue 1](https://x/1)"},
		{Document{ID: "1", Link: "https://x/1", Source: "github"}, "[1](https://x/1)"},
		{Document{ID: "42", Source: "gong"}, "42"},
		{Document{Source: "web"}, "web"},
	}
	for _, tt := range tests {
		if got := tt.doc.Citation(); got != tt.want {
			t.Errorf("Citation() = %q, want %q", got, tt.want)
		}
	}
}

func TestMultiDocumentContext_AppendOrderAndDuplicates(t *testing.T) {
	m := NewMultiDocumentContext("why?", "be brief")

	entries := []IndividualContext{
		{ID: "a", Source: "slack", Text: "one"},
		{ID: "a", Source: "github", Text: "two"},
		{ID: "b", Source: "slack", Text: "three"},
	}
	for _, e := range entries {
		if err := m.Append(e); err != nil {
			t.Fatalf("Append(%+v) error = %v", e, err)
		}
	}

	err := m.Append(IndividualContext{ID: "a", Source: "slack", Text: "dup"})
	if !errors.Is(err, agenterrors.ErrDuplicateContext) {
		t.Fatalf("duplicate Append() error = %v", err)
	}

	if got := m.IDs(); !reflect.DeepEqual(got, []string{"a", "a", "b"}) {
		t.Errorf("IDs() = %v", got)
	}
	if m.TotalLength() != len("one")+len("two")+len("three") {
		t.Errorf("TotalLength() = %d", m.TotalLength())
	}
}

func TestMultiDocumentContext_FailedEntriesDoNotCollide(t *testing.T) {
	m := NewMultiDocumentContext("q", "")
	for i := 0; i < 3; i++ {
		if err := m.Append(FailedContext("web", errors.New("down"))); err != nil {
			t.Fatalf("Append failed entry %d: %v", i, err)
		}
	}
	for _, c := range m.Contexts() {
		if !c.Failed() || c.Text != "" {
			t.Errorf("unexpected failed entry: %+v", c)
		}
	}
}

func TestMultiDocumentContext_ResponseOnce(t *testing.T) {
	m := NewMultiDocumentContext("q", "")
	if _, ok := m.Response(); ok {
		t.Fatal("response should be unset")
	}
	if err := m.SetResponse("first"); err != nil {
		t.Fatalf("SetResponse() error = %v", err)
	}
	if err := m.SetResponse("second"); !errors.Is(err, agenterrors.ErrResponseAlreadySet) {
		t.Fatalf("second SetResponse() error = %v", err)
	}
	if got, _ := m.Response(); got != "first" {
		t.Errorf("Response() = %q", got)
	}
}

func TestMultiDocumentContext_ContextsIsCopy(t *testing.T) {
	m := NewMultiDocumentContext("q", "")
	_ = m.Append(IndividualContext{ID: "1", Source: "s", Text: "orig"})

	c := m.Contexts()
	c[0].Text = "mutated"
	if m.Contexts()[0].Text != "orig" {
		t.Error("Contexts() must return a copy")
	}
}

func TestMultiDocumentContext_CombinedDocument(t *testing.T) {
	m := NewMultiDocumentContext("q", "")
	_ = m.Append(NewIndividualContext(Document{ID: "1", Link: "https://a", LinkText: "A", Source: "s", Text: "alpha long"}, "alpha", nil))
	_ = m.Append(FailedContext("t", errors.New("boom")))
	_ = m.Append(NewIndividualContext(Document{ID: "2", Source: "u"}, "beta", nil))

	want := "--- [A](https://a) ---\nalpha\n\n--- 2 ---\nbeta"
	if got := m.CombinedDocument(); got != want {
		t.Errorf("CombinedDocument() = %q, want %q", got, want)
	}
	if m.Contexts()[0].Original != len("alpha long") {
		t.Errorf("Original = %d", m.Contexts()[0].Original)
	}
}

func TestMultiDocumentContext_Debug(t *testing.T) {
	m := NewMultiDocumentContext("q", "")
	m.WithDebug("tool=a status=ok").WithDebug("tool=b status=failed")
	if got := m.Debug(); got != "tool=a status=ok\ntool=b status=failed" {
		t.Errorf("Debug() = %q", got)
	}
}

func TestMultiDocumentContext_ConcurrentAppend(t *testing.T) {
	m := NewMultiDocumentContext("q", "")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = m.Append(IndividualContext{ID: strings.Repeat("x", i+1), Source: "s"})
		}(i)
	}
	wg.Wait()
	if len(m.Contexts()) != 50 {
		t.Errorf("len(Contexts()) = %d", len(m.Contexts()))
	}
}

func TestMultiDocumentContext_Annotate(t *testing.T) {
	m := NewMultiDocumentContext("q", "")
	_ = m.Append(IndividualContext{ID: "INC-1", Source: "jira",
		Text: "The database migration failed on the primary node. Lunch was served at noon."})
	_ = m.SetResponse("The database migration failed on the primary node. Nothing else happened today at all.")

	got, err := m.Annotate(context.Background(), vector.NewHashingVectorizer(0), 0.9, 3)
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}
	if !strings.Contains(got, "primary node. [1]") {
		t.Errorf("expected annotation marker, got %q", got)
	}
	if !strings.Contains(got, "* [1]: The database migration failed on the primary node. (INC-1)") {
		t.Errorf("expected footnote, got %q", got)
	}
	if strings.Contains(got, "[2]") {
		t.Errorf("unrelated sentence should not be annotated: %q", got)
	}
}

func TestMultiDocumentContext_AnnotateRepeatedSentence(t *testing.T) {
	m := NewMultiDocumentContext("q", "")
	_ = m.Append(IndividualContext{ID: "INC-1", Source: "jira",
		Text: "The database migration failed on the primary node."})
	_ = m.SetResponse("The database migration failed on the primary node.\nThe database migration failed on the primary node.")

	got, err := m.Annotate(context.Background(), vector.NewHashingVectorizer(0), 0.9, 3)
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}
	if strings.Contains(got, "[1] [1]") {
		t.Errorf("first occurrence marked twice: %q", got)
	}
	if n := strings.Count(got, "primary node. [1]"); n != 2 {
		t.Errorf("marked occurrences = %d, want 2: %q", n, got)
	}
	if n := strings.Count(got, "* [1]:"); n != 1 {
		t.Errorf("footnotes = %d, want 1: %q", n, got)
	}
}

func TestMultiDocumentContext_AnnotateWithoutResponse(t *testing.T) {
	m := NewMultiDocumentContext("q", "")
	got, err := m.Annotate(context.Background(), vector.NewHashingVectorizer(0), 0.5, 1)
	if err != nil || got != "" {
		t.Errorf("Annotate() = %q, %v", got, err)
	}
}

func TestMultiDocumentContext_CacheKeyAndStructuredConcurrent(t *testing.T) {
	m := NewMultiDocumentContext("q", "")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.SetCacheKey("abc")
			m.SetStructured(map[string]int{"n": 1})
		}()
		go func() {
			defer wg.Done()
			_ = m.CacheKey()
			_ = m.Structured()
			_ = m.Debug()
		}()
	}
	wg.Wait()

	if m.CacheKey() != "abc" {
		t.Errorf("CacheKey() = %q", m.CacheKey())
	}
	if _, ok := m.Structured().(map[string]int); !ok {
		t.Errorf("Structured() = %T", m.Structured())
	}
}
