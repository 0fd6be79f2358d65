package keyword

import (
	"reflect"
	"testing"
)

func TestRAKE_Extract(t *testing.T) {
	r := NewRAKE()
	kws := r.Extract("This is a test sentence for keyword extraction.")

	if len(kws) == 0 {
		t.Fatal("expected keywords")
	}
	// "test sentence" 与 "keyword extraction" 均为两词短语
	phrases := Phrases(kws, 0)
	want := []string{"test sentence", "keyword extraction"}
	if !reflect.DeepEqual(phrases, want) {
		t.Errorf("Extract() phrases = %v, want %v", phrases, want)
	}
	if kws[0].Score != 4 {
		t.Errorf("score = %v, want 4", kws[0].Score)
	}
}

func TestRAKE_ScoreOrder(t *testing.T) {
	r := NewRAKE()
	kws := r.Extract("Linear constraints over natural numbers. Minimal generating sets; natural numbers")

	if len(kws) == 0 {
		t.Fatal("expected keywords")
	}
	for i := 1; i < len(kws); i++ {
		if kws[i].Score > kws[i-1].Score {
			t.Fatalf("not sorted by score: %+v", kws)
		}
	}
	seen := map[string]bool{}
	for _, kw := range kws {
		if seen[kw.Phrase] {
			t.Errorf("duplicate phrase %q", kw.Phrase)
		}
		seen[kw.Phrase] = true
	}
}

func TestRAKE_Deterministic(t *testing.T) {
	r := NewRAKE()
	text := "Kubernetes cluster upgrade failed during node drain. Node drain timeout, cluster upgrade rollback."

	first := r.Extract(text)
	for i := 0; i < 20; i++ {
		if got := r.Extract(text); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %v vs %v", i, got, first)
		}
	}
}

func TestRAKE_Empty(t *testing.T) {
	r := NewRAKE()
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"whitespace", "   \n\t "},
		{"stop words only", "the and of it is"},
		{"punctuation only", "?!,.;:--//"},
		{"numbers only", "123 456, 789"},
		{"invalid utf8", "\xff\xfe\xfd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Extract(tt.text)
			if got == nil || len(got) != 0 {
				t.Errorf("Extract(%q) = %v, want empty non-nil slice", tt.text, got)
			}
		})
	}
}

func TestRAKE_Options(t *testing.T) {
	text := "quick brown fox jumps, lazy dog"

	r := NewRAKE(WithMaxWords(2))
	if got := Phrases(r.Extract(text), 0); !reflect.DeepEqual(got, []string{"lazy dog"}) {
		t.Errorf("WithMaxWords(2) = %v", got)
	}

	r = NewRAKE(WithStopWords([]string{"brown"}))
	got := Phrases(r.Extract(text), 0)
	want := []string{"fox jumps", "lazy dog", "quick"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("WithStopWords = %v, want %v", got, want)
	}

	r = NewRAKE(WithMinWordChars(4))
	for _, p := range Phrases(r.Extract(text), 0) {
		if p == "fox" || p == "dog" {
			t.Errorf("short word %q should be dropped", p)
		}
	}
}

func TestRAKE_Normalization(t *testing.T) {
	r := NewRAKE()
	// 全角字符经 NFKC 归一后与半角一致
	full := Phrases(r.Extract("ＤＡＴＡ ＰＩＰＥＬＩＮＥ"), 0)
	half := Phrases(r.Extract("data pipeline"), 0)
	if !reflect.DeepEqual(full, half) {
		t.Errorf("normalization mismatch: %v vs %v", full, half)
	}
}

func TestPhrases(t *testing.T) {
	kws := []Keyword{{"a b", 4}, {"c", 1}, {"d", 1}}
	if got := Phrases(kws, 2); !reflect.DeepEqual(got, []string{"a b", "c"}) {
		t.Errorf("Phrases(2) = %v", got)
	}
	if got := Phrases(kws, 10); len(got) != 3 {
		t.Errorf("Phrases(10) = %v", got)
	}
	if got := Phrases(nil, 3); len(got) != 0 {
		t.Errorf("Phrases(nil) = %v", got)
	}
}
