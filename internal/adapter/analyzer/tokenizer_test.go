package analyzer

import (
	"reflect"
	"testing"
)

func TestTokenizer_Tokenize_WithFolding(t *testing.T) {
	tok := NewTokenizer(true)

	tokens := tok.Tokenize("blue shirts and leather bags")
	if len(tokens) != 4 {
		t.Errorf("expected 4 tokens, got %d: %v", len(tokens), tokens)
	}

	hasShirt := false
	for _, token := range tokens {
		if token == "shirt" {
			hasShirt = true
		}
	}
	if !hasShirt {
		t.Errorf("expected 'shirts' to fold to 'shirt', got %v", tokens)
	}
}

func TestTokenizer_Tokenize_WithoutFolding(t *testing.T) {
	tok := NewTokenizer(false)

	tokens := tok.Tokenize("blue shirts and leather bags")
	if len(tokens) != 4 {
		t.Errorf("expected 4 tokens, got %d: %v", len(tokens), tokens)
	}

	hasShirts := false
	for _, token := range tokens {
		if token == "shirts" {
			hasShirts = true
		}
	}
	if !hasShirts {
		t.Errorf("expected 'shirts' to remain unfolded, got %v", tokens)
	}
}

func TestTokenizer_StopwordRemoval(t *testing.T) {
	tok := NewTokenizer(false)

	tokens := tok.Tokenize("the quick brown fox")
	for _, token := range tokens {
		if token == "the" {
			t.Errorf("stopword 'the' should be removed, got %v", tokens)
		}
	}
}

func TestTokenizer_ShortWordRemoval(t *testing.T) {
	tok := NewTokenizer(false)

	tokens := tok.Tokenize("a I go to")
	for _, token := range tokens {
		if len(token) < 2 {
			t.Errorf("short word should be removed: %s", token)
		}
	}
}

func TestTokenizer_CountTokens(t *testing.T) {
	tok := NewTokenizer(false)

	count := tok.CountTokens("hello world this is a test")
	if count == 0 {
		t.Error("expected non-zero token count")
	}
	if count < 6 {
		t.Errorf("expected count >= 6 words, got %d", count)
	}
}

func TestTokenizer_EmptyInput(t *testing.T) {
	tok := NewTokenizer(true)

	tokens := tok.Tokenize("")
	if len(tokens) != 0 {
		t.Errorf("expected 0 tokens for empty input, got %d", len(tokens))
	}

	count := tok.CountTokens("")
	if count != 0 {
		t.Errorf("expected 0 count for empty input, got %d", count)
	}
}

func TestSplitWords(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"hello world", 2},
		{"t-shirt", 2},
		{"Price: $29.99", 3},
		{"CamelCase", 1},
		{"polka_dot", 2},
		{"123numbers456", 1},
	}

	for _, tt := range tests {
		words := splitWords(tt.input)
		if len(words) != tt.expected {
			t.Errorf("splitWords(%q) = %d words, want %d: %v", tt.input, len(words), tt.expected, words)
		}
	}
}

func TestWords(t *testing.T) {
	got := Words("Red T-Shirt, Slim FIT")
	want := []string{"red", "t", "shirt", "slim", "fit"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Words() = %v, want %v", got, want)
	}
}

func TestContainsPhrase(t *testing.T) {
	words := Words("a red t-shirt for summer")

	if !ContainsPhrase(words, []string{"t", "shirt"}) {
		t.Error("expected phrase 't shirt' to match")
	}
	if ContainsPhrase(words, []string{"shirt", "t"}) {
		t.Error("reversed phrase should not match")
	}
	if ContainsPhrase(words, nil) {
		t.Error("empty phrase should not match")
	}
	if ContainsPhrase(Words("redshirt"), []string{"red"}) {
		t.Error("substring should not count as a word match")
	}
}

func TestFoldPlural(t *testing.T) {
	tests := map[string]string{
		"shirts":      "shirt",
		"dresses":     "dress",
		"watches":     "watch",
		"accessories": "accessory",
		"dress":       "dress",
		"bus":         "bus",
		"jeans":       "jean",
		"bag":         "bag",
	}
	for in, want := range tests {
		if got := FoldPlural(in); got != want {
			t.Errorf("FoldPlural(%q) = %q, want %q", in, got, want)
		}
	}
}
