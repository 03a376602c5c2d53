package tokenizer

import (
	"reflect"
	"testing"
)

func TestTokenizeNormalises(t *testing.T) {
	tok := New(DefaultStopwords, 1)
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"lowercases and strips punctuation", "Hello, WORLD", []string{"hello", "world"}},
		{"keeps digits", "version 42 shipped", []string{"version", "42", "shipped"}},
		{"filters stopwords", "the cat and the dog", []string{"cat", "dog"}},
		{"preserves diacritics", "Tôi yêu em", []string{"tôi", "yêu", "em"}},
		{"empty input", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tok.Tokenize(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTokenizeCanonicalisesCombiningMarks(t *testing.T) {
	tok := New(nil, 1)
	// "Tôi" with a precomposed o-circumflex versus a combining circumflex.
	composed := tok.Tokenize("Tôi")
	decomposed := tok.Tokenize("Tôi")
	if !reflect.DeepEqual(composed, decomposed) {
		t.Errorf("composed %v and decomposed %v forms tokenize differently", composed, decomposed)
	}
}

func TestSplitSentenceBoundaries(t *testing.T) {
	tok := New(nil, 1)
	sentences := tok.Split("One two three. Four five six! Seven eight nine? Ten eleven twelve; cuối cùng rồi…")
	if len(sentences) != 5 {
		t.Fatalf("got %d sentences, want 5", len(sentences))
	}
	if sentences[0].Raw != "One two three" {
		t.Errorf("first sentence raw = %q", sentences[0].Raw)
	}
	want := []string{"seven", "eight", "nine"}
	if !reflect.DeepEqual(sentences[2].Tokens, want) {
		t.Errorf("third sentence tokens = %v, want %v", sentences[2].Tokens, want)
	}
}

func TestSplitDropsShortSentences(t *testing.T) {
	tok := New(DefaultStopwords, 3)
	sentences := tok.Split("Yes. The quick brown fox jumps. No way.")
	if len(sentences) != 1 {
		t.Fatalf("got %d sentences, want 1: %v", len(sentences), sentences)
	}
	if sentences[0].Raw != "The quick brown fox jumps" {
		t.Errorf("surviving sentence = %q", sentences[0].Raw)
	}
}

func TestSplitWithoutTrailingTerminator(t *testing.T) {
	tok := New(nil, 1)
	sentences := tok.Split("no punctuation at all here")
	if len(sentences) != 1 {
		t.Fatalf("got %d sentences, want 1", len(sentences))
	}
}

func TestSplitIsDeterministic(t *testing.T) {
	tok := New(DefaultStopwords, 2)
	text := "Cả nhà thương nhau. Plagiarism detection is tricky! Same text, same result."
	first := tok.Split(text)
	second := tok.Split(text)
	if !reflect.DeepEqual(first, second) {
		t.Error("identical input produced different sentences")
	}
}
