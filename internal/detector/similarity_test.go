package detector

import (
	"math"
	"testing"
)

func TestScoreIdenticalSentences(t *testing.T) {
	tokens := []string{"tôi", "yêu", "em"}
	score, method := Score(tokens, tokens)
	if score != 100 {
		t.Errorf("score = %g, want 100", score)
	}
	if method != MethodParaphrase {
		t.Errorf("method = %s, want %s", method, MethodParaphrase)
	}
}

func TestScoreReorderedSentenceIsExact(t *testing.T) {
	query := []string{"quick", "brown", "fox", "jumps"}
	candidate := []string{"jumps", "fox", "quick", "brown"}
	score, method := Score(query, candidate)
	if score != 100 {
		t.Errorf("score = %g, want 100", score)
	}
	if method != MethodParaphrase {
		t.Errorf("method = %s, want %s", method, MethodParaphrase)
	}
}

func TestScoreDisjointSentences(t *testing.T) {
	score, _ := Score([]string{"alpha", "beta"}, []string{"gamma", "delta"})
	if score != 0 {
		t.Errorf("score = %g, want 0", score)
	}
}

func TestScoreEmptyInput(t *testing.T) {
	if score, _ := Score(nil, []string{"alpha"}); score != 0 {
		t.Errorf("score with empty query = %g, want 0", score)
	}
	if score, _ := Score([]string{"alpha"}, nil); score != 0 {
		t.Errorf("score with empty candidate = %g, want 0", score)
	}
}

func TestScoreKnownValues(t *testing.T) {
	tests := []struct {
		name       string
		query      []string
		candidate  []string
		wantScore  float64
		wantMethod Method
	}{
		{
			// inter=2, union=6: jaccard 33.3, overlap 50, cosine 50.
			// Overlap and cosine tie; the later metric wins.
			name:       "half overlap",
			query:      []string{"a", "b", "c", "d"},
			candidate:  []string{"a", "b", "e", "f"},
			wantScore:  50,
			wantMethod: MethodCosine,
		},
		{
			// Query fully contained in a longer candidate: overlap is 1.0
			// while the paraphrase length-ratio gate rejects the pair.
			name:       "query subset of candidate",
			query:      []string{"a", "b", "c"},
			candidate:  []string{"a", "b", "c", "d", "e", "f"},
			wantScore:  100,
			wantMethod: MethodOverlap,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, method := Score(tt.query, tt.candidate)
			if math.Abs(score-tt.wantScore) > 1e-9 {
				t.Errorf("score = %g, want %g", score, tt.wantScore)
			}
			if method != tt.wantMethod {
				t.Errorf("method = %s, want %s", method, tt.wantMethod)
			}
		})
	}
}

func TestScoreCountsRepeatedTokensAsMultiset(t *testing.T) {
	// "buffalo buffalo buffalo" vs one "buffalo": intersection is 1, not 3.
	score, method := Score([]string{"buffalo", "buffalo", "buffalo"}, []string{"buffalo"})
	wantCosine := 1.0 / math.Sqrt(3) * 100
	if math.Abs(score-wantCosine) > 1e-9 {
		t.Errorf("score = %g, want %g", score, wantCosine)
	}
	if method != MethodCosine {
		t.Errorf("method = %s, want %s", method, MethodCosine)
	}
}

func TestParaphraseGating(t *testing.T) {
	tests := []struct {
		name     string
		inter    int
		qn, cn   int
		wantZero bool
	}{
		{"word overlap below gate", 5, 10, 10, true},
		{"length ratio below gate", 6, 10, 6, true},
		{"both gates pass", 7, 10, 8, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := paraphraseScore(tt.inter, tt.qn, tt.cn)
			if tt.wantZero && got != 0 {
				t.Errorf("paraphraseScore = %g, want 0", got)
			}
			if !tt.wantZero && got == 0 {
				t.Error("paraphraseScore = 0, want positive")
			}
		})
	}
}
