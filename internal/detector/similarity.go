package detector

import "math"

// Method tags which similarity metric produced a score.
type Method string

const (
	MethodJaccard    Method = "jaccard"
	MethodOverlap    Method = "overlap"
	MethodCosine     Method = "cosine"
	MethodParaphrase Method = "paraphrase"
)

// Paraphrase gating: below these bounds the paraphrase metric scores zero.
const (
	paraphraseMinWordOverlap = 0.6
	paraphraseMinLengthRatio = 0.7
)

// tokenCounts is a token multiset as a count map.
type tokenCounts map[string]int

func toCounts(tokens []string) tokenCounts {
	counts := make(tokenCounts, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	return counts
}

// intersectionSize is the multiset intersection: the sum of per-token
// minimum counts.
func intersectionSize(a, b tokenCounts) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	size := 0
	for token, ca := range a {
		cb := b[token]
		if cb < ca {
			size += cb
		} else {
			size += ca
		}
	}
	return size
}

// Score computes all four similarity metrics between the query and candidate
// token multisets and returns the maximum on the 0-100 scale, tagged with
// the metric that produced it. Metrics are evaluated in a fixed order
// (jaccard, overlap, cosine, paraphrase) and ties go to the later metric, so
// a qualifying paraphrase claims a reordered exact match.
func Score(query, candidate []string) (float64, Method) {
	qn, cn := len(query), len(candidate)
	if qn == 0 || cn == 0 {
		return 0, MethodJaccard
	}
	inter := intersectionSize(toCounts(query), toCounts(candidate))
	union := qn + cn - inter

	scores := []struct {
		value  float64
		method Method
	}{
		{float64(inter) / float64(union), MethodJaccard},
		{float64(inter) / float64(qn), MethodOverlap},
		{float64(inter) / math.Sqrt(float64(qn)*float64(cn)), MethodCosine},
		{paraphraseScore(inter, qn, cn), MethodParaphrase},
	}

	best := scores[0]
	for _, s := range scores[1:] {
		if s.value >= best.value {
			best = s
		}
	}
	return best.value * 100, best.method
}

// paraphraseScore is the word-order-invariant metric: wordOverlap times
// lengthRatio, gated so short or weakly overlapping pairs score zero.
func paraphraseScore(inter, qn, cn int) float64 {
	longer, shorter := qn, cn
	if cn > qn {
		longer, shorter = cn, qn
	}
	wordOverlap := float64(inter) / float64(longer)
	lengthRatio := float64(shorter) / float64(longer)
	if wordOverlap < paraphraseMinWordOverlap || lengthRatio < paraphraseMinLengthRatio {
		return 0
	}
	return wordOverlap * lengthRatio
}
