package detector

import (
	"sort"

	"github.com/duplicheck/duplicheck/internal/index"
)

// candidate is one source sentence shortlisted for scoring, with the number
// of distinct query tokens it shares.
type candidate struct {
	docID         string
	sentenceIndex int
	overlap       int
}

// shortlist tallies per-(document, sentence) occurrence counts from the
// fetched postings and discards candidates sharing fewer than
// minOverlapFraction of the query's distinct tokens. The cutoff bounds
// scoring work to plausible matches without a full corpus scan. Results are
// sorted by (docID, sentenceIndex) for deterministic scoring order.
func shortlist(postingsPerToken map[string][]index.Posting, distinctQueryTokens int, minOverlapFraction float64) []candidate {
	if distinctQueryTokens == 0 {
		return nil
	}
	type key struct {
		docID         string
		sentenceIndex int
	}
	tally := make(map[key]int)
	for _, postings := range postingsPerToken {
		for _, p := range postings {
			tally[key{p.DocID, p.SentenceIndex}]++
		}
	}

	minOverlap := minOverlapFraction * float64(distinctQueryTokens)
	result := make([]candidate, 0, len(tally))
	for k, count := range tally {
		if float64(count) < minOverlap {
			continue
		}
		result = append(result, candidate{
			docID:         k.docID,
			sentenceIndex: k.sentenceIndex,
			overlap:       count,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].docID != result[j].docID {
			return result[i].docID < result[j].docID
		}
		return result[i].sentenceIndex < result[j].sentenceIndex
	})
	return result
}

// distinct returns the deduplicated tokens in first-seen order.
func distinct(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	result := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		result = append(result, t)
	}
	return result
}
