package detector

import (
	"math"
	"sort"
	"time"

	"github.com/duplicheck/duplicheck/internal/tokenizer"
)

// buildReport aggregates per-sentence matches into the final report. The
// per-document rate averages over that document's matched sentences only;
// unmatched sentences are tracked through the separate coverage ratio
// (dtotal). The overall percentage is the single highest per-document rate,
// not a cross-document mean, which keeps the headline figure consistent with
// the top entry of the breakdown.
func buildReport(
	matches []Match,
	querySentences []tokenizer.Sentence,
	docTokens func(docID string) []string,
	thresholds Thresholds,
	totalDocumentsChecked int,
	partial bool,
) *Report {
	report := &Report{
		Matches:               matches,
		Documents:             []DocumentMatch{},
		Sources:               []string{},
		TotalDocumentsChecked: totalDocumentsChecked,
		TotalInputSentences:   len(querySentences),
		Status:                ReportStatusLow,
		Partial:               partial,
		CheckedAt:             time.Now().UTC(),
	}
	if report.Matches == nil {
		report.Matches = []Match{}
	}

	perDoc := make(map[string][]float64)
	matchedQuery := make(map[int]struct{})
	for _, m := range matches {
		perDoc[m.Source] = append(perDoc[m.Source], m.Similarity)
		matchedQuery[m.QueryIndex] = struct{}{}
	}
	report.TotalDuplicatedSentences = len(matchedQuery)
	if report.TotalInputSentences > 0 {
		report.DTotal = round4(float64(report.TotalDuplicatedSentences) / float64(report.TotalInputSentences))
	}

	for docID, scores := range perDoc {
		sum := 0.0
		for _, s := range scores {
			sum += s
		}
		report.Documents = append(report.Documents, DocumentMatch{
			Source:           docID,
			Rate:             round4(sum / float64(len(scores))),
			MatchedSentences: len(scores),
		})
	}
	sort.Slice(report.Documents, func(i, j int) bool {
		if report.Documents[i].Rate != report.Documents[j].Rate {
			return report.Documents[i].Rate > report.Documents[j].Rate
		}
		return report.Documents[i].Source < report.Documents[j].Source
	})
	for _, d := range report.Documents {
		report.Sources = append(report.Sources, d.Source)
	}

	if len(report.Documents) > 0 {
		top := report.Documents[0]
		report.DuplicatePercentage = top.Rate
		report.MostSimilarDocument = top.Source
		report.DAB = round4(symmetricOverlap(querySentences, docTokens(top.Source)))
	}
	report.Status = thresholds.classify(report.DuplicatePercentage)
	report.Confidence = confidence(report, partial)
	return report
}

// symmetricOverlap is the dab figure: multiset intersection size over the
// average of the two token multiset sizes.
func symmetricOverlap(querySentences []tokenizer.Sentence, docTokens []string) float64 {
	queryTokens := make([]string, 0)
	for _, s := range querySentences {
		queryTokens = append(queryTokens, s.Tokens...)
	}
	if len(queryTokens) == 0 || len(docTokens) == 0 {
		return 0
	}
	inter := intersectionSize(toCounts(queryTokens), toCounts(docTokens))
	avg := float64(len(queryTokens)+len(docTokens)) / 2
	return float64(inter) / avg
}

// confidence derives a reliability measure from corroborating-match count
// and score margin. Partial (deadline-exceeded) results are degraded.
func confidence(report *Report, partial bool) float64 {
	if len(report.Matches) == 0 {
		return 0
	}
	c := 0.5
	if len(report.Documents) >= 3 {
		c += 0.2
	}
	top := 0.0
	for _, m := range report.Matches {
		if m.Similarity > top {
			top = m.Similarity
		}
	}
	if top > 80 {
		c += 0.3
	}
	if c > 1 {
		c = 1
	}
	if partial {
		c /= 2
	}
	return round4(c)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
