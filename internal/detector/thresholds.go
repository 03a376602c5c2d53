package detector

import (
	"time"

	apperrors "github.com/duplicheck/duplicheck/pkg/errors"
)

// Thresholds are the runtime-tunable scoring cutoffs consumed by the
// aggregator, versioned with an update timestamp and author.
type Thresholds struct {
	// Sentence is the minimum similarity (0-100) for a candidate sentence
	// to count as a match.
	Sentence float64 `json:"sentenceThreshold"`
	// HighDuplication is the overall percentage above which a report is
	// classified high.
	HighDuplication float64 `json:"highDuplicationThreshold"`
	// DocumentComparison is the overall percentage above which a report is
	// classified medium.
	DocumentComparison float64 `json:"documentComparisonThreshold"`

	UpdatedAt time.Time `json:"updatedAt"`
	UpdatedBy string    `json:"updatedBy"`
}

// Validate checks every threshold is in the 0-100 range and the status bands
// do not invert.
func (t Thresholds) Validate() error {
	for name, v := range map[string]float64{
		"sentenceThreshold":           t.Sentence,
		"highDuplicationThreshold":    t.HighDuplication,
		"documentComparisonThreshold": t.DocumentComparison,
	} {
		if v < 0 || v > 100 {
			return apperrors.Newf(apperrors.ErrValidation, "%s must be between 0 and 100, got %g", name, v)
		}
	}
	if t.DocumentComparison > t.HighDuplication {
		return apperrors.Newf(apperrors.ErrValidation,
			"documentComparisonThreshold %g exceeds highDuplicationThreshold %g",
			t.DocumentComparison, t.HighDuplication)
	}
	return nil
}

// classify maps an overall duplicate percentage to a report status.
func (t Thresholds) classify(overall float64) string {
	switch {
	case overall > t.HighDuplication:
		return ReportStatusHigh
	case overall > t.DocumentComparison:
		return ReportStatusMedium
	default:
		return ReportStatusLow
	}
}
