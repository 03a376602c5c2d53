// Package detector implements the duplication detection engine: candidate
// generation against the inverted index, multi-metric similarity scoring,
// and report aggregation. The Engine is the process-wide service object that
// owns the index, the document registry, and the snapshot lifecycle.
package detector

import "time"

// Document is the raw ingestion input.
type Document struct {
	ID   string `json:"documentId"`
	Text string `json:"text"`
}

// IngestResult reports what a successful ingestion produced.
type IngestResult struct {
	Success          bool `json:"success"`
	SentenceCount    int  `json:"sentenceCount"`
	UniqueTokenCount int  `json:"uniqueTokenCount"`
}

// ItemResult is the per-document outcome of a batch ingestion. Failures are
// isolated: one bad document never aborts the batch.
type ItemResult struct {
	DocumentID string        `json:"documentId"`
	Result     *IngestResult `json:"result,omitempty"`
	Err        error         `json:"-"`
	Error      string        `json:"error,omitempty"`
}

// TreeStats is the introspection view of the engine.
type TreeStats struct {
	TotalDocuments int   `json:"totalDocuments"`
	TotalTokens    int   `json:"totalTokens"`
	MemoryUsage    int64 `json:"memoryUsage"`
	Initialized    bool  `json:"initialized"`
}

// Options tune a single plagiarism check. Zero values fall back to the
// engine configuration.
type Options struct {
	// MinSimilarity overrides the sentence threshold (0-100).
	MinSimilarity float64 `json:"minSimilarity"`
	// ChunkSize is the number of query sentences processed between context
	// deadline checks.
	ChunkSize int `json:"chunkSize"`
	// MaxResults caps the ranked match list.
	MaxResults int `json:"maxResults"`
}

// Match is one query sentence matched against its best sentence in one
// source document.
type Match struct {
	QueryIndex    int     `json:"queryIndex"`
	Source        string  `json:"source"`
	SentenceIndex int     `json:"sourceSentenceIndex"`
	Similarity    float64 `json:"similarity"`
	Text          string  `json:"text"`
	Method        Method  `json:"method"`
}

// DocumentMatch is the per-document aggregation: the mean similarity over
// that document's matched sentences only.
type DocumentMatch struct {
	Source           string  `json:"source"`
	Rate             float64 `json:"rate"`
	MatchedSentences int     `json:"matchedSentences"`
}

// Report is the full duplication report for one checked text.
type Report struct {
	DuplicatePercentage      float64         `json:"duplicatePercentage"`
	Status                   string          `json:"status"`
	Confidence               float64         `json:"confidence"`
	Matches                  []Match         `json:"matches"`
	Documents                []DocumentMatch `json:"documents"`
	Sources                  []string        `json:"sources"`
	TotalDocumentsChecked    int             `json:"totalDocumentsChecked"`
	TotalInputSentences      int             `json:"totalInputSentences"`
	TotalDuplicatedSentences int             `json:"totalDuplicatedSentences"`
	DTotal                   float64         `json:"dtotal"`
	DAB                      float64         `json:"dab"`
	MostSimilarDocument      string          `json:"mostSimilarDocument"`
	Partial                  bool            `json:"partial"`
	CheckedAt                time.Time       `json:"checkedAt"`
}

// Ingestion state machine statuses.
const (
	StatusPending   = "PENDING"
	StatusTokenized = "TOKENIZED"
	StatusIndexed   = "INDEXED"
	StatusPersisted = "PERSISTED"
	StatusFailed    = "FAILED"
)

// Report status classifications.
const (
	ReportStatusHigh   = "high"
	ReportStatusMedium = "medium"
	ReportStatusLow    = "low"
)
