package detector

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/duplicheck/duplicheck/internal/index"
	"github.com/duplicheck/duplicheck/internal/registry"
	"github.com/duplicheck/duplicheck/internal/snapshot"
	"github.com/duplicheck/duplicheck/internal/tokenizer"
	"github.com/duplicheck/duplicheck/pkg/config"
	apperrors "github.com/duplicheck/duplicheck/pkg/errors"
	"github.com/duplicheck/duplicheck/pkg/metrics"
	"github.com/duplicheck/duplicheck/pkg/resilience"
)

// SnapshotStore is the save/load contract of the persistence adapter.
type SnapshotStore interface {
	Save(ctx context.Context, state *snapshot.State) error
	Load(ctx context.Context) (*snapshot.State, error)
}

// StatusRecorder receives ingestion state machine transitions. Recording is
// best effort and must never block or fail ingestion.
type StatusRecorder interface {
	Mark(ctx context.Context, docID, status string)
	Delete(ctx context.Context, docID string)
}

// Engine is the process-wide detection service. Queries take the shared
// lock for their whole lookup-and-score phase; mutations take the exclusive
// lock for the full insert/remove-plus-rebalance sequence, so a reader never
// observes a partially rotated tree and at most one structural mutation
// proceeds at a time.
type Engine struct {
	mu       sync.RWMutex
	tok      *tokenizer.Tokenizer
	reg      *registry.Registry
	ix       *index.Index
	store    SnapshotStore
	recorder StatusRecorder
	metrics  *metrics.Metrics
	cfg      config.DetectorConfig
	logger   *slog.Logger

	// dirty tracks documents indexed since the last successful snapshot;
	// they move to PERSISTED when one completes.
	dirty map[string]struct{}

	thmu       sync.RWMutex
	thresholds Thresholds

	initialized bool
}

// New constructs an Engine. store, recorder, and m may be nil; the engine
// then runs without snapshots, status recording, or instrumentation.
func New(cfg config.DetectorConfig, tok *tokenizer.Tokenizer, store SnapshotStore, recorder StatusRecorder, m *metrics.Metrics) *Engine {
	if cfg.MinOverlapFraction <= 0 {
		cfg.MinOverlapFraction = 0.30
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 32
	}
	if cfg.MaxDocumentBytes <= 0 {
		cfg.MaxDocumentBytes = 1048576
	}
	e := &Engine{
		tok:      tok,
		reg:      registry.New(),
		ix:       index.New(),
		store:    store,
		recorder: recorder,
		metrics:  m,
		cfg:      cfg,
		logger:   slog.Default().With("component", "detector"),
		dirty:    make(map[string]struct{}),
		thresholds: Thresholds{
			Sentence:           cfg.SentenceThreshold,
			HighDuplication:    cfg.HighDuplicationThreshold,
			DocumentComparison: cfg.DocumentComparisonThreshold,
			UpdatedAt:          time.Now().UTC(),
			UpdatedBy:          "config",
		},
	}
	if e.thresholds.Sentence <= 0 {
		e.thresholds.Sentence = 50
	}
	if e.thresholds.HighDuplication <= 0 {
		e.thresholds.HighDuplication = 30
	}
	if e.thresholds.DocumentComparison <= 0 {
		e.thresholds.DocumentComparison = 15
	}
	return e
}

// Load restores the engine from the snapshot store. A corrupt snapshot
// (checksum or balance invariant failure) falls back to a full re-index
// from the document registry block rather than trusting the token block.
func (e *Engine) Load(ctx context.Context) error {
	defer func() {
		e.mu.Lock()
		e.initialized = true
		e.mu.Unlock()
		e.updateGauges()
	}()
	if e.store == nil {
		return nil
	}
	state, err := e.store.Load(ctx)
	if err != nil {
		e.logger.Warn("snapshot load failed, starting empty", "error", err)
		return nil
	}
	if state == nil {
		e.logger.Info("no snapshot found, starting empty")
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.reg.Reset()
	for _, doc := range state.Documents {
		sentences := make([]tokenizer.Sentence, len(doc.Sentences))
		for i, s := range doc.Sentences {
			sentences[i] = tokenizer.Sentence{Raw: s.Raw, Tokens: s.Tokens}
		}
		e.reg.Add(&registry.DocumentEntry{
			ID:        doc.ID,
			Sentences: sentences,
			AddedAt:   time.Now().UTC(),
		})
	}

	if err := e.ix.RebuildFrom(state.Tokens); err != nil {
		e.logger.Error("snapshot index corrupt, rebuilding from registry",
			"error", apperrors.Newf(apperrors.ErrIndexCorruption, "%v", err),
		)
		e.reindexLocked()
	}
	e.logger.Info("engine restored from snapshot",
		"documents", e.reg.Len(),
		"tokens", e.ix.TokenCount(),
	)
	return nil
}

// AddDocument tokenizes and indexes one document. The document is either
// fully indexed or not indexed at all: a mid-document failure rolls back
// every posting already inserted and marks the document FAILED.
func (e *Engine) AddDocument(ctx context.Context, doc Document) (*IngestResult, error) {
	if err := e.validateDocument(doc); err != nil {
		e.countFailure(err)
		return nil, err
	}
	// A duplicate ID must not re-enter the state machine: the recorded
	// status still describes the document that remains indexed.
	if e.reg.Get(doc.ID) != nil {
		err := apperrors.Newf(apperrors.ErrDocumentExists, "document %s", doc.ID)
		e.countFailure(err)
		return nil, err
	}
	e.mark(ctx, doc.ID, StatusPending)

	sentences := e.tok.Split(doc.Text)
	e.mark(ctx, doc.ID, StatusTokenized)

	entry := &registry.DocumentEntry{
		ID:        doc.ID,
		Sentences: sentences,
		AddedAt:   time.Now().UTC(),
	}

	e.mu.Lock()
	if err := e.reg.Add(entry); err != nil {
		e.mu.Unlock()
		if errors.Is(err, apperrors.ErrDocumentExists) {
			// Lost a race with a concurrent add of the same ID. The
			// winner's document is indexed, so restore its status
			// instead of stamping the ID FAILED.
			e.mark(ctx, doc.ID, StatusIndexed)
		} else {
			e.mark(ctx, doc.ID, StatusFailed)
		}
		e.countFailure(err)
		return nil, err
	}
	if err := e.ix.AddDocument(doc.ID, entry.TokenSets()); err != nil {
		e.reg.Remove(doc.ID)
		e.mu.Unlock()
		e.mark(ctx, doc.ID, StatusFailed)
		wrapped := apperrors.Newf(apperrors.ErrPartialIngestion, "document %s: %v", doc.ID, err)
		e.countFailure(wrapped)
		return nil, wrapped
	}
	e.dirty[doc.ID] = struct{}{}
	e.mu.Unlock()

	e.mark(ctx, doc.ID, StatusIndexed)
	if e.metrics != nil {
		e.metrics.DocsIngestedTotal.Inc()
	}
	e.updateGauges()

	uniqueTokens := make(map[string]struct{})
	for _, s := range sentences {
		for _, t := range s.Tokens {
			uniqueTokens[t] = struct{}{}
		}
	}
	e.logger.Info("document indexed",
		"doc_id", doc.ID,
		"sentences", len(sentences),
		"unique_tokens", len(uniqueTokens),
	)
	return &IngestResult{
		Success:          true,
		SentenceCount:    len(sentences),
		UniqueTokenCount: len(uniqueTokens),
	}, nil
}

// AddDocuments ingests a batch with per-item isolation: each failure is
// reported in its slot and the rest of the batch continues.
func (e *Engine) AddDocuments(ctx context.Context, docs []Document) []ItemResult {
	results := make([]ItemResult, len(docs))
	for i, doc := range docs {
		res, err := e.AddDocument(ctx, doc)
		results[i] = ItemResult{DocumentID: doc.ID, Result: res, Err: err}
		if err != nil {
			results[i].Error = err.Error()
		}
	}
	return results
}

// RemoveDocument deletes the registry entry and prunes every posting it
// contributed, restoring the index to its pre-add state.
func (e *Engine) RemoveDocument(ctx context.Context, docID string) error {
	e.mu.Lock()
	entry, err := e.reg.Remove(docID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.ix.RemoveDocument(docID, entry.TokenSets())
	delete(e.dirty, docID)
	e.mu.Unlock()

	if e.recorder != nil {
		e.recorder.Delete(ctx, docID)
	}
	if e.metrics != nil {
		e.metrics.DocsRemovedTotal.Inc()
	}
	e.updateGauges()
	e.logger.Info("document removed", "doc_id", docID)
	return nil
}

// CheckPlagiarism scores text against the corpus and returns the ranked
// duplication report. It is a deterministic function of (text, index state,
// thresholds). If the context deadline expires mid-query, the sentences
// scored so far yield a partial report with degraded confidence instead of
// an error.
func (e *Engine) CheckPlagiarism(ctx context.Context, text string, opts Options) (*Report, error) {
	start := time.Now()
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "text must not be empty")
	}
	if e.cfg.MaxDocumentBytes > 0 && len(text) > e.cfg.MaxDocumentBytes {
		return nil, apperrors.Newf(apperrors.ErrValidation, "text exceeds %d bytes", e.cfg.MaxDocumentBytes)
	}

	threshold := e.Thresholds()
	minSimilarity := threshold.Sentence
	if opts.MinSimilarity > 0 {
		minSimilarity = opts.MinSimilarity
	}
	chunkSize := e.cfg.ChunkSize
	if opts.ChunkSize > 0 {
		chunkSize = opts.ChunkSize
	}
	maxResults := e.cfg.MaxResults
	if opts.MaxResults > 0 {
		maxResults = opts.MaxResults
	}

	querySentences := e.tok.Split(text)
	if e.metrics != nil {
		e.metrics.CheckSentences.Observe(float64(len(querySentences)))
	}

	e.mu.RLock()
	matches := make([]Match, 0)
	partial := false

	for chunkStart := 0; chunkStart < len(querySentences); chunkStart += chunkSize {
		if ctx.Err() != nil {
			partial = true
			break
		}
		chunkEnd := chunkStart + chunkSize
		if chunkEnd > len(querySentences) {
			chunkEnd = len(querySentences)
		}
		for qi := chunkStart; qi < chunkEnd; qi++ {
			matches = append(matches, e.matchSentence(qi, querySentences[qi], minSimilarity)...)
		}
	}

	report := buildReport(
		matches,
		querySentences,
		e.docTokens,
		threshold,
		e.reg.Len(),
		partial,
	)
	e.mu.RUnlock()

	sort.Slice(report.Matches, func(i, j int) bool {
		a, b := report.Matches[i], report.Matches[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.QueryIndex != b.QueryIndex {
			return a.QueryIndex < b.QueryIndex
		}
		return a.SentenceIndex < b.SentenceIndex
	})
	if maxResults > 0 && len(report.Matches) > maxResults {
		report.Matches = report.Matches[:maxResults]
	}

	if e.metrics != nil {
		status := report.Status
		if partial {
			status = "partial"
		}
		e.metrics.ChecksTotal.WithLabelValues(status).Inc()
		e.metrics.CheckLatency.Observe(time.Since(start).Seconds())
	}
	e.logger.Info("check completed",
		"input_sentences", report.TotalInputSentences,
		"matches", len(report.Matches),
		"duplicate_percentage", report.DuplicatePercentage,
		"status", report.Status,
		"partial", partial,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

// matchSentence probes the index for one query sentence and returns its
// best match per source document, at most one per document. Caller holds
// the shared lock.
func (e *Engine) matchSentence(queryIndex int, sentence tokenizer.Sentence, minSimilarity float64) []Match {
	tokens := distinct(sentence.Tokens)
	postings := e.ix.PostingsFor(tokens)
	cands := shortlist(postings, len(tokens), e.cfg.MinOverlapFraction)
	if e.metrics != nil {
		e.metrics.CandidatesPerQuery.Observe(float64(len(cands)))
	}
	if len(cands) == 0 {
		return nil
	}

	type best struct {
		match Match
		found bool
	}
	perDoc := make(map[string]*best)
	docOrder := make([]string, 0)
	for _, cand := range cands {
		source, ok := e.reg.Sentence(cand.docID, cand.sentenceIndex)
		if !ok {
			continue
		}
		score, method := Score(sentence.Tokens, source.Tokens)
		if score < minSimilarity {
			continue
		}
		b, seen := perDoc[cand.docID]
		if !seen {
			b = &best{}
			perDoc[cand.docID] = b
			docOrder = append(docOrder, cand.docID)
		}
		// Candidates arrive in ascending sentence order, so a strict
		// comparison keeps the earliest sentence on equal scores.
		if !b.found || score > b.match.Similarity {
			b.match = Match{
				QueryIndex:    queryIndex,
				Source:        cand.docID,
				SentenceIndex: cand.sentenceIndex,
				Similarity:    round4(score),
				Text:          source.Raw,
				Method:        method,
			}
			b.found = true
		}
	}

	matches := make([]Match, 0, len(docOrder))
	sort.Strings(docOrder)
	for _, docID := range docOrder {
		if b := perDoc[docID]; b.found {
			matches = append(matches, b.match)
		}
	}
	return matches
}

// docTokens concatenates every token of a document, in sentence order.
func (e *Engine) docTokens(docID string) []string {
	entry := e.reg.Get(docID)
	if entry == nil {
		return nil
	}
	tokens := make([]string, 0)
	for _, s := range entry.Sentences {
		tokens = append(tokens, s.Tokens...)
	}
	return tokens
}

// ForceSave persists a snapshot. The state is copied under a brief shared
// lock and written outside it, so saves never block concurrent reads for
// their full duration. A save failure leaves the in-memory index valid.
func (e *Engine) ForceSave(ctx context.Context) error {
	if e.store == nil {
		return apperrors.New(apperrors.ErrPersistence, "no snapshot store configured")
	}
	e.mu.RLock()
	state := &snapshot.State{
		Documents: exportDocuments(e.reg.All()),
		Tokens:    e.ix.Snapshot(),
	}
	saved := make([]string, 0, len(e.dirty))
	for id := range e.dirty {
		saved = append(saved, id)
	}
	e.mu.RUnlock()

	err := resilience.Retry(ctx, "snapshot-save", resilience.RetryConfig{}, func() error {
		return e.store.Save(ctx, state)
	})
	if err != nil {
		if e.metrics != nil {
			e.metrics.SnapshotsTotal.WithLabelValues("error").Inc()
		}
		return apperrors.Newf(apperrors.ErrPersistence, "saving snapshot: %v", err)
	}

	e.mu.Lock()
	for _, id := range saved {
		delete(e.dirty, id)
	}
	e.mu.Unlock()
	sort.Strings(saved)
	for _, id := range saved {
		e.mark(ctx, id, StatusPersisted)
	}
	if e.metrics != nil {
		e.metrics.SnapshotsTotal.WithLabelValues("success").Inc()
	}
	e.logger.Info("snapshot saved",
		"documents", len(state.Documents),
		"tokens", len(state.Tokens),
	)
	return nil
}

// StartSnapshotLoop saves periodically until ctx is cancelled, then performs
// a final save.
func (e *Engine) StartSnapshotLoop(ctx context.Context, interval time.Duration) {
	if e.store == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("snapshot loop stopping, performing final save")
				if err := e.ForceSave(context.Background()); err != nil {
					e.logger.Error("final snapshot failed", "error", err)
				}
				return
			case <-ticker.C:
				if err := e.ForceSave(ctx); err != nil {
					e.logger.Error("periodic snapshot failed", "error", err)
				}
			}
		}
	}()
}

// Stats returns the introspection view of the engine.
func (e *Engine) Stats() TreeStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return TreeStats{
		TotalDocuments: e.reg.Len(),
		TotalTokens:    e.ix.TokenCount(),
		MemoryUsage:    e.ix.Size(),
		Initialized:    e.initialized,
	}
}

// Validate checks the index balance invariant, exposed for readiness probes.
func (e *Engine) Validate() error {
	return e.ix.Validate()
}

// Thresholds returns the current scoring thresholds.
func (e *Engine) Thresholds() Thresholds {
	e.thmu.RLock()
	defer e.thmu.RUnlock()
	return e.thresholds
}

// UpdateThresholds replaces the scoring thresholds after validation,
// stamping the new version with the update time and author.
func (e *Engine) UpdateThresholds(sentence, highDuplication, documentComparison float64, author string) error {
	next := Thresholds{
		Sentence:           sentence,
		HighDuplication:    highDuplication,
		DocumentComparison: documentComparison,
		UpdatedAt:          time.Now().UTC(),
		UpdatedBy:          author,
	}
	if err := next.Validate(); err != nil {
		return err
	}
	e.thmu.Lock()
	e.thresholds = next
	e.thmu.Unlock()
	e.logger.Info("thresholds updated",
		"sentence", sentence,
		"high_duplication", highDuplication,
		"document_comparison", documentComparison,
		"author", author,
	)
	return nil
}

// reindexLocked rebuilds the index from the registry. Caller holds the
// exclusive lock.
func (e *Engine) reindexLocked() {
	e.ix.Reset()
	for _, entry := range e.reg.All() {
		if err := e.ix.AddDocument(entry.ID, entry.TokenSets()); err != nil {
			e.logger.Error("reindex failed for document, dropping it",
				"doc_id", entry.ID,
				"error", err,
			)
			e.reg.Remove(entry.ID)
		}
	}
}

func (e *Engine) validateDocument(doc Document) error {
	if strings.TrimSpace(doc.ID) == "" {
		return apperrors.New(apperrors.ErrValidation, "document ID is required")
	}
	if strings.TrimSpace(doc.Text) == "" {
		return apperrors.New(apperrors.ErrValidation, "document text must not be empty")
	}
	if e.cfg.MaxDocumentBytes > 0 && len(doc.Text) > e.cfg.MaxDocumentBytes {
		return apperrors.Newf(apperrors.ErrValidation, "document text exceeds %d bytes", e.cfg.MaxDocumentBytes)
	}
	return nil
}

func (e *Engine) mark(ctx context.Context, docID, status string) {
	if e.recorder != nil {
		e.recorder.Mark(ctx, docID, status)
	}
}

func (e *Engine) countFailure(err error) {
	if e.metrics != nil {
		e.metrics.IngestFailures.WithLabelValues(apperrors.Reason(err)).Inc()
	}
}

func (e *Engine) updateGauges() {
	if e.metrics == nil {
		return
	}
	e.metrics.IndexTokens.Set(float64(e.ix.TokenCount()))
	e.metrics.IndexDocuments.Set(float64(e.reg.Len()))
}

func exportDocuments(entries []*registry.DocumentEntry) []snapshot.DocumentRecord {
	docs := make([]snapshot.DocumentRecord, len(entries))
	for i, entry := range entries {
		sentences := make([]snapshot.SentenceRecord, len(entry.Sentences))
		for j, s := range entry.Sentences {
			sentences[j] = snapshot.SentenceRecord{Raw: s.Raw, Tokens: s.Tokens}
		}
		docs[i] = snapshot.DocumentRecord{ID: entry.ID, Sentences: sentences}
	}
	return docs
}
