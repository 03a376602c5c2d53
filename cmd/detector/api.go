package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/duplicheck/duplicheck/internal/detector"
	"github.com/duplicheck/duplicheck/internal/querycache"
	"github.com/duplicheck/duplicheck/pkg/config"
	"github.com/duplicheck/duplicheck/pkg/health"
	"github.com/duplicheck/duplicheck/pkg/resilience"

	apperrors "github.com/duplicheck/duplicheck/pkg/errors"
)

// api is the ops HTTP surface: document mutations, plagiarism checks,
// stats, runtime threshold tuning, and probe endpoints.
type api struct {
	engine  *detector.Engine
	cache   *querycache.ReportCache
	checker *health.Checker
	cfg     config.Config
	logger  *slog.Logger
}

func newAPI(engine *detector.Engine, cache *querycache.ReportCache, checker *health.Checker, cfg config.Config) *api {
	return &api{
		engine:  engine,
		cache:   cache,
		checker: checker,
		cfg:     cfg,
		logger:  slog.Default().With("component", "api"),
	}
}

func (a *api) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /documents", a.handleAddDocuments)
	mux.HandleFunc("DELETE /documents/{id}", a.handleRemoveDocument)
	mux.HandleFunc("POST /check", a.handleCheck)
	mux.HandleFunc("POST /save", a.handleForceSave)
	mux.HandleFunc("GET /stats", a.handleStats)
	mux.HandleFunc("GET /thresholds", a.handleGetThresholds)
	mux.HandleFunc("PUT /thresholds", a.handleUpdateThresholds)
	mux.HandleFunc("GET /health/live", a.checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", a.checker.ReadyHandler())
	return mux
}

func (a *api) handleAddDocuments(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Documents []detector.Document `json:"documents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(body.Documents) == 0 {
		writeError(w, http.StatusBadRequest, "documents must not be empty")
		return
	}
	results := a.engine.AddDocuments(r.Context(), body.Documents)
	a.cache.Invalidate(r.Context())

	status := http.StatusOK
	for _, res := range results {
		if res.Err != nil {
			status = http.StatusMultiStatus
			break
		}
	}
	writeJSON(w, status, map[string]any{"results": results})
}

func (a *api) handleRemoveDocument(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("id")
	if err := a.engine.RemoveDocument(r.Context(), docID); err != nil {
		if errors.Is(err, apperrors.ErrDocumentNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.cache.Invalidate(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"removed": docID})
}

func (a *api) handleCheck(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text    string           `json:"text"`
		Options detector.Options `json:"options"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	timeout := a.cfg.Detector.QueryTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	key := querycache.Key(body.Text, body.Options, a.engine.Thresholds().UpdatedAt.UnixNano())
	report, err := a.cache.GetOrCompute(r.Context(), key, func() (*detector.Report, error) {
		var rep *detector.Report
		err := resilience.WithTimeout(r.Context(), timeout, "plagiarism check", func(ctx context.Context) error {
			var checkErr error
			rep, checkErr = a.engine.CheckPlagiarism(ctx, body.Text, body.Options)
			return checkErr
		})
		return rep, err
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if errors.Is(err, apperrors.ErrTimeout) {
			writeError(w, http.StatusGatewayTimeout, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *api) handleForceSave(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.ForceSave(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"saved": true})
}

func (a *api) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := a.engine.Stats()
	hits, misses := a.cache.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"tree":        stats,
		"cacheHits":   hits,
		"cacheMisses": misses,
	})
}

func (a *api) handleGetThresholds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.Thresholds())
}

func (a *api) handleUpdateThresholds(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Sentence           float64 `json:"sentenceThreshold"`
		HighDuplication    float64 `json:"highDuplicationThreshold"`
		DocumentComparison float64 `json:"documentComparisonThreshold"`
		UpdatedBy          string  `json:"updatedBy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.UpdatedBy == "" {
		body.UpdatedBy = "api"
	}
	if err := a.engine.UpdateThresholds(body.Sentence, body.HighDuplication, body.DocumentComparison, body.UpdatedBy); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// Report keys embed the thresholds version, but stale entries are dead
	// weight so flush them eagerly.
	a.cache.Invalidate(r.Context())
	writeJSON(w, http.StatusOK, a.engine.Thresholds())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
