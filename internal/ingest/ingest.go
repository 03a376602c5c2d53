// Package ingest bridges the Kafka document topics to the detection engine.
// Handlers receive decoded events and feed the engine; validation failures
// and duplicates are logged and committed rather than retried, since
// redelivery can never make them succeed.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/duplicheck/duplicheck/internal/detector"
	"github.com/duplicheck/duplicheck/pkg/logger"

	apperrors "github.com/duplicheck/duplicheck/pkg/errors"
)

// IngestEvent is the document-ingest topic payload.
type IngestEvent struct {
	DocumentID  string    `json:"documentId"`
	Text        string    `json:"text"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// RemoveEvent is the document-remove topic payload.
type RemoveEvent struct {
	DocumentID string `json:"documentId"`
}

// Engine is the slice of the detector the handlers need.
type Engine interface {
	AddDocument(ctx context.Context, doc detector.Document) (*detector.IngestResult, error)
	RemoveDocument(ctx context.Context, docID string) error
}

// Handler dispatches Kafka document events to the engine.
type Handler struct {
	engine Engine

	// onChange fires after a successful mutation, used to invalidate the
	// report cache.
	onChange func(ctx context.Context)
}

func NewHandler(engine Engine, onChange func(ctx context.Context)) *Handler {
	return &Handler{
		engine:   engine,
		onChange: onChange,
	}
}

// HandleIngest is the document-ingest topic handler. A non-nil error means
// the failure is transient and the message should be redelivered.
func (h *Handler) HandleIngest(ctx context.Context, key string, event IngestEvent) error {
	ctx = logger.WithDocumentID(ctx, event.DocumentID)
	log := logger.FromContext(ctx).With("component", "ingest")

	result, err := h.engine.AddDocument(ctx, detector.Document{
		ID:   event.DocumentID,
		Text: event.Text,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) || errors.Is(err, apperrors.ErrDocumentExists) {
			log.Warn("dropping rejected document", "error", err)
			return nil
		}
		return err
	}
	log.Info("document ingested from kafka", "sentences", result.SentenceCount)
	h.notify(ctx)
	return nil
}

// HandleRemove is the document-remove topic handler.
func (h *Handler) HandleRemove(ctx context.Context, key string, event RemoveEvent) error {
	ctx = logger.WithDocumentID(ctx, event.DocumentID)
	log := logger.FromContext(ctx).With("component", "ingest")

	if err := h.engine.RemoveDocument(ctx, event.DocumentID); err != nil {
		if errors.Is(err, apperrors.ErrDocumentNotFound) {
			log.Warn("remove for unknown document")
			return nil
		}
		return err
	}
	log.Info("document removed from kafka")
	h.notify(ctx)
	return nil
}

func (h *Handler) notify(ctx context.Context) {
	if h.onChange != nil {
		h.onChange(ctx)
	}
}
