package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/duplicheck/duplicheck/pkg/config"
)

// PostgresRecorder persists ingestion state machine transitions to the
// documents table. All operations are best effort: failures are logged and
// never propagate to the ingestion path. A nil recorder disables recording.
type PostgresRecorder struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenPostgres connects to Postgres, verifies the connection, and returns a
// recorder bound to it.
func OpenPostgres(cfg config.PostgresConfig) (*PostgresRecorder, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresRecorder{
		db:     db,
		logger: slog.Default().With("component", "status-recorder"),
	}, nil
}

// Mark upserts the document's current ingestion status.
func (r *PostgresRecorder) Mark(ctx context.Context, docID, status string) {
	if r == nil || r.db == nil {
		return
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (document_id, status, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (document_id)
		DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
		docID, status, time.Now().UTC(),
	)
	if err != nil {
		r.logger.Warn("failed to record document status",
			"doc_id", docID,
			"status", status,
			"error", err,
		)
	}
}

// Delete removes the document's status row.
func (r *PostgresRecorder) Delete(ctx context.Context, docID string) {
	if r == nil || r.db == nil {
		return
	}
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM documents WHERE document_id = $1`, docID,
	)
	if err != nil {
		r.logger.Warn("failed to delete document status",
			"doc_id", docID,
			"error", err,
		)
	}
}

// EnsureSchema creates the documents table if it does not exist.
func (r *PostgresRecorder) EnsureSchema(ctx context.Context) error {
	if r == nil || r.db == nil {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			document_id TEXT PRIMARY KEY,
			status      TEXT NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL
		)`)
	return err
}

// Ping verifies the Postgres connection is alive.
func (r *PostgresRecorder) Ping(ctx context.Context) error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.PingContext(ctx)
}

// Close releases the Postgres connection pool.
func (r *PostgresRecorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
