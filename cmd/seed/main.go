// The seed command publishes a directory of .txt files to the
// document-ingest topic, one event per file, keyed by the file name without
// its extension.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/duplicheck/duplicheck/internal/ingest"
	"github.com/duplicheck/duplicheck/pkg/config"
	"github.com/duplicheck/duplicheck/pkg/kafka"
	"github.com/duplicheck/duplicheck/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	dir := flag.String("dir", "", "directory of .txt documents to publish")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if *dir == "" {
		slog.Error("missing required flag", "flag", "dir")
		os.Exit(1)
	}

	paths, err := filepath.Glob(filepath.Join(*dir, "*.txt"))
	if err != nil {
		slog.Error("failed to list documents", "dir", *dir, "error", err)
		os.Exit(1)
	}
	if len(paths) == 0 {
		slog.Warn("no .txt documents found", "dir", *dir)
		return
	}

	records := make([]kafka.Record[ingest.IngestEvent], 0, len(paths))
	for _, path := range paths {
		text, err := os.ReadFile(path)
		if err != nil {
			slog.Error("skipping unreadable document", "path", path, "error", err)
			continue
		}
		docID := strings.TrimSuffix(filepath.Base(path), ".txt")
		records = append(records, kafka.Record[ingest.IngestEvent]{
			Key: docID,
			Event: ingest.IngestEvent{
				DocumentID:  docID,
				Text:        string(text),
				SubmittedAt: time.Now().UTC(),
			},
		})
	}

	producer := kafka.NewProducer[ingest.IngestEvent](cfg.Kafka, cfg.Kafka.Topics.DocumentIngest)
	defer producer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := producer.PublishBatch(ctx, records); err != nil {
		slog.Error("failed to publish documents", "error", err)
		os.Exit(1)
	}
	slog.Info("documents published", "count", len(records), "topic", cfg.Kafka.Topics.DocumentIngest)
}
