package kafka

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
)

type testEvent struct {
	DocumentID string `json:"documentId"`
	Text       string `json:"text"`
}

func testConsumer[T any](handler Handler[T]) *Consumer[T] {
	return &Consumer[T]{
		logger:  slog.Default(),
		handler: handler,
	}
}

func TestHandleDecodesAndDispatches(t *testing.T) {
	var got testEvent
	var gotKey string
	c := testConsumer(func(ctx context.Context, key string, event testEvent) error {
		gotKey = key
		got = event
		return nil
	})

	msg := kafkago.Message{
		Key:   []byte("doc-1"),
		Value: []byte(`{"documentId":"doc-1","text":"hello world"}`),
	}
	if err := c.handle(context.Background(), msg); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if gotKey != "doc-1" {
		t.Errorf("key = %q, want doc-1", gotKey)
	}
	if got.DocumentID != "doc-1" || got.Text != "hello world" {
		t.Errorf("event = %+v", got)
	}
}

func TestHandleDropsUndecodableValue(t *testing.T) {
	called := false
	c := testConsumer(func(ctx context.Context, key string, event testEvent) error {
		called = true
		return nil
	})

	msg := kafkago.Message{Key: []byte("doc-1"), Value: []byte("not json")}
	if err := c.handle(context.Background(), msg); err != nil {
		t.Fatalf("handle must swallow decode failures, got %v", err)
	}
	if called {
		t.Error("handler ran on an undecodable value")
	}
}

func TestHandlePropagatesHandlerError(t *testing.T) {
	wantErr := errors.New("engine down")
	c := testConsumer(func(ctx context.Context, key string, event testEvent) error {
		return wantErr
	})

	msg := kafkago.Message{Key: []byte("doc-1"), Value: []byte(`{}`)}
	if err := c.handle(context.Background(), msg); !errors.Is(err, wantErr) {
		t.Errorf("error = %v, want %v", err, wantErr)
	}
}
