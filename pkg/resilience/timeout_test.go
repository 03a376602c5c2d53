package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/duplicheck/duplicheck/pkg/errors"
)

func TestWithTimeoutPassesResultThrough(t *testing.T) {
	wantErr := errors.New("inner failure")
	err := WithTimeout(context.Background(), time.Second, "fast", func(ctx context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("error = %v, want %v", err, wantErr)
	}

	if err := WithTimeout(context.Background(), time.Second, "fast", func(ctx context.Context) error {
		return nil
	}); err != nil {
		t.Errorf("error = %v, want nil", err)
	}
}

func TestWithTimeoutReturnsTimeoutError(t *testing.T) {
	err := WithTimeout(context.Background(), 5*time.Millisecond, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, apperrors.ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
}

func TestWithTimeoutKeepsPartialResults(t *testing.T) {
	finished := false
	err := WithTimeout(context.Background(), 5*time.Millisecond, "partial", func(ctx context.Context) error {
		<-ctx.Done()
		finished = true
		return nil
	})
	if err != nil {
		t.Errorf("error = %v, want nil when fn absorbs the expiry", err)
	}
	if !finished {
		t.Error("fn did not run to completion")
	}
}

func TestWithTimeoutZeroRunsDirectly(t *testing.T) {
	called := false
	if err := WithTimeout(context.Background(), 0, "unbounded", func(ctx context.Context) error {
		called = true
		if _, hasDeadline := ctx.Deadline(); hasDeadline {
			t.Error("zero timeout must not impose a deadline")
		}
		return nil
	}); err != nil {
		t.Fatalf("WithTimeout failed: %v", err)
	}
	if !called {
		t.Error("fn was not invoked")
	}
}
