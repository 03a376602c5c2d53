package health

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
)

func TestRunAggregatesWorstStatus(t *testing.T) {
	c := NewChecker()
	c.Register("index", func(ctx context.Context) error { return nil })
	c.Register("cache", func(ctx context.Context) error {
		return Degraded(errors.New("redis unreachable"))
	})
	c.Register("store", func(ctx context.Context) error {
		return errors.New("postgres down")
	})

	report := c.Run(context.Background())
	if report.Status != StatusDown {
		t.Errorf("overall status = %s, want down", report.Status)
	}
	if got := report.Components["index"].Status; got != StatusUp {
		t.Errorf("index status = %s, want up", got)
	}
	if got := report.Components["cache"].Status; got != StatusDegraded {
		t.Errorf("cache status = %s, want degraded", got)
	}
	if got := report.Components["store"].Status; got != StatusDown {
		t.Errorf("store status = %s, want down", got)
	}
}

func TestDegradedComponentsDoNotFailReadiness(t *testing.T) {
	c := NewChecker()
	c.Register("cache", func(ctx context.Context) error {
		return Degraded(errors.New("redis unreachable"))
	})

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest("GET", "/health/ready", nil))
	if rec.Code != 200 {
		t.Errorf("status = %d, want 200 for a degraded-only report", rec.Code)
	}
}

func TestDownComponentFailsReadiness(t *testing.T) {
	c := NewChecker()
	c.Register("store", func(ctx context.Context) error {
		return errors.New("postgres down")
	})

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest("GET", "/health/ready", nil))
	if rec.Code != 503 {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestDegradedNilIsNil(t *testing.T) {
	if Degraded(nil) != nil {
		t.Error("Degraded(nil) must be nil")
	}
}

func TestEmptyCheckerIsUp(t *testing.T) {
	report := NewChecker().Run(context.Background())
	if report.Status != StatusUp {
		t.Errorf("status = %s, want up with no checks", report.Status)
	}
}
