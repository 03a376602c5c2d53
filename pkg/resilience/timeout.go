package resilience

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/duplicheck/duplicheck/pkg/errors"
)

// WithTimeout runs fn under a derived deadline. fn is expected to observe
// its context; when it gives up because the deadline expired, the context
// error comes back as ErrTimeout. fn may also absorb the expiry and return
// a partial result with a nil error, which passes through untouched. A
// non-positive timeout runs fn unbounded.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	boundedCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(boundedCtx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && boundedCtx.Err() != nil {
		return apperrors.Newf(apperrors.ErrTimeout, "%s exceeded its %v deadline", name, timeout)
	}
	return err
}
