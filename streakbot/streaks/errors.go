package streaks

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidChannel  = errors.New("invalid channel")
	ErrAlreadyStreaked = errors.New("already streaked today")
	ErrInvalidMessage  = errors.New("invalid message")

	// ErrConflict is returned by a Store when an optimistic write lost a race.
	ErrConflict = errors.New("streak record changed concurrently")
	// ErrNotFound is returned by a Store when no record exists.
	ErrNotFound = errors.New("not found")
)

// ValidationError is a user-correctable failure. Reason is shown to the user as-is.
type ValidationError struct {
	Kind   error
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

func invalid(kind error, reason string) error {
	return &ValidationError{Kind: kind, Reason: reason}
}

// IsUserError reports whether err should be surfaced verbatim as a reply.
func IsUserError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StoreUnavailableError wraps a persistence failure.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreUnavailableError
	if errors.As(err, &se) {
		return err
	}
	return &StoreUnavailableError{Op: op, Err: err}
}

// PlatformCallError wraps a failed outbound chat platform call.
type PlatformCallError struct {
	GuildID string
	Op      string
	Err     error
}

func (e *PlatformCallError) Error() string {
	return fmt.Sprintf("platform call %s failed for guild %s: %v", e.Op, e.GuildID, e.Err)
}

func (e *PlatformCallError) Unwrap() error {
	return e.Err
}

// StoreRetryBackoff is the pause before the single retry in WithStoreRetry.
var StoreRetryBackoff = 250 * time.Millisecond

// WithStoreRetry runs fn and retries it once after a short backoff if it
// failed with a StoreUnavailableError. User errors are never retried.
func WithStoreRetry[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	v, err := fn(ctx)
	var se *StoreUnavailableError
	if err == nil || !errors.As(err, &se) {
		return v, err
	}

	select {
	case <-ctx.Done():
		return v, err
	case <-time.After(StoreRetryBackoff):
	}
	return fn(ctx)
}
