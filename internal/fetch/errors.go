package fetch

import (
	"errors"
	"fmt"

	"github.com/kamado-dev/kamado/internal/manifest"
)

// DigestMismatchError indicates retrieved bytes whose digest does not
// match the manifest entry. It is never retried and never downgraded
// to a warning: it signals corruption or substitution, not flakiness.
type DigestMismatchError struct {
	Key      manifest.ArtifactKey
	Location string
	Expected string
	Actual   string
}

func (e *DigestMismatchError) Error() string {
	return fmt.Sprintf("artifact %s: digest mismatch for %s: manifest says %s, got %s",
		e.Key, e.Location, e.Expected, e.Actual)
}

// IsDigestMismatch reports whether err is an integrity failure.
func IsDigestMismatch(err error) bool {
	var dm *DigestMismatchError
	return errors.As(err, &dm)
}

// NetworkError wraps a retrieval failure. Transient errors are
// retried inside the Fetcher up to its retry bound; what escapes the
// Fetcher is always fatal from the caller's perspective.
type NetworkError struct {
	Location  string
	Transient bool
	Attempts  int
	Err       error
}

func (e *NetworkError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("failed to fetch %s after %d attempts: %v", e.Location, e.Attempts, e.Err)
	}
	return fmt.Sprintf("failed to fetch %s: %v", e.Location, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err is a retrieval failure.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// statusError carries a non-2xx HTTP response for retry
// classification.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d", e.code)
}

// retryable reports whether an attempt error is worth retrying.
// Timeouts, connection failures, and 5xx/429 responses are
// transient; 404 and other client errors are not.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == 429
	}
	// Request transport errors (dial failures, resets, timeouts)
	// arrive as url.Error values; treat them all as transient.
	return true
}
