package domain

import (
	"errors"
	"fmt"
)

// Error classes. Concrete errors wrap one of these so callers can branch with errors.Is.
var (
	// ErrInvalidArgument signals a caller-contract violation, rejected before any I/O.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrIntegrity signals corrupt or inconsistent persisted data.
	ErrIntegrity = errors.New("data integrity violation")
	// ErrTransient signals a retryable I/O failure; persisted state was not touched.
	ErrTransient = errors.New("transient failure")
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrVectorDimMismatch signals a vector dimension mismatch (provider drift or stale snapshot).
	ErrVectorDimMismatch = fmt.Errorf("vector dimension mismatch: %w", ErrIntegrity)
	// ErrLengthMismatch signals a chunk list and vector matrix of different lengths.
	ErrLengthMismatch = fmt.Errorf("chunk/vector length mismatch: %w", ErrIntegrity)
	// ErrTenantMismatch signals a chunk tagged with a foreign tenant inside a tenant partition.
	ErrTenantMismatch = fmt.Errorf("chunk tenant mismatch: %w", ErrIntegrity)

	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = fmt.Errorf("rate limited: %w", ErrTransient)
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = fmt.Errorf("embedding provider error: %w", ErrTransient)
	// ErrGenerationError signals a generative model failure.
	ErrGenerationError = fmt.Errorf("generation error: %w", ErrTransient)
	// ErrSourceFetch signals a failure to download a source document.
	ErrSourceFetch = fmt.Errorf("source fetch failed: %w", ErrTransient)
	// ErrNotifyFailed signals a notification transport failure.
	ErrNotifyFailed = fmt.Errorf("notification failed: %w", ErrTransient)

	// ErrEmbeddingQuotaExceeded signals an exhausted embedding budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrUnreadableDocument signals a source document whose text could not be extracted.
	ErrUnreadableDocument = errors.New("unreadable document")
	// ErrLimitExceeded signals input above a configured resource limit.
	ErrLimitExceeded = fmt.Errorf("limit exceeded: %w", ErrInvalidArgument)
	// ErrNotImplemented signals an unimplemented feature.
	ErrNotImplemented = errors.New("not implemented")
)

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// DimMismatchError carries the expected and actual vector dimensions.
type DimMismatchError struct {
	Want int
	Got  int
}

func (e *DimMismatchError) Error() string {
	return fmt.Sprintf("%s: got %d, want %d", ErrVectorDimMismatch.Error(), e.Got, e.Want)
}

func (e *DimMismatchError) Unwrap() error { return ErrVectorDimMismatch }

// NewDimMismatch creates a dimension mismatch error.
func NewDimMismatch(want, got int) error {
	return &DimMismatchError{Want: want, Got: got}
}

// InvalidArgf formats a caller-contract violation.
func InvalidArgf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidArgument)
}
