package domain

import "errors"

// Sentinel errors for the core pipeline. Callers match with errors.Is;
// lower layers wrap them with fmt.Errorf("...: %w", ...).
var (
	// ErrMissingIdentifier is returned when a request that requires at least
	// one of email/user_id/anonymous_id supplies none.
	ErrMissingIdentifier = errors.New("missing identifier")

	// ErrValidation is returned for malformed input: non-object trait or
	// property payloads, bad audience definitions, empty event types.
	ErrValidation = errors.New("validation failed")

	// ErrUniquenessConflict is returned when an insert or identifier backfill
	// races another writer on the email/user_id unique indexes. The pipeline
	// recovers by re-resolving as a lookup; it reaches callers only if the
	// retries themselves fail.
	ErrUniquenessConflict = errors.New("identifier uniqueness conflict")

	// ErrNotFound is returned for operations on unknown profile/audience ids.
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable is returned when the transactional backend cannot
	// be reached. The operation is retryable.
	ErrStoreUnavailable = errors.New("store unavailable")
)
