package models

import "errors"

// Error taxonomy surfaced by the domain service. Handlers map these onto
// HTTP responses; the warmer logs and continues.
var (
	// ErrNotConfigured means no remote-site credentials are stored. Recoverable
	// by the user through the settings flow, never retried automatically.
	ErrNotConfigured = errors.New("remote site credentials not configured")

	// ErrNotFound means the remote resource is legitimately absent, or
	// extraction produced no matching record. Terminal, not retried.
	ErrNotFound = errors.New("resource not found")

	// ErrChallengeBlocked means the anti-bot challenge was still shown after
	// the full retry budget. Surfaced as retryable.
	ErrChallengeBlocked = errors.New("blocked by anti-bot challenge")

	// ErrRetrievalFailed wraps transport or browser-automation faults.
	// Surfaced as retryable; the cause is attached via errors wrapping.
	ErrRetrievalFailed = errors.New("page retrieval failed")
)
