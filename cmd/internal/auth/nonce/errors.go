package nonce

import "errors"

var (
	// ErrNonceInvalid is returned when a presented nonce is unknown,
	// already consumed, or expired. Callers must not distinguish the cases.
	ErrNonceInvalid = errors.New("invalid or expired nonce")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid nonce config")
)
