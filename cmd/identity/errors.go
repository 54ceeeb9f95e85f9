package identity

import "errors"

// ErrCredentialRejected is returned for any failed verification. Callers must
// not distinguish "user unknown" from "bad password" in responses.
var ErrCredentialRejected = errors.New("credential rejected")
