package afip

import (
	"errors"
	"fmt"
)

var (
	// ErrRejected is returned when the authority processed the request
	// but refused to authorize the voucher. The observation text from
	// the authority is attached to the wrapping error.
	ErrRejected = errors.New("voucher rejected by tax authority")

	// ErrUnavailable is returned when the authority endpoint cannot be
	// reached or answers with a non-2xx status.
	ErrUnavailable = errors.New("tax authority service unavailable")

	// ErrMissingConfiguration is returned when the client is built
	// without the endpoint or issuer identity it needs.
	ErrMissingConfiguration = errors.New("incomplete authorization gateway configuration")
)

// AuthorizationError wraps a failed authorization attempt with the
// operation and, when available, the authority's observation text.
type AuthorizationError struct {
	Op          string
	Err         error
	Observation string
}

func (e *AuthorizationError) Error() string {
	if e.Observation != "" {
		return fmt.Sprintf("afip: %s failed: %s: %v", e.Op, e.Observation, e.Err)
	}
	return fmt.Sprintf("afip: %s failed: %v", e.Op, e.Err)
}

func (e *AuthorizationError) Unwrap() error {
	return e.Err
}
