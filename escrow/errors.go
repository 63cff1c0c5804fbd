package escrow

import "errors"

// Sentinel errors for the fund-release engine. All are terminal, synchronous
// failures: none are retried internally, and the HTTP layer maps each to a
// status code. Wrapped detail is attached with fmt.Errorf("%w: ...").
var (
	ErrNotFound          = errors.New("escrow: not found")
	ErrForbidden         = errors.New("escrow: forbidden")
	ErrInvalidTransition = errors.New("escrow: invalid transition")
	ErrConflict          = errors.New("escrow: conflict")
	ErrInvalidArgument   = errors.New("escrow: invalid argument")
	ErrUpstreamFailure   = errors.New("escrow: upstream failure")
)
