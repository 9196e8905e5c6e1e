package ledger

import "errors"

// ValidationError rejects a candidate transaction without touching state.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

var (
	ErrElectionNotStarted = &ValidationError{"Election has not started yet"}
	ErrElectionEnded      = &ValidationError{"Election has ended"}
	ErrMissingSignature   = &ValidationError{"Transaction signature and public key are required."}
	ErrInvalidSignature   = &ValidationError{"Invalid Transaction Signature"}
)

// ErrInvalidAddress is returned by RegisterNode when no network location
// or path can be extracted from the address.
var ErrInvalidAddress = &ValidationError{"Invalid URL"}

// ErrStaleBlock is returned by Mine when the chain advanced while the proof
// was being searched.
var ErrStaleBlock = errors.New("chain advanced during proof of work")

// IsValidation reports whether err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
