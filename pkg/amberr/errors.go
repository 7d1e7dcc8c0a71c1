// pkg/amberr/errors.go
//
// Error taxonomy shared by every enforcement component. Per-object
// batch failures are captured into results, never raised through this
// package; everything here is for the fatal paths.

package amberr

import (
	"fmt"

	cerr "github.com/cockroachdb/errors"
)

// Sentinel errors for conditions that carry no extra payload.
var (
	// ErrUnsupported means the platform/operation combination is not
	// possible: non-Windows build, or no system principal found.
	ErrUnsupported = cerr.New("operation not supported on this platform")

	// ErrAuthFailed deliberately merges "wrong password" fatal cases and
	// "vault unreadable" so callers cannot tell them apart.
	ErrAuthFailed = cerr.New("authentication failed")

	// ErrCancelled reports cooperative cancellation of a batch.
	ErrCancelled = cerr.New("operation cancelled")

	// ErrInvalidLabel means a descriptor could not be encoded or decoded.
	ErrInvalidLabel = cerr.New("invalid mandatory label descriptor")
)

// PrivilegeMissingError is returned when a required privilege is not
// held; the operation was not attempted.
type PrivilegeMissingError struct {
	Privilege string
}

func (e *PrivilegeMissingError) Error() string {
	return fmt.Sprintf("required privilege %s not held", e.Privilege)
}

// NewPrivilegeMissing wraps the missing privilege name with a hint the
// CLI can surface.
func NewPrivilegeMissing(privilege string) error {
	return cerr.WithHint(
		&PrivilegeMissingError{Privilege: privilege},
		"run elevated (Administrator) so the privilege can be enabled")
}

// OsApiError wraps a raw platform security API failure.
type OsApiError struct {
	Code    uint32
	Op      string
	Message string
}

func (e *OsApiError) Error() string {
	return fmt.Sprintf("%s failed (code %#x): %s", e.Op, e.Code, e.Message)
}

// NewOsApiError records the failing API name alongside the Win32 code.
func NewOsApiError(op string, code uint32, msg string) error {
	return cerr.WithStack(&OsApiError{Code: code, Op: op, Message: msg})
}

// StorageError wraps checkpoint or vault persistence I/O failures.
func WrapStorage(err error, what string) error {
	return cerr.Wrapf(err, "%s storage", what)
}

// IsPrivilegeMissing reports whether err is a PrivilegeMissingError
// anywhere in its chain.
func IsPrivilegeMissing(err error) bool {
	var pm *PrivilegeMissingError
	return cerr.As(err, &pm)
}

// IsOsApiError extracts an OsApiError from the chain if present.
func IsOsApiError(err error) (*OsApiError, bool) {
	var oe *OsApiError
	if cerr.As(err, &oe) {
		return oe, true
	}
	return nil, false
}
