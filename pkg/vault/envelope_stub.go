//go:build !windows

// pkg/vault/envelope_stub.go

package vault

import (
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/amberr"
	cerr "github.com/cockroachdb/errors"
)

type unsupportedEnvelope struct{}

// NewPlatformEnvelope returns an envelope provider whose operations
// fail on platforms without an OS key-protection service.
func NewPlatformEnvelope() EnvelopeProvider {
	return unsupportedEnvelope{}
}

func (unsupportedEnvelope) Protect([]byte) ([]byte, error) {
	return nil, cerr.Mark(cerr.New("data protection requires Windows"), amberr.ErrUnsupported)
}

func (unsupportedEnvelope) Unprotect([]byte) ([]byte, error) {
	return nil, cerr.Mark(cerr.New("data protection requires Windows"), amberr.ErrUnsupported)
}
