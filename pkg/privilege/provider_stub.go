//go:build !windows

// pkg/privilege/provider_stub.go

package privilege

import (
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/amberr"
)

type unsupportedTokenProvider struct{}

// NewPlatformTokenProvider returns a provider whose every operation
// reports Unsupported. Token theft only exists on Windows.
func NewPlatformTokenProvider() TokenProvider {
	return unsupportedTokenProvider{}
}

func (unsupportedTokenProvider) EnableCurrentPrivilege(string) error { return amberr.ErrUnsupported }
func (unsupportedTokenProvider) ActiveConsoleSessionID() uint32      { return 0 }
func (unsupportedTokenProvider) FindProcessID(string) (uint32, error) {
	return 0, amberr.ErrUnsupported
}
func (unsupportedTokenProvider) DuplicatePrimaryToken(uint32) (Token, error) {
	return nil, amberr.ErrUnsupported
}
func (unsupportedTokenProvider) RevertToSelf() error { return amberr.ErrUnsupported }
