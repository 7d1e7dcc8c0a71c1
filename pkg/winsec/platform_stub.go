//go:build !windows

// pkg/winsec/platform_stub.go
//
// Mandatory labels are a Windows mechanism. On other platforms the
// providers exist so the rest of the engine still links and tests,
// but every live operation reports Unsupported.

package winsec

import (
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/amberr"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/label"
)

type unsupportedDescriptorProvider struct{}

func NewPlatformDescriptorProvider() DescriptorProvider {
	return unsupportedDescriptorProvider{}
}

func (unsupportedDescriptorProvider) GetDescriptor(string) (string, error) {
	return "", amberr.ErrUnsupported
}

func (unsupportedDescriptorProvider) SetDescriptor(string, string) error {
	return amberr.ErrUnsupported
}

type unsupportedPrivilegeController struct{}

func NewPlatformPrivilegeController() PrivilegeController {
	return unsupportedPrivilegeController{}
}

func (unsupportedPrivilegeController) EnablePrivilege(string, bool) error {
	return amberr.ErrUnsupported
}

func (unsupportedPrivilegeController) ProcessIntegrityLevel() (label.Level, error) {
	return label.Medium, amberr.ErrUnsupported
}

func (unsupportedPrivilegeController) UserSID() (string, error) {
	return "", amberr.ErrUnsupported
}
