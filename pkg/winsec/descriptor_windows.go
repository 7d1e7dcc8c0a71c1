//go:build windows

// pkg/winsec/descriptor_windows.go

package winsec

import (
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/amberr"
	"golang.org/x/sys/windows"
)

const labelSecurityInfo = windows.SACL_SECURITY_INFORMATION | windows.LABEL_SECURITY_INFORMATION

// windowsDescriptorProvider talks to the named-object security API for
// file objects.
type windowsDescriptorProvider struct{}

// NewPlatformDescriptorProvider returns the live Windows provider.
func NewPlatformDescriptorProvider() DescriptorProvider {
	return &windowsDescriptorProvider{}
}

func (windowsDescriptorProvider) GetDescriptor(path string) (string, error) {
	sd, err := windows.GetNamedSecurityInfo(path, windows.SE_FILE_OBJECT, labelSecurityInfo)
	if err != nil {
		return "", amberr.NewOsApiError("GetNamedSecurityInfo", errnoCode(err), err.Error())
	}
	return sd.String(), nil
}

func (windowsDescriptorProvider) SetDescriptor(path, sddl string) error {
	sd, err := windows.SecurityDescriptorFromString(sddl)
	if err != nil {
		return amberr.NewOsApiError("ConvertStringSecurityDescriptor", errnoCode(err), err.Error())
	}

	// An empty SACL ("S:") converts to a descriptor without an ACL;
	// applying a nil SACL with label scope clears the mandatory label.
	sacl, err := sd.SACL()
	if err != nil {
		sacl = nil
	}

	err = windows.SetNamedSecurityInfo(path, windows.SE_FILE_OBJECT, labelSecurityInfo,
		nil, nil, nil, sacl)
	if err != nil {
		return amberr.NewOsApiError("SetNamedSecurityInfo", errnoCode(err), err.Error())
	}
	return nil
}

func errnoCode(err error) uint32 {
	if errno, ok := err.(windows.Errno); ok {
		return uint32(errno)
	}
	return 0
}
