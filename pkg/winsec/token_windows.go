//go:build windows

// pkg/winsec/token_windows.go

package winsec

import (
	"unsafe"

	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/amberr"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/label"
	"golang.org/x/sys/windows"
)

// windowsPrivilegeController adjusts the current process token.
type windowsPrivilegeController struct{}

// NewPlatformPrivilegeController returns the live Windows controller.
func NewPlatformPrivilegeController() PrivilegeController {
	return &windowsPrivilegeController{}
}

func (windowsPrivilegeController) EnablePrivilege(name string, enable bool) error {
	var token windows.Token
	err := windows.OpenProcessToken(windows.CurrentProcess(),
		windows.TOKEN_ADJUST_PRIVILEGES|windows.TOKEN_QUERY, &token)
	if err != nil {
		return amberr.NewOsApiError("OpenProcessToken", errnoCode(err), err.Error())
	}
	defer token.Close()

	return adjustTokenPrivilege(token, name, enable)
}

// adjustTokenPrivilege flips one named privilege on an arbitrary
// token. Shared with the escalation code in pkg/privilege through
// AdjustPrivilegeOnToken.
func adjustTokenPrivilege(token windows.Token, name string, enable bool) error {
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return amberr.NewOsApiError("UTF16PtrFromString", 0, err.Error())
	}

	var luid windows.LUID
	if err := windows.LookupPrivilegeValue(nil, namePtr, &luid); err != nil {
		return amberr.NewOsApiError("LookupPrivilegeValue", errnoCode(err), err.Error())
	}

	var attrs uint32
	if enable {
		attrs = windows.SE_PRIVILEGE_ENABLED
	}
	tp := windows.Tokenprivileges{
		PrivilegeCount: 1,
		Privileges: [1]windows.LUIDAndAttributes{
			{Luid: luid, Attributes: attrs},
		},
	}

	if err := windows.AdjustTokenPrivileges(token, false, &tp, 0, nil, nil); err != nil {
		return amberr.NewOsApiError("AdjustTokenPrivileges", errnoCode(err), err.Error())
	}
	// AdjustTokenPrivileges succeeds even when the privilege is not
	// held; the failure only shows up in the thread error state.
	if lastErr := windows.GetLastError(); lastErr == windows.ERROR_NOT_ALL_ASSIGNED {
		return amberr.NewPrivilegeMissing(name)
	}
	return nil
}

// AdjustPrivilegeOnToken is the exported form used by the privilege
// escalation layer for duplicated tokens.
func AdjustPrivilegeOnToken(token windows.Token, name string, enable bool) error {
	return adjustTokenPrivilege(token, name, enable)
}

func (windowsPrivilegeController) ProcessIntegrityLevel() (label.Level, error) {
	var token windows.Token
	err := windows.OpenProcessToken(windows.CurrentProcess(), windows.TOKEN_QUERY, &token)
	if err != nil {
		return label.Medium, amberr.NewOsApiError("OpenProcessToken", errnoCode(err), err.Error())
	}
	defer token.Close()

	return TokenIntegrityLevel(token)
}

// TokenIntegrityLevel reads the mandatory label SID of any token and
// maps its final RID to a level.
func TokenIntegrityLevel(token windows.Token) (label.Level, error) {
	var size uint32
	// First call sizes the buffer; it is expected to fail.
	_ = windows.GetTokenInformation(token, windows.TokenIntegrityLevel, nil, 0, &size)
	if size == 0 {
		return label.Medium, amberr.NewOsApiError("GetTokenInformation", 0, "zero-length integrity level")
	}

	buf := make([]byte, size)
	err := windows.GetTokenInformation(token, windows.TokenIntegrityLevel, &buf[0], size, &size)
	if err != nil {
		return label.Medium, amberr.NewOsApiError("GetTokenInformation", errnoCode(err), err.Error())
	}

	ml := (*windows.Tokenmandatorylabel)(unsafe.Pointer(&buf[0]))
	sid := ml.Label.Sid
	count := sid.SubAuthorityCount()
	if count == 0 {
		return label.Medium, amberr.NewOsApiError("GetSidSubAuthorityCount", 0, "label SID has no subauthorities")
	}
	rid := sid.SubAuthority(uint32(count - 1))
	return label.LevelFromRID(rid), nil
}

func (windowsPrivilegeController) UserSID() (string, error) {
	var token windows.Token
	err := windows.OpenProcessToken(windows.CurrentProcess(), windows.TOKEN_QUERY, &token)
	if err != nil {
		return "", amberr.NewOsApiError("OpenProcessToken", errnoCode(err), err.Error())
	}
	defer token.Close()

	user, err := token.GetTokenUser()
	if err != nil {
		return "", amberr.NewOsApiError("GetTokenInformation", errnoCode(err), err.Error())
	}
	return user.User.Sid.String(), nil
}
