//go:build windows

// pkg/privilege/provider_windows.go

package privilege

import (
	"strings"
	"unsafe"

	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/amberr"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/label"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/winsec"
	cerr "github.com/cockroachdb/errors"
	"golang.org/x/sys/windows"
)

type windowsTokenProvider struct{}

// NewPlatformTokenProvider returns the live Windows provider.
func NewPlatformTokenProvider() TokenProvider {
	return windowsTokenProvider{}
}

func (windowsTokenProvider) EnableCurrentPrivilege(name string) error {
	var token windows.Token
	err := windows.OpenProcessToken(windows.CurrentProcess(),
		windows.TOKEN_ADJUST_PRIVILEGES|windows.TOKEN_QUERY, &token)
	if err != nil {
		return amberr.NewOsApiError("OpenProcessToken", osCode(err), err.Error())
	}
	defer token.Close()
	return winsec.AdjustPrivilegeOnToken(token, name, true)
}

func (windowsTokenProvider) ActiveConsoleSessionID() uint32 {
	return windows.WTSGetActiveConsoleSessionId()
}

func (windowsTokenProvider) FindProcessID(name string) (uint32, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return 0, amberr.NewOsApiError("CreateToolhelp32Snapshot", osCode(err), err.Error())
	}
	defer windows.CloseHandle(snapshot)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	if err := windows.Process32First(snapshot, &entry); err != nil {
		return 0, amberr.NewOsApiError("Process32First", osCode(err), err.Error())
	}

	for {
		exe := windows.UTF16ToString(entry.ExeFile[:])
		if strings.EqualFold(exe, name) {
			return entry.ProcessID, nil
		}
		if err := windows.Process32Next(snapshot, &entry); err != nil {
			break
		}
	}
	return 0, cerr.Newf("process %s not found", name)
}

func (windowsTokenProvider) DuplicatePrimaryToken(pid uint32) (Token, error) {
	process, err := windows.OpenProcess(windows.PROCESS_QUERY_INFORMATION, false, pid)
	if err != nil {
		return nil, amberr.NewOsApiError("OpenProcess", osCode(err), err.Error())
	}
	defer windows.CloseHandle(process)

	var procToken windows.Token
	err = windows.OpenProcessToken(process,
		windows.TOKEN_DUPLICATE|windows.TOKEN_QUERY|windows.TOKEN_IMPERSONATE, &procToken)
	if err != nil {
		return nil, amberr.NewOsApiError("OpenProcessToken", osCode(err), err.Error())
	}
	defer procToken.Close()

	var dup windows.Token
	err = windows.DuplicateTokenEx(procToken, windows.TOKEN_ALL_ACCESS, nil,
		windows.SecurityImpersonation, windows.TokenPrimary, &dup)
	if err != nil {
		return nil, amberr.NewOsApiError("DuplicateTokenEx", osCode(err), err.Error())
	}

	return &windowsToken{token: dup}, nil
}

func (windowsTokenProvider) RevertToSelf() error {
	if err := windows.RevertToSelf(); err != nil {
		return amberr.NewOsApiError("RevertToSelf", osCode(err), err.Error())
	}
	return nil
}

// windowsToken owns one duplicated token handle.
type windowsToken struct {
	token windows.Token
}

func (t *windowsToken) IntegrityLevel() (label.Level, error) {
	return winsec.TokenIntegrityLevel(t.token)
}

func (t *windowsToken) EnablePrivilege(name string) error {
	return winsec.AdjustPrivilegeOnToken(t.token, name, true)
}

func (t *windowsToken) SetSessionID(id uint32) error {
	err := windows.SetTokenInformation(t.token, windows.TokenSessionId,
		(*byte)(unsafe.Pointer(&id)), uint32(unsafe.Sizeof(id)))
	if err != nil {
		return amberr.NewOsApiError("SetTokenInformation", osCode(err), err.Error())
	}
	return nil
}

func (t *windowsToken) Impersonate() error {
	if err := windows.ImpersonateLoggedOnUser(t.token); err != nil {
		return amberr.NewOsApiError("ImpersonateLoggedOnUser", osCode(err), err.Error())
	}
	return nil
}

func (t *windowsToken) CreateProcess(commandLine string) (uint32, error) {
	desktop, err := windows.UTF16PtrFromString(`winsta0\default`)
	if err != nil {
		return 0, amberr.NewOsApiError("UTF16PtrFromString", 0, err.Error())
	}
	cmd, err := windows.UTF16PtrFromString(commandLine)
	if err != nil {
		return 0, amberr.NewOsApiError("UTF16PtrFromString", 0, err.Error())
	}

	var si windows.StartupInfo
	si.Cb = uint32(unsafe.Sizeof(si))
	si.Desktop = desktop

	var pi windows.ProcessInformation
	flags := uint32(windows.CREATE_NEW_CONSOLE | windows.CREATE_UNICODE_ENVIRONMENT | windows.NORMAL_PRIORITY_CLASS)

	err = windows.CreateProcessAsUser(t.token, nil, cmd, nil, nil, false, flags, nil, nil, &si, &pi)
	if err != nil {
		return 0, amberr.NewOsApiError("CreateProcessAsUser", osCode(err), err.Error())
	}

	pid := pi.ProcessId
	_ = windows.CloseHandle(pi.Process)
	_ = windows.CloseHandle(pi.Thread)
	return pid, nil
}

func (t *windowsToken) Close() error {
	return t.token.Close()
}

func osCode(err error) uint32 {
	if errno, ok := err.(windows.Errno); ok {
		return uint32(errno)
	}
	return 0
}
