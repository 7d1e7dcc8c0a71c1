// pkg/privilege/privilege.go
//
// Escalation to the SYSTEM principal by duplicating the primary token
// of a well-known system-owned process. The token/privilege syscalls
// sit behind the TokenProvider and Token interfaces; everything above
// them is platform-neutral and testable.

package privilege

import (
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/label"
)

// SystemProcessCandidates is the fixed search order for a donor
// process, most reliable first.
var SystemProcessCandidates = []string{
	"winlogon.exe",
	"lsass.exe",
	"services.exe",
	"csrss.exe",
	"wininit.exe",
}

// Token is a duplicated primary token owned by the escalator.
type Token interface {
	// IntegrityLevel reads the token's mandatory label level.
	IntegrityLevel() (label.Level, error)
	// EnablePrivilege enables a named privilege on this token.
	EnablePrivilege(name string) error
	// SetSessionID rebinds the token to a terminal session so spawned
	// processes land on that desktop.
	SetSessionID(id uint32) error
	// Impersonate applies the token to the calling thread.
	Impersonate() error
	// CreateProcess spawns a process under this token on the
	// interactive desktop and returns its pid. Process and thread
	// handles are closed before returning, success or not.
	CreateProcess(commandLine string) (uint32, error)
	// Close releases the token handle.
	Close() error
}

// TokenProvider is the narrow OS boundary for token theft.
type TokenProvider interface {
	// EnableCurrentPrivilege enables a privilege on the caller's own
	// process token.
	EnableCurrentPrivilege(name string) error
	// ActiveConsoleSessionID identifies the interactive session.
	ActiveConsoleSessionID() uint32
	// FindProcessID resolves a process name to a pid.
	FindProcessID(name string) (uint32, error)
	// DuplicatePrimaryToken opens the process and duplicates its
	// primary token with full access.
	DuplicatePrimaryToken(pid uint32) (Token, error)
	// RevertToSelf restores the calling thread's own token.
	RevertToSelf() error
}

// State of an Escalator. Transitions: Idle -> TokenAcquired ->
// Impersonating -> Idle (revert), or Idle -> TokenAcquired ->
// ProcessSpawned (token used once and dropped).
type State int

const (
	StateIdle State = iota
	StateTokenAcquired
	StateImpersonating
	StateProcessSpawned
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTokenAcquired:
		return "token_acquired"
	case StateImpersonating:
		return "impersonating"
	case StateProcessSpawned:
		return "process_spawned"
	default:
		return "unknown"
	}
}
