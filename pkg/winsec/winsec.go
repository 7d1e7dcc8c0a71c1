// pkg/winsec/winsec.go
//
// Thin boundary around the Windows named-object security API. All
// direct OS-handle manipulation in this package sits behind two narrow
// interfaces so that orchestration, rollback, checkpoint and vault
// logic never touch a syscall.

package winsec

import (
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/label"
)

// Privilege names as the OS knows them.
const (
	PrivSecurity = "SeSecurityPrivilege" // read/write SACLs
	PrivRelabel  = "SeRelabelPrivilege"  // raise a label above the caller's own
	PrivDebug    = "SeDebugPrivilege"    // open system-owned processes
	PrivTcb      = "SeTcbPrivilege"      // act as part of the operating system
)

// DescriptorProvider reads and writes the SACL portion of an object's
// security descriptor as SDDL text.
type DescriptorProvider interface {
	// GetDescriptor returns the object's SACL and mandatory-label
	// information rendered as SDDL.
	GetDescriptor(path string) (string, error)
	// SetDescriptor applies an SDDL SACL fragment to the object.
	SetDescriptor(path, sddl string) error
}

// PrivilegeController manipulates the calling process's own token.
type PrivilegeController interface {
	// EnablePrivilege enables or disables a named privilege on the
	// process token. Enabling fails when the privilege is not held at
	// all.
	EnablePrivilege(name string, enable bool) error
	// ProcessIntegrityLevel reads the integrity level of the process
	// token.
	ProcessIntegrityLevel() (label.Level, error)
	// UserSID returns the current user's SID in string form, for audit
	// records.
	UserSID() (string, error)
}

// Capability is an immutable snapshot of what the current process may
// do. Thread it through explicitly; there is no ambient global cache.
type Capability struct {
	CallerLevel  label.Level
	CanTouchSACL bool
	CanSetSystem bool
	UserIdentity string
}

// NewPlatformStore builds a Store over the OS providers for the
// current platform.
func NewPlatformStore() *Store {
	return NewStore(NewPlatformDescriptorProvider(), NewPlatformPrivilegeController())
}

// NewPlatformProber builds a CapabilityProber over the OS privilege
// controller.
func NewPlatformProber() *CapabilityProber {
	return NewCapabilityProber(NewPlatformPrivilegeController())
}
