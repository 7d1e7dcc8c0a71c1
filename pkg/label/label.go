// pkg/label/label.go
//
// Mandatory-label domain types: integrity levels and mandatory
// policy flags. Pure data, no I/O.

package label

import (
	"fmt"
	"strings"
)

// Level is a Windows integrity level. Ordering matters: a higher
// value dominates a lower one.
type Level int

const (
	Medium Level = iota
	High
	System
)

// Integrity RIDs as they appear in the S-1-16-<rid> mandatory label SID.
const (
	ridMedium uint32 = 0x2000
	ridHigh   uint32 = 0x3000
	ridSystem uint32 = 0x4000
)

func (l Level) String() string {
	switch l {
	case Medium:
		return "Medium"
	case High:
		return "High"
	case System:
		return "System"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// SDDLToken returns the two-letter SDDL level token.
func (l Level) SDDLToken() string {
	switch l {
	case High:
		return "HI"
	case System:
		return "SI"
	default:
		return "ME"
	}
}

// LevelFromRID maps a mandatory label RID to a Level. Out-of-range
// values resolve upward: anything at or above the System RID is
// System, anything between High and System is High.
func LevelFromRID(rid uint32) Level {
	switch {
	case rid >= ridSystem:
		return System
	case rid >= ridHigh:
		return High
	default:
		return Medium
	}
}

// ParseLevel converts a case-insensitive level name.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "medium":
		return Medium, nil
	case "high":
		return High, nil
	case "system":
		return System, nil
	default:
		return Medium, fmt.Errorf("unknown integrity level %q", s)
	}
}

// Policy is the mandatory-label policy bit set. NoWriteUp is the only
// bit the OS guarantees to enforce on file objects; NoReadUp and
// NoExecuteUp are best effort and may be silently ignored for files.
type Policy uint32

const (
	NoWriteUp Policy = 1 << iota
	NoReadUp
	NoExecuteUp
)

// DefaultPolicy is what an object without an explicit label carries.
const DefaultPolicy = NoWriteUp

func (p Policy) Has(flag Policy) bool { return p&flag != 0 }

func (p Policy) String() string {
	if p == 0 {
		return "none"
	}
	s := ""
	if p.Has(NoWriteUp) {
		s += "NW"
	}
	if p.Has(NoReadUp) {
		s += "NR"
	}
	if p.Has(NoExecuteUp) {
		s += "NX"
	}
	return s
}

// ObjectLabel is the decoded mandatory label of one file-system
// object. Raw keeps the full descriptor text for audit records even
// when level/policy could not be parsed.
type ObjectLabel struct {
	Level  Level
	Policy Policy
	Raw    string
}

// ComputeEffectiveLevel applies the single authorization downgrade
// rule in the system: a caller without SeRelabelPrivilege cannot set
// System and is downgraded to High. It must run before any write.
func ComputeEffectiveLevel(desired Level, canSetSystem bool) Level {
	if desired == System && !canSetSystem {
		return High
	}
	return desired
}
