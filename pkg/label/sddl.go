// pkg/label/sddl.go
//
// SDDL construction and parsing for the mandatory-label ACE. The SACL
// fragment has the fixed shape S:(ML;;<policy>;;;<level>), where the
// policy field concatenates up to three two-letter flags and the level
// field is one of ME/HI/SI or a raw S-1-16-<rid> SID.

package label

import (
	"fmt"
	"strconv"
	"strings"
)

const mlMarker = "(ML;;"

// BuildSDDL encodes a level and policy as a SACL descriptor fragment.
// The output is deterministic: flags always render in NW, NR, NX order.
func BuildSDDL(level Level, policy Policy) string {
	var flags strings.Builder
	if policy.Has(NoWriteUp) {
		flags.WriteString("NW")
	}
	if policy.Has(NoReadUp) {
		flags.WriteString("NR")
	}
	if policy.Has(NoExecuteUp) {
		flags.WriteString("NX")
	}
	return fmt.Sprintf("S:(ML;;%s;;;%s)", flags.String(), level.SDDLToken())
}

// EmptySACL clears every mandatory label when applied to an object.
const EmptySACL = "S:"

// ParseSDDL scans descriptor text for a mandatory-label ACE and
// decodes it. A nil, nil return means no explicit label: the object is
// implicitly Medium. Both symbolic level tokens and numeric integrity
// SIDs are accepted; out-of-range RIDs resolve to the highest level
// they reach.
func ParseSDDL(sddl string) (*Level, *Policy) {
	start := strings.Index(sddl, mlMarker)
	if start < 0 {
		return nil, nil
	}
	ace := sddl[start:]
	if end := strings.Index(ace, ")"); end >= 0 {
		ace = ace[:end]
	}

	fields := strings.Split(ace, ";")
	if len(fields) < 6 {
		return nil, nil
	}

	policy := parsePolicyField(fields[2])
	level := parseLevelField(fields[5])
	if level == nil {
		return nil, nil
	}
	return level, &policy
}

func parsePolicyField(field string) Policy {
	var p Policy
	for i := 0; i+2 <= len(field); i += 2 {
		switch field[i : i+2] {
		case "NW":
			p |= NoWriteUp
		case "NR":
			p |= NoReadUp
		case "NX":
			p |= NoExecuteUp
		}
	}
	return p
}

func parseLevelField(field string) *Level {
	var l Level
	switch field {
	case "ME":
		l = Medium
	case "HI":
		l = High
	case "SI":
		l = System
	default:
		// Numeric form: a full integrity SID, S-1-16-<rid>. The RID can
		// be decimal or 0x-prefixed hex depending on who produced the
		// descriptor.
		rest, ok := strings.CutPrefix(field, "S-1-16-")
		if !ok {
			return nil
		}
		rid, err := parseRID(rest)
		if err != nil {
			return nil
		}
		l = LevelFromRID(rid)
	}
	return &l
}

func parseRID(s string) (uint32, error) {
	base := 10
	if rest, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		s, base = rest, 16
	}
	v, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
