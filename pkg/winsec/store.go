// pkg/winsec/store.go

package winsec

import (
	"context"

	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/amberr"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/label"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// ObjectLabel is a read label together with whether the object carried
// an explicit mandatory-label ACE. An absent label decodes as the
// implicit default (Medium, NoWriteUp) and is not an error.
type ObjectLabel struct {
	Level    label.Level
	Policy   label.Policy
	Raw      string
	Explicit bool
}

// Store reads, writes and clears the mandatory label of individual
// file-system objects. Operations are per-object and safe to call
// concurrently as long as the process privilege state does not change
// mid-call.
type Store struct {
	desc DescriptorProvider
	priv PrivilegeController
}

// NewStore wires a store over the given providers.
func NewStore(desc DescriptorProvider, priv PrivilegeController) *Store {
	return &Store{desc: desc, priv: priv}
}

// GetLabel reads and decodes the object's mandatory label. The raw
// descriptor text is always preserved for audit, even when it carries
// no parseable label.
func (s *Store) GetLabel(path string) (ObjectLabel, error) {
	sddl, err := s.desc.GetDescriptor(path)
	if err != nil {
		return ObjectLabel{}, err
	}

	lvl, pol := label.ParseSDDL(sddl)
	if lvl == nil || pol == nil {
		return ObjectLabel{
			Level:  label.Medium,
			Policy: label.DefaultPolicy,
			Raw:    sddl,
		}, nil
	}
	return ObjectLabel{Level: *lvl, Policy: *pol, Raw: sddl, Explicit: true}, nil
}

// SetLabel encodes and applies a mandatory label. SeSecurityPrivilege
// must be enableable or the operation is not attempted. For a System
// label, SeRelabelPrivilege is enabled best-effort first; if the
// caller genuinely lacks it the OS call itself fails.
func (s *Store) SetLabel(ctx context.Context, path string, lvl label.Level, pol label.Policy) error {
	logger := otelzap.Ctx(ctx)

	if err := s.priv.EnablePrivilege(PrivSecurity, true); err != nil {
		return amberr.NewPrivilegeMissing(PrivSecurity)
	}

	if lvl == label.System {
		if err := s.priv.EnablePrivilege(PrivRelabel, true); err != nil {
			logger.Debug("SeRelabelPrivilege not available, relying on OS check",
				zap.String("path", path), zap.Error(err))
		}
	}

	sddl := label.BuildSDDL(lvl, pol)
	if err := s.desc.SetDescriptor(path, sddl); err != nil {
		return err
	}

	logger.Debug("Mandatory label applied",
		zap.String("path", path),
		zap.String("level", lvl.String()),
		zap.String("policy", pol.String()))
	return nil
}

// RemoveLabel clears the mandatory label by applying an empty SACL.
// Removing an already-absent label succeeds.
func (s *Store) RemoveLabel(ctx context.Context, path string) error {
	logger := otelzap.Ctx(ctx)

	if err := s.priv.EnablePrivilege(PrivSecurity, true); err != nil {
		return amberr.NewPrivilegeMissing(PrivSecurity)
	}

	if err := s.desc.SetDescriptor(path, label.EmptySACL); err != nil {
		return err
	}

	logger.Debug("Mandatory label removed", zap.String("path", path))
	return nil
}
