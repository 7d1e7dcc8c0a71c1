// pkg/batch/privileged.go
//
// Maintenance operations that run under a borrowed SYSTEM token, for
// objects whose labels place them out of an administrator's reach.

package batch

import (
	"context"

	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/label"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/privilege"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/progress"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/winsec"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// MaintenanceShellCommand is what SpawnMaintenanceShell launches.
const MaintenanceShellCommand = `C:\Windows\System32\cmd.exe`

// Privileged wraps an orchestrator with SYSTEM-level escalation.
type Privileged struct {
	orch   *Orchestrator
	esc    *privilege.Escalator
	cached *winsec.CachedProber
}

// NewPrivileged wires the escalated operations. The cached prober may
// be nil when capability caching is not in use; when set, its snapshot
// is invalidated around every escalation since privilege state changes
// under impersonation.
func NewPrivileged(orch *Orchestrator, esc *privilege.Escalator, cached *winsec.CachedProber) *Privileged {
	return &Privileged{orch: orch, esc: esc, cached: cached}
}

func (p *Privileged) invalidate() {
	if p.cached != nil {
		p.cached.Invalidate()
	}
}

// withSystem runs fn impersonating SYSTEM, invalidating the capability
// cache on both sides of the escalation.
func (p *Privileged) withSystem(ctx context.Context, fn func() error) error {
	p.invalidate()
	defer p.invalidate()
	return p.esc.WithSystemPrivileges(ctx, fn)
}

// ForceLock applies labels under SYSTEM, reaching objects the calling
// administrator cannot touch directly.
func (p *Privileged) ForceLock(ctx context.Context, paths []string, opts Options, cb progress.Callback) (Result, error) {
	var result Result
	err := p.withSystem(ctx, func() error {
		var innerErr error
		result, innerErr = p.orch.Lock(ctx, paths, opts, cb)
		return innerErr
	})
	return result, err
}

// ForceUnlock removes labels under SYSTEM. The vault gate still
// applies; escalation bypasses integrity checks, not authentication.
func (p *Privileged) ForceUnlock(ctx context.Context, paths []string, opts Options, verifier Verifier, cb progress.Callback) (Result, error) {
	if verifier != nil {
		if err := verifier.Verify(ctx); err != nil {
			return Result{}, err
		}
	}

	var result Result
	err := p.withSystem(ctx, func() error {
		var innerErr error
		result, innerErr = p.orch.Unlock(ctx, paths, opts, nil, cb)
		return innerErr
	})
	return result, err
}

// RepairLabel clears and re-applies the label on one object under
// SYSTEM, for descriptors that have become unparseable or stuck.
func (p *Privileged) RepairLabel(ctx context.Context, path string, lvl label.Level, pol label.Policy) error {
	log := otelzap.Ctx(ctx)

	return p.withSystem(ctx, func() error {
		if err := p.orch.store.RemoveLabel(ctx, path); err != nil {
			log.Warn("Could not clear label before repair",
				zap.String("path", path),
				zap.Error(err))
		}
		if err := p.orch.store.SetLabel(ctx, path, lvl, pol); err != nil {
			return err
		}
		log.Info("Label repaired",
			zap.String("path", path),
			zap.String("level", lvl.String()),
			zap.String("policy", pol.String()))
		return nil
	})
}

// SpawnMaintenanceShell launches a SYSTEM shell on the active console
// session and returns its process id.
func (p *Privileged) SpawnMaintenanceShell(ctx context.Context) (uint32, error) {
	p.invalidate()
	defer p.invalidate()
	return p.esc.SpawnSystemProcess(ctx, MaintenanceShellCommand)
}
