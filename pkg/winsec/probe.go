// pkg/winsec/probe.go

package winsec

import (
	"context"
	"sync"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Prober yields a capability snapshot for the current process.
type Prober interface {
	Probe(ctx context.Context) (Capability, error)
}

// CapabilityProber probes the live process token. Probing enables the
// relevant privileges as a side effect; that is intentional, the same
// privileges are needed immediately afterwards for any label write.
type CapabilityProber struct {
	priv PrivilegeController
}

func NewCapabilityProber(priv PrivilegeController) *CapabilityProber {
	return &CapabilityProber{priv: priv}
}

// Probe determines the caller's integrity level, whether it can touch
// SACLs, whether it can apply System labels, and its identity.
func (p *CapabilityProber) Probe(ctx context.Context) (Capability, error) {
	logger := otelzap.Ctx(ctx)

	level, err := p.priv.ProcessIntegrityLevel()
	if err != nil {
		return Capability{}, err
	}

	cap := Capability{
		CallerLevel:  level,
		CanTouchSACL: p.priv.EnablePrivilege(PrivSecurity, true) == nil,
		CanSetSystem: p.priv.EnablePrivilege(PrivRelabel, true) == nil,
	}

	if sid, err := p.priv.UserSID(); err == nil {
		cap.UserIdentity = sid
	} else {
		logger.Warn("Could not read user SID", zap.Error(err))
	}

	logger.Info("Capability probe completed",
		zap.String("caller_level", cap.CallerLevel.String()),
		zap.Bool("can_touch_sacl", cap.CanTouchSACL),
		zap.Bool("can_set_system", cap.CanSetSystem),
		zap.String("user", cap.UserIdentity))
	return cap, nil
}

// CachedProber memoizes the first successful probe. Privilege state
// rarely changes within a process lifetime, but callers who elevate
// mid-run must call Invalidate.
type CachedProber struct {
	inner Prober

	mu  sync.Mutex
	cap *Capability
}

func NewCachedProber(inner Prober) *CachedProber {
	return &CachedProber{inner: inner}
}

func (c *CachedProber) Probe(ctx context.Context) (Capability, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cap != nil {
		return *c.cap, nil
	}
	cap, err := c.inner.Probe(ctx)
	if err != nil {
		return Capability{}, err
	}
	c.cap = &cap
	return cap, nil
}

// Invalidate drops the memoized snapshot so the next Probe hits the
// OS again.
func (c *CachedProber) Invalidate() {
	c.mu.Lock()
	c.cap = nil
	c.mu.Unlock()
}
