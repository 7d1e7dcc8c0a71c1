// pkg/privilege/escalator.go

package privilege

import (
	"context"
	"sync"

	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/amberr"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/label"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/winsec"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// escalationMu serializes every acquire -> use -> revert sequence.
// Impersonation is thread-global OS state: two goroutines racing to
// impersonate and revert on the same thread context would corrupt each
// other.
var escalationMu sync.Mutex

// Escalator obtains and applies a SYSTEM token.
type Escalator struct {
	provider TokenProvider

	mu    sync.Mutex
	state State
	token Token
}

// NewEscalator builds an escalator over the given provider.
func NewEscalator(provider TokenProvider) *Escalator {
	return &Escalator{provider: provider, state: StateIdle}
}

// NewPlatformEscalator builds an escalator over the live OS provider.
func NewPlatformEscalator() *Escalator {
	return NewEscalator(NewPlatformTokenProvider())
}

// State reports the current state-machine position.
func (e *Escalator) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// AcquireSystemToken walks the candidate list and keeps the first
// donor whose duplicated token validates as System integrity. Failures
// of individual candidates are logged and swallowed; only exhaustion
// is fatal.
func (e *Escalator) AcquireSystemToken(ctx context.Context) error {
	logger := otelzap.Ctx(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateIdle {
		return cerr.Newf("cannot acquire token in state %s", e.state)
	}

	// Best effort: SeDebug widens which processes we may open. Losing
	// it just means fewer candidates succeed.
	if err := e.provider.EnableCurrentPrivilege(winsec.PrivDebug); err != nil {
		logger.Debug("SeDebugPrivilege not available", zap.Error(err))
	}

	sessionID := e.provider.ActiveConsoleSessionID()

	for _, name := range SystemProcessCandidates {
		token, err := e.stealFrom(name, sessionID)
		if err != nil {
			logger.Warn("System token candidate failed",
				zap.String("process", name), zap.Error(err))
			continue
		}
		logger.Info("System token acquired",
			zap.String("process", name), zap.Uint32("session_id", sessionID))
		e.token = token
		e.state = StateTokenAcquired
		return nil
	}

	return cerr.Mark(cerr.New("no usable system process found"), amberr.ErrUnsupported)
}

func (e *Escalator) stealFrom(name string, sessionID uint32) (Token, error) {
	pid, err := e.provider.FindProcessID(name)
	if err != nil {
		return nil, err
	}

	token, err := e.provider.DuplicatePrimaryToken(pid)
	if err != nil {
		return nil, err
	}

	// Guard against a same-named but unprivileged process: the token
	// must carry System integrity, not merely the right image name.
	level, err := token.IntegrityLevel()
	if err != nil {
		_ = token.Close()
		return nil, err
	}
	if level != label.System {
		_ = token.Close()
		return nil, cerr.Newf("process %s token integrity is %s, not System", name, level)
	}

	if err := token.EnablePrivilege(winsec.PrivTcb); err != nil {
		_ = token.Close()
		return nil, err
	}

	// Rebind to the interactive session so impersonation and spawned
	// processes land on the current desktop.
	if err := token.SetSessionID(sessionID); err != nil {
		_ = token.Close()
		return nil, err
	}

	return token, nil
}

// Impersonate applies the acquired token to the current thread.
func (e *Escalator) Impersonate(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateTokenAcquired {
		return cerr.Newf("cannot impersonate in state %s", e.state)
	}
	if err := e.token.Impersonate(); err != nil {
		return err
	}
	e.state = StateImpersonating
	otelzap.Ctx(ctx).Info("Impersonating system token")
	return nil
}

// RevertToSelf undoes impersonation and releases the token.
func (e *Escalator) RevertToSelf(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateImpersonating {
		return cerr.Newf("cannot revert in state %s", e.state)
	}
	err := e.provider.RevertToSelf()
	_ = e.token.Close()
	e.token = nil
	e.state = StateIdle
	if err != nil {
		return err
	}
	otelzap.Ctx(ctx).Info("Reverted to self")
	return nil
}

// CreateProcess spawns a process under the acquired token. The token
// is used once: its context is dropped whether or not the spawn
// succeeded.
func (e *Escalator) CreateProcess(ctx context.Context, commandLine string) (uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateTokenAcquired {
		return 0, cerr.Newf("cannot create process in state %s", e.state)
	}

	pid, err := e.token.CreateProcess(commandLine)
	_ = e.token.Close()
	e.token = nil
	e.state = StateProcessSpawned
	if err != nil {
		return 0, err
	}

	otelzap.Ctx(ctx).Info("Spawned elevated process",
		zap.Uint32("pid", pid), zap.String("command", commandLine))
	return pid, nil
}

// Close releases any held token and resets to idle.
func (e *Escalator) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateImpersonating {
		_ = e.provider.RevertToSelf()
	}
	if e.token != nil {
		_ = e.token.Close()
		e.token = nil
	}
	e.state = StateIdle
}

// WithSystemPrivileges runs fn while the calling thread impersonates
// SYSTEM. The whole acquire -> impersonate -> fn -> revert sequence
// holds the process-wide escalation lock, and the revert runs on every
// exit path.
func (e *Escalator) WithSystemPrivileges(ctx context.Context, fn func() error) error {
	escalationMu.Lock()
	defer escalationMu.Unlock()

	if err := e.AcquireSystemToken(ctx); err != nil {
		return err
	}
	if err := e.Impersonate(ctx); err != nil {
		e.Close()
		return err
	}
	defer func() {
		if err := e.RevertToSelf(ctx); err != nil {
			otelzap.Ctx(ctx).Error("Revert to self failed", zap.Error(err))
			e.Close()
		}
	}()

	return fn()
}

// SpawnSystemProcess acquires a token and launches one process with
// it, end to end.
func (e *Escalator) SpawnSystemProcess(ctx context.Context, commandLine string) (uint32, error) {
	escalationMu.Lock()
	defer escalationMu.Unlock()

	if err := e.AcquireSystemToken(ctx); err != nil {
		return 0, err
	}
	return e.CreateProcess(ctx, commandLine)
}
