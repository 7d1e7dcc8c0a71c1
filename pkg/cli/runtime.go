// pkg/cli/runtime.go

package cli

import (
	"fmt"
	"os"

	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/audit"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/batch"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/checkpoint"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/vault"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/winsec"
	cerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// Runtime bundles the wired enforcement components for one command.
type Runtime struct {
	Store       *winsec.Store
	Prober      *winsec.CachedProber
	Sink        audit.Sink
	Checkpoints *checkpoint.Manager
	Orch        *batch.Orchestrator

	closers []func() error
}

// BuildRuntime wires the platform providers, audit sink and checkpoint
// store according to the loaded settings.
func (rc *RuntimeContext) BuildRuntime() (*Runtime, error) {
	store := winsec.NewPlatformStore()
	prober := winsec.NewCachedProber(winsec.NewPlatformProber())

	rt := &Runtime{Store: store, Prober: prober}

	sink, err := audit.OpenNdjson(rc.Settings.AuditLogPath)
	if err != nil {
		rc.Log.Warn("Audit log unavailable, continuing without it", zap.Error(err))
		rt.Sink = audit.NopSink{}
	} else {
		rt.Sink = sink
		rt.closers = append(rt.closers, sink.Close)
	}

	ckMgr, err := checkpoint.NewManager(rc.Settings.CheckpointDir)
	if err != nil {
		return nil, cerr.Wrap(err, "open checkpoint store")
	}
	rt.Checkpoints = ckMgr

	rt.Orch = batch.NewOrchestrator(store, prober, rt.Sink, ckMgr)
	return rt, nil
}

// Close flushes and releases everything the runtime opened.
func (rt *Runtime) Close() {
	for _, c := range rt.closers {
		_ = c()
	}
}

// VaultAuth returns the vault components for the configured path.
func (rc *RuntimeContext) VaultAuth() (*vault.Auth, *vault.Store) {
	return vault.NewAuth(vault.NewPlatformEnvelope()), vault.NewStore(rc.Settings.VaultPath)
}

// PromptPassword reads a password without echo, falling back to an
// error when stdin is not a terminal.
func PromptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", cerr.New("password prompt requires an interactive terminal")
	}

	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", cerr.Wrap(err, "read password")
	}
	return string(pw), nil
}
