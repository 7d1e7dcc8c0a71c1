// pkg/batch/batch.go
//
// Batch orchestration: drives the label store across many paths with
// bounded concurrency, idempotency, dry-run, rollback and checkpoint
// support. All per-object failures are captured into the result;
// only setup failures (capability probe, authentication) abort the
// whole batch.

package batch

import (
	"context"
	"os"
	"strings"
	"sync/atomic"

	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/audit"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/checkpoint"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/label"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/progress"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/rollback"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/winsec"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// LabelStore is the per-object label surface the orchestrator drives.
// *winsec.Store satisfies it.
type LabelStore interface {
	GetLabel(path string) (winsec.ObjectLabel, error)
	SetLabel(ctx context.Context, path string, lvl label.Level, pol label.Policy) error
	RemoveLabel(ctx context.Context, path string) error
}

// ProtectMode selects how aggressively an object is protected.
// ReadOnly blocks writes from lower-integrity callers; Seal
// additionally requests the best-effort read/execute blocks.
type ProtectMode int

const (
	ReadOnly ProtectMode = iota
	Seal
)

func (m ProtectMode) String() string {
	if m == Seal {
		return "seal"
	}
	return "read-only"
}

// ParseMode converts a case-insensitive mode name.
func ParseMode(s string) (ProtectMode, error) {
	switch strings.ToLower(s) {
	case "read-only", "readonly":
		return ReadOnly, nil
	case "seal":
		return Seal, nil
	default:
		return ReadOnly, cerr.Newf("unknown protect mode %q", s)
	}
}

// PolicyFor maps a mode to the policy bits to request. The NR/NX bits
// are only requested when explicitly enabled, because the OS does not
// guarantee them for file objects.
func PolicyFor(mode ProtectMode, enableNRNX bool) label.Policy {
	pol := label.NoWriteUp
	if mode == Seal && enableNRNX {
		pol |= label.NoReadUp | label.NoExecuteUp
	}
	return pol
}

// Options configures one batch run.
type Options struct {
	DesiredLevel     label.Level
	Mode             ProtectMode
	Policy           label.Policy
	Parallelism      int
	DryRun           bool
	EnableRollback   bool
	EnableCheckpoint bool
	Idempotent       bool
	StopOnError      bool
}

// DefaultOptions mirrors the shipped defaults: High/read-only,
// idempotent, with rollback.
func DefaultOptions() Options {
	return Options{
		DesiredLevel:   label.High,
		Mode:           ReadOnly,
		Policy:         label.NoWriteUp,
		Parallelism:    4,
		EnableRollback: true,
		Idempotent:     true,
	}
}

// Outcome classifies what happened to one object.
type Outcome int

const (
	Success Outcome = iota
	Downgraded
	Skipped
	Failed
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Downgraded:
		return "downgraded"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// PathResult pairs a path with its outcome and error text, if any.
type PathResult struct {
	Path    string
	Outcome Outcome
	Error   string
}

// Result aggregates a whole batch.
type Result struct {
	Total      int
	Succeeded  int
	Failed     int
	Downgraded int
	Skipped    int
	Cancelled  int

	// EffectiveLevel is the level actually applied after the
	// authorization downgrade rule.
	EffectiveLevel label.Level

	CheckpointID string
	Rollback     *rollback.Result
	PerPath      []PathResult
}

// IsSuccess reports a batch with no failures and no cancellation.
func (r Result) IsSuccess() bool {
	return r.Failed == 0 && r.Cancelled == 0
}

// IsPartialSuccess reports a batch that did some work before failing
// or being cancelled.
func (r Result) IsPartialSuccess() bool {
	return r.Succeeded > 0 && (r.Failed > 0 || r.Cancelled > 0)
}

// Verifier gates destructive batches behind an authentication check.
type Verifier interface {
	Verify(ctx context.Context) error
}

// Orchestrator runs lock and unlock batches.
type Orchestrator struct {
	store       LabelStore
	prober      winsec.Prober
	sink        audit.Sink
	checkpoints *checkpoint.Manager
}

// NewOrchestrator wires a batch orchestrator. The sink may be nil to
// disable auditing; checkpoints may be nil to disable resumability.
func NewOrchestrator(store LabelStore, prober winsec.Prober, sink audit.Sink, checkpoints *checkpoint.Manager) *Orchestrator {
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Orchestrator{store: store, prober: prober, sink: sink, checkpoints: checkpoints}
}

// Lock applies the desired label across all paths. The tracker may be
// cancelled from another goroutine to stop the batch cooperatively.
func (o *Orchestrator) Lock(ctx context.Context, paths []string, opts Options, cb progress.Callback) (Result, error) {
	log := otelzap.Ctx(ctx)

	cap, err := o.prober.Probe(ctx)
	if err != nil {
		return Result{}, cerr.Wrap(err, "probe capability")
	}
	effective := label.ComputeEffectiveLevel(opts.DesiredLevel, cap.CanSetSystem)
	if effective != opts.DesiredLevel {
		log.Warn("Requested level not authorized, downgrading",
			zap.String("desired", opts.DesiredLevel.String()),
			zap.String("effective", effective.String()))
	}

	tracker := progress.NewTracker(uint64(len(paths)))

	var rb *rollback.Manager
	if opts.EnableRollback && !opts.DryRun {
		rb = rollback.NewManager(o.store)
		for _, p := range paths {
			rb.Backup(ctx, p)
		}
	}

	var ck *checkpoint.Checkpoint
	if opts.EnableCheckpoint && o.checkpoints != nil {
		ck = checkpoint.New("lock", len(paths), map[string]string{
			"mode":   opts.Mode.String(),
			"level":  effective.String(),
			"policy": opts.Policy.String(),
		})
	}

	outcomes := make([]PathResult, len(paths))
	var halt atomic.Bool

	g := new(errgroup.Group)
	g.SetLimit(workerLimit(opts.Parallelism))
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if halt.Load() || tracker.IsCancelled() || ctx.Err() != nil {
				outcomes[i] = PathResult{Path: path, Outcome: Cancelled}
				return nil
			}

			outcomes[i] = o.lockOne(ctx, path, opts, effective, cap.UserIdentity, tracker)
			if outcomes[i].Outcome == Failed && opts.StopOnError {
				halt.Store(true)
			}
			if cb != nil {
				cb(path, tracker.Snapshot())
			}
			return nil
		})
	}
	g.Wait()

	result := summarize(outcomes, effective)

	if rb != nil {
		if result.Failed > 0 {
			rbRes, rbErr := rb.Rollback(ctx)
			result.Rollback = &rbRes
			if rbErr != nil {
				log.Error("Rollback incomplete", zap.Error(rbErr))
			}
		} else {
			rb.Commit()
		}
	}

	if ck != nil {
		var pending []string
		for _, r := range outcomes {
			if r.Outcome == Cancelled {
				pending = append(pending, r.Path)
			}
		}
		processed := len(paths) - len(pending)
		ck.UpdateProgress(processed, result.Succeeded, result.Failed, pending)
		if err := o.checkpoints.Save(ck); err != nil {
			log.Warn("Could not save checkpoint", zap.Error(err))
		} else {
			result.CheckpointID = ck.ID
		}
	}

	log.Info("Batch lock finished",
		zap.Int("total", result.Total),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("downgraded", result.Downgraded),
		zap.Int("skipped", result.Skipped),
		zap.Int("cancelled", result.Cancelled))
	return result, nil
}

func (o *Orchestrator) lockOne(ctx context.Context, path string, opts Options, effective label.Level, userSID string, tracker *progress.Tracker) PathResult {
	before, readErr := o.store.GetLabel(path)

	if opts.Idempotent && readErr == nil && before.Explicit &&
		before.Level == effective && before.Policy == opts.Policy {
		tracker.MarkSkipped()
		return PathResult{Path: path, Outcome: Skipped}
	}

	if opts.DryRun {
		tracker.MarkSuccess()
		return PathResult{Path: path, Outcome: Success}
	}

	rec := o.newRecord(path, opts.Mode, effective, opts.Policy, userSID)
	if readErr == nil {
		rec.SDDLBefore = before.Raw
	}

	if err := o.store.SetLabel(ctx, path, effective, opts.Policy); err != nil {
		rec.Status = "error"
		rec.Errors = []string{err.Error()}
		o.append(ctx, rec)
		tracker.MarkFailed()
		return PathResult{Path: path, Outcome: Failed, Error: err.Error()}
	}

	if after, err := o.store.GetLabel(path); err == nil {
		rec.SDDLAfter = after.Raw
	}
	rec.Status = "success"
	o.append(ctx, rec)
	tracker.MarkSuccess()

	if effective != opts.DesiredLevel {
		return PathResult{Path: path, Outcome: Downgraded}
	}
	return PathResult{Path: path, Outcome: Success}
}

// Unlock removes labels from all paths, gated behind the verifier. A
// failed verification aborts before any object is touched.
func (o *Orchestrator) Unlock(ctx context.Context, paths []string, opts Options, verifier Verifier, cb progress.Callback) (Result, error) {
	log := otelzap.Ctx(ctx)

	if verifier != nil {
		if err := verifier.Verify(ctx); err != nil {
			return Result{}, err
		}
	}

	cap, err := o.prober.Probe(ctx)
	if err != nil {
		return Result{}, cerr.Wrap(err, "probe capability")
	}

	tracker := progress.NewTracker(uint64(len(paths)))
	outcomes := make([]PathResult, len(paths))
	var halt atomic.Bool

	g := new(errgroup.Group)
	g.SetLimit(workerLimit(opts.Parallelism))
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if halt.Load() || tracker.IsCancelled() || ctx.Err() != nil {
				outcomes[i] = PathResult{Path: path, Outcome: Cancelled}
				return nil
			}

			outcomes[i] = o.unlockOne(ctx, path, opts, cap.UserIdentity, tracker)
			if outcomes[i].Outcome == Failed && opts.StopOnError {
				halt.Store(true)
			}
			if cb != nil {
				cb(path, tracker.Snapshot())
			}
			return nil
		})
	}
	g.Wait()

	result := summarize(outcomes, label.Medium)
	log.Info("Batch unlock finished",
		zap.Int("total", result.Total),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("cancelled", result.Cancelled))
	return result, nil
}

func (o *Orchestrator) unlockOne(ctx context.Context, path string, opts Options, userSID string, tracker *progress.Tracker) PathResult {
	before, readErr := o.store.GetLabel(path)

	if opts.Idempotent && readErr == nil && !before.Explicit {
		tracker.MarkSkipped()
		return PathResult{Path: path, Outcome: Skipped}
	}

	if opts.DryRun {
		tracker.MarkSuccess()
		return PathResult{Path: path, Outcome: Success}
	}

	rec := o.newRecord(path, ReadOnly, label.Medium, label.NoWriteUp, userSID)
	if readErr == nil {
		rec.SDDLBefore = before.Raw
	}

	if err := o.store.RemoveLabel(ctx, path); err != nil {
		rec.Status = "error"
		rec.Errors = []string{err.Error()}
		o.append(ctx, rec)
		tracker.MarkFailed()
		return PathResult{Path: path, Outcome: Failed, Error: err.Error()}
	}

	rec.Status = "unlocked"
	o.append(ctx, rec)
	tracker.MarkSuccess()
	return PathResult{Path: path, Outcome: Success}
}

// ResumeLock continues a lock batch from a saved checkpoint, running
// only its pending paths. The old checkpoint is deleted once the
// resumed batch produces its own.
func (o *Orchestrator) ResumeLock(ctx context.Context, checkpointID string, opts Options, cb progress.Callback) (Result, error) {
	if o.checkpoints == nil {
		return Result{}, cerr.New("checkpointing is not configured")
	}

	ck, err := o.checkpoints.Load(checkpointID)
	if err != nil {
		return Result{}, err
	}
	if ck.Operation != "lock" {
		return Result{}, cerr.Newf("checkpoint %s records a %q operation, not a lock", checkpointID, ck.Operation)
	}
	if ck.IsComplete() || len(ck.PendingPaths) == 0 {
		return Result{EffectiveLevel: opts.DesiredLevel}, o.checkpoints.Delete(checkpointID)
	}

	if lvl, ok := ck.OperationParams["level"]; ok {
		if parsed, err := label.ParseLevel(lvl); err == nil {
			opts.DesiredLevel = parsed
		}
	}

	result, err := o.Lock(ctx, ck.PendingPaths, opts, cb)
	if err != nil {
		return result, err
	}

	if delErr := o.checkpoints.Delete(checkpointID); delErr != nil {
		otelzap.Ctx(ctx).Warn("Could not delete resumed checkpoint",
			zap.String("checkpoint_id", checkpointID),
			zap.Error(delErr))
	}
	return result, nil
}

func (o *Orchestrator) newRecord(path string, mode ProtectMode, lvl label.Level, pol label.Policy, userSID string) audit.Record {
	rec := audit.NewRecord(path)
	rec.Kind = targetKind(path)
	rec.Mode = mode.String()
	rec.LevelApplied = lvl.String()
	rec.Policy = pol.String()
	rec.UserSID = userSID
	return rec
}

// append writes an audit record, dropping failures: logging must never
// abort enforcement.
func (o *Orchestrator) append(ctx context.Context, rec audit.Record) {
	if err := o.sink.Append(rec); err != nil {
		otelzap.Ctx(ctx).Warn("Audit append failed",
			zap.String("path", rec.Path),
			zap.Error(err))
	}
}

func targetKind(path string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return "directory"
	}
	return "file"
}

func workerLimit(parallelism int) int {
	if parallelism < 1 {
		return 4
	}
	return parallelism
}

func summarize(outcomes []PathResult, effective label.Level) Result {
	result := Result{
		Total:          len(outcomes),
		EffectiveLevel: effective,
		PerPath:        outcomes,
	}
	for _, r := range outcomes {
		switch r.Outcome {
		case Success:
			result.Succeeded++
		case Downgraded:
			result.Succeeded++
			result.Downgraded++
		case Skipped:
			result.Skipped++
		case Failed:
			result.Failed++
		case Cancelled:
			result.Cancelled++
		}
	}
	return result
}
