// pkg/progress/tracker.go
//
// Lock-free progress accounting for batch operations. Workers update
// counters, the orchestrator (or a UI goroutine) reads snapshots.
// Cancellation is cooperative: workers poll IsCancelled before each
// unit of work; in-flight OS calls run to completion.

package progress

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Tracker holds the shared counters for one batch. It is safe for
// concurrent use; individual counters update independently without a
// global lock, so a Snapshot is consistent-enough, not transactional.
type Tracker struct {
	total     atomic.Uint64
	completed atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
	skipped   atomic.Uint64
	cancelled atomic.Bool
	startTime time.Time
}

// NewTracker creates a tracker for an expected total. The total may be
// raised later when a recursive scan discovers more objects.
func NewTracker(total uint64) *Tracker {
	t := &Tracker{startTime: time.Now()}
	t.total.Store(total)
	return t
}

// MarkSuccess records one successfully processed object.
func (t *Tracker) MarkSuccess() {
	t.succeeded.Add(1)
	t.completed.Add(1)
}

// MarkFailed records one failed object.
func (t *Tracker) MarkFailed() {
	t.failed.Add(1)
	t.completed.Add(1)
}

// MarkSkipped records one object skipped by the idempotency check.
func (t *Tracker) MarkSkipped() {
	t.skipped.Add(1)
	t.completed.Add(1)
}

// UpdateTotal raises (or lowers) the expected total mid-run.
func (t *Tracker) UpdateTotal(total uint64) {
	t.total.Store(total)
}

// Cancel requests cooperative cancellation.
func (t *Tracker) Cancel() {
	t.cancelled.Store(true)
}

// IsCancelled reports whether cancellation was requested.
func (t *Tracker) IsCancelled() bool {
	return t.cancelled.Load()
}

// Snapshot returns a point-in-time view of all counters.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		Total:     t.total.Load(),
		Completed: t.completed.Load(),
		Succeeded: t.succeeded.Load(),
		Failed:    t.failed.Load(),
		Skipped:   t.skipped.Load(),
		Elapsed:   time.Since(t.startTime),
		Cancelled: t.cancelled.Load(),
	}
}

// Callback receives the just-processed path and a fresh snapshot.
type Callback func(path string, snap Snapshot)

// Snapshot is a read-only view of a Tracker at one instant.
type Snapshot struct {
	Total     uint64
	Completed uint64
	Succeeded uint64
	Failed    uint64
	Skipped   uint64
	Elapsed   time.Duration
	Cancelled bool
}

// Percentage of completed work, 0 when the total is 0.
func (s Snapshot) Percentage() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Completed) / float64(s.Total) * 100
}

// ETA estimates remaining time from the average rate so far. Nil when
// nothing has completed yet or the batch is already done.
func (s Snapshot) ETA() *time.Duration {
	if s.Completed == 0 || s.Completed >= s.Total {
		return nil
	}
	rate := float64(s.Completed) / s.Elapsed.Seconds()
	remaining := float64(s.Total-s.Completed) / rate
	d := time.Duration(remaining * float64(time.Second))
	return &d
}

// FormatStatus renders a single status line for terminal display.
func (s Snapshot) FormatStatus() string {
	return fmt.Sprintf("%d/%d (%.1f%%) - succeeded: %d, failed: %d, skipped: %d - elapsed: %.1fs",
		s.Completed, s.Total, s.Percentage(), s.Succeeded, s.Failed, s.Skipped, s.Elapsed.Seconds())
}
