// pkg/rollback/rollback.go
//
// In-memory undo journal for a single batch. Before a batch mutates an
// object it records the object's prior label here; if the batch fails
// the journal restores every recorded object in reverse order, and if
// it succeeds the journal is committed and the backups dropped.

package rollback

import (
	"context"
	"sync"

	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/label"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/winsec"
	"github.com/hashicorp/go-multierror"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// labelStore is the slice of winsec.Store the journal needs.
type labelStore interface {
	GetLabel(path string) (winsec.ObjectLabel, error)
	SetLabel(ctx context.Context, path string, lvl label.Level, pol label.Policy) error
	RemoveLabel(ctx context.Context, path string) error
}

// ObjectBackup captures one object's label before mutation. Nil Level
// means the object carried no explicit label, so restoring it removes
// the label rather than re-applying one.
type ObjectBackup struct {
	Path   string
	Level  *label.Level
	Policy *label.Policy
}

// Result summarizes a restore pass.
type Result struct {
	Total     int
	Succeeded int
	Failed    int
}

// Manager accumulates backups during a batch and restores them on
// failure. Safe for concurrent Backup calls from batch workers.
type Manager struct {
	store labelStore

	mu        sync.Mutex
	backups   []ObjectBackup
	committed bool
}

func NewManager(store labelStore) *Manager {
	return &Manager{store: store}
}

// Backup records the object's current label. An unreadable object is
// skipped: there is nothing trustworthy to restore, and failing the
// whole batch over a read error would block objects we can handle.
func (m *Manager) Backup(ctx context.Context, path string) {
	current, err := m.store.GetLabel(path)
	if err != nil {
		otelzap.Ctx(ctx).Warn("Skipping backup for unreadable object",
			zap.String("path", path),
			zap.Error(err))
		return
	}

	backup := ObjectBackup{Path: path}
	if current.Explicit {
		lvl := current.Level
		pol := current.Policy
		backup.Level = &lvl
		backup.Policy = &pol
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.committed {
		return
	}
	m.backups = append(m.backups, backup)
}

// Count returns the number of pending backups.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.backups)
}

// Rollback restores every backed-up object in reverse order of
// recording. It keeps going past individual failures and reports them
// all together.
func (m *Manager) Rollback(ctx context.Context) (Result, error) {
	m.mu.Lock()
	backups := m.backups
	m.backups = nil
	m.mu.Unlock()

	log := otelzap.Ctx(ctx)
	result := Result{Total: len(backups)}

	var errs *multierror.Error
	for i := len(backups) - 1; i >= 0; i-- {
		b := backups[i]

		var err error
		if b.Level != nil && b.Policy != nil {
			err = m.store.SetLabel(ctx, b.Path, *b.Level, *b.Policy)
		} else {
			err = m.store.RemoveLabel(ctx, b.Path)
		}

		if err != nil {
			result.Failed++
			errs = multierror.Append(errs, err)
			log.Error("Failed to restore object label",
				zap.String("path", b.Path),
				zap.Error(err))
			continue
		}
		result.Succeeded++
	}

	log.Info("Rollback finished",
		zap.Int("total", result.Total),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed))

	return result, errs.ErrorOrNil()
}

// Commit makes the batch's changes permanent by discarding the
// backups. After Commit the journal no longer records or restores.
func (m *Manager) Commit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed = true
	m.backups = nil
}
