// pkg/checkpoint/checkpoint.go
//
// Resumable-batch checkpoints. A checkpoint records how far a long
// batch got and which paths are still pending, so an interrupted run
// can pick up where it left off. Checkpoints are advisory: losing one
// never corrupts object state, only resumability.

package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/amberr"
	"github.com/google/uuid"
)

// Checkpoint is the persisted snapshot of one in-progress batch.
type Checkpoint struct {
	ID              string            `json:"id"`
	Operation       string            `json:"operation"`
	CreatedAt       time.Time         `json:"created_at"`
	TotalCount      int               `json:"total_count"`
	ProcessedIndex  int               `json:"processed_index"`
	Succeeded       int               `json:"succeeded"`
	Failed          int               `json:"failed"`
	PendingPaths    []string          `json:"pending_paths"`
	OperationParams map[string]string `json:"operation_params"`
}

// New creates a checkpoint at index zero for the named operation.
func New(operation string, totalCount int, params map[string]string) *Checkpoint {
	if params == nil {
		params = map[string]string{}
	}
	return &Checkpoint{
		ID:              uuid.New().String(),
		Operation:       operation,
		CreatedAt:       time.Now().UTC(),
		TotalCount:      totalCount,
		PendingPaths:    []string{},
		OperationParams: params,
	}
}

// UpdateProgress records the current position and the paths still
// pending. The processed index is clamped so it never exceeds the
// total count.
func (c *Checkpoint) UpdateProgress(processedIndex, succeeded, failed int, pendingPaths []string) {
	if processedIndex > c.TotalCount {
		processedIndex = c.TotalCount
	}
	c.ProcessedIndex = processedIndex
	c.Succeeded = succeeded
	c.Failed = failed
	c.PendingPaths = pendingPaths
}

// Percentage of the batch already processed, 0 for an empty batch.
func (c *Checkpoint) Percentage() float64 {
	if c.TotalCount == 0 {
		return 0
	}
	return float64(c.ProcessedIndex) / float64(c.TotalCount) * 100
}

// IsComplete reports whether every object has been processed.
func (c *Checkpoint) IsComplete() bool {
	return c.ProcessedIndex >= c.TotalCount
}

// Manager is a directory-backed checkpoint store, one JSON file per
// checkpoint id.
type Manager struct {
	dir string
}

// NewManager creates the backing directory if needed.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, amberr.WrapStorage(err, "checkpoint")
	}
	return &Manager{dir: dir}, nil
}

func (m *Manager) pathFor(id string) string {
	return filepath.Join(m.dir, "checkpoint-"+id+".json")
}

// Save serializes the checkpoint to its id-derived file.
func (m *Manager) Save(c *Checkpoint) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return amberr.WrapStorage(err, "checkpoint")
	}
	if err := os.WriteFile(m.pathFor(c.ID), data, 0o600); err != nil {
		return amberr.WrapStorage(err, "checkpoint")
	}
	return nil
}

// Load reads one checkpoint by id.
func (m *Manager) Load(id string) (*Checkpoint, error) {
	data, err := os.ReadFile(m.pathFor(id))
	if err != nil {
		return nil, amberr.WrapStorage(err, "checkpoint")
	}
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, amberr.WrapStorage(err, "checkpoint")
	}
	return &c, nil
}

// Delete removes a checkpoint file. Deleting an absent checkpoint is
// not an error.
func (m *Manager) Delete(id string) error {
	err := os.Remove(m.pathFor(id))
	if err != nil && !os.IsNotExist(err) {
		return amberr.WrapStorage(err, "checkpoint")
	}
	return nil
}

// List returns every stored checkpoint, newest first. Unreadable files
// are skipped.
func (m *Manager) List() ([]*Checkpoint, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, amberr.WrapStorage(err, "checkpoint")
	}

	var out []*Checkpoint
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.dir, e.Name()))
		if err != nil {
			continue
		}
		var c Checkpoint
		if err := json.Unmarshal(data, &c); err != nil {
			continue
		}
		out = append(out, &c)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// CleanupOlderThan deletes checkpoints created more than the given
// number of days ago and returns how many were removed.
func (m *Manager) CleanupOlderThan(days int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	checkpoints, err := m.List()
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, c := range checkpoints {
		if c.CreatedAt.Before(cutoff) {
			if err := m.Delete(c.ID); err != nil {
				return deleted, err
			}
			deleted++
		}
	}
	return deleted, nil
}
