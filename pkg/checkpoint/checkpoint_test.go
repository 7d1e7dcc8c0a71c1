// pkg/checkpoint/checkpoint_test.go

package checkpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointProgress(t *testing.T) {
	c := New("lock", 100, map[string]string{"level": "High"})
	require.NotEmpty(t, c.ID)
	assert.Equal(t, "lock", c.Operation)
	assert.Equal(t, 100, c.TotalCount)
	assert.Equal(t, 0, c.ProcessedIndex)
	assert.False(t, c.IsComplete())

	c.UpdateProgress(50, 45, 5, []string{"a", "b"})
	assert.Equal(t, 50, c.ProcessedIndex)
	assert.Equal(t, 45, c.Succeeded)
	assert.Equal(t, 5, c.Failed)
	assert.InDelta(t, 50.0, c.Percentage(), 0.01)
	assert.False(t, c.IsComplete())

	c.UpdateProgress(100, 90, 10, nil)
	assert.True(t, c.IsComplete())
	assert.InDelta(t, 100.0, c.Percentage(), 0.01)
}

func TestCheckpointClampsIndex(t *testing.T) {
	c := New("unlock", 10, nil)
	c.UpdateProgress(25, 10, 0, nil)
	assert.Equal(t, 10, c.ProcessedIndex)
	assert.True(t, c.IsComplete())
}

func TestCheckpointZeroTotalPercentage(t *testing.T) {
	c := New("lock", 0, nil)
	assert.Equal(t, 0.0, c.Percentage())
	assert.True(t, c.IsComplete())
}

func TestManagerRoundTrip(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	require.NoError(t, err)

	c := New("lock", 3, map[string]string{"level": "System", "mode": "NW"})
	c.UpdateProgress(1, 1, 0, []string{`C:\data\b.txt`, `C:\data\c.txt`})
	require.NoError(t, mgr.Save(c))

	loaded, err := mgr.Load(c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, loaded.ID)
	assert.Equal(t, c.Operation, loaded.Operation)
	assert.True(t, c.CreatedAt.Equal(loaded.CreatedAt))
	assert.Equal(t, c.TotalCount, loaded.TotalCount)
	assert.Equal(t, c.ProcessedIndex, loaded.ProcessedIndex)
	assert.Equal(t, []string{`C:\data\b.txt`, `C:\data\c.txt`}, loaded.PendingPaths)
	assert.Equal(t, c.OperationParams, loaded.OperationParams)
}

func TestManagerLoadMissing(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	require.NoError(t, err)

	_, err = mgr.Load("no-such-id")
	assert.Error(t, err)
}

func TestManagerDeleteIdempotent(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	require.NoError(t, err)

	c := New("lock", 1, nil)
	require.NoError(t, mgr.Save(c))
	require.NoError(t, mgr.Delete(c.ID))
	assert.NoError(t, mgr.Delete(c.ID))
}

func TestManagerListNewestFirst(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	require.NoError(t, err)

	base := time.Now().UTC()
	for i, offset := range []time.Duration{-2 * time.Hour, -1 * time.Hour, 0} {
		c := New("lock", i+1, nil)
		c.CreatedAt = base.Add(offset)
		require.NoError(t, mgr.Save(c))
	}

	list, err := mgr.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt))
	assert.True(t, list[1].CreatedAt.After(list[2].CreatedAt))
}

func TestManagerCleanupOlderThan(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	require.NoError(t, err)

	fresh := New("lock", 1, nil)
	require.NoError(t, mgr.Save(fresh))

	stale := New("lock", 1, nil)
	stale.CreatedAt = time.Now().UTC().AddDate(0, 0, -30)
	require.NoError(t, mgr.Save(stale))

	deleted, err := mgr.CleanupOlderThan(7)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	list, err := mgr.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, fresh.ID, list[0].ID)
}
