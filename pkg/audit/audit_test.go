// pkg/audit/audit_test.go

package audit

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNdjsonAppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ops.ndjson")

	sink, err := OpenNdjson(path)
	require.NoError(t, err)

	rec := NewRecord(`C:\data\report.docx`)
	rec.Kind = "file"
	rec.Mode = "read-only"
	rec.LevelApplied = "High"
	rec.Policy = "NW"
	rec.UserSID = "S-1-5-21-1000"
	rec.SDDLBefore = "S:"
	rec.SDDLAfter = "S:(ML;;NW;;;HI)"
	rec.Status = "success"
	require.NoError(t, sink.Append(rec))

	failed := NewRecord(`C:\data\locked.db`)
	failed.Status = "error"
	failed.Errors = []string{"access denied"}
	require.NoError(t, sink.Append(failed))
	require.NoError(t, sink.Close())

	records, err := Read(path, Filter{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, rec.ID, records[0].ID)
	assert.Equal(t, "S:(ML;;NW;;;HI)", records[0].SDDLAfter)
	assert.Equal(t, []string{"access denied"}, records[1].Errors)
}

func TestReadFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ops.ndjson")

	sink, err := OpenNdjson(path)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		rec := NewRecord(fmt.Sprintf(`C:\data\f%d.txt`, i))
		if i%2 == 0 {
			rec.Status = "success"
		} else {
			rec.Status = "error"
		}
		require.NoError(t, sink.Append(rec))
	}
	require.NoError(t, sink.Close())

	errored, err := Read(path, Filter{Status: "error"})
	require.NoError(t, err)
	assert.Len(t, errored, 2)

	byPath, err := Read(path, Filter{PathContains: "f3"})
	require.NoError(t, err)
	require.Len(t, byPath, 1)
	assert.Equal(t, "error", byPath[0].Status)
}

func TestTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ops.ndjson")

	sink, err := OpenNdjson(path)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		rec := NewRecord(fmt.Sprintf("p%d", i))
		rec.Status = "success"
		require.NoError(t, sink.Append(rec))
	}
	require.NoError(t, sink.Close())

	last, err := Tail(path, 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "p3", last[0].Path)
	assert.Equal(t, "p4", last[1].Path)
}

func TestReadSkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ops.ndjson")

	sink, err := OpenNdjson(path)
	require.NoError(t, err)
	rec := NewRecord("good")
	require.NoError(t, sink.Append(rec))
	require.NoError(t, sink.Close())

	// Append garbage by hand.
	second, err := OpenNdjson(path)
	require.NoError(t, err)
	second.mu.Lock()
	second.buf.WriteString("{broken json\n")
	second.mu.Unlock()
	require.NoError(t, second.Close())

	records, err := Read(path, Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "good", records[0].Path)
}

func TestConcurrentAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ops.ndjson")

	sink, err := OpenNdjson(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				rec := NewRecord(fmt.Sprintf("g%d-%d", g, i))
				rec.Status = "success"
				assert.NoError(t, sink.Append(rec))
			}
		}(g)
	}
	wg.Wait()
	require.NoError(t, sink.Close())

	records, err := Read(path, Filter{})
	require.NoError(t, err)
	assert.Len(t, records, 100)
}
