// pkg/walk/walk_test.go

package walk

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/amberr"
	cerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap/zaptest"
)

func testCtx(t *testing.T) context.Context {
	otelzap.ReplaceGlobals(otelzap.New(zaptest.NewLogger(t)))
	return context.Background()
}

func makeTree(t *testing.T) string {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub", "deep"), 0o755))
	for _, p := range []string{"a.txt", "b.txt", filepath.Join("sub", "c.txt"), filepath.Join("sub", "deep", "d.txt")} {
		require.NoError(t, os.WriteFile(filepath.Join(root, p), []byte("x"), 0o644))
	}
	return root
}

func TestCollectFiles(t *testing.T) {
	root := makeTree(t)

	paths, err := Collect(testCtx(t), root, Options{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "b.txt"),
		filepath.Join(root, "sub", "c.txt"),
		filepath.Join(root, "sub", "deep", "d.txt"),
	}, paths)
}

func TestCollectIncludeDirsOrdersBottomUp(t *testing.T) {
	root := makeTree(t)

	paths, err := Collect(testCtx(t), root, Options{IncludeDirs: true})
	require.NoError(t, err)

	index := map[string]int{}
	for i, p := range paths {
		index[p] = i
	}

	// Contents must come before their containing directory.
	assert.Less(t, index[filepath.Join(root, "sub", "deep", "d.txt")], index[filepath.Join(root, "sub", "deep")])
	assert.Less(t, index[filepath.Join(root, "sub", "deep")], index[filepath.Join(root, "sub")])
	assert.Equal(t, root, paths[len(paths)-1])
}

func TestCollectSingleFile(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "only.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	paths, err := Collect(testCtx(t), file, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{file}, paths)
}

func TestCollectMissingRoot(t *testing.T) {
	_, err := Collect(testCtx(t), filepath.Join(t.TempDir(), "missing"), Options{})
	assert.Error(t, err)
}

func TestCollectCancelled(t *testing.T) {
	root := makeTree(t)

	ctx, cancel := context.WithCancel(testCtx(t))
	cancel()

	_, err := Collect(ctx, root, Options{})
	require.Error(t, err)
	assert.True(t, cerr.Is(err, amberr.ErrCancelled))
}

func TestIsVolumeRoot(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{`C:\`, true},
		{`D:/`, true},
		{`C:\Users`, false},
		{`\\server\share`, true},
		{`\\server\share\folder`, false},
		{`/`, true},
		{`/home`, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsVolumeRoot(tc.path), tc.path)
	}
}

func TestCollectRefusesVolumeRoot(t *testing.T) {
	_, err := Collect(testCtx(t), `/`, Options{})
	assert.Error(t, err)
}
