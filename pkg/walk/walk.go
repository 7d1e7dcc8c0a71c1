// pkg/walk/walk.go
//
// Directory-tree traversal that produces path lists for batch
// operations. Traversal is a pure collaborator: it never touches
// labels, it only enumerates.

package walk

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/amberr"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Options controls traversal.
type Options struct {
	// FollowSymlinks resolves symlinked directories instead of
	// recording the link itself. Cycles are not detected, so this
	// should stay off unless the tree is known to be acyclic.
	FollowSymlinks bool

	// IncludeDirs adds directories themselves to the result, after
	// their contents, so labels can be applied bottom-up.
	IncludeDirs bool
}

// IsVolumeRoot reports whether the path names the root of a volume,
// like `C:\` or `\\server\share\`. Labeling a whole volume root is
// almost always a mistake and callers refuse it explicitly.
func IsVolumeRoot(path string) bool {
	if path == "/" {
		return true
	}
	// Drive roots: `C:`, `C:\` or `C:/`.
	if len(path) >= 2 && path[1] == ':' {
		rest := strings.Trim(path[2:], `\/`)
		return rest == ""
	}
	// UNC share roots: exactly \\server\share.
	if strings.HasPrefix(path, `\\`) {
		rest := strings.Trim(path[2:], `\`)
		return rest != "" && strings.Count(rest, `\`) <= 1
	}
	return false
}

// Collect walks the tree under root and returns every file path, in
// traversal order. Unreadable subtrees are logged and skipped rather
// than failing the whole walk. The context cancels the walk between
// entries.
func Collect(ctx context.Context, root string, opts Options) ([]string, error) {
	if IsVolumeRoot(root) {
		return nil, cerr.Newf("refusing to traverse volume root %s", root)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, amberr.WrapStorage(err, "walk")
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	log := otelzap.Ctx(ctx)
	var paths []string
	var dirs []string

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			log.Warn("Skipping unreadable entry",
				zap.String("path", path),
				zap.Error(walkErr))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			if !opts.FollowSymlinks {
				return nil
			}
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil {
				log.Warn("Skipping broken symlink",
					zap.String("path", path),
					zap.Error(err))
				return nil
			}
			sub, err := Collect(ctx, resolved, opts)
			if err != nil {
				return err
			}
			paths = append(paths, sub...)
			return nil
		}

		if d.IsDir() {
			if opts.IncludeDirs && path != root {
				dirs = append(dirs, path)
			}
			return nil
		}

		paths = append(paths, path)
		return nil
	})
	if err != nil {
		if cerr.Is(err, context.Canceled) || cerr.Is(err, context.DeadlineExceeded) {
			return nil, cerr.Mark(err, amberr.ErrCancelled)
		}
		return nil, amberr.WrapStorage(err, "walk")
	}

	// Directories go after their contents, deepest first.
	for i := len(dirs) - 1; i >= 0; i-- {
		paths = append(paths, dirs[i])
	}
	if opts.IncludeDirs {
		paths = append(paths, root)
	}
	return paths, nil
}
