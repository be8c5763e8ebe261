package pipeline

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const gitDir = ".git"

// ErrDiscovery indicates the repositories root could not be walked.
var ErrDiscovery = errors.New("discover repositories")

// Target is one working copy found under the repositories root.
type Target struct {
	// Name is the path relative to the root, slash separated. The root
	// itself is named after its base directory.
	Name string
	// Path is the absolute path of the working copy.
	Path string
}

// Discover lists every directory under root that contains a .git entry,
// deepest first, then by path. Directories matching an exclude glob are not
// descended into.
func Discover(root string, exclude []string) ([]Target, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrDiscovery, abs)
	}

	for _, pattern := range exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: bad exclude pattern %q", ErrDiscovery, pattern)
		}
	}

	seen := map[string]struct{}{}

	walkErr := fs.WalkDir(os.DirFS(abs), ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == "." {
				return err
			}

			return nil
		}

		if d.Name() == gitDir {
			seen[path.Dir(p)] = struct{}{}

			if d.IsDir() {
				return fs.SkipDir
			}

			return nil
		}

		if d.IsDir() && p != "." && excluded(p, exclude) {
			return fs.SkipDir
		}

		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, walkErr)
	}

	targets := make([]Target, 0, len(seen))

	for rel := range seen {
		name := rel
		if rel == "." {
			name = filepath.Base(abs)
		}

		targets = append(targets, Target{Name: name, Path: filepath.Join(abs, filepath.FromSlash(rel))})
	}

	slices.SortFunc(targets, func(a, b Target) int {
		return cmp.Or(
			cmp.Compare(depth(b.Name), depth(a.Name)),
			strings.Compare(a.Name, b.Name),
		)
	})

	return targets, nil
}

func depth(name string) int {
	return strings.Count(name, "/")
}

func excluded(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}

		if matched, _ := doublestar.Match(pattern, path.Base(rel)); matched {
			return true
		}
	}

	return false
}
