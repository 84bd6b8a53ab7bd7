// Package discover walks a project tree and yields the files to be tagged.
package discover

import (
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/update-etags/internal/match"
)

// Options controls which files Files yields.
type Options struct {
	// Include lists basename patterns a file must match. Empty means "*".
	Include []string
	// SkipDirs lists basename patterns for directories that are pruned
	// before descent.
	SkipDirs []string
	// Matcher holds the case-sensitivity setting for both pattern sets.
	Matcher match.Matcher
	// RespectGitignore additionally skips paths matched by root/.gitignore.
	RespectGitignore bool
}

var matchAll = []string{"*"}

// Files returns a lazy sequence of file paths under root in lexical walk
// order. Each call to the returned sequence performs a fresh walk.
//
// Directories matching SkipDirs are never entered. Unreadable directories
// are logged and skipped; they never abort the walk.
func Files(root string, opts Options) iter.Seq[string] {
	include := opts.Include
	if len(include) == 0 {
		include = matchAll
	}

	return func(yield func(string) bool) {
		var gi *ignore.GitIgnore
		if opts.RespectGitignore {
			gi = loadGitignore(root)
		}

		// A trailing separator makes WalkDir resolve a symlinked project root.
		walkRoot := root
		if info, err := os.Lstat(root); err == nil && info.Mode()&os.ModeSymlink != 0 {
			walkRoot = root + string(filepath.Separator)
		}

		_ = filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				slog.Warn("skipping unreadable path", "path", path, "error", err)
				if d != nil && d.IsDir() && path != walkRoot {
					return filepath.SkipDir
				}
				return nil
			}

			name := d.Name()

			if d.IsDir() {
				if path == walkRoot {
					return nil
				}
				if opts.Matcher.Matches(name, opts.SkipDirs) || ignored(gi, root, path, true) {
					slog.Debug("pruning directory", "path", path)
					return filepath.SkipDir
				}
				return nil
			}

			if !isRegular(path, d) {
				return nil
			}
			if !opts.Matcher.Matches(name, include) || ignored(gi, root, path, false) {
				return nil
			}
			if !yield(path) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

// Collect walks root and returns every yielded path.
func Collect(root string, opts Options) []string {
	var paths []string
	for path := range Files(root, opts) {
		paths = append(paths, path)
	}
	return paths
}

// isRegular reports whether d is a regular file, following symlinks to
// files. Symlinked directories are never followed.
func isRegular(path string, d fs.DirEntry) bool {
	if d.Type()&os.ModeSymlink != 0 {
		info, err := os.Stat(path)
		if err != nil {
			return false
		}
		return info.Mode().IsRegular()
	}
	return d.Type().IsRegular()
}

func ignored(gi *ignore.GitIgnore, root, path string, dir bool) bool {
	if gi == nil {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if gi.MatchesPath(rel) {
		return true
	}
	return dir && gi.MatchesPath(rel+"/")
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
