// Package fileset expands PathSpecs into concrete files and performs the
// filesystem writes tasks need, over an afero.Fs so tests can use memory or
// read-only filesystems.
package fileset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"git.home.luguber.info/inful/sitepipe/internal/paths"
)

// File is one matched input.
type File struct {
	Abs string // absolute (or fs-rooted) path
	Rel string // slash-separated, relative to the spec base
}

// Expand walks the spec base and returns matching regular files sorted by Rel.
// A missing base directory yields no files. Dotfiles and dot-directories are
// skipped unless a pattern names them explicitly. Directories no include
// pattern can reach are never opened.
func Expand(fsys afero.Fs, base string, spec paths.PathSpec) ([]File, error) {
	info, err := fsys.Stat(base)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", base, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", base)
	}

	var files []File
	walkErr := afero.Walk(fsys, base, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			// Temp files of concurrent atomic writes may vanish mid-walk.
			if errors.Is(err, fs.ErrNotExist) && p != base {
				return nil
			}
			return err
		}
		if p == base {
			return nil
		}
		rel, relErr := filepath.Rel(base, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if fi.IsDir() {
			if hidden(fi.Name()) || !reachable(spec, rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !fi.Mode().IsRegular() {
			return nil
		}
		if hidden(fi.Name()) && !namedExplicitly(spec, rel) {
			return nil
		}
		if spec.Match(rel) {
			files = append(files, File{Abs: p, Rel: rel})
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk %s: %w", base, walkErr)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Rel < files[j].Rel })
	return files, nil
}

// reachable reports whether some include pattern may match a file below dir.
func reachable(spec paths.PathSpec, dir string) bool {
	for _, pattern := range spec.Include {
		if mayContain(pattern, dir) {
			return true
		}
	}
	return false
}

func mayContain(pattern, dir string) bool {
	// Alternatives may hide separators; walk them fully.
	if strings.Contains(pattern, "{") {
		return true
	}
	segs := strings.Split(pattern, "/")
	dirSegs := strings.Split(dir, "/")
	for i, d := range dirSegs {
		if i >= len(segs) {
			return false
		}
		if segs[i] == "**" {
			return true
		}
		if ok, _ := doublestar.Match(segs[i], d); !ok {
			return false
		}
	}
	return len(segs) > len(dirSegs)
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func namedExplicitly(spec paths.PathSpec, rel string) bool {
	for _, pattern := range spec.Include {
		if pattern == rel {
			return true
		}
	}
	return false
}

// Exists reports whether path exists.
func Exists(fsys afero.Fs, path string) bool {
	_, err := fsys.Stat(path)
	return err == nil
}
