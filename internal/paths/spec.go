package paths

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Origin names the root a PathSpec's Base is relative to.
type Origin string

const (
	OriginSource  Origin = "source"
	OriginProject Origin = "project"
	OriginDest    Origin = "dest"
)

// PathSpec is a named glob set with its destination directory. A file matched by
// Include and not by Exclude (patterns relative to Base) lands at Dest/rel.
type PathSpec struct {
	Name    string
	Origin  Origin
	Base    string
	Include []string
	Exclude []string
	Dest    string

	// Optional inputs may be absent without that being reported.
	Optional bool
	// WatchOnly specs exist to trigger rebuilds and are never copied.
	WatchOnly bool
}

// Match reports whether rel (slash or OS separated, relative to Base) is selected.
func (p PathSpec) Match(rel string) bool {
	rel = filepath.ToSlash(rel)
	if rel == "" || rel == "." || strings.HasPrefix(rel, "../") || rel == ".." {
		return false
	}
	included := false
	for _, pattern := range p.Include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			included = true
			break
		}
	}
	if !included {
		return false
	}
	for _, pattern := range p.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
	}
	return true
}

// DestFor maps a Base-relative path to its destination-relative path.
func (p PathSpec) DestFor(rel string) string {
	return path.Join(filepath.ToSlash(p.Dest), filepath.ToSlash(rel))
}

// Globs returns the include patterns joined onto Base, for display and
// for comparing read sets against write sets.
func (p PathSpec) Globs() []string {
	out := make([]string, 0, len(p.Include))
	for _, pattern := range p.Include {
		out = append(out, path.Join(filepath.ToSlash(p.Base), pattern))
	}
	return out
}

// String renders the spec as origin:glob[,glob] -> dest.
func (p PathSpec) String() string {
	var b strings.Builder
	b.WriteString(string(p.Origin))
	b.WriteString(":")
	b.WriteString(strings.Join(p.Globs(), ","))
	if len(p.Exclude) > 0 {
		b.WriteString(" !")
		b.WriteString(strings.Join(p.Exclude, ",!"))
	}
	if !p.WatchOnly {
		b.WriteString(" -> ")
		b.WriteString(path.Clean(filepath.ToSlash(p.Dest)))
	}
	return b.String()
}

func (p PathSpec) validate() []string {
	var problems []string
	for _, pattern := range append(append([]string{}, p.Include...), p.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			problems = append(problems, p.Name+": invalid pattern "+pattern)
		}
	}
	if len(p.Include) == 0 && p.Origin != OriginDest {
		problems = append(problems, p.Name+": no include patterns")
	}
	if filepath.IsAbs(p.Dest) || strings.HasPrefix(path.Clean(filepath.ToSlash(p.Dest)), "..") {
		problems = append(problems, p.Name+": dest must stay inside the destination root")
	}
	return problems
}
