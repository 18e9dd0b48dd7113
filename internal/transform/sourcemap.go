package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// SourceMapWriter moves Asset.Map into a companion file under MapsDir and links
// it from the stylesheet with a relative sourceMappingURL comment. Output paths
// under OutputRoot keep their relative layout below MapsDir.
//
// Sources pointing into SourceRoot are rewritten to the copies published
// below SourcesDest, so browsers can resolve them from the served site.
type SourceMapWriter struct {
	OutputRoot  string // dest-relative, e.g. assets/css
	MapsDir     string // dest-relative, e.g. assets/maps
	SourceRoot  string // absolute stylesheet source directory
	SourcesDest string // dest-relative copy of SourceRoot, e.g. assets/scss
}

func (w *SourceMapWriter) Name() string { return "sourcemap" }

func (w *SourceMapWriter) Apply(_ context.Context, a *Asset) error {
	if len(a.Map) == 0 {
		return nil
	}

	rel := strings.TrimPrefix(a.Path, strings.TrimSuffix(w.OutputRoot, "/")+"/")
	mapPath := path.Join(w.MapsDir, rel+".map")

	data, err := w.rewriteSources(a.Map, path.Dir(mapPath))
	if err != nil {
		return fmt.Errorf("source map: %w", err)
	}
	a.AddCompanion(mapPath, data)

	link := relSlash(path.Dir(a.Path), mapPath)
	css := strings.TrimRight(string(a.Data), "\n")
	a.Data = []byte(css + "\n\n/*# sourceMappingURL=" + link + " */\n")
	a.Map = nil
	return nil
}

func (w *SourceMapWriter) rewriteSources(raw []byte, mapDir string) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if sources, ok := doc["sources"].([]any); ok && w.SourceRoot != "" {
		for i, s := range sources {
			str, ok := s.(string)
			if !ok {
				continue
			}
			file := fileFromURL(str)
			if file == "" && filepath.IsAbs(str) {
				file = str
			}
			if file == "" {
				continue
			}
			rel, err := filepath.Rel(w.SourceRoot, file)
			if err != nil || strings.HasPrefix(rel, "..") {
				continue
			}
			sources[i] = relSlash(mapDir, path.Join(w.SourcesDest, filepath.ToSlash(rel)))
		}
		doc["sources"] = sources
	}
	return json.Marshal(doc)
}

// relSlash returns target relative to dir, both slash-separated and relative to the same root.
func relSlash(dir, target string) string {
	rel, err := filepath.Rel(filepath.FromSlash(dir), filepath.FromSlash(target))
	if err != nil {
		return target
	}
	return filepath.ToSlash(rel)
}
