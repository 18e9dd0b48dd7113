package transform

import (
	"path"
	"strings"
)

// Asset is one file flowing through a Chain.
type Asset struct {
	// Path is the destination-relative, slash-separated output path.
	Path string
	// Source is the file the content was read from.
	Source string
	Data   []byte
	// Map holds a source map for Data, when an adapter produced one.
	Map []byte
	// Companions are extra outputs written next to the main one.
	Companions []Companion
}

// Companion is an additional destination-relative output, such as a source map.
type Companion struct {
	Path string
	Data []byte
}

// Ext returns the lower-cased extension of the output path.
func (a *Asset) Ext() string {
	return strings.ToLower(path.Ext(a.Path))
}

// SwapExt replaces the output path's extension.
func (a *Asset) SwapExt(ext string) {
	a.Path = strings.TrimSuffix(a.Path, path.Ext(a.Path)) + ext
}

// AddCompanion appends or replaces a companion output.
func (a *Asset) AddCompanion(p string, data []byte) {
	for i := range a.Companions {
		if a.Companions[i].Path == p {
			a.Companions[i].Data = data
			return
		}
	}
	a.Companions = append(a.Companions, Companion{Path: p, Data: data})
}
