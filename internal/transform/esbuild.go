package transform

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

var engineNames = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ie":      api.EngineIE,
	"ios":     api.EngineIOS,
	"opera":   api.EngineOpera,
	"safari":  api.EngineSafari,
}

// Engines converts a browser → minimum version map into esbuild targets.
func Engines(browsers map[string]string) ([]api.Engine, error) {
	names := make([]string, 0, len(browsers))
	for name := range browsers {
		names = append(names, name)
	}
	sort.Strings(names)

	engines := make([]api.Engine, 0, len(names))
	for _, name := range names {
		engine, ok := engineNames[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown browser %q", name)
		}
		engines = append(engines, api.Engine{Name: engine, Version: browsers[name]})
	}
	return engines, nil
}

// Prefixer adds vendor prefixes required by the target engines. An incoming
// source map is composed into the output map.
type Prefixer struct {
	Engines []api.Engine
}

func (p *Prefixer) Name() string { return "prefix" }

func (p *Prefixer) Apply(_ context.Context, a *Asset) error {
	input := string(a.Data)
	opts := api.TransformOptions{
		Loader:     api.LoaderCSS,
		Engines:    p.Engines,
		Sourcefile: a.Source,
		LogLevel:   api.LogLevelSilent,
	}
	if len(a.Map) > 0 {
		input += "\n/*# sourceMappingURL=data:application/json;base64," + base64.StdEncoding.EncodeToString(a.Map) + " */\n"
		opts.Sourcemap = api.SourceMapExternal
	}

	result := api.Transform(input, opts)
	if err := messagesError(a, result.Errors); err != nil {
		return err
	}
	a.Data = result.Code
	if len(a.Map) > 0 {
		a.Map = result.Map
	}
	return nil
}

// JSMinifier minifies JavaScript (whitespace, identifiers and syntax).
type JSMinifier struct{}

func (JSMinifier) Name() string { return "minify-js" }

func (JSMinifier) Apply(_ context.Context, a *Asset) error {
	result := api.Transform(string(a.Data), api.TransformOptions{
		Loader:            api.LoaderJS,
		Sourcefile:        a.Source,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
		LegalComments:     api.LegalCommentsInline,
		LogLevel:          api.LogLevelSilent,
	})
	if err := messagesError(a, result.Errors); err != nil {
		return err
	}
	a.Data = result.Code
	return nil
}

func messagesError(a *Asset, msgs []api.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	first := msgs[0]
	te := &TransformError{File: a.Source, Err: errors.New(first.Text)}
	if first.Location != nil {
		te.Line = first.Location.Line
		te.Column = first.Location.Column + 1
	}
	if len(msgs) > 1 {
		te.Err = fmt.Errorf("%s (and %d more)", first.Text, len(msgs)-1)
	}
	return te
}
