package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bep/godartsass/v2"

	"git.home.luguber.info/inful/sitepipe/internal/logfields"
)

// StyleRequest is one stylesheet compilation.
type StyleRequest struct {
	Source       string
	Path         string // absolute path of the entry stylesheet
	IncludePaths []string
	OutputStyle  string // expanded | compressed
	SourceMap    bool
}

// StyleResult is the compiled CSS and optional source map JSON.
type StyleResult struct {
	CSS       string
	SourceMap string
}

// StyleError is a compiler diagnostic.
type StyleError struct {
	File    string
	Line    int
	Column  int
	Message string
}

func (e *StyleError) Error() string { return e.Message }

// StyleCompiler compiles SCSS into CSS.
type StyleCompiler interface {
	Compile(ctx context.Context, req StyleRequest) (StyleResult, error)
	Close() error
}

// DartSass runs the Dart Sass embedded protocol. The compiler process starts on
// first use and is shared by all callers until Close.
type DartSass struct {
	Binary string
	Logger *slog.Logger

	once     sync.Once
	startErr error
	mu       sync.Mutex
	t        *godartsass.Transpiler
}

// NewDartSass returns a compiler using binary, or "sass" from PATH when empty.
func NewDartSass(binary string) *DartSass {
	return &DartSass{Binary: binary}
}

func (d *DartSass) start() (*godartsass.Transpiler, error) {
	d.once.Do(func() {
		opts := godartsass.Options{
			DartSassEmbeddedFilename: d.Binary,
			LogEventHandler: d.logEvent,
		}
		t, err := godartsass.Start(opts)
		if err != nil {
			d.startErr = fmt.Errorf("start dart sass: %w", err)
			return
		}
		d.mu.Lock()
		d.t = t
		d.mu.Unlock()
	})
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.t, d.startErr
}

// logEvent forwards compiler warnings, deprecations and @debug output.
func (d *DartSass) logEvent(ev godartsass.LogEvent) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{logfields.Adapter("sass")}
	switch ev.Type {
	case godartsass.LogEventTypeDebug:
		logger.Debug(ev.Message, attrs...)
	case godartsass.LogEventTypeDeprecated:
		logger.Warn(ev.Message, append(attrs, logfields.Rule(ev.DeprecationType))...)
	default:
		logger.Warn(ev.Message, attrs...)
	}
}

// Compile implements StyleCompiler.
func (d *DartSass) Compile(_ context.Context, req StyleRequest) (StyleResult, error) {
	t, err := d.start()
	if err != nil {
		return StyleResult{}, err
	}

	style := godartsass.OutputStyleExpanded
	if req.OutputStyle == "compressed" {
		style = godartsass.OutputStyleCompressed
	}
	res, err := t.Execute(godartsass.Args{
		Source:                  req.Source,
		URL:                     fileURL(req.Path),
		OutputStyle:             style,
		SourceSyntax:            godartsass.SourceSyntaxSCSS,
		IncludePaths:            req.IncludePaths,
		EnableSourceMap:         req.SourceMap,
		SourceMapIncludeSources: req.SourceMap,
	})
	if err != nil {
		var sassErr godartsass.SassError
		if errors.As(err, &sassErr) {
			se := &StyleError{Message: sassErr.Message, Column: sassErr.Span.Start.Column + 1}
			se.File = fileFromURL(sassErr.Span.Url)
			if se.File == "" || se.File == req.Path {
				se.File = req.Path
				se.Line, _ = lineAt([]byte(req.Source), sassErr.Span.Start.Offset)
			}
			return StyleResult{}, se
		}
		return StyleResult{}, err
	}
	return StyleResult{CSS: res.CSS, SourceMap: res.SourceMap}, nil
}

// Close stops the compiler process, if it was started.
func (d *DartSass) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.t == nil {
		return nil
	}
	err := d.t.Close()
	d.t = nil
	return err
}

func fileURL(p string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(p)}).String()
}

func fileFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "file" {
		return ""
	}
	return filepath.FromSlash(u.Path)
}

// SassCompiler compiles .scss assets to .css. Partials (files whose name
// starts with an underscore) are only compiled through the files importing them.
type SassCompiler struct {
	Compiler     StyleCompiler
	IncludePaths []string
	OutputStyle  string
	SourceMaps   bool
}

func (s *SassCompiler) Name() string { return "sass" }

// Accept implements Filter.
func (s *SassCompiler) Accept(rel string) bool {
	return !strings.HasPrefix(path.Base(filepath.ToSlash(rel)), "_")
}

func (s *SassCompiler) Apply(ctx context.Context, a *Asset) error {
	includes := append([]string{filepath.Dir(a.Source)}, s.IncludePaths...)
	res, err := s.Compiler.Compile(ctx, StyleRequest{
		Source:       string(a.Data),
		Path:         a.Source,
		IncludePaths: includes,
		OutputStyle:  s.OutputStyle,
		SourceMap:    s.SourceMaps,
	})
	if err != nil {
		var se *StyleError
		if errors.As(err, &se) {
			return &TransformError{File: se.File, Line: se.Line, Column: se.Column, Err: errors.New(se.Message)}
		}
		return err
	}
	a.Data = []byte(res.CSS)
	a.Map = nil
	if s.SourceMaps && res.SourceMap != "" {
		a.Map = []byte(res.SourceMap)
	}
	a.SwapExt(".css")
	return nil
}
