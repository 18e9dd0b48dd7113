package transform

import (
	"context"
	"regexp"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"
	"github.com/yosssi/gohtml"
)

// NewMinifier returns a minifier registered for HTML, CSS, JS and SVG so that
// inline styles and scripts inside pages are minified too.
func NewMinifier() *minify.M {
	m := minify.New()
	m.Add("text/html", &html.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})
	m.Add("text/css", &css.Minifier{})
	m.Add("image/svg+xml", &svg.Minifier{})
	m.AddRegexp(regexp.MustCompile(`^(application|text)/(x-)?(java|ecma)script$`), &js.Minifier{})
	return m
}

// Minifier minifies assets of one media type.
type Minifier struct {
	M     *minify.M
	Media string
	Label string
}

// HTMLMinifier collapses whitespace, drops comments and minifies inline CSS/JS.
func HTMLMinifier(m *minify.M) *Minifier {
	return &Minifier{M: m, Media: "text/html", Label: "minify-html"}
}

// CSSMinifier minifies stylesheets.
func CSSMinifier(m *minify.M) *Minifier {
	return &Minifier{M: m, Media: "text/css", Label: "minify-css"}
}

// SVGMinifier minifies SVG documents.
func SVGMinifier(m *minify.M) *Minifier {
	return &Minifier{M: m, Media: "image/svg+xml", Label: "minify-svg"}
}

func (mn *Minifier) Name() string { return mn.Label }

func (mn *Minifier) Apply(_ context.Context, a *Asset) error {
	out, err := mn.M.Bytes(mn.Media, a.Data)
	if err != nil {
		line := 0
		if perr, ok := err.(interface{ Position() (int, int, string) }); ok {
			line, _, _ = perr.Position()
		}
		return &TransformError{File: a.Source, Line: line, Err: err}
	}
	a.Data = out
	return nil
}

// Beautifier pretty-prints assembled HTML.
type Beautifier struct{}

func (Beautifier) Name() string { return "beautify" }

func (Beautifier) Apply(_ context.Context, a *Asset) error {
	a.Data = []byte(gohtml.Format(string(a.Data)) + "\n")
	return nil
}
