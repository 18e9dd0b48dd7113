package transform

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIncluder(t *testing.T, files map[string]string) *Includer {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for p, content := range files {
		require.NoError(t, afero.WriteFile(fsys, p, []byte(content), 0o644))
	}
	return &Includer{FS: fsys, Prefix: "@@", PartialsDir: "/src/partials"}
}

func TestIncluderInlinesPartials(t *testing.T) {
	in := newIncluder(t, map[string]string{
		"/src/partials/header.html": "<header>@@include('nav.html')</header>",
		"/src/partials/nav.html":    "<nav>menu</nav>",
	})
	a := &Asset{Source: "/src/index.html", Data: []byte("<body>\n@@include('header.html')\n<main></main></body>")}

	require.NoError(t, in.Apply(context.Background(), a))
	assert.Equal(t, "<body>\n<header><nav>menu</nav></header>\n<main></main></body>", string(a.Data))
	assert.NotContains(t, string(a.Data), "@@")
}

func TestIncluderContextVariables(t *testing.T) {
	in := newIncluder(t, map[string]string{
		"/src/partials/card.html": `<h2>@@title</h2><p>@@page.id</p><span>@@missing</span>`,
	})
	a := &Asset{Source: "/src/index.html", Data: []byte(`@@include("card.html", {"title": "Pricing", "page": {"id": 3}})`)}

	require.NoError(t, in.Apply(context.Background(), a))
	assert.Equal(t, `<h2>Pricing</h2><p>3</p><span>@@missing</span>`, string(a.Data))
}

func TestIncluderFallsBackToIncludingDirectory(t *testing.T) {
	in := newIncluder(t, map[string]string{
		"/src/footer.html": "<footer></footer>",
	})
	a := &Asset{Source: filepath.Join("/src", "index.html"), Data: []byte("@@include('footer.html')")}

	require.NoError(t, in.Apply(context.Background(), a))
	assert.Equal(t, "<footer></footer>", string(a.Data))
}

func TestIncluderUnresolvedIncludeIsFileError(t *testing.T) {
	in := newIncluder(t, nil)
	a := &Asset{Source: "/src/about.html", Data: []byte("<p>\n  @@include('missing.html')</p>")}

	err := in.Apply(context.Background(), a)
	te, ok := AsTransformError(err)
	require.True(t, ok)
	assert.Equal(t, "/src/about.html", te.File)
	assert.Equal(t, 2, te.Line)
	assert.Contains(t, te.Error(), `unresolved include "missing.html"`)
}

func TestIncluderDetectsCycles(t *testing.T) {
	in := newIncluder(t, map[string]string{
		"/src/partials/a.html": "@@include('b.html')",
		"/src/partials/b.html": "@@include('a.html')",
	})
	a := &Asset{Source: "/src/index.html", Data: []byte("@@include('a.html')")}

	err := in.Apply(context.Background(), a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include cycle")
}

func TestParseDirectiveErrors(t *testing.T) {
	for _, src := range []string{
		"@@include(header.html)",
		"@@include('header.html'",
		"@@include('header.html', [1])",
		"@@include('header.html', {\"a\": })",
	} {
		_, err := parseDirective([]byte(src), 0, len("@@include("))
		assert.Error(t, err, src)
	}
}
