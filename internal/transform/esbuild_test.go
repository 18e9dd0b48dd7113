package transform

import (
	"context"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngines(t *testing.T) {
	engines, err := Engines(map[string]string{"safari": "11", "chrome": "64"})
	require.NoError(t, err)
	assert.Equal(t, []api.Engine{
		{Name: api.EngineChrome, Version: "64"},
		{Name: api.EngineSafari, Version: "11"},
	}, engines)

	_, err = Engines(map[string]string{"netscape": "4"})
	assert.Error(t, err)
}

func TestPrefixerAddsVendorPrefixes(t *testing.T) {
	engines, err := Engines(map[string]string{"safari": "11"})
	require.NoError(t, err)
	p := &Prefixer{Engines: engines}
	a := &Asset{Source: "/src/assets/scss/main.scss", Data: []byte(".glass { backdrop-filter: blur(4px); }")}

	require.NoError(t, p.Apply(context.Background(), a))
	assert.Contains(t, string(a.Data), "-webkit-backdrop-filter")
	assert.Empty(t, a.Map)
}

func TestPrefixerIgnoresWarnings(t *testing.T) {
	p := &Prefixer{}
	a := &Asset{Source: "/src/a.css", Data: []byte("a { color: red; }\n@import url(x.css);\n")}
	require.NoError(t, p.Apply(context.Background(), a))
	assert.Contains(t, string(a.Data), "color: red")
}

func TestJSMinifier(t *testing.T) {
	a := &Asset{Source: "/dest/assets/js/main.js", Data: []byte("function add(first, second) {\n  // sum\n  return first + second;\n}\nadd(1, 2);\n")}
	require.NoError(t, JSMinifier{}.Apply(context.Background(), a))

	out := string(a.Data)
	assert.NotContains(t, out, "first")
	assert.NotContains(t, out, "// sum")
	assert.Less(t, len(out), 60)
}

func TestJSMinifierSyntaxError(t *testing.T) {
	a := &Asset{Source: "/dest/assets/js/bad.js", Data: []byte("let x = 1;\nfunction (\n")}
	err := JSMinifier{}.Apply(context.Background(), a)

	te, ok := AsTransformError(err)
	require.True(t, ok)
	assert.Equal(t, 2, te.Line)
	assert.Equal(t, "/dest/assets/js/bad.js", te.File)
}
