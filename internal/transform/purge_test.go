package transform

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageFromHTMLAndScript(t *testing.T) {
	u := NewUsage()
	u.AddHTML([]byte(`<div class="hero  hero--dark" id="top"><script>el.classList.add("is-open")</script></div>`))
	u.AddScript([]byte(`document.querySelector(".modal-backdrop")`))

	assert.True(t, u.Classes.Has("hero"))
	assert.True(t, u.Classes.Has("hero--dark"))
	assert.True(t, u.IDs.Has("top"))
	assert.True(t, u.hasClass("is-open"))
	assert.True(t, u.hasClass("modal-backdrop"))
	assert.False(t, u.hasClass("unused"))
}

func TestPurgerRemovesUnusedRules(t *testing.T) {
	u := NewUsage()
	u.AddHTML([]byte(`<body><nav class="menu" id="main-nav"></nav><p class="lead"></p></body>`))

	css := `
body { margin: 0 }
.menu, .sidebar { color: red }
.sidebar { width: 10px }
#main-nav a:hover { color: blue }
#footer { color: green }
.lead:not(.muted) { font-weight: bold }
@media (max-width: 600px) {
  .sidebar { display: none }
  .menu { display: block }
}
@media print {
  .sidebar { display: none }
}
@keyframes fade { from { opacity: 0 } to { opacity: 1 } }
@font-face { font-family: "Inter"; src: url(inter.woff2) }
`
	p := &Purger{Usage: u}
	a := &Asset{Source: "/dest/assets/css/site.css", Data: []byte(css)}
	require.NoError(t, p.Apply(context.Background(), a))
	out := string(a.Data)

	assert.Contains(t, out, "body {")
	assert.Contains(t, out, ".menu {")
	assert.NotContains(t, out, ".sidebar")
	assert.Contains(t, out, "#main-nav a:hover")
	assert.NotContains(t, out, "#footer")
	assert.Contains(t, out, ".lead:not(.muted)")
	assert.Contains(t, out, "max-width")
	assert.Equal(t, 1, strings.Count(out, "@media"), "empty @media print block is dropped")
	assert.Contains(t, out, "@keyframes fade")
	assert.Contains(t, out, "opacity: 0")
	assert.Contains(t, out, "@font-face")
	assert.Contains(t, out, "font-family: \"Inter\"")
}

func TestPurgerSafelist(t *testing.T) {
	p := &Purger{Usage: NewUsage(), Safelist: []string{"active", "js-*"}}
	a := &Asset{Data: []byte(".active { color: red } .js-toggle { top: 0 } .gone { top: 1px }")}

	require.NoError(t, p.Apply(context.Background(), a))
	out := string(a.Data)
	assert.Contains(t, out, ".active")
	assert.Contains(t, out, ".js-toggle")
	assert.NotContains(t, out, ".gone")
}

func TestPurgerIsStable(t *testing.T) {
	u := NewUsage()
	u.AddHTML([]byte(`<p class="a"></p>`))
	p := &Purger{Usage: u}

	a := &Asset{Data: []byte(".a { color: red; margin: 0 auto } .b { color: blue }")}
	require.NoError(t, p.Apply(context.Background(), a))
	first := string(a.Data)
	require.NoError(t, p.Apply(context.Background(), a))
	assert.Equal(t, first, string(a.Data))
}

func TestRequiredNames(t *testing.T) {
	assert.Equal(t, []string{".btn", "#nav"}, requiredNames(`.btn:not(.disabled) > #nav`))
	assert.Equal(t, []string{".md:flex"}, requiredNames(`.md\:flex`))
	assert.Empty(t, requiredNames(`a[href$=".pdf"]`))
}
