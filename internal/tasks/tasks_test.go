package tasks

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepipe/internal/metrics"
	"git.home.luguber.info/inful/sitepipe/internal/paths"
	"git.home.luguber.info/inful/sitepipe/internal/transform"
)

func testEnv(t *testing.T, files map[string]string) Env {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for p, content := range files {
		require.NoError(t, fsys.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, afero.WriteFile(fsys, p, []byte(content), 0o644))
	}
	return Env{FS: fsys, Paths: paths.New("/proj/src", "/proj/dest", "/proj")}
}

func readDest(t *testing.T, env Env, rel string) string {
	t.Helper()
	data, err := afero.ReadFile(env.FS, filepath.Join("/proj/dest", rel))
	require.NoError(t, err)
	return string(data)
}

var fontsSpec = paths.PathSpec{Name: "fonts", Origin: paths.OriginSource, Base: "assets/fonts", Include: []string{"**/*"}, Dest: "assets/fonts"}

func TestCopyTask(t *testing.T) {
	env := testEnv(t, map[string]string{
		"/proj/src/assets/fonts/a.woff":     "A",
		"/proj/src/assets/fonts/sub/b.woff": "B",
	})
	task := NewCopyTask("fonts", "copy fonts", env, fontsSpec)

	plan, err := task.Plan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"assets/fonts/a.woff", "assets/fonts/sub/b.woff"}, plan.Writes)

	res := task.Run(context.Background())
	require.False(t, res.Failed())
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, "B", readDest(t, env, "assets/fonts/sub/b.woff"))
	assert.Equal(t, metrics.ResultSuccess, res.Label())
	assert.Positive(t, res.Duration)
}

func TestCopyTaskOptionalAbsent(t *testing.T) {
	env := testEnv(t, nil)
	spec := paths.PathSpec{Name: "redirects", Origin: paths.OriginProject, Base: ".", Include: []string{"_redirects"}, Dest: ".", Optional: true}

	res := NewCopyTask("copy-redirects", "", env, spec).Run(context.Background())
	assert.False(t, res.Failed())
	assert.Zero(t, res.Files)
	_, err := env.FS.Stat("/proj/dest/_redirects")
	assert.Error(t, err)
}

func TestTransformTaskContinuesPastFailingFile(t *testing.T) {
	env := testEnv(t, map[string]string{
		"/proj/src/a.html":      "hello",
		"/proj/src/broken.html": "BROKEN",
		"/proj/src/c.html":      "world",
	})
	spec := paths.PathSpec{Name: "root-html", Base: ".", Include: []string{"*.html"}, Dest: "."}
	chain := transform.Chain{transform.Func{Label: "check", Fn: func(_ context.Context, a *transform.Asset) error {
		if strings.Contains(string(a.Data), "BROKEN") {
			return errors.New("cannot process")
		}
		a.Data = []byte(strings.ToUpper(string(a.Data)))
		return nil
	}}}

	res := NewTransformTask("html", "", env, spec, chain).Run(context.Background())
	assert.Equal(t, 2, res.Files)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "html", res.Errors[0].Task)
	assert.Equal(t, "/proj/src/broken.html", res.Errors[0].File)
	assert.NoError(t, res.Err)
	assert.Equal(t, metrics.ResultPartial, res.Label())
	assert.Positive(t, res.Duration)

	assert.Equal(t, "HELLO", readDest(t, env, "a.html"))
	assert.Equal(t, "WORLD", readDest(t, env, "c.html"))
	_, err := env.FS.Stat("/proj/dest/broken.html")
	assert.Error(t, err)
}

func TestTransformTaskPlanHonoursFilterAndOutputs(t *testing.T) {
	env := testEnv(t, map[string]string{
		"/proj/src/assets/scss/main.scss":    "a{}",
		"/proj/src/assets/scss/_vars.scss":   "$x: 1;",
		"/proj/src/assets/scss/pages/x.scss": "b{}",
	})
	spec := paths.PathSpec{Name: "styles", Base: "assets/scss", Include: []string{"**/*.scss"}, Dest: "assets/css"}
	task := NewTransformTask("style-css", "", env, spec, transform.Chain{&transform.SassCompiler{}})
	task.Outputs = func(rel string) []string {
		css := strings.TrimSuffix(spec.DestFor(rel), ".scss") + ".css"
		return []string{css}
	}

	plan, err := task.Plan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"assets/css/main.css", "assets/css/pages/x.css"}, plan.Writes)
}

func TestRewriteTaskPassesAreIndependent(t *testing.T) {
	env := testEnv(t, map[string]string{
		"/proj/dest/assets/images/photo.jpg": "jpeg-bytes",
		"/proj/dest/assets/images/logo.png":  "png-bytes",
	})
	spec := paths.PathSpec{Name: "site-images", Origin: paths.OriginDest, Base: "assets/images", Include: []string{"**/*"}, Dest: "assets/images"}

	optimize := Pass{Name: "optimize", Spec: spec, Chain: transform.Chain{transform.Func{Label: "optimize", Fn: func(_ context.Context, a *transform.Asset) error {
		if a.Ext() == ".jpg" {
			return errors.New("encoder crashed")
		}
		a.Data = []byte("small")
		return nil
	}}}}
	webp := Pass{Name: "webp", Spec: spec, Chain: transform.Chain{transform.Func{Label: "webp", Fn: func(_ context.Context, a *transform.Asset) error {
		a.SwapExt(".webp")
		a.Data = []byte("webp:" + string(a.Data))
		return nil
	}}}, Rename: func(p string) string { return strings.TrimSuffix(p, filepath.Ext(p)) + ".webp" }}

	task := NewRewriteTask("optimize-images", "", env, optimize, webp)
	res := task.Run(context.Background())

	require.Len(t, res.Errors, 1)
	assert.Equal(t, "optimize", res.Errors[0].Adapter)
	assert.Equal(t, "small", readDest(t, env, "assets/images/logo.png"))
	assert.Equal(t, "jpeg-bytes", readDest(t, env, "assets/images/photo.jpg"))
	assert.Equal(t, "webp:jpeg-bytes", readDest(t, env, "assets/images/photo.webp"), "webp pass still runs for the file the first pass failed on")
	assert.Equal(t, "webp:small", readDest(t, env, "assets/images/logo.webp"))

	plan, err := task.Plan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"assets/images/**/*", "assets/images/**/*"}, plan.Reads)
	require.Len(t, plan.Rewrites, 2)
	assert.Nil(t, plan.Rewrites[0].Rename)
	assert.Equal(t, "assets/images/a.webp", plan.Rewrites[1].Rename("assets/images/a.png"))
}

func TestRewriteTaskSkipsUnchanged(t *testing.T) {
	env := testEnv(t, map[string]string{"/proj/dest/assets/js/a.js": "x"})
	spec := paths.PathSpec{Name: "site-js", Origin: paths.OriginDest, Base: "assets/js", Include: []string{"**/*.js"}, Dest: "assets/js"}
	identity := transform.Func{Label: "noop", Fn: func(context.Context, *transform.Asset) error { return nil }}

	res := NewRewriteTask("minify-js", "", env, Pass{Name: "minify", Spec: spec, Chain: transform.Chain{identity}}).Run(context.Background())
	assert.False(t, res.Failed())
	assert.Zero(t, res.Files)
}

func TestPurgeTask(t *testing.T) {
	env := testEnv(t, map[string]string{
		"/proj/dest/index.html":          `<div class="used"></div>`,
		"/proj/dest/assets/js/app.js":    `el.classList.toggle("toggled")`,
		"/proj/dest/assets/css/site.css": ".used { color: red } .toggled { color: blue } .unused { color: green }",
	})
	spec := paths.PathSpec{Name: "site-css", Origin: paths.OriginDest, Base: "assets/css", Include: []string{"**/*.css"}, Dest: "assets/css"}
	minifier := transform.CSSMinifier(transform.NewMinifier())

	task := NewPurgeTask("optimize-css", "", env, spec, []string{"**/*.html", "assets/js/**/*.js"}, nil, minifier, true)
	res := task.Run(context.Background())
	require.False(t, res.Failed(), "%v", res.Errors)

	out := readDest(t, env, "assets/css/site.css")
	assert.Contains(t, out, ".used{color:red}")
	assert.Contains(t, out, ".toggled{color:")
	assert.NotContains(t, out, "unused")
	assert.Positive(t, res.Duration)

	plan, err := task.Plan(context.Background())
	require.NoError(t, err)
	assert.Contains(t, plan.Reads, "**/*.html")
	assert.Contains(t, plan.Reads, "assets/css/**/*.css")
}

func TestPurgeTaskDisabledOnlyMinifies(t *testing.T) {
	env := testEnv(t, map[string]string{"/proj/dest/assets/css/site.css": ".unused { color: green }"})
	spec := paths.PathSpec{Name: "site-css", Origin: paths.OriginDest, Base: "assets/css", Include: []string{"**/*.css"}, Dest: "assets/css"}

	res := NewPurgeTask("optimize-css", "", env, spec, nil, nil, transform.CSSMinifier(transform.NewMinifier()), false).Run(context.Background())
	require.False(t, res.Failed())
	assert.Equal(t, ".unused{color:green}", strings.TrimSpace(readDest(t, env, "assets/css/site.css")))
}

func TestCleanTask(t *testing.T) {
	env := testEnv(t, map[string]string{"/proj/dest/index.html": "old"})
	res := NewCleanTask("clean", "", env).Run(context.Background())
	require.False(t, res.Failed())
	_, err := env.FS.Stat("/proj/dest")
	assert.Error(t, err)
}

func TestCleanTaskFailureIsFatal(t *testing.T) {
	env := testEnv(t, map[string]string{"/proj/dest/index.html": "old"})
	env.FS = afero.NewReadOnlyFs(env.FS)

	res := NewCleanTask("clean", "", env).Run(context.Background())
	require.Error(t, res.Err)
	assert.True(t, res.Fatal())
	assert.Equal(t, ferrors.CategoryFileSystem, ferrors.GetCategory(res.Err))
	assert.Equal(t, metrics.ResultFatal, res.Label())
}

func TestFuncTaskRecoversPanic(t *testing.T) {
	task := NewFuncTask("serve", "", func(context.Context) error { panic("listener exploded") })
	res := task.Run(context.Background())
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "listener exploded")
	assert.Equal(t, KindProcess, task.Kind())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(NewFuncTask("b", "", func(context.Context) error { return nil })))
	require.NoError(t, r.Add(NewFuncTask("a", "", func(context.Context) error { return nil })))
	assert.Error(t, r.Add(NewFuncTask("a", "", func(context.Context) error { return nil })))

	assert.Equal(t, []string{"b", "a"}, r.Names())
	_, ok := r.Get("missing")
	assert.False(t, ok)
	assert.Len(t, r.All(), 2)
}
