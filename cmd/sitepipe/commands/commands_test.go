package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cli := &CLI{}
	var out bytes.Buffer
	g := &Global{Out: &out}
	parser, err := kong.New(cli,
		kong.Name("sitepipe"),
		kong.Vars{"version": "test"},
		kong.Bind(g),
		kong.Exit(func(int) {}),
	)
	require.NoError(t, err)
	ctx, err := parser.Parse(args)
	require.NoError(t, err)
	err = ctx.Run(g, cli)
	return out.String(), err
}

func writeProject(t *testing.T, config string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"sitepipe.yaml":          config,
		"src/index.html":         `<html><body><p class="lead">Hello</p><script src="assets/js/main.js"></script></body></html>`,
		"src/assets/js/main.js":  "function hello(name) {\n  return 'hello ' + name;\n}\nhello('x');\n",
		"src/assets/css/app.css": ".lead { color: red }\n.gone { color: blue }\n",
	}
	for name, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return filepath.Join(dir, "sitepipe.yaml")
}

func category(t *testing.T, err error) ferrors.ErrorCategory {
	t.Helper()
	classified, ok := ferrors.AsClassified(err)
	require.True(t, ok, "unclassified error: %v", err)
	return classified.Category()
}

func TestBuildCommand(t *testing.T) {
	cfgPath := writeProject(t, "source: ./src\ndest: ./dest\n")

	out, err := runCLI(t, "-c", cfgPath, "build")
	require.NoError(t, err)
	assert.Contains(t, out, "Site built in")

	dest := filepath.Join(filepath.Dir(cfgPath), "dest")
	css, err := os.ReadFile(filepath.Join(dest, "assets", "css", "app.css"))
	require.NoError(t, err)
	assert.Contains(t, string(css), ".lead")
	assert.NotContains(t, string(css), ".gone")
	_, err = os.Stat(filepath.Join(dest, "index.html"))
	assert.NoError(t, err)
}

func TestRunCommand(t *testing.T) {
	cfgPath := writeProject(t, "")

	_, err := runCLI(t, "-c", cfgPath, "run", "html", "main-js")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(filepath.Dir(cfgPath), "dest", "assets", "js", "main.js"))
	assert.NoError(t, err)

	_, err = runCLI(t, "-c", cfgPath, "run", "nope")
	require.Error(t, err)
	assert.Equal(t, ferrors.CategoryNotFound, category(t, err))
}

func TestTasksCommand(t *testing.T) {
	cfgPath := writeProject(t, "")

	out, err := runCLI(t, "-c", cfgPath, "tasks", "-f", "json")
	require.NoError(t, err)
	var graph struct {
		Pipelines []struct {
			Name string `json:"name"`
		} `json:"pipelines"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &graph))
	var names []string
	for _, p := range graph.Pipelines {
		names = append(names, p.Name)
	}
	assert.ElementsMatch(t, []string{"dev", "build"}, names)

	target := filepath.Join(t.TempDir(), "graph.mmd")
	_, err = runCLI(t, "-c", cfgPath, "tasks", "-f", "mermaid", "-o", target)
	require.NoError(t, err)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "graph")

	out, err = runCLI(t, "tasks", "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "mermaid")
}

func TestCheckCommand(t *testing.T) {
	cfgPath := writeProject(t, "")

	out, err := runCLI(t, "-c", cfgPath, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "ok")

	// A plain stylesheet and a compiled one landing on the same file.
	dir := filepath.Dir(cfgPath)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src", "assets", "scss"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "assets", "scss", "app.scss"), []byte("a{}"), 0o644))

	out, err = runCLI(t, "-c", cfgPath, "check")
	require.Error(t, err)
	assert.Equal(t, ferrors.CategoryValidation, category(t, err))
	assert.Contains(t, out, "assets/css/app.css")
}

func TestInitCommand(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "sitepipe.yaml")

	out, err := runCLI(t, "-c", cfgPath, "init")
	require.NoError(t, err)
	assert.Contains(t, out, cfgPath)
	_, err = os.Stat(cfgPath)
	require.NoError(t, err)

	_, err = runCLI(t, "-c", cfgPath, "init")
	require.Error(t, err)
	assert.Equal(t, ferrors.CategoryConfig, category(t, err))

	_, err = runCLI(t, "-c", cfgPath, "init", "--force")
	assert.NoError(t, err)
}

func TestInvalidConfigIsAConfigError(t *testing.T) {
	cfgPath := writeProject(t, "server:\n  port: 70000\n")

	_, err := runCLI(t, "-c", cfgPath, "build")
	require.Error(t, err)
	assert.Equal(t, ferrors.CategoryConfig, category(t, err))
}

func TestHistoryCommand(t *testing.T) {
	cfgPath := writeProject(t, "history:\n  enabled: true\n")

	_, err := runCLI(t, "-c", cfgPath, "history")
	require.Error(t, err)
	assert.Equal(t, ferrors.CategoryNotFound, category(t, err))

	_, err = runCLI(t, "-c", cfgPath, "build")
	require.NoError(t, err)

	out, err := runCLI(t, "-c", cfgPath, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "build")
	assert.Contains(t, out, "success")

	out, err = runCLI(t, "-c", cfgPath, "history", "--json")
	require.NoError(t, err)
	var runs []struct {
		RunID  string `json:"run_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)

	out, err = runCLI(t, "-c", cfgPath, "history", runs[0].RunID)
	require.NoError(t, err)
	assert.Contains(t, out, "pipeline.completed")
	assert.Contains(t, out, "task.completed")

	_, err = runCLI(t, "-c", cfgPath, "history", "missing-run")
	require.Error(t, err)
	assert.Equal(t, ferrors.CategoryNotFound, category(t, err))
}
