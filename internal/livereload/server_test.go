package livereload

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func siteRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"index.html":          "<html><body><h1>Home</h1></body></html>",
		"about/index.html":    "<html><body>About</body></html>",
		"about/home.html":     "<html><body>Custom index</body></html>",
		"assets/css/main.css": "body{color:red}",
		"fragment.html":       "<p>no body tag</p>",
		"assets/js/main.js":   "console.log('</body>')",
	}
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_InjectsScriptIntoPages(t *testing.T) {
	s := NewServer(afero.NewOsFs(), siteRoot(t), NewHub(nil), Options{LiveReload: true}, nil)
	h := s.Handler()

	rec := get(t, h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `<html><body><h1>Home</h1><script async src="/livereload.js"></script></body></html>`, rec.Body.String())

	rec = get(t, h, "/about/")
	assert.Contains(t, rec.Body.String(), `About<script async src="/livereload.js"></script></body>`)

	rec = get(t, h, "/fragment.html")
	assert.Equal(t, "<p>no body tag</p>", rec.Body.String())
}

func TestServer_AssetsPassThrough(t *testing.T) {
	s := NewServer(afero.NewOsFs(), siteRoot(t), NewHub(nil), Options{LiveReload: true}, nil)
	h := s.Handler()

	rec := get(t, h, "/assets/js/main.js")
	assert.Equal(t, "console.log('</body>')", rec.Body.String())

	rec = get(t, h, "/assets/css/main.css")
	assert.Equal(t, "body{color:red}", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/css")

	rec = get(t, h, "/missing.html")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), "livereload")
}

func TestServer_ServesClientScript(t *testing.T) {
	s := NewServer(afero.NewOsFs(), siteRoot(t), NewHub(nil), Options{LiveReload: true}, nil)
	rec := get(t, s.Handler(), "/livereload.js")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "javascript")
	assert.Contains(t, rec.Body.String(), "new EventSource('/livereload')")
}

func TestServer_WithoutLiveReload(t *testing.T) {
	s := NewServer(afero.NewOsFs(), siteRoot(t), nil, Options{LiveReload: true}, nil)
	h := s.Handler()

	rec := get(t, h, "/")
	assert.Equal(t, "<html><body><h1>Home</h1></body></html>", rec.Body.String())
	assert.Equal(t, http.StatusNotFound, get(t, h, "/livereload.js").Code)
}

func TestServer_CustomIndexAndMetrics(t *testing.T) {
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "sitepipe_task_runs_total 1\n")
	})
	s := NewServer(afero.NewOsFs(), siteRoot(t), nil, Options{Index: "home.html", Metrics: metricsHandler, MetricsPath: "/metrics"}, nil)
	h := s.Handler()

	assert.Contains(t, get(t, h, "/about/").Body.String(), "Custom index")
	assert.Contains(t, get(t, h, "/metrics").Body.String(), "sitepipe_task_runs_total")
}

func TestServer_ServeOpensBrowserAndShutsDown(t *testing.T) {
	hub := NewHub(nil)
	s := NewServer(afero.NewOsFs(), siteRoot(t), hub, Options{Host: "127.0.0.1", LiveReload: true, OpenBrowser: true}, nil)
	opened := make(chan string, 1)
	s.open = func(url string) error {
		opened <- url
		return nil
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	select {
	case url := <-opened:
		assert.Equal(t, "http://"+addr+"/", url)
	case <-time.After(2 * time.Second):
		t.Fatal("browser not opened")
	}

	resp, err := http.Get("http://" + addr + "/index.html")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.True(t, strings.Contains(string(body), "/livereload.js"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}
}
