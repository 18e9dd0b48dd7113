package livereload

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/afero"

	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepipe/internal/logfields"
)

// Options configures a Server.
type Options struct {
	Host        string
	Port        int
	Index       string
	LiveReload  bool
	OpenBrowser bool

	// Metrics is mounted at MetricsPath when non-nil.
	Metrics     http.Handler
	MetricsPath string
}

// Server serves the destination root for development.
type Server struct {
	fs     afero.Fs
	root   string
	hub    *Hub
	opts   Options
	logger *slog.Logger

	// open launches a browser; replaced in tests.
	open func(url string) error
}

// NewServer returns a server over root on fs. hub may be nil when live
// reload is disabled.
func NewServer(fs afero.Fs, root string, hub *Hub, opts Options, logger *slog.Logger) *Server {
	if opts.Index == "" {
		opts.Index = "index.html"
	}
	if logger == nil {
		logger = slog.Default()
	}
	if hub == nil {
		opts.LiveReload = false
	}
	return &Server{fs: fs, root: root, hub: hub, opts: opts, logger: logger, open: browser.OpenURL}
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
}

// Handler builds the request mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	var site http.Handler = http.FileServer(afero.NewHttpFs(s.fs).Dir(s.root))
	if s.opts.Index != "index.html" {
		site = withIndex(site, s.opts.Index)
	}
	if s.opts.LiveReload {
		mux.Handle("/livereload", s.hub)
		mux.HandleFunc("/livereload.js", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			if _, err := w.Write([]byte(Script)); err != nil {
				s.logger.Error("failed to write livereload script", logfields.Error(err))
			}
		})
		site = Inject(site)
	}
	if s.opts.Metrics != nil && s.opts.MetricsPath != "" {
		mux.Handle(s.opts.MetricsPath, s.opts.Metrics)
	}
	mux.Handle("/", noCache(site))
	return mux
}

func withIndex(next http.Handler, index string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			r2 := r.Clone(r.Context())
			r2.URL.Path += index
			next.ServeHTTP(w, r2)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		next.ServeHTTP(w, r)
	})
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryServer, "listen").
			WithContext("addr", s.Addr()).Build()
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	// No write timeout: SSE connections are long-lived.
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second, IdleTimeout: 300 * time.Second}

	url := "http://" + displayHost(ln.Addr(), s.opts.Host) + "/"
	s.logger.Info("Serving site", logfields.Dest(s.root), "url", url, "live_reload", s.opts.LiveReload)
	if s.opts.OpenBrowser {
		go func() {
			if err := s.open(url); err != nil {
				s.logger.Warn("could not open browser", logfields.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return ferrors.WrapError(err, ferrors.CategoryServer, "serve").Build()
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	if s.hub != nil {
		s.hub.Shutdown()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryServer, "shutdown").Build()
	}
	<-errCh
	return nil
}

func displayHost(addr net.Addr, host string) string {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return addr.String()
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return net.JoinHostPort(host, strconv.Itoa(tcp.Port))
}
