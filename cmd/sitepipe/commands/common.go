package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/sitepipe/internal/config"
	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepipe/internal/logfields"
	"git.home.luguber.info/inful/sitepipe/internal/pipeline"
	"git.home.luguber.info/inful/sitepipe/internal/site"
)

// Global is shared state handed to every subcommand.
type Global struct {
	Logger *slog.Logger
	Out    io.Writer
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"sitepipe.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Dev     DevCmd     `cmd:"" default:"withargs" help:"Generate the site, serve it with live reload and rebuild on change (default)"`
	Build   BuildCmd   `cmd:"" help:"Clean, generate and optimize the site for production"`
	Run     RunCmd     `cmd:"" help:"Run named tasks independently"`
	Tasks   TasksCmd   `cmd:"" help:"Show tasks and pipelines (text, mermaid, dot, json)"`
	Check   CheckCmd   `cmd:"" help:"Validate the task graph against the current sources"`
	Init    InitCmd    `cmd:"" help:"Write a default configuration file"`
	History HistoryCmd `cmd:"" help:"List recorded pipeline runs"`
}

// AfterApply runs after flag parsing; it installs a logger usable before
// the configuration is loaded.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	g.Logger = config.NewLogger(os.Stderr, config.LoggingConfig{}, c.levelOverride())
	slog.SetDefault(g.Logger)
	return nil
}

// levelOverride gives --verbose precedence over SITEPIPE_LOG_LEVEL.
func (c *CLI) levelOverride() string {
	if c.Verbose {
		return "debug"
	}
	return os.Getenv("SITEPIPE_LOG_LEVEL")
}

// loadConfig reads the configuration and replaces the bootstrap logger with
// one honoring the logging section.
func loadConfig(g *Global, root *CLI) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	g.Logger = config.NewLogger(os.Stderr, cfg.Logging, root.levelOverride())
	slog.SetDefault(g.Logger)
	return cfg, nil
}

func openSite(g *Global, root *CLI, mutate ...func(*config.Config)) (*site.Site, error) {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return nil, err
	}
	for _, m := range mutate {
		m(cfg)
	}
	return site.New(cfg, site.WithLogger(g.Logger))
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// outcomeError turns a completed run with failures into an exit status.
func outcomeError(report *pipeline.Report) error {
	if report == nil || report.Outcome == pipeline.OutcomeSuccess {
		return nil
	}
	failed := 0
	for _, r := range report.Results() {
		if r.Failed() {
			failed++
		}
	}
	return ferrors.BuildError("run completed with failures").
		WithContext("pipeline", report.Pipeline).
		WithContext("run_id", report.RunID).
		WithContext("failed_tasks", failed).
		WithContext("file_errors", report.FileErrors()).
		Build()
}

func closeSite(g *Global, s *site.Site) {
	if err := s.Close(); err != nil {
		g.Logger.Warn("Shutdown incomplete", logfields.Error(err))
	}
}
