// Package site assembles the task graph, pipelines and development services
// for one project from its configuration.
package site

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"strings"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"git.home.luguber.info/inful/sitepipe/internal/config"
	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepipe/internal/journal"
	"git.home.luguber.info/inful/sitepipe/internal/livereload"
	"git.home.luguber.info/inful/sitepipe/internal/logfields"
	"git.home.luguber.info/inful/sitepipe/internal/metrics"
	"git.home.luguber.info/inful/sitepipe/internal/paths"
	"git.home.luguber.info/inful/sitepipe/internal/pipeline"
	"git.home.luguber.info/inful/sitepipe/internal/tasks"
	"git.home.luguber.info/inful/sitepipe/internal/transform"
	"git.home.luguber.info/inful/sitepipe/internal/watch"
)

// Pipeline names.
const (
	PipelineDev   = "dev"
	PipelineBuild = "build"
)

// Task names.
const (
	TaskClean          = "clean"
	TaskHTML           = "html"
	TaskStyleCSS       = "style-css"
	TaskCSS            = "css"
	TaskSCSS           = "scss"
	TaskVendorCSS      = "vendor-css"
	TaskPluginsCSS     = "plugins-css"
	TaskVendorJS       = "vendor-js"
	TaskPluginsJS      = "plugins-js"
	TaskMainJS         = "main-js"
	TaskRootJS         = "root-js"
	TaskFonts          = "fonts"
	TaskWebfonts       = "webfonts"
	TaskImages         = "images"
	TaskCopyRedirects  = "copy-redirects"
	TaskMinifyHTML     = "minify-html"
	TaskOptimizeCSS    = "optimize-css"
	TaskMinifyJS       = "minify-js"
	TaskOptimizeImages = "optimize-images"
	TaskServe          = "serve"
	TaskWatch          = "watch"
	TaskReload         = "reload"
)

// generateTasks run in parallel in both pipelines.
var generateTasks = []string{
	TaskHTML, TaskStyleCSS, TaskCSS, TaskSCSS, TaskVendorCSS, TaskPluginsCSS,
	TaskVendorJS, TaskPluginsJS, TaskMainJS, TaskRootJS, TaskFonts, TaskWebfonts,
	TaskImages, TaskCopyRedirects,
}

// copies are the generation tasks that relocate files unchanged.
var copies = []struct {
	task, spec, desc string
}{
	{TaskCSS, paths.CSS, "Copy plain stylesheets"},
	{TaskSCSS, paths.ScssAll, "Publish stylesheet sources"},
	{TaskVendorCSS, paths.VendorCSS, "Copy vendor stylesheets"},
	{TaskPluginsCSS, paths.PluginsCSS, "Copy plugin stylesheets"},
	{TaskVendorJS, paths.VendorJS, "Copy vendor scripts"},
	{TaskPluginsJS, paths.PluginsJS, "Copy plugin scripts"},
	{TaskMainJS, paths.MainJS, "Copy the main script"},
	{TaskRootJS, paths.RootJS, "Copy top-level scripts"},
	{TaskFonts, paths.Fonts, "Copy fonts"},
	{TaskWebfonts, paths.Webfonts, "Copy webfonts"},
	{TaskImages, paths.Images, "Copy images"},
	{TaskCopyRedirects, paths.Redirects, "Copy the _redirects file when present"},
}

// watchRules map source categories to the task regenerating them.
var watchRules = []watch.Rule{
	{Spec: paths.ScssAll, Task: TaskStyleCSS},
	{Spec: paths.ScssAll, Task: TaskSCSS},
	{Spec: paths.CSS, Task: TaskCSS},
	{Spec: paths.VendorCSS, Task: TaskVendorCSS},
	{Spec: paths.PluginsCSS, Task: TaskPluginsCSS},
	{Spec: paths.VendorJS, Task: TaskVendorJS},
	{Spec: paths.PluginsJS, Task: TaskPluginsJS},
	{Spec: paths.MainJS, Task: TaskMainJS},
	{Spec: paths.RootJS, Task: TaskRootJS},
	{Spec: paths.Fonts, Task: TaskFonts},
	{Spec: paths.Webfonts, Task: TaskWebfonts},
	{Spec: paths.Images, Task: TaskImages},
	{Spec: paths.Partials, Task: TaskHTML},
	{Spec: paths.RootHTML, Task: TaskHTML},
	{Spec: paths.Redirects, Task: TaskCopyRedirects},
}

// Site is the composition root for one project.
type Site struct {
	Config *config.Config
	Paths  *paths.Registry
	Graph  *pipeline.Graph
	Hub    *livereload.Hub
	Server *livereload.Server

	fs       afero.Fs
	logger   *slog.Logger
	rec      metrics.Recorder
	promReg  *prom.Registry
	compiler transform.StyleCompiler
	store    journal.Store
	orch     *pipeline.Orchestrator
	opts     options
}

type options struct {
	fs       afero.Fs
	logger   *slog.Logger
	compiler transform.StyleCompiler
	store    journal.Store
	observer []pipeline.Observer
}

// Option customizes New.
type Option func(*options)

// WithFS replaces the OS filesystem.
func WithFS(fs afero.Fs) Option { return func(o *options) { o.fs = fs } }

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithStyleCompiler replaces the Dart Sass compiler.
func WithStyleCompiler(c transform.StyleCompiler) Option {
	return func(o *options) { o.compiler = c }
}

// WithJournal records runs in store instead of the configured history database.
func WithJournal(store journal.Store) Option { return func(o *options) { o.store = store } }

// WithObserver adds pipeline observers.
func WithObserver(obs ...pipeline.Observer) Option {
	return func(o *options) { o.observer = append(o.observer, obs...) }
}

// New builds the path registry, every task and both pipelines from cfg.
func New(cfg *config.Config, opts ...Option) (*Site, error) {
	o := options{fs: afero.NewOsFs(), logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	reg, err := paths.Default(cfg)
	if err != nil {
		return nil, err
	}

	s := &Site{
		Config: cfg,
		Paths:  reg,
		Graph:  pipeline.NewGraph(),
		fs:     o.fs,
		logger: o.logger,
		rec:    metrics.NoopRecorder{},
		opts:   o,
	}

	if cfg.Metrics.Enabled {
		s.promReg = prom.NewRegistry()
		s.rec = metrics.NewPrometheusRecorder(s.promReg)
	}

	s.compiler = o.compiler
	if s.compiler == nil {
		sass := transform.NewDartSass(cfg.Styles.SassBinary)
		sass.Logger = s.logger
		s.compiler = sass
	}

	s.store = o.store
	if s.store == nil && cfg.History.Enabled {
		store, err := journal.Open(cfg.HistoryPath())
		if err != nil {
			s.logger.Warn("Run history disabled", logfields.Path(cfg.HistoryPath()), logfields.Error(err))
		} else {
			s.store = store
		}
	}

	s.Hub = livereload.NewHub(s.rec)
	srvOpts := livereload.Options{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		Index:       cfg.Server.Index,
		LiveReload:  cfg.Server.LiveReloadEnabled(),
		OpenBrowser: cfg.Server.OpenBrowser(),
	}
	if s.promReg != nil {
		srvOpts.Metrics = metrics.HTTPHandler(s.promReg)
		srvOpts.MetricsPath = cfg.Metrics.Path
	}
	s.Server = livereload.NewServer(s.fs, reg.DestRoot, s.Hub, srvOpts, s.logger)

	if err := s.addTasks(); err != nil {
		return nil, err
	}
	if err := s.addPipelines(); err != nil {
		return nil, err
	}

	orchOpts := []pipeline.Option{pipeline.WithLogger(s.logger), pipeline.WithRecorder(s.rec)}
	if s.store != nil {
		orchOpts = append(orchOpts, pipeline.WithObserver(journal.NewObserver(s.store, s.logger)))
	}
	orchOpts = append(orchOpts, pipeline.WithObserver(o.observer...))
	s.orch = pipeline.New(s.Graph, orchOpts...)
	return s, nil
}

func (s *Site) env() tasks.Env {
	return tasks.Env{FS: s.fs, Paths: s.Paths, Logger: s.logger}
}

func (s *Site) addTasks() error {
	cfg := s.Config
	env := s.env()
	reg := s.Paths
	m := transform.NewMinifier()

	htmlChain := transform.Chain{&transform.Includer{
		FS:          s.fs,
		Prefix:      cfg.HTML.IncludePrefix,
		PartialsDir: reg.BaseDir(reg.MustLookup(paths.Partials)),
	}}
	if cfg.HTML.BeautifyEnabled() {
		htmlChain = append(htmlChain, transform.Beautifier{})
	}

	engines, err := transform.Engines(cfg.Styles.Browsers)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid styles.browsers").Fatal().Build()
	}
	styles := reg.MustLookup(paths.Styles)
	maps := reg.MustLookup(paths.Maps)
	styleTask := tasks.NewTransformTask(TaskStyleCSS, "Compile SCSS to CSS with vendor prefixes and source maps", env, styles,
		transform.Chain{
			&transform.SassCompiler{
				Compiler:     s.compiler,
				IncludePaths: cfg.Styles.IncludePaths,
				OutputStyle:  cfg.Styles.OutputStyle,
				SourceMaps:   cfg.Styles.SourceMapsEnabled(),
			},
			&transform.Prefixer{Engines: engines},
			&transform.SourceMapWriter{
				OutputRoot:  styles.Dest,
				MapsDir:     maps.Dest,
				SourceRoot:  reg.BaseDir(styles),
				SourcesDest: reg.MustLookup(paths.ScssAll).Dest,
			},
		})
	styleTask.Outputs = func(rel string) []string {
		cssRel := strings.TrimSuffix(rel, path.Ext(rel)) + ".css"
		out := []string{styles.DestFor(cssRel)}
		if cfg.Styles.SourceMapsEnabled() {
			out = append(out, path.Join(maps.Dest, cssRel+".map"))
		}
		return out
	}

	all := []tasks.Task{
		tasks.NewCleanTask(TaskClean, "Remove the destination directory", env),
		tasks.NewTransformTask(TaskHTML, "Assemble pages from partials", env, reg.MustLookup(paths.RootHTML), htmlChain),
		styleTask,
	}
	for _, c := range copies {
		all = append(all, tasks.NewCopyTask(c.task, c.desc, env, reg.MustLookup(c.spec)))
	}

	imagePasses := []tasks.Pass{{
		Name:  "optimize",
		Spec:  reg.MustLookup(paths.SiteImages),
		Chain: transform.Chain{&transform.ImageOptimizer{JPEGQuality: cfg.Images.JPEGQuality, SVG: m}},
	}}
	if cfg.Images.WebPEnabled() {
		imagePasses = append(imagePasses, tasks.Pass{
			Name:   "webp",
			Spec:   reg.MustLookup(paths.SiteImages),
			Chain:  transform.Chain{transform.WebPConverter{}},
			Rename: webpName,
		})
	}

	all = append(all,
		tasks.NewRewriteTask(TaskMinifyHTML, "Minify generated pages", env, tasks.Pass{
			Name:  "minify-html",
			Spec:  reg.MustLookup(paths.SiteHTML),
			Chain: transform.Chain{transform.HTMLMinifier(m)},
		}),
		tasks.NewPurgeTask(TaskOptimizeCSS, "Purge unused selectors and minify stylesheets", env,
			reg.MustLookup(paths.SiteCSS), cfg.Purge.Content, cfg.Purge.Safelist,
			transform.CSSMinifier(m), cfg.Purge.IsEnabled()),
		tasks.NewRewriteTask(TaskMinifyJS, "Minify generated scripts", env, tasks.Pass{
			Name:  "minify-js",
			Spec:  reg.MustLookup(paths.SiteJS),
			Chain: transform.Chain{transform.JSMinifier{}},
		}),
		tasks.NewRewriteTask(TaskOptimizeImages, "Recompress images and add WebP companions", env, imagePasses...),

		tasks.NewFuncTask(TaskServe, "Serve the destination directory with live reload", s.Server.Run),
		tasks.NewFuncTask(TaskWatch, "Rerun tasks when sources change", s.watch),
		tasks.NewFuncTask(TaskReload, "Tell connected browsers to reload", func(context.Context) error {
			s.Hub.Reload(TaskReload)
			return nil
		}),
	)

	for _, t := range all {
		if err := s.Graph.AddTask(t); err != nil {
			return err
		}
	}
	return nil
}

func (s *Site) addPipelines() error {
	pipelines := []pipeline.Pipeline{
		{
			Name:        PipelineDev,
			Description: "Generate the site, then serve it and rebuild on change",
			Phases: []pipeline.Phase{
				{Name: "generate", Tasks: generateTasks},
				{Name: "serve", Tasks: []string{TaskServe, TaskWatch}, Detached: true},
			},
		},
		{
			Name:        PipelineBuild,
			Description: "Produce an optimized site from a clean destination",
			Phases: []pipeline.Phase{
				{Name: "clean", Tasks: []string{TaskClean}},
				{Name: "generate", Tasks: generateTasks},
				{Name: "optimize", Tasks: []string{TaskMinifyHTML, TaskOptimizeCSS, TaskMinifyJS, TaskOptimizeImages}},
			},
		},
	}
	for _, p := range pipelines {
		if err := s.Graph.AddPipeline(p); err != nil {
			return err
		}
	}
	return nil
}

func webpName(dest string) string {
	return strings.TrimSuffix(dest, path.Ext(dest)) + ".webp"
}

// Run executes a pipeline.
func (s *Site) Run(ctx context.Context, name string) (*pipeline.Report, error) {
	return s.orch.Run(ctx, name)
}

// RunTasks executes named tasks independently.
func (s *Site) RunTasks(ctx context.Context, names ...string) (*pipeline.Report, error) {
	return s.orch.RunTasks(ctx, names...)
}

// WatchRules returns the change-to-task mapping used by the watch task.
func (s *Site) WatchRules() []watch.Rule {
	out := make([]watch.Rule, len(watchRules))
	copy(out, watchRules)
	return out
}

// Rerun runs one task for the watcher. Any failure, including per-file
// errors, is returned so the reload reason reflects it.
func (s *Site) Rerun(ctx context.Context, task string) error {
	report, err := s.orch.RunTasks(ctx, task)
	if err != nil {
		return err
	}
	if report.Outcome != pipeline.OutcomeSuccess {
		return ferrors.BuildError("task failed").
			WithContext("task", task).
			WithContext("outcome", string(report.Outcome)).
			Build()
	}
	return nil
}

func (s *Site) watch(ctx context.Context) error {
	w, err := watch.New(s.Paths, watchRules, watch.RunnerFunc(s.Rerun), s.Hub,
		watch.WithDebounce(s.Config.Watch.Debounce),
		watch.WithIgnore(s.Config.Watch.Ignore...),
		watch.WithLogger(s.logger),
		watch.WithRecorder(s.rec),
	)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

// Journal returns the run history store, or nil when history is disabled.
func (s *Site) Journal() journal.Store { return s.store }

// Close stops the style compiler and closes the run history.
func (s *Site) Close() error {
	var errs []error
	if s.compiler != nil {
		errs = append(errs, s.compiler.Close())
	}
	if s.store != nil && s.opts.store == nil {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}
