package tasks

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/spf13/afero"

	"git.home.luguber.info/inful/sitepipe/internal/fileset"
	"git.home.luguber.info/inful/sitepipe/internal/paths"
	"git.home.luguber.info/inful/sitepipe/internal/transform"
)

// PurgeTask gathers the usage surface from final HTML and JavaScript, then
// purges and minifies every stylesheet. With Enabled false only the
// minification runs.
type PurgeTask struct {
	base
	env      Env
	spec     paths.PathSpec
	content  []string
	safelist []string
	minifier transform.Adapter
	enabled  bool
}

// NewPurgeTask builds the stylesheet optimization task. content holds
// destination-relative globs scanned for class and id usage.
func NewPurgeTask(name, desc string, env Env, spec paths.PathSpec, content, safelist []string, minifier transform.Adapter, enabled bool) *PurgeTask {
	return &PurgeTask{
		base:     base{name: name, desc: desc, kind: KindOptimize},
		env:      env,
		spec:     spec,
		content:  content,
		safelist: safelist,
		minifier: minifier,
		enabled:  enabled,
	}
}

func (t *PurgeTask) Run(ctx context.Context) (res Result) {
	start := time.Now()
	res.Task = t.name
	defer func() { res.Duration = time.Since(start) }()

	chain := transform.Chain{t.minifier}
	if t.enabled {
		usage, err := t.collectUsage()
		if err != nil {
			res.Err = err
			return res
		}
		chain = transform.Chain{&transform.Purger{Usage: usage, Safelist: t.safelist}, t.minifier}
	}
	runPass(ctx, t.env, t.name, Pass{Name: "purge", Spec: t.spec, Chain: chain}, &res)
	return res
}

func (t *PurgeTask) collectUsage() (*transform.Usage, error) {
	usage := transform.NewUsage()
	surface := paths.PathSpec{Name: t.name + "-content", Origin: paths.OriginDest, Base: ".", Include: t.content}
	files, err := fileset.Expand(t.env.FS, t.env.Paths.DestRoot, surface)
	if err != nil {
		return nil, expandError(t.name, surface, err)
	}
	for _, f := range files {
		data, err := afero.ReadFile(t.env.FS, f.Abs)
		if err != nil {
			return nil, expandError(t.name, surface, err)
		}
		switch strings.ToLower(path.Ext(f.Rel)) {
		case ".html", ".htm":
			usage.AddHTML(data)
		default:
			usage.AddScript(data)
		}
	}
	return usage, nil
}

// Plan implements Planner.
func (t *PurgeTask) Plan(context.Context) (Plan, error) {
	reads := append([]string{}, t.content...)
	reads = append(reads, t.spec.Globs()...)
	accept := func(string) bool { return true }
	return Plan{Reads: reads, Rewrites: []RewriteRule{{Spec: t.spec, Accept: accept}}}, nil
}
