package paths

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/sitepipe/internal/config"
	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
)

// Registry names.
const (
	RootHTML   = "root-html"
	Partials   = "partials"
	Fonts      = "fonts"
	Webfonts   = "webfonts"
	Styles     = "styles"
	ScssAll    = "scss-all"
	CSS        = "css"
	VendorCSS  = "vendor-css"
	PluginsCSS = "plugins-css"
	VendorJS   = "vendor-js"
	PluginsJS  = "plugins-js"
	MainJS     = "main-js"
	RootJS     = "root-js"
	Images     = "images"
	Redirects  = "redirects"

	// Destination-side entries read by optimize tasks.
	Maps       = "maps"
	SiteHTML   = "site-html"
	SiteCSS    = "site-css"
	SiteJS     = "site-js"
	SiteImages = "site-images"
)

// Registry holds PathSpecs by name together with the three roots they resolve
// against. It is built once at startup and treated as read-only afterwards.
type Registry struct {
	SourceRoot  string
	DestRoot    string
	ProjectRoot string

	specs map[string]PathSpec
	order []string
}

// New creates an empty registry over absolute roots.
func New(sourceRoot, destRoot, projectRoot string) *Registry {
	return &Registry{
		SourceRoot:  sourceRoot,
		DestRoot:    destRoot,
		ProjectRoot: projectRoot,
		specs:       make(map[string]PathSpec),
	}
}

// Add declares a spec. Names are unique.
func (r *Registry) Add(spec PathSpec) error {
	if spec.Name == "" {
		return ferrors.ValidationError("path spec without a name").Build()
	}
	if _, dup := r.specs[spec.Name]; dup {
		return ferrors.ValidationError("duplicate path spec").WithContext("name", spec.Name).Build()
	}
	if spec.Origin == "" {
		spec.Origin = OriginSource
	}
	if problems := spec.validate(); len(problems) > 0 {
		return ferrors.ValidationError(strings.Join(problems, "; ")).WithContext("name", spec.Name).Build()
	}
	r.specs[spec.Name] = spec
	r.order = append(r.order, spec.Name)
	return nil
}

// Lookup returns the spec registered under name.
func (r *Registry) Lookup(name string) (PathSpec, bool) {
	spec, ok := r.specs[name]
	return spec, ok
}

// MustLookup is Lookup for names declared by Default; it panics on programmer error.
func (r *Registry) MustLookup(name string) PathSpec {
	spec, ok := r.specs[name]
	if !ok {
		panic(fmt.Sprintf("paths: unknown spec %q", name))
	}
	return spec
}

// Names returns spec names in declaration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// BaseDir is the absolute directory a spec's patterns are evaluated in.
func (r *Registry) BaseDir(spec PathSpec) string {
	var root string
	switch spec.Origin {
	case OriginProject:
		root = r.ProjectRoot
	case OriginDest:
		root = r.DestRoot
	default:
		root = r.SourceRoot
	}
	return filepath.Join(root, filepath.FromSlash(spec.Base))
}

// DestDir is the absolute directory a spec's matches are written under.
func (r *Registry) DestDir(spec PathSpec) string {
	return filepath.Join(r.DestRoot, filepath.FromSlash(spec.Dest))
}

// Locate returns the names of input specs selecting the absolute path abs,
// sorted. Destination-side specs are never returned.
func (r *Registry) Locate(abs string) []string {
	var names []string
	for _, name := range r.order {
		spec := r.specs[name]
		if spec.Origin == OriginDest {
			continue
		}
		rel, err := filepath.Rel(r.BaseDir(spec), abs)
		if err != nil {
			continue
		}
		if spec.Match(rel) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Default declares the fixed site layout and applies config overrides.
func Default(cfg *config.Config) (*Registry, error) {
	r := New(cfg.SourceDir(), cfg.DestDir(), cfg.ProjectDir())

	specs := []PathSpec{
		{Name: RootHTML, Base: ".", Include: []string{"*.html"}, Dest: "."},
		{Name: Partials, Base: cfg.HTML.Partials, Include: []string{"**/*"}, WatchOnly: true},
		{Name: Fonts, Base: "assets/fonts", Include: []string{"**/*"}, Dest: "assets/fonts"},
		{Name: Webfonts, Base: "assets/webfonts", Include: []string{"**/*"}, Dest: "assets/webfonts"},
		{Name: Styles, Base: "assets/scss", Include: []string{"**/*.scss"}, Dest: "assets/css"},
		{Name: ScssAll, Base: "assets/scss", Include: []string{"**/*"}, Dest: "assets/scss"},
		{Name: CSS, Base: "assets/css", Include: []string{"**/*.css"}, Exclude: []string{"vendor/*.css", "plugins/*.css"}, Dest: "assets/css"},
		{Name: VendorCSS, Base: "assets/css/vendor", Include: []string{"*.css"}, Dest: "assets/css/vendor"},
		{Name: PluginsCSS, Base: "assets/css/plugins", Include: []string{"*.css"}, Dest: "assets/css/plugins"},
		{Name: VendorJS, Base: "assets/js/vendor", Include: []string{"*.js"}, Dest: "assets/js/vendor"},
		{Name: PluginsJS, Base: "assets/js/plugins", Include: []string{"*.js"}, Dest: "assets/js/plugins"},
		{Name: MainJS, Base: "assets/js", Include: []string{"main.js"}, Dest: "assets/js"},
		{Name: RootJS, Base: "assets/js", Include: []string{"*.js"}, Exclude: []string{"main.js"}, Dest: "assets/js"},
		{Name: Images, Base: "assets/images", Include: []string{"**/*"}, Dest: "assets/images"},
		{Name: Redirects, Origin: OriginProject, Base: ".", Include: []string{"_redirects"}, Dest: ".", Optional: true},

		{Name: Maps, Origin: OriginDest, Base: "assets/maps", Include: []string{"**/*.map"}, Dest: "assets/maps"},
		{Name: SiteHTML, Origin: OriginDest, Base: ".", Include: []string{"**/*.html"}, Dest: "."},
		{Name: SiteCSS, Origin: OriginDest, Base: "assets/css", Include: []string{"**/*.css"}, Dest: "assets/css"},
		{Name: SiteJS, Origin: OriginDest, Base: "assets/js", Include: []string{"**/*.js"}, Dest: "assets/js"},
		{Name: SiteImages, Origin: OriginDest, Base: "assets/images", Include: []string{"**/*"}, Dest: "assets/images"},
	}

	known := make(map[string]bool, len(specs))
	for _, spec := range specs {
		known[spec.Name] = true
	}
	for name := range cfg.Paths {
		if !known[name] {
			return nil, ferrors.ConfigError("unknown path override").WithContext("name", name).Build()
		}
	}

	for _, spec := range specs {
		if o, ok := cfg.Paths[spec.Name]; ok {
			spec = applyOverride(spec, o)
		}
		if err := r.Add(spec); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func applyOverride(spec PathSpec, o config.PathOverride) PathSpec {
	if o.Base != "" {
		spec.Base = o.Base
	}
	if len(o.Include) > 0 {
		spec.Include = append([]string(nil), o.Include...)
	}
	if len(o.Exclude) > 0 {
		spec.Exclude = append([]string(nil), o.Exclude...)
	}
	if o.Dest != "" {
		spec.Dest = o.Dest
	}
	return spec
}
