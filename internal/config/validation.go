package config

import (
	"fmt"
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
)

var validOutputStyles = map[string]bool{"expanded": true, "compressed": true}

// Validate checks invariants that later phases rely on. The destination is
// removed wholesale by the build pipeline, so it may never contain the source
// or project roots.
func (c *Config) Validate() error {
	var problems []string

	src, dest, project := c.SourceDir(), c.DestDir(), c.ProjectDir()
	switch {
	case dest == src:
		problems = append(problems, "dest must differ from source")
	case dest == project || within(project, dest):
		problems = append(problems, "dest must not contain the project directory")
	case within(src, dest):
		problems = append(problems, "source must not live inside dest")
	}
	if strings.TrimSpace(c.HTML.IncludePrefix) == "" {
		problems = append(problems, "html.include_prefix must not be blank")
	}
	if !validOutputStyles[c.Styles.OutputStyle] {
		problems = append(problems, fmt.Sprintf("styles.output_style %q must be expanded or compressed", c.Styles.OutputStyle))
	}
	if c.Images.JPEGQuality < 1 || c.Images.JPEGQuality > 100 {
		problems = append(problems, fmt.Sprintf("images.jpeg_quality %d out of range 1-100", c.Images.JPEGQuality))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Watch.Debounce < 0 {
		problems = append(problems, "watch.debounce must not be negative")
	}
	if _, err := ParseLogLevel(c.Logging.Level); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := ParseLogFormat(c.Logging.Format); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		problems = append(problems, "metrics.path must start with /")
	}

	if len(problems) > 0 {
		return ferrors.ConfigError("invalid configuration: "+strings.Join(problems, "; ")).
			WithContext("problems", problems).Build()
	}
	return nil
}

// within reports whether child is strictly inside parent.
func within(child, parent string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
