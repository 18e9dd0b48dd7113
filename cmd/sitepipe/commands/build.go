package commands

import (
	"fmt"

	"git.home.luguber.info/inful/sitepipe/internal/site"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct{}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	s, err := openSite(g, root)
	if err != nil {
		return err
	}
	defer closeSite(g, s)

	ctx, cancel := signalContext()
	defer cancel()

	report, err := s.Run(ctx, site.PipelineBuild)
	if err != nil {
		return err
	}
	if err := outcomeError(report); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.Out, "Site built in %s\n", s.Paths.DestRoot)
	return nil
}
