package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/sitepipe/internal/pipeline"
)

// CheckCmd implements the 'check' command.
type CheckCmd struct{}

func (c *CheckCmd) Run(g *Global, root *CLI) error {
	s, err := openSite(g, root)
	if err != nil {
		return err
	}
	defer closeSite(g, s)

	result := pipeline.Validate(context.Background(), s.Graph)
	for _, w := range result.Warnings {
		_, _ = fmt.Fprintf(g.Out, "warning: %s\n", w)
	}
	for _, e := range result.Errors {
		_, _ = fmt.Fprintf(g.Out, "error: %s\n", e)
	}
	if err := result.Err(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.Out, "%d pipelines, %d tasks: ok\n", len(s.Graph.Pipelines()), len(s.Graph.Tasks()))
	return nil
}
