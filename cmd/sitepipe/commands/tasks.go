package commands

import (
	"fmt"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/sitepipe/internal/pipeline"
)

// TasksCmd implements the 'tasks' command.
type TasksCmd struct {
	Format string `short:"f" help:"Output format: text, mermaid, dot, json" default:"text" enum:"text,mermaid,dot,json"`
	Output string `short:"o" help:"Output file path (optional, prints to stdout if not specified)"`
	List   bool   `short:"l" help:"List available formats and exit"`
}

func (cmd *TasksCmd) Run(g *Global, root *CLI) error {
	if cmd.List {
		_, _ = fmt.Fprintln(g.Out, "Available formats:")
		for _, format := range pipeline.GetSupportedFormats() {
			_, _ = fmt.Fprintf(g.Out, "  %-10s %s\n", format, pipeline.GetFormatDescription(format))
		}
		return nil
	}

	s, err := openSite(g, root)
	if err != nil {
		return err
	}
	defer closeSite(g, s)

	output, err := pipeline.Visualize(s.Graph, pipeline.VisualizationFormat(cmd.Format))
	if err != nil {
		return err
	}

	if cmd.Output != "" {
		if err := os.WriteFile(cmd.Output, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		slog.Info("Task graph written", "file", cmd.Output, "format", cmd.Format)
		return nil
	}
	_, _ = fmt.Fprint(g.Out, output)
	return nil
}
