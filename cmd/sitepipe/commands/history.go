package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	ferrors "git.home.luguber.info/inful/sitepipe/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepipe/internal/journal"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	RunID string `arg:"" optional:"" name:"run-id" help:"Show the events of one run"`
	Limit int    `short:"n" help:"Number of runs to list" default:"10"`
	JSON  bool   `help:"Print JSON instead of a table"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	dbPath := cfg.HistoryPath()
	if _, err := os.Stat(dbPath); err != nil {
		return ferrors.NotFoundError("no run history recorded (enable history in the configuration)").
			WithContext("path", dbPath).
			Build()
	}

	store, err := journal.Open(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if h.RunID != "" {
		return h.showRun(ctx, g.Out, store)
	}

	runs, err := journal.Recent(ctx, store, h.Limit)
	if err != nil {
		return err
	}
	if h.JSON {
		return writeJSON(g.Out, runs)
	}
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(g.Out, "No runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(g.Out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RUN\tPIPELINE\tSTATUS\tSTARTED\tDURATION\tTASKS\tFAILED\tFILE ERRORS")
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			r.RunID, r.Pipeline, r.Status, r.StartedAt.Local().Format(time.DateTime),
			r.Duration.Round(time.Millisecond), r.Tasks, r.FailedTasks, r.FileErrors)
	}
	return tw.Flush()
}

func (h *HistoryCmd) showRun(ctx context.Context, out io.Writer, store journal.Store) error {
	events, err := store.ByRun(ctx, h.RunID)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return ferrors.NotFoundError("unknown run").WithContext("run_id", h.RunID).Build()
	}
	summary := journal.Summarize(h.RunID, events)
	if h.JSON {
		return writeJSON(out, struct {
			Summary journal.RunSummary `json:"summary"`
			Events  []json.RawMessage  `json:"events"`
		}{summary, payloads(events)})
	}

	_, _ = fmt.Fprintf(out, "Run %s (%s): %s\n", summary.RunID, summary.Pipeline, summary.Status)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, e := range events {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Timestamp.Local().Format("15:04:05.000"), e.Type, describe(e))
	}
	return tw.Flush()
}

func describe(e journal.Event) string {
	switch e.Type {
	case journal.TypePhaseCompleted:
		var p journal.PhaseCompleted
		if journal.Decode(e, &p) == nil {
			return fmt.Sprintf("%s (%s) %dms, %d/%d failed", p.Phase, p.Mode, p.DurationMS, p.Failed, p.Tasks)
		}
	case journal.TypeTaskCompleted:
		var p journal.TaskCompleted
		if journal.Decode(e, &p) == nil {
			s := fmt.Sprintf("%s %s, %d files, %dms", p.Task, p.Result, p.Files, p.DurationMS)
			if p.Error != "" {
				s += ": " + p.Error
			}
			for _, fe := range p.FileErrors {
				s += fmt.Sprintf("\n\t\t  %s:%d: %s", fe.File, fe.Line, fe.Message)
			}
			return s
		}
	case journal.TypePipelineCompleted:
		var p journal.PipelineCompleted
		if journal.Decode(e, &p) == nil {
			return fmt.Sprintf("%s %dms, %d file errors", p.Outcome, p.DurationMS, p.FileErrors)
		}
	}
	return string(e.Payload)
}

func payloads(events []journal.Event) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(events))
	for _, e := range events {
		raw, err := json.Marshal(struct {
			Type      string          `json:"type"`
			Timestamp time.Time       `json:"timestamp"`
			Payload   json.RawMessage `json:"payload"`
		}{e.Type, e.Timestamp, json.RawMessage(e.Payload)})
		if err == nil {
			out = append(out, raw)
		}
	}
	return out
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
