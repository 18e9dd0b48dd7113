package commands

// RunCmd implements the 'run' command.
type RunCmd struct {
	Tasks []string `arg:"" name:"task" help:"Tasks to run together, as one parallel phase"`
}

func (r *RunCmd) Run(g *Global, root *CLI) error {
	s, err := openSite(g, root)
	if err != nil {
		return err
	}
	defer closeSite(g, s)

	ctx, cancel := signalContext()
	defer cancel()

	report, err := s.RunTasks(ctx, r.Tasks...)
	if err != nil {
		return err
	}
	return outcomeError(report)
}
