package commands

import (
	"git.home.luguber.info/inful/sitepipe/internal/config"
	"git.home.luguber.info/inful/sitepipe/internal/site"
)

// DevCmd implements the default 'dev' command.
type DevCmd struct {
	Port         int  `short:"p" help:"Override server.port"`
	NoOpen       bool `name:"no-open" help:"Do not open a browser once serving"`
	NoLiveReload bool `name:"no-live-reload" help:"Disable the reload stream and script injection"`
}

func (d *DevCmd) Run(g *Global, root *CLI) error {
	s, err := openSite(g, root, d.apply)
	if err != nil {
		return err
	}
	defer closeSite(g, s)

	ctx, cancel := signalContext()
	defer cancel()

	g.Logger.Info("Starting development server", "addr", s.Server.Addr(), "dest", s.Paths.DestRoot)
	_, err = s.Run(ctx, site.PipelineDev)
	// The serve phase ends on interrupt; per-task failures were already logged.
	return err
}

func (d *DevCmd) apply(cfg *config.Config) {
	if d.Port > 0 {
		cfg.Server.Port = d.Port
	}
	if d.NoOpen {
		cfg.Server.Open = config.Bool(false)
	}
	if d.NoLiveReload {
		cfg.Server.LiveReload = config.Bool(false)
	}
}
