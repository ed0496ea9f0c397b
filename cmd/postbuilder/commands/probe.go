package commands

import (
	"errors"
	"fmt"
	"time"
)

// ProbeCmd implements the 'probe' command.
type ProbeCmd struct{}

func (p *ProbeCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	svc := g.service(root)

	backend, convErr := svc.Prober(cfg).Probe()
	if convErr == nil {
		_, _ = fmt.Fprintf(g.Stdout, "converter: %s\n", backend.Name())
	} else {
		_, _ = fmt.Fprintln(g.Stdout, "converter: none")
	}

	renderer := svc.Renderer(cfg, time.Now())
	renderErr := renderer.CheckAvailable()
	if renderErr == nil {
		_, _ = fmt.Fprintf(g.Stdout, "renderer: %s\n", renderer.BinaryPath())
	} else {
		_, _ = fmt.Fprintln(g.Stdout, "renderer: none")
	}

	return errors.Join(convErr, renderErr)
}
