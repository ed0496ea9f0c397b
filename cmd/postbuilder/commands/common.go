package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/postbuilder/internal/build"
	"git.home.luguber.info/inful/postbuilder/internal/config"
	"git.home.luguber.info/inful/postbuilder/internal/metrics"
)

// Global holds state shared by every subcommand of one invocation.
type Global struct {
	Stdout io.Writer

	// Service, when set, replaces the build service the commands construct.
	Service *build.DefaultBuildService

	recorder *metrics.PrometheusRecorder
}

// NewGlobal creates the shared state printing progress to stdout.
func NewGlobal(stdout io.Writer) *Global {
	return &Global{Stdout: stdout}
}

// CLI definition & global flags.
type CLI struct {
	Config      string           `short:"c" help:"Configuration file path" default:"postbuilder.yaml"`
	Verbose     bool             `short:"v" help:"Enable verbose logging"`
	MetricsFile string           `name:"metrics-file" help:"Write Prometheus metrics to this file (node_exporter textfile format) when the command ends"`
	Version     kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build  BuildCmd  `cmd:"" default:"1" help:"Synchronize figure assets and render every post (default)"`
	Sync   SyncCmd   `cmd:"" help:"Synchronize figure assets only"`
	Render RenderCmd `cmd:"" help:"Render the given posts only"`
	Probe  ProbeCmd  `cmd:"" help:"Report the converter and renderer a build would use"`
	Watch  WatchCmd  `cmd:"" help:"Rebuild whenever posts, templates or figures change"`
	Init   InitCmd   `cmd:"" help:"Initialize a new configuration file"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// service returns the build service for this invocation, recording metrics
// when --metrics-file is set.
func (g *Global) service(root *CLI) *build.DefaultBuildService {
	svc := g.Service
	if svc == nil {
		svc = build.NewBuildService()
	}
	svc.WithProgress(g.Stdout)
	if root.MetricsFile != "" {
		if g.recorder == nil {
			g.recorder = metrics.NewPrometheusRecorder(nil)
		}
		svc.WithRecorder(g.recorder)
	}
	return svc
}

// FlushMetrics writes the collected metrics to path. It does nothing when
// metrics were not requested.
func (g *Global) FlushMetrics(path string) error {
	if path == "" || g.recorder == nil {
		return nil
	}
	return g.recorder.WriteTextfile(path)
}

func loadConfig(root *CLI) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	slog.Debug("Configuration loaded", "path", root.Config, "collections", len(cfg.Figures))
	return cfg, nil
}
