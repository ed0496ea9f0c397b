package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/postbuilder/cmd/postbuilder/commands"
	foundationerrors "git.home.luguber.info/inful/postbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/postbuilder/internal/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cli commands.CLI
	global := commands.NewGlobal(os.Stdout)

	parser := kong.Parse(&cli,
		kong.Name("postbuilder"),
		kong.Description("Build the blog: synchronize figure assets and render posts."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.Bind(global),
	)

	err := parser.Run(&cli)
	if flushErr := global.FlushMetrics(cli.MetricsFile); flushErr != nil {
		slog.Warn("Failed to write metrics file", "path", cli.MetricsFile, "error", flushErr)
	}
	return foundationerrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).Report(err)
}
