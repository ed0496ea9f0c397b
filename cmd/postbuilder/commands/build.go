package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"git.home.luguber.info/inful/postbuilder/internal/build"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	SkipAssets bool `name:"skip-assets" help:"Render posts without synchronizing figure assets"`
}

func (b *BuildCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	return runPipeline(ctx, g, root, build.BuildOptions{SkipAssets: b.SkipAssets})
}

// SyncCmd implements the 'sync' command.
type SyncCmd struct{}

func (s *SyncCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	return runPipeline(ctx, g, root, build.BuildOptions{SkipRender: true})
}

// RenderCmd implements the 'render' command.
type RenderCmd struct {
	Posts []string `arg:"" name:"post" help:"Post sources (<blog_dir>/<slug>/index.md) to render"`
}

func (r *RenderCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	return runPipeline(ctx, g, root, build.BuildOptions{SkipAssets: true, Posts: r.Posts})
}

// runPipeline loads configuration and runs one build with opts.
func runPipeline(ctx context.Context, g *Global, root *CLI, opts build.BuildOptions) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	result, err := g.service(root).Run(ctx, build.BuildRequest{Config: cfg, Options: opts})
	if err != nil {
		return err
	}
	printSummary(g.Stdout, result)
	return nil
}

func printSummary(w io.Writer, result *build.BuildResult) {
	generated := 0
	for _, a := range result.Assets {
		generated += len(a.Generated)
	}
	_, _ = fmt.Fprintf(w, "Done: %d posts, %d figures in %s\n",
		len(result.Posts), generated, result.Duration.Round(time.Millisecond))
}
