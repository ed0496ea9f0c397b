package commands

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"git.home.luguber.info/inful/postbuilder/internal/build"
	"git.home.luguber.info/inful/postbuilder/internal/config"
	"git.home.luguber.info/inful/postbuilder/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Debounce time.Duration `name:"debounce" default:"300ms" help:"Quiet period after the last change before rebuilding"`
}

func (w *WatchCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	svc := g.service(root)

	rebuild := func(ctx context.Context) error {
		result, err := svc.Run(ctx, build.BuildRequest{Config: cfg})
		if err != nil {
			return err
		}
		printSummary(g.Stdout, result)
		return nil
	}
	return watch.Run(ctx, watchDirs(cfg), rebuild, watch.Options{
		Debounce: w.Debounce,
		Ignore:   watchIgnore(cfg),
	})
}

// watchDirs lists the directories whose contents feed a build: the blog
// tree with its templates, and every canonical figure directory.
func watchDirs(cfg *config.Config) []string {
	dirs := []string{filepath.Clean(cfg.Blog.Dir), filepath.Dir(cfg.Blog.Template)}
	if cfg.Index.Enabled() {
		dirs = append(dirs, filepath.Dir(cfg.Index.Template))
	}
	for _, fig := range cfg.Figures {
		dirs = append(dirs, filepath.Clean(fig.SourceDir), filepath.Dir(fig.Document))
	}
	return collapseDirs(dirs)
}

// collapseDirs drops duplicates and directories nested in another entry,
// since watching is recursive.
func collapseDirs(dirs []string) []string {
	abs := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if a, err := filepath.Abs(d); err == nil {
			abs = append(abs, a)
		}
	}
	slices.Sort(abs)
	abs = slices.Compact(abs)

	var out []string
	for _, d := range abs {
		if slices.ContainsFunc(out, func(parent string) bool { return isWithin(parent, d) }) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func isWithin(parent, path string) bool {
	rel, err := filepath.Rel(parent, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// watchIgnore matches what a build writes: rendered pages, the index page
// and the derived asset directories.
func watchIgnore(cfg *config.Config) func(string) bool {
	names := []string{cfg.Blog.OutputFile}
	if cfg.Index.Enabled() {
		names = append(names, filepath.Base(cfg.Index.Output))
	}
	assetDirs := make([]string, 0, len(cfg.Figures))
	for _, fig := range cfg.Figures {
		assetDirs = append(assetDirs, fig.AssetDir)
	}
	return watch.IgnoreOutputs(names, assetDirs)
}
