package build

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"git.home.luguber.info/inful/postbuilder/internal/assets"
	"git.home.luguber.info/inful/postbuilder/internal/config"
	"git.home.luguber.info/inful/postbuilder/internal/convert"
	foundationerrors "git.home.luguber.info/inful/postbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/postbuilder/internal/gitinfo"
	"git.home.luguber.info/inful/postbuilder/internal/index"
	"git.home.luguber.info/inful/postbuilder/internal/logfields"
	"git.home.luguber.info/inful/postbuilder/internal/metrics"
	"git.home.luguber.info/inful/postbuilder/internal/observability"
	"git.home.luguber.info/inful/postbuilder/internal/post"
	"git.home.luguber.info/inful/postbuilder/internal/process"
	"git.home.luguber.info/inful/postbuilder/internal/reference"
)

// DefaultBuildService is the standard implementation of BuildService.
type DefaultBuildService struct {
	fs         afero.Fs
	runner     process.Runner
	lookPath   process.LookPathFunc
	prober     convert.Prober
	sourceInfo func(path string) (gitinfo.Info, error)
	recorder   metrics.Recorder
	progress   io.Writer
	now        func() time.Time
}

// NewBuildService creates a new DefaultBuildService operating on the OS
// filesystem and running real external tools.
func NewBuildService() *DefaultBuildService {
	return &DefaultBuildService{
		fs:         afero.NewOsFs(),
		runner:     &process.ExecRunner{},
		lookPath:   exec.LookPath,
		sourceInfo: gitinfo.Lookup,
		recorder:   metrics.NoopRecorder{},
		progress:   io.Discard,
		now:        time.Now,
	}
}

// WithFs sets the filesystem all reads and writes go through.
func (s *DefaultBuildService) WithFs(fs afero.Fs) *DefaultBuildService {
	s.fs = fs
	return s
}

// WithRunner sets the runner used for pandoc and the converters.
func (s *DefaultBuildService) WithRunner(r process.Runner) *DefaultBuildService {
	s.runner = r
	return s
}

// WithLookPath sets how tool binaries are resolved.
func (s *DefaultBuildService) WithLookPath(fn process.LookPathFunc) *DefaultBuildService {
	s.lookPath = fn
	return s
}

// WithProber overrides the converter probe built from configuration.
func (s *DefaultBuildService) WithProber(p convert.Prober) *DefaultBuildService {
	s.prober = p
	return s
}

// WithSourceInfo sets the repository metadata lookup.
func (s *DefaultBuildService) WithSourceInfo(fn func(path string) (gitinfo.Info, error)) *DefaultBuildService {
	s.sourceInfo = fn
	return s
}

// WithRecorder sets the metrics recorder.
func (s *DefaultBuildService) WithRecorder(r metrics.Recorder) *DefaultBuildService {
	if r != nil {
		s.recorder = r
	}
	return s
}

// WithProgress sets where per-page progress lines are printed.
func (s *DefaultBuildService) WithProgress(w io.Writer) *DefaultBuildService {
	if w != nil {
		s.progress = w
	}
	return s
}

// WithClock sets the clock used for built_at and durations.
func (s *DefaultBuildService) WithClock(now func() time.Time) *DefaultBuildService {
	s.now = now
	return s
}

// buildState carries values between stages of one run.
type buildState struct {
	req      BuildRequest
	cfg      *config.Config
	result   *BuildResult
	renderer *post.Renderer
	sources  []string
}

// Run executes the build pipeline.
func (s *DefaultBuildService) Run(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	startTime := s.now()
	result := &BuildResult{
		StartTime: startTime,
		BuildID:   uuid.NewString(),
	}
	ctx = observability.WithBuildID(ctx, result.BuildID)

	finish := func(status BuildStatus, outcome metrics.BuildOutcomeLabel) {
		result.Status = status
		result.EndTime = s.now()
		result.Duration = result.EndTime.Sub(startTime)
		s.recorder.IncBuildOutcome(outcome)
		s.recorder.ObserveBuildDuration(result.Duration)
	}

	if req.Config == nil {
		finish(BuildStatusFailed, metrics.BuildOutcomeFailed)
		return result, foundationerrors.ConfigError("config required").Build()
	}
	if err := req.Config.Validate(); err != nil {
		finish(BuildStatusFailed, metrics.BuildOutcomeFailed)
		return result, err
	}

	st := &buildState{req: req, cfg: req.Config, result: result}
	observability.InfoContext(ctx, "Starting build",
		slog.Int("collections", len(req.Config.Figures)),
		slog.Bool("render", !req.Options.SkipRender))

	if err := s.runStages(ctx, st, s.plan(req)); err != nil {
		if ctx.Err() != nil {
			finish(BuildStatusCancelled, metrics.BuildOutcomeCanceled)
		} else {
			finish(BuildStatusFailed, metrics.BuildOutcomeFailed)
		}
		return result, err
	}

	finish(BuildStatusSuccess, metrics.BuildOutcomeSuccess)
	observability.InfoContext(ctx, "Build complete",
		logfields.Count(len(result.Posts)),
		logfields.Duration(result.Duration))
	return result, nil
}

// plan selects the stages a request runs.
func (s *DefaultBuildService) plan(req BuildRequest) []stage {
	var stages []stage
	if !req.Options.SkipAssets {
		stages = append(stages, stage{StageSyncAssets, s.stageSyncAssets})
	}
	if !req.Options.SkipRender {
		stages = append(stages,
			stage{StageDiscoverPosts, s.stageDiscoverPosts},
			stage{StageRenderPosts, s.stageRenderPosts})
		if req.Config.Index.Enabled() && len(req.Options.Posts) == 0 {
			stages = append(stages, stage{StageWriteIndex, s.stageWriteIndex})
		}
	}
	return stages
}

// Prober returns the converter probe for cfg.
func (s *DefaultBuildService) Prober(cfg *config.Config) convert.Prober {
	if s.prober != nil {
		return s.prober
	}
	return &convert.SystemProber{
		Candidates: cfg.Converter.Candidates,
		LookPath:   s.lookPath,
		Options: convert.Options{
			MaxDimension: cfg.Converter.MaxDimension,
			DPI:          cfg.Converter.DPI,
			Runner:       s.runner,
			Fs:           s.fs,
		},
	}
}

func (s *DefaultBuildService) stageSyncAssets(ctx context.Context, st *buildState) error {
	syncer := assets.NewSynchronizer(s.fs, assets.WithRecorder(s.recorder))
	prober := convert.Once(s.Prober(st.cfg))

	for _, fig := range st.cfg.Figures {
		pattern, err := reference.NewPattern(fig.Namespace, fig.RasterExt)
		if err != nil {
			return foundationerrors.WrapError(err, foundationerrors.CategoryConfig, "invalid figure namespace").
				WithContext("collection", fig.Name).
				Build()
		}

		res, err := syncer.Sync(ctx, assets.SyncRequest{
			Collection:      fig.Name,
			DocumentPath:    fig.Document,
			SourceDir:       fig.SourceDir,
			AssetDir:        fig.AssetDir,
			Pattern:         pattern,
			SourceExt:       fig.SourceExt,
			ValidateSources: fig.ValidateSources,
		}, prober)
		if res != nil {
			st.result.Assets = append(st.result.Assets, res)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(s.progress, "  %s: %d figures via %s\n", fig.AssetDir, len(res.Generated), res.Backend)
	}
	return nil
}

func (s *DefaultBuildService) stageDiscoverPosts(ctx context.Context, st *buildState) error {
	if len(st.req.Options.Posts) > 0 {
		st.sources = slices.Clone(st.req.Options.Posts)
		return nil
	}

	sources, err := DiscoverPosts(s.fs, st.cfg.Blog.Dir, st.cfg.Blog.IndexDocument)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return foundationerrors.NotFoundError("no posts found").
			WithContext("path", filepath.Join(st.cfg.Blog.Dir, "*", st.cfg.Blog.IndexDocument)).
			Build()
	}
	st.sources = sources
	observability.InfoContext(ctx, "Discovered posts", logfields.Count(len(sources)))
	return nil
}

// Renderer returns the post renderer for cfg stamping builtAt into every page.
func (s *DefaultBuildService) Renderer(cfg *config.Config, builtAt time.Time) *post.Renderer {
	return post.NewRenderer(post.Options{
		Binary:     cfg.Renderer.Binary,
		From:       cfg.Renderer.From,
		TOCDepth:   cfg.Renderer.TOCDepth,
		OutputFile: cfg.Blog.OutputFile,
		SiteName:   cfg.Site.Name,
		Lang:       cfg.Site.Lang,
		Status:     cfg.Site.Status,
		BuiltAt:    builtAt,
		SiteRoot:   filepath.Dir(filepath.Clean(cfg.Blog.Dir)),
		Runner:     s.runner,
		LookPath:   s.lookPath,
		Fs:         s.fs,
		SourceInfo: s.sourceInfo,
	})
}

func (s *DefaultBuildService) stageRenderPosts(ctx context.Context, st *buildState) error {
	cfg := st.cfg
	st.renderer = s.Renderer(cfg, st.result.StartTime)
	if err := st.renderer.CheckAvailable(); err != nil {
		return err
	}

	siteRoot := filepath.Dir(filepath.Clean(cfg.Blog.Dir))
	for _, src := range st.sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		rendered, err := st.renderer.Render(ctx, post.Job{SourcePath: src, TemplatePath: cfg.Blog.Template})
		if err != nil {
			return err
		}
		st.result.Posts = append(st.result.Posts, rendered)
		s.recorder.IncPostsRendered(1)
		fmt.Fprintf(s.progress, "  %s\n", relOrSelf(siteRoot, rendered.OutputPath))
	}
	return nil
}

func (s *DefaultBuildService) stageWriteIndex(ctx context.Context, st *buildState) error {
	entries := make([]index.Entry, 0, len(st.result.Posts))
	for _, p := range st.result.Posts {
		entries = append(entries, index.Entry{Slug: p.Source.Slug, Title: p.Source.Title})
	}
	page := index.Page{
		TemplatePath: st.cfg.Index.Template,
		OutputPath:   st.cfg.Index.Output,
		Placeholder:  st.cfg.Index.Placeholder,
	}
	if err := index.Write(s.fs, page, entries); err != nil {
		return err
	}
	st.result.IndexPath = page.OutputPath
	fmt.Fprintf(s.progress, "  %s\n", relOrSelf(filepath.Dir(filepath.Clean(st.cfg.Blog.Dir)), page.OutputPath))
	observability.InfoContext(ctx, "Wrote index page", logfields.Path(page.OutputPath), logfields.Count(len(entries)))
	return nil
}

// DiscoverPosts returns <blogDir>/*/<indexDocument> in sorted order.
func DiscoverPosts(fs afero.Fs, blogDir, indexDocument string) ([]string, error) {
	matches, err := afero.Glob(fs, filepath.Join(blogDir, "*", indexDocument))
	if err != nil {
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryConfig, "invalid post pattern").
			WithContext("path", blogDir).
			Build()
	}
	slices.Sort(matches)
	return matches, nil
}

func relOrSelf(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}
