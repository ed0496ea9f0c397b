package post

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	foundationerrors "git.home.luguber.info/inful/postbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/postbuilder/internal/gitinfo"
	"git.home.luguber.info/inful/postbuilder/internal/logfields"
	"git.home.luguber.info/inful/postbuilder/internal/observability"
	"git.home.luguber.info/inful/postbuilder/internal/process"
	"git.home.luguber.info/inful/postbuilder/internal/util/fsutil"
)

// BuiltAtLayout formats the built_at metadata value.
const BuiltAtLayout = "2006-01-02T15:04:05Z"

// Options configures the pandoc invocation and the collaborators used to
// run it. Zero values fall back to defaults.
type Options struct {
	Binary     string
	From       string
	TOCDepth   int
	OutputFile string

	SiteName string
	Lang     string
	Status   string
	// BuiltAt is shared by every post of one build.
	BuiltAt time.Time
	// SiteRoot is the directory served at the site root. When set, each page
	// gets a root_prefix climbing from its directory back up to it.
	SiteRoot string

	Runner     process.Runner
	LookPath   process.LookPathFunc
	Fs         afero.Fs
	SourceInfo func(path string) (gitinfo.Info, error)
}

func (o Options) withDefaults() Options {
	if o.Binary == "" {
		o.Binary = "pandoc"
	}
	if o.From == "" {
		o.From = "markdown+lists_without_preceding_blankline"
	}
	if o.TOCDepth <= 0 {
		o.TOCDepth = 2
	}
	if o.OutputFile == "" {
		o.OutputFile = "index.html"
	}
	if o.SiteName == "" {
		o.SiteName = "SPECTER Labs"
	}
	if o.Lang == "" {
		o.Lang = "en"
	}
	if o.Status == "" {
		o.Status = "published"
	}
	if o.BuiltAt.IsZero() {
		o.BuiltAt = time.Now()
	}
	if o.Runner == nil {
		o.Runner = &process.ExecRunner{}
	}
	if o.LookPath == nil {
		o.LookPath = exec.LookPath
	}
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
	if o.SourceInfo == nil {
		o.SourceInfo = gitinfo.Lookup
	}
	return o
}

// Job names one post and the template to render it with.
type Job struct {
	SourcePath   string
	TemplatePath string
}

// Rendered describes a written page.
type Rendered struct {
	Source     Source
	OutputPath string
	Duration   time.Duration
}

// Renderer turns Markdown posts into standalone HTML pages with pandoc.
type Renderer struct {
	opts       Options
	binaryPath string
}

// NewRenderer creates a Renderer.
func NewRenderer(opts Options) *Renderer {
	return &Renderer{opts: opts.withDefaults()}
}

// CheckAvailable resolves the renderer binary on PATH.
func (r *Renderer) CheckAvailable() error {
	if r.binaryPath != "" {
		return nil
	}
	path, err := r.opts.LookPath(r.opts.Binary)
	if err != nil {
		return foundationerrors.ToolingError("renderer not found on PATH").
			WithCause(fmt.Errorf("%w: %w", ErrRendererNotFound, err)).
			WithContext("tool", r.opts.Binary).
			Build()
	}
	r.binaryPath = path
	return nil
}

// BinaryPath returns the resolved renderer binary, empty until
// CheckAvailable succeeds.
func (r *Renderer) BinaryPath() string { return r.binaryPath }

// OutputPath returns where the page for source is written.
func (r *Renderer) OutputPath(source string) string {
	return filepath.Join(filepath.Dir(source), r.opts.OutputFile)
}

// Render renders one post beside its source, replacing any previous page.
func (r *Renderer) Render(ctx context.Context, job Job) (*Rendered, error) {
	start := time.Now()
	fs := r.opts.Fs

	if ok, _ := afero.Exists(fs, job.SourcePath); !ok {
		return nil, foundationerrors.NotFoundError("post source not found").
			WithCause(ErrMissingDocument).
			WithContext("path", job.SourcePath).
			Build()
	}
	if ok, _ := afero.Exists(fs, job.TemplatePath); !ok {
		return nil, foundationerrors.NotFoundError("template not found").
			WithCause(ErrMissingTemplate).
			WithContext("path", job.TemplatePath).
			Build()
	}

	markdown, err := afero.ReadFile(fs, job.SourcePath)
	if err != nil {
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "cannot read post source").
			WithContext("path", job.SourcePath).
			Build()
	}
	title, err := ExtractTitle(markdown)
	if err != nil {
		if classified, ok := foundationerrors.AsClassified(err); ok {
			return nil, classified.WithContext("path", job.SourcePath)
		}
		return nil, err
	}
	src := Source{Path: job.SourcePath, Slug: Slug(job.SourcePath), Title: title}
	ctx = observability.WithSlug(ctx, src.Slug)

	if err := r.CheckAvailable(); err != nil {
		return nil, err
	}

	info, err := r.opts.SourceInfo(job.SourcePath)
	if err != nil {
		observability.WarnContext(ctx, "Source metadata unavailable", logfields.Path(job.SourcePath), logfields.Error(err))
		info = gitinfo.Info{}
	}

	out, err := r.opts.Runner.Run(ctx, r.binaryPath, r.args(src, job.TemplatePath, info)...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		builder := foundationerrors.ExternalToolError("render failed").
			WithCause(fmt.Errorf("%w: %w", ErrRender, err)).
			WithContext("tool", r.opts.Binary).
			WithContext("path", job.SourcePath)
		if detail := firstLine(out.Stderr); detail != "" {
			builder = builder.WithContext("detail", detail)
		}
		return nil, builder.Build()
	}

	outputPath := r.OutputPath(job.SourcePath)
	if err := fsutil.WriteFileAtomic(fs, outputPath, []byte(out.Stdout), 0o644); err != nil {
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "cannot write rendered page").
			WithContext("path", outputPath).
			Build()
	}

	rendered := &Rendered{Source: src, OutputPath: outputPath, Duration: time.Since(start)}
	observability.DebugContext(ctx, "Rendered post", logfields.Path(outputPath), logfields.Duration(rendered.Duration))
	return rendered, nil
}

// RootPrefix returns "../" once per directory between the page rendered
// from source and SiteRoot, e.g. "../../" for <site>/blog/<slug>/index.html.
// Pages outside SiteRoot get an empty prefix.
func (r *Renderer) RootPrefix(source string) string {
	if r.opts.SiteRoot == "" {
		return ""
	}
	rel, err := filepath.Rel(filepath.Clean(r.opts.SiteRoot), filepath.Dir(r.OutputPath(source)))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	depth := len(strings.Split(filepath.ToSlash(rel), "/"))
	return strings.Repeat("../", depth)
}

// args builds the pandoc argument vector for one post.
func (r *Renderer) args(src Source, template string, info gitinfo.Info) []string {
	o := r.opts
	args := []string{
		src.Path,
		"--from=" + o.From,
		"--to=html5",
		"--standalone",
		"--wrap=none",
		"--template=" + template,
		"--toc",
		"--toc-depth=" + strconv.Itoa(o.TOCDepth),
		"--mathml",
	}
	meta := [][2]string{
		{"lang", o.Lang},
		{"pagetitle", src.Title + " | " + o.SiteName},
		{"slug", src.Slug},
	}
	if o.SiteRoot != "" {
		meta = append(meta, [2]string{"root_prefix", r.RootPrefix(src.Path)})
	}
	meta = append(meta, [][2]string{
		{"status", o.Status},
		{"built_at", o.BuiltAt.UTC().Format(BuiltAtLayout)},
	}...)
	if info.SourcePath != "" {
		meta = append(meta, [2]string{"source_path", info.SourcePath})
	}
	if info.Revision != "" {
		meta = append(meta, [2]string{"revision", info.Revision})
	}
	for _, kv := range meta {
		args = append(args, "--metadata", kv[0]+"="+kv[1])
	}
	return args
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
