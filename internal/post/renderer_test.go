package post

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	foundationerrors "git.home.luguber.info/inful/postbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/postbuilder/internal/gitinfo"
	"git.home.luguber.info/inful/postbuilder/internal/process"
)

const (
	postPath     = "/site/blog/wonton-soup/index.md"
	templatePath = "/site/blog/post-template.html"
)

type fakeRunner struct {
	args   [][]string
	stdout string
	stderr string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (process.Output, error) {
	f.args = append(f.args, append([]string{name}, args...))
	return process.Output{Stdout: f.stdout, Stderr: f.stderr}, f.err
}

func foundPandoc(file string) (string, error) {
	if file == "pandoc" {
		return "/usr/local/bin/pandoc", nil
	}
	return "", errors.New("not found")
}

func newTestRenderer(t *testing.T, runner *fakeRunner) (*Renderer, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, postPath, []byte("# Wonton Soup: Proof Structures\n\nBody.\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, templatePath, []byte("$body$"), 0o644))

	r := NewRenderer(Options{
		SiteName: "SPECTER Labs",
		Status:   "draft",
		BuiltAt:  time.Date(2026, 3, 1, 12, 30, 45, 500, time.FixedZone("CET", 3600)),
		SiteRoot: "/site",
		Runner:   runner,
		LookPath: foundPandoc,
		Fs:       fs,
		SourceInfo: func(string) (gitinfo.Info, error) {
			return gitinfo.Info{SourcePath: "site/blog/wonton-soup/index.md", Revision: "abc1234"}, nil
		},
	})
	return r, fs
}

func TestRenderWritesPageBesideSource(t *testing.T) {
	runner := &fakeRunner{stdout: "<html>rendered</html>"}
	r, fs := newTestRenderer(t, runner)

	got, err := r.Render(context.Background(), Job{SourcePath: postPath, TemplatePath: templatePath})
	require.NoError(t, err)

	assert.Equal(t, "/site/blog/wonton-soup/index.html", got.OutputPath)
	assert.Equal(t, Source{Path: postPath, Slug: "wonton-soup", Title: "Wonton Soup: Proof Structures"}, got.Source)

	data, err := afero.ReadFile(fs, got.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "<html>rendered</html>", string(data))

	require.Len(t, runner.args, 1)
	assert.Equal(t, []string{
		"/usr/local/bin/pandoc",
		postPath,
		"--from=markdown+lists_without_preceding_blankline",
		"--to=html5",
		"--standalone",
		"--wrap=none",
		"--template=" + templatePath,
		"--toc",
		"--toc-depth=2",
		"--mathml",
		"--metadata", "lang=en",
		"--metadata", "pagetitle=Wonton Soup: Proof Structures | SPECTER Labs",
		"--metadata", "slug=wonton-soup",
		"--metadata", "root_prefix=../../",
		"--metadata", "status=draft",
		"--metadata", "built_at=2026-03-01T11:30:45Z",
		"--metadata", "source_path=site/blog/wonton-soup/index.md",
		"--metadata", "revision=abc1234",
	}, runner.args[0])
}

func TestRenderOmitsRepositoryMetadataOutsideGit(t *testing.T) {
	runner := &fakeRunner{stdout: "<html/>"}
	r, _ := newTestRenderer(t, runner)
	r.opts.SourceInfo = func(string) (gitinfo.Info, error) { return gitinfo.Info{}, nil }

	_, err := r.Render(context.Background(), Job{SourcePath: postPath, TemplatePath: templatePath})
	require.NoError(t, err)

	joined := strings.Join(runner.args[0], " ")
	assert.NotContains(t, joined, "source_path=")
	assert.NotContains(t, joined, "revision=")
}

func TestRootPrefix(t *testing.T) {
	r := NewRenderer(Options{SiteRoot: "/site"})

	tests := []struct {
		source string
		want   string
	}{
		{"/site/blog/wonton-soup/index.md", "../../"},
		{"/site/blog/series/part-1/index.md", "../../../"},
		{"/site/about/index.md", "../"},
		{"/site/index.md", ""},
		{"/elsewhere/post/index.md", ""},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			assert.Equal(t, tt.want, r.RootPrefix(tt.source))
		})
	}
}

func TestRenderOmitsRootPrefixWithoutSiteRoot(t *testing.T) {
	runner := &fakeRunner{stdout: "<html/>"}
	r, _ := newTestRenderer(t, runner)
	r.opts.SiteRoot = ""

	_, err := r.Render(context.Background(), Job{SourcePath: postPath, TemplatePath: templatePath})
	require.NoError(t, err)
	assert.NotContains(t, strings.Join(runner.args[0], " "), "root_prefix=")
}

func TestRenderOverwritesPreviousPage(t *testing.T) {
	runner := &fakeRunner{stdout: "new"}
	r, fs := newTestRenderer(t, runner)
	require.NoError(t, afero.WriteFile(fs, "/site/blog/wonton-soup/index.html", []byte("old"), 0o644))

	_, err := r.Render(context.Background(), Job{SourcePath: postPath, TemplatePath: templatePath})
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, "/site/blog/wonton-soup/index.html")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestRenderErrors(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *Renderer, fs afero.Fs, runner *fakeRunner)
		job      Job
		sentinel error
		category foundationerrors.ErrorCategory
	}{
		{
			name:     "missing document",
			job:      Job{SourcePath: "/site/blog/missing/index.md", TemplatePath: templatePath},
			sentinel: ErrMissingDocument,
			category: foundationerrors.CategoryNotFound,
		},
		{
			name:     "missing template",
			job:      Job{SourcePath: postPath, TemplatePath: "/site/blog/nope.html"},
			sentinel: ErrMissingTemplate,
			category: foundationerrors.CategoryNotFound,
		},
		{
			name: "missing title",
			setup: func(_ *Renderer, fs afero.Fs, _ *fakeRunner) {
				_ = afero.WriteFile(fs, postPath, []byte("No heading here.\n"), 0o644)
			},
			job:      Job{SourcePath: postPath, TemplatePath: templatePath},
			sentinel: ErrMissingTitle,
			category: foundationerrors.CategoryContent,
		},
		{
			name: "renderer not installed",
			setup: func(r *Renderer, _ afero.Fs, _ *fakeRunner) {
				r.opts.LookPath = func(string) (string, error) { return "", errors.New("not found") }
			},
			job:      Job{SourcePath: postPath, TemplatePath: templatePath},
			sentinel: ErrRendererNotFound,
			category: foundationerrors.CategoryTooling,
		},
		{
			name: "renderer fails",
			setup: func(_ *Renderer, _ afero.Fs, runner *fakeRunner) {
				runner.stderr = "pandoc: template error\nat line 3"
				runner.err = errors.New("exit status 5")
			},
			job:      Job{SourcePath: postPath, TemplatePath: templatePath},
			sentinel: ErrRender,
			category: foundationerrors.CategoryExternalTool,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{stdout: "<html/>"}
			r, fs := newTestRenderer(t, runner)
			if tt.setup != nil {
				tt.setup(r, fs, runner)
			}

			_, err := r.Render(context.Background(), tt.job)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.True(t, foundationerrors.HasCategory(err, tt.category), "got %v", err)

			exists, statErr := afero.Exists(fs, "/site/blog/wonton-soup/index.html")
			require.NoError(t, statErr)
			assert.False(t, exists, "no page is written on failure")
		})
	}
}

func TestRenderFailureNamesTheTool(t *testing.T) {
	runner := &fakeRunner{stderr: "pandoc: template error\nat line 3", err: errors.New("exit status 5")}
	r, _ := newTestRenderer(t, runner)

	_, err := r.Render(context.Background(), Job{SourcePath: postPath, TemplatePath: templatePath})
	classified, ok := foundationerrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, "render failed (detail=pandoc: template error, path=/site/blog/wonton-soup/index.md, tool=pandoc)", classified.Summary())
}
