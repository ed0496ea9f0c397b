package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	foundationerrors "git.home.luguber.info/inful/postbuilder/internal/foundation/errors"
)

const sampleConfig = `
site:
  name: Test Site
blog:
  dir: content/blog
figures:
  - name: wonton-soup
    document: content/blog/wonton-soup/index.md
    namespace: /assets/wonton-soup/
    source_dir: ${FIGURE_ROOT}/figures
    asset_dir: content/assets/wonton-soup
converter:
  candidates: [mutool, pdftoppm]
`

const oneFigure = "figures:\n  - {name: a, document: d.md, namespace: /a/, source_dir: s, asset_dir: x}\n"

func TestLoadAppliesDefaultsAndExpandsEnv(t *testing.T) {
	t.Setenv("FIGURE_ROOT", "dossiers/wonton-soup")
	path := filepath.Join(t.TempDir(), "postbuilder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Test Site", cfg.Site.Name)
	assert.Equal(t, DefaultLang, cfg.Site.Lang)
	assert.Equal(t, DefaultStatus, cfg.Site.Status)
	assert.Equal(t, "content/blog", cfg.Blog.Dir)
	assert.Equal(t, DefaultIndexDocument, cfg.Blog.IndexDocument)
	assert.Equal(t, DefaultTOCDepth, cfg.Renderer.TOCDepth)
	assert.Equal(t, DefaultRendererFrom, cfg.Renderer.From)
	assert.Equal(t, []string{"mutool", "pdftoppm"}, cfg.Converter.Candidates)
	assert.Equal(t, DefaultMaxDimension, cfg.Converter.MaxDimension)

	require.Len(t, cfg.Figures, 1)
	fig := cfg.Figures[0]
	assert.Equal(t, "dossiers/wonton-soup/figures", fig.SourceDir)
	assert.Equal(t, ".pdf", fig.SourceExt)
	assert.Equal(t, ".png", fig.RasterExt)
	assert.False(t, cfg.Index.Enabled())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryNotFound))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadMissingDefaultFileRequiresFigures(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load("")
	require.Error(t, err)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryConfig))
	assert.Contains(t, err.Error(), "figures collection")
}

func TestLoadReadsDotEnvWithoutOverriding(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("POSTBUILDER_SITE", "from-process")
	require.NoError(t, os.WriteFile(".env", []byte("POSTBUILDER_SITE=from-file\nPOSTBUILDER_LANG=de\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("POSTBUILDER_LANG") })
	require.NoError(t, os.WriteFile(DefaultPath, []byte("site:\n  name: ${POSTBUILDER_SITE}\n  lang: ${POSTBUILDER_LANG}\n"+oneFigure), 0o600))

	cfg, err := Load(DefaultPath)
	require.NoError(t, err)
	assert.Equal(t, "from-process", cfg.Site.Name)
	assert.Equal(t, "de", cfg.Site.Lang)
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "bad status", yaml: "site:\n  status: archived\n"},
		{name: "nested index document", yaml: "blog:\n  index_document: a/index.md\n"},
		{name: "output equals source", yaml: "blog:\n  index_document: index.md\n  output_file: index.md\n"},
		{name: "figure missing namespace", yaml: "figures:\n  - name: a\n    document: d.md\n    source_dir: s\n    asset_dir: a\n"},
		{name: "same source and raster ext", yaml: "figures:\n  - name: a\n    document: d.md\n    namespace: /a/\n    source_dir: s\n    asset_dir: a\n    source_ext: .png\n"},
		{name: "asset dir equals source dir", yaml: "figures:\n  - name: a\n    document: d.md\n    namespace: /a/\n    source_dir: figs\n    asset_dir: ./figs\n"},
		{name: "duplicate figure names", yaml: "figures:\n  - {name: a, document: d.md, namespace: /a/, source_dir: s, asset_dir: x}\n  - {name: a, document: e.md, namespace: /b/, source_dir: t, asset_dir: y}\n"},
		{name: "malformed yaml", yaml: "site: [unclosed\n"},
		{name: "no figures key", yaml: "blog:\n  dir: site/blog\n"},
		{name: "empty figures", yaml: "figures: []\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), "inline")
			require.Error(t, err)
			assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryConfig), "got %v", err)
		})
	}
}

func TestParseNormalizesStatus(t *testing.T) {
	cfg, err := Parse([]byte("site:\n  status: \" Draft\"\n"+oneFigure), "inline")
	require.NoError(t, err)
	assert.Equal(t, "draft", cfg.Site.Status)
}

func TestIndexDefaultsWhenEnabled(t *testing.T) {
	cfg, err := Parse([]byte("index:\n  template: site/blog/index-template.html\n"+oneFigure), "inline")
	require.NoError(t, err)
	assert.True(t, cfg.Index.Enabled())
	assert.Equal(t, DefaultIndexPlaceholder, cfg.Index.Placeholder)
	assert.Equal(t, "site/blog/index.html", cfg.Index.Output)
}

func TestInitWritesLoadableExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "postbuilder.yaml")
	require.NoError(t, Init(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Figures, 1)
	assert.Equal(t, "/assets/wonton-soup/", cfg.Figures[0].Namespace)
	assert.True(t, cfg.Index.Enabled())

	err = Init(path, false)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryValidation))
	assert.NoError(t, Init(path, true))
}
