package assets

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/postbuilder/internal/convert"
	foundationerrors "git.home.luguber.info/inful/postbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/postbuilder/internal/metrics"
	"git.home.luguber.info/inful/postbuilder/internal/reference"
	"git.home.luguber.info/inful/postbuilder/internal/util/sets"
)

const (
	docPath   = "/site/blog/wonton-soup/index.md"
	sourceDir = "/dossiers/wonton-soup/figures"
	assetDir  = "/site/assets/wonton-soup"
)

// fakeBackend writes a marker file in place of a real PNG.
type fakeBackend struct {
	fs    afero.Fs
	calls []string
	fail  map[string]error
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Convert(_ context.Context, src, dst string) error {
	b.calls = append(b.calls, filepath.Base(dst))
	if err := b.fail[filepath.Base(dst)]; err != nil {
		return err
	}
	return afero.WriteFile(b.fs, dst, []byte("png from "+src), 0o644)
}

// countingProber counts probes and optionally inspects state at probe time.
type countingProber struct {
	backend convert.Backend
	err     error
	probes  int
	onProbe func()
}

func (p *countingProber) Probe() (convert.Backend, error) {
	p.probes++
	if p.onProbe != nil {
		p.onProbe()
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.backend, nil
}

type recordingRecorder struct {
	metrics.NoopRecorder
	removed   int
	generated int
}

func (r *recordingRecorder) IncAssetsRemoved(_ string, n int)       { r.removed += n }
func (r *recordingRecorder) IncAssetsGenerated(_, _ string, n int) { r.generated += n }

type fixture struct {
	fs      afero.Fs
	backend *fakeBackend
	prober  *countingProber
	sync    *Synchronizer
}

func newFixture(t *testing.T, doc string, figures ...string) *fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, docPath, []byte(doc), 0o644))
	require.NoError(t, fs.MkdirAll(sourceDir, 0o755))
	for _, f := range figures {
		require.NoError(t, afero.WriteFile(fs, filepath.Join(sourceDir, f), []byte("%PDF-1.7"), 0o644))
	}
	backend := &fakeBackend{fs: fs, fail: map[string]error{}}
	return &fixture{
		fs:      fs,
		backend: backend,
		prober:  &countingProber{backend: backend},
		sync:    NewSynchronizer(fs),
	}
}

func (f *fixture) request() SyncRequest {
	return SyncRequest{
		Collection:   "wonton-soup",
		DocumentPath: docPath,
		SourceDir:    sourceDir,
		AssetDir:     assetDir,
		Pattern:      reference.MustPattern("/assets/wonton-soup/", ".png"),
	}
}

func (f *fixture) assets(t *testing.T) []string {
	t.Helper()
	got, err := listDerivedAssets(f.fs, assetDir, ".png")
	require.NoError(t, err)
	return sets.Sorted(got)
}

func (f *fixture) touchAsset(t *testing.T, name string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(f.fs, filepath.Join(assetDir, name), []byte("old"), 0o644))
}

const twoFigureDoc = `# Wonton Soup: Proof Structures

![proof](/assets/wonton-soup/fig-proof.png)

Some prose, then ![tree](/assets/wonton-soup/fig-tree.png) and the proof again
![proof](/assets/wonton-soup/fig-proof.png).
`

func TestSyncPostconditionSetEquality(t *testing.T) {
	f := newFixture(t, twoFigureDoc, "fig-proof.pdf", "fig-tree.pdf", "fig-unused.pdf")
	f.touchAsset(t, "fig-old.png")

	res, err := f.sync.Sync(context.Background(), f.request(), f.prober)
	require.NoError(t, err)

	assert.Equal(t, []string{"fig-proof.png", "fig-tree.png"}, f.assets(t))
	assert.Equal(t, []string{"fig-proof.png", "fig-tree.png"}, res.Required)
	assert.Equal(t, []string{"fig-old.png"}, res.Removed)
	assert.Equal(t, []string{"fig-proof.png", "fig-tree.png"}, res.Generated)
	assert.Equal(t, "fake", res.Backend)
	assert.Equal(t, 1, f.prober.probes)
}

func TestSyncIsIdempotent(t *testing.T) {
	f := newFixture(t, twoFigureDoc, "fig-proof.pdf", "fig-tree.pdf")

	first, err := f.sync.Sync(context.Background(), f.request(), f.prober)
	require.NoError(t, err)
	afterFirst := f.assets(t)

	second, err := f.sync.Sync(context.Background(), f.request(), f.prober)
	require.NoError(t, err)

	assert.Equal(t, afterFirst, f.assets(t))
	assert.Equal(t, first.Required, second.Required)
	assert.Empty(t, second.Removed)
	assert.Equal(t, second.Required, second.Generated, "required assets are regenerated unconditionally")
}

func TestSyncCleanupOnlyTouchesStaleRasterFiles(t *testing.T) {
	f := newFixture(t, twoFigureDoc, "fig-proof.pdf", "fig-tree.pdf")
	f.touchAsset(t, "fig-a.png")
	f.touchAsset(t, "fig-b.png")
	f.touchAsset(t, "fig-proof.png")
	require.NoError(t, afero.WriteFile(f.fs, filepath.Join(assetDir, "README.txt"), []byte("keep"), 0o644))
	require.NoError(t, afero.WriteFile(f.fs, filepath.Join(assetDir, "nested", "fig-c.png"), []byte("keep"), 0o644))

	f.prober.onProbe = func() {
		assert.NotContains(t, f.assets(t), "fig-a.png", "cleanup must happen before probing")
	}

	res, err := f.sync.Sync(context.Background(), f.request(), f.prober)
	require.NoError(t, err)
	assert.Equal(t, []string{"fig-a.png", "fig-b.png"}, res.Removed)

	for _, keep := range []string{"README.txt", "nested/fig-c.png"} {
		ok, err := afero.Exists(f.fs, filepath.Join(assetDir, keep))
		require.NoError(t, err)
		assert.True(t, ok, keep)
	}
}

func TestSyncFailsFastOnEmptyExtraction(t *testing.T) {
	f := newFixture(t, "# Title\n\n![other](/assets/lenia-swarm/fig-1.png)\n", "fig-1.pdf")
	f.touchAsset(t, "fig-old.png")

	_, err := f.sync.Sync(context.Background(), f.request(), f.prober)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoReferencesFound)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryReferences))

	assert.Equal(t, []string{"fig-old.png"}, f.assets(t), "nothing is deleted when extraction is empty")
	assert.Zero(t, f.prober.probes)
}

func TestSyncMissingCanonicalFigureKeepsEarlierDeletions(t *testing.T) {
	f := newFixture(t, twoFigureDoc, "fig-proof.pdf")
	f.touchAsset(t, "fig-stale.png")

	res, err := f.sync.Sync(context.Background(), f.request(), f.prober)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingCanonicalFigure)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryNotFound))

	classified, ok := foundationerrors.AsClassified(err)
	require.True(t, ok)
	figure, _ := classified.Context().GetString("figure")
	assert.Equal(t, filepath.Join(sourceDir, "fig-tree.pdf"), figure)

	assert.Equal(t, []string{"fig-stale.png"}, res.Removed)
	assert.NotContains(t, f.assets(t), "fig-stale.png")
	assert.Equal(t, []string{"fig-proof.png"}, res.Generated)
}

func TestSyncMissingInputs(t *testing.T) {
	t.Run("document", func(t *testing.T) {
		f := newFixture(t, twoFigureDoc)
		req := f.request()
		req.DocumentPath = "/site/blog/missing/index.md"

		_, err := f.sync.Sync(context.Background(), req, f.prober)
		assert.ErrorIs(t, err, ErrMissingDocument)
		assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryNotFound))
	})

	t.Run("source dir", func(t *testing.T) {
		f := newFixture(t, twoFigureDoc)
		req := f.request()
		req.SourceDir = "/dossiers/missing"

		_, err := f.sync.Sync(context.Background(), req, f.prober)
		assert.ErrorIs(t, err, ErrMissingSourceDir)
		assert.Zero(t, f.prober.probes)
	})
}

func TestSyncNoConverterAfterCleanup(t *testing.T) {
	f := newFixture(t, twoFigureDoc, "fig-proof.pdf", "fig-tree.pdf")
	f.touchAsset(t, "fig-stale.png")
	f.prober.err = foundationerrors.ToolingError("no converter").WithCause(convert.ErrNoConverterAvailable).Build()

	_, err := f.sync.Sync(context.Background(), f.request(), f.prober)
	assert.ErrorIs(t, err, convert.ErrNoConverterAvailable)
	assert.Empty(t, f.assets(t))
}

func TestSyncPropagatesConversionFailure(t *testing.T) {
	f := newFixture(t, twoFigureDoc, "fig-proof.pdf", "fig-tree.pdf")
	boom := foundationerrors.ExternalToolError("conversion failed").WithCause(convert.ErrConversion).Build()
	f.backend.fail["fig-proof.png"] = boom

	res, err := f.sync.Sync(context.Background(), f.request(), f.prober)
	assert.ErrorIs(t, err, convert.ErrConversion)
	assert.Equal(t, []string{"fig-proof.png"}, f.backend.calls, "sync stops at the first failure")
	assert.Empty(t, res.Generated)
}

func TestSyncValidatesSources(t *testing.T) {
	f := newFixture(t, twoFigureDoc, "fig-proof.pdf", "fig-tree.pdf")
	req := f.request()
	req.ValidateSources = true

	_, err := f.sync.Sync(context.Background(), req, f.prober)
	require.Error(t, err)
	assert.ErrorIs(t, err, convert.ErrConversion)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryExternalTool))
	assert.Empty(t, f.backend.calls)
}

func TestSyncCanceled(t *testing.T) {
	f := newFixture(t, twoFigureDoc, "fig-proof.pdf", "fig-tree.pdf")
	ctx, cancel := context.WithCancel(context.Background())
	f.prober.onProbe = cancel

	_, err := f.sync.Sync(ctx, f.request(), f.prober)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, f.backend.calls)
}

func TestSyncRecordsMetrics(t *testing.T) {
	f := newFixture(t, twoFigureDoc, "fig-proof.pdf", "fig-tree.pdf")
	f.touchAsset(t, "fig-stale.png")
	rec := &recordingRecorder{}
	s := NewSynchronizer(f.fs, WithRecorder(rec))

	_, err := s.Sync(context.Background(), f.request(), f.prober)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.removed)
	assert.Equal(t, 2, rec.generated)
}
