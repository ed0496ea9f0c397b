// Package assets keeps a derived PNG directory in sync with the figures a
// document references.
package assets

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"git.home.luguber.info/inful/postbuilder/internal/convert"
	"git.home.luguber.info/inful/postbuilder/internal/figures"
	foundationerrors "git.home.luguber.info/inful/postbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/postbuilder/internal/logfields"
	"git.home.luguber.info/inful/postbuilder/internal/metrics"
	"git.home.luguber.info/inful/postbuilder/internal/observability"
	"git.home.luguber.info/inful/postbuilder/internal/reference"
	"git.home.luguber.info/inful/postbuilder/internal/util/sets"
)

// SyncRequest names the document, canonical figures and derived directory of
// one figure collection.
type SyncRequest struct {
	Collection   string
	DocumentPath string
	SourceDir    string
	AssetDir     string
	// Pattern selects references under the collection's namespace; its
	// extension is the raster extension of derived assets.
	Pattern   *reference.Pattern
	SourceExt string
	// ValidateSources parses each canonical PDF before converting it.
	ValidateSources bool
}

// SyncResult reports what a synchronization did.
type SyncResult struct {
	Collection string
	Required   []string
	Removed    []string
	Generated  []string
	Backend    string
	Duration   time.Duration
}

// Synchronizer reconciles derived assets against document references.
type Synchronizer struct {
	fs       afero.Fs
	recorder metrics.Recorder
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Synchronizer) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewSynchronizer creates a Synchronizer operating on fs.
func NewSynchronizer(fs afero.Fs, opts ...Option) *Synchronizer {
	s := &Synchronizer{fs: fs, recorder: metrics.NoopRecorder{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync makes AssetDir contain exactly the assets the document references.
//
// Stale assets are deleted before the converter is probed; the probe runs
// once and every required asset is then regenerated from its canonical
// source. The first failure aborts the sync without undoing deletions.
func (s *Synchronizer) Sync(ctx context.Context, req SyncRequest, prober convert.Prober) (*SyncResult, error) {
	start := time.Now()
	if req.SourceExt == "" {
		req.SourceExt = ".pdf"
	}
	result := &SyncResult{Collection: req.Collection}

	if !exists(s.fs, req.DocumentPath) {
		return nil, foundationerrors.NotFoundError("document not found").
			WithCause(ErrMissingDocument).
			WithContext("path", req.DocumentPath).
			Build()
	}
	if !dirExists(s.fs, req.SourceDir) {
		return nil, foundationerrors.NotFoundError("canonical source directory not found").
			WithCause(ErrMissingSourceDir).
			WithContext("path", req.SourceDir).
			Build()
	}

	text, err := afero.ReadFile(s.fs, req.DocumentPath)
	if err != nil {
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "cannot read document").
			WithContext("path", req.DocumentPath).
			Build()
	}

	required := req.Pattern.Extract(string(text))
	if required.Len() == 0 {
		return nil, foundationerrors.ReferencesError("no asset references found").
			WithCause(ErrNoReferencesFound).
			WithContext("path", req.DocumentPath).
			WithContext("namespace", req.Pattern.Prefix()).
			Build()
	}
	result.Required = sets.Sorted(required)

	if err := s.fs.MkdirAll(req.AssetDir, 0o755); err != nil {
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "cannot create asset directory").
			WithContext("path", req.AssetDir).
			Build()
	}

	removed, err := s.removeStale(ctx, req, required)
	result.Removed = removed
	s.recorder.IncAssetsRemoved(req.Collection, len(removed))
	if err != nil {
		return result, err
	}

	backend, err := prober.Probe()
	if err != nil {
		return result, err
	}
	result.Backend = backend.Name()

	for _, name := range result.Required {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.regenerate(ctx, req, backend, name); err != nil {
			s.recorder.IncAssetsGenerated(req.Collection, backend.Name(), len(result.Generated))
			return result, err
		}
		result.Generated = append(result.Generated, name)
	}
	s.recorder.IncAssetsGenerated(req.Collection, backend.Name(), len(result.Generated))

	result.Duration = time.Since(start)
	observability.InfoContext(ctx, "Assets synchronized",
		logfields.Collection(req.Collection),
		logfields.Backend(result.Backend),
		slog.Int("required", len(result.Required)),
		slog.Int("removed", len(result.Removed)),
		logfields.Duration(result.Duration))
	return result, nil
}

// removeStale deletes every derived asset that is no longer referenced.
func (s *Synchronizer) removeStale(ctx context.Context, req SyncRequest, required sets.Set[string]) ([]string, error) {
	existing, err := listDerivedAssets(s.fs, req.AssetDir, req.Pattern.Ext())
	if err != nil {
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "cannot list asset directory").
			WithContext("path", req.AssetDir).
			Build()
	}

	var removed []string
	for _, name := range sets.Sorted(existing.Difference(required)) {
		path := filepath.Join(req.AssetDir, name)
		if err := s.fs.Remove(path); err != nil {
			return removed, foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "cannot remove stale asset").
				WithContext("path", path).
				Build()
		}
		removed = append(removed, name)
		observability.InfoContext(ctx, "Removed stale asset",
			logfields.Collection(req.Collection),
			logfields.Asset(name))
	}
	return removed, nil
}

// regenerate converts the canonical source of one required asset.
func (s *Synchronizer) regenerate(ctx context.Context, req SyncRequest, backend convert.Backend, name string) error {
	src := canonicalPath(req.SourceDir, name, req.SourceExt)
	if !exists(s.fs, src) {
		return foundationerrors.NotFoundError("canonical figure not found").
			WithCause(ErrMissingCanonicalFigure).
			WithContext("asset", name).
			WithContext("figure", src).
			Build()
	}

	if req.ValidateSources {
		info, err := figures.Inspect(s.fs, src)
		if err != nil {
			return foundationerrors.ExternalToolError("canonical figure is not a readable PDF").
				WithCause(fmt.Errorf("%w: %w", convert.ErrConversion, err)).
				WithContext("figure", src).
				Build()
		}
		if info.MultiPage() {
			observability.WarnContext(ctx, "Canonical figure has several pages; only the first is rasterized",
				logfields.Figure(src),
				logfields.Count(info.Pages))
		}
	}

	start := time.Now()
	dst := filepath.Join(req.AssetDir, name)
	if err := backend.Convert(ctx, src, dst); err != nil {
		return err
	}
	s.recorder.ObserveConversionDuration(backend.Name(), time.Since(start))
	observability.DebugContext(ctx, "Regenerated asset",
		logfields.Asset(name),
		logfields.Backend(backend.Name()),
		logfields.Duration(time.Since(start)))
	return nil
}
