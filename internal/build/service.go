package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/postbuilder/internal/assets"
	"git.home.luguber.info/inful/postbuilder/internal/config"
	"git.home.luguber.info/inful/postbuilder/internal/post"
)

// BuildService is the canonical interface for executing blog builds.
type BuildService interface {
	// Run executes the pipeline: sync assets → discover posts → render posts → write index.
	// Returns a BuildResult with detailed outcomes and the first error encountered.
	Run(ctx context.Context, req BuildRequest) (*BuildResult, error)
}

// BuildRequest contains all inputs required to execute a build.
type BuildRequest struct {
	// Config is the loaded configuration for this build.
	Config *config.Config

	// Options selects which parts of the pipeline run.
	Options BuildOptions
}

// BuildOptions provides optional configuration for build behavior.
type BuildOptions struct {
	// SkipAssets disables the sync_assets stage.
	SkipAssets bool

	// SkipRender disables discovery, rendering and the index page.
	SkipRender bool

	// Posts restricts rendering to these sources instead of discovering
	// every post. The index page is not rewritten for a partial render.
	Posts []string
}

// BuildResult contains the outcome of a build execution.
type BuildResult struct {
	// Status indicates overall build outcome.
	Status BuildStatus

	// BuildID correlates the log lines of this build.
	BuildID string

	// Assets holds one result per synchronized figure collection.
	Assets []*assets.SyncResult

	// Posts holds every page written, in discovery order.
	Posts []*post.Rendered

	// IndexPath is the index page written, if any.
	IndexPath string

	// FailedStage names the stage that stopped the build.
	FailedStage StageName

	// Duration is the total build execution time.
	Duration time.Duration

	// StartTime is when the build started.
	StartTime time.Time

	// EndTime is when the build completed.
	EndTime time.Time
}

// BuildStatus represents the outcome of a build execution.
type BuildStatus string

const (
	// BuildStatusSuccess indicates the build completed successfully.
	BuildStatusSuccess BuildStatus = "success"

	// BuildStatusFailed indicates the build encountered an error.
	BuildStatusFailed BuildStatus = "failed"

	// BuildStatusCancelled indicates the build was cancelled.
	BuildStatusCancelled BuildStatus = "cancelled"
)

// IsTerminal returns true if the status represents a final state.
func (s BuildStatus) IsTerminal() bool {
	return s == BuildStatusSuccess || s == BuildStatusFailed || s == BuildStatusCancelled
}

// IsSuccess returns true if the build completed successfully.
func (s BuildStatus) IsSuccess() bool {
	return s == BuildStatusSuccess
}
