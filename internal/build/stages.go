package build

import (
	"context"
	"errors"
	"time"

	"git.home.luguber.info/inful/postbuilder/internal/logfields"
	"git.home.luguber.info/inful/postbuilder/internal/metrics"
	"git.home.luguber.info/inful/postbuilder/internal/observability"
)

// StageName identifies a pipeline stage in logs and metrics.
type StageName string

const (
	StageSyncAssets    StageName = "sync_assets"
	StageDiscoverPosts StageName = "discover_posts"
	StageRenderPosts   StageName = "render_posts"
	StageWriteIndex    StageName = "write_index"
)

// stage is one step of the pipeline operating on shared build state.
type stage struct {
	name StageName
	run  func(ctx context.Context, st *buildState) error
}

// runStages executes stages in order and stops at the first error.
func (s *DefaultBuildService) runStages(ctx context.Context, st *buildState, stages []stage) error {
	for _, stg := range stages {
		name := string(stg.name)
		if err := ctx.Err(); err != nil {
			s.recorder.IncStageResult(name, metrics.ResultCanceled)
			st.result.FailedStage = stg.name
			return err
		}

		stageCtx := observability.WithStage(ctx, name)
		start := time.Now()
		err := stg.run(stageCtx, st)
		elapsed := time.Since(start)
		s.recorder.ObserveStageDuration(name, elapsed)

		if err != nil {
			st.result.FailedStage = stg.name
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				s.recorder.IncStageResult(name, metrics.ResultCanceled)
			} else {
				s.recorder.IncStageResult(name, metrics.ResultFatal)
			}
			observability.ErrorContext(stageCtx, "Stage failed", logfields.Duration(elapsed), logfields.Error(err))
			return err
		}
		s.recorder.IncStageResult(name, metrics.ResultSuccess)
		observability.DebugContext(stageCtx, "Stage complete", logfields.Duration(elapsed))
	}
	return nil
}
