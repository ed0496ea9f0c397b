package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once               sync.Once
	registry           *prom.Registry
	stageDuration      *prom.HistogramVec
	buildDuration      prom.Histogram
	stageResults       *prom.CounterVec
	buildOutcome       *prom.CounterVec
	assetsRemoved      *prom.CounterVec
	assetsGenerated    *prom.CounterVec
	conversionDuration *prom.HistogramVec
	postsRendered      prom.Counter
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "postbuilder",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.buildDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "postbuilder",
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		})
		pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "postbuilder",
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"})
		pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "postbuilder",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"})
		pr.assetsRemoved = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "postbuilder",
			Name:      "assets_removed_total",
			Help:      "Stale derived assets deleted during synchronization",
		}, []string{"collection"})
		pr.assetsGenerated = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "postbuilder",
			Name:      "assets_generated_total",
			Help:      "Derived assets regenerated from canonical figures",
		}, []string{"collection", "backend"})
		pr.conversionDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "postbuilder",
			Name:      "conversion_duration_seconds",
			Help:      "Duration of single figure conversions",
			Buckets:   prom.DefBuckets,
		}, []string{"backend"})
		pr.postsRendered = prom.NewCounter(prom.CounterOpts{
			Namespace: "postbuilder",
			Name:      "posts_rendered_total",
			Help:      "Posts rendered to HTML",
		})
		reg.MustRegister(pr.stageDuration, pr.buildDuration, pr.stageResults, pr.buildOutcome,
			pr.assetsRemoved, pr.assetsGenerated, pr.conversionDuration, pr.postsRendered)
	})
	return pr
}

// WriteTextfile writes every registered metric to path in the text exposition
// format read by node_exporter's textfile collector. The write is atomic.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	return prom.WriteToTextfile(path, p.registry)
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome BuildOutcomeLabel) {
	if p == nil || p.buildOutcome == nil {
		return
	}
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncAssetsRemoved(collection string, n int) {
	if p == nil || p.assetsRemoved == nil || n <= 0 {
		return
	}
	p.assetsRemoved.WithLabelValues(collection).Add(float64(n))
}

func (p *PrometheusRecorder) IncAssetsGenerated(collection, backend string, n int) {
	if p == nil || p.assetsGenerated == nil || n <= 0 {
		return
	}
	p.assetsGenerated.WithLabelValues(collection, backend).Add(float64(n))
}

func (p *PrometheusRecorder) ObserveConversionDuration(backend string, d time.Duration) {
	if p == nil || p.conversionDuration == nil {
		return
	}
	p.conversionDuration.WithLabelValues(backend).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPostsRendered(n int) {
	if p == nil || p.postsRendered == nil || n <= 0 {
		return
	}
	p.postsRendered.Add(float64(n))
}
