// Package metrics provides build metrics for postbuilder.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics cost nothing unless activated:
//
//	recorder := metrics.NewPrometheusRecorder(prometheus.NewRegistry())
//	service := build.NewBuildService().WithRecorder(recorder)
//	...
//	_ = recorder.WriteTextfile("/var/lib/node_exporter/postbuilder.prom")
//
// postbuilder is a one-shot process, so metrics are exported as a
// node_exporter textfile after the build instead of being served over HTTP.
package metrics
