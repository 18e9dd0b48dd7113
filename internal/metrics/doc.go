// Package metrics provides the observability hooks for sitepipe runs.
//
// Components receive a Recorder through their constructors. NoopRecorder is the
// default so callers never nil-check; PrometheusRecorder is swapped in when
// metrics.enabled is set, and HTTPHandler exposes it on the live reload server.
//
//	reg := prometheus.NewRegistry()
//	rec := metrics.NewPrometheusRecorder(reg)
//	orch := pipeline.NewOrchestrator(graph, pipeline.WithRecorder(rec))
package metrics
