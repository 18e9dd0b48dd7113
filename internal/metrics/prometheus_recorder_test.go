package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveTaskDuration("style-css", 150*time.Millisecond)
	pr.IncTaskResult("style-css", ResultPartial)
	pr.AddFileErrors("style-css", 2)
	pr.ObservePhaseDuration("build", "generate", 500*time.Millisecond)
	pr.IncPipelineOutcome("build", "success")
	pr.IncWatchTrigger("html")
	pr.IncReloadBroadcast()
	pr.SetReloadClients(3)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["sitepipe_task_duration_seconds"])
	assert.True(t, names["sitepipe_file_errors_total"])
	assert.True(t, names["sitepipe_livereload_clients"])
}

func TestPrometheusRecorder_NilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.IncReloadBroadcast()
	pr.ObserveTaskDuration("x", time.Second)
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncPipelineOutcome("dev", "success")

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "sitepipe_pipeline_outcomes_total"))
}
