package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveLoad(".html", 15*time.Millisecond, ResultSuccess)
	pr.ObserveApply(".html", 3, 2*time.Millisecond, ResultSuccess)
	pr.ObserveApply(".html", 2, time.Millisecond, ResultFailed)
	pr.IncOperation("apply", ResultSuccess)
	pr.IncOperation("apply", ResultSuccess)

	assert.InDelta(t, 3, counterValue(t, pr.alterations.WithLabelValues(".html")), 0)
	assert.InDelta(t, 2, counterValue(t, pr.operations.WithLabelValues("apply", "success")), 0)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, mfs, 4)
}

func counterValue(t *testing.T, c prom.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestWriteTextfile(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncOperation("text", ResultSuccess)

	path := filepath.Join(t.TempDir(), "exposetext.prom")
	require.NoError(t, WriteTextfile(path, reg))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `exposetext_operations_total{operation="text",result="success"} 1`)
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncOperation("watch", ResultFailed)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "exposetext_operations_total")
}

func TestResultOf(t *testing.T) {
	assert.Equal(t, ResultSuccess, ResultOf(nil))
	assert.Equal(t, ResultFailed, ResultOf(errors.New("boom")))
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveLoad(".txt", time.Second, ResultSuccess)
	r.ObserveApply(".txt", 1, time.Second, ResultSuccess)
	r.IncOperation("text", ResultSuccess)
}
