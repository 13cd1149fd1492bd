package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tikusl4ju/myinvoice-sync/internal/infrastructure/metrics"
)

func TestRecorder_CuentaEventos(t *testing.T) {
	r := metrics.NewRecorder()

	r.SubmissionFinished("invoice", "submitted")
	r.SubmissionFinished("invoice", "submitted")
	r.SubmissionFinished("credit_note", "retry")
	r.TransportCall("submit", "ok", 120*time.Millisecond)
	r.PassFinished("sync", 5, time.Second)
	r.PassSkipped("retry", "lock_held")

	n, err := testutil.GatherAndCount(r.Registry(), "myinvois_submissions_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "dos combinaciones de etiquetas")

	n, err = testutil.GatherAndCount(r.Registry(), "myinvois_scheduler_passes_skipped_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecorder_HandlerExponeSeries(t *testing.T) {
	r := metrics.NewRecorder()
	r.PassFinished("queue", 2, 50*time.Millisecond)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `myinvois_scheduler_rows_total{pass="queue"} 2`)
	assert.Contains(t, string(body), "go_goroutines", "incluye métricas del runtime")
}
