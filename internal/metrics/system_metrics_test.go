package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemMetricsAreExposed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	Enable(false, true)
	defer Enable(false, false)
	StartSystemMetrics(ctx, time.Hour)
	SetStoreEngine("memory", "wardbook")

	mm := GetInstance()
	assert.Equal(t, float64(1), testutil.ToFloat64(mm.storeEngine.WithLabelValues("memory", "wardbook")))
	if mm.proc != nil {
		assert.Greater(t, testutil.ToFloat64(mm.processRSS), float64(0))
		assert.Greater(t, testutil.ToFloat64(mm.processStartTime), float64(0))
	}

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "wardbook_store_engine_info")
	assert.Contains(t, body, "wardbook_host_memory_available_bytes")
	assert.Contains(t, body, "go_goroutines")
}
