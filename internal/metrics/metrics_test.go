package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/workspace-engine/core/internal/metrics"
)

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	reg := metrics.New()
	reg.MutationQueueDepth.Set(3)
	reg.MediatorSubscriptions.Set(2)
	reg.SyncLagSeconds.WithLabelValues("nodes").Set(1.5)
	reg.SocketState.Set(2)

	srv := httptest.NewServer(reg.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)

	require.Contains(t, body, "workspace_engine_mutation_queue_depth 3")
	require.Contains(t, body, "workspace_engine_mediator_subscriptions 2")
	require.Contains(t, body, `workspace_engine_sync_lag_seconds{stream="nodes"} 1.5`)
	require.Contains(t, body, "workspace_engine_socket_state 2")
}

func TestNewRegistersEachMetricOnce(t *testing.T) {
	require.NotPanics(t, func() {
		metrics.New()
	})
}
