package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTransition(t *testing.T) {
	labels := prometheus.Labels{"server": "metrics-a", "from": "stopped", "to": "starting"}
	initial := testutil.ToFloat64(stateTransitions.With(labels))

	RecordTransition("metrics-a", "stopped", "starting")

	assert.Equal(t, initial+1, testutil.ToFloat64(stateTransitions.With(labels)))
	assert.Equal(t, 1.0, testutil.ToFloat64(serverState.WithLabelValues("metrics-a", "starting")))
	assert.Equal(t, 0.0, testutil.ToFloat64(serverState.WithLabelValues("metrics-a", "stopped")))

	RecordTransition("metrics-a", "starting", "started")
	assert.Equal(t, 0.0, testutil.ToFloat64(serverState.WithLabelValues("metrics-a", "starting")))
	assert.Equal(t, 1.0, testutil.ToFloat64(serverState.WithLabelValues("metrics-a", "started")))
}

func TestRecordPoll(t *testing.T) {
	initial := testutil.ToFloat64(pollOutcomes.WithLabelValues("metrics-b", "reached", "timed-out"))
	RecordPoll("metrics-b", "reached", "timed-out", 3*time.Second)
	assert.Equal(t, initial+1, testutil.ToFloat64(pollOutcomes.WithLabelValues("metrics-b", "reached", "timed-out")))
}

func TestRecordProcessExitAndPublish(t *testing.T) {
	exits := testutil.ToFloat64(processExits.WithLabelValues("metrics-c"))
	RecordProcessExit("metrics-c")
	RecordProcessExit("metrics-c")
	assert.Equal(t, exits+2, testutil.ToFloat64(processExits.WithLabelValues("metrics-c")))

	pubs := testutil.ToFloat64(publishOperations.WithLabelValues("metrics-c", "add", "ok"))
	RecordPublish("metrics-c", "add", "ok")
	assert.Equal(t, pubs+1, testutil.ToFloat64(publishOperations.WithLabelValues("metrics-c", "add", "ok")))
}

func TestHandler(t *testing.T) {
	RecordProcessExit("metrics-d")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `overseer_process_exits_total{server="metrics-d"}`)
}
