package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveSession(t *testing.T) {
	m := New()

	m.ObserveSession(OutcomeCompleted, 15*time.Second)
	m.ObserveSession(OutcomeNoInterface, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sessions.WithLabelValues(OutcomeCompleted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sessions.WithLabelValues(OutcomeNoInterface)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SessionDuration))
}

func TestObserveSession_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.ObserveSession(OutcomeCompleted, time.Second) })
}

func TestHandler(t *testing.T) {
	m := New()
	m.FramesCaptured.Add(3)
	m.RecordsFlagged.WithLabelValues("syn_flood").Add(151)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "lippyguard_frames_captured_total 3")
	assert.Contains(t, string(body), `lippyguard_records_flagged_total{detector="syn_flood"} 151`)
}
