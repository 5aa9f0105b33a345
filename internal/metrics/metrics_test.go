package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/trust-aht/internal/agent"
)

func TestObserveCountsUpdatesAndSyncs(t *testing.T) {
	r := New()
	r.Observe(agent.Losses{Imitation: 0.7, TD: 0.2, Conservative: 1.1, Total: 2.0, Update: 1}, time.Millisecond)
	r.Observe(agent.Losses{Imitation: 0.6, TD: 0.1, Conservative: 1.0, Total: 1.7, Update: 2, Synced: true}, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.updates))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.syncs))
	assert.Equal(t, 0.6, testutil.ToFloat64(r.loss.WithLabelValues(TermImitation)))
	assert.Equal(t, 1.7, testutil.ToFloat64(r.loss.WithLabelValues(TermTotal)))
	assert.Equal(t, 1, testutil.CollectAndCount(r.duration))
}

func TestRejected(t *testing.T) {
	r := New()
	r.Rejected()
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rejected))
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.Observe(agent.Losses{Total: 1}, time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	for _, name := range []string{"aht_updates_total 1", "aht_target_syncs_total 0", `aht_loss{term="total"} 1`, "aht_train_step_seconds_count 1"} {
		assert.True(t, strings.Contains(body, name), "missing %q", name)
	}
}

func TestRecordersAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.Observe(agent.Losses{}, 0)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.updates))
}
