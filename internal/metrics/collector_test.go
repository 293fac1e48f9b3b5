package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("gcpassist", nil)

	c.RecordTurn(250 * time.Millisecond)
	c.RecordTurn(100 * time.Millisecond)
	c.RecordInterruption()
	c.RecordContextUpdate()
	c.RecordContextUpdate()
	c.RecordContextUpdate()
	c.RecordPipelineError()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.turnsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.interruptions))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.contextUpdates))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pipelineErrors))
}

func TestCollector_LabeledCounters(t *testing.T) {
	c := NewCollector("gcpassist", nil)

	c.RecordReward("redis")
	c.RecordReward("redis")
	c.RecordReward("memory")
	c.RecordRetrieval("ok", 2)
	c.RecordRetrieval("error", 0)
	c.RecordHTTPRequest("PUT", "/v1/context", "204")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.rewardsRecorded.WithLabelValues("redis")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rewardsRecorded.WithLabelValues("memory")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.retrievalTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.retrievalTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("PUT", "/v1/context", "204")))
}

func TestCollector_IndependentRegistries(t *testing.T) {
	// Two collectors must not collide on registration.
	a := NewCollector("gcpassist", nil)
	b := NewCollector("gcpassist", nil)

	a.RecordTurn(time.Second)
	require.Equal(t, 1.0, testutil.ToFloat64(a.turnsTotal))
	require.Equal(t, 0.0, testutil.ToFloat64(b.turnsTotal))
}
