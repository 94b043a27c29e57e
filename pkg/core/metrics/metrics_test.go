package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollector_DefaultNamespace(t *testing.T) {
	c := NewCollector("")
	c.RecordYearGrown()

	families, err := c.Registry().Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "vdyp_forward_years_grown_total")
}

func TestCollector_Counts(t *testing.T) {
	c := NewCollector("test")

	c.RecordPolygon(OutcomeProjected, 10*time.Millisecond)
	c.RecordPolygon(OutcomeProjected, 20*time.Millisecond)
	c.RecordPolygon(OutcomeFailed, time.Millisecond)
	for range 5 {
		c.RecordYearGrown()
	}
	c.RecordStepError("GROW_2_LAYER_BADELTA")
	c.RecordDQLimitApplied()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.polygons.WithLabelValues(OutcomeProjected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.polygons.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.yearsGrown))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stepErrors.WithLabelValues("GROW_2_LAYER_BADELTA")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.dqLimits))
	assert.Equal(t, 1, testutil.CollectAndCount(c.polygonLatency))
}

func TestCollectorsAreIndependent(t *testing.T) {
	a, b := NewCollector("test"), NewCollector("test")
	a.RecordYearGrown()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.yearsGrown))
}

func TestNoOpCollector(t *testing.T) {
	var c NoOpCollector
	c.RecordPolygon(OutcomeFailed, time.Second)
	c.RecordYearGrown()
	c.RecordStepError("x")
	c.RecordDQLimitApplied()
}
