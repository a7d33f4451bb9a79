package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAreRegistered(t *testing.T) {
	before := testutil.ToFloat64(Rounds.WithLabelValues("finalized"))
	Rounds.WithLabelValues("finalized").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Rounds.WithLabelValues("finalized")))

	families, err := Registry.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["aggregation_rounds_total"])
	assert.True(t, names["go_goroutines"])
}
