package cluster

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const cAir = 2.992e8 // matches spec.md's ~speed of radio propagation in air

type testReceiver struct {
	id   int
	dist map[int]float64
}

func (r *testReceiver) ID() int { return r.id }
func (r *testReceiver) DistanceTo(other int) float64 {
	if d, ok := r.dist[other]; ok {
		return d
	}
	return 500e3 // default: far apart, well outside any plausible cluster
}

// ring builds a set of receivers all pairwise `d` metres apart (a
// reasonable approximation for "distant" test fixtures where only the
// the light-time bound matters, not real geometry).
func ring(n int, d float64) []*testReceiver {
	rs := make([]*testReceiver, n)
	for i := range rs {
		rs[i] = &testReceiver{id: i, dist: map[int]float64{}}
	}
	for i := range rs {
		for j := range rs {
			if i != j {
				rs[i].dist[j] = d
			}
		}
	}
	return rs
}

func component(rs []*testReceiver, ts []float64, variance float64) Component {
	c := make(Component, len(rs))
	for i, r := range rs {
		c[r] = ComponentEntry{Variance: variance, Samples: []TimestampPair{{Ts: ts[i], WallTs: ts[i]}}}
	}
	return c
}

func TestCluster_AcceptsConsistentQuartet(t *testing.T) {
	rs := ring(4, 50e3) // 50km apart, light time ~167us
	comp := component(rs, []float64{0, 50e-6, 100e-6, 150e-6}, 1e-12)

	clusters := Cluster(comp, 4, cAir)
	require.Len(t, clusters, 1)
	require.Equal(t, 4, clusters[0].Distinct)
	require.Len(t, clusters[0].Rows, 4)
	// rows are ascending by timestamp
	for i := 1; i < len(clusters[0].Rows); i++ {
		require.LessOrEqual(t, clusters[0].Rows[i-1].Ts, clusters[0].Rows[i].Ts)
	}
}

func TestCluster_RejectsBelowThreshold(t *testing.T) {
	rs := ring(3, 50e3)
	comp := component(rs, []float64{0, 50e-6, 100e-6}, 1e-12)

	clusters := Cluster(comp, 4, cAir)
	require.Empty(t, clusters)
}

func TestCluster_TwoMillisecondSplitNeverClusters(t *testing.T) {
	// boundary scenario 4: two observations just over 2ms apart in
	// normalized time must land in different rough groups and never be
	// clustered together, even if otherwise consistent.
	rs := ring(8, 10e3)
	ts := []float64{0, 1e-6, 2e-6, 3e-6, 2.01e-3, 2.011e-3, 2.012e-3, 2.013e-3}
	comp := component(rs, ts, 1e-12)

	clusters := Cluster(comp, 4, cAir)
	require.Len(t, clusters, 2)
	for _, c := range clusters {
		for _, row := range c.Rows {
			require.True(t, row.Ts < 2e-3 || row.Ts >= 2.01e-3)
		}
		// cluster wall width <= 2ms (invariant 5)
		if len(c.Rows) > 1 {
			span := c.Rows[len(c.Rows)-1].Ts - c.Rows[0].Ts
			require.LessOrEqual(t, span, clusterWidth+1e-9)
		}
	}
}

func TestCluster_CoLocatedReceiversCountOnce(t *testing.T) {
	// boundary scenario 3: 4 receivers, two within 500m of each other.
	rs := ring(4, 50e3)
	// make receivers 0 and 1 co-located (500m apart)
	rs[0].dist[1] = 500
	rs[1].dist[0] = 500

	comp := component(rs, []float64{0, 1e-6, 100e-6, 150e-6}, 1e-12)

	clusters := Cluster(comp, 3, cAir)
	require.Len(t, clusters, 1)
	require.Equal(t, 3, clusters[0].Distinct)
	require.Len(t, clusters[0].Rows, 4)
}

func TestCluster_RejectsInconsistentTiming(t *testing.T) {
	// Two receivers 10km apart (light time ~33us) but timestamps 1.5ms
	// apart are not physically consistent and must not cluster together.
	rs := ring(4, 10e3)
	comp := component(rs, []float64{0, 1.5e-3, 2e-6, 3e-6}, 1e-12)

	clusters := Cluster(comp, 4, cAir)
	require.Empty(t, clusters)
}

func TestCluster_PurityNoMutation(t *testing.T) {
	rs := ring(4, 50e3)
	comp := component(rs, []float64{0, 50e-6, 100e-6, 150e-6}, 1e-12)

	before := make(map[*testReceiver]float64, len(rs))
	for r, e := range comp {
		before[r.(*testReceiver)] = e.Samples[0].Ts
	}

	_ = Cluster(comp, 4, cAir)

	for r, e := range comp {
		require.Equal(t, before[r.(*testReceiver)], e.Samples[0].Ts)
	}
}
