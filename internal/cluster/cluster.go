// Package cluster implements the MLAT cluster engine: a pure function that
// takes a clock-normalized component (a set of receivers whose timestamps
// are directly comparable) and splits it into self-consistent clusters of
// observations that are likely copies of the same transmission.
//
// Nothing here mutates its input and nothing here touches a clock, a file,
// or a lock — it is safe to run on a worker goroutine and call from
// multiple goroutines concurrently as long as each call owns its own
// Component.
package cluster

import "sort"

// roughGroupGap is the inter-item spacing above which the rough grouping
// pass starts a new rough group (spec.md §4.1 step 3).
const roughGroupGap = 2e-3 // 2ms

// clusterWidth is the cap on seed-to-candidate timestamp spread within a
// single cluster (spec.md §4.1 step 4).
const clusterWidth = 2e-3 // 2ms

// coLocatedThreshold: receivers closer than this only count once toward
// distinctness (spec.md §4.1 step 4, "Distinctness").
const coLocatedThreshold = 1000.0 // metres

// Slack added on top of the pure light-speed bound to absorb geometry and
// clock-normalization error (spec.md §4.1 "Range/time consistency").
const (
	slackFraction = 1.05
	slackMetres   = 1000.0
)

// Receiver is the minimal receiver identity the cluster engine needs:
// a stable id used both as a map/slice key and to look up the
// precomputed pairwise distance table (spec.md §9 "Cyclic references").
type Receiver interface {
	// DistanceTo returns the precomputed great-circle/ECEF distance in
	// metres to the receiver with the given id.
	DistanceTo(id int) float64
	// ID returns this receiver's stable id within the arena.
	ID() int
}

// Component maps a receiver to its clock variance and the normalized
// samples observed by it, within a single clock-linearised domain (the
// output of the external clock tracker).
type Component map[Receiver]ComponentEntry

// ComponentEntry is the per-receiver payload of a Component.
type ComponentEntry struct {
	Variance float64
	Samples  []TimestampPair
}

// TimestampPair is one normalized-timestamp/wall-clock-time observation.
type TimestampPair struct {
	Ts     float64
	WallTs float64
}

// Row is one receiver's contribution to an accepted Cluster.
type Row struct {
	Receiver Receiver
	Ts       float64
	Variance float64
}

// Cluster is a self-consistent set of observations of (probably) the same
// transmission: every pairwise delta passes the range/time consistency
// test, no receiver appears twice, and Distinct distinct receivers were
// found (co-located receivers under 1km apart count once).
type Cluster struct {
	Distinct    int
	FirstWallTs float64
	Rows        []Row
}

// cAir is passed in by the caller (spec.md §6 configuration constant
// C_AIR) rather than hardcoded, so callers can tune for atmosphere without
// recompiling this package.

// Cluster runs the §4.1 algorithm over a Component and returns every
// cluster with at least minReceivers distinct receivers, in the order they
// were extracted (earliest rough-group first, within each rough group
// latest-seed-first).
func Cluster(component Component, minReceivers int, cAir float64) []Cluster {
	flat := flatten(component)
	if len(flat) == 0 {
		return nil
	}

	sort.Slice(flat, func(i, j int) bool { return flat[i].ts < flat[j].ts })

	var clusters []Cluster
	for _, group := range roughGroups(flat) {
		clusters = append(clusters, extractClusters(group, minReceivers, cAir)...)
	}
	return clusters
}

type flatSample struct {
	receiver Receiver
	ts       float64
	variance float64
	wallTs   float64
}

func flatten(component Component) []flatSample {
	var flat []flatSample
	for receiver, entry := range component {
		for _, pair := range entry.Samples {
			flat = append(flat, flatSample{
				receiver: receiver,
				ts:       pair.Ts,
				variance: entry.Variance,
				wallTs:   pair.WallTs,
			})
		}
	}
	return flat
}

// roughGroups walks the (already sorted-by-ts) flat sample list and splits
// it wherever the gap to the previous sample exceeds roughGroupGap. A
// rough group may itself span much more than roughGroupGap overall; only
// consecutive gaps are tested.
func roughGroups(flat []flatSample) [][]flatSample {
	groups := [][]flatSample{{flat[0]}}
	for _, s := range flat[1:] {
		cur := groups[len(groups)-1]
		if s.ts-cur[len(cur)-1].ts > roughGroupGap {
			groups = append(groups, []flatSample{s})
		} else {
			groups[len(groups)-1] = append(cur, s)
		}
	}
	return groups
}

// extractClusters repeatedly pops the latest-timestamp remaining item as a
// new cluster seed and walks backwards in time, accepting candidates that
// pass the pairwise range/time/distinctness tests, until the rough group
// is exhausted or too small to form another cluster.
func extractClusters(group []flatSample, minReceivers int, cAir float64) []Cluster {
	var clusters []Cluster

	for len(group) >= minReceivers {
		n := len(group)
		seed := group[n-1]
		group = group[:n-1]

		accepted := []flatSample{seed}
		firstWallTs := seed.wallTs
		distinct := 1
		lastTs := seed.ts

		// remaining keeps its original ascending-timestamp order; we only
		// mark which indices get pulled into the cluster, then rebuild
		// group from the survivors so the next pop still sees an
		// ascending-by-timestamp slice.
		remaining := group
		pulled := make([]bool, len(remaining))
		stop := -1 // index (inclusive, from the end) where scanning stopped

		for i := len(remaining) - 1; i >= 0; i-- {
			cand := remaining[i]
			if lastTs-cand.ts > clusterWidth {
				// Can't possibly be part of this cluster. Note this is a
				// different test than the rough-grouping gap above: it
				// compares against the seed/latest-accepted timestamp, so
				// a rough group may span much more than clusterWidth.
				stop = i
				break
			}

			ok, distinctCandidate := testCandidate(accepted, cand, cAir)
			if ok {
				pulled[i] = true
				accepted = append(accepted, cand)
				if cand.wallTs < firstWallTs {
					firstWallTs = cand.wallTs
				}
				if distinctCandidate {
					distinct++
				}
			}
		}

		group = group[:0]
		for i, s := range remaining {
			if i <= stop || !pulled[i] {
				group = append(group, s)
			}
		}

		if distinct >= minReceivers {
			reverseFlat(accepted)
			clusters = append(clusters, toCluster(accepted, distinct, firstWallTs))
		}
	}

	return clusters
}

// testCandidate runs the pairwise tests of cand against every sample
// already accepted into the cluster. It returns whether cand can be added
// and, if so, whether it counts as a distinct receiver.
func testCandidate(accepted []flatSample, cand flatSample, cAir float64) (ok bool, distinct bool) {
	distinct = true
	for _, other := range accepted {
		if other.receiver == cand.receiver {
			return false, false
		}

		d := other.receiver.DistanceTo(cand.receiver.ID())
		maxDelta := (slackFraction*d + slackMetres) / cAir
		if absFloat(other.ts-cand.ts) > maxDelta {
			return false, false
		}

		if d < coLocatedThreshold {
			distinct = false
		}
	}
	return true, distinct
}

func toCluster(accepted []flatSample, distinct int, firstWallTs float64) Cluster {
	rows := make([]Row, len(accepted))
	for i, s := range accepted {
		rows[i] = Row{Receiver: s.receiver, Ts: s.ts, Variance: s.variance}
	}
	return Cluster{Distinct: distinct, FirstWallTs: firstWallTs, Rows: rows}
}

func reverseFlat(s []flatSample) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
