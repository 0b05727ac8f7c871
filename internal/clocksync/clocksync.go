// Package clocksync provides a minimal mlat.ClockTracker fixture: it
// treats every receiver reporting a copy of the same message as one
// linearised component, passing local timestamps through unchanged.
// A production clock tracker instead fits a linear relation between
// each receiver's clock and a common reference using a longer history
// of shared messages; that model is external to the tracker core and
// not implemented here.
package clocksync

import "github.com/adsbnet/mlat-tracker/internal/mlat"

// Fixture is a pass-through mlat.ClockTracker: every receiver in the
// input map is placed into a single Component with zero variance and
// its local timestamps reported as already normalized.
type Fixture struct{}

// Normalize implements mlat.ClockTracker.
func (Fixture) Normalize(timestampMap map[mlat.Receiver][]mlat.TimestampSample) ([]mlat.Component, error) {
	component := make(mlat.Component, len(timestampMap))
	for r, samples := range timestampMap {
		normalized := make([]mlat.NormalizedSample, len(samples))
		for i, s := range samples {
			normalized[i] = mlat.NormalizedSample{Ts: s.LocalTs, WallTs: s.WallTs}
		}
		component[r] = mlat.ComponentEntry{Variance: 0, Samples: normalized}
	}
	return []mlat.Component{component}, nil
}
