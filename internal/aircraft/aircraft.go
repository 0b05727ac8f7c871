// Package aircraft provides an in-memory implementation of
// mlat.AircraftTracker: a registry of per-aircraft state, keyed by Mode S
// address, each with its own Kalman filter.
package aircraft

import (
	"sync"
	"time"

	"github.com/adsbnet/mlat-tracker/internal/kalman"
	"github.com/adsbnet/mlat-tracker/internal/mlat"
)

// Tracker is a simple in-memory mlat.AircraftTracker. Aircraft are
// created lazily on first Register call; Get only ever returns aircraft
// that have been explicitly registered, matching the original's behavior
// of only mlat-resolving aircraft the ADS-B tracker already knows about.
type Tracker struct {
	mu    sync.Mutex
	byICA map[uint32]*mlat.AircraftState
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{byICA: make(map[uint32]*mlat.AircraftState)}
}

// Register adds an aircraft to the tracker if not already present, with
// mlat enabled by default, and returns its state.
func (t *Tracker) Register(address uint32) *mlat.AircraftState {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ac, ok := t.byICA[address]; ok {
		return ac
	}
	ac := &mlat.AircraftState{
		Address:   address,
		AllowMlat: true,
		Kalman:    kalman.New(),
	}
	t.byICA[address] = ac
	return ac
}

// Get implements mlat.AircraftTracker.
func (t *Tracker) Get(address uint32) (*mlat.AircraftState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ac, ok := t.byICA[address]
	return ac, ok
}

// Len reports the number of registered aircraft.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byICA)
}

// EvictIdle drops aircraft whose Seen timestamp is older than maxIdle
// and reports how many were removed. Bounds the tracker's memory use
// across long runs with a continuously-rotating aircraft population.
func (t *Tracker) EvictIdle(maxIdle time.Duration) int {
	cutoff := float64(time.Now().UnixNano())/1e9 - maxIdle.Seconds()

	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for addr, ac := range t.byICA {
		if ac.Seen < cutoff {
			delete(t.byICA, addr)
			n++
		}
	}
	return n
}
