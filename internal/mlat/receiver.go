package mlat

import (
	"math"

	"github.com/adsbnet/mlat-tracker/internal/cluster"
)

// Receiver is a receiver as seen by the tracker: a stable arena id plus
// position, with a precomputed distance to every other receiver in the
// arena so the Cluster Engine's O(k^2) pairwise test never recomputes
// geometry (spec.md §9 "Cyclic references").
type Receiver interface {
	cluster.Receiver
	Position() [3]float64
	User() string
}

// receiver is the concrete Receiver stored in an Arena.
type receiver struct {
	id       int
	user     string
	position [3]float64
	arena    *Arena
}

func (r *receiver) ID() int             { return r.id }
func (r *receiver) User() string        { return r.user }
func (r *receiver) Position() [3]float64 { return r.position }

// DistanceTo looks up the precomputed metres distance to the receiver
// with the given arena id. Panics on an id outside the arena, since that
// indicates a receiver reference crossed arenas, a programming error.
func (r *receiver) DistanceTo(id int) float64 {
	return r.arena.distances[r.id][id]
}

// Arena owns every known receiver and the full pairwise distance table.
// Receivers are only ever referred to by stable id, never by pointer
// identity across arena rebuilds (spec.md §9).
type Arena struct {
	receivers []*receiver
	byUser    map[string]*receiver
	distances [][]float64
}

// NewArena builds an arena from a fixed receiver directory snapshot. The
// distance table is computed once and held for the arena's lifetime;
// rebuild the arena (NewArena again) to pick up directory changes.
func NewArena(entries []ReceiverEntry) *Arena {
	a := &Arena{
		receivers: make([]*receiver, len(entries)),
		byUser:    make(map[string]*receiver, len(entries)),
	}
	for i, e := range entries {
		r := &receiver{id: i, user: e.User, position: e.Position, arena: a}
		a.receivers[i] = r
		a.byUser[e.User] = r
	}

	a.distances = make([][]float64, len(a.receivers))
	for i, ri := range a.receivers {
		a.distances[i] = make([]float64, len(a.receivers))
		for j, rj := range a.receivers {
			a.distances[i][j] = ecefDistance(ri.position, rj.position)
		}
	}
	return a
}

// ReceiverEntry is the minimal input needed to place a receiver in an
// Arena: its identity and ECEF position.
type ReceiverEntry struct {
	User     string
	Position [3]float64
}

// ByUser returns the receiver known by the given identifier, if any.
func (a *Arena) ByUser(user string) (Receiver, bool) {
	r, ok := a.byUser[user]
	return r, ok
}

// Len returns the number of receivers known to the arena.
func (a *Arena) Len() int {
	return len(a.receivers)
}

func ecefDistance(a, b [3]float64) float64 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
