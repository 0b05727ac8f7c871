package mlat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// noopScheduler never invokes the registered callback, so tests that only
// care about pending-group / cohort-rotation bookkeeping never need to
// drive a real resolve pass.
type noopScheduler struct{ calls int }

func (s *noopScheduler) AfterFunc(d time.Duration, f func()) { s.calls++ }

// countingStats records call counts without touching Prometheus.
type countingStats struct {
	mlatMsgs, validGroups, normalize, solveAttempt, solveSuccess, solveUsed, cohortRotated int
}

func (s *countingStats) IncMlatMsgs()      { s.mlatMsgs++ }
func (s *countingStats) IncValidGroups()   { s.validGroups++ }
func (s *countingStats) IncNormalize()     { s.normalize++ }
func (s *countingStats) IncSolveAttempt()  { s.solveAttempt++ }
func (s *countingStats) IncSolveSuccess()  { s.solveSuccess++ }
func (s *countingStats) IncSolveUsed()     { s.solveUsed++ }
func (s *countingStats) IncCohortRotated() { s.cohortRotated++ }

type fakeClock struct{ t float64 }

func (c *fakeClock) Now() float64 { return c.t }

func newTestTracker(sched scheduler, clock Clock, stats *countingStats) *Tracker {
	return New(Config{MLATDelay: time.Millisecond, MaxGroup: 40}, Deps{
		Stats:     stats,
		Scheduler: sched,
		Clock:     clock,
	})
}

func msg(b byte) []byte { return []byte{b, 0, 0, 0, 0, 0, 0} }

// TestReceiverMlat_GroupDedupByMessageBytes covers spec.md §3 MessageGroup:
// repeated copies of the identical raw message join one group instead of
// creating a new one.
func TestReceiverMlat_GroupDedupByMessageBytes(t *testing.T) {
	sched := &noopScheduler{}
	stats := &countingStats{}
	tr := newTestTracker(sched, &fakeClock{}, stats)

	r1 := &receiver{id: 0}
	r2 := &receiver{id: 1}

	tr.ReceiverMlat(r1, 0, msg(0xAA), 0)
	tr.ReceiverMlat(r2, 0, msg(0xAA), 0.001)

	assert.Equal(t, 1, len(tr.pending))
	g := tr.pending[string(msg(0xAA))]
	assert.Equal(t, 2, len(g.copies))
	assert.Equal(t, 2, len(g.receivers))
	assert.Equal(t, 2, stats.mlatMsgs)
}

// TestReceiverMlat_CopyCapDropsExcessCopiesButKeepsReceiver covers the
// MAX_GROUP cap (spec.md §6): once the group already holds more than the
// cap, further copies are dropped (cap 2 keeps 3 of 5), but the reporting
// receiver is still recorded in the group's full receiver set.
func TestReceiverMlat_CopyCapDropsExcessCopiesButKeepsReceiver(t *testing.T) {
	sched := &noopScheduler{}
	stats := &countingStats{}
	tr := newTestTracker(sched, &fakeClock{}, stats)
	tr.cfg.MaxGroup = 2

	m := msg(0xBB)
	for i := 0; i < 5; i++ {
		tr.ReceiverMlat(&receiver{id: i}, 0, m, 0)
	}

	g := tr.pending[string(m)]
	assert.Equal(t, 3, len(g.copies))
	assert.Equal(t, 5, len(g.receivers))
}

// TestReceiverMlat_CohortRotatesAtExactlyMaxGroups is spec.md §8 boundary
// scenario 5: feeding 26 distinct messages within the cohort's age window
// opens a second cohort on the 26th, leaving the first with exactly 25.
func TestReceiverMlat_CohortRotatesAtExactlyMaxGroups(t *testing.T) {
	sched := &noopScheduler{}
	stats := &countingStats{}
	clock := &fakeClock{t: 0}
	tr := newTestTracker(sched, clock, stats)

	r := &receiver{id: 0}
	first := tr.cohort

	for i := 0; i < cohortMaxGroups; i++ {
		tr.ReceiverMlat(r, 0, msg(byte(i)), 0.001*float64(i))
	}
	assert.Same(t, first, tr.cohort)
	assert.Equal(t, cohortMaxGroups, len(first.groups))
	assert.Equal(t, 0, stats.cohortRotated)

	tr.ReceiverMlat(r, 0, msg(byte(cohortMaxGroups)), 0.001*float64(cohortMaxGroups))

	assert.NotSame(t, first, tr.cohort)
	assert.Equal(t, cohortMaxGroups, len(first.groups))
	assert.Equal(t, 1, len(tr.cohort.groups))
	assert.Equal(t, 1, stats.cohortRotated)
}

// TestReceiverMlat_CohortRotatesOnAge is spec.md §8 boundary scenario 6:
// two distinct messages arriving 60ms apart (older than cohortMaxAge) land
// in two different cohorts even though neither is full.
func TestReceiverMlat_CohortRotatesOnAge(t *testing.T) {
	sched := &noopScheduler{}
	stats := &countingStats{}
	clock := &fakeClock{t: 0}
	tr := newTestTracker(sched, clock, stats)

	r := &receiver{id: 0}
	first := tr.cohort

	tr.ReceiverMlat(r, 0, msg(0x01), 0)
	assert.Same(t, first, tr.cohort)

	tr.ReceiverMlat(r, 0, msg(0x02), 0.060)
	assert.NotSame(t, first, tr.cohort)
	assert.Equal(t, 1, len(first.groups))
	assert.Equal(t, 1, len(tr.cohort.groups))
	assert.Equal(t, 1, stats.cohortRotated)
}

// TestReceiverMlat_SecondCopyOfSameMessageDoesNotRotateCohort asserts a
// repeated message never consults full()/stale() at all, since it joins an
// existing group rather than creating a new one.
func TestReceiverMlat_SecondCopyOfSameMessageDoesNotRotateCohort(t *testing.T) {
	sched := &noopScheduler{}
	stats := &countingStats{}
	clock := &fakeClock{t: 0}
	tr := newTestTracker(sched, clock, stats)
	first := tr.cohort

	tr.ReceiverMlat(&receiver{id: 0}, 0, msg(0x01), 0)
	tr.ReceiverMlat(&receiver{id: 1}, 0, msg(0x01), 0.060)

	assert.Same(t, first, tr.cohort)
	assert.Equal(t, 0, stats.cohortRotated)
}

func TestSetArena_SwapsArena(t *testing.T) {
	sched := &noopScheduler{}
	stats := &countingStats{}
	tr := newTestTracker(sched, &fakeClock{}, stats)

	a1 := NewArena(nil)
	a2 := NewArena([]ReceiverEntry{{User: "r1", Position: [3]float64{1, 2, 3}}})
	tr.arena = a1
	tr.SetArena(a2)
	assert.Same(t, a2, tr.arena)
}

func TestReadBlacklist_EmptyPathIsNoop(t *testing.T) {
	sched := &noopScheduler{}
	stats := &countingStats{}
	tr := newTestTracker(sched, &fakeClock{}, stats)
	tr.blacklist["keep"] = struct{}{}

	tr.ReadBlacklist("")
	_, ok := tr.blacklist["keep"]
	assert.True(t, ok)
}

func TestReopenPseudorange_NilRecorderIsNoop(t *testing.T) {
	sched := &noopScheduler{}
	stats := &countingStats{}
	tr := newTestTracker(sched, &fakeClock{}, stats)
	assert.NoError(t, tr.ReopenPseudorange())
}
