package mlat

import "time"

// scheduler abstracts "run f once, after d elapses" so cohort timing can
// be driven synchronously in tests instead of sleeping for real wall-clock
// delays (spec.md §9 "Coroutine / delayed call"). Tracker never awaits a
// scheduled callback; it registers one and returns immediately.
type scheduler interface {
	AfterFunc(d time.Duration, f func())
}

// realScheduler is the production scheduler, backed by time.AfterFunc.
type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) { time.AfterFunc(d, f) }

// cohortMaxAge and cohortMaxGroups are the rotation thresholds from
// spec.md §3 Cohort: a Cohort older than 50ms, or already holding 25
// Groups, is retired in favour of a fresh one on the next group
// creation.
const (
	cohortMaxAge    = 50 * time.Millisecond
	cohortMaxGroups = 25
)

// cohort is a time-window batch of Groups awaiting resolution (spec.md §3
// Cohort). It fires its resolution pass exactly once, MLAT_DELAY after
// creation; the firing callback is registered at construction time and
// never cancelled, matching the "timers fire at most once, cannot be
// cancelled" contract of spec.md §5.
type cohort struct {
	creationTime float64
	groups       []*group
}

// newCohort creates a cohort and schedules its single resolution pass.
// fire is invoked with the cohort's accumulated groups once delay has
// elapsed; the cohort itself is otherwise inert, it holds state, it does
// not act.
func newCohort(now float64, delay time.Duration, sched scheduler, fire func(*cohort)) *cohort {
	c := &cohort{creationTime: now}
	sched.AfterFunc(delay, func() { fire(c) })
	return c
}

// age reports how old the cohort is relative to now, in the same wall
// clock domain as creationTime.
func (c *cohort) age(now float64) float64 { return now - c.creationTime }

// full reports whether the cohort has reached the group-count rotation
// threshold: a cohort already holding cohortMaxGroups groups rotates
// before the next group is appended, so no cohort ever holds more than
// cohortMaxGroups (spec.md §8 boundary scenario 5 — the 26th distinct
// message opens a second cohort, the first keeps exactly 25).
func (c *cohort) full() bool { return len(c.groups) >= cohortMaxGroups }

func (c *cohort) stale(now float64) bool {
	return c.age(now) > cohortMaxAge.Seconds()
}
