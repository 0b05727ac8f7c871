package mlat

import (
	"time"

	"github.com/adsbnet/mlat-tracker/pkg/log"
)

// Config holds the tuning constants enumerated in spec.md §6. Tracker
// takes its own copy at construction; changing the struct after New does
// not affect a running Tracker.
type Config struct {
	// MLATDelay is how long a Cohort waits after creation before firing
	// its resolution pass.
	MLATDelay time.Duration
	// MaxGroup is the per-message copy cap; once a group already holds
	// more than MaxGroup copies, further copies are dropped (so a group
	// keeps at most MaxGroup+1), but the reporting receiver is still
	// recorded.
	MaxGroup int
	// ResolveInterval is the minimum spacing between resolve attempts
	// for a single aircraft.
	ResolveInterval time.Duration
	// ResolveBackoff is the minimum elapsed-since-last-result before a
	// new resolve attempt is allowed to proceed past the DOF gates.
	ResolveBackoff time.Duration
	// MinAlt, MaxAlt bound the tracked-altitude validity window, feet.
	MinAlt, MaxAlt int
	// FtToM converts feet to metres; CAir is the radio propagation
	// speed in air, metres/second.
	FtToM, CAir float64
}

// Stats is the counter sink the tracker reports pipeline-gate crossings
// to. internal/mlatstats provides the Prometheus-backed implementation;
// tests can pass a no-op or recording fake.
type Stats interface {
	IncMlatMsgs()
	IncValidGroups()
	IncNormalize()
	IncSolveAttempt()
	IncSolveSuccess()
	IncSolveUsed()
	IncCohortRotated()
}

// Clock returns the current wall-clock time as seconds since the Unix
// epoch. Exists so tests can inject a deterministic clock instead of
// time.Now; production code uses realClock.
type Clock interface {
	Now() float64
}

type realClock struct{}

func (realClock) Now() float64 { return float64(time.Now().UnixNano()) / 1e9 }

// Tracker is the multilateration tracker core (spec.md §2-§4): it
// deduplicates copies of a message into Groups, batches Groups into
// time-windowed Cohorts, and on cohort firing runs each Group through the
// resolve pipeline.
//
// Tracker is not safe for concurrent use. Every exported method must run
// on the single executor that also fires cohort timers (spec.md §5); if
// the host runtime is multi-threaded, pin Tracker to one goroutine or
// guard all calls with one mutex.
type Tracker struct {
	cfg   Config
	clock Clock
	sched scheduler

	pending map[string]*group
	cohort  *cohort

	arena           *Arena
	clockTracker    ClockTracker
	decoder         Decoder
	solver          Solver
	aircraftTracker AircraftTracker
	stats           Stats

	outputHandlers []OutputHandler
	forwardResults OutputHandler

	blacklist map[string]struct{}

	pseudorange *PseudorangeRecorder
}

// Deps bundles the external collaborators a Tracker needs (spec.md §1
// "Out of scope"/§6 External interfaces). All fields are required except
// Pseudorange, Scheduler and Clock, which default to production
// implementations / nil-recorder when omitted.
type Deps struct {
	Arena           *Arena
	ClockTracker    ClockTracker
	Decoder         Decoder
	Solver          Solver
	AircraftTracker AircraftTracker
	Stats           Stats
	Pseudorange     *PseudorangeRecorder
	Scheduler       scheduler
	Clock           Clock
}

// New constructs a Tracker and opens its first cohort.
func New(cfg Config, deps Deps) *Tracker {
	sched := deps.Scheduler
	if sched == nil {
		sched = realScheduler{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = realClock{}
	}

	t := &Tracker{
		cfg:             cfg,
		clock:           clock,
		sched:           sched,
		pending:         make(map[string]*group),
		arena:           deps.Arena,
		clockTracker:    deps.ClockTracker,
		decoder:         deps.Decoder,
		solver:          deps.Solver,
		aircraftTracker: deps.AircraftTracker,
		stats:           deps.Stats,
		pseudorange:     deps.Pseudorange,
		blacklist:       make(map[string]struct{}),
	}
	t.cohort = t.newCohort(clock.Now())
	return t
}

// AddOutputHandler registers a handler invoked on every accepted solve, in
// registration order (spec.md §9 "Dynamic dispatch"). The handler sees
// only the receivers whose observations made it into the winning cluster.
func (t *Tracker) AddOutputHandler(h OutputHandler) {
	t.outputHandlers = append(t.outputHandlers, h)
}

// SetForwardResults registers the handler invoked once per accepted solve
// with the full Group receiver set (spec.md §4.3 "forward to all
// receivers in group.receivers"). Actually delivering to receiver
// connections is receiver connection handling, out of this package's
// scope; callers wire this to whatever does that.
func (t *Tracker) SetForwardResults(h OutputHandler) {
	t.forwardResults = h
}

// SetArena replaces the Arena the Tracker holds. The resolve path does not
// read this field, so the swap does not change how pending or later Groups
// are resolved: each Receiver keeps the pointer to the Arena that built it
// and computes distances from that Arena.
func (t *Tracker) SetArena(a *Arena) {
	t.arena = a
}

// ReceiverMlat is the inbound call: one observed copy of a raw message
// (spec.md §4.2). message is used as the pending-map key by its byte
// contents, so callers must not mutate a message slice after passing it
// in.
func (t *Tracker) ReceiverMlat(receiver Receiver, localTs float64, message []byte, wallTs float64) {
	t.stats.IncMlatMsgs()

	key := string(message)
	g, ok := t.pending[key]
	if !ok {
		g = newGroup(message, wallTs)
		t.pending[key] = g

		if t.cohort.stale(wallTs) || t.cohort.full() {
			t.cohort = t.newCohort(wallTs)
			t.stats.IncCohortRotated()
		}
		t.cohort.groups = append(t.cohort.groups, g)
	}

	g.addReceiver(receiver)

	if len(g.copies) > t.cfg.MaxGroup {
		return
	}
	g.copies = append(g.copies, copy{receiver: receiver, localTs: localTs, wallTs: wallTs})
}

// newCohort opens a cohort timed to fire t.resolveCohort after MLATDelay.
func (t *Tracker) newCohort(now float64) *cohort {
	return newCohort(now, t.cfg.MLATDelay, t.sched, t.resolveCohort)
}

// resolveCohort is the cohort firing callback: every group is resolved in
// insertion order (spec.md §4.2 "Cohort firing").
func (t *Tracker) resolveCohort(c *cohort) {
	for _, g := range c.groups {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("resolve of group failed: %v", r)
				}
			}()
			t.resolve(g)
		}()
	}
}

// ReadBlacklist replaces the blacklist set from path. A missing file is
// not an error; an empty path is a no-op that leaves the blacklist
// untouched, matching mlattrack.py's read_blacklist guard on
// blacklist_filename (spec.md §6 "Blacklist file").
func (t *Tracker) ReadBlacklist(path string) {
	if path == "" {
		return
	}

	s := make(map[string]struct{})
	if line, ok := readFirstLine(path); ok && line != "" {
		s[line] = struct{}{}
	}
	log.Infof("Read %d blacklist entries", len(s))
	t.blacklist = s
}

// ReopenPseudorange closes and reopens the pseudorange log at its
// current path (spec.md §5 "Shared resources" — reopen is destructive).
// A nil recorder (pseudorange logging disabled) is a no-op.
func (t *Tracker) ReopenPseudorange() error {
	if t.pseudorange == nil {
		return nil
	}
	return t.pseudorange.Reopen()
}
