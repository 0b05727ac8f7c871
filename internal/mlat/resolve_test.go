package mlat

import (
	"errors"
	"testing"

	"github.com/adsbnet/mlat-tracker/internal/geodesy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDecoder struct {
	msg DecodedMessage
	ok  bool
}

func (f fakeDecoder) Decode(message []byte) (DecodedMessage, bool) { return f.msg, f.ok }

type fakeAircraftTracker struct {
	states map[uint32]*AircraftState
}

func (f *fakeAircraftTracker) Get(addr uint32) (*AircraftState, bool) {
	s, ok := f.states[addr]
	return s, ok
}

type fakeKalman struct{ accepted bool }

func (f fakeKalman) Update(wallTs float64, cluster []SolverCluster, altitude, altitudeError float64, ecef geodesy.ECEF, cov *[3][3]float64, distinct, dof int) bool {
	return f.accepted
}

type fakeClockTracker struct {
	components []Component
	err        error
}

func (f fakeClockTracker) Normalize(timestampMap map[Receiver][]TimestampSample) ([]Component, error) {
	return f.components, f.err
}

type fakeSolver struct {
	result SolveResult
	ok     bool
}

func (f fakeSolver) Solve(cluster []SolverCluster, altitude, altitudeError *float64, initialGuess geodesy.ECEF) (SolveResult, bool) {
	return f.result, f.ok
}

func panicDecoder(t *testing.T) Decoder {
	return fakeDecoderFunc(func(message []byte) (DecodedMessage, bool) {
		t.Fatal("decoder should not have been called")
		return DecodedMessage{}, false
	})
}

type fakeDecoderFunc func(message []byte) (DecodedMessage, bool)

func (f fakeDecoderFunc) Decode(message []byte) (DecodedMessage, bool) { return f(message) }

func newResolveTracker(decoder Decoder, tracker AircraftTracker, ct ClockTracker, solver Solver, stats *countingStats) *Tracker {
	return New(Config{MaxGroup: 40, MinAlt: -1500, MaxAlt: 50000, FtToM: 0.3048, CAir: 2.997e8}, Deps{
		Decoder:         decoder,
		AircraftTracker: tracker,
		ClockTracker:    ct,
		Solver:          solver,
		Stats:           stats,
		Scheduler:       &noopScheduler{},
		Clock:           &fakeClock{},
	})
}

func threeCopies() *group {
	g := newGroup([]byte{0xAA}, 0)
	g.copies = []copy{
		{receiver: &receiver{id: 0}, localTs: 0, wallTs: 0},
		{receiver: &receiver{id: 1}, localTs: 0, wallTs: 0},
		{receiver: &receiver{id: 2}, localTs: 0, wallTs: 0},
	}
	return g
}

func TestResolve_TooFewCopies_ReturnsWithoutDecoding(t *testing.T) {
	tr := newResolveTracker(panicDecoder(t), nil, nil, nil, &countingStats{})
	g := newGroup([]byte{0xAA}, 0)
	g.copies = []copy{{receiver: &receiver{id: 0}}, {receiver: &receiver{id: 1}}}
	tr.pending[string(g.message)] = g

	assert.NotPanics(t, func() { tr.resolve(g) })
	_, stillPending := tr.pending[string(g.message)]
	assert.False(t, stillPending)
}

func TestResolve_DecodeFails_NoOp(t *testing.T) {
	stats := &countingStats{}
	tr := newResolveTracker(fakeDecoder{ok: false}, &fakeAircraftTracker{}, nil, nil, stats)
	tr.resolve(threeCopies())
	assert.Equal(t, 0, stats.validGroups)
}

func TestResolve_UnknownAircraft_NoOp(t *testing.T) {
	stats := &countingStats{}
	at := &fakeAircraftTracker{states: map[uint32]*AircraftState{}}
	tr := newResolveTracker(fakeDecoder{ok: true, msg: DecodedMessage{Address: 1}}, at, nil, nil, stats)
	tr.resolve(threeCopies())
	assert.Equal(t, 0, stats.validGroups)
}

func TestResolve_WrongPartition_StopsBeforeClockNormalize(t *testing.T) {
	stats := &countingStats{}
	ac := &AircraftState{Address: 1, AllowMlat: false}
	at := &fakeAircraftTracker{states: map[uint32]*AircraftState{1: ac}}
	ct := fakeClockTracker{err: errors.New("must not be called")}
	tr := newResolveTracker(fakeDecoder{ok: true, msg: DecodedMessage{Address: 1}}, at, ct, nil, stats)

	tr.resolve(threeCopies())

	assert.Equal(t, 1, stats.validGroups)
	assert.Equal(t, int64(1), ac.MlatMessageCount)
	assert.Equal(t, 0, stats.normalize)
}

func TestResolve_ResolveIntervalGate_SkipsTooSoon(t *testing.T) {
	stats := &countingStats{}
	clock := &fakeClock{t: 100}
	ac := &AircraftState{Address: 1, AllowMlat: true, LastResolveAttempt: 99.5}
	at := &fakeAircraftTracker{states: map[uint32]*AircraftState{1: ac}}
	tr := New(Config{MaxGroup: 40, ResolveInterval: 2e9}, Deps{
		Decoder:         fakeDecoder{ok: true, msg: DecodedMessage{Address: 1}},
		AircraftTracker: at,
		ClockTracker:    fakeClockTracker{err: errors.New("must not be called")},
		Stats:           stats,
		Scheduler:       &noopScheduler{},
		Clock:           clock,
	})

	tr.resolve(threeCopies())
	assert.Equal(t, 0, stats.normalize)
}

func TestResolve_DOFNegative_NoOp(t *testing.T) {
	stats := &countingStats{}
	ac := &AircraftState{Address: 1, AllowMlat: true}
	at := &fakeAircraftTracker{states: map[uint32]*AircraftState{1: ac}}
	ct := fakeClockTracker{err: errors.New("must not be called")}
	tr := newResolveTracker(fakeDecoder{ok: true, msg: DecodedMessage{Address: 1}}, at, ct, nil, stats)

	g := newGroup([]byte{0xAA}, 0)
	g.copies = []copy{{receiver: &receiver{id: 0}}, {receiver: &receiver{id: 1}}, {receiver: &receiver{id: 2}}}
	tr.resolve(g)

	assert.Equal(t, 0, stats.normalize)
}

func TestResolve_EndToEnd_AcceptsSolveAndDispatches(t *testing.T) {
	receivers := []ReceiverEntry{
		{User: "r0", Position: [3]float64{4115665.7025876646, 800004.3715764955, 4790860.631304157}},
		{User: "r1", Position: [3]float64{4094946.2397600003, 818251.0016223945, 4805439.642330187}},
		{User: "r2", Position: [3]float64{4134884.8019962525, 788771.4609792834, 4776223.621765489}},
		{User: "r3", Position: [3]float64{4112900.1567527284, 769708.3428981652, 4798157.398058163}},
	}
	arena := NewArena(receivers)
	ts := []float64{0, 5.106745080372352e-05, 7.851947143240058e-05, 7.865362285528988e-05}

	component := make(Component, 4)
	for i := 0; i < 4; i++ {
		r, ok := arena.ByUser(receivers[i].User)
		require.True(t, ok)
		component[r] = ComponentEntry{Variance: 1e-12, Samples: []NormalizedSample{{Ts: ts[i], WallTs: ts[i]}}}
	}

	stats := &countingStats{}
	ac := &AircraftState{Address: 0xABCDEF, AllowMlat: true, Kalman: fakeKalman{accepted: true}}
	at := &fakeAircraftTracker{states: map[uint32]*AircraftState{0xABCDEF: ac}}
	ct := fakeClockTracker{components: []Component{component}}
	want := geodesy.ECEF{4116377.355344019, 803871.2804475838, 4801002.475741281}
	solver := fakeSolver{ok: true, result: solveResultFixture(want)}

	// A fresh altitude constraint (altitudeDOF=1) keeps dof at 1 instead
	// of 0; with no prior result, elapsed is always ~120s (the
	// noPriorResultAge sentinel), which would otherwise trip the
	// "elapsed > 30s && dof == 0" skip in selectAndSolve.
	altFt := 5000
	tr := newResolveTracker(fakeDecoder{ok: true, msg: DecodedMessage{Address: 0xABCDEF, Altitude: &altFt}}, at, ct, solver, stats)
	tr.arena = arena

	var received []OutputResult
	tr.AddOutputHandler(func(r OutputResult) { received = append(received, r) })

	g := newGroup([]byte{0xAA}, 0)
	for i := 0; i < 4; i++ {
		r, _ := arena.ByUser(receivers[i].User)
		g.copies = append(g.copies, copy{receiver: r, localTs: ts[i], wallTs: ts[i]})
		g.addReceiver(r)
	}

	tr.resolve(g)

	assert.Equal(t, 1, stats.solveAttempt)
	assert.Equal(t, 1, stats.solveSuccess)
	assert.Equal(t, 1, stats.solveUsed)
	require.Len(t, received, 1)
	assert.Equal(t, uint32(0xABCDEF), received[0].Address)
	// A tracked altitude constraint is in play (altFt), so the dispatched
	// position is the solved ECEF re-projected onto that altitude, not the
	// raw solved position — LastResultPosition keeps the raw solve instead.
	wantDispatched := geodesy.WithHeight(want, float64(altFt)*0.3048)
	assert.InDelta(t, wantDispatched[0], received[0].ECEF[0], 1e-6)
	assert.InDelta(t, wantDispatched[1], received[0].ECEF[1], 1e-6)
	assert.InDelta(t, wantDispatched[2], received[0].ECEF[2], 1e-6)
	assert.Equal(t, int64(1), ac.MlatResultCount)
	assert.Equal(t, int64(1), ac.MlatKalmanCount)
	require.NotNil(t, ac.LastResultPosition)
	assert.InDelta(t, want[0], ac.LastResultPosition[0], 1e-6)
}

// solveResultFixture builds a SolveResult with a small, well-conditioned
// covariance so the pipeline's error-magnitude gate (maxSolveErrorM)
// passes.
func solveResultFixture(ecef geodesy.ECEF) SolveResult {
	cov := [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	return SolveResult{ECEF: ecef, Cov: &cov}
}
