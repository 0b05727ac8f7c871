// Package mlat implements the multilateration tracker core: grouping of
// per-receiver observations of the same transmission, cohort batching,
// clock normalization dispatch, clustering, solver invocation, and
// per-aircraft state update.
//
// Everything in this file is an external collaborator: the clock tracker,
// message decoder, position solver, aircraft tracker, Kalman filter and
// output sinks are owned elsewhere. Tracker holds only interfaces to them
// so the resolve pipeline can be tested without a real decoder or solver.
package mlat

import "github.com/adsbnet/mlat-tracker/internal/geodesy"

// Decoder extracts the fields the resolve pipeline cares about from a raw
// Mode S message. A nil return (ok=false) means the message could not be
// decoded or carried no usable aircraft address.
type Decoder interface {
	Decode(message []byte) (DecodedMessage, bool)
}

// DecodedMessage is the subset of a Mode S message the tracker consumes.
type DecodedMessage struct {
	Address  uint32
	Altitude *int // feet; nil if not present in this message
	Squawk   *uint16
	Callsign *string
}

// ClockTracker linearises per-receiver timestamps into comparable
// components. Each component is a maximal connected set of receivers whose
// clocks could be related; timestamps are directly comparable only within
// one component.
type ClockTracker interface {
	Normalize(timestampMap map[Receiver][]TimestampSample) ([]Component, error)
}

// TimestampSample is one raw (uncorrected) observation fed to the clock
// tracker for a single receiver.
type TimestampSample struct {
	LocalTs float64
	WallTs  float64
}

// Component is the clock tracker's per-partition output: receivers whose
// timestamps are comparable, with the variance of that receiver's clock
// and its normalized samples.
type Component map[Receiver]ComponentEntry

// ComponentEntry is one receiver's contribution to a Component.
type ComponentEntry struct {
	Variance float64
	Samples  []NormalizedSample
}

// NormalizedSample pairs a clock-normalized timestamp with the wall-clock
// time it was observed at.
type NormalizedSample struct {
	Ts     float64
	WallTs float64
}

// SolverCluster is one row of input to the position solver: a receiver's
// position, its normalized timestamp, and its clock variance.
type SolverCluster struct {
	Receiver Receiver
	Ts       float64
	Variance float64
}

// SolveResult is what the solver returns on success. Cov is a row-major
// 3x3 ECEF covariance; a nil Cov is treated by the pipeline as a failed
// solve even if Solve reported success.
type SolveResult struct {
	ECEF geodesy.ECEF
	Cov  *[3][3]float64
}

// Solver derives a position from a cluster of consistent arrival times.
// altitude is nil when no altitude constraint applies; altitudeError is
// set whenever the message carried an altitude, even if altitude is nil.
// initialGuess seeds the iterative solve; it may be the zero value if the
// caller has no prior.
type Solver interface {
	Solve(cluster []SolverCluster, altitude, altitudeError *float64, initialGuess geodesy.ECEF) (SolveResult, bool)
}

// Kalman is the per-aircraft position filter. Update returns whether the
// update was accepted (a rejected update, e.g. as an outlier, must not
// increment the caller's kalman-success counter).
type Kalman interface {
	Update(wallTs float64, cluster []SolverCluster, altitude, altitudeError float64, ecef geodesy.ECEF, cov *[3][3]float64, distinct, dof int) bool
}

// AircraftState is the mutable per-aircraft state the resolve pipeline
// reads and updates. Owned by the external aircraft tracker; the tracker
// here mutates the fields it is documented to mutate and nothing else.
type AircraftState struct {
	Address uint32

	Altitude         *int // feet
	LastAltitudeTime float64
	AltHistory       []AltSample
	Vrate            int
	VrateTime        float64

	Squawk   *uint16
	Callsign *string

	Seen               float64
	LastResolveAttempt float64

	LastResultPosition *geodesy.ECEF
	LastResultVar      float64
	LastResultDOF      int
	LastResultTime     float64

	MlatMessageCount int64
	MlatResultCount  int64
	MlatKalmanCount  int64

	AllowMlat bool
	Kalman    Kalman
}

// AltSample is one retained altitude history sample (spec.md §3 alt_history).
type AltSample struct {
	Ts       float64
	Altitude int
}

// AircraftTracker looks up mutable aircraft state by Mode S address.
type AircraftTracker interface {
	Get(address uint32) (*AircraftState, bool)
}

// OutputHandler receives every accepted solve. clusterReceivers is the set
// of receivers whose observations made it into the winning cluster;
// forwarding to the full group.receivers set is a separate call
// (Tracker.forwardResults) since it needs the Group, not just the result.
type OutputHandler func(result OutputResult)

// OutputResult is the payload passed to every registered OutputHandler and
// to the receiver-forwarding path.
type OutputResult struct {
	WallTs    float64
	Address   uint32
	ECEF      geodesy.ECEF
	Cov       *[3][3]float64
	Receivers []Receiver
	Distinct  int
	DOF       int
	Kalman    Kalman
	ErrorM    float64
}
