package mlat

import (
	"math"
	"sort"
	"time"

	"github.com/adsbnet/mlat-tracker/internal/cluster"
	"github.com/adsbnet/mlat-tracker/internal/geodesy"
	"github.com/adsbnet/mlat-tracker/pkg/log"
)

const (
	minCopiesToDecode = 3
	altHistoryWindow  = 20.0 // seconds
	vrateMinSpan      = 10.0 // seconds
	vrateSmoothWindow = 15.0 // seconds
	vrateSmoothing    = 0.3
	noPriorResultAge  = 120.0 // seconds
	altitudeStaleAge  = 45.0  // seconds
	clusterFreshness  = 2.0   // seconds
	dofZeroSkipAge    = 30.0  // seconds
	initialGuessAge   = 60.0  // seconds
	maxSolveErrorM    = 10e3  // metres
	altitudeErrorFt   = 250.0
	altitudeAgingRate = 70.0 // ft per second, degrades reported altitude error
	kalmanAltErrorFt  = 4000.0
)

// resolve runs the §4.3 resolve pipeline for one group. It is only ever
// invoked from resolveCohort, in a cohort's group insertion order.
func (t *Tracker) resolve(g *group) {
	delete(t.pending, string(g.message))

	if len(g.copies) < minCopiesToDecode {
		return
	}

	decoded, ok := t.decoder.Decode(g.message)
	if !ok {
		return
	}

	ac, ok := t.aircraftTracker.Get(decoded.Address)
	if !ok {
		return
	}

	now := t.clock.Now()
	ac.Seen = now
	ac.MlatMessageCount++
	t.stats.IncValidGroups()

	if !ac.AllowMlat {
		log.Infof("not doing mlat for %06x, wrong partition!", decoded.Address)
		return
	}

	t.updateAircraftState(ac, decoded, g.firstSeen)

	if now-ac.LastResolveAttempt < t.cfg.ResolveInterval.Seconds() {
		return
	}
	ac.LastResolveAttempt = now

	lastResultVar, lastResultDOF, lastResultTime := t.priorResult(ac, g.firstSeen)

	elapsed := g.firstSeen - lastResultTime
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed < t.cfg.ResolveBackoff.Seconds() {
		return
	}

	altitude, altitudeDOF := t.altitudeConstraint(ac, g.firstSeen)

	maxDOF := len(g.copies) + altitudeDOF - 4
	if maxDOF < 0 {
		return
	}
	if withinBackoffWindow(elapsed, t.cfg.ResolveBackoff) && float64(maxDOF) < dofThreshold(lastResultDOF, elapsed) {
		return
	}

	timestampMap := buildTimestampMap(g.copies)

	dof := len(timestampMap) + altitudeDOF - 4
	if dof < 0 {
		return
	}
	if withinBackoffWindow(elapsed, t.cfg.ResolveBackoff) && float64(dof) < dofThreshold(lastResultDOF, elapsed) {
		return
	}

	t.stats.IncNormalize()
	components, err := t.clockTracker.Normalize(timestampMap)
	if err != nil {
		log.Warnf("clock normalize failed for %06x: %v", decoded.Address, err)
		return
	}

	minComponentSize := 4 - altitudeDOF
	var clusters []cluster.Cluster
	for _, component := range components {
		if len(component) < minComponentSize {
			continue
		}
		clusters = append(clusters, cluster.Cluster(toClusterComponent(component), minComponentSize, t.cfg.CAir)...)
	}
	if len(clusters) == 0 {
		return
	}

	result, ok := t.selectAndSolve(clusters, decoded, ac, altitude, altitudeDOF, lastResultVar, lastResultDOF, lastResultTime)
	if !ok {
		return
	}

	t.applyResult(ac, g, decoded, result)
}

// updateAircraftState applies the altitude/squawk/callsign side effects of
// step 6: accepting a new altitude sample, pruning and extending
// alt_history, and smoothing vrate.
func (t *Tracker) updateAircraftState(ac *AircraftState, decoded DecodedMessage, firstSeen float64) {
	if decoded.Altitude != nil && *decoded.Altitude > -1500 && *decoded.Altitude < 75000 {
		accept := ac.Altitude == nil ||
			(firstSeen > ac.LastAltitudeTime &&
				(firstSeen-ac.LastAltitudeTime > 15 || absInt(*ac.Altitude-*decoded.Altitude) < 4000))

		if accept {
			ac.Altitude = decoded.Altitude
			ac.LastAltitudeTime = firstSeen

			newHist := make([]AltSample, 0, len(ac.AltHistory)+1)
			for _, s := range ac.AltHistory {
				if firstSeen-s.Ts < altHistoryWindow {
					newHist = append(newHist, s)
				}
			}
			ac.AltHistory = newHist
			ac.AltHistory = append(ac.AltHistory, AltSample{Ts: firstSeen, Altitude: *decoded.Altitude})

			// Mirrors mlattrack.py's new_hist[0] access: if the
			// pruned history was empty before the append above, the
			// just-appended sample is index 0 and tsDiff is 0,
			// which the > 10 guard below filters out. Preserve this
			// rather than special-casing the empty-history branch.
			oldest := ac.AltHistory[0]
			tsDiff := firstSeen - oldest.Ts
			if tsDiff > vrateMinSpan {
				newVrate := float64(*decoded.Altitude-oldest.Altitude) / (tsDiff / 60.0)
				if ac.Vrate != 0 && firstSeen-ac.VrateTime < vrateSmoothWindow {
					ac.Vrate = ac.Vrate + int(vrateSmoothing*(newVrate-float64(ac.Vrate)))
				} else {
					ac.Vrate = int(newVrate)
				}
				ac.VrateTime = firstSeen
			}
		}
	}

	if decoded.Squawk != nil {
		ac.Squawk = decoded.Squawk
	}
	if decoded.Callsign != nil {
		ac.Callsign = decoded.Callsign
	}
}

// priorResult implements step 8: a stale or absent prior is replaced with
// the "no prior" sentinel values rather than mutating ac in place, so a
// resolve that aborts before a fresh solve leaves ac untouched.
func (t *Tracker) priorResult(ac *AircraftState, firstSeen float64) (lastVar float64, lastDOF int, lastTime float64) {
	if ac.LastResultPosition == nil || (firstSeen-ac.LastResultTime) > noPriorResultAge {
		return 1e9, 0, firstSeen - noPriorResultAge
	}
	return ac.LastResultVar, ac.LastResultDOF, ac.LastResultTime
}

// altitudeConstraint implements step 10.
func (t *Tracker) altitudeConstraint(ac *AircraftState, firstSeen float64) (altitudeM *float64, altitudeDOF int) {
	if ac.Altitude == nil || *ac.Altitude < t.cfg.MinAlt || *ac.Altitude > t.cfg.MaxAlt || firstSeen > ac.LastAltitudeTime+altitudeStaleAge {
		return nil, 0
	}
	m := float64(*ac.Altitude) * t.cfg.FtToM
	return &m, 1
}

// dofThreshold reconstructs the "last_result_dof - elapsed + 0.5" gate
// threshold used in steps 11/12; kept as a helper since the same
// expression recurs three times verbatim in mlattrack.py.
func dofThreshold(dof int, elapsed float64) float64 {
	return float64(dof) - elapsed + 0.5
}

func withinBackoffWindow(elapsed float64, backoff time.Duration) bool {
	return elapsed < 2*backoff.Seconds()
}

func buildTimestampMap(copies []copy) map[Receiver][]TimestampSample {
	m := make(map[Receiver][]TimestampSample)
	for _, c := range copies {
		m[c.receiver] = append(m[c.receiver], TimestampSample{LocalTs: c.localTs, WallTs: c.wallTs})
	}
	return m
}

func toClusterComponent(component Component) cluster.Component {
	out := make(cluster.Component, len(component))
	for r, entry := range component {
		samples := make([]cluster.TimestampPair, len(entry.Samples))
		for i, s := range entry.Samples {
			samples[i] = cluster.TimestampPair{Ts: s.Ts, WallTs: s.WallTs}
		}
		out[r] = cluster.ComponentEntry{Variance: entry.Variance, Samples: samples}
	}
	return out
}

// resolvedSolve is the accumulated outcome of the cluster-selection loop,
// ready for application to aircraft state and dispatch to outputs.
type resolvedSolve struct {
	clusterWallTs float64
	distinct      int
	dof           int
	ecef          geodesy.ECEF
	cov           *[3][3]float64
	errorM        float64
	altitude      *float64
	altitudeError *float64
	rows          []cluster.Row
}

// selectAndSolve implements step 15: sort clusters ascending by
// (distinct, first_wall_ts), then repeatedly pop the best remaining
// cluster and attempt a solve until one is accepted or the list is
// exhausted.
func (t *Tracker) selectAndSolve(
	clusters []cluster.Cluster,
	decoded DecodedMessage,
	ac *AircraftState,
	altitude *float64,
	altitudeDOF int,
	lastVar float64,
	lastDOF int,
	lastTime float64,
) (resolvedSolve, bool) {
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].Distinct != clusters[j].Distinct {
			return clusters[i].Distinct < clusters[j].Distinct
		}
		return clusters[i].FirstWallTs < clusters[j].FirstWallTs
	})

	for len(clusters) > 0 {
		c := clusters[len(clusters)-1]
		clusters = clusters[:len(clusters)-1]

		elapsed := c.FirstWallTs - lastTime
		dof := c.Distinct + altitudeDOF - 4

		if elapsed < clusterFreshness && float64(dof) < dofThreshold(lastDOF, elapsed) {
			// Freshness-vs-quality gate aborts the whole resolution,
			// not just this candidate (spec.md §9 open question:
			// preserve, do not "fix").
			return resolvedSolve{}, false
		}

		altitudeError := clusterAltitudeError(decoded, altitude, ac, c.FirstWallTs, t.cfg.FtToM)

		if elapsed > dofZeroSkipAge && dof == 0 {
			continue
		}

		initialGuess := geodesy.ECEF{}
		if elapsed < initialGuessAge && ac.LastResultPosition != nil {
			initialGuess = *ac.LastResultPosition
		} else if len(c.Rows) > 0 {
			if r, ok := c.Rows[0].Receiver.(Receiver); ok {
				initialGuess = geodesy.ECEF(r.Position())
			}
		}

		t.stats.IncSolveAttempt()
		solverCluster := toSolverCluster(c)
		result, ok := t.solver.Solve(solverCluster, altitude, altitudeError, initialGuess)
		if !ok || result.Cov == nil {
			continue
		}

		varEst := traceOf(*result.Cov)
		errorM := math.Sqrt(math.Abs(varEst))
		if errorM > maxSolveErrorM {
			continue
		}

		t.stats.IncSolveSuccess()

		if elapsed/20 < errorM/maxSolveErrorM {
			continue
		}

		t.stats.IncSolveUsed()

		return resolvedSolve{
			clusterWallTs: c.FirstWallTs,
			distinct:      c.Distinct,
			dof:           dof,
			ecef:          result.ECEF,
			cov:           result.Cov,
			errorM:        errorM,
			altitude:      altitude,
			altitudeError: altitudeError,
			rows:          c.Rows,
		}, true
	}

	return resolvedSolve{}, false
}

// clusterAltitudeError implements the altitude error model of step 15's
// body: a message-carried altitude is trusted at a flat 250ft; a
// tracker-derived constraint degrades with age; otherwise no altitude
// error is modelled at all.
func clusterAltitudeError(decoded DecodedMessage, altitude *float64, ac *AircraftState, clusterWallTs float64, ftToM float64) *float64 {
	switch {
	case decoded.Altitude != nil:
		e := altitudeErrorFt * ftToM
		return &e
	case altitude != nil:
		e := (altitudeErrorFt + altitudeAgingRate*(clusterWallTs-ac.LastAltitudeTime)) * ftToM
		return &e
	default:
		return nil
	}
}

func toSolverCluster(c cluster.Cluster) []SolverCluster {
	out := make([]SolverCluster, len(c.Rows))
	for i, row := range c.Rows {
		r, _ := row.Receiver.(Receiver)
		out[i] = SolverCluster{Receiver: r, Ts: row.Ts, Variance: row.Variance}
	}
	return out
}

func traceOf(m [3][3]float64) float64 {
	return m[0][0] + m[1][1] + m[2][2]
}

// applyResult implements the "On acceptance" paragraph of §4.3: update
// aircraft state, push through Kalman (with altitude override when a
// constraint was in use), dispatch to output handlers, and forward to
// the full group receiver set.
func (t *Tracker) applyResult(ac *AircraftState, g *group, decoded DecodedMessage, r resolvedSolve) {
	ecef := r.ecef
	ac.LastResultPosition = &ecef
	ac.LastResultVar = traceOf(*r.cov)
	ac.LastResultDOF = r.dof
	ac.LastResultTime = r.clusterWallTs
	ac.MlatResultCount++

	solverCluster := toSolverCluster(cluster.Cluster{Rows: r.rows})

	// dispatchECEF is what every downstream consumer (output handlers,
	// forward_results, the pseudorange log) sees: when a tracked altitude
	// constraint is in use, the original reassigns ecef to the
	// altitude-overridden position before dispatch (mlattrack.py's
	// _resolve, "ecef = ..." ahead of handler/forward_results/pseudorange
	// writes); ac.LastResultPosition above stays the as-solved position.
	dispatchECEF := r.ecef

	var kalmanAccepted bool
	if r.altitude != nil {
		overridden := geodesy.WithHeight(r.ecef, *r.altitude)
		dispatchECEF = overridden
		kalmanAccepted = ac.Kalman.Update(r.clusterWallTs, solverCluster, *r.altitude, derefOr(r.altitudeError, 0), overridden, r.cov, r.distinct, r.dof)
	} else {
		_, _, solvedAlt := ecefToLLHTuple(r.ecef)
		altErr := kalmanAltErrorFt / math.Sqrt(float64(r.dof)+1)
		kalmanAccepted = ac.Kalman.Update(r.clusterWallTs, solverCluster, solvedAlt, altErr, r.ecef, r.cov, r.distinct, r.dof)
	}
	if kalmanAccepted {
		ac.MlatKalmanCount++
	}

	out := OutputResult{
		WallTs:    r.clusterWallTs,
		Address:   decoded.Address,
		ECEF:      dispatchECEF,
		Cov:       r.cov,
		Receivers: rowReceivers(r.rows),
		Distinct:  r.distinct,
		DOF:       r.dof,
		Kalman:    ac.Kalman,
		ErrorM:    r.errorM,
	}
	for _, h := range t.outputHandlers {
		h(out)
	}

	if t.forwardResults != nil {
		forwarded := out
		forwarded.Receivers = g.receiverList()
		t.forwardResults(forwarded)
	}

	if t.pseudorange != nil {
		r.ecef = dispatchECEF
		t.pseudorange.Record(decoded.Address, r)
	}
}

func rowReceivers(rows []cluster.Row) []Receiver {
	out := make([]Receiver, 0, len(rows))
	for _, row := range rows {
		if r, ok := row.Receiver.(Receiver); ok {
			out = append(out, r)
		}
	}
	return out
}

func ecefToLLHTuple(e geodesy.ECEF) (lat, lon, height float64) {
	llh := geodesy.ECEFToLLH(e)
	return llh.Lat, llh.Lon, llh.Height
}

func derefOr(f *float64, def float64) float64 {
	if f == nil {
		return def
	}
	return *f
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
