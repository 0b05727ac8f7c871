// Package kalman provides a simple per-aircraft position filter
// implementing mlat.Kalman. It is a constant-velocity Kalman filter over
// ECEF position and velocity, smoothing solver output between updates.
package kalman

import (
	"math"

	"github.com/adsbnet/mlat-tracker/internal/geodesy"
	"github.com/adsbnet/mlat-tracker/internal/mlat"
)

// maxInnovationM rejects an update whose position jump from the current
// filter state is implausibly large for the elapsed time, treating it as
// an outlier rather than folding it into the track.
const maxInnovationM = 50e3

// Filter is a constant-velocity Kalman filter over ECEF position.
type Filter struct {
	initialized bool
	lastTs      float64
	pos         geodesy.ECEF
	vel         [3]float64
	posVar      float64
}

// New returns an unseeded filter; its first Update always succeeds and
// seeds the state directly from the observation.
func New() *Filter {
	return &Filter{posVar: 1e12}
}

// Update implements mlat.Kalman. altitude/altitudeError/ecef/cov describe
// the current observation; distinct/dof are informational only and do
// not affect the filter, mirroring the original's use of them purely for
// downstream reporting.
func (f *Filter) Update(wallTs float64, cluster []mlat.SolverCluster, altitude, altitudeError float64, ecef geodesy.ECEF, cov *[3][3]float64, distinct, dof int) bool {
	obsVar := cov[0][0] + cov[1][1] + cov[2][2]
	if obsVar <= 0 {
		obsVar = 1
	}

	if !f.initialized {
		f.initialized = true
		f.lastTs = wallTs
		f.pos = ecef
		f.posVar = obsVar
		return true
	}

	dt := wallTs - f.lastTs
	if dt <= 0 {
		// Out-of-order or duplicate wall time: accept the position
		// without advancing velocity, matching the no-motion
		// idempotent-update law.
		dt = 0
	}

	predicted := geodesy.ECEF{
		f.pos[0] + f.vel[0]*dt,
		f.pos[1] + f.vel[1]*dt,
		f.pos[2] + f.vel[2]*dt,
	}

	innovation := distance(predicted, ecef)
	if innovation > maxInnovationM {
		return false
	}

	predictedVar := f.posVar + obsVar
	gain := predictedVar / (predictedVar + obsVar)

	var newPos geodesy.ECEF
	for i := 0; i < 3; i++ {
		newPos[i] = predicted[i] + gain*(ecef[i]-predicted[i])
	}

	if dt > 0 {
		for i := 0; i < 3; i++ {
			f.vel[i] = (newPos[i] - f.pos[i]) / dt
		}
	}

	f.pos = newPos
	f.posVar = (1 - gain) * predictedVar
	f.lastTs = wallTs

	return true
}

// Position returns the filter's current smoothed ECEF estimate.
func (f *Filter) Position() geodesy.ECEF { return f.pos }

func distance(a, b geodesy.ECEF) float64 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
