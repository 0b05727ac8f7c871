// Package solver provides the position-solver interface the resolve
// pipeline depends on, plus a minimal concrete least-squares TDOA solver.
//
// The fixture solver here is intentionally simple: a Gauss-Newton
// iteration over the pseudorange residuals seeded from initialGuess. It
// exists so the tracker is end-to-end testable without an external
// numerical dependency; production deployments are expected to swap in a
// more careful solver behind the same interface.
package solver

import (
	"math"

	"github.com/adsbnet/mlat-tracker/internal/geodesy"
	"github.com/adsbnet/mlat-tracker/internal/mlat"
)

const (
	maxIterations  = 8
	convergenceM   = 1.0
	defaultGuessM  = 6371000.0 // roughly Earth radius, used if no seed at all
	speedOfLightMS = 299792458.0
)

// Fixture is a minimal Gauss-Newton TDOA solver operating on the first
// receiver in the cluster as the time-of-arrival reference.
type Fixture struct{}

// Solve implements mlat.Solver. It returns false if the cluster is too
// small to constrain a position (fewer than 4 rows with no altitude
// constraint, fewer than 3 with one) or if the iteration fails to
// converge.
func (Fixture) Solve(cluster []mlat.SolverCluster, altitude, altitudeError *float64, initialGuess geodesy.ECEF) (mlat.SolveResult, bool) {
	minRows := 4
	if altitude != nil {
		minRows = 3
	}
	if len(cluster) < minRows {
		return mlat.SolveResult{}, false
	}

	guess := initialGuess
	if guess == (geodesy.ECEF{}) {
		guess = geodesy.ECEF{defaultGuessM, 0, 0}
	}

	ref := cluster[0]
	pos := guess

	converged := false
	for iter := 0; iter < maxIterations; iter++ {
		jac := make([][3]float64, len(cluster)-1)
		residual := make([]float64, len(cluster)-1)

		refDist := distance(pos, ref.Receiver.Position())
		for i := 1; i < len(cluster); i++ {
			row := cluster[i]
			dist := distance(pos, row.Receiver.Position())
			predictedDelta := (dist - refDist) / speedOfLightMS
			observedDelta := row.Ts - ref.Ts
			residual[i-1] = observedDelta - predictedDelta
			jac[i-1] = gradient(pos, row.Receiver.Position(), ref.Receiver.Position(), speedOfLightMS)
		}

		step, ok := solveNormalEquations(jac, residual)
		if !ok {
			return mlat.SolveResult{}, false
		}

		pos[0] += step[0]
		pos[1] += step[1]
		pos[2] += step[2]

		if math.Sqrt(step[0]*step[0]+step[1]*step[1]+step[2]*step[2]) < convergenceM {
			converged = true
			break
		}
	}
	if !converged {
		return mlat.SolveResult{}, false
	}

	cov := estimateCovariance(cluster, pos, ref)
	return mlat.SolveResult{ECEF: pos, Cov: &cov}, true
}

func distance(a, b [3]float64) float64 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// gradient approximates d(predictedDelta)/d(pos) via the unit vectors
// from pos toward each receiver; a closed-form enough for a fixture
// solver that is not expected to handle ill-conditioned geometries.
func gradient(pos, rowPos, refPos [3]float64, c float64) [3]float64 {
	var g [3]float64
	dRow := distance(pos, rowPos)
	dRef := distance(pos, refPos)
	for i := 0; i < 3; i++ {
		ur := (pos[i] - rowPos[i]) / safeDiv(dRow)
		uf := (pos[i] - refPos[i]) / safeDiv(dRef)
		g[i] = (ur - uf) / c
	}
	return g
}

func safeDiv(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

// solveNormalEquations solves the 3x3 normal equations J^T J x = J^T r
// via Cramer's rule; returns false on a singular system.
func solveNormalEquations(jac [][3]float64, residual []float64) ([3]float64, bool) {
	var jtj [3][3]float64
	var jtr [3]float64

	for i, row := range jac {
		for a := 0; a < 3; a++ {
			jtr[a] += row[a] * residual[i]
			for b := 0; b < 3; b++ {
				jtj[a][b] += row[a] * row[b]
			}
		}
	}

	det := determinant3(jtj)
	if math.Abs(det) < 1e-12 {
		return [3]float64{}, false
	}

	return cramerSolve(jtj, jtr, det), true
}

func determinant3(m [3][3]float64) float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

func cramerSolve(m [3][3]float64, b [3]float64, det float64) [3]float64 {
	var x [3]float64
	for col := 0; col < 3; col++ {
		replaced := m
		for row := 0; row < 3; row++ {
			replaced[row][col] = b[row]
		}
		x[col] = determinant3(replaced) / det
	}
	return x
}

// estimateCovariance reports a rough isotropic covariance sized by the
// residual spread across the cluster; it is not a rigorous propagation of
// per-receiver variance, but it is conservative enough to exercise the
// pipeline's error-gating logic honestly.
func estimateCovariance(cluster []mlat.SolverCluster, pos geodesy.ECEF, ref mlat.SolverCluster) [3][3]float64 {
	var sigma2 float64
	refDist := distance(pos, ref.Receiver.Position())
	for i := 1; i < len(cluster); i++ {
		row := cluster[i]
		dist := distance(pos, row.Receiver.Position())
		predicted := (dist - refDist) / speedOfLightMS
		observed := row.Ts - ref.Ts
		residualM := (observed - predicted) * speedOfLightMS
		sigma2 += residualM * residualM
	}
	if len(cluster) > 1 {
		sigma2 /= float64(len(cluster) - 1)
	}
	if sigma2 == 0 {
		sigma2 = 1
	}

	return [3][3]float64{
		{sigma2, 0, 0},
		{0, sigma2, 0},
		{0, 0, sigma2},
	}
}
