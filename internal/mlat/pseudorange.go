package mlat

import (
	"encoding/json"
	"math"
	"os"
	"sync"

	"github.com/adsbnet/mlat-tracker/pkg/log"
)

// PseudorangeRecorder appends one NDJSON record per accepted solve to a
// file (spec.md §4.4). Reopen is destructive: close then reopen for
// append, so the recorder always writes to whatever path is current at
// reopen time even if the file was rotated out from under it.
type PseudorangeRecorder struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// NewPseudorangeRecorder opens path for append and returns a recorder, or
// an error if the initial open fails. Use Reopen to pick up a rotated
// file on a reload signal.
func NewPseudorangeRecorder(path string) (*PseudorangeRecorder, error) {
	r := &PseudorangeRecorder{path: path}
	if err := r.Reopen(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reopen closes the current file handle, if any, and opens path again for
// append. A failure to reopen is logged and returned to the caller; the
// recorder keeps its previous handle closed and subsequent Record calls
// become no-ops until the next successful Reopen.
func (r *PseudorangeRecorder) Reopen() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.f != nil {
		r.f.Close()
		r.f = nil
	}

	f, err := os.OpenFile(r.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		log.Errorf("pseudorange: reopen %s failed: %v", r.path, err)
		return err
	}
	r.f = f
	return nil
}

func (r *PseudorangeRecorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f != nil {
		r.f.Close()
		r.f = nil
	}
}

// pseudorangeRow is one receiver's contribution to a record, rounded per
// spec.md §4.4: position in whole metres, offset from t0 in microseconds
// to 1 decimal, variance scaled by 1e12 to 2 decimals.
type pseudorangeRow struct {
	X, Y, Z  float64
	OffsetUs float64
	Variance float64
}

func (row pseudorangeRow) MarshalJSON() ([]byte, error) {
	return json.Marshal([5]float64{row.X, row.Y, row.Z, row.OffsetUs, row.Variance})
}

type pseudorangeRecord struct {
	ICAO          string           `json:"icao"`
	Time          float64          `json:"time"`
	ECEF          [3]float64       `json:"ecef"`
	Distinct      int              `json:"distinct"`
	DOF           int              `json:"dof"`
	Cluster       []pseudorangeRow `json:"cluster"`
	ECEFCov       *[9]float64      `json:"ecef_cov,omitempty"`
	Altitude      *float64         `json:"altitude,omitempty"`
	AltitudeError *float64         `json:"altitude_error,omitempty"`
}

// Record appends one record for the given accepted solve. t0 is the
// earliest Row timestamp in the cluster, matching cluster[0][1] in
// mlattrack.py after the caller's ascending sort.
func (r *PseudorangeRecorder) Record(address uint32, solve resolvedSolve) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return
	}

	rows := solve.rows
	if len(rows) == 0 {
		return
	}
	t0 := rows[0].Ts

	clusterRows := make([]pseudorangeRow, len(rows))
	for i, row := range rows {
		var pos [3]float64
		if rec, ok := row.Receiver.(Receiver); ok {
			pos = rec.Position()
		}
		clusterRows[i] = pseudorangeRow{
			X:        round(pos[0], 0),
			Y:        round(pos[1], 0),
			Z:        round(pos[2], 0),
			OffsetUs: round((row.Ts-t0)*1e6, 1),
			Variance: round(row.Variance*1e12, 2),
		}
	}

	rec := pseudorangeRecord{
		ICAO:     icaoHex(address),
		Time:     round(solve.clusterWallTs, 3),
		ECEF:     [3]float64{round(solve.ecef[0], 0), round(solve.ecef[1], 0), round(solve.ecef[2], 0)},
		Distinct: solve.distinct,
		DOF:      solve.dof,
		Cluster:  clusterRows,
	}

	if solve.cov != nil {
		cov := solve.cov
		rec.ECEFCov = &[9]float64{
			round(cov[0][0], 0), round(cov[0][1], 0), round(cov[0][2], 0),
			round(cov[1][0], 0), round(cov[1][1], 0), round(cov[1][2], 0),
			round(cov[2][0], 0), round(cov[2][1], 0), round(cov[2][2], 0),
		}
	}

	if solve.altitude != nil {
		alt := round(*solve.altitude, 0)
		rec.Altitude = &alt
		if solve.altitudeError != nil {
			altErr := round(*solve.altitudeError, 0)
			rec.AltitudeError = &altErr
		}
	}

	enc := json.NewEncoder(r.f)
	if err := enc.Encode(rec); err != nil {
		log.Warnf("pseudorange: write failed: %v", err)
	}
}

func round(v float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Round(v*scale) / scale
}

func icaoHex(address uint32) string {
	const hexDigits = "0123456789abcdef"
	b := make([]byte, 6)
	for i := 5; i >= 0; i-- {
		b[i] = hexDigits[address&0xf]
		address >>= 4
	}
	return string(b)
}
