// Package mlatoutput adapts mlat.OutputHandler to the teacher's NATS
// client singleton, publishing every accepted solve as JSON to a subject.
package mlatoutput

import (
	"encoding/json"

	"github.com/adsbnet/mlat-tracker/internal/mlat"
	"github.com/adsbnet/mlat-tracker/pkg/log"
	"github.com/adsbnet/mlat-tracker/pkg/nats"
)

// positionsSubject is the NATS subject solved positions are published on.
const positionsSubject = "mlat.positions"

// position is the wire format published to NATS: flattened and JSON-
// friendly, unlike mlat.OutputResult which carries receiver interfaces.
type position struct {
	WallTs   float64    `json:"wall_ts"`
	Address  string     `json:"address"`
	ECEF     [3]float64 `json:"ecef"`
	Distinct int        `json:"distinct"`
	DOF      int        `json:"dof"`
	ErrorM   float64    `json:"error_m"`
}

// NewHandler returns an mlat.OutputHandler that publishes to client on
// positionsSubject. A publish failure is logged and otherwise ignored:
// output dispatch must never be fatal to the resolve pipeline (spec.md
// §7 "I/O").
func NewHandler(client *nats.Client) mlat.OutputHandler {
	return func(result mlat.OutputResult) {
		if client == nil || !client.IsConnected() {
			return
		}

		payload, err := json.Marshal(position{
			WallTs:   result.WallTs,
			Address:  addressHex(result.Address),
			ECEF:     [3]float64(result.ECEF),
			Distinct: result.Distinct,
			DOF:      result.DOF,
			ErrorM:   result.ErrorM,
		})
		if err != nil {
			log.Warnf("mlatoutput: marshal failed: %v", err)
			return
		}

		if err := client.Publish(positionsSubject, payload); err != nil {
			log.Warnf("mlatoutput: publish failed: %v", err)
		}
	}
}

func addressHex(address uint32) string {
	const hexDigits = "0123456789abcdef"
	b := make([]byte, 6)
	for i := 5; i >= 0; i-- {
		b[i] = hexDigits[address&0xf]
		address >>= 4
	}
	return string(b)
}
