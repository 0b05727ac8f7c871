// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import "encoding/json"

// ProgramConfig is the top-level configuration object for the tracker
// process, loaded from JSON and validated against Schema before use.
type ProgramConfig struct {
	// Addr is the admin HTTP mux listen address (/metrics, /healthz).
	Addr string `json:"addr"`
	// User, Group: if set, dropped to after binding Addr, letting the
	// process start bound to a privileged port as root and then give
	// up those privileges for the rest of its life.
	User  string `json:"user"`
	Group string `json:"group"`

	// MLATDelayMs is the cohort resolution delay in milliseconds
	// (spec.md §6 MLAT_DELAY).
	MLATDelayMs int `json:"mlat-delay-ms"`
	// MaxGroup is the per-message copy cap (spec.md §6 MAX_GROUP).
	MaxGroup int `json:"max-group"`
	// ResolveIntervalMs is the per-aircraft minimum spacing between
	// resolve attempts, milliseconds (spec.md §6 RESOLVE_INTERVAL).
	ResolveIntervalMs int `json:"resolve-interval-ms"`
	// ResolveBackoffMs is the minimum elapsed-since-last-result before
	// a new resolve attempt proceeds, milliseconds (spec.md §6
	// RESOLVE_BACKOFF).
	ResolveBackoffMs int `json:"resolve-backoff-ms"`
	// MinAlt, MaxAlt bound the tracked-altitude validity window, feet
	// (spec.md §6 MIN_ALT, MAX_ALT).
	MinAlt int `json:"min-alt"`
	MaxAlt int `json:"max-alt"`
	// CAir is the radio propagation speed in air, metres/second
	// (spec.md §6 C_AIR).
	CAir float64 `json:"c-air"`

	// BlacklistFile and PseudorangeFile are optional paths; empty
	// disables the corresponding feature (spec.md §6).
	BlacklistFile   string `json:"blacklist-file"`
	PseudorangeFile string `json:"pseudorange-file"`

	// ReceiverDB is the DSN for the receiver directory (sqlite path).
	ReceiverDB string `json:"receiver-db"`

	// Nats holds the raw sub-config blob for that package's own Init
	// function.
	Nats      json.RawMessage `json:"nats"`
	LogLevel  string          `json:"log-level"`
	LogDate   bool            `json:"log-date"`
	GopsAgent bool            `json:"gops-agent"`
}

const Schema = `{
    "type": "object",
    "description": "Configuration for the mlat tracker process.",
    "properties": {
        "addr": { "type": "string" },
        "user": { "type": "string" },
        "group": { "type": "string" },
        "mlat-delay-ms": { "type": "integer", "minimum": 1 },
        "max-group": { "type": "integer", "minimum": 1 },
        "resolve-interval-ms": { "type": "integer", "minimum": 0 },
        "resolve-backoff-ms": { "type": "integer", "minimum": 0 },
        "min-alt": { "type": "integer" },
        "max-alt": { "type": "integer" },
        "c-air": { "type": "number", "exclusiveMinimum": 0 },
        "blacklist-file": { "type": "string" },
        "pseudorange-file": { "type": "string" },
        "receiver-db": { "type": "string" },
        "nats": { "type": "object" },
        "log-level": { "type": "string" },
        "log-date": { "type": "boolean" },
        "gops-agent": { "type": "boolean" }
    },
    "required": ["mlat-delay-ms", "max-group", "resolve-interval-ms", "resolve-backoff-ms", "c-air"]
}`
