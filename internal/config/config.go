// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads and validates the tracker's JSON configuration
// file into a package-level Keys value, following the teacher's
// package-level-var-plus-Init convention.
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"time"

	"github.com/adsbnet/mlat-tracker/internal/mlat"
	"github.com/adsbnet/mlat-tracker/pkg/log"
)

// Keys holds the live configuration, populated by Init. Defaults here
// match the "typically ~100-300ms" MLAT_DELAY and the usual RESOLVE_*
// figures named in spec.md §6.
var Keys = ProgramConfig{
	Addr:              ":8090",
	MLATDelayMs:       200,
	MaxGroup:          40,
	ResolveIntervalMs: 2000,
	ResolveBackoffMs:  2000,
	MinAlt:            -1500,
	MaxAlt:            50000,
	CAir:              2.997e8,
	ReceiverDB:        "./var/receivers.db",
	LogLevel:          "info",
}

// Init reads flagConfigFile, validates it against Schema, and decodes it
// into Keys. A missing file is not an error — Keys keeps its defaults;
// any other read, validate, or decode error is fatal at startup.
func Init(flagConfigFile string) {
	if flagConfigFile == "" {
		return
	}

	raw, err := os.ReadFile(flagConfigFile)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatal(err)
		}
		return
	}

	Validate(Schema, raw)

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&Keys); err != nil {
		log.Fatal(err)
	}
}

// MlatConfig converts the loaded Keys into mlat.Config, translating
// millisecond JSON fields to time.Duration.
func (c ProgramConfig) MlatConfig() mlat.Config {
	return mlat.Config{
		MLATDelay:       time.Duration(c.MLATDelayMs) * time.Millisecond,
		MaxGroup:        c.MaxGroup,
		ResolveInterval: time.Duration(c.ResolveIntervalMs) * time.Millisecond,
		ResolveBackoff:  time.Duration(c.ResolveBackoffMs) * time.Millisecond,
		MinAlt:          c.MinAlt,
		MaxAlt:          c.MaxAlt,
		FtToM:           0.3048,
		CAir:            c.CAir,
	}
}
