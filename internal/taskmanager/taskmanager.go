// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package taskmanager runs the tracker's periodic background chores —
// receiver directory resync and stale aircraft eviction — on a
// gocron scheduler, separate from the per-message resolve path.
package taskmanager

import (
	"time"

	"github.com/adsbnet/mlat-tracker/internal/aircraft"
	"github.com/adsbnet/mlat-tracker/internal/mlat"
	"github.com/adsbnet/mlat-tracker/internal/receiverdb"
	"github.com/adsbnet/mlat-tracker/pkg/log"
	"github.com/go-co-op/gocron/v2"
)

var s gocron.Scheduler

// Deps are the live collaborators the periodic jobs operate on.
type Deps struct {
	Directory       *receiverdb.Directory
	Tracker         *mlat.Tracker
	Aircraft        *aircraft.Tracker
	DirectoryResync time.Duration
	AircraftMaxIdle time.Duration
}

// Start builds and starts the scheduler. A zero Duration in Deps
// disables that job, matching the teacher's "interval == 0 skips
// registration" convention.
func Start(d Deps) {
	var err error
	s, err = gocron.NewScheduler()
	if err != nil {
		log.Fatalf("taskmanager: could not create gocron scheduler: %s", err.Error())
	}

	if d.DirectoryResync > 0 && d.Directory != nil {
		registerDirectoryResync(d.Directory, d.Tracker, d.DirectoryResync)
	}
	if d.AircraftMaxIdle > 0 && d.Aircraft != nil {
		registerAircraftEviction(d.Aircraft, d.AircraftMaxIdle)
	}

	s.Start()
}

// Shutdown stops the scheduler, waiting for running jobs to finish.
func Shutdown() {
	if s == nil {
		return
	}
	if err := s.Shutdown(); err != nil {
		log.Warnf("taskmanager: shutdown: %v", err)
	}
}

// registerDirectoryResync reloads the receiver directory from disk and
// hands the new Arena to the tracker via SetArena.
func registerDirectoryResync(dir *receiverdb.Directory, t *mlat.Tracker, interval time.Duration) {
	_, err := s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			arena, err := dir.LoadArena()
			if err != nil {
				log.Warnf("taskmanager: receiver directory resync failed: %v", err)
				return
			}
			t.SetArena(arena)
			log.Debugf("taskmanager: receiver directory resynced, %d receivers", arena.Len())
		}),
	)
	if err != nil {
		log.Errorf("taskmanager: could not register directory resync job: %v", err)
	}
}

// registerAircraftEviction drops aircraft state for addresses unseen
// for longer than maxIdle, bounding the tracker's memory footprint.
func registerAircraftEviction(tr *aircraft.Tracker, maxIdle time.Duration) {
	_, err := s.NewJob(
		gocron.DurationJob(time.Minute),
		gocron.NewTask(func() {
			n := tr.EvictIdle(maxIdle)
			if n > 0 {
				log.Debugf("taskmanager: evicted %d idle aircraft", n)
			}
		}),
	)
	if err != nil {
		log.Errorf("taskmanager: could not register aircraft eviction job: %v", err)
	}
}
