// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"github.com/adsbnet/mlat-tracker/internal/aircraft"
	"github.com/adsbnet/mlat-tracker/internal/clocksync"
	"github.com/adsbnet/mlat-tracker/internal/config"
	"github.com/adsbnet/mlat-tracker/internal/decode"
	"github.com/adsbnet/mlat-tracker/internal/mlat"
	"github.com/adsbnet/mlat-tracker/internal/mlatoutput"
	"github.com/adsbnet/mlat-tracker/internal/mlatstats"
	"github.com/adsbnet/mlat-tracker/internal/receiverdb"
	"github.com/adsbnet/mlat-tracker/internal/runtimeEnv"
	"github.com/adsbnet/mlat-tracker/internal/solver"
	"github.com/adsbnet/mlat-tracker/internal/taskmanager"
	"github.com/adsbnet/mlat-tracker/pkg/log"
	"github.com/adsbnet/mlat-tracker/pkg/nats"
	"github.com/google/gops/agent"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	version string = "development"
	commit  string = "in-dev"
	date    string = "unknown"
)

var tracker *mlat.Tracker

func main() {
	cliInit()

	if flagVersion {
		fmt.Printf("mlat-tracker %s (%s, built %s)\n", version, commit, date)
		return
	}

	log.SetLogLevel(flagLogLevel)
	if flagLogDateTime {
		log.SetLogDateTime(true)
	}

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	if err := runtimeEnv.LoadEnv("./.env"); err != nil && !os.IsNotExist(err) {
		log.Fatalf("parsing './.env' failed: %s", err.Error())
	}

	if flagInit {
		initEnv()
		return
	}

	config.Init(flagConfigFile)
	log.SetLogLevel(config.Keys.LogLevel)
	if config.Keys.LogDate {
		log.SetLogDateTime(true)
	}

	if config.Keys.Nats != nil {
		if err := nats.Init(config.Keys.Nats); err != nil {
			log.Warnf("nats config init failed: %v", err)
		}
		nats.Connect()
	}

	dbHandle := receiverdb.Connect(config.Keys.ReceiverDB)
	directory := receiverdb.NewDirectory(dbHandle)
	arena, err := directory.LoadArena()
	if err != nil {
		log.Fatalf("loading receiver directory failed: %v", err)
	}
	log.Infof("loaded %d receivers", arena.Len())

	stats := mlatstats.NewCollector(prometheus.DefaultRegisterer)
	aircraftTracker := aircraft.New()

	var recorder *mlat.PseudorangeRecorder
	if config.Keys.PseudorangeFile != "" {
		recorder, err = mlat.NewPseudorangeRecorder(config.Keys.PseudorangeFile)
		if err != nil {
			log.Warnf("opening pseudorange file failed: %v", err)
		}
	}

	tracker = mlat.New(config.Keys.MlatConfig(), mlat.Deps{
		Arena:           arena,
		ClockTracker:    clocksync.Fixture{},
		Decoder:         decode.Fixture{},
		Solver:          solver.Fixture{},
		AircraftTracker: aircraftTracker,
		Stats:           stats,
		Pseudorange:     recorder,
	})
	tracker.ReadBlacklist(config.Keys.BlacklistFile)

	if client := nats.GetClient(); client != nil {
		tracker.AddOutputHandler(mlatoutput.NewHandler(client))
	}

	taskmanager.Start(taskmanager.Deps{
		Directory:       directory,
		Tracker:         tracker,
		Aircraft:        aircraftTracker,
		DirectoryResync: time.Minute,
		AircraftMaxIdle: 10 * time.Minute,
	})

	if !flagServer {
		log.Info("initialization complete, -server not given, exiting")
		taskmanager.Shutdown()
		return
	}

	// The transport that accepts receiver connections and calls
	// tracker.ReceiverMlat per observation lives upstream of this
	// process (spec.md "Non-goals" — receiver connection handling);
	// this admin mux only exposes health and metrics.
	serverInit(func() bool { return true })

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		serverStart()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for sig := range sigs {
			if sig == syscall.SIGHUP {
				log.Info("SIGHUP received, reloading blacklist and reopening pseudorange log")
				tracker.ReadBlacklist(config.Keys.BlacklistFile)
				if err := tracker.ReopenPseudorange(); err != nil {
					log.Warnf("reopening pseudorange file failed: %v", err)
				}
				continue
			}

			log.Info("shutting down")
			runtimeEnv.SystemdNotifiy(false, "shutting down")
			taskmanager.Shutdown()
			serverShutdown()
			return
		}
	}()

	runtimeEnv.SystemdNotifiy(true, "running")
	if os.Getenv("GOGC") == "" {
		debug.SetGCPercent(25)
	}
	wg.Wait()
	log.Info("graceful shutdown complete")
}
