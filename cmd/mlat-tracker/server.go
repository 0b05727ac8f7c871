// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/adsbnet/mlat-tracker/internal/config"
	"github.com/adsbnet/mlat-tracker/internal/runtimeEnv"
	"github.com/adsbnet/mlat-tracker/pkg/log"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	router *mux.Router
	server *http.Server
)

// serverInit builds the admin mux: liveness, readiness and a Prometheus
// scrape endpoint. This process carries no user-facing web UI; receiver
// connections and their transport are handled upstream of this module
// (spec.md "Non-goals").
func serverInit(healthy func() bool) {
	router = mux.NewRouter()

	router.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		if !healthy() {
			rw.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		rw.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Use(handlers.CompressHandler)
	router.Use(handlers.RecoveryHandler(handlers.PrintRecoveryStack(true)))
}

func serverStart() {
	logged := handlers.CustomLoggingHandler(io.Discard, router, func(_ io.Writer, params handlers.LogFormatterParams) {
		log.Debugf("%s %s (%d, %.02fkb, %dms)",
			params.Request.Method, params.URL.RequestURI(),
			params.StatusCode, float32(params.Size)/1024,
			time.Since(params.TimeStamp).Milliseconds())
	})

	server = &http.Server{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		Handler:      logged,
		Addr:         config.Keys.Addr,
	}

	listener, err := net.Listen("tcp", config.Keys.Addr)
	if err != nil {
		log.Fatalf("starting admin http listener failed: %v", err)
	}

	// The listener must be bound before dropping privileges in case
	// config.Keys.Addr names a privileged port.
	if err := runtimeEnv.DropPrivileges(config.Keys.User, config.Keys.Group); err != nil {
		log.Fatalf("dropping privileges failed: %s", err.Error())
	}

	log.Printf("admin http listening at %s", config.Keys.Addr)
	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		log.Fatalf("admin http server failed: %v", err)
	}
}

func serverShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(ctx)
}
