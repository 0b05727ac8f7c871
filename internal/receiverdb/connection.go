// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package receiverdb is the receiver directory: the persistent catalog of
// known receivers (user id, ECEF position, privacy flag) an Arena is
// built from at startup and on reload.
package receiverdb

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/adsbnet/mlat-tracker/pkg/log"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const supportedVersion uint = 1

//go:embed migrations/sqlite3/*
var migrationFiles embed.FS

var (
	connOnce     sync.Once
	connInstance *sqlx.DB
)

// Connect opens the sqlite receiver directory at path, creating it if
// absent, and checks its schema version. Only one connection is ever
// opened per process; sqlite does not benefit from more (identical
// reasoning to the teacher's job database connection).
func Connect(path string) *sqlx.DB {
	connOnce.Do(func() {
		dbHandle, err := sqlx.Open("sqlite3", fmt.Sprintf("%s?_foreign_keys=on", path))
		if err != nil {
			log.Fatal(err)
		}
		dbHandle.SetMaxOpenConns(1)

		connInstance = dbHandle
		checkVersion(dbHandle.DB)
	})
	return connInstance
}

func checkVersion(db *sql.DB) {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		log.Fatal(err)
	}
	d, err := iofs.New(migrationFiles, "migrations/sqlite3")
	if err != nil {
		log.Fatal(err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite3", driver)
	if err != nil {
		log.Fatal(err)
	}

	v, _, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		log.Fatal(err)
	}

	if v < supportedVersion {
		log.Warnf("receiver directory at version %d, migrating to %d", v, supportedVersion)
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			log.Fatal(err)
		}
	}
}
