// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"os"

	"github.com/adsbnet/mlat-tracker/internal/receiverdb"
	"github.com/adsbnet/mlat-tracker/pkg/log"
)

const configString = `
{
    "addr": ":8090",
    "mlat-delay-ms": 200,
    "max-group": 40,
    "resolve-interval-ms": 2000,
    "resolve-backoff-ms": 2000,
    "min-alt": -1500,
    "max-alt": 50000,
    "c-air": 299700000,
    "blacklist-file": "./var/blacklist.txt",
    "pseudorange-file": "./var/pseudorange.jsonl",
    "receiver-db": "./var/receivers.db"
}
`

func initEnv() {
	if _, err := os.Stat("var"); err == nil {
		log.Fatal("directory ./var already exists, refusing to overwrite an existing installation")
	}

	if err := os.WriteFile("config.json", []byte(configString), 0o644); err != nil {
		log.Fatalf("could not write default ./config.json: %s", err.Error())
	}

	if err := os.Mkdir("var", 0o755); err != nil {
		log.Fatalf("could not create ./var: %s", err.Error())
	}

	db := receiverdb.Connect("./var/receivers.db")
	db.Close()
	log.Info("initialized ./var, config.json and the receiver directory database")
}
