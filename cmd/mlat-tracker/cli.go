// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import "flag"

var (
	flagInit, flagServer, flagGops, flagVersion, flagLogDateTime bool
	flagConfigFile, flagLogLevel                                 string
)

func cliInit() {
	flag.BoolVar(&flagInit, "init", false, "Setup var directory, receiver directory database and config.json")
	flag.BoolVar(&flagServer, "server", false, "Start the tracker, continues running after initialization and argument handling")
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.BoolVar(&flagVersion, "version", false, "Show version information and exit")
	flag.BoolVar(&flagLogDateTime, "logdate", false, "Set this flag to add date and time to log messages")
	flag.StringVar(&flagConfigFile, "config", "./config.json", "Specify alternative path to `config.json`")
	flag.StringVar(&flagLogLevel, "loglevel", "info", "Sets the logging level: `[debug, info (default), warn, err, crit]`")
	flag.Parse()
}
