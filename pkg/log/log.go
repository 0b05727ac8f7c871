// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package log provides a simple way of logging with different levels.
// Time/Date are not logged by default (systemd adds them for us); pass
// '--logdate true' or call SetLogDateTime to enable them.
//
// Uses these prefixes: https://www.freedesktop.org/software/systemd/man/sd-daemon.html
package log

import (
	"fmt"
	"io"
	"log"
	"os"
)

type level int

const (
	levelDebug level = iota
	levelInfo
	levelNote
	levelWarn
	levelError
	levelCrit
	numLevels
)

var levelNames = [numLevels]string{"debug", "info", "notice", "warn", "err", "crit"}

var prefixes = [numLevels]string{
	levelDebug: "<7>[DEBUG]    ",
	levelInfo:  "<6>[INFO]     ",
	levelNote:  "<5>[NOTICE]   ",
	levelWarn:  "<4>[WARNING]  ",
	levelError: "<3>[ERROR]    ",
	levelCrit:  "<2>[CRITICAL] ",
}

var flagBits = [numLevels]int{
	levelDebug: 0,
	levelInfo:  0,
	levelNote:  log.Lshortfile,
	levelWarn:  log.Lshortfile,
	levelError: log.Llongfile,
	levelCrit:  log.Llongfile,
}

type logger struct {
	plain   *log.Logger
	timed   *log.Logger
	discard bool
}

var loggers [numLevels]*logger
var logDateTime bool

func init() {
	for lvl := level(0); lvl < numLevels; lvl++ {
		loggers[lvl] = newLogger(os.Stderr, lvl)
	}
}

func newLogger(w io.Writer, lvl level) *logger {
	return &logger{
		plain: log.New(w, prefixes[lvl], flagBits[lvl]),
		timed: log.New(w, prefixes[lvl], log.LstdFlags|flagBits[lvl]),
	}
}

func (l *logger) output(s string) {
	if l.discard {
		return
	}
	if logDateTime {
		l.timed.Output(3, s)
	} else {
		l.plain.Output(3, s)
	}
}

/* CONFIG */

// SetLogLevel silences every level below lvl by setting its discard flag.
// Accepts: "debug", "info", "notice", "warn", "err"/"fatal", "crit".
func SetLogLevel(lvl string) {
	cutoff := int(levelDebug)
	switch lvl {
	case "crit":
		cutoff = int(levelCrit)
	case "err", "fatal":
		cutoff = int(levelError)
	case "warn":
		cutoff = int(levelWarn)
	case "notice":
		cutoff = int(levelNote)
	case "info":
		cutoff = int(levelInfo)
	case "debug":
		cutoff = int(levelDebug)
	default:
		fmt.Printf("pkg/log: Flag 'loglevel' has invalid value %#v\npkg/log: Will use default loglevel 'debug'\n", lvl)
	}

	for i := range loggers {
		loggers[i].discard = i < cutoff
	}
}

func SetLogDateTime(logdate bool) {
	logDateTime = logdate
}

// SetOutput redirects the named level ("debug".."crit") to w, keeping the
// level's discard flag.
func SetOutput(lvl string, w io.Writer) {
	for i, name := range levelNames {
		if name == lvl {
			discard := loggers[i].discard
			loggers[i] = newLogger(w, level(i))
			loggers[i].discard = discard
			return
		}
	}
}

/* PRINT */

func printStr(v ...interface{}) string { return fmt.Sprint(v...) }

func Print(v ...interface{}) { Info(v...) }
func Debug(v ...interface{}) { loggers[levelDebug].output(printStr(v...)) }
func Info(v ...interface{})  { loggers[levelInfo].output(printStr(v...)) }
func Note(v ...interface{})  { loggers[levelNote].output(printStr(v...)) }
func Warn(v ...interface{})  { loggers[levelWarn].output(printStr(v...)) }
func Error(v ...interface{}) { loggers[levelError].output(printStr(v...)) }
func Crit(v ...interface{})  { loggers[levelCrit].output(printStr(v...)) }

// Panic writes an error log, then panics.
func Panic(v ...interface{}) {
	Error(v...)
	panic("Panic triggered ...")
}

// Fatal writes an error log and stops the application.
func Fatal(v ...interface{}) {
	Error(v...)
	os.Exit(1)
}

/* PRINT FORMAT */

func printfStr(format string, v ...interface{}) string { return fmt.Sprintf(format, v...) }

func Printf(format string, v ...interface{}) { Infof(format, v...) }
func Debugf(format string, v ...interface{}) { loggers[levelDebug].output(printfStr(format, v...)) }
func Infof(format string, v ...interface{})  { loggers[levelInfo].output(printfStr(format, v...)) }
func Notef(format string, v ...interface{})  { loggers[levelNote].output(printfStr(format, v...)) }
func Warnf(format string, v ...interface{})  { loggers[levelWarn].output(printfStr(format, v...)) }
func Errorf(format string, v ...interface{}) { loggers[levelError].output(printfStr(format, v...)) }
func Critf(format string, v ...interface{})  { loggers[levelCrit].output(printfStr(format, v...)) }

func Panicf(format string, v ...interface{}) {
	Errorf(format, v...)
	panic("Panic triggered ...")
}

func Fatalf(format string, v ...interface{}) {
	Errorf(format, v...)
	os.Exit(1)
}
