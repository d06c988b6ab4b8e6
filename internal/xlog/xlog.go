// Copyright 2024 The Ember Authors
// This file is part of Ember.
//
// Ember is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Ember is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Ember. If not, see <http://www.gnu.org/licenses/>.

// Package xlog is the small leveled logger used for VM lifecycle events:
// creation, run completion, suspension and resume, uncaught exceptions,
// and recovered panics. It is never called from the hot dispatch loop.
package xlog

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-stack/stack"
)

// Level is a log verbosity level, ordered the way go-ethereum's logger
// orders them (higher is noisier).
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	case LevelTrace:
		return "TRACE"
	default:
		return "???"
	}
}

// Logger is a named, leveled sink writing to os.Stderr.
type Logger struct {
	name  string
	level Level
	out   *os.File
}

// New returns a Logger tagged with name. The default threshold is
// LevelWarn: a library must stay silent on its happy path unless the
// embedder asks for more.
func New(name string) Logger {
	return Logger{name: name, level: LevelWarn, out: os.Stderr}
}

// SetLevel adjusts the verbosity threshold.
func (l *Logger) SetLevel(lvl Level) { l.level = lvl }

func (l Logger) log(lvl Level, msg string, ctx ...interface{}) {
	if lvl > l.level {
		return
	}
	caller := fmt.Sprintf("%+v", stack.Caller(2))
	fmt.Fprintf(l.out, "%s [%s] %s %s caller=%s", time.Now().UTC().Format(time.RFC3339), lvl, l.name, msg, caller)
	for i := 0; i+1 < len(ctx); i += 2 {
		fmt.Fprintf(l.out, " %v=%s", ctx[i], renderValue(lvl, ctx[i+1]))
	}
	fmt.Fprintln(l.out)
}

// renderValue formats a context value: %v normally, a go-spew deep dump
// at debug and below, where Values/Objects would otherwise print as a
// bare pointer.
func renderValue(lvl Level, v interface{}) string {
	if lvl >= LevelDebug {
		return strings.TrimSpace(spew.Sdump(v))
	}
	return fmt.Sprintf("%v", v)
}

func (l Logger) Error(msg string, ctx ...interface{}) { l.log(LevelError, msg, ctx...) }
func (l Logger) Warn(msg string, ctx ...interface{})  { l.log(LevelWarn, msg, ctx...) }
func (l Logger) Info(msg string, ctx ...interface{})  { l.log(LevelInfo, msg, ctx...) }
func (l Logger) Debug(msg string, ctx ...interface{}) { l.log(LevelDebug, msg, ctx...) }
func (l Logger) Trace(msg string, ctx ...interface{}) { l.log(LevelTrace, msg, ctx...) }
