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

// Package integration is the embedder-facing surface: a thin
// wrapper around package vm's Create/Load/Run/Resume/Retval contract,
// shaped the way a host application actually drives the interpreter
// (load a compiled program, run it, read back a result or a pending
// exception). Registering built-ins/externals against a fresh Engine is
// the host's job and stays out of this package's scope.
package integration

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/emberlang/ember/arena"
	"github.com/emberlang/ember/bytecode"
	"github.com/emberlang/ember/external"
	"github.com/emberlang/ember/internal/xlog"
	"github.com/emberlang/ember/object"
	"github.com/emberlang/ember/value"
	"github.com/emberlang/ember/vm"
)

// ErrInvalidBytecode is returned when a program fails to decode.
var ErrInvalidBytecode = errors.New("ember: invalid bytecode")

// ErrExecutionFailed wraps an uncaught script exception or host-level VM
// error surfaced from Run/Resume.
var ErrExecutionFailed = errors.New("ember: execution failed")

// Engine is one embeddable interpreter instance: a VM plus the
// bookkeeping an embedder needs to load a program, run it, and inspect
// the outcome.
type Engine struct {
	vm  *vm.VM
	log xlog.Logger

	// ID distinguishes this Engine instance in host-side logs and metrics
	// when an embedder runs many of them concurrently (one per contract
	// invocation, one per request, etc.) — nothing in the VM itself
	// consults it.
	ID uuid.UUID
}

// ExecutionResult is what Run/Resume hand back to the embedder: whether
// the script completed, its return value, and — on failure — the
// exception that escaped.
type ExecutionResult struct {
	Success   bool
	RC        vm.RC
	ReturnVal value.Value
	Exception *vm.Exception
}

// Create builds a new Engine with a fresh arena of the given size (0 for
// the arena package's default). The returned Engine has only the root
// object prototype installed; a host wires in String/Array/Function
// prototypes and any externals before calling one of the Load methods.
func Create(arenaMaxBytes int) *Engine {
	a := arena.New(arenaMaxBytes)
	id := uuid.New()
	log := xlog.New("engine")
	log.Info("engine created", "id", id, "arenaMaxBytes", arenaMaxBytes)
	return &Engine{vm: vm.New(a), log: log, ID: id}
}

// VM exposes the underlying interpreter for host wiring (installing
// prototypes, registering externals) that this package intentionally
// does not model itself.
func (e *Engine) VM() *vm.VM { return e.vm }

// LoadBytes decodes raw (a wire-format program) and installs it.
func (e *Engine) LoadBytes(raw []byte) error {
	p, err := bytecode.DecodeProgram(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBytecode, err)
	}
	e.vm.Load(p)
	return nil
}

// LoadFile mmaps path and installs its program, optionally verifying its
// SHA3-256 content hash against expectedHash (nil to skip verification).
func (e *Engine) LoadFile(path string, expectedHash []byte) (*bytecode.File, error) {
	bf, p, digest, err := bytecode.Open(path, expectedHash != nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBytecode, err)
	}
	if expectedHash != nil && !bytesEqual(digest, expectedHash) {
		bf.Close()
		return nil, fmt.Errorf("%w: content hash mismatch", ErrInvalidBytecode)
	}
	e.vm.Load(p)
	return bf, nil
}

// LoadProgram installs an already-built vm.Program directly (the path
// package asm's fixtures and in-process compilers use).
func (e *Engine) LoadProgram(p *vm.Program) { e.vm.Load(p) }

// InstallPrototypes lets the host supply the five built-in prototype
// objects property access consults; Create installs only the root object
// prototype and leaves the other four nil so a minimal Engine never
// pretends to ship a standard library it doesn't have.
func (e *Engine) InstallPrototypes(object_, array, function, str, regexp *object.Object) {
	e.vm.ObjectProto = object_
	e.vm.ArrayProto = array
	e.vm.FuncProto = function
	e.vm.StringProto = str
	e.vm.RegExpProto = regexp
}

// SetLogLevel adjusts lifecycle-log verbosity for the engine and its VM;
// the default is warnings and errors only.
func (e *Engine) SetLogLevel(lvl vm.LogLevel) {
	e.log.SetLevel(lvl)
	e.vm.SetLogLevel(lvl)
}

// RegisterExternal installs a host descriptor tree into the given global
// slot, making it addressable by compiled code.
func (e *Engine) RegisterExternal(slot uint32, d *external.Descriptor) value.Value {
	return e.vm.RegisterExternal(slot, d)
}

// Run executes the loaded program to completion, to RCAgain (a pending
// native round-trip the host must service before calling Resume), or to
// an uncaught exception.
func (e *Engine) Run() ExecutionResult {
	e.log.Info("run starting", "id", e.ID)
	return e.drive(e.vm.Run())
}

// Resume continues after a previous RCAgain.
func (e *Engine) Resume() ExecutionResult {
	e.log.Info("resume starting", "id", e.ID)
	return e.drive(e.vm.Resume())
}

func (e *Engine) drive(rc vm.RC, err error) ExecutionResult {
	res := ExecutionResult{RC: rc, ReturnVal: e.vm.Retval}
	if err != nil {
		if exc, ok := err.(*vm.Exception); ok {
			e.log.Warn("run ended with uncaught exception", "id", e.ID)
			res.Exception = exc
			return res
		}
		e.log.Error("run ended with vm error", "id", e.ID, "error", err)
		res.Exception = &vm.Exception{Value: value.String([]byte(err.Error()), len(err.Error()))}
		return res
	}
	res.Success = rc == vm.RCDone
	e.log.Info("run returned", "id", e.ID, "rc", rc, "success", res.Success)
	return res
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
