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

// Package vm implements the bytecode dispatch loop, the property-access
// protocol, function call/return discipline, and implicit-conversion traps.
// It depends on value, arena, object, and frame, and is the one package the
// embedder (package integration) talks to directly.
package vm

import (
	"fmt"

	"github.com/emberlang/ember/arena"
	"github.com/emberlang/ember/external"
	"github.com/emberlang/ember/frame"
	"github.com/emberlang/ember/internal/xlog"
	"github.com/emberlang/ember/object"
	"github.com/emberlang/ember/value"
)

// RC is the dispatch loop's return-code protocol: every operation
// handler reports what the loop should do next rather than driving pc
// itself, except for control-flow ops which also set pc directly.
type RC int

const (
	// RCAdvance moves pc to the next instruction.
	RCAdvance RC = iota
	// RCJump means the handler already set vm.pc to the desired target.
	RCJump
	// RCTrap is the implicit-conversion trap code. No handler in this
	// package returns it: arithmetic and comparison ops convert their
	// operands synchronously through toPrimitive/callSync (trap.go). The
	// loops treat it like RCJump.
	RCTrap
	// RCError means an exception is in flight; vm.pendingException holds it.
	RCError
	// RCDone means the top level frame returned or HALT executed.
	RCDone
	// RCAgain means execution must suspend (a native call is pending
	// external completion); Resume continues from the same pc.
	RCAgain
)

// maxReentry bounds trap and native-call reentrancy: a capped reentry
// counter prevents a pathological valueOf from looping forever.
const maxReentry = 8

// VM is one interpreter instance: its own global scope, argument/local
// stacks, frame chain, and arena. Nothing here is safe for concurrent use
// from multiple goroutines; a VM is single-threaded and cooperative.
type VM struct {
	Program *Program

	Global []value.Value
	args   []value.Value
	locals []value.Value

	// calleeArgs stages the arguments of the call about to happen. CALL
	// consumes exactly NArgs of these and clears the staging area.
	calleeArgs []value.Value

	frames frame.Stack
	pc     uint32

	Arena *arena.Arena

	ObjectProto *object.Object
	ArrayProto  *object.Object
	FuncProto   *object.Object
	StringProto *object.Object
	RegExpProto *object.Object

	pendingException     value.Value
	pendingExceptionKind error
	hasException         bool

	// trapDepth bounds nested implicit-conversion calls: two
	// objects whose valueOf/toString call back into each other would
	// otherwise recurse the Go call stack without limit.
	trapDepth int

	Retval value.Value

	enumStates map[Operand]*enumState

	// constCache memoizes internedConst's per-index result so LOAD_CONST
	// pays the intern-cache lookup once per constant, not once per
	// execution.
	constCache    []value.Value
	constResolved []bool

	log xlog.Logger
}

// New creates a VM ready to load a Program. It installs only a root
// ObjectProto; the other prototype fields stay nil until a host assigns
// them (directly, or through package integration's
// Engine.InstallPrototypes). Registering built-ins is out of scope for
// this package.
func New(a *arena.Arena) *VM {
	if a == nil {
		a = arena.New(0)
	}
	objectProto := object.NewPrototype(nil)
	log := xlog.New("vm")
	log.Info("vm created", "arena", a != nil)
	return &VM{
		Arena:       a,
		Global:      make([]value.Value, 0, 64),
		args:        make([]value.Value, 0, 256),
		locals:      make([]value.Value, 0, 256),
		calleeArgs:  make([]value.Value, 0, 16),
		ObjectProto: objectProto,
		log:         log,
	}
}

// Load installs p as the program to run and resets the frame chain.
func (vm *VM) Load(p *Program) {
	vm.Program = p
	vm.pc = p.EntryPoint
	vm.constCache = make([]value.Value, len(p.Consts))
	vm.constResolved = make([]bool, len(p.Consts))
	vm.frames = frame.Stack{}
	top := &frame.Frame{ArgsBase: 0, LocalBase: 0, Flags: frame.Flags{First: true}}
	vm.ensureScopeCapacity(top)
	vm.frames.Push(top)
}

func (vm *VM) ensureScopeCapacity(f *frame.Frame) {
	for len(vm.args) < f.ArgsBase+16 {
		vm.args = append(vm.args, value.Undef())
	}
	for len(vm.locals) < f.LocalBase+16 {
		vm.locals = append(vm.locals, value.Undef())
	}
}

// Run executes from the current pc until RCDone, RCAgain, or an
// unhandled RCError. It is the embedder's entry point and also
// what Resume calls after a suspended native/trap frame is ready to
// continue. A panic escaping a handler (an internal bug, not a thrown
// script exception) is recovered, logged, and reported as an error
// rather than crashing the embedder.
func (vm *VM) Run() (rc RC, err error) {
	defer func() {
		if r := recover(); r != nil {
			vm.log.Error("vm panic recovered", "pc", vm.pc, "recover", r)
			rc, err = RCError, fmt.Errorf("vm: internal panic at pc %d: %v", vm.pc, r)
		}
	}()
	for {
		if vm.pc >= uint32(len(vm.Program.Instructions)) {
			return RCDone, nil
		}
		ins := vm.Program.Instructions[vm.pc]
		rc, err := vm.dispatch(ins)
		switch rc {
		case RCAdvance:
			vm.pc++
		case RCJump:
			// pc already updated by the handler.
		case RCTrap:
			// No handler returns RCTrap; like RCJump, pc is left as is.
		case RCError:
			if !vm.unwind() {
				vm.log.Warn("uncaught exception", "pc", vm.pc)
				return RCError, vm.exceptionError()
			}
		case RCDone:
			vm.log.Info("run complete", "pc", vm.pc)
			return RCDone, nil
		case RCAgain:
			vm.log.Debug("run suspended", "pc", vm.pc)
			return RCAgain, nil
		}
		if err != nil {
			return rc, err
		}
	}
}

// LogLevel re-exports the lifecycle logger's verbosity scale so embedders
// outside this module can name it (xlog itself is internal).
type LogLevel = xlog.Level

const (
	LogError = xlog.LevelError
	LogWarn  = xlog.LevelWarn
	LogInfo  = xlog.LevelInfo
	LogDebug = xlog.LevelDebug
	LogTrace = xlog.LevelTrace
)

// SetLogLevel adjusts how chatty the VM's lifecycle logging is; the
// default stays at warnings and errors only.
func (vm *VM) SetLogLevel(lvl LogLevel) { vm.log.SetLevel(lvl) }

// RegisterExternal wraps d as an External-tagged value and installs it in
// the given global scope slot, where compiled code addresses it like any
// other global. The value is also returned so a host can embed the same
// descriptor elsewhere (e.g. as another external's sub-table entry).
func (vm *VM) RegisterExternal(slot uint32, d *external.Descriptor) value.Value {
	v := value.Heap(value.External, d)
	vm.setLoc(Operand{Scope: frame.ScopeGlobal, Index: slot}, v)
	return v
}

// Resume continues execution after a previous RCAgain by re-dispatching
// the instruction at pc. For a native that returned ErrAgain that is the
// CALL itself, which re-invokes the native with the re-staged arguments;
// see call.go.
func (vm *VM) Resume() (RC, error) {
	vm.log.Debug("resume", "pc", vm.pc)
	return vm.Run()
}

func (vm *VM) dispatch(ins Instruction) (RC, error) {
	h, ok := handlers[ins.Op]
	if !ok {
		return RCError, vm.throwTypeErr(fmt.Sprintf("unimplemented opcode %s", ins.Op))
	}
	return h(vm, ins)
}

// loc reads the value at a scope-tagged operand.
func (vm *VM) loc(op Operand) value.Value {
	switch op.Scope {
	case frame.ScopeGlobal:
		if int(op.Index) < len(vm.Global) {
			return vm.Global[op.Index]
		}
		return value.Undef()
	case frame.ScopeArguments:
		i := vm.frames.Top().ArgsBase + int(op.Index)
		if i < len(vm.args) {
			return vm.args[i]
		}
		return value.Undef()
	case frame.ScopeCalleeArguments:
		if int(op.Index) < len(vm.calleeArgs) {
			return vm.calleeArgs[op.Index]
		}
		return value.Undef()
	case frame.ScopeLocal:
		i := vm.frames.Top().LocalBase + int(op.Index)
		if i < len(vm.locals) {
			return vm.locals[i]
		}
		return value.Undef()
	default:
		return value.Undef()
	}
}

// setLoc writes v to a scope-tagged operand, growing the backing slice if
// necessary (ensureScopeCapacity pre-grows 16 slots per frame; this
// covers indices past that).
func (vm *VM) setLoc(op Operand, v value.Value) {
	switch op.Scope {
	case frame.ScopeGlobal:
		for int(op.Index) >= len(vm.Global) {
			vm.Global = append(vm.Global, value.Undef())
		}
		vm.Global[op.Index] = v
	case frame.ScopeArguments:
		i := vm.frames.Top().ArgsBase + int(op.Index)
		for i >= len(vm.args) {
			vm.args = append(vm.args, value.Undef())
		}
		vm.args[i] = v
	case frame.ScopeCalleeArguments:
		for int(op.Index) >= len(vm.calleeArgs) {
			vm.calleeArgs = append(vm.calleeArgs, value.Undef())
		}
		vm.calleeArgs[op.Index] = v
	case frame.ScopeLocal:
		i := vm.frames.Top().LocalBase + int(op.Index)
		for i >= len(vm.locals) {
			vm.locals = append(vm.locals, value.Undef())
		}
		vm.locals[i] = v
	}
}

// setRetval writes the instruction's result to its first operand whenever
// the opcode declares HasRetval: the result destination, which is
// always the first operand, is overwritten with v.
func (vm *VM) setRetval(ins Instruction, v value.Value) {
	vm.Retval = v
	if ins.HasRetval {
		vm.setLoc(ins.Operands[0], v)
	}
}

// newString builds a String value from freshly computed bytes — a
// concatenation or toString/valueOf conversion result, as opposed to a
// compiled constant. Short results use the inline layout same as
// value.String; results too large to inline get a refcounted long-string
// record (retain starting at 1) rather than the permanent external-owner
// record value.String builds, so runtime strings carry the retain-count
// bookkeeping constants are exempt from.
func (vm *VM) newString(b []byte, codepoints int) value.Value {
	if len(b) <= value.InlineCap {
		return value.ShortString(b, codepoints)
	}
	rec := arena.NewOwnedLongString(b, codepoints)
	return value.LongStringValue(rec, len(b), codepoints)
}
