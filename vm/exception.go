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

package vm

import (
	"errors"
	"fmt"

	"github.com/emberlang/ember/value"
)

// The five canonical error identifiers. Every thrown script exception
// carries one of these as its class, surfaced to the embedder via
// Exception.Kind when the script value itself doesn't make it through
// unwinding (e.g. a memory exhaustion raised by the host).
var (
	ErrSyntax    = errors.New("SyntaxError")
	ErrReference = errors.New("ReferenceError")
	ErrType      = errors.New("TypeError")
	ErrRange     = errors.New("RangeError")
	ErrMemory    = errors.New("MemoryError")
)

// Exception is what Run/Resume return when a script exception propagates
// past the outermost frame unhandled. Value is the thrown value
// exactly as script code constructed it; Kind is the closest of the five
// sentinels when the value was raised by a built-in trap rather than a
// user `throw`.
type Exception struct {
	Value value.Value
	Kind  error
}

func (e *Exception) Error() string {
	if e.Kind != nil {
		return fmt.Sprintf("%s: %s", e.Kind, exceptionMessage(e.Value))
	}
	return exceptionMessage(e.Value)
}

func exceptionMessage(v value.Value) string {
	if v.Tag() == value.StringTag {
		return string(v.Bytes())
	}
	return v.Tag().String()
}

// throw stages v as the in-flight exception and reports RCError so the
// dispatch loop runs unwind.
func (vm *VM) throw(v value.Value) (RC, error) {
	vm.pendingException = v
	vm.pendingExceptionKind = nil
	vm.hasException = true
	return RCError, nil
}

func (vm *VM) throwKind(kind error, msg string) (RC, error) {
	rc, err := vm.throw(value.String([]byte(msg), len(msg)))
	vm.pendingExceptionKind = kind
	return rc, err
}

func (vm *VM) throwType(msg string) (RC, error)      { return vm.throwKind(ErrType, msg) }
func (vm *VM) throwReference(msg string) (RC, error) { return vm.throwKind(ErrReference, msg) }
func (vm *VM) throwRange(msg string) (RC, error)     { return vm.throwKind(ErrRange, msg) }
func (vm *VM) throwSyntax(msg string) (RC, error)    { return vm.throwKind(ErrSyntax, msg) }

// throwTypeErr stages a TypeError exactly as throwType does and returns
// only the error half of its result, which is nil: the exception travels
// through vm.pendingException, and the caller pairs it with RCError so
// the loop unwinds (dispatch does this for an unimplemented opcode).
func (vm *VM) throwTypeErr(msg string) error {
	_, err := vm.throwType(msg)
	return err
}

// exceptionError packages the in-flight exception as a returnable error
// once unwind finds no handler anywhere on the frame stack.
func (vm *VM) exceptionError() error {
	return &Exception{Value: vm.pendingException, Kind: vm.pendingExceptionKind}
}

// unwind implements try/catch/finally discipline: walk frames from the top,
// looking for an installed handler. A frame with no handler is popped
// outright (its scope slots simply become unreachable; nothing executes on
// the way out beyond that). A finally address installed as a handler (see
// opCatch) receives control like a catch; FINALLY itself does not re-raise,
// so the exception stays pending until a later CATCH picks it up. Returns
// true if a handler was found and pc now
// points at it with the exception value ready to be picked up by the CATCH
// opcode.
func (vm *VM) unwind() bool {
	return vm.unwindAbove(0)
}

// unwindAbove is unwind bounded to frames strictly above floor: it never
// pops or inspects the frame at depth == floor or below. callSync's
// runSyncLoop uses this so a scripted valueOf/toString conversion that
// throws without catching its own exception reports that failure back to
// toPrimitive as a Go error instead of unwind() reaching past the
// synthetic call into the real caller's frames and jumping pc into one of
// its handlers — which would pop frames the outer Run loop still expects
// to find in place and leave the frame stack and pc inconsistent.
func (vm *VM) unwindAbove(floor int) bool {
	for vm.frames.Depth() > floor {
		top := vm.frames.Top()
		if h := top.TopHandler(); h != nil {
			top.PopHandler()
			vm.pc = h.CatchAddr
			return true
		}
		vm.frames.Pop()
	}
	return false
}
