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

// Package frame implements the activation-record chain: a singly-linked
// list growing toward the caller, four indexed scopes per frame, and a
// per-frame exception-handler stack.
package frame

import "github.com/emberlang/ember/value"

// Scope tags the four indexed scopes an operand index's low bits select.
type Scope uint8

const (
	ScopeGlobal Scope = iota
	ScopeCalleeArguments
	ScopeArguments
	ScopeLocal
)

// Handler is one entry of a frame's exception-handler stack: a
// catch/finally address plus the link to the previous (shadowed) handler.
type Handler struct {
	CatchAddr uint32
	Next      *Handler
}

// Flags bundles the frame-level boolean flags a frame carries alongside
// its scope bases and handler stack.
type Flags struct {
	Native        bool
	Ctor          bool
	First         bool // this frame was individually allocated (vs. inlined)
	Skip          bool
	Reentrant     bool
	TrapReference bool // INCDEC trap: remember the reference operand for writeback
}

// Frame is one activation record.
type Frame struct {
	Prev *Frame

	// Scope bases: index of this frame's first Arguments/Local slot within
	// the VM's flat per-scope arrays. Saved/restored verbatim across a
	// call, so the caller's own scope bases are untouched by anything the
	// callee does.
	ArgsBase  int
	LocalBase int

	ReturnAddr uint32 // bytecode offset to resume in the caller

	// Return destination: where the callee's result is written back into
	// the caller's scope once it returns. HasReturnDest is false
	// for the outermost frame, which has no caller to write into.
	ReturnDestScope Scope
	ReturnDestIndex uint32
	HasReturnDest   bool

	Handlers *Handler
	Flags    Flags

	// ReentryCount tracks how many times this frame has been re-entered
	// after an AGAIN or a trap conversion attempt, for native frames and
	// trap micro-programs.
	ReentryCount int

	// TrapSlots holds the up-to-three scratch values a synthetic trap frame
	// needs (the operand(s) being converted); TrapRestart holds the restart
	// address.
	TrapSlots   [3]value.Value
	TrapRestart uint32

	// FuncName identifies which compiled function this frame is executing,
	// for diagnostics; the interpreter does not need it for dispatch.
	FuncName string
}

// PushHandler installs a new exception handler, shadowing any previous
// one; TRY_START calls this.
func (f *Frame) PushHandler(catchAddr uint32) {
	f.Handlers = &Handler{CatchAddr: catchAddr, Next: f.Handlers}
}

// PopHandler restores the previously shadowed handler, installed by
// TRY_END once its protected block completes without an exception.
func (f *Frame) PopHandler() {
	if f.Handlers != nil {
		f.Handlers = f.Handlers.Next
	}
}

// TopHandler returns the current handler, or nil if none is installed.
func (f *Frame) TopHandler() *Handler { return f.Handlers }

// Stack is the frame chain, growing toward the caller. The VM keeps
// the top of stack; Stack itself is just the push/pop discipline and does
// not read a frame's Flags.
type Stack struct {
	top *Frame
}

// Top returns the current top frame, or nil if the stack is empty.
func (s *Stack) Top() *Frame { return s.top }

// Push installs f as the new top frame, linking it to the previous top.
func (s *Stack) Push(f *Frame) {
	f.Prev = s.top
	s.top = f
}

// Pop removes and returns the top frame. If the frame is flagged First, the
// caller should stop referencing it afterward (it is eligible for
// reclamation); Pop itself does not free anything since frames are
// ordinary Go-GC'd values here.
func (s *Stack) Pop() *Frame {
	f := s.top
	if f != nil {
		s.top = f.Prev
	}
	return f
}

// Empty reports whether the stack has no frames.
func (s *Stack) Empty() bool { return s.top == nil }

// Depth reports the number of frames currently on the stack — used only by
// diagnostics/tests, never by dispatch.
func (s *Stack) Depth() int {
	n := 0
	for f := s.top; f != nil; f = f.Prev {
		n++
	}
	return n
}
