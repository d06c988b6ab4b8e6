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
	"testing"

	"github.com/emberlang/ember/frame"
	"github.com/emberlang/ember/object"
	"github.com/emberlang/ember/value"
)

// newTestVM builds a VM with every prototype wired, the way package
// integration's Create+InstallPrototypes would for a host embedding this
// core.
func newTestVM() *VM {
	v := New(nil)
	v.ArrayProto = object.NewPrototype(v.ObjectProto)
	v.FuncProto = object.NewPrototype(v.ObjectProto)
	v.StringProto = object.NewPrototype(v.ObjectProto)
	v.RegExpProto = object.NewPrototype(v.ObjectProto)
	return v
}

func loc(scope frame.Scope, idx uint32) Operand {
	return Operand{Scope: scope, Index: idx}
}

func raw(n int32) Operand {
	return Operand{Raw: n}
}

func runToCompletion(t *testing.T, v *VM, p *Program) (RC, error) {
	t.Helper()
	v.Load(p)
	return v.Run()
}

// ---- Opcode metadata --------------------------------------------------------

func TestOpcodeStringKnownAndUnknown(t *testing.T) {
	if got := OpAdd.String(); got != "ADD" {
		t.Errorf("OpAdd.String() = %q; want ADD", got)
	}
	if got := Opcode(255).String(); got != "UNKNOWN" {
		t.Errorf("Opcode(255).String() = %q; want UNKNOWN", got)
	}
}

func TestLookupRoundTrips(t *testing.T) {
	for op := Opcode(0); op < opcodeCount; op++ {
		name := op.Name()
		got, ok := Lookup(name)
		if !ok || got != op {
			t.Errorf("Lookup(%q) = (%v, %v); want (%v, true)", name, got, ok, op)
		}
	}
}

func TestOperandShapesMatchTable(t *testing.T) {
	count, shapes := OperandShapes(OpAdd)
	if count != 3 {
		t.Fatalf("OperandShapes(ADD) count = %d; want 3", count)
	}
	for _, s := range shapes {
		if s != OperandShapeLoc {
			t.Errorf("ADD operand shape = %v; want OperandShapeLoc", s)
		}
	}
	_, jumpShapes := OperandShapes(OpJump)
	if jumpShapes[0] != OperandShapeRaw {
		t.Errorf("JUMP operand[0] shape = %v; want OperandShapeRaw", jumpShapes[0])
	}
}

// ---- Dispatch loop: arithmetic and control flow -----------------------------

func TestLoadConstMoveAndHalt(t *testing.T) {
	v := newTestVM()
	p := &Program{
		Consts: []value.Value{value.Num(42)},
		Instructions: []Instruction{
			{Op: OpLoadConst, Operands: [3]Operand{loc(frame.ScopeLocal, 0), raw(0)}, HasRetval: true},
			{Op: OpMove, Operands: [3]Operand{loc(frame.ScopeLocal, 1), loc(frame.ScopeLocal, 0)}, HasRetval: true},
			{Op: OpHalt, Operands: [3]Operand{loc(frame.ScopeLocal, 1)}},
		},
	}
	rc, err := runToCompletion(t, v, p)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if rc != RCDone {
		t.Fatalf("Run() rc = %v; want RCDone", rc)
	}
	if v.Retval.Float64() != 42 {
		t.Errorf("Retval = %v; want 42", v.Retval)
	}
}

func TestArithmeticOpcodes(t *testing.T) {
	cases := []struct {
		op   Opcode
		a, b float64
		want float64
	}{
		{OpSub, 10, 3, 7},
		{OpMul, 6, 7, 42},
		{OpDiv, 9, 2, 4.5},
		{OpBitAnd, 6, 3, 2},
		{OpBitOr, 4, 1, 5},
		{OpBitXor, 5, 1, 4},
		{OpShl, 1, 4, 16},
		{OpShr, 16, 2, 4},
	}
	for _, tc := range cases {
		v := newTestVM()
		p := &Program{
			Consts: []value.Value{value.Num(tc.a), value.Num(tc.b)},
			Instructions: []Instruction{
				{Op: OpLoadConst, Operands: [3]Operand{loc(frame.ScopeLocal, 0), raw(0)}, HasRetval: true},
				{Op: OpLoadConst, Operands: [3]Operand{loc(frame.ScopeLocal, 1), raw(1)}, HasRetval: true},
				{Op: tc.op, Operands: [3]Operand{loc(frame.ScopeLocal, 2), loc(frame.ScopeLocal, 0), loc(frame.ScopeLocal, 1)}, HasRetval: true},
				{Op: OpHalt, Operands: [3]Operand{loc(frame.ScopeLocal, 2)}},
			},
		}
		if _, err := runToCompletion(t, v, p); err != nil {
			t.Fatalf("%s: Run() error: %v", tc.op, err)
		}
		if got := v.Retval.Float64(); got != tc.want {
			t.Errorf("%s(%v, %v) = %v; want %v", tc.op, tc.a, tc.b, got, tc.want)
		}
	}
}

func TestAddConcatenatesWhenEitherOperandIsString(t *testing.T) {
	v := newTestVM()
	p := &Program{
		Consts: []value.Value{value.String([]byte("n="), 2), value.Num(5)},
		Instructions: []Instruction{
			{Op: OpLoadConst, Operands: [3]Operand{loc(frame.ScopeLocal, 0), raw(0)}, HasRetval: true},
			{Op: OpLoadConst, Operands: [3]Operand{loc(frame.ScopeLocal, 1), raw(1)}, HasRetval: true},
			{Op: OpAdd, Operands: [3]Operand{loc(frame.ScopeLocal, 2), loc(frame.ScopeLocal, 0), loc(frame.ScopeLocal, 1)}, HasRetval: true},
			{Op: OpHalt, Operands: [3]Operand{loc(frame.ScopeLocal, 2)}},
		},
	}
	if _, err := runToCompletion(t, v, p); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if got := string(v.Retval.Bytes()); got != "n=5" {
		t.Errorf("ADD with a string operand = %q; want n=5", got)
	}
}

func TestIncPostReturnsPreUpdateValue(t *testing.T) {
	v := newTestVM()
	p := &Program{
		Consts: []value.Value{value.Num(10)},
		Instructions: []Instruction{
			{Op: OpLoadConst, Operands: [3]Operand{loc(frame.ScopeLocal, 0), raw(0)}, HasRetval: true},
			{Op: OpIncPost, Operands: [3]Operand{loc(frame.ScopeLocal, 1), loc(frame.ScopeLocal, 0)}, HasRetval: true},
			{Op: OpHalt, Operands: [3]Operand{loc(frame.ScopeLocal, 1)}},
		},
	}
	if _, err := runToCompletion(t, v, p); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if v.Retval.Float64() != 10 {
		t.Errorf("INC_POST retval = %v; want the pre-update value 10", v.Retval)
	}
	if got := v.loc(loc(frame.ScopeLocal, 0)).Float64(); got != 11 {
		t.Errorf("INC_POST should still write the updated value back: got %v, want 11", got)
	}
}

func TestJumpIfFalseSkipsBranch(t *testing.T) {
	v := newTestVM()
	p := &Program{
		Consts: []value.Value{value.Bool(false), value.Num(1), value.Num(2)},
		Instructions: []Instruction{
			{Op: OpLoadConst, Operands: [3]Operand{loc(frame.ScopeLocal, 0), raw(0)}, HasRetval: true}, // 0: cond = false
			{Op: OpJumpIfFalse, Operands: [3]Operand{loc(frame.ScopeLocal, 0), raw(2)}},                 // 1: -> idx 3
			{Op: OpLoadConst, Operands: [3]Operand{loc(frame.ScopeLocal, 1), raw(1)}, HasRetval: true}, // 2: skipped
			{Op: OpLoadConst, Operands: [3]Operand{loc(frame.ScopeLocal, 1), raw(2)}, HasRetval: true}, // 3: taken
			{Op: OpHalt, Operands: [3]Operand{loc(frame.ScopeLocal, 1)}},                                // 4
		},
	}
	if _, err := runToCompletion(t, v, p); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if got := v.Retval.Float64(); got != 2 {
		t.Errorf("Retval = %v; want 2 (branch taken)", got)
	}
}

func TestRelationalLessThan(t *testing.T) {
	v := newTestVM()
	p := &Program{
		Consts: []value.Value{value.Num(3), value.Num(5)},
		Instructions: []Instruction{
			{Op: OpLoadConst, Operands: [3]Operand{loc(frame.ScopeLocal, 0), raw(0)}, HasRetval: true},
			{Op: OpLoadConst, Operands: [3]Operand{loc(frame.ScopeLocal, 1), raw(1)}, HasRetval: true},
			{Op: OpLt, Operands: [3]Operand{loc(frame.ScopeLocal, 2), loc(frame.ScopeLocal, 0), loc(frame.ScopeLocal, 1)}, HasRetval: true},
			{Op: OpHalt, Operands: [3]Operand{loc(frame.ScopeLocal, 2)}},
		},
	}
	if _, err := runToCompletion(t, v, p); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !v.Retval.Truth() {
		t.Errorf("3 < 5 should be true")
	}
}

func TestStrictEqDoesNotCoerce(t *testing.T) {
	v := newTestVM()
	p := &Program{
		Consts: []value.Value{value.Num(1), value.String([]byte("1"), 1)},
		Instructions: []Instruction{
			{Op: OpLoadConst, Operands: [3]Operand{loc(frame.ScopeLocal, 0), raw(0)}, HasRetval: true},
			{Op: OpLoadConst, Operands: [3]Operand{loc(frame.ScopeLocal, 1), raw(1)}, HasRetval: true},
			{Op: OpStrictEq, Operands: [3]Operand{loc(frame.ScopeLocal, 2), loc(frame.ScopeLocal, 0), loc(frame.ScopeLocal, 1)}, HasRetval: true},
			{Op: OpEq, Operands: [3]Operand{loc(frame.ScopeLocal, 3), loc(frame.ScopeLocal, 0), loc(frame.ScopeLocal, 1)}, HasRetval: true},
			{Op: OpHalt, Operands: [3]Operand{loc(frame.ScopeLocal, 2)}},
		},
	}
	v.Load(p)
	if _, err := v.Run(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if v.Retval.Truth() {
		t.Errorf("1 === \"1\" must be false")
	}
	if got := v.loc(loc(frame.ScopeLocal, 3)); !got.Truth() {
		t.Errorf("1 == \"1\" must be true (loose equality coerces)")
	}
}

func TestTypeofTags(t *testing.T) {
	cases := []struct {
		v    value.Value
		want string
	}{
		{value.Undef(), "undefined"},
		{value.Nil(), "object"},
		{value.Bool(true), "boolean"},
		{value.Num(1), "number"},
		{value.String([]byte("s"), 1), "string"},
	}
	for _, tc := range cases {
		v := newTestVM()
		p := &Program{
			Consts: []value.Value{tc.v},
			Instructions: []Instruction{
				{Op: OpLoadConst, Operands: [3]Operand{loc(frame.ScopeLocal, 0), raw(0)}, HasRetval: true},
				{Op: OpTypeof, Operands: [3]Operand{loc(frame.ScopeLocal, 1), loc(frame.ScopeLocal, 0)}, HasRetval: true},
				{Op: OpHalt, Operands: [3]Operand{loc(frame.ScopeLocal, 1)}},
			},
		}
		if _, err := runToCompletion(t, v, p); err != nil {
			t.Fatalf("Run() error: %v", err)
		}
		if got := string(v.Retval.Bytes()); got != tc.want {
			t.Errorf("typeof %v = %q; want %q", tc.v.Tag(), got, tc.want)
		}
	}
}

// A scripted call round trip: arguments staged into the callee-arguments
// scope, a frame pushed at the lambda's entry, RETURN delivering its value
// to the CALL's destination — and the caller's scope bases byte-identical
// before and after.
func TestScriptedCallReturnRoundTrip(t *testing.T) {
	v := newTestVM()
	p := &Program{
		Consts:  []value.Value{value.Num(41), value.Num(1)},
		Lambdas: []*object.Lambda{{Name: "addOne", Entry: 5, NumArgs: 1, NumLocals: 1}},
		Instructions: []Instruction{
			/*0*/ {Op: OpLoadConst, Operands: [3]Operand{loc(frame.ScopeLocal, 0), raw(0)}, HasRetval: true},
			/*1*/ {Op: OpNewFunction, Operands: [3]Operand{loc(frame.ScopeLocal, 1), raw(0)}, HasRetval: true},
			/*2*/ {Op: OpMove, Operands: [3]Operand{loc(frame.ScopeCalleeArguments, 0), loc(frame.ScopeLocal, 0)}, HasRetval: true},
			/*3*/ {Op: OpCall, Operands: [3]Operand{loc(frame.ScopeLocal, 2), loc(frame.ScopeLocal, 1)}, HasRetval: true, NArgs: 1},
			/*4*/ {Op: OpHalt, Operands: [3]Operand{loc(frame.ScopeLocal, 2)}},
			// addOne's body, entry 5:
			/*5*/ {Op: OpLoadConst, Operands: [3]Operand{loc(frame.ScopeLocal, 0), raw(1)}, HasRetval: true},
			/*6*/ {Op: OpAdd, Operands: [3]Operand{loc(frame.ScopeLocal, 0), loc(frame.ScopeArguments, 0), loc(frame.ScopeLocal, 0)}, HasRetval: true},
			/*7*/ {Op: OpReturn, Operands: [3]Operand{loc(frame.ScopeLocal, 0)}},
		},
	}
	v.Load(p)
	caller := v.frames.Top()
	argsBase, localBase := caller.ArgsBase, caller.LocalBase
	rc, err := v.Run()
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if rc != RCDone {
		t.Fatalf("Run() rc = %v; want RCDone", rc)
	}
	if got := v.Retval.Float64(); got != 42 {
		t.Errorf("addOne(41) = %v; want 42", got)
	}
	if top := v.frames.Top(); top != caller || top.ArgsBase != argsBase || top.LocalBase != localBase {
		t.Errorf("caller scope bases changed across the call: frame %p bases (%d, %d); want %p (%d, %d)",
			top, top.ArgsBase, top.LocalBase, caller, argsBase, localBase)
	}
}

// A native returning ErrAgain suspends the VM with pc parked on the CALL;
// Resume re-invokes it with the frame's ReentryCount advanced, and the
// second invocation's result lands in the CALL's destination as usual.
func TestNativeAgainSuspendsAndResumes(t *testing.T) {
	v := newTestVM()
	calls := 0
	fn := object.NewNativeFunction(v.FuncProto, "poll", func(args []interface{}) (interface{}, error) {
		calls++
		if calls == 1 {
			return nil, ErrAgain
		}
		return value.Num(99), nil
	})

	p := &Program{
		Instructions: []Instruction{
			{Op: OpCall, Operands: [3]Operand{loc(frame.ScopeLocal, 1), loc(frame.ScopeLocal, 0)}, HasRetval: true},
			{Op: OpHalt, Operands: [3]Operand{loc(frame.ScopeLocal, 1)}},
		},
	}
	v.Load(p)
	v.setLoc(loc(frame.ScopeLocal, 0), value.Heap(value.NativeFunction, fn))
	rc, err := v.Run()
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if rc != RCAgain {
		t.Fatalf("Run() rc = %v; want RCAgain", rc)
	}
	rc, err = v.Resume()
	if err != nil {
		t.Fatalf("Resume() error: %v", err)
	}
	if rc != RCDone {
		t.Fatalf("Resume() rc = %v; want RCDone", rc)
	}
	if calls != 2 {
		t.Errorf("native invoked %d times; want 2 (once per entry)", calls)
	}
	if got := v.Retval.Float64(); got != 99 {
		t.Errorf("Retval = %v; want 99", got)
	}
}

func TestUnimplementedOpcodeReportsError(t *testing.T) {
	v := newTestVM()
	p := &Program{
		Instructions: []Instruction{
			{Op: opcodeCount}, // not in the handlers table
		},
	}
	v.Load(p)
	rc, err := v.Run()
	if rc != RCError {
		t.Fatalf("Run() rc = %v; want RCError", rc)
	}
	if err == nil {
		t.Fatalf("Run() should report an error for an unhandled opcode")
	}
}
