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

func nativeMethod(v *VM, name string, fn object.NativeFn) value.Value {
	return value.Heap(value.NativeFunction, object.NewNativeFunction(v.FuncProto, name, fn))
}

func objVal(o *object.Object) value.Value { return value.Heap(value.Object, o) }

// var o = { valueOf: function(){ return 7 } }; 1 + o -> 8.
func TestAddTrapsThroughValueOf(t *testing.T) {
	v := newTestVM()
	obj := object.NewObject(v.ObjectProto)
	obj.SetOwn("valueOf", nativeMethod(v, "valueOf", func(args []interface{}) (interface{}, error) {
		return value.Num(7), nil
	}), object.Attributes{Configurable: true, Enumerable: true, Writable: true})

	p := &Program{
		Consts: []value.Value{value.Num(1)},
		Instructions: []Instruction{
			{Op: OpLoadConst, Operands: [3]Operand{loc(frame.ScopeLocal, 0), raw(0)}, HasRetval: true},
			{Op: OpAdd, Operands: [3]Operand{loc(frame.ScopeLocal, 2), loc(frame.ScopeLocal, 0), loc(frame.ScopeLocal, 1)}, HasRetval: true},
			{Op: OpHalt, Operands: [3]Operand{loc(frame.ScopeLocal, 2)}},
		},
	}
	v.Load(p)
	v.setLoc(loc(frame.ScopeLocal, 1), objVal(obj))
	rc, err := v.Run()
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if rc != RCDone {
		t.Fatalf("Run() rc = %v; want RCDone", rc)
	}
	if got := v.Retval.Float64(); got != 8 {
		t.Errorf("1 + o (valueOf -> 7) = %v; want 8", got)
	}
}

// Scenario 5 continued: replace valueOf with one returning an object and
// toString with one returning "z" -> 1 + o === "1z" (falls through to the
// second conversion method when the first returns a non-primitive).
func TestAddFallsBackToToStringWhenValueOfReturnsObject(t *testing.T) {
	v := newTestVM()
	obj := object.NewObject(v.ObjectProto)
	nonPrimitive := object.NewObject(v.ObjectProto)
	obj.SetOwn("valueOf", nativeMethod(v, "valueOf", func(args []interface{}) (interface{}, error) {
		return objVal(nonPrimitive), nil
	}), object.Attributes{Configurable: true, Enumerable: true, Writable: true})
	obj.SetOwn("toString", nativeMethod(v, "toString", func(args []interface{}) (interface{}, error) {
		return value.String([]byte("z"), 1), nil
	}), object.Attributes{Configurable: true, Enumerable: true, Writable: true})

	p := &Program{
		Consts: []value.Value{value.Num(1)},
		Instructions: []Instruction{
			{Op: OpLoadConst, Operands: [3]Operand{loc(frame.ScopeLocal, 0), raw(0)}, HasRetval: true},
			{Op: OpAdd, Operands: [3]Operand{loc(frame.ScopeLocal, 2), loc(frame.ScopeLocal, 0), loc(frame.ScopeLocal, 1)}, HasRetval: true},
			{Op: OpHalt, Operands: [3]Operand{loc(frame.ScopeLocal, 2)}},
		},
	}
	v.Load(p)
	v.setLoc(loc(frame.ScopeLocal, 1), objVal(obj))
	rc, err := v.Run()
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if rc != RCDone {
		t.Fatalf("Run() rc = %v; want RCDone", rc)
	}
	if got := string(v.Retval.Bytes()); got != "1z" {
		t.Errorf(`1 + o (valueOf -> object, toString -> "z") = %q; want "1z"`, got)
	}
}

// A valueOf/toString pair that both return non-primitives exhausts the
// two-attempt cap and raises TypeError rather than looping forever.
func TestAddRaisesTypeErrorWhenBothConversionsReturnObjects(t *testing.T) {
	v := newTestVM()
	obj := object.NewObject(v.ObjectProto)
	nonPrimitive := object.NewObject(v.ObjectProto)
	alwaysObject := func(args []interface{}) (interface{}, error) {
		return objVal(nonPrimitive), nil
	}
	obj.SetOwn("valueOf", nativeMethod(v, "valueOf", alwaysObject), object.Attributes{Configurable: true, Enumerable: true, Writable: true})
	obj.SetOwn("toString", nativeMethod(v, "toString", alwaysObject), object.Attributes{Configurable: true, Enumerable: true, Writable: true})

	p := &Program{
		Consts: []value.Value{value.Num(1)},
		Instructions: []Instruction{
			{Op: OpLoadConst, Operands: [3]Operand{loc(frame.ScopeLocal, 0), raw(0)}, HasRetval: true},
			{Op: OpAdd, Operands: [3]Operand{loc(frame.ScopeLocal, 2), loc(frame.ScopeLocal, 0), loc(frame.ScopeLocal, 1)}, HasRetval: true},
			{Op: OpHalt, Operands: [3]Operand{loc(frame.ScopeLocal, 2)}},
		},
	}
	v.Load(p)
	v.setLoc(loc(frame.ScopeLocal, 1), objVal(obj))
	rc, err := v.Run()
	if rc != RCError || err == nil {
		t.Fatalf("Run() = (%v, %v); want (RCError, TypeError)", rc, err)
	}
	exc, ok := err.(*Exception)
	if !ok || exc.Kind != ErrType {
		t.Fatalf("err = %v; want a TypeError Exception", err)
	}
}

// A *scripted* (not native) valueOf that itself throws must not corrupt the
// caller's frame stack: the surrounding try/catch (installed before the
// ADD that triggers the trap) must still be intact and catch the
// propagated exception. This exercises callSync/runSyncLoop's frame-floor
// discipline rather than the trap's retry/typeof machinery.
func TestScriptedValueOfThrowDoesNotCorruptOuterTryCatch(t *testing.T) {
	v := newTestVM()
	obj := object.NewObject(v.ObjectProto)
	lambda := &object.Lambda{Entry: 7, NumArgs: 0, NumLocals: 1}
	fn := object.NewScriptedFunction(v.FuncProto, lambda)
	obj.SetOwn("valueOf", value.Heap(value.Function, fn), object.Attributes{Configurable: true, Enumerable: true, Writable: true})

	p := &Program{
		Consts: []value.Value{value.Num(1), value.String([]byte("boom"), 4)},
		Instructions: []Instruction{
			/*0*/ {Op: OpLoadConst, Operands: [3]Operand{loc(frame.ScopeLocal, 0), raw(0)}, HasRetval: true},
			/*1*/ {Op: OpTryStart, Operands: [3]Operand{raw(4)}},
			/*2*/ {Op: OpAdd, Operands: [3]Operand{loc(frame.ScopeLocal, 2), loc(frame.ScopeLocal, 0), loc(frame.ScopeLocal, 1)}, HasRetval: true},
			/*3*/ {Op: OpTryEnd},
			/*4*/ {Op: OpHalt, Operands: [3]Operand{loc(frame.ScopeLocal, 2)}},
			/*5*/ {Op: OpCatch, Operands: [3]Operand{loc(frame.ScopeLocal, 3), raw(0)}},
			/*6*/ {Op: OpHalt, Operands: [3]Operand{loc(frame.ScopeLocal, 3)}},
			// valueOf's lambda body, entry 7:
			/*7*/ {Op: OpLoadConst, Operands: [3]Operand{loc(frame.ScopeLocal, 0), raw(1)}, HasRetval: true},
			/*8*/ {Op: OpThrow, Operands: [3]Operand{loc(frame.ScopeLocal, 0)}},
		},
	}
	v.Load(p)
	v.setLoc(loc(frame.ScopeLocal, 1), objVal(obj))
	rc, err := v.Run()
	if err != nil {
		t.Fatalf("Run() error: %v; want the outer try/catch to absorb the valueOf's exception", err)
	}
	if rc != RCDone {
		t.Fatalf("Run() rc = %v; want RCDone", rc)
	}
	if got := string(v.Retval.Bytes()); got != "boom" {
		t.Errorf("outer catch should have received the valueOf's thrown value: got %q, want %q", got, "boom")
	}
}
