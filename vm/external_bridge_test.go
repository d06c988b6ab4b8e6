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

	"github.com/emberlang/ember/external"
	"github.com/emberlang/ember/frame"
	"github.com/emberlang/ember/value"
)

func externalVal(d *external.Descriptor) value.Value {
	return value.Heap(value.External, d)
}

// An embedded-descriptor hit (registered with Embed) resolves GET
// without ever reaching the host callbacks.
func TestExternalGetPrefersEmbeddedOverHostCallback(t *testing.T) {
	v := newTestVM()
	callbackHit := false
	d := &external.Descriptor{
		Get: func(d *external.Descriptor, name string) (value.Value, bool, error) {
			callbackHit = true
			return value.Undef(), false, nil
		},
	}
	d.Embed("x", value.Num(42))

	p := &Program{
		Consts: []value.Value{value.String([]byte("x"), 1)},
		Instructions: []Instruction{
			{Op: OpLoadConst, Operands: [3]Operand{loc(frame.ScopeLocal, 1), raw(0)}, HasRetval: true},
			{Op: OpGetProp, Operands: [3]Operand{loc(frame.ScopeLocal, 2), loc(frame.ScopeLocal, 0), loc(frame.ScopeLocal, 1)}, HasRetval: true},
			{Op: OpHalt, Operands: [3]Operand{loc(frame.ScopeLocal, 2)}},
		},
	}
	v.Load(p)
	v.setLoc(loc(frame.ScopeLocal, 0), externalVal(d))
	rc, err := v.Run()
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if rc != RCDone {
		t.Fatalf("Run() rc = %v; want RCDone", rc)
	}
	if got := v.Retval.Float64(); got != 42 {
		t.Errorf("GET_PROP external.x = %v; want 42 (embedded)", got)
	}
	if callbackHit {
		t.Errorf("host Get callback was called; embedded table should have satisfied the lookup")
	}
}

// RegisterExternal makes a descriptor addressable as an ordinary global:
// compiled code reaches its properties with no host plumbing beyond the
// one registration call.
func TestRegisterExternalInstallsGlobalSlot(t *testing.T) {
	v := newTestVM()
	d := &external.Descriptor{}
	d.Embed("port", value.Num(8080))
	v.RegisterExternal(0, d)

	p := &Program{
		Consts: []value.Value{value.String([]byte("port"), 4)},
		Instructions: []Instruction{
			{Op: OpLoadConst, Operands: [3]Operand{loc(frame.ScopeLocal, 0), raw(0)}, HasRetval: true},
			{Op: OpGetProp, Operands: [3]Operand{loc(frame.ScopeLocal, 1), loc(frame.ScopeGlobal, 0), loc(frame.ScopeLocal, 0)}, HasRetval: true},
			{Op: OpHalt, Operands: [3]Operand{loc(frame.ScopeLocal, 1)}},
		},
	}
	v.Load(p)
	rc, err := v.Run()
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if rc != RCDone {
		t.Fatalf("Run() rc = %v; want RCDone", rc)
	}
	if got := v.Retval.Float64(); got != 8080 {
		t.Errorf("GET_PROP on registered external = %v; want 8080", got)
	}
}

// A name with no embedded entry falls through to the host Get and Find
// callbacks: GET returns the host's value, and IN reports false for a
// name neither tier knows.
func TestExternalFallsBackToHostCallbacksWhenNotEmbedded(t *testing.T) {
	v := newTestVM()
	state := map[string]value.Value{"y": value.Num(7)}
	d := &external.Descriptor{
		Get: func(d *external.Descriptor, name string) (value.Value, bool, error) {
			v, ok := state[name]
			return v, ok, nil
		},
		Find: func(d *external.Descriptor, name string) bool {
			_, ok := state[name]
			return ok
		},
	}

	p := &Program{
		Consts: []value.Value{value.String([]byte("y"), 1), value.String([]byte("z"), 1)},
		Instructions: []Instruction{
			{Op: OpLoadConst, Operands: [3]Operand{loc(frame.ScopeLocal, 1), raw(0)}, HasRetval: true},
			{Op: OpGetProp, Operands: [3]Operand{loc(frame.ScopeLocal, 2), loc(frame.ScopeLocal, 0), loc(frame.ScopeLocal, 1)}, HasRetval: true},
			{Op: OpLoadConst, Operands: [3]Operand{loc(frame.ScopeLocal, 3), raw(1)}, HasRetval: true},
			{Op: OpInOp, Operands: [3]Operand{loc(frame.ScopeLocal, 4), loc(frame.ScopeLocal, 3), loc(frame.ScopeLocal, 0)}, HasRetval: true},
			{Op: OpHalt, Operands: [3]Operand{loc(frame.ScopeLocal, 4)}},
		},
	}
	v.Load(p)
	v.setLoc(loc(frame.ScopeLocal, 0), externalVal(d))
	rc, err := v.Run()
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if rc != RCDone {
		t.Fatalf("Run() rc = %v; want RCDone", rc)
	}
	if got := v.loc(loc(frame.ScopeLocal, 2)).Float64(); got != 7 {
		t.Errorf("GET_PROP external.y = %v; want 7 (via host Get callback)", got)
	}
	if got := v.Retval.Truth(); got {
		t.Errorf(`("z" in external) = %v; want false (no embedded or host entry for "z")`, got)
	}
}
