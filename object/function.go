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

package object

import "github.com/emberlang/ember/value"

// Lambda is a compiled function body: bytecode entry plus the metadata
// the frame setup needs. Multiple function values may share one Lambda.
type Lambda struct {
	Name      string
	Entry     uint32 // bytecode offset of the first instruction
	NumLocals int
	NumArgs   int
	IsCtor    bool
}

// NativeFn is the signature native (host-implemented) functions present to
// the call machinery: args in, a single Value out plus a return
// code the interpreter's call handling interprets (OK/PASS/AGAIN/ERROR is
// modeled by the vm package; NativeFn itself just returns a value and an
// error, with a sentinel for AGAIN handled by the vm package wrapping it).
type NativeFn func(args []interface{}) (interface{}, error)

// Function is the heap record for both scripted and native callables. A
// Function is also a property-bearing Object, so `fn.prop = x` works.
// Copy-on-first-access cloning copies only the Property record that
// refers to a shared method; the Function itself is not copied, so a
// property attached to it is visible through every object that reaches
// that method.
type Function struct {
	Obj     *Object
	Lambda  *Lambda  // non-nil for scripted functions
	Native  NativeFn // non-nil for native functions
	IsCtor  bool
}

// NewScriptedFunction wraps a Lambda as a callable heap value.
func NewScriptedFunction(proto *Object, l *Lambda) *Function {
	f := &Function{Obj: NewObject(proto), Lambda: l, IsCtor: l.IsCtor}
	f.Obj.SetClass("Function")
	return f
}

// NewNativeFunction wraps a host function as a callable heap value.
func NewNativeFunction(proto *Object, name string, fn NativeFn) *Function {
	f := &Function{Obj: NewObject(proto), Native: fn}
	f.Obj.SetClass("Function")
	f.Obj.SetOwn("name", value.String([]byte(name), len(name)), Attributes{Configurable: true})
	return f
}
