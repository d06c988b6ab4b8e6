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
	"github.com/emberlang/ember/frame"
	"github.com/emberlang/ember/object"
	"github.com/emberlang/ember/value"
)

// Operand is one decoded instruction operand: either a raw literal
// (jump target, constant-pool index, argument count) or a scope-tagged
// value location.
type Operand struct {
	Shape operandShape
	Raw   int32
	Scope frame.Scope
	Index uint32
}

// Instruction is the in-memory decoded form of one bytecode instruction.
// The bytecode package's wire codec produces these; the vm package only
// ever dispatches on them.
type Instruction struct {
	Op        Opcode
	Operands  [3]Operand
	NArgs     uint16
	HasRetval bool
	Ctor      bool
}

// Program is everything the dispatch loop needs to run: the flat
// instruction stream (addressed by bytecode offset, i.e. instruction
// index — the bytecode package's loader is responsible for translating
// byte offsets in the wire format into these indices), the constant pool,
// and the compiled lambda table NEW_FUNCTION instructions index into.
type Program struct {
	Instructions []Instruction
	Consts       []value.Value
	Lambdas      []*object.Lambda
	EntryPoint   uint32
}
