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

// Package bytecode implements the on-disk wire format for a compiled
// program: a fixed 4-byte instruction header (opcode, operand
// count, has-retval/ctor flags, argument count) followed by one 4-byte
// word per operand (a raw literal or a scope-tagged value location).
// Encoding/decoding here is independent of the vm package's in-memory
// Instruction representation conceptually, but reuses its Opcode/Operand
// types directly since both live in the same module and a translation
// struct would add nothing.
package bytecode

import (
	"encoding/binary"
	"fmt"

	"github.com/emberlang/ember/frame"
	"github.com/emberlang/ember/vm"
)

// header flag bits, packed into the second header byte.
const (
	flagHasRetval = 1 << 0
	flagCtor      = 1 << 1
)

// scopeBits is how many low bits of a Loc operand word carry the
// frame.Scope tag; the remaining high bits carry the index.
const scopeBits = 3

// EncodeInstruction appends ins's wire encoding to buf and returns the
// extended slice. The header's operand count makes the format
// self-describing at the word level; shapes (from vm.OperandShapes) tells
// the codec how each word's bits are laid out.
func EncodeInstruction(buf []byte, ins vm.Instruction, shapes [3]byte) []byte {
	operandCount := 0
	for _, s := range shapes {
		if s != 0 {
			operandCount++
		}
	}
	flags := byte(0)
	if ins.HasRetval {
		flags |= flagHasRetval
	}
	if ins.Ctor {
		flags |= flagCtor
	}
	header := make([]byte, 4)
	header[0] = byte(ins.Op)
	header[1] = byte(operandCount)<<4 | flags
	binary.BigEndian.PutUint16(header[2:], ins.NArgs)
	buf = append(buf, header...)

	for i := 0; i < operandCount; i++ {
		word := make([]byte, 4)
		op := ins.Operands[i]
		if shapes[i] == vm.OperandShapeRaw {
			binary.BigEndian.PutUint32(word, uint32(op.Raw))
		} else {
			binary.BigEndian.PutUint32(word, uint32(op.Scope)|(op.Index<<scopeBits))
		}
		buf = append(buf, word...)
	}
	return buf
}

// DecodeInstruction reads one instruction starting at buf[0], returning
// it plus the number of bytes consumed. shapes tells the decoder, for
// each of up to three operand words present, whether to interpret it as
// a raw literal or a scope-tagged location — callers obtain this from the
// opcode (vm exports the table indirectly via OperandShapes).
func DecodeInstruction(buf []byte, shapes [3]byte) (vm.Instruction, int, error) {
	if len(buf) < 4 {
		return vm.Instruction{}, 0, fmt.Errorf("bytecode: truncated instruction header")
	}
	op := vm.Opcode(buf[0])
	operandCount := int(buf[1] >> 4)
	flags := buf[1] & 0x0F
	nargs := binary.BigEndian.Uint16(buf[2:4])
	ins := vm.Instruction{
		Op:        op,
		NArgs:     nargs,
		HasRetval: flags&flagHasRetval != 0,
		Ctor:      flags&flagCtor != 0,
	}
	consumed := 4
	for i := 0; i < operandCount && i < 3; i++ {
		if len(buf) < consumed+4 {
			return vm.Instruction{}, 0, fmt.Errorf("bytecode: truncated operand word")
		}
		word := binary.BigEndian.Uint32(buf[consumed : consumed+4])
		consumed += 4
		if shapes[i] == vm.OperandShapeRaw {
			ins.Operands[i] = vm.Operand{Raw: int32(word)}
		} else {
			ins.Operands[i] = vm.Operand{
				Scope: frame.Scope(word & ((1 << scopeBits) - 1)),
				Index: word >> scopeBits,
			}
		}
	}
	return ins, consumed, nil
}
