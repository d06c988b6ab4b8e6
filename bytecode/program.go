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

package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/emberlang/ember/object"
	"github.com/emberlang/ember/value"
	"github.com/emberlang/ember/vm"
)

// magic identifies an Ember bytecode file; version allows the loader to
// reject files compiled for an incompatible wire format.
const (
	magic   = "EMBR"
	version = 1
)

// constTag identifies a constant-pool entry's value.Tag on the wire.
// Only the tags a compiler can ever emit as a literal constant are
// representable here; heap tags (Object, Array, Function, ...) never
// appear in a program's constant pool.
const (
	constTagUndefined byte = iota
	constTagNull
	constTagBoolean
	constTagNumber
	constTagString
)

// EncodeProgram serializes p into the wire format: a small header,
// a flat constant table (each entry tag-prefixed; string payloads are also
// length-prefixed), a lambda table, and
// the instruction stream.
func EncodeProgram(p *vm.Program) []byte {
	buf := []byte(magic)
	buf = append(buf, byte(version))
	buf = append(buf, 0, 0, 0) // pad to 4-byte alignment

	var entry [4]byte
	binary.BigEndian.PutUint32(entry[:], p.EntryPoint)
	buf = append(buf, entry[:]...)

	buf = appendUint32(buf, uint32(len(p.Consts)))
	for _, c := range p.Consts {
		buf = appendConst(buf, c)
	}

	buf = appendUint32(buf, uint32(len(p.Lambdas)))
	for _, l := range p.Lambdas {
		buf = appendUint32(buf, l.Entry)
		buf = appendUint32(buf, uint32(l.NumArgs))
		buf = appendUint32(buf, uint32(l.NumLocals))
		ctorByte := byte(0)
		if l.IsCtor {
			ctorByte = 1
		}
		buf = append(buf, ctorByte)
		buf = appendUint32(buf, uint32(len(l.Name)))
		buf = append(buf, l.Name...)
	}

	buf = appendUint32(buf, uint32(len(p.Instructions)))
	for _, ins := range p.Instructions {
		_, shapes := vm.OperandShapes(ins.Op)
		buf = EncodeInstruction(buf, ins, shapes)
	}
	return buf
}

func appendUint32(buf []byte, n uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], n)
	return append(buf, tmp[:]...)
}

// appendConst serializes one constant-pool entry as a tag byte followed by
// its tag-specific payload. Encoding the tag explicitly, rather than
// just the byte view value.Bytes() returns, is what lets a Number or
// Boolean constant survive the wire round-trip instead of silently
// decoding back as an empty string.
func appendConst(buf []byte, c value.Value) []byte {
	switch c.Tag() {
	case value.Undefined:
		return append(buf, constTagUndefined)
	case value.Null:
		return append(buf, constTagNull)
	case value.Boolean:
		b := byte(0)
		if c.IsBool() {
			b = 1
		}
		return append(buf, constTagBoolean, b)
	case value.Number:
		buf = append(buf, constTagNumber)
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], math.Float64bits(c.Float64()))
		return append(buf, tmp[:]...)
	default:
		buf = append(buf, constTagString)
		b := c.Bytes()
		buf = appendUint32(buf, uint32(len(b)))
		return append(buf, b...)
	}
}

// decodeConst is the inverse of appendConst.
func decodeConst(data []byte, pos int) (value.Value, int, error) {
	if pos >= len(data) {
		return value.Value{}, pos, fmt.Errorf("bytecode: truncated constant tag")
	}
	tag := data[pos]
	pos++
	switch tag {
	case constTagUndefined:
		return value.Undef(), pos, nil
	case constTagNull:
		return value.Nil(), pos, nil
	case constTagBoolean:
		if pos >= len(data) {
			return value.Value{}, pos, fmt.Errorf("bytecode: truncated boolean constant")
		}
		b := data[pos] != 0
		return value.Bool(b), pos + 1, nil
	case constTagNumber:
		if pos+8 > len(data) {
			return value.Value{}, pos, fmt.Errorf("bytecode: truncated number constant")
		}
		f := math.Float64frombits(binary.BigEndian.Uint64(data[pos : pos+8]))
		return value.Num(f), pos + 8, nil
	case constTagString:
		if pos+4 > len(data) {
			return value.Value{}, pos, fmt.Errorf("bytecode: truncated string constant length")
		}
		n := int(binary.BigEndian.Uint32(data[pos:]))
		pos += 4
		if pos+n > len(data) {
			return value.Value{}, pos, fmt.Errorf("bytecode: truncated string constant")
		}
		return value.String(data[pos:pos+n], utf8.RuneCount(data[pos:pos+n])), pos + n, nil
	default:
		return value.Value{}, pos, fmt.Errorf("bytecode: unknown constant tag %d", tag)
	}
}

// DecodeProgram parses the wire format produced by EncodeProgram.
func DecodeProgram(data []byte) (*vm.Program, error) {
	if len(data) < 12 || string(data[:4]) != magic {
		return nil, fmt.Errorf("bytecode: bad magic")
	}
	if data[4] != version {
		return nil, fmt.Errorf("bytecode: unsupported version %d", data[4])
	}
	pos := 8
	entryPoint := binary.BigEndian.Uint32(data[pos:])
	pos += 4

	nConsts := int(binary.BigEndian.Uint32(data[pos:]))
	pos += 4
	consts := make([]value.Value, nConsts)
	for i := 0; i < nConsts; i++ {
		c, next, err := decodeConst(data, pos)
		if err != nil {
			return nil, fmt.Errorf("bytecode: const %d: %w", i, err)
		}
		consts[i] = c
		pos = next
	}

	nLambdas := int(binary.BigEndian.Uint32(data[pos:]))
	pos += 4
	lambdas := make([]*object.Lambda, nLambdas)
	for i := 0; i < nLambdas; i++ {
		l := &object.Lambda{}
		l.Entry = binary.BigEndian.Uint32(data[pos:])
		pos += 4
		l.NumArgs = int(binary.BigEndian.Uint32(data[pos:]))
		pos += 4
		l.NumLocals = int(binary.BigEndian.Uint32(data[pos:]))
		pos += 4
		l.IsCtor = data[pos] != 0
		pos++
		nameLen := int(binary.BigEndian.Uint32(data[pos:]))
		pos += 4
		l.Name = string(data[pos : pos+nameLen])
		pos += nameLen
		lambdas[i] = l
	}

	nIns := int(binary.BigEndian.Uint32(data[pos:]))
	pos += 4
	instructions := make([]vm.Instruction, nIns)
	for i := 0; i < nIns; i++ {
		op := vm.Opcode(data[pos])
		_, shapes := vm.OperandShapes(op)
		ins, n, err := DecodeInstruction(data[pos:], shapes)
		if err != nil {
			return nil, fmt.Errorf("bytecode: instruction %d: %w", i, err)
		}
		instructions[i] = ins
		pos += n
	}

	return &vm.Program{
		Instructions: instructions,
		Consts:       consts,
		Lambdas:      lambdas,
		EntryPoint:   entryPoint,
	}, nil
}
