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
	"math"
	"unicode/utf8"

	"github.com/emberlang/ember/arena"
	"github.com/emberlang/ember/object"
	"github.com/emberlang/ember/value"
)

type handlerFn func(*VM, Instruction) (RC, error)

var handlers map[Opcode]handlerFn

func init() {
	handlers = map[Opcode]handlerFn{
		OpAdd: opAdd, OpSub: arith(func(a, b float64) float64 { return a - b }),
		OpMul:    arith(func(a, b float64) float64 { return a * b }),
		OpDiv:    arith(func(a, b float64) float64 { return a / b }),
		OpMod:    arith(math.Mod),
		OpShl:    bitwise(func(a, b int32) int32 { return a << (uint32(b) & 31) }),
		OpShr:    bitwise(func(a, b int32) int32 { return a >> (uint32(b) & 31) }),
		OpBitAnd: bitwise(func(a, b int32) int32 { return a & b }),
		OpBitOr:  bitwise(func(a, b int32) int32 { return a | b }),
		OpBitXor: bitwise(func(a, b int32) int32 { return a ^ b }),

		OpUPlus:      opUPlus,
		OpUMinus:     opUMinus,
		OpBitNot:     opBitNot,
		OpLogicalNot: opLogicalNot,

		OpIncPre:  incdec(1, true),
		OpIncPost: incdec(1, false),
		OpDecPre:  incdec(-1, true),
		OpDecPost: incdec(-1, false),

		OpEq:        opEq(false, false),
		OpNeq:       opEq(false, true),
		OpStrictEq:  opEq(true, false),
		OpStrictNeq: opEq(true, true),
		OpLt:        relational(func(c int) bool { return c < 0 }),
		OpLte:       relational(func(c int) bool { return c <= 0 }),
		OpGt:        relational(func(c int) bool { return c > 0 }),
		OpGte:       relational(func(c int) bool { return c >= 0 }),

		OpTypeof: opTypeof,
		OpDelete: opDelete,

		OpNewObject:   opNewObject,
		OpNewArray:    opNewArray,
		OpNewFunction: opNewFunction,
		OpNewRegExp:   opNewRegExp,

		OpGetProp:   opGetProp,
		OpSetProp:   opSetProp,
		OpInOp:      opIn,
		OpEnumStart: opEnumStart,
		OpEnumNext:  opEnumNext,

		OpLoadConst:   opLoadConst,
		OpMove:        opMove,
		OpJump:        opJump,
		OpJumpIfFalse: opJumpIfFalse,
		OpJumpIfTrue:  opJumpIfTrue,

		OpCall:   opCall,
		OpReturn: opReturn,
		OpHalt:   opHalt,

		OpTryStart: opTryStart,
		OpTryEnd:   opTryEnd,
		OpThrow:    opThrow,
		OpCatch:    opCatch,
		OpFinally:  opFinally,

		OpNumberPrimitive: opNumberPrimitive,
		OpStringPrimitive: opStringPrimitive,
		OpRestart:         opRestart,
	}
}

// ---- Arithmetic -----------------------------------------------------------

// opAdd is the one arithmetic op with string-concatenation semantics:
// if either (post-ToPrimitive) operand is a String, the result
// concatenates; otherwise both convert to Number and add.
func opAdd(vm *VM, ins Instruction) (RC, error) {
	a := vm.loc(ins.Operands[1])
	b := vm.loc(ins.Operands[2])

	pa, err := vm.toPrimitive(a, "default")
	if err != nil {
		return vm.throwFromErr(err)
	}
	pb, err := vm.toPrimitive(b, "default")
	if err != nil {
		return vm.throwFromErr(err)
	}

	if pa.Tag() == value.StringTag || pb.Tag() == value.StringTag {
		sa, err := vm.toStringValue(pa)
		if err != nil {
			return vm.throwFromErr(err)
		}
		sb, err := vm.toStringValue(pb)
		if err != nil {
			return vm.throwFromErr(err)
		}
		concat := sa + sb
		vm.setRetval(ins, vm.newString([]byte(concat), utf8.RuneCountInString(concat)))
		return RCAdvance, nil
	}

	na, err := vm.toNumber(pa)
	if err != nil {
		return vm.throwFromErr(err)
	}
	nb, err := vm.toNumber(pb)
	if err != nil {
		return vm.throwFromErr(err)
	}
	vm.setRetval(ins, value.Num(na+nb))
	return RCAdvance, nil
}

// arith builds a 3-operand numeric-only operator handler (SUB/MUL/DIV/MOD).
func arith(f func(a, b float64) float64) handlerFn {
	return func(vm *VM, ins Instruction) (RC, error) {
		a := vm.loc(ins.Operands[1])
		b := vm.loc(ins.Operands[2])
		na, err := vm.toNumber(a)
		if err != nil {
			return vm.throwFromErr(err)
		}
		nb, err := vm.toNumber(b)
		if err != nil {
			return vm.throwFromErr(err)
		}
		vm.setRetval(ins, value.Num(f(na, nb)))
		return RCAdvance, nil
	}
}

func bitwise(f func(a, b int32) int32) handlerFn {
	return func(vm *VM, ins Instruction) (RC, error) {
		a := vm.loc(ins.Operands[1])
		b := vm.loc(ins.Operands[2])
		na, err := vm.toNumber(a)
		if err != nil {
			return vm.throwFromErr(err)
		}
		nb, err := vm.toNumber(b)
		if err != nil {
			return vm.throwFromErr(err)
		}
		vm.setRetval(ins, value.Num(float64(f(toInt32(na), toInt32(nb)))))
		return RCAdvance, nil
	}
}

func toInt32(f float64) int32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(int64(f))
}

// throwFromErr re-raises an *Exception produced deeper in the call chain
// (e.g. by toNumber's trap) as the VM's in-flight exception.
func (vm *VM) throwFromErr(err error) (RC, error) {
	if exc, ok := err.(*Exception); ok {
		rc, rerr := vm.throw(exc.Value)
		vm.pendingExceptionKind = exc.Kind
		return rc, rerr
	}
	return vm.throwType(err.Error())
}

func opUPlus(vm *VM, ins Instruction) (RC, error) {
	n, err := vm.toNumber(vm.loc(ins.Operands[1]))
	if err != nil {
		return vm.throwFromErr(err)
	}
	vm.setRetval(ins, value.Num(n))
	return RCAdvance, nil
}

func opUMinus(vm *VM, ins Instruction) (RC, error) {
	n, err := vm.toNumber(vm.loc(ins.Operands[1]))
	if err != nil {
		return vm.throwFromErr(err)
	}
	vm.setRetval(ins, value.Num(-n))
	return RCAdvance, nil
}

func opBitNot(vm *VM, ins Instruction) (RC, error) {
	n, err := vm.toNumber(vm.loc(ins.Operands[1]))
	if err != nil {
		return vm.throwFromErr(err)
	}
	vm.setRetval(ins, value.Num(float64(^toInt32(n))))
	return RCAdvance, nil
}

func opLogicalNot(vm *VM, ins Instruction) (RC, error) {
	v := vm.loc(ins.Operands[1])
	vm.setRetval(ins, value.Bool(!v.Truth()))
	return RCAdvance, nil
}

// incdec builds ++/-- handlers: the operand is both read and
// written (it must be a scope location, never a literal); post-forms
// return the pre-update value.
func incdec(delta float64, pre bool) handlerFn {
	return func(vm *VM, ins Instruction) (RC, error) {
		cur := vm.loc(ins.Operands[1])
		n, err := vm.toNumber(cur)
		if err != nil {
			return vm.throwFromErr(err)
		}
		updated := value.Num(n + delta)
		vm.setLoc(ins.Operands[1], updated)
		if pre {
			vm.setRetval(ins, updated)
		} else {
			vm.setRetval(ins, value.Num(n))
		}
		return RCAdvance, nil
	}
}

// ---- Equality / relational -------------------------------------------------

// opEq builds ==/!=/===/!==: strict comparisons never coerce;
// loose comparisons coerce null/undefined together and number/string
// pairs per the usual abstract-equality ladder, routing object operands
// through ToPrimitive first.
func opEq(strict, negate bool) handlerFn {
	return func(vm *VM, ins Instruction) (RC, error) {
		a := vm.loc(ins.Operands[1])
		b := vm.loc(ins.Operands[2])
		eq, err := vm.valuesEqual(a, b, strict)
		if err != nil {
			return vm.throwFromErr(err)
		}
		if negate {
			eq = !eq
		}
		vm.setRetval(ins, value.Bool(eq))
		return RCAdvance, nil
	}
}

func (vm *VM) valuesEqual(a, b value.Value, strict bool) (bool, error) {
	if a.Tag() == b.Tag() {
		return a.StructurallyEqual(b), nil
	}
	if strict {
		return false, nil
	}
	if a.IsNullOrUndefined() && b.IsNullOrUndefined() {
		return true, nil
	}
	if a.IsNullOrUndefined() || b.IsNullOrUndefined() {
		return false, nil
	}
	if needsTrap(a) {
		pa, err := vm.toPrimitive(a, "default")
		if err != nil {
			return false, err
		}
		return vm.valuesEqual(pa, b, strict)
	}
	if needsTrap(b) {
		pb, err := vm.toPrimitive(b, "default")
		if err != nil {
			return false, err
		}
		return vm.valuesEqual(a, pb, strict)
	}
	na, err := vm.toNumber(a)
	if err != nil {
		return false, err
	}
	nb, err := vm.toNumber(b)
	if err != nil {
		return false, err
	}
	return na == nb, nil
}

func relational(pred func(cmp int) bool) handlerFn {
	return func(vm *VM, ins Instruction) (RC, error) {
		a := vm.loc(ins.Operands[1])
		b := vm.loc(ins.Operands[2])
		pa, err := vm.toPrimitive(a, "number")
		if err != nil {
			return vm.throwFromErr(err)
		}
		pb, err := vm.toPrimitive(b, "number")
		if err != nil {
			return vm.throwFromErr(err)
		}
		if pa.Tag() == value.StringTag && pb.Tag() == value.StringTag {
			c := 0
			sa, sb := string(pa.Bytes()), string(pb.Bytes())
			switch {
			case sa < sb:
				c = -1
			case sa > sb:
				c = 1
			}
			vm.setRetval(ins, value.Bool(pred(c)))
			return RCAdvance, nil
		}
		na, nb := toNumberFast(pa), toNumberFast(pb)
		if math.IsNaN(na) || math.IsNaN(nb) {
			vm.setRetval(ins, value.Bool(false))
			return RCAdvance, nil
		}
		c := 0
		switch {
		case na < nb:
			c = -1
		case na > nb:
			c = 1
		}
		vm.setRetval(ins, value.Bool(pred(c)))
		return RCAdvance, nil
	}
}

// ---- typeof / delete --------------------------------------------------------

func opTypeof(vm *VM, ins Instruction) (RC, error) {
	v := vm.loc(ins.Operands[1])
	var s string
	switch v.Tag() {
	case value.Undefined:
		s = "undefined"
	case value.Null:
		s = "object"
	case value.Boolean:
		s = "boolean"
	case value.Number:
		s = "number"
	case value.StringTag:
		s = "string"
	case value.Function, value.NativeFunction:
		s = "function"
	default:
		s = "object"
	}
	vm.setRetval(ins, value.String([]byte(s), len(s)))
	return RCAdvance, nil
}

func opDelete(vm *VM, ins Instruction) (RC, error) {
	receiver := vm.loc(ins.Operands[1])
	key := vm.loc(ins.Operands[2])
	ok := vm.deleteProp(receiver, key)
	vm.setRetval(ins, value.Bool(ok))
	return RCAdvance, nil
}

// ---- Allocation -------------------------------------------------------------

func opNewObject(vm *VM, ins Instruction) (RC, error) {
	o := object.NewObject(vm.ObjectProto)
	vm.setRetval(ins, value.Heap(value.Object, o))
	return RCAdvance, nil
}

func opNewArray(vm *VM, ins Instruction) (RC, error) {
	length := uint32(ins.Operands[1].Raw)
	a := object.NewArray(vm.ArrayProto, length)
	vm.setRetval(ins, value.Heap(value.Array, a))
	return RCAdvance, nil
}

func opNewFunction(vm *VM, ins Instruction) (RC, error) {
	idx := ins.Operands[1].Raw
	if idx < 0 || int(idx) >= len(vm.Program.Lambdas) {
		return vm.throwType("invalid lambda index")
	}
	l := vm.Program.Lambdas[idx]
	fn := object.NewScriptedFunction(vm.FuncProto, l)
	tag := value.Function
	vm.setRetval(ins, value.Heap(tag, fn))
	return RCAdvance, nil
}

func opNewRegExp(vm *VM, ins Instruction) (RC, error) {
	idx := ins.Operands[1].Raw
	if idx < 0 || int(idx) >= len(vm.Program.Consts) {
		return vm.throwType("invalid regexp constant index")
	}
	c := vm.Program.Consts[idx]
	parts := string(c.Bytes())
	// Constant pool encodes "source\x00flags" for regexp literals.
	sep := indexByte(parts, 0)
	source, flags := parts, ""
	if sep >= 0 {
		source, flags = parts[:sep], parts[sep+1:]
	}
	r, err := object.NewRegExp(vm.RegExpProto, source, flags)
	if err != nil {
		return vm.throwSyntax(err.Error())
	}
	vm.setRetval(ins, value.Heap(value.RegExp, r))
	return RCAdvance, nil
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// ---- Property protocol ------------------------------------------------------

func opGetProp(vm *VM, ins Instruction) (RC, error) {
	receiver := vm.loc(ins.Operands[1])
	key := vm.loc(ins.Operands[2])
	v, err := vm.getProp(receiver, key)
	if err != nil {
		return vm.throwFromErr(err)
	}
	vm.setRetval(ins, v)
	return RCAdvance, nil
}

func opSetProp(vm *VM, ins Instruction) (RC, error) {
	receiver := vm.loc(ins.Operands[0])
	key := vm.loc(ins.Operands[1])
	v := vm.loc(ins.Operands[2])
	if err := vm.setProp(receiver, key, v); err != nil {
		return vm.throwFromErr(err)
	}
	return RCAdvance, nil
}

func opIn(vm *VM, ins Instruction) (RC, error) {
	receiver := vm.loc(ins.Operands[2])
	key := vm.loc(ins.Operands[1])
	vm.setRetval(ins, value.Bool(vm.inProp(receiver, key)))
	return RCAdvance, nil
}

// enumState tracks an in-progress for-in walk. Keyed by the object
// scope:index ENUM_START was given, since there is no dedicated scope for
// iterator state.
type enumState struct {
	names []string
	pos   int
}

func opEnumStart(vm *VM, ins Instruction) (RC, error) {
	receiver := vm.loc(ins.Operands[1])
	names := vm.enumerate(receiver)
	key := ins.Operands[1]
	if vm.enumStates == nil {
		vm.enumStates = map[Operand]*enumState{}
	}
	vm.enumStates[key] = &enumState{names: names}
	vm.setRetval(ins, value.Bool(len(names) > 0))
	return RCAdvance, nil
}

func opEnumNext(vm *VM, ins Instruction) (RC, error) {
	key := ins.Operands[1]
	st := vm.enumStates[key]
	if st == nil || st.pos >= len(st.names) {
		// Undefined signals exhaustion; compiled code follows ENUM_NEXT
		// with a JUMP_IF_FALSE (after an IS-undefined check) to exit the
		// loop, so no jump decision is made here.
		vm.setRetval(ins, value.Undef())
		return RCAdvance, nil
	}
	name := st.names[st.pos]
	st.pos++
	vm.setRetval(ins, value.String([]byte(name), len(name)))
	return RCAdvance, nil
}

// ---- Load/store/control -----------------------------------------------------

func opLoadConst(vm *VM, ins Instruction) (RC, error) {
	idx := ins.Operands[1].Raw
	if idx < 0 || int(idx) >= len(vm.Program.Consts) {
		return vm.throwType("constant index out of range")
	}
	vm.setRetval(ins, vm.internedConst(idx))
	return RCAdvance, nil
}

// internedConst returns the program constant at idx, routing any
// long-string constant through the arena's bounded intern cache so the
// same literal at the same constant index, loaded by any program sharing
// this VM's Arena, reuses one backing record. The result is memoized per index, so the
// key construction and intern lookup run once per constant rather than
// on every LOAD_CONST.
func (vm *VM) internedConst(idx int32) value.Value {
	if vm.constResolved[idx] {
		return vm.constCache[idx]
	}
	c := vm.Program.Consts[idx]
	if c.Tag() == value.StringTag && c.IsLongString() {
		b := c.Bytes()
		rec := vm.Arena.Intern(arena.InternKey{Pool: uint32(idx), Bytes: string(b)}, b, c.StringLen())
		c = value.LongStringValue(rec, len(b), c.StringLen())
	}
	vm.constCache[idx] = c
	vm.constResolved[idx] = true
	return c
}

func opMove(vm *VM, ins Instruction) (RC, error) {
	vm.setRetval(ins, vm.loc(ins.Operands[1]))
	return RCAdvance, nil
}

func opJump(vm *VM, ins Instruction) (RC, error) {
	vm.pc = uint32(int32(vm.pc) + ins.Operands[0].Raw)
	return RCJump, nil
}

func opJumpIfFalse(vm *VM, ins Instruction) (RC, error) {
	if !vm.loc(ins.Operands[0]).Truth() {
		vm.pc = uint32(int32(vm.pc) + ins.Operands[1].Raw)
		return RCJump, nil
	}
	return RCAdvance, nil
}

func opJumpIfTrue(vm *VM, ins Instruction) (RC, error) {
	if vm.loc(ins.Operands[0]).Truth() {
		vm.pc = uint32(int32(vm.pc) + ins.Operands[1].Raw)
		return RCJump, nil
	}
	return RCAdvance, nil
}

// ---- Trap micro-ops --------------------------------------------------
// These are exposed as ordinary opcodes for assembled test programs that
// want to force a conversion explicitly; the interpreter's own arithmetic
// and comparison handlers call vm.toPrimitive/toNumber/toStringValue
// directly rather than emitting these.

func opNumberPrimitive(vm *VM, ins Instruction) (RC, error) {
	n, err := vm.toNumber(vm.loc(ins.Operands[0]))
	if err != nil {
		return vm.throwFromErr(err)
	}
	vm.setRetval(ins, value.Num(n))
	return RCAdvance, nil
}

func opStringPrimitive(vm *VM, ins Instruction) (RC, error) {
	s, err := vm.toStringValue(vm.loc(ins.Operands[0]))
	if err != nil {
		return vm.throwFromErr(err)
	}
	vm.setRetval(ins, vm.newString([]byte(s), utf8.RuneCountInString(s)))
	return RCAdvance, nil
}

func opRestart(vm *VM, ins Instruction) (RC, error) {
	return RCAdvance, nil
}
