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

	"github.com/emberlang/ember/frame"
	"github.com/emberlang/ember/object"
	"github.com/emberlang/ember/value"
)

// ErrAgain is the sentinel a native function returns (possibly wrapped)
// to suspend the VM cooperatively. The interpreter reports RCAgain to the
// embedder with pc still at the CALL instruction, so Resume re-invokes
// the native with the frame's ReentryCount advanced; the native uses the
// count to pick up where it left off.
var ErrAgain = errors.New("vm: again")

func isCallable(v value.Value) bool {
	return v.Tag() == value.Function || v.Tag() == value.NativeFunction
}

// opCall implements CALL: the function value sits at operand[1],
// the result destination at operand[0], and the header's NArgs names how
// many of the staged ScopeCalleeArguments slots belong to this call. A
// native function runs to completion inline and the return code reports
// OK/ERROR directly, or AGAIN when the native returns ErrAgain; a
// scripted function gets a new frame pushed and the
// loop continues at its entry — no Go-level recursion, so deep call
// chains grow the frame stack rather than the host stack.
func opCall(vm *VM, ins Instruction) (RC, error) {
	fnVal := vm.loc(ins.Operands[1])
	args := vm.takeCalleeArgs(int(ins.NArgs))

	if !isCallable(fnVal) {
		return vm.throwType("value is not a function")
	}

	if fnVal.Tag() == value.NativeFunction {
		fn := fnVal.Heap().(*object.Function)
		rc, err := vm.invokeNative(fn, args, ins)
		if rc == RCAgain {
			// Re-stage the arguments so the re-dispatched CALL finds them.
			vm.calleeArgs = append(vm.calleeArgs[:0], args...)
		}
		return rc, err
	}

	fn := fnVal.Heap().(*object.Function)
	return vm.pushScriptedFrame(fn, args, ins.Operands[0], true)
}

// takeCalleeArgs copies out the first n staged argument slots and clears
// the staging area so the next CALL starts from an empty slate.
func (vm *VM) takeCalleeArgs(n int) []value.Value {
	args := make([]value.Value, n)
	for i := 0; i < n; i++ {
		if i < len(vm.calleeArgs) {
			args[i] = vm.calleeArgs[i]
		} else {
			args[i] = value.Undef()
		}
	}
	vm.calleeArgs = vm.calleeArgs[:0]
	return args
}

func (vm *VM) invokeNative(fn *object.Function, args []value.Value, ins Instruction) (RC, error) {
	top := vm.frames.Top()
	top.ReentryCount++
	if top.ReentryCount > maxReentry {
		return vm.throwRange("too much recursion")
	}
	raw := make([]interface{}, len(args))
	for i, a := range args {
		raw[i] = a
	}
	result, err := fn.Native(raw)
	if errors.Is(err, ErrAgain) {
		// ReentryCount stays incremented: it is how the native tracks
		// progress across cooperative returns.
		return RCAgain, nil
	}
	// The call is over, suspended or not; zero the counter rather than
	// decrementing so the increments accumulated across AGAIN re-entries
	// don't leak into the next call on this frame. Native calls on one
	// frame are strictly sequential (a NativeFn cannot re-enter dispatch),
	// so there is no outer in-flight count to preserve.
	top.ReentryCount = 0
	if err != nil {
		return vm.throw(errToValue(err))
	}
	v, ok := result.(value.Value)
	if !ok {
		v = value.Undef()
	}
	vm.setRetval(ins, v)
	return RCAdvance, nil
}

// pushScriptedFrame installs a new frame for fn positioned after the
// current args/locals regions and points pc at its entry. When
// hasDest is true, dest names where RETURN should deliver the result once
// this frame pops; trap micro-calls (trap.go) push with
// hasDest == false and read vm.Retval directly instead.
func (vm *VM) pushScriptedFrame(fn *object.Function, args []value.Value, dest Operand, hasDest bool) (RC, error) {
	l := fn.Lambda
	argsBase := len(vm.args)
	localBase := len(vm.locals)
	for i := 0; i < l.NumArgs; i++ {
		var a value.Value
		if i < len(args) {
			a = args[i]
		} else {
			a = value.Undef()
		}
		vm.args = append(vm.args, a)
	}
	for i := 0; i < l.NumLocals; i++ {
		vm.locals = append(vm.locals, value.Undef())
	}

	nf := &frame.Frame{
		ArgsBase:   argsBase,
		LocalBase:  localBase,
		ReturnAddr: vm.pc + 1,
		Flags:      frame.Flags{Ctor: l.IsCtor},
		FuncName:   l.Name,
	}
	if hasDest {
		nf.HasReturnDest = true
		nf.ReturnDestScope = dest.Scope
		nf.ReturnDestIndex = dest.Index
	}
	vm.frames.Push(nf)
	vm.pc = l.Entry
	return RCJump, nil
}

// opReturn implements RETURN: read the value at operand[0] in the
// returning frame's own scope, pop the frame, and deliver the value to
// the destination the CALL instruction recorded on that frame.
func opReturn(vm *VM, ins Instruction) (RC, error) {
	v := vm.loc(ins.Operands[0])
	return vm.doReturn(v)
}

func (vm *VM) doReturn(v value.Value) (RC, error) {
	returning := vm.frames.Pop()
	vm.Retval = v
	if vm.frames.Empty() {
		return RCDone, nil
	}
	vm.pc = returning.ReturnAddr
	if returning.HasReturnDest {
		vm.setLoc(Operand{Shape: shapeLoc, Scope: returning.ReturnDestScope, Index: returning.ReturnDestIndex}, v)
	}
	return RCJump, nil
}

func opHalt(vm *VM, ins Instruction) (RC, error) {
	vm.Retval = vm.loc(ins.Operands[0])
	return RCDone, nil
}

// runSyncLoop drives dispatch until the frame stack depth falls back to
// floor, i.e. until the frame pushed just before calling it has popped.
// Used by callSync so a trap's valueOf/toString micro-call runs to
// completion without the main Run loop falling through into whatever
// real instruction happens to sit at the resumed pc (doReturn sets pc to
// the caller's next instruction, which is only safe to actually dispatch
// once the outer, real Run loop gets back control).
func (vm *VM) runSyncLoop(floor int) (RC, error) {
	for vm.frames.Depth() > floor {
		if vm.pc >= uint32(len(vm.Program.Instructions)) {
			return RCDone, nil
		}
		ins := vm.Program.Instructions[vm.pc]
		rc, err := vm.dispatch(ins)
		if err != nil {
			return rc, err
		}
		switch rc {
		case RCAdvance:
			vm.pc++
		case RCJump, RCTrap:
			// pc already updated by the handler.
		case RCError:
			if !vm.unwindAbove(floor) {
				return RCError, vm.exceptionError()
			}
		case RCDone:
			return RCDone, nil
		case RCAgain:
			return RCAgain, nil
		}
	}
	return RCAdvance, nil
}

// callSync invokes fnVal with args and drives it to completion
// synchronously, used by the implicit-conversion trap machinery
// to run a valueOf/toString micro-call without disturbing the calling
// instruction's own pc.
func (vm *VM) callSync(fnVal value.Value, args []value.Value) (value.Value, error) {
	if !isCallable(fnVal) {
		return value.Undef(), nil
	}
	if fnVal.Tag() == value.NativeFunction {
		fn := fnVal.Heap().(*object.Function)
		raw := make([]interface{}, len(args))
		for i, a := range args {
			raw[i] = a
		}
		result, err := fn.Native(raw)
		if errors.Is(err, ErrAgain) {
			// Suspension is honored only at the outer Run loop's call
			// boundaries; a conversion method cannot park the VM.
			return value.Undef(), &Exception{
				Kind:  ErrType,
				Value: value.String([]byte("cannot suspend during primitive conversion"), 42),
			}
		}
		if err != nil {
			return value.Undef(), err
		}
		if v, ok := result.(value.Value); ok {
			return v, nil
		}
		return value.Undef(), nil
	}

	fn := fnVal.Heap().(*object.Function)
	savedPC := vm.pc
	floor := vm.frames.Depth()
	if _, err := vm.pushScriptedFrame(fn, args, Operand{}, false); err != nil {
		vm.pc = savedPC
		return value.Undef(), err
	}
	rc, err := vm.runSyncLoop(floor)
	vm.pc = savedPC
	if err != nil {
		return value.Undef(), err
	}
	if rc == RCError {
		return value.Undef(), vm.exceptionError()
	}
	if rc == RCAgain {
		// A native deeper in the conversion tried to suspend. Discard the
		// conversion's frames so the caller's stack is intact, and fail the
		// conversion: suspension is only honored at the outer Run loop's
		// call boundaries.
		for vm.frames.Depth() > floor {
			vm.frames.Pop()
		}
		return value.Undef(), &Exception{
			Kind:  ErrType,
			Value: value.String([]byte("cannot suspend during primitive conversion"), 42),
		}
	}
	return vm.Retval, nil
}

func errToValue(err error) value.Value {
	msg := err.Error()
	return value.String([]byte(msg), len(msg))
}
