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

import "github.com/emberlang/ember/value"

// opTryStart installs a handler on the current frame pointing at the
// associated catch block, relative to this instruction.
func opTryStart(vm *VM, ins Instruction) (RC, error) {
	target := uint32(int32(vm.pc) + ins.Operands[0].Raw)
	vm.frames.Top().PushHandler(target)
	return RCAdvance, nil
}

// opTryEnd removes the handler installed by the matching TRY_START once
// the protected block completes without an exception.
func opTryEnd(vm *VM, ins Instruction) (RC, error) {
	vm.frames.Top().PopHandler()
	return RCAdvance, nil
}

// opThrow raises the value at operand[0] as a script exception.
func opThrow(vm *VM, ins Instruction) (RC, error) {
	return vm.throw(vm.loc(ins.Operands[0]))
}

// opCatch runs at the target unwind() jumped to: it picks up the
// in-flight exception value into operand[0] and clears the VM's
// exception state, resuming normal dispatch inside the catch block.
// Operand[1], when non-zero, is a pc-relative offset to an enclosing
// finally block: the catch installs a handler at the finally's address
// when present; otherwise the handler stack stays as unwind() left it.
// Installing it here
// means an exception thrown from inside the catch body itself still
// routes through the finally before propagating further, instead of
// skipping it because TRY_START's original handler was already consumed
// by unwind() to reach this CATCH in the first place.
func opCatch(vm *VM, ins Instruction) (RC, error) {
	vm.setLoc(ins.Operands[0], vm.pendingException)
	vm.pendingException = value.Value{}
	vm.pendingExceptionKind = nil
	vm.hasException = false
	if raw := ins.Operands[1].Raw; raw != 0 {
		target := uint32(int32(vm.pc) + raw)
		vm.frames.Top().PushHandler(target)
	}
	return RCAdvance, nil
}

// opFinally marks the entry of a finally block. The assembler/compiler
// (out of scope for this core) is responsible for arranging that both the
// normal fall-through path and the exception-unwind path reach this
// address; the interpreter itself does not re-run a finally block twice.
func opFinally(vm *VM, ins Instruction) (RC, error) {
	return RCAdvance, nil
}
