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
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/emberlang/ember/frame"
	"github.com/emberlang/ember/vm"
)

// Disassemble writes a human-readable instruction table for p to w,
// one row per instruction: offset, mnemonic, operands.
func Disassemble(w io.Writer, p *vm.Program) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"OFFSET", "OP", "OPERANDS", "NARGS"})
	table.SetAutoWrapText(false)

	for i, ins := range p.Instructions {
		table.Append([]string{
			fmt.Sprintf("%04d", i),
			ins.Op.String(),
			formatOperands(ins),
			fmt.Sprintf("%d", ins.NArgs),
		})
	}
	table.Render()
}

func formatOperands(ins vm.Instruction) string {
	_, shapes := vm.OperandShapes(ins.Op)
	out := ""
	for i, s := range shapes {
		if s == 0 {
			continue
		}
		if out != "" {
			out += ", "
		}
		op := ins.Operands[i]
		if s == vm.OperandShapeRaw {
			out += fmt.Sprintf("#%d", op.Raw)
		} else {
			out += fmt.Sprintf("%s[%d]", scopeName(op.Scope), op.Index)
		}
	}
	return out
}

func scopeName(s frame.Scope) string {
	switch s {
	case frame.ScopeGlobal:
		return "G"
	case frame.ScopeCalleeArguments:
		return "CA"
	case frame.ScopeArguments:
		return "A"
	case frame.ScopeLocal:
		return "L"
	default:
		return "?"
	}
}
