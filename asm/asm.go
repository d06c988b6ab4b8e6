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

// Package asm is a tiny line-oriented assembler for the already-compiled
// three-address bytecode form. It is explicitly not a lexer/parser for
// ECMAScript source; that pipeline stage lives outside this module.
// It exists so tests and the `ember run` CLI subcommand can express
// fixture programs as text instead of hand-built vm.Instruction slices.
package asm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/emberlang/ember/frame"
	"github.com/emberlang/ember/object"
	"github.com/emberlang/ember/value"
	"github.com/emberlang/ember/vm"
)

// Assemble parses source (one instruction, label or directive per line;
// pass1 and pass2 below define the accepted forms) into a ready-to-run
// Program.
func Assemble(source string) (*vm.Program, error) {
	p := &asmState{labels: map[string]uint32{}, consts: map[string]int{}}
	if err := p.pass1(source); err != nil {
		return nil, err
	}
	return p.pass2(source)
}

type asmState struct {
	labels  map[string]uint32
	consts  map[string]int
	lambdas []*object.Lambda
	constSl []value.Value
	entry   uint32
}

// pass1 records label -> instruction-index and collects .const/.lambda
// declarations, since forward jump references need every label resolved
// before operand encoding happens.
func (p *asmState) pass1(source string) error {
	var idx uint32
	for _, raw := range strings.Split(source, "\n") {
		line := stripComment(raw)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, ".entry"):
			// resolved in pass2 once labels are known
		case strings.HasPrefix(line, ".const"):
			name, v, err := parseConstDecl(strings.TrimSpace(strings.TrimPrefix(line, ".const")))
			if err != nil {
				return err
			}
			p.consts[name] = len(p.constSl)
			p.constSl = append(p.constSl, v)
		case strings.HasPrefix(line, ".lambda"):
			l, err := parseLambdaDecl(line)
			if err != nil {
				return err
			}
			p.lambdas = append(p.lambdas, l)
		case strings.HasSuffix(line, ":"):
			p.labels[strings.TrimSuffix(line, ":")] = idx
		default:
			idx++
		}
	}
	return nil
}

func (p *asmState) pass2(source string) (*vm.Program, error) {
	var instructions []vm.Instruction
	entryLabel := ""
	for _, raw := range strings.Split(source, "\n") {
		line := stripComment(raw)
		line = strings.TrimSpace(line)
		if line == "" || strings.HasSuffix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, ".entry") {
			entryLabel = strings.TrimSpace(strings.TrimPrefix(line, ".entry"))
			continue
		}
		if strings.HasPrefix(line, ".const") || strings.HasPrefix(line, ".lambda") {
			continue
		}
		ins, err := p.parseInstruction(line, uint32(len(instructions)))
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, ins)
	}
	entry := uint32(0)
	if entryLabel != "" {
		addr, ok := p.labels[entryLabel]
		if !ok {
			return nil, fmt.Errorf("asm: unknown entry label %q", entryLabel)
		}
		entry = addr
	}
	return &vm.Program{
		Instructions: instructions,
		Consts:       p.constSl,
		Lambdas:      p.lambdas,
		EntryPoint:   entry,
	}, nil
}

func (p *asmState) parseInstruction(line string, at uint32) (vm.Instruction, error) {
	mnemonic, rest := splitFirst(line)
	op, ok := vm.Lookup(mnemonic)
	if !ok {
		return vm.Instruction{}, fmt.Errorf("asm: unknown opcode %q", mnemonic)
	}
	count, shapes := vm.OperandShapes(op)
	var operands [3]vm.Operand
	if strings.TrimSpace(rest) != "" {
		parts := strings.Split(rest, ",")
		if len(parts) != count {
			return vm.Instruction{}, fmt.Errorf("asm: %s expects %d operands, got %d", mnemonic, count, len(parts))
		}
		for i, raw := range parts {
			tok := strings.TrimSpace(raw)
			operand, err := p.parseOperand(tok, shapes[i], at)
			if err != nil {
				return vm.Instruction{}, err
			}
			operands[i] = operand
		}
	}
	return vm.Instruction{
		Op:        op,
		Operands:  operands,
		HasRetval: op.HasRetval(),
	}, nil
}

func (p *asmState) parseOperand(tok string, shape byte, at uint32) (vm.Operand, error) {
	if shape == vm.OperandShapeRaw {
		if strings.HasPrefix(tok, "@") {
			label := strings.TrimPrefix(tok, "@")
			target, ok := p.labels[label]
			if !ok {
				return vm.Operand{}, fmt.Errorf("asm: unknown label %q", label)
			}
			return vm.Operand{Raw: int32(target) - int32(at)}, nil
		}
		if strings.HasPrefix(tok, "$") {
			name := strings.TrimPrefix(tok, "$")
			idx, ok := p.consts[name]
			if !ok {
				return vm.Operand{}, fmt.Errorf("asm: unknown const %q", name)
			}
			return vm.Operand{Raw: int32(idx)}, nil
		}
		tok = strings.TrimPrefix(tok, "#")
		n, err := strconv.ParseInt(tok, 10, 32)
		if err != nil {
			return vm.Operand{}, fmt.Errorf("asm: bad raw operand %q: %w", tok, err)
		}
		return vm.Operand{Raw: int32(n)}, nil
	}
	scope, idx, err := parseLoc(tok)
	if err != nil {
		return vm.Operand{}, err
	}
	return vm.Operand{Scope: scope, Index: idx}, nil
}

func parseLoc(tok string) (frame.Scope, uint32, error) {
	open := strings.IndexByte(tok, '[')
	close := strings.IndexByte(tok, ']')
	if open < 0 || close < 0 || close < open {
		return 0, 0, fmt.Errorf("asm: bad location operand %q", tok)
	}
	tag := tok[:open]
	n, err := strconv.ParseUint(tok[open+1:close], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("asm: bad location index %q: %w", tok, err)
	}
	switch tag {
	case "G":
		return frame.ScopeGlobal, uint32(n), nil
	case "CA":
		return frame.ScopeCalleeArguments, uint32(n), nil
	case "A":
		return frame.ScopeArguments, uint32(n), nil
	case "L":
		return frame.ScopeLocal, uint32(n), nil
	default:
		return 0, 0, fmt.Errorf("asm: unknown scope tag %q", tag)
	}
}

// parseConstDecl parses the body of a `.const` directive. The preferred
// form is `name = value`, where value is a quoted string, a numeric
// literal, or one of true/false/null/undefined; the bare `"value"` form
// (no name) is also accepted for backward compatibility and keys the
// const table by the string's own content.
func parseConstDecl(body string) (string, value.Value, error) {
	if eq := strings.Index(body, "="); eq >= 0 {
		name := strings.TrimSpace(body[:eq])
		v, err := parseConstLiteral(strings.TrimSpace(body[eq+1:]))
		if err != nil {
			return "", value.Value{}, err
		}
		return name, v, nil
	}
	str, err := unquote(body)
	if err != nil {
		return "", value.Value{}, err
	}
	return str, value.String([]byte(str), utf8.RuneCountInString(str)), nil
}

func parseConstLiteral(tok string) (value.Value, error) {
	switch tok {
	case "true":
		return value.Bool(true), nil
	case "false":
		return value.Bool(false), nil
	case "null":
		return value.Nil(), nil
	case "undefined":
		return value.Undef(), nil
	}
	if strings.HasPrefix(tok, "\"") {
		str, err := unquote(tok)
		if err != nil {
			return value.Value{}, err
		}
		return value.String([]byte(str), utf8.RuneCountInString(str)), nil
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return value.Value{}, fmt.Errorf("asm: bad const literal %q: %w", tok, err)
	}
	return value.Num(f), nil
}

func parseLambdaDecl(line string) (*object.Lambda, error) {
	// .lambda name entry=N args=N locals=N [ctor]
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil, fmt.Errorf("asm: malformed .lambda line %q", line)
	}
	l := &object.Lambda{Name: fields[1]}
	for _, f := range fields[2:] {
		if f == "ctor" {
			l.IsCtor = true
			continue
		}
		kv := strings.SplitN(f, "=", 2)
		if len(kv) != 2 {
			continue
		}
		n, err := strconv.Atoi(kv[1])
		if err != nil {
			return nil, fmt.Errorf("asm: bad .lambda field %q: %w", f, err)
		}
		switch kv[0] {
		case "entry":
			l.Entry = uint32(n)
		case "args":
			l.NumArgs = n
		case "locals":
			l.NumLocals = n
		}
	}
	return l, nil
}

func splitFirst(line string) (string, string) {
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return line, ""
	}
	return line[:i], line[i+1:]
}

func stripComment(line string) string {
	if i := strings.Index(line, ";"); i >= 0 {
		return line[:i]
	}
	return line
}

func unquote(s string) (string, error) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", fmt.Errorf("asm: expected quoted string, got %q", s)
	}
	return s[1 : len(s)-1], nil
}
