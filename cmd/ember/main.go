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

// Command ember is a convenience/demo shell around the interpreter core:
// assembling and running a text bytecode listing, disassembling a
// compiled .embc file, and a small REPL for single instructions. None of
// this is part of the core's tested contract; it exists only to exercise
// package integration the way a real embedder would.
package main

import (
	"fmt"
	"io/ioutil"
	"os"

	"github.com/fatih/color"
	"github.com/peterh/liner"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/emberlang/ember/asm"
	"github.com/emberlang/ember/bytecode"
	"github.com/emberlang/ember/integration"
)

const version = "0.1.0"

func main() {
	app := cli.NewApp()
	app.Name = "ember"
	app.Usage = "run and inspect Ember bytecode programs"
	app.Version = version

	app.Commands = []cli.Command{
		{
			Name:      "run",
			Usage:     "assemble and run a text bytecode listing",
			ArgsUsage: "<file.ember.s>",
			Action:    runCommand,
		},
		{
			Name:      "disasm",
			Usage:     "disassemble a compiled .embc bytecode file",
			ArgsUsage: "<file.embc>",
			Action:    disasmCommand,
		},
		{
			Name:   "repl",
			Usage:  "interactive single-instruction REPL",
			Action: replCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}

func runCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.NewExitError("usage: ember run <file.ember.s>", 1)
	}
	src, err := ioutil.ReadFile(c.Args().Get(0))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	program, err := asm.Assemble(string(src))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	eng := integration.Create(0)
	eng.LoadProgram(program)
	result := eng.Run()
	if result.Exception != nil {
		return cli.NewExitError(result.Exception.Error(), 1)
	}
	fmt.Println(integration.ValueAsString(result.ReturnVal))
	return nil
}

func disasmCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.NewExitError("usage: ember disasm <file.embc>", 1)
	}
	bf, program, _, err := bytecode.Open(c.Args().Get(0), false)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer bf.Close()
	bytecode.Disassemble(os.Stdout, program)
	return nil
}

func replCommand(c *cli.Context) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	bold := color.New(color.FgCyan, color.Bold)
	bold.Println("ember repl — one assembler line at a time, Ctrl-D to exit")

	eng := integration.Create(0)
	for {
		text, err := line.Prompt("ember> ")
		if err != nil {
			return nil
		}
		line.AppendHistory(text)
		program, err := asm.Assemble(text)
		if err != nil {
			fmt.Println(color.RedString(err.Error()))
			continue
		}
		eng.LoadProgram(program)
		result := eng.Run()
		if result.Exception != nil {
			fmt.Println(color.RedString(result.Exception.Error()))
			continue
		}
		fmt.Println(color.GreenString(integration.ValueAsString(result.ReturnVal)))
	}
}
