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
	"os"

	"github.com/edsrzf/mmap-go"
	"golang.org/x/crypto/sha3"

	"github.com/emberlang/ember/vm"
)

// File is an mmap'd bytecode file. Keep it open for the program's
// lifetime and Close it at VM teardown — the decoded Program's long
// constant strings (over 14 bytes) are plain Go byte slices backed by the
// mapping, not copies, so unmapping invalidates them. Shorter strings are
// copied into their Values' inline buffers.
type File struct {
	f    *os.File
	data mmap.MMap
}

// Open mmaps path and decodes its Program. When verify is true, the
// caller additionally gets the SHA3-256 digest of the whole file back,
// for comparison against an out-of-band expected hash (the `-verify` CLI
// flag's use case).
func Open(path string, verify bool) (*File, *vm.Program, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, nil, nil, err
	}
	var digest []byte
	if verify {
		sum := sha3.Sum256(m)
		digest = sum[:]
	}
	p, err := DecodeProgram(m)
	if err != nil {
		m.Unmap()
		f.Close()
		return nil, nil, nil, fmt.Errorf("bytecode: %s: %w", path, err)
	}
	return &File{f: f, data: m}, p, digest, nil
}

// Close unmaps the file and releases its descriptor.
func (bf *File) Close() error {
	if err := bf.data.Unmap(); err != nil {
		return err
	}
	return bf.f.Close()
}

// WriteProgram encodes p and writes it to path (used by the assembler
// and by tests constructing fixture .embc files).
func WriteProgram(path string, p *vm.Program) error {
	data := EncodeProgram(p)
	return os.WriteFile(path, data, 0o644)
}
