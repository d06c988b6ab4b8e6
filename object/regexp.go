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

package object

import "github.com/dlclark/regexp2"

// RegExpRecord is the heap record behind a RegExp-tagged Value. The
// regular-expression engine itself is an external collaborator; the core's
// contract with it is exactly "compile a pattern, run a match" — nothing
// about the interpreter's dispatch loop or property protocol depends on how
// matching works internally. regexp2 is used here (rather than the
// standard library's RE2-based regexp) because it supports the backreference
// and lookaround constructs ECMAScript patterns allow, which RE2 cannot.
type RegExpRecord struct {
	Obj     *Object
	Source  string
	Flags   string
	engine  *regexp2.Regexp
}

// NewRegExp compiles source/flags and wraps the result. A compile error is
// returned to the caller to raise as a SyntaxError; the core itself
// never inspects why compilation failed.
func NewRegExp(proto *Object, source, flags string) (*RegExpRecord, error) {
	opts := regexp2.None
	for _, f := range flags {
		switch f {
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 's':
			opts |= regexp2.Singleline
		}
	}
	re, err := regexp2.Compile(source, opts)
	if err != nil {
		return nil, err
	}
	r := &RegExpRecord{Obj: NewObject(proto), Source: source, Flags: flags, engine: re}
	r.Obj.SetClass("RegExp")
	return r, nil
}

// MatchResult is the narrow result shape the core needs back from a match:
// whether it matched, and the matched substring's byte range.
type MatchResult struct {
	Matched    bool
	Start, End int
	Groups     []string
}

// Exec runs the pattern against s starting at byte offset from, returning
// a single narrow match-result contract.
func (r *RegExpRecord) Exec(s string, from int) (MatchResult, error) {
	m, err := r.engine.FindStringMatchStartingAt(s, from)
	if err != nil {
		return MatchResult{}, err
	}
	if m == nil {
		return MatchResult{Matched: false}, nil
	}
	groups := make([]string, 0, len(m.Groups()))
	for _, g := range m.Groups() {
		groups = append(groups, g.String())
	}
	return MatchResult{
		Matched: true,
		Start:   m.Index,
		End:     m.Index + m.Length,
		Groups:  groups,
	}, nil
}
