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

package external

import "testing"

func TestDjbHashKnownValue(t *testing.T) {
	// djb2 of "" is the seed itself.
	if got := DjbHash(""); got != 5381 {
		t.Errorf("DjbHash(\"\") = %d; want 5381", got)
	}
	if DjbHash("foo") != DjbHash("foo") {
		t.Errorf("DjbHash must be deterministic")
	}
	if DjbHash("foo") == DjbHash("bar") {
		t.Errorf("DjbHash(foo) collided with DjbHash(bar); suspiciously unlucky or broken")
	}
}

func TestDescriptorHashCaseFold(t *testing.T) {
	d := &Descriptor{CaseFold: true}
	if d.Hash("Name") != d.Hash("name") {
		t.Errorf("a case-folding descriptor must hash Name and name identically")
	}

	strict := &Descriptor{CaseFold: false}
	if strict.Hash("Name") == strict.Hash("name") {
		t.Errorf("a non-folding descriptor must not collapse Name and name (too unlucky to be a real collision)")
	}
}

func TestLowerOnlyFoldsASCII(t *testing.T) {
	if got := lower("MixedCase123"); got != "mixedcase123" {
		t.Errorf("lower(MixedCase123) = %q; want mixedcase123", got)
	}
}
