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

package arena

import "testing"

func TestNewOwnedLongStringStartsAtOne(t *testing.T) {
	r := NewOwnedLongString([]byte("hello"), 5)
	if got := r.RetainCount(); got != 1 {
		t.Fatalf("RetainCount() = %d; want 1", got)
	}
}

func TestRetainReleaseRoundTrip(t *testing.T) {
	r := NewOwnedLongString([]byte("hello"), 5)
	r.Retain()
	r.Retain()
	if got := r.RetainCount(); got != 3 {
		t.Fatalf("RetainCount() after two Retain() = %d; want 3", got)
	}
	r.Release()
	if got := r.RetainCount(); got != 2 {
		t.Fatalf("RetainCount() after Release() = %d; want 2", got)
	}
}

func TestRetainSaturates(t *testing.T) {
	r := NewOwnedLongString([]byte("x"), 1)
	for i := 0; i < retainMax+10; i++ {
		r.Retain()
	}
	if got := r.RetainCount(); got != retainMax {
		t.Fatalf("RetainCount() after overflow = %d; want saturated %d", got, retainMax)
	}
}

func TestExternalLongStringIgnoresRefcounting(t *testing.T) {
	r := NewLongString([]byte("const"), 5)
	r.Retain()
	r.Retain()
	if got := r.RetainCount(); got != 0 {
		t.Fatalf("external-owner RetainCount() = %d; want 0 (refcounting disabled)", got)
	}
	r.Release()
	if got := r.RetainCount(); got != 0 {
		t.Fatalf("external-owner Release() moved the count; want it to stay 0, got %d", got)
	}
}

func TestCodepointAtWithoutOffsetIndex(t *testing.T) {
	r := NewOwnedLongString([]byte("abc"), 3)
	for i, want := range []int{0, 1, 2} {
		if got := r.CodepointAt(i); got != want {
			t.Errorf("CodepointAt(%d) = %d; want %d", i, got, want)
		}
	}
	if got := r.CodepointAt(99); got != -1 {
		t.Errorf("CodepointAt(out of range) = %d; want -1", got)
	}
}

func TestCodepointAtBuildsOffsetsForLongNonASCII(t *testing.T) {
	// A string long enough to cross offsetIndexThreshold made of 2-byte
	// runes, so byte length != codepoint count and an offset index builds.
	data := make([]byte, 0, offsetIndexThreshold*2+2)
	for i := 0; i < offsetIndexThreshold+1; i++ {
		data = append(data, 0xC2, 0xA9) // U+00A9 COPYRIGHT SIGN, 2 bytes
	}
	r := NewOwnedLongString(data, 0)
	if r.offsets == nil {
		t.Fatalf("expected an offset index to be built for a long non-ASCII string")
	}
	if got := r.CodepointAt(1); got != 2 {
		t.Errorf("CodepointAt(1) = %d; want byte offset 2", got)
	}
}

func TestInternReusesRecordForSameKey(t *testing.T) {
	a := New(0)
	key := InternKey{Pool: 0, Bytes: "hello"}
	r1 := a.Intern(key, []byte("hello"), 5)
	r2 := a.Intern(key, []byte("hello"), 5)
	if r1 != r2 {
		t.Errorf("Intern() with the same key should return the cached record")
	}
}

func TestInternDistinguishesPool(t *testing.T) {
	a := New(0)
	r1 := a.Intern(InternKey{Pool: 0, Bytes: "x"}, []byte("x"), 1)
	r2 := a.Intern(InternKey{Pool: 1, Bytes: "x"}, []byte("x"), 1)
	if r1 == r2 {
		t.Errorf("Intern() with different pool indices should not collide")
	}
}

func TestNewDefaultsMaxBytes(t *testing.T) {
	a := New(0)
	if a.pool == nil || a.intern == nil {
		t.Fatalf("New(0) should still construct usable pool/intern caches")
	}
}

func TestReleaseResetsPool(t *testing.T) {
	a := New(0)
	a.Intern(InternKey{Pool: 0, Bytes: "x"}, []byte("x"), 1)
	a.Release()
	if _, ok := a.intern.Get(InternKey{Pool: 0, Bytes: "x"}); ok {
		t.Errorf("Release() should purge the intern cache")
	}
}
