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

// Package arena implements a scoped lifetime for heap records: most are
// owned by a per-VM arena released in one shot, plus intrusive refcounts on
// long strings so they can outlive the frame that produced them.
//
// The backing store is a fastcache.Cache (a memcache-style, per-size
// free-list pool) rather than a hand-rolled free list: fastcache already is
// that pool, and its bytes live off the Go heap so a large script does not
// pressure the garbage collector.
package arena

import (
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	lru "github.com/hashicorp/golang-lru"
)

// retainMax is the saturation point for a string's refcount: once reached,
// the string is treated as permanent for the life of the VM.
const retainMax = 0xFFFF

// internCacheSize bounds the long-string constant interning cache. It holds only
// already-computed clones, never script-observable state, which is why a
// single cache may be shared across VM instances even though every other
// piece of arena state is scoped to one VM.
const internCacheSize = 4096

// LongStringRecord is the heap-owned backing for a String value too large
// for the inline layout: start/size/length plus a saturating retain count.
type LongStringRecord struct {
	mu       sync.Mutex
	data     []byte
	length   int // codepoints; 0 means "unknown, recompute lazily"
	retain   uint16
	external bool // host-owned or compile-time constant: refcounting disabled
	// offsets indexes codepoint boundaries so CodepointAt can answer in
	// O(1) instead of scanning. NewOwnedLongString builds it at
	// construction for long non-ASCII strings and whenever the codepoint
	// count is passed as 0.
	offsets []int32
}

// offsetIndexThreshold is the build-time size threshold past which a
// non-ASCII long string gets an offset index.
const offsetIndexThreshold = 64

// NewLongString wraps data as a permanent (external-owner) long string: used
// for compile-time constants and host-owned strings, which never
// refcount.
func NewLongString(data []byte, codepoints int) *LongStringRecord {
	return &LongStringRecord{data: data, length: codepoints, external: true}
}

// NewOwnedLongString wraps data as an arena-owned, refcounted long string
// starting at refcount 1.
func NewOwnedLongString(data []byte, codepoints int) *LongStringRecord {
	r := &LongStringRecord{data: data, length: codepoints, retain: 1}
	if codepoints == 0 || (len(data) != codepoints && len(data) >= offsetIndexThreshold) {
		r.buildOffsets()
	}
	return r
}

func (r *LongStringRecord) buildOffsets() {
	offs := make([]int32, 0, len(r.data))
	n := 0
	for i := 0; i < len(r.data); {
		offs = append(offs, int32(i))
		_, size := decodeRune(r.data[i:])
		i += size
		n++
	}
	r.offsets = offs
	r.length = n
}

// decodeRune is a minimal UTF-8 decoder sufficient for offset-index
// construction; full codec concerns belong to the out-of-scope string codec
// collaborator.
func decodeRune(b []byte) (rune, int) {
	if len(b) == 0 {
		return 0, 0
	}
	c := b[0]
	switch {
	case c < 0x80:
		return rune(c), 1
	case c&0xE0 == 0xC0 && len(b) >= 2:
		return rune(c&0x1F)<<6 | rune(b[1]&0x3F), 2
	case c&0xF0 == 0xE0 && len(b) >= 3:
		return rune(c&0x0F)<<12 | rune(b[1]&0x3F)<<6 | rune(b[2]&0x3F), 3
	case c&0xF8 == 0xF0 && len(b) >= 4:
		return rune(c&0x07)<<18 | rune(b[1]&0x3F)<<12 | rune(b[2]&0x3F)<<6 | rune(b[3]&0x3F), 4
	default:
		return rune(c), 1
	}
}

// Bytes returns the UTF-8 byte view of the record.
func (r *LongStringRecord) Bytes() []byte { return r.data }

// CodepointAt returns the byte offset of codepoint i, using the offset
// index when available (O(1)) and falling back to a linear scan otherwise.
func (r *LongStringRecord) CodepointAt(i int) int {
	if r.offsets != nil {
		if i < 0 || i >= len(r.offsets) {
			return -1
		}
		return int(r.offsets[i])
	}
	n := 0
	for off := 0; off < len(r.data); n++ {
		if n == i {
			return off
		}
		_, size := decodeRune(r.data[off:])
		off += size
	}
	return -1
}

// Retain increments the refcount saturating at 0xFFFF.
func (r *LongStringRecord) Retain() {
	if r.external {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.retain < retainMax {
		r.retain++
	}
}

// Release decrements the refcount. It never actually returns bytes to the
// arena: the count is tracked for observability and future reclamation, but
// strings are treated as effectively permanent within a VM's lifetime.
// Tests must not depend on eager reclamation.
func (r *LongStringRecord) Release() {
	if r.external {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.retain > 0 && r.retain < retainMax {
		r.retain--
	}
}

// RetainCount reports the current refcount, for tests and diagnostics.
func (r *LongStringRecord) RetainCount() uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retain
}

// Arena is the per-VM scoped allocator. Object and Array property tables
// are allocated from it conceptually, but here they are ordinary heap
// objects collected by the Go GC. What the Arena actually owns is the
// fastcache-backed byte pool used for raw string/byte allocations, and a
// bounded LRU used to intern long constant strings so repeated literals in
// a program don't each get their own backing array.
type Arena struct {
	pool   *fastcache.Cache
	intern *lru.Cache
}

// New creates an Arena with a fastcache pool sized maxBytes (rounded up to
// fastcache's minimum by the library itself) and a bounded intern cache.
func New(maxBytes int) *Arena {
	if maxBytes <= 0 {
		maxBytes = 32 * 1024 * 1024
	}
	c, _ := lru.New(internCacheSize)
	return &Arena{
		pool:   fastcache.New(maxBytes),
		intern: c,
	}
}

// InternKey is the key space used for interned constant strings: callers
// supply the compiled program's constant-pool index plus the raw bytes.
// Identical literals at different constant indices get separate records;
// the same literal at the same index, in any program sharing the Arena,
// resolves to the same record.
type InternKey struct {
	Pool  uint32
	Bytes string
}

// Intern returns a long-string record for data, reusing a previously
// interned record for the same key when one exists in the bounded LRU
// cache. Interned records are permanent: a compile-time constant never
// needs refcount maintenance, so NewLongString rather than
// NewOwnedLongString backs the returned record.
//
// The LRU only bounds how many *records* (with their parsed codepoint
// index) are kept hot; the raw bytes behind every key interned so far
// are also stored in the larger fastcache pool, keyed by the bytes alone.
// On an LRU miss for bytes the pool already holds, the new record is
// backed by the copy pool.Get returns; otherwise it is backed by data as
// given and the bytes are added to the pool. Each record has its own
// byte buffer.
func (a *Arena) Intern(key InternKey, data []byte, codepoints int) *LongStringRecord {
	if v, ok := a.intern.Get(key); ok {
		return v.(*LongStringRecord)
	}
	keyBytes := []byte(key.Bytes)
	stored := a.pool.Get(nil, keyBytes)
	if stored == nil {
		a.pool.Set(keyBytes, data)
		stored = data
	}
	rec := NewLongString(stored, codepoints)
	a.intern.Add(key, rec)
	return rec
}

// Release frees the fastcache pool's memory and purges the intern cache:
// every arena-owned allocation is released in one shot rather than
// tracked and freed individually. The vm package never calls it; the
// Arena's owner does.
func (a *Arena) Release() {
	a.pool.Reset()
	a.intern.Purge()
}
