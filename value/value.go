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

// Package value implements the tagged scalar/heap-pointer union that every
// interpreter operand is. A Value is a small, copyable struct; heap-backed
// tags (Object, Array, Function, RegExp, External) carry a pointer into
// arena-owned storage, while primitive tags carry their payload inline.
package value

import "math"

// Tag identifies the dynamic type of a Value.
type Tag uint8

const (
	Null Tag = iota
	Undefined
	Boolean
	Number
	StringTag
	Object
	Array
	Function
	RegExp
	NativeFunction
	External
	// Invalid marks a "hole": an array hole, an uninitialized local, or a
	// deleted array slot. It must never be observed by a user operation
	// except via explicit validity checks (see IsValid).
	Invalid
)

func (t Tag) String() string {
	switch t {
	case Null:
		return "null"
	case Undefined:
		return "undefined"
	case Boolean:
		return "boolean"
	case Number:
		return "number"
	case StringTag:
		return "string"
	case Object:
		return "object"
	case Array:
		return "array"
	case Function:
		return "function"
	case RegExp:
		return "regexp"
	case NativeFunction:
		return "nativefunction"
	case External:
		return "external"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// inlineCap is the number of bytes a short string carries inline in a
// Value: up to 14 inline bytes with size+length.
const inlineCap = 14

// InlineCap exports inlineCap for callers outside this package (the vm
// package's string-construction helpers) that need to decide between the
// inline and long-string layouts themselves.
const InlineCap = inlineCap

// Value is a tagged 16-logical-byte cell (the Go struct is larger because it
// is not bit-packed, but it carries exactly that payload). Every constructor
// below recomputes the truth bit; nothing lazily derives truthiness from the
// tag at read time.
type Value struct {
	tag   Tag
	truth bool

	num uint64 // Number payload (math.Float64bits), or mirrored 0/1 for Boolean

	// String payload: either inline bytes (long == nil) or a pointer to a
	// long-string record held by the arena (see arena.go in the arena
	// package). strLen is the codepoint length, 0 meaning "unknown, compute
	// lazily" for freshly concatenated non-ASCII strings.
	inline    [inlineCap]byte
	inlineLen uint8
	long      LongString
	strLen    int

	// heap is the owning pointer for Object/Array/Function/RegExp/External.
	heap interface{}
}

// LongString is the narrow contract a Value needs from the arena's
// refcounted long-string record. The arena package implements it;
// value stays independent of arena to avoid an import cycle, since arena
// also needs to construct Values.
type LongString interface {
	Bytes() []byte
	Retain()
	Release()
}

// Undef returns the canonical undefined value. Undefined carries a
// canonical NaN so arithmetic on it does not need a special case.
func Undef() Value {
	return Value{tag: Undefined, truth: false, num: math.Float64bits(math.NaN())}
}

// Nil returns the null value.
func Nil() Value {
	return Value{tag: Null, truth: false}
}

// Hole returns the Invalid "hole" value used for array holes and
// uninitialized locals.
func Hole() Value {
	return Value{tag: Invalid, truth: false}
}

// Bool constructs a Boolean value. The numeric mirror is set at
// construction time so arithmetic on booleans never needs a conversion.
func Bool(b bool) Value {
	v := Value{tag: Boolean, truth: b}
	if b {
		v.num = 1
	}
	return v
}

// Num constructs a Number value. NaN is permitted; the tag stays Number.
func Num(f float64) Value {
	return Value{tag: Number, truth: f != 0 && !math.IsNaN(f), num: math.Float64bits(f)}
}

// ShortString constructs a String value from bytes that fit in the inline
// buffer. The caller must ensure len(b) <= inlineCap; use String (or
// LongStringValue) for longer inputs.
func ShortString(b []byte, codepoints int) Value {
	if len(b) > inlineCap {
		panic("value: ShortString payload exceeds inline capacity")
	}
	v := Value{tag: StringTag, truth: len(b) > 0}
	copy(v.inline[:], b)
	v.inlineLen = uint8(len(b))
	v.strLen = codepoints
	return v
}

// plainLongString is a permanent, non-refcounted LongString used by
// String(b) when the caller has no arena at hand (e.g. naming a native
// function). It behaves like an external-owner constant.
type plainLongString struct{ data []byte }

func (p *plainLongString) Bytes() []byte { return p.data }
func (p *plainLongString) Retain()       {}
func (p *plainLongString) Release()      {}

// String constructs a String value from b, choosing the inline layout when
// it fits and an unmanaged permanent long record otherwise. Use
// arena.NewOwnedLongString plus LongStringValue directly when refcounting
// matters (e.g. runtime concatenation results).
func String(b []byte, codepoints int) Value {
	if len(b) <= inlineCap {
		return ShortString(b, codepoints)
	}
	return LongStringValue(&plainLongString{data: b}, len(b), codepoints)
}

// LongStringValue constructs a String value backed by an arena-owned
// long-string record. Retain has already been called by the producer
// (assignment increments refcount at the copy site, not here).
func LongStringValue(s LongString, byteLen, codepoints int) Value {
	return Value{tag: StringTag, truth: byteLen > 0, long: s, strLen: codepoints}
}

// Heap wraps a heap-owning pointer (an *object.Object, *object.Array,
// *object.Function, *object.RegExpRecord, or *external.Descriptor) in a
// Value of the given tag. truth is always true for heap values, matching
// the convention that every allocation opcode "sets truth to 1".
func Heap(tag Tag, ptr interface{}) Value {
	return Value{tag: tag, truth: true, heap: ptr}
}

// Tag reports the value's dynamic type.
func (v Value) Tag() Tag { return v.tag }

// Truth reports the precomputed truthiness bit, used for branch-free
// if/&&/|| evaluation.
func (v Value) Truth() bool { return v.truth }

// IsValid reports whether v is anything other than the Invalid hole.
func (v Value) IsValid() bool { return v.tag != Invalid }

// IsNullOrUndefined reports the "null and undefined equal only each other"
// predicate used by loose equality.
func (v Value) IsNullOrUndefined() bool { return v.tag == Null || v.tag == Undefined }

// Float64 returns the Number payload. Callers must check Tag() == Number
// first; Boolean payloads are also stored as 0/1 doubles-compatible bits but
// Float64 does not implicitly convert other tags.
func (v Value) Float64() float64 {
	switch v.tag {
	case Number:
		return math.Float64frombits(v.num)
	case Boolean:
		if v.num == 1 {
			return 1
		}
		return 0
	default:
		return math.NaN()
	}
}

// Bool01 returns the mirrored 0/1 numeric form of a Boolean value.
func (v Value) Bool01() uint64 { return v.num }

// IsBool reports whether the Boolean payload is true.
func (v Value) IsBool() bool { return v.tag == Boolean && v.num == 1 }

// Heap returns the heap-owning pointer for Object/Array/Function/RegExp/
// External tags. Returns nil for any other tag.
func (v Value) Heap() interface{} { return v.heap }

// StringLen returns the known codepoint length, or 0 if unknown (meaning
// "recompute lazily").
func (v Value) StringLen() int { return v.strLen }

// Bytes returns the UTF-8 byte view of a String value, from whichever
// layout (inline or long) is active.
func (v Value) Bytes() []byte {
	if v.tag != StringTag {
		return nil
	}
	if v.long != nil {
		return v.long.Bytes()
	}
	return v.inline[:v.inlineLen]
}

// IsLongString reports whether the String payload uses the long-string
// (arena-backed, refcounted) layout rather than the inline layout.
func (v Value) IsLongString() bool { return v.tag == StringTag && v.long != nil }

// LongRecord returns the long-string record, or nil if the value is an
// inline short string or not a String at all.
func (v Value) LongRecord() LongString { return v.long }

// StructurallyEqual implements the "same-tag compares by structure for
// strings" rule used by ==. It does not implement the cross-tag numeric
// coercions; callers handle those before reaching here.
func (a Value) StructurallyEqual(b Value) bool {
	if a.tag != b.tag {
		return false
	}
	switch a.tag {
	case Null, Undefined:
		return true
	case Boolean:
		return a.num == b.num
	case Number:
		af, bf := a.Float64(), b.Float64()
		return af == bf // NaN != NaN falls out naturally
	case StringTag:
		return string(a.Bytes()) == string(b.Bytes())
	default:
		// Objects, arrays, functions, regexps, externals: identity.
		return a.heap == b.heap
	}
}
