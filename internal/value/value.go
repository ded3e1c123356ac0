// Package value implements the SLP value arena: a contiguous byte buffer
// holding fixed-size unit-of-store records, and the tagged, interned-symbol
// value graph built on top of it.
//
// Grounded on original_source/pkg/slp/slp.{hpp,cpp} (the bosley/sxs C++
// implementation this runtime was distilled from) and generalized from its
// manual pointer arithmetic into Go's binary.LittleEndian + byte-slice
// idiom. The arena is shared by pointer between a Value and every Value
// produced by indexing into it (List.At, String.At) for the lifetime of one
// parse tree, since spec.md's resource model declares the arena immutable
// after parsing; Clone materializes the "copies the arena and symbol map by
// value" invariant at the points where a value leaves its program (export
// and import); scope definitions and lambda bodies keep sharing the arena
// they were parsed or built in.
package value

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Kind is the value tag stored in a unit's header.
type Kind uint32

const (
	KindNone Kind = iota
	KindSome
	KindInteger
	KindReal
	KindRune
	KindSymbol
	KindString
	KindParenList
	KindBracketList
	KindBraceList
	KindDatum
	KindError
	KindAberrant
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindSome:
		return "some"
	case KindInteger:
		return "int"
	case KindReal:
		return "real"
	case KindRune:
		return "rune"
	case KindSymbol:
		return "symbol"
	case KindString:
		return "str"
	case KindParenList:
		return "list-p"
	case KindBracketList:
		return "list-b"
	case KindBraceList:
		return "list-c"
	case KindDatum:
		return "datum"
	case KindError:
		return "error"
	case KindAberrant:
		return "aberrant"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

// unitSize is the fixed, 16-byte layout of a unit-of-store record: a
// 4-byte header (tag), a 4-byte flags field (list length where relevant),
// and an 8-byte payload (signed int, float bits, unsigned id, or offset).
const unitSize = 16

// Arena is the contiguous byte buffer backing one parsed source unit. Every
// Value produced from parsing the same source shares one *Arena.
type Arena struct {
	buf []byte
}

// NewArena returns an empty arena ready for allocation.
func NewArena() *Arena {
	return &Arena{}
}

// Size returns the number of bytes currently allocated.
func (a *Arena) Size() uint64 { return uint64(len(a.buf)) }

// inBounds reports whether offset points at the start of a full unit
// record within the arena.
func (a *Arena) inBounds(offset uint64) bool {
	return offset+unitSize <= uint64(len(a.buf))
}

// allocUnit appends a zeroed unit record of the given kind and returns its
// offset.
func (a *Arena) allocUnit(kind Kind) uint64 {
	offset := uint64(len(a.buf))
	a.buf = append(a.buf, make([]byte, unitSize)...)
	binary.LittleEndian.PutUint32(a.buf[offset:], uint32(kind))
	return offset
}

func (a *Arena) kindAt(offset uint64) Kind {
	if !a.inBounds(offset) {
		return KindNone
	}
	return Kind(binary.LittleEndian.Uint32(a.buf[offset:]))
}

func (a *Arena) flagsAt(offset uint64) uint32 {
	if !a.inBounds(offset) {
		return 0
	}
	return binary.LittleEndian.Uint32(a.buf[offset+4:])
}

func (a *Arena) setFlags(offset uint64, flags uint32) {
	binary.LittleEndian.PutUint32(a.buf[offset+4:], flags)
}

func (a *Arena) payloadUint(offset uint64) uint64 {
	if !a.inBounds(offset) {
		return 0
	}
	return binary.LittleEndian.Uint64(a.buf[offset+8:])
}

func (a *Arena) setPayloadUint(offset uint64, v uint64) {
	binary.LittleEndian.PutUint64(a.buf[offset+8:], v)
}

func (a *Arena) payloadInt(offset uint64) int64 {
	return int64(a.payloadUint(offset))
}

func (a *Arena) setPayloadInt(offset uint64, v int64) {
	a.setPayloadUint(offset, uint64(v))
}

func (a *Arena) payloadFloat(offset uint64) float64 {
	return math.Float64frombits(a.payloadUint(offset))
}

func (a *Arena) setPayloadFloat(offset uint64, v float64) {
	a.setPayloadUint(offset, math.Float64bits(v))
}

// appendOffsets writes a packed array of offsets after the current end of
// the arena and returns the array's start offset.
func (a *Arena) appendOffsets(offsets []uint64) uint64 {
	pos := uint64(len(a.buf))
	for _, off := range offsets {
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], off)
		a.buf = append(a.buf, tmp[:]...)
	}
	return pos
}

func (a *Arena) offsetsAt(pos uint64, count uint32) []uint64 {
	out := make([]uint64, count)
	for i := range out {
		base := pos + uint64(i)*8
		if base+8 > uint64(len(a.buf)) {
			break
		}
		out[i] = binary.LittleEndian.Uint64(a.buf[base:])
	}
	return out
}

// Value is a functional wrapper around one unit of store: it doesn't own
// data beyond the arena pointer and symbol table it was built from, and
// reads the raw bytes through Kind()/AsInt()/... instead of copying them.
type Value struct {
	arena   *Arena
	symbols map[uint64]string
	root    uint64
}

// FromData builds a Value that views an existing arena at the given root
// offset, sharing the arena and symbol table by reference.
func FromData(arena *Arena, symbols map[uint64]string, root uint64) Value {
	return Value{arena: arena, symbols: symbols, root: root}
}

// Kind returns the tag of the unit this Value views, or KindNone if the
// Value is empty or its root offset is out of range.
func (v Value) Kind() Kind {
	if v.arena == nil {
		return KindNone
	}
	return v.arena.kindAt(v.root)
}

// HasData reports whether the Value views a real, in-range unit.
func (v Value) HasData() bool {
	return v.arena != nil && v.arena.inBounds(v.root)
}

// AsInt returns the integer payload, or 0 if the Value isn't KindInteger.
func (v Value) AsInt() int64 {
	if v.Kind() != KindInteger {
		return 0
	}
	return v.arena.payloadInt(v.root)
}

// AsReal returns the real payload, or 0 if the Value isn't KindReal.
func (v Value) AsReal() float64 {
	if v.Kind() != KindReal {
		return 0
	}
	return v.arena.payloadFloat(v.root)
}

// AsRune returns the rune payload, or 0 if the Value isn't KindRune.
func (v Value) AsRune() rune {
	if v.Kind() != KindRune {
		return 0
	}
	return rune(v.arena.payloadUint(v.root))
}

// AsSymbol returns the interned name, or "" if the Value isn't KindSymbol
// or the symbol id is unknown.
func (v Value) AsSymbol() string {
	if v.Kind() != KindSymbol {
		return ""
	}
	return v.symbols[v.arena.payloadUint(v.root)]
}

// List returns a list accessor; Size()/At() both no-op when the Value
// isn't a list kind.
func (v Value) List() List {
	valid := false
	switch v.Kind() {
	case KindParenList, KindBracketList, KindBraceList:
		valid = true
	}
	return List{parent: v, valid: valid}
}

// Str returns a string accessor; the string is stored as a list of RUNE
// units, matching spec.md's "strings are lists of RUNE records."
func (v Value) Str() Str {
	return Str{parent: v, valid: v.Kind() == KindString}
}

// Inner returns the wrapped value for SOME, ERROR, and DATUM kinds (each
// wraps exactly one inner offset, per spec.md §3).
func (v Value) Inner() Value {
	switch v.Kind() {
	case KindSome, KindError, KindDatum:
		inner := v.arena.payloadUint(v.root)
		return FromData(v.arena, v.symbols, inner)
	default:
		return Value{}
	}
}

// AberrantID returns the opaque handle payload (in this runtime, always a
// lambda id), or 0 if the Value isn't KindAberrant.
func (v Value) AberrantID() uint64 {
	if v.Kind() != KindAberrant {
		return 0
	}
	return v.arena.payloadUint(v.root)
}

// Symbols exposes the shared symbol table (used when building a new Value
// that must dereference the same ids, e.g. Clone targets and list element
// construction during parsing).
func (v Value) Symbols() map[uint64]string { return v.symbols }

// Arena exposes the backing arena (used by the parser, typechecker and
// interpreter to build sibling/child values without re-parsing).
func (v Value) Arena() *Arena { return v.arena }

// RootOffset exposes the offset this Value views.
func (v Value) RootOffset() uint64 { return v.root }

// Clone deep-copies the arena bytes and symbol table reachable from this
// Value's root, producing a fully self-contained Value per spec.md §3's
// "cloning it copies the arena and symbol map by value" invariant. Used
// when recording an exported binding and when handing imported exports to
// the importer.
func (v Value) Clone() Value {
	if v.arena == nil {
		return Value{}
	}
	newArena := NewArena()
	newSymbols := make(map[uint64]string, len(v.symbols))
	newRoot := cloneInto(newArena, newSymbols, v.arena, v.symbols, v.root)
	return FromData(newArena, newSymbols, newRoot)
}

// cloneInto copies the unit rooted at srcOffset (and, for lists, every
// element transitively) from src into dst, preserving the
// children-allocated-before-parents discipline spec.md §3 requires.
func cloneInto(dst *Arena, dstSymbols map[uint64]string, src *Arena, srcSymbols map[uint64]string, srcOffset uint64) uint64 {
	kind := src.kindAt(srcOffset)
	switch kind {
	case KindSome, KindError, KindDatum:
		innerOffset := src.payloadUint(srcOffset)
		newInner := cloneInto(dst, dstSymbols, src, srcSymbols, innerOffset)
		out := dst.allocUnit(kind)
		dst.setPayloadUint(out, newInner)
		return out

	case KindParenList, KindBracketList, KindBraceList:
		count := src.flagsAt(srcOffset)
		arrayPos := src.payloadUint(srcOffset)
		srcOffsets := src.offsetsAt(arrayPos, count)
		newOffsets := make([]uint64, len(srcOffsets))
		for i, childOff := range srcOffsets {
			newOffsets[i] = cloneInto(dst, dstSymbols, src, srcSymbols, childOff)
		}
		out := dst.allocUnit(kind)
		var arrayStart uint64
		if len(newOffsets) > 0 {
			arrayStart = dst.appendOffsets(newOffsets)
		}
		dst.setFlags(out, uint32(len(newOffsets)))
		if len(newOffsets) > 0 {
			dst.setPayloadUint(out, arrayStart)
		}
		return out

	case KindSymbol:
		id := src.payloadUint(srcOffset)
		dstSymbols[id] = srcSymbols[id]
		out := dst.allocUnit(kind)
		dst.setPayloadUint(out, id)
		return out

	case KindInteger, KindRune, KindAberrant:
		out := dst.allocUnit(kind)
		dst.setPayloadUint(out, src.payloadUint(srcOffset))
		return out

	case KindReal:
		out := dst.allocUnit(kind)
		dst.setPayloadFloat(out, src.payloadFloat(srcOffset))
		return out

	default:
		return dst.allocUnit(kind)
	}
}

// List is a read-only view over a PAREN_LIST, BRACKET_LIST, or BRACE_LIST
// unit's packed element-offset array.
type List struct {
	parent Value
	valid  bool
}

// Size returns the element count (the list's flags field).
func (l List) Size() int {
	if !l.valid {
		return 0
	}
	return int(l.parent.arena.flagsAt(l.parent.root))
}

// Empty reports whether the list has zero elements.
func (l List) Empty() bool { return l.Size() == 0 }

// At returns the element at index, or an empty Value if out of range.
func (l List) At(index int) Value {
	if !l.valid || index < 0 || index >= l.Size() {
		return Value{}
	}
	arrayPos := l.parent.arena.payloadUint(l.parent.root)
	offsets := l.parent.arena.offsetsAt(arrayPos, uint32(l.Size()))
	if index >= len(offsets) {
		return Value{}
	}
	target := offsets[index]
	if !l.parent.arena.inBounds(target) {
		return Value{}
	}
	return FromData(l.parent.arena, l.parent.symbols, target)
}

// Str is a read-only view over a KindString unit's packed RUNE array.
type Str struct {
	parent Value
	valid  bool
}

// Size returns the rune count.
func (s Str) Size() int {
	if !s.valid {
		return 0
	}
	return int(s.parent.arena.flagsAt(s.parent.root))
}

// Empty reports whether the string has zero runes.
func (s Str) Empty() bool { return s.Size() == 0 }

// At returns the rune at index, or 0 if out of range.
func (s Str) At(index int) rune {
	if !s.valid || index < 0 || index >= s.Size() {
		return 0
	}
	arrayPos := s.parent.arena.payloadUint(s.parent.root)
	offsets := s.parent.arena.offsetsAt(arrayPos, uint32(s.Size()))
	if index >= len(offsets) {
		return 0
	}
	target := offsets[index]
	return rune(s.parent.arena.payloadUint(target))
}

// String renders the full rune sequence as a Go string.
func (s Str) String() string {
	n := s.Size()
	runes := make([]rune, n)
	for i := 0; i < n; i++ {
		runes[i] = s.At(i)
	}
	return string(runes)
}
