package value

// Builder accumulates freshly synthesized values (as opposed to ones
// produced by Parse) into one arena and symbol table, so that values
// built piecemeal by the interpreter, a cast, or a native kernel call
// still satisfy spec.md §3's "a Value is either empty or fully
// self-contained" invariant relative to the Builder's own arena. Any
// Value drawn from a different arena (an argument, an imported export) is
// cloned in before being referenced, preserving the
// children-before-parents allocation order.
type Builder struct {
	arena        *Arena
	symbols      map[uint64]string
	nextSymbolID uint64
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{arena: NewArena(), symbols: make(map[uint64]string), nextSymbolID: 1}
}

// adopt clones v (from whatever arena it belongs to) into the builder's
// arena and returns the new local offset. A zero Value adopts as a fresh
// NONE unit.
func (b *Builder) adopt(v Value) uint64 {
	if v.arena == nil {
		return b.arena.allocUnit(KindNone)
	}
	return cloneInto(b.arena, b.symbols, v.arena, v.symbols, v.root)
}

func (b *Builder) value(offset uint64) Value {
	return FromData(b.arena, b.symbols, offset)
}

// None returns a NONE value.
func (b *Builder) None() Value {
	return b.value(b.arena.allocUnit(KindNone))
}

// Int returns an INTEGER value.
func (b *Builder) Int(n int64) Value {
	offset := b.arena.allocUnit(KindInteger)
	b.arena.setPayloadInt(offset, n)
	return b.value(offset)
}

// Real returns a REAL value.
func (b *Builder) Real(f float64) Value {
	offset := b.arena.allocUnit(KindReal)
	b.arena.setPayloadFloat(offset, f)
	return b.value(offset)
}

// Rune returns a RUNE value.
func (b *Builder) Rune(r rune) Value {
	offset := b.arena.allocUnit(KindRune)
	b.arena.setPayloadUint(offset, uint64(r))
	return b.value(offset)
}

// Symbol interns name under a fresh id (the Builder never reuses ids,
// matching parse_atom's never-deduplicate behavior) and returns a SYMBOL
// value.
func (b *Builder) Symbol(name string) Value {
	offset := b.arena.allocUnit(KindSymbol)
	id := b.nextSymbolID
	b.nextSymbolID++
	b.symbols[id] = name
	b.arena.setPayloadUint(offset, id)
	return b.value(offset)
}

// String returns a STRING value built from a Go string's runes.
func (b *Builder) String(s string) Value {
	runes := []rune(s)
	offsets := make([]uint64, len(runes))
	for i, r := range runes {
		ro := b.arena.allocUnit(KindRune)
		b.arena.setPayloadUint(ro, uint64(r))
		offsets[i] = ro
	}
	listOffset := b.arena.allocUnit(KindString)
	var arrayStart uint64
	if len(offsets) > 0 {
		arrayStart = b.arena.appendOffsets(offsets)
	}
	b.arena.setFlags(listOffset, uint32(len(offsets)))
	if len(offsets) > 0 {
		b.arena.setPayloadUint(listOffset, arrayStart)
	}
	return b.value(listOffset)
}

// Some wraps inner in a SOME unit.
func (b *Builder) Some(inner Value) Value {
	innerOffset := b.adopt(inner)
	offset := b.arena.allocUnit(KindSome)
	b.arena.setPayloadUint(offset, innerOffset)
	return b.value(offset)
}

// Error wraps inner in an ERROR unit.
func (b *Builder) Error(inner Value) Value {
	innerOffset := b.adopt(inner)
	offset := b.arena.allocUnit(KindError)
	b.arena.setPayloadUint(offset, innerOffset)
	return b.value(offset)
}

// ErrorString is a convenience for building @("message") style error
// values out of a plain Go string, used throughout the interpreter to
// report runtime failures as ERROR values instead of panicking.
func (b *Builder) ErrorString(msg string) Value {
	return b.Error(b.String(msg))
}

// Aberrant returns an ABERRANT value carrying id (in this runtime, always
// a lambda id).
func (b *Builder) Aberrant(id uint64) Value {
	offset := b.arena.allocUnit(KindAberrant)
	b.arena.setPayloadUint(offset, id)
	return b.value(offset)
}

// Datum wraps inner in a DATUM unit.
func (b *Builder) Datum(inner Value) Value {
	innerOffset := b.adopt(inner)
	offset := b.arena.allocUnit(KindDatum)
	b.arena.setPayloadUint(offset, innerOffset)
	return b.value(offset)
}

func (b *Builder) list(kind Kind, elems []Value) Value {
	offsets := make([]uint64, len(elems))
	for i, e := range elems {
		offsets[i] = b.adopt(e)
	}
	listOffset := b.arena.allocUnit(kind)
	var arrayStart uint64
	if len(offsets) > 0 {
		arrayStart = b.arena.appendOffsets(offsets)
	}
	b.arena.setFlags(listOffset, uint32(len(offsets)))
	if len(offsets) > 0 {
		b.arena.setPayloadUint(listOffset, arrayStart)
	}
	return b.value(listOffset)
}

// ParenList builds a PAREN_LIST from already-evaluated elements.
func (b *Builder) ParenList(elems []Value) Value { return b.list(KindParenList, elems) }

// BracketList builds a BRACKET_LIST from already-evaluated elements.
func (b *Builder) BracketList(elems []Value) Value { return b.list(KindBracketList, elems) }

// BraceList builds a BRACE_LIST from already-evaluated elements.
func (b *Builder) BraceList(elems []Value) Value { return b.list(KindBraceList, elems) }
