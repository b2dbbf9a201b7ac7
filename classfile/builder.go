package classfile

import "math"

// Builder assembles a fresh constant pool while a ClassRecord is being
// encoded. Constant pool ordering need not be preserved across a rewrite
// (spec.md 6), so the encoder interns entries on demand rather than trying
// to reuse the original pool's layout.
type Builder struct {
	entries []rawEntry
	utf8    map[string]uint16
	class   map[string]uint16
	nat     map[[2]string]uint16
	mref    map[memberKey]uint16
	str     map[string]uint16
	ints    map[int32]uint16
	longs   map[int64]uint16
	floats  map[float32]uint16
	doubles map[float64]uint16
}

type memberKey struct {
	tag        cpTag
	owner      string
	name, desc string
}

// NewBuilder returns an empty Builder with constant-pool index 0 reserved,
// per the class file format's convention that index 0 is never valid.
func NewBuilder() *Builder {
	return &Builder{
		entries: make([]rawEntry, 1),
		utf8:    map[string]uint16{},
		class:   map[string]uint16{},
		nat:     map[[2]string]uint16{},
		mref:    map[memberKey]uint16{},
		str:     map[string]uint16{},
		ints:    map[int32]uint16{},
		longs:   map[int64]uint16{},
		floats:  map[float32]uint16{},
		doubles: map[float64]uint16{},
	}
}

func (b *Builder) add(e rawEntry) uint16 {
	idx := uint16(len(b.entries))
	b.entries = append(b.entries, e)
	return idx
}

// UTF8 interns a UTF8 entry and returns its index.
func (b *Builder) UTF8(s string) uint16 {
	if idx, ok := b.utf8[s]; ok {
		return idx
	}
	idx := b.add(rawEntry{tag: tagUTF8, utf8: s})
	b.utf8[s] = idx
	return idx
}

// Class interns a Class entry (which itself points at a UTF8 entry).
func (b *Builder) Class(internalName string) uint16 {
	if idx, ok := b.class[internalName]; ok {
		return idx
	}
	nameIdx := b.UTF8(internalName)
	idx := b.add(rawEntry{tag: tagClass, classNameIdx: nameIdx})
	b.class[internalName] = idx
	return idx
}

// NameAndType interns a NameAndType entry.
func (b *Builder) NameAndType(name, desc string) uint16 {
	key := [2]string{name, desc}
	if idx, ok := b.nat[key]; ok {
		return idx
	}
	nameIdx, typeIdx := b.UTF8(name), b.UTF8(desc)
	idx := b.add(rawEntry{tag: tagNameAndType, nameIdx: nameIdx, typeIdx: typeIdx})
	b.nat[key] = idx
	return idx
}

// MemberRef interns a Fieldref/Methodref/InterfaceMethodref entry for m,
// choosing the ref tag from m.Kind.
func (b *Builder) MemberRef(m MemberRef) uint16 {
	tag := refTagFor(m.Kind)
	key := memberKey{tag: tag, owner: m.Owner, name: m.Name, desc: m.Descriptor}
	if idx, ok := b.mref[key]; ok {
		return idx
	}
	classIdx := b.Class(m.Owner)
	natIdx := b.NameAndType(m.Name, m.Descriptor)
	idx := b.add(rawEntry{tag: tag, classIdx: classIdx, natIdx: natIdx})
	b.mref[key] = idx
	return idx
}

func refTagFor(k InvokeKind) cpTag {
	if k == InvokeInterfaceKind {
		return tagInterfaceMethodref
	}
	if k == GetFieldKind || k == PutFieldKind || k == GetStaticKind || k == PutStaticKind {
		return tagFieldref
	}
	return tagMethodref
}

// String interns a String constant entry.
func (b *Builder) String(s string) uint16 {
	if idx, ok := b.str[s]; ok {
		return idx
	}
	utfIdx := b.UTF8(s)
	idx := b.add(rawEntry{tag: tagString, classNameIdx: utfIdx})
	b.str[s] = idx
	return idx
}

// Int interns an Integer constant entry, used for both int literals and
// the bit-reinterpreted float literals ldc also carries.
func (b *Builder) Int(v int32) uint16 {
	if idx, ok := b.ints[v]; ok {
		return idx
	}
	idx := b.add(rawEntry{tag: tagInteger, intVal: v})
	b.ints[v] = idx
	return idx
}

// Float interns a Float constant entry.
func (b *Builder) Float(v float32) uint16 {
	if idx, ok := b.floats[v]; ok {
		return idx
	}
	idx := b.add(rawEntry{tag: tagFloat, floatVal: v})
	b.floats[v] = idx
	return idx
}

// Long interns a Long constant entry (which consumes two constant-pool
// slots; the second is reserved automatically).
func (b *Builder) Long(v int64) uint16 {
	if idx, ok := b.longs[v]; ok {
		return idx
	}
	idx := b.add(rawEntry{tag: tagLong, longVal: v})
	b.entries = append(b.entries, rawEntry{}) // reserved second slot
	b.longs[v] = idx
	return idx
}

// Double interns a Double constant entry (also consumes two slots).
func (b *Builder) Double(v float64) uint16 {
	if idx, ok := b.doubles[v]; ok {
		return idx
	}
	idx := b.add(rawEntry{tag: tagDouble, doubleVal: v})
	b.entries = append(b.entries, rawEntry{})
	b.doubles[v] = idx
	return idx
}

// IntBitsAsFloat reinterprets bits as a float32, for the ldc case where the
// decoder stashed a float's bit pattern into Instruction.IntConst.
func IntBitsAsFloat(bits int32) float32 { return math.Float32frombits(uint32(bits)) }

// LongBitsAsDouble reinterprets bits as a float64, for ldc2_w of a double.
func LongBitsAsDouble(bits int64) float64 { return math.Float64frombits(uint64(bits)) }

// Count returns the constant_pool_count value (entry count including the
// reserved index 0 and the phantom second half of 8-byte constants).
func (b *Builder) Count() uint16 { return uint16(len(b.entries)) }

// Entries exposes the raw entries for the encoder's final serialization
// pass.
func (b *Builder) Entries() []rawEntry { return b.entries }
