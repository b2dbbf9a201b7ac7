package classfile

// cpTag is a constant-pool entry's tag byte, per the class file format.
type cpTag byte

const (
	tagUTF8               cpTag = 1
	tagInteger            cpTag = 3
	tagFloat              cpTag = 4
	tagLong               cpTag = 5
	tagDouble             cpTag = 6
	tagClass              cpTag = 7
	tagString             cpTag = 8
	tagFieldref           cpTag = 9
	tagMethodref          cpTag = 10
	tagInterfaceMethodref cpTag = 11
	tagNameAndType        cpTag = 12
	tagMethodHandle       cpTag = 15
	tagMethodType         cpTag = 16
	tagDynamic            cpTag = 17
	tagInvokeDynamic      cpTag = 18
	tagModule             cpTag = 19
	tagPackage            cpTag = 20
)

// rawEntry is one slot of the as-parsed constant pool, before symbolic
// resolution. Long and Double entries occupy two slots, per the format's
// historical quirk; the second slot is left zero-valued and skipped.
type rawEntry struct {
	tag              cpTag
	utf8             string
	intVal           int32
	floatVal         float32
	longVal          int64
	doubleVal        float64
	classNameIdx     uint16 // -> utf8 index, via an intermediate Class entry
	nameIdx, typeIdx uint16 // NameAndType
	classIdx, natIdx uint16 // ref entries: class_index, name_and_type_index
	refKind          uint8
	refIdx           uint16 // MethodHandle
	descriptorIdx    uint16 // MethodType
	bootstrapIdx     uint16 // Dynamic / InvokeDynamic
}

// rawPool is the fully parsed, still-index-based constant pool. Indexes are
// 1-based per the class file format; entries[0] is unused.
type rawPool struct {
	entries []rawEntry
}

func (p *rawPool) utf8At(idx uint16) string {
	if int(idx) >= len(p.entries) {
		return ""
	}
	return p.entries[idx].utf8
}

func (p *rawPool) classNameAt(idx uint16) string {
	if int(idx) >= len(p.entries) {
		return ""
	}
	e := p.entries[idx]
	if e.tag != tagClass {
		return ""
	}
	return p.utf8At(e.classNameIdx)
}

// memberRefAt resolves a Fieldref/Methodref/InterfaceMethodref entry into a
// MemberRef, tagging it with the invocation kind the caller already knows
// from the opcode (ref entries themselves don't distinguish virtual from
// special/static dispatch; that distinction comes from which opcode used
// the index).
func (p *rawPool) memberRefAt(idx uint16, kind InvokeKind) MemberRef {
	if int(idx) >= len(p.entries) {
		return MemberRef{Kind: kind}
	}
	e := p.entries[idx]
	owner := p.classNameAt(e.classIdx)
	name, desc := p.nameAndTypeAt(e.natIdx)
	return MemberRef{Owner: owner, Name: name, Descriptor: desc, Kind: kind}
}

func (p *rawPool) nameAndTypeAt(idx uint16) (name, desc string) {
	if int(idx) >= len(p.entries) {
		return "", ""
	}
	e := p.entries[idx]
	return p.utf8At(e.nameIdx), p.utf8At(e.typeIdx)
}

func (p *rawPool) methodHandleAt(idx uint16) MethodHandleRef {
	if int(idx) >= len(p.entries) {
		return MethodHandleRef{}
	}
	e := p.entries[idx]
	var kind InvokeKind
	switch e.refKind {
	case 1, 2: // REF_getField, REF_getStatic
		kind = GetFieldKind
	case 3, 4: // REF_putField, REF_putStatic
		kind = PutFieldKind
	case 6: // REF_invokeStatic
		kind = InvokeStaticKind
	case 7, 8: // REF_invokeSpecial, REF_newInvokeSpecial
		kind = InvokeSpecialKind
	case 9: // REF_invokeInterface
		kind = InvokeInterfaceKind
	default:
		kind = InvokeVirtualKind
	}
	return MethodHandleRef{RefKind: int(e.refKind), Ref: p.memberRefAt(e.refIdx, kind)}
}

func (p *rawPool) bootstrapArgAt(idx uint16) BootstrapArg {
	if int(idx) >= len(p.entries) {
		return BootstrapArg{}
	}
	e := p.entries[idx]
	switch e.tag {
	case tagClass:
		return BootstrapArg{ClassName: p.classNameAt(idx)}
	case tagString:
		s := p.utf8At(e.classNameIdx) // reuse classNameIdx as the string's utf8 index
		return BootstrapArg{StringValue: &s}
	case tagInteger:
		v := e.intVal
		return BootstrapArg{IntValue: &v}
	case tagLong:
		v := e.longVal
		return BootstrapArg{LongValue: &v}
	case tagFloat:
		v := e.floatVal
		return BootstrapArg{FloatValue: &v}
	case tagDouble:
		v := e.doubleVal
		return BootstrapArg{DoubleValue: &v}
	case tagMethodHandle:
		mh := p.methodHandleAt(idx)
		return BootstrapArg{MethodHandle: &mh}
	default:
		return BootstrapArg{}
	}
}
