package classfile

import (
	"fmt"
	"math"

	"github.com/dsandbox/rewriter/opcodes"
)

// Encode serializes a ClassRecord into class file bytes. Every name
// referenced anywhere in the record is expected to already be in its final
// (post-Remapper) form; Encode does not itself consult a resolver.
func Encode(c ClassRecord) ([]byte, error) {
	cp := NewBuilder()

	thisIdx := cp.Class(c.SandboxName)
	superIdx := uint16(0)
	if c.Super != "" {
		superIdx = cp.Class(c.Super)
	}
	ifaceIdx := make([]uint16, len(c.Interfaces))
	for i, ifc := range c.Interfaces {
		ifaceIdx[i] = cp.Class(ifc)
	}

	fieldBytes, err := encodeFields(cp, c.Fields)
	if err != nil {
		return nil, err
	}
	methodBytes, err := encodeMethods(cp, c.Methods)
	if err != nil {
		return nil, err
	}
	attrBytes, attrCount := encodeClassAttributes(cp, c)

	w := &byteWriter{}
	w.u4(classMagic)
	w.u2(c.Version.Minor)
	w.u2(c.Version.Major)

	// The constant pool is finalized only after every name the class body
	// references has been interned above, so write it first into the
	// output even though it was built last.
	writeConstantPool(w, cp)

	w.u2(uint16(c.Access))
	w.u2(thisIdx)
	w.u2(superIdx)

	w.u2(uint16(len(ifaceIdx)))
	for _, idx := range ifaceIdx {
		w.u2(idx)
	}

	w.raw(fieldBytes)
	w.raw(methodBytes)

	w.u2(attrCount)
	w.raw(attrBytes)

	return w.Bytes(), nil
}

func writeConstantPool(w *byteWriter, cp *Builder) {
	entries := cp.Entries()
	w.u2(cp.Count())
	for i := 1; i < len(entries); i++ {
		e := entries[i]
		switch e.tag {
		case 0:
			// second slot of a preceding Long/Double; already consumed.
			continue
		case tagUTF8:
			w.u1(byte(tagUTF8))
			w.u2(uint16(len(e.utf8)))
			w.raw([]byte(e.utf8))
		case tagInteger:
			w.u1(byte(tagInteger))
			w.u4(uint32(e.intVal))
		case tagFloat:
			w.u1(byte(tagFloat))
			w.u4(floatBits(e.floatVal))
		case tagLong:
			w.u1(byte(tagLong))
			w.u4(uint32(e.longVal >> 32))
			w.u4(uint32(e.longVal))
		case tagDouble:
			w.u1(byte(tagDouble))
			bits := doubleBits(e.doubleVal)
			w.u4(uint32(bits >> 32))
			w.u4(uint32(bits))
		case tagClass:
			w.u1(byte(tagClass))
			w.u2(e.classNameIdx)
		case tagString:
			w.u1(byte(tagString))
			w.u2(e.classNameIdx)
		case tagFieldref, tagMethodref, tagInterfaceMethodref:
			w.u1(byte(e.tag))
			w.u2(e.classIdx)
			w.u2(e.natIdx)
		case tagNameAndType:
			w.u1(byte(tagNameAndType))
			w.u2(e.nameIdx)
			w.u2(e.typeIdx)
		case tagMethodHandle:
			w.u1(byte(tagMethodHandle))
			w.u1(e.refKind)
			w.u2(e.refIdx)
		case tagMethodType:
			w.u1(byte(tagMethodType))
			w.u2(e.classNameIdx)
		case tagDynamic, tagInvokeDynamic:
			w.u1(byte(e.tag))
			w.u2(e.bootstrapIdx)
			w.u2(e.natIdx)
		}
	}
}

func floatBits(f float32) uint32  { return math.Float32bits(f) }
func doubleBits(f float64) uint64 { return math.Float64bits(f) }

func encodeFields(cp *Builder, fields []Field) ([]byte, error) {
	w := &byteWriter{}
	w.u2(uint16(len(fields)))
	for _, f := range fields {
		w.u2(uint16(f.Access))
		w.u2(cp.UTF8(f.Name))
		w.u2(cp.UTF8(f.Descriptor))

		attrCount := uint16(len(f.Attrs))
		var constAttr, sigAttr []byte
		if f.ConstValue != nil {
			constAttr = encodeConstantValueAttr(cp, f.ConstValue)
			attrCount++
		}
		if f.Signature != "" {
			sigAttr = encodeSignatureAttr(cp, f.Signature)
			attrCount++
		}
		if len(f.Annotations) > 0 {
			attrCount++
		}
		w.u2(attrCount)
		if constAttr != nil {
			w.raw(constAttr)
		}
		if sigAttr != nil {
			w.raw(sigAttr)
		}
		if len(f.Annotations) > 0 {
			w.raw(encodeAnnotationsAttr(cp, "RuntimeVisibleAnnotations", f.Annotations))
		}
		for _, a := range f.Attrs {
			writeRawAttribute(w, cp, a)
		}
	}
	return w.Bytes(), nil
}

func encodeConstantValueAttr(cp *Builder, v interface{}) []byte {
	w := &byteWriter{}
	w.u2(cp.UTF8("ConstantValue"))
	var valueIdx uint16
	switch val := v.(type) {
	case int32:
		valueIdx = cp.Int(val)
	case float32:
		valueIdx = cp.Float(val)
	case int64:
		valueIdx = cp.Long(val)
	case float64:
		valueIdx = cp.Double(val)
	case string:
		valueIdx = cp.String(val)
	}
	w.u4(2)
	w.u2(valueIdx)
	return w.Bytes()
}

func encodeMethods(cp *Builder, methods []Method) ([]byte, error) {
	w := &byteWriter{}
	w.u2(uint16(len(methods)))
	for _, m := range methods {
		w.u2(uint16(m.Access))
		w.u2(cp.UTF8(m.Name))
		w.u2(cp.UTF8(m.Descriptor))

		attrCount := uint16(len(m.Attrs))
		var codeAttr, throwsAttr, sigAttr []byte
		if !m.IsAbstractOrNative() {
			ca, err := encodeCodeAttribute(cp, m)
			if err != nil {
				return nil, fmt.Errorf("method %s%s: %w", m.Name, m.Descriptor, err)
			}
			codeAttr = ca
			attrCount++
		}
		if len(m.Throws) > 0 {
			throwsAttr = encodeExceptionsAttribute(cp, m.Throws)
			attrCount++
		}
		if m.Signature != "" {
			sigAttr = encodeSignatureAttr(cp, m.Signature)
			attrCount++
		}
		if len(m.Annotations) > 0 {
			attrCount++
		}
		if len(m.ParameterAnnotations) > 0 {
			attrCount++
		}
		w.u2(attrCount)
		if codeAttr != nil {
			w.raw(codeAttr)
		}
		if throwsAttr != nil {
			w.raw(throwsAttr)
		}
		if sigAttr != nil {
			w.raw(sigAttr)
		}
		if len(m.Annotations) > 0 {
			w.raw(encodeAnnotationsAttr(cp, "RuntimeVisibleAnnotations", m.Annotations))
		}
		if len(m.ParameterAnnotations) > 0 {
			w.raw(encodeParameterAnnotationsAttr(cp, "RuntimeVisibleParameterAnnotations", m.ParameterAnnotations))
		}
		for _, a := range m.Attrs {
			writeRawAttribute(w, cp, a)
		}
	}
	return w.Bytes(), nil
}

func encodeExceptionsAttribute(cp *Builder, throws []string) []byte {
	w := &byteWriter{}
	w.u2(cp.UTF8("Exceptions"))
	body := &byteWriter{}
	body.u2(uint16(len(throws)))
	for _, t := range throws {
		body.u2(cp.Class(t))
	}
	w.u4(uint32(len(body.Bytes())))
	w.raw(body.Bytes())
	return w.Bytes()
}

func encodeCodeAttribute(cp *Builder, m Method) ([]byte, error) {
	code, err := encodeInstructions(cp, m.Code)
	if err != nil {
		return nil, err
	}

	body := &byteWriter{}
	body.u2(uint16(m.MaxStack))
	body.u2(uint16(m.MaxLocals))
	body.u4(uint32(len(code)))
	body.raw(code)

	body.u2(uint16(len(m.Exceptions)))
	for _, h := range m.Exceptions {
		body.u2(uint16(h.StartPC))
		body.u2(uint16(h.EndPC))
		body.u2(uint16(h.HandlerPC))
		if h.CatchType == "" {
			body.u2(0)
		} else {
			body.u2(cp.Class(h.CatchType))
		}
	}
	body.u2(0) // no Code sub-attributes are re-emitted (LineNumberTable etc. are dropped on decode)

	w := &byteWriter{}
	w.u2(cp.UTF8("Code"))
	w.u4(uint32(len(body.Bytes())))
	w.raw(body.Bytes())
	return w.Bytes(), nil
}

func writeRawAttribute(w *byteWriter, cp *Builder, a RawAttribute) {
	w.u2(cp.UTF8(a.Name))
	w.u4(uint32(len(a.Content)))
	w.raw(a.Content)
}

func encodeClassAttributes(cp *Builder, c ClassRecord) ([]byte, uint16) {
	w := &byteWriter{}
	var count uint16

	if c.SourceFile != "" {
		w.u2(cp.UTF8("SourceFile"))
		w.u4(2)
		w.u2(cp.UTF8(c.SourceFile))
		count++
	}

	if len(c.Bootstraps) > 0 {
		w.u2(cp.UTF8("BootstrapMethods"))
		body := &byteWriter{}
		body.u2(uint16(len(c.Bootstraps)))
		for _, bs := range c.Bootstraps {
			mhIdx := internMethodHandle(cp, bs.MethodHandle)
			body.u2(mhIdx)
			body.u2(uint16(len(bs.Arguments)))
			for _, arg := range bs.Arguments {
				body.u2(internBootstrapArg(cp, arg))
			}
		}
		w.u4(uint32(len(body.Bytes())))
		w.raw(body.Bytes())
		count++
	}

	if c.Signature != "" {
		w.raw(encodeSignatureAttr(cp, c.Signature))
		count++
	}

	if len(c.InnerClasses) > 0 {
		w.raw(encodeInnerClassesAttr(cp, c.InnerClasses))
		count++
	}

	if c.EnclosingMethod != nil {
		w.raw(encodeEnclosingMethodAttr(cp, c.EnclosingMethod))
		count++
	}

	if len(c.Annotations) > 0 {
		w.raw(encodeAnnotationsAttr(cp, "RuntimeVisibleAnnotations", c.Annotations))
		count++
	}

	for _, a := range c.OtherAttrs {
		writeRawAttribute(w, cp, a)
		count++
	}

	return w.Bytes(), count
}

func internMethodHandle(cp *Builder, mh MethodHandleRef) uint16 {
	refIdx := cp.MemberRef(mh.Ref)
	// rawEntry for MethodHandle is interned directly here rather than via a
	// dedicated Builder method, since bootstrap method handles are rare
	// enough not to warrant their own memoization map.
	idx := uint16(len(cp.entries))
	cp.entries = append(cp.entries, rawEntry{tag: tagMethodHandle, refKind: uint8(mh.RefKind), refIdx: refIdx})
	return idx
}

func internBootstrapArg(cp *Builder, arg BootstrapArg) uint16 {
	switch {
	case arg.ClassName != "":
		return cp.Class(arg.ClassName)
	case arg.StringValue != nil:
		return cp.String(*arg.StringValue)
	case arg.IntValue != nil:
		return cp.Int(*arg.IntValue)
	case arg.LongValue != nil:
		return cp.Long(*arg.LongValue)
	case arg.FloatValue != nil:
		return cp.Float(*arg.FloatValue)
	case arg.DoubleValue != nil:
		return cp.Double(*arg.DoubleValue)
	case arg.MethodHandle != nil:
		return internMethodHandle(cp, *arg.MethodHandle)
	default:
		return 0
	}
}

func encodeInstructions(cp *Builder, instrs []Instruction) ([]byte, error) {
	w := &byteWriter{}
	for _, inst := range instrs {
		w.u1(byte(inst.Op))
		info, known := opcodes.Table[inst.Op]
		if !known {
			continue
		}
		switch info.Operand {
		case opcodes.NoOperand:
		case opcodes.ConstPoolU1:
			w.u1(byte(constPoolIndexFor(cp, inst)))
		case opcodes.ConstPoolU2:
			w.u2(constPoolIndexFor(cp, inst))
		case opcodes.LocalVarU1, opcodes.ImmediateS1, opcodes.NewArrayArg:
			w.u1(byte(inst.Operands[0]))
		case opcodes.BranchS2, opcodes.ImmediateS2:
			w.u2(uint16(inst.Operands[0]))
		case opcodes.BranchS4:
			w.u4(uint32(inst.Operands[0]))
		case opcodes.IincArgs:
			w.u1(byte(inst.Operands[0]))
			w.u1(byte(inst.Operands[1]))
		case opcodes.InvokeInterfaceArgs:
			w.u2(cp.MemberRef(*inst.Ref))
			w.u1(byte(inst.Operands[0]))
			w.u1(0)
		case opcodes.InvokeDynamicArgs:
			idx := internInvokeDynamic(cp, inst.InvokeDyn)
			w.u2(idx)
			w.u2(0)
		case opcodes.MultiNewArrayArgs:
			w.u2(cp.Class(*inst.ClassRef))
			w.u1(byte(inst.Operands[0]))
		}
	}
	return w.Bytes(), nil
}

func constPoolIndexFor(cp *Builder, inst Instruction) uint16 {
	switch {
	case inst.Ref != nil:
		return cp.MemberRef(*inst.Ref)
	case inst.ClassRef != nil:
		return cp.Class(*inst.ClassRef)
	case inst.StringConst != nil:
		return cp.String(*inst.StringConst)
	case inst.IntConst != nil:
		return cp.Int(*inst.IntConst)
	case inst.LongConst != nil:
		return cp.Long(*inst.LongConst)
	default:
		if len(inst.Operands) > 0 {
			return uint16(inst.Operands[0])
		}
		return 0
	}
}

func internInvokeDynamic(cp *Builder, site *InvokeDynamicSite) uint16 {
	if site == nil {
		return 0
	}
	natIdx := cp.NameAndType(site.Name, site.Descriptor)
	idx := uint16(len(cp.entries))
	cp.entries = append(cp.entries, rawEntry{tag: tagInvokeDynamic, bootstrapIdx: uint16(site.BootstrapIndex), natIdx: natIdx})
	return idx
}
