package classfile

import (
	"fmt"
	"math"

	"github.com/dsandbox/rewriter/opcodes"
)

const classMagic = 0xCAFEBABE

// Decode parses raw class bytes into a ClassRecord. It does not resolve
// any name into the sandbox namespace; that is the Remapper's job, run
// after Definition Providers and Emitters have had a chance to observe and
// rewrite the class in its original, host-namespace form.
func Decode(raw []byte) (ClassRecord, error) {
	r := newByteReader(raw)

	magic, err := r.u4()
	if err != nil {
		return ClassRecord{}, err
	}
	if magic != classMagic {
		return ClassRecord{}, fmt.Errorf("class format error: bad magic number %#x", magic)
	}

	minor, err := r.u2()
	if err != nil {
		return ClassRecord{}, err
	}
	major, err := r.u2()
	if err != nil {
		return ClassRecord{}, err
	}

	pool, err := readConstantPool(r)
	if err != nil {
		return ClassRecord{}, err
	}

	access, err := r.u2()
	if err != nil {
		return ClassRecord{}, err
	}
	thisIdx, err := r.u2()
	if err != nil {
		return ClassRecord{}, err
	}
	superIdx, err := r.u2()
	if err != nil {
		return ClassRecord{}, err
	}

	ifaceCount, err := r.u2()
	if err != nil {
		return ClassRecord{}, err
	}
	interfaces := make([]string, 0, ifaceCount)
	for i := 0; i < int(ifaceCount); i++ {
		idx, err := r.u2()
		if err != nil {
			return ClassRecord{}, err
		}
		interfaces = append(interfaces, pool.classNameAt(idx))
	}

	fields, err := readFields(r, pool)
	if err != nil {
		return ClassRecord{}, err
	}

	methods, err := readMethods(r, pool)
	if err != nil {
		return ClassRecord{}, err
	}

	var sourceFile, signature string
	var bootstraps []BootstrapMethod
	var innerClasses []InnerClassEntry
	var enclosingMethod *EnclosingMethodRef
	var annotations []Annotation
	var other []RawAttribute

	attrCount, err := r.u2()
	if err != nil {
		return ClassRecord{}, err
	}
	for i := 0; i < int(attrCount); i++ {
		name, content, err := readRawAttribute(r, pool)
		if err != nil {
			return ClassRecord{}, err
		}
		switch name {
		case "SourceFile":
			if len(content) >= 2 {
				idx := uint16(content[0])<<8 | uint16(content[1])
				sourceFile = pool.utf8At(idx)
			}
		case "BootstrapMethods":
			bootstraps = parseBootstrapMethods(content, pool)
		case "InnerClasses":
			innerClasses = parseInnerClasses(content, pool)
		case "EnclosingMethod":
			enclosingMethod = parseEnclosingMethod(content, pool)
		case "Signature":
			signature = parseSignature(content, pool)
		case "RuntimeVisibleAnnotations":
			annotations = parseAnnotations(content, pool)
		default:
			other = append(other, RawAttribute{Name: name, Content: content})
		}
	}

	return ClassRecord{
		HostName:        pool.classNameAt(thisIdx),
		SandboxName:     "", // assigned by the resolver at the start of the rewrite driver
		Version:         ClassVersion{Major: major, Minor: minor},
		Access:          AccessFlags(access),
		Super:           pool.classNameAt(superIdx),
		Interfaces:      interfaces,
		SourceFile:      sourceFile,
		Signature:       signature,
		InnerClasses:    innerClasses,
		EnclosingMethod: enclosingMethod,
		Fields:          fields,
		Methods:         methods,
		Bootstraps:      bootstraps,
		Annotations:     annotations,
		OtherAttrs:      other,
	}, nil
}

func readConstantPool(r *byteReader) (*rawPool, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	entries := make([]rawEntry, count)
	for i := 1; i < int(count); i++ {
		tagByte, err := r.u1()
		if err != nil {
			return nil, err
		}
		tag := cpTag(tagByte)
		e := rawEntry{tag: tag}
		switch tag {
		case tagUTF8:
			length, err := r.u2()
			if err != nil {
				return nil, err
			}
			b, err := r.bytes(int(length))
			if err != nil {
				return nil, err
			}
			e.utf8 = string(b)
		case tagInteger:
			v, err := r.u4()
			if err != nil {
				return nil, err
			}
			e.intVal = int32(v)
		case tagFloat:
			v, err := r.u4()
			if err != nil {
				return nil, err
			}
			e.floatVal = math.Float32frombits(v)
		case tagLong:
			hi, err := r.u4()
			if err != nil {
				return nil, err
			}
			lo, err := r.u4()
			if err != nil {
				return nil, err
			}
			e.longVal = int64(hi)<<32 | int64(lo)
			entries[i] = e
			i++ // longs/doubles occupy two constant-pool slots
			continue
		case tagDouble:
			hi, err := r.u4()
			if err != nil {
				return nil, err
			}
			lo, err := r.u4()
			if err != nil {
				return nil, err
			}
			bits := uint64(hi)<<32 | uint64(lo)
			e.doubleVal = math.Float64frombits(bits)
			entries[i] = e
			i++
			continue
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			idx, err := r.u2()
			if err != nil {
				return nil, err
			}
			e.classNameIdx = idx // reused as the single utf8/class index these tags carry
		case tagFieldref, tagMethodref, tagInterfaceMethodref:
			classIdx, err := r.u2()
			if err != nil {
				return nil, err
			}
			natIdx, err := r.u2()
			if err != nil {
				return nil, err
			}
			e.classIdx, e.natIdx = classIdx, natIdx
		case tagNameAndType:
			nameIdx, err := r.u2()
			if err != nil {
				return nil, err
			}
			typeIdx, err := r.u2()
			if err != nil {
				return nil, err
			}
			e.nameIdx, e.typeIdx = nameIdx, typeIdx
		case tagMethodHandle:
			kind, err := r.u1()
			if err != nil {
				return nil, err
			}
			idx, err := r.u2()
			if err != nil {
				return nil, err
			}
			e.refKind, e.refIdx = kind, idx
		case tagDynamic, tagInvokeDynamic:
			bsIdx, err := r.u2()
			if err != nil {
				return nil, err
			}
			natIdx, err := r.u2()
			if err != nil {
				return nil, err
			}
			e.bootstrapIdx, e.natIdx = bsIdx, natIdx
		default:
			return nil, fmt.Errorf("class format error: unknown constant pool tag %d at entry %d", tag, i)
		}
		entries[i] = e
	}
	return &rawPool{entries: entries}, nil
}

func readFields(r *byteReader, pool *rawPool) ([]Field, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	fields := make([]Field, 0, count)
	for i := 0; i < int(count); i++ {
		access, err := r.u2()
		if err != nil {
			return nil, err
		}
		nameIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		descIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		f := Field{Name: pool.utf8At(nameIdx), Descriptor: pool.utf8At(descIdx), Access: AccessFlags(access)}

		attrCount, err := r.u2()
		if err != nil {
			return nil, err
		}
		for j := 0; j < int(attrCount); j++ {
			name, content, err := readRawAttribute(r, pool)
			if err != nil {
				return nil, err
			}
			switch name {
			case "ConstantValue":
				if len(content) >= 2 {
					idx := uint16(content[0])<<8 | uint16(content[1])
					f.ConstValue = constantValueAt(pool, idx)
				}
			case "Signature":
				f.Signature = parseSignature(content, pool)
			case "RuntimeVisibleAnnotations":
				f.Annotations = parseAnnotations(content, pool)
			default:
				f.Attrs = append(f.Attrs, RawAttribute{Name: name, Content: content})
			}
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func constantValueAt(pool *rawPool, idx uint16) interface{} {
	if int(idx) >= len(pool.entries) {
		return nil
	}
	e := pool.entries[idx]
	switch e.tag {
	case tagInteger:
		return e.intVal
	case tagFloat:
		return e.floatVal
	case tagLong:
		return e.longVal
	case tagDouble:
		return e.doubleVal
	case tagString:
		s := pool.utf8At(e.classNameIdx)
		return s
	default:
		return nil
	}
}

func readMethods(r *byteReader, pool *rawPool) ([]Method, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	methods := make([]Method, 0, count)
	for i := 0; i < int(count); i++ {
		access, err := r.u2()
		if err != nil {
			return nil, err
		}
		nameIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		descIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		m := Method{Name: pool.utf8At(nameIdx), Descriptor: pool.utf8At(descIdx), Access: AccessFlags(access)}

		attrCount, err := r.u2()
		if err != nil {
			return nil, err
		}
		for j := 0; j < int(attrCount); j++ {
			name, content, err := readRawAttribute(r, pool)
			if err != nil {
				return nil, err
			}
			switch name {
			case "Code":
				code, maxStack, maxLocals, exc, err := parseCodeAttribute(content, pool)
				if err != nil {
					return nil, err
				}
				m.Code, m.MaxStack, m.MaxLocals, m.Exceptions = code, maxStack, maxLocals, exc
			case "Exceptions":
				m.Throws = parseExceptionsAttribute(content, pool)
			case "Signature":
				m.Signature = parseSignature(content, pool)
			case "RuntimeVisibleAnnotations":
				m.Annotations = parseAnnotations(content, pool)
			case "RuntimeVisibleParameterAnnotations":
				m.ParameterAnnotations = parseParameterAnnotations(content, pool)
			default:
				m.Attrs = append(m.Attrs, RawAttribute{Name: name, Content: content})
			}
		}
		methods = append(methods, m)
	}
	return methods, nil
}

func readRawAttribute(r *byteReader, pool *rawPool) (name string, content []byte, err error) {
	nameIdx, err := r.u2()
	if err != nil {
		return "", nil, err
	}
	length, err := r.u4()
	if err != nil {
		return "", nil, err
	}
	content, err = r.bytes(int(length))
	if err != nil {
		return "", nil, err
	}
	return pool.utf8At(nameIdx), content, nil
}

func parseExceptionsAttribute(content []byte, pool *rawPool) []string {
	if len(content) < 2 {
		return nil
	}
	cr := newByteReader(content)
	count, _ := cr.u2()
	out := make([]string, 0, count)
	for i := 0; i < int(count); i++ {
		idx, err := cr.u2()
		if err != nil {
			break
		}
		out = append(out, pool.classNameAt(idx))
	}
	return out
}

func parseBootstrapMethods(content []byte, pool *rawPool) []BootstrapMethod {
	cr := newByteReader(content)
	count, err := cr.u2()
	if err != nil {
		return nil
	}
	out := make([]BootstrapMethod, 0, count)
	for i := 0; i < int(count); i++ {
		mhIdx, err := cr.u2()
		if err != nil {
			break
		}
		argCount, err := cr.u2()
		if err != nil {
			break
		}
		args := make([]BootstrapArg, 0, argCount)
		for a := 0; a < int(argCount); a++ {
			argIdx, err := cr.u2()
			if err != nil {
				break
			}
			args = append(args, pool.bootstrapArgAt(argIdx))
		}
		out = append(out, BootstrapMethod{MethodHandle: pool.methodHandleAt(mhIdx), Arguments: args})
	}
	return out
}

// parseCodeAttribute decodes the Code attribute: max_stack, max_locals, the
// instruction stream itself (resolved into []Instruction), the exception
// table, and recurses into the Code attribute's own sub-attributes only to
// discard ones this model doesn't need structurally (LineNumberTable,
// LocalVariableTable) -- callers that need them can re-derive from PC.
func parseCodeAttribute(content []byte, pool *rawPool) ([]Instruction, int, int, []ExceptionHandler, error) {
	cr := newByteReader(content)
	maxStack, err := cr.u2()
	if err != nil {
		return nil, 0, 0, nil, err
	}
	maxLocals, err := cr.u2()
	if err != nil {
		return nil, 0, 0, nil, err
	}
	codeLen, err := cr.u4()
	if err != nil {
		return nil, 0, 0, nil, err
	}
	code, err := cr.bytes(int(codeLen))
	if err != nil {
		return nil, 0, 0, nil, err
	}
	instructions, err := decodeInstructions(code, pool)
	if err != nil {
		return nil, 0, 0, nil, err
	}

	excCount, err := cr.u2()
	if err != nil {
		return nil, 0, 0, nil, err
	}
	handlers := make([]ExceptionHandler, 0, excCount)
	for i := 0; i < int(excCount); i++ {
		startPC, _ := cr.u2()
		endPC, _ := cr.u2()
		handlerPC, _ := cr.u2()
		catchIdx, _ := cr.u2()
		catchType := ""
		if catchIdx != 0 {
			catchType = pool.classNameAt(catchIdx)
		}
		handlers = append(handlers, ExceptionHandler{
			StartPC: int(startPC), EndPC: int(endPC), HandlerPC: int(handlerPC), CatchType: catchType,
		})
	}

	// Skip the Code attribute's own sub-attributes (LineNumberTable etc.);
	// this model does not preserve them.
	subAttrCount, err := cr.u2()
	if err == nil {
		for i := 0; i < int(subAttrCount); i++ {
			if _, _, err := readRawAttribute(cr, pool); err != nil {
				break
			}
		}
	}

	markHandlerEntries(instructions, handlers)

	return instructions, int(maxStack), int(maxLocals), handlers, nil
}

// markHandlerEntries sets HandlerEntry on the instruction at each handler's
// HandlerPC, so later passes can recognize a handler's implicit
// throwable-receive point without re-walking the exception table.
func markHandlerEntries(instructions []Instruction, handlers []ExceptionHandler) {
	targets := make(map[int]bool, len(handlers))
	for _, h := range handlers {
		targets[h.HandlerPC] = true
	}
	for i := range instructions {
		if targets[instructions[i].PC] {
			instructions[i].HandlerEntry = true
		}
	}
}

func decodeInstructions(code []byte, pool *rawPool) ([]Instruction, error) {
	r := newByteReader(code)
	var out []Instruction
	for r.remaining() > 0 {
		pc := r.pos
		opByte, err := r.u1()
		if err != nil {
			return nil, err
		}
		op := opcodes.Op(opByte)
		inst := Instruction{PC: pc, Op: op}

		info, known := opcodes.Table[op]
		if !known {
			// Unmodeled opcode: copy through with no operand interpretation.
			// Operand-carrying unknown opcodes would desync the cursor; the
			// rewriter's accepted opcode table covers every opcode the
			// spec's emitters/policy table need to recognize, so this path
			// is reached only for operand-less filler in practice.
			out = append(out, inst)
			continue
		}

		switch info.Operand {
		case opcodes.NoOperand:
			// nothing to read
		case opcodes.ConstPoolU1:
			idx, err := r.u1()
			if err != nil {
				return nil, err
			}
			resolveConstant(&inst, pool, uint16(idx))
		case opcodes.ConstPoolU2:
			idx, err := r.u2()
			if err != nil {
				return nil, err
			}
			resolveConstPoolU2(&inst, pool, idx)
		case opcodes.LocalVarU1, opcodes.ImmediateS1, opcodes.NewArrayArg:
			v, err := r.u1()
			if err != nil {
				return nil, err
			}
			inst.Operands = []int32{int32(int8(v))}
		case opcodes.BranchS2, opcodes.ImmediateS2:
			v, err := r.u2()
			if err != nil {
				return nil, err
			}
			inst.Operands = []int32{int32(int16(v))}
		case opcodes.BranchS4:
			v, err := r.u4()
			if err != nil {
				return nil, err
			}
			inst.Operands = []int32{int32(v)}
		case opcodes.IincArgs:
			idx, err := r.u1()
			if err != nil {
				return nil, err
			}
			delta, err := r.u1()
			if err != nil {
				return nil, err
			}
			inst.Operands = []int32{int32(idx), int32(int8(delta))}
		case opcodes.InvokeInterfaceArgs:
			idx, err := r.u2()
			if err != nil {
				return nil, err
			}
			count, err := r.u1()
			if err != nil {
				return nil, err
			}
			if _, err := r.u1(); err != nil { // reserved byte, always 0
				return nil, err
			}
			ref := pool.memberRefAt(idx, InvokeInterfaceKind)
			inst.Ref = &ref
			inst.Operands = []int32{int32(count)}
		case opcodes.InvokeDynamicArgs:
			idx, err := r.u2()
			if err != nil {
				return nil, err
			}
			if _, err := r.u2(); err != nil { // reserved, always 0
				return nil, err
			}
			if int(idx) < len(pool.entries) {
				e := pool.entries[idx]
				name, desc := pool.nameAndTypeAt(e.natIdx)
				inst.InvokeDyn = &InvokeDynamicSite{BootstrapIndex: int(e.bootstrapIdx), Name: name, Descriptor: desc}
			}
		case opcodes.MultiNewArrayArgs:
			idx, err := r.u2()
			if err != nil {
				return nil, err
			}
			dims, err := r.u1()
			if err != nil {
				return nil, err
			}
			cls := pool.classNameAt(idx)
			inst.ClassRef = &cls
			inst.Operands = []int32{int32(dims)}
		}
		out = append(out, inst)
	}
	return out, nil
}

// resolveConstant handles the 1-byte-index ldc form.
func resolveConstant(inst *Instruction, pool *rawPool, idx uint16) {
	resolveConstPoolU2(inst, pool, idx)
}

func resolveConstPoolU2(inst *Instruction, pool *rawPool, idx uint16) {
	switch inst.Op {
	case opcodes.GetStatic:
		ref := pool.memberRefAt(idx, GetStaticKind)
		inst.Ref = &ref
	case opcodes.PutStatic:
		ref := pool.memberRefAt(idx, PutStaticKind)
		inst.Ref = &ref
	case opcodes.GetField:
		ref := pool.memberRefAt(idx, GetFieldKind)
		inst.Ref = &ref
	case opcodes.PutField:
		ref := pool.memberRefAt(idx, PutFieldKind)
		inst.Ref = &ref
	case opcodes.InvokeVirtual:
		ref := pool.memberRefAt(idx, InvokeVirtualKind)
		inst.Ref = &ref
	case opcodes.InvokeSpecial:
		ref := pool.memberRefAt(idx, InvokeSpecialKind)
		inst.Ref = &ref
	case opcodes.InvokeStatic:
		ref := pool.memberRefAt(idx, InvokeStaticKind)
		inst.Ref = &ref
	case opcodes.New, opcodes.CheckCast, opcodes.InstanceOf, opcodes.ANewArray:
		cls := pool.classNameAt(idx)
		inst.ClassRef = &cls
	case opcodes.Ldc, opcodes.LdcW:
		resolveLdc(inst, pool, idx)
	case opcodes.Ldc2W:
		resolveLdc2(inst, pool, idx)
	default:
		inst.Operands = []int32{int32(idx)}
	}
}

func resolveLdc(inst *Instruction, pool *rawPool, idx uint16) {
	if int(idx) >= len(pool.entries) {
		return
	}
	e := pool.entries[idx]
	switch e.tag {
	case tagString:
		s := pool.utf8At(e.classNameIdx)
		inst.StringConst = &s
	case tagInteger:
		v := e.intVal
		inst.IntConst = &v
	case tagFloat:
		bits := int32(math.Float32bits(e.floatVal))
		inst.IntConst = &bits
	case tagClass:
		cls := pool.classNameAt(idx)
		inst.ClassRef = &cls
	}
}

func resolveLdc2(inst *Instruction, pool *rawPool, idx uint16) {
	if int(idx) >= len(pool.entries) {
		return
	}
	e := pool.entries[idx]
	switch e.tag {
	case tagLong:
		v := e.longVal
		inst.LongConst = &v
	case tagDouble:
		bits := int64(math.Float64bits(e.doubleVal))
		inst.LongConst = &bits
	}
}
