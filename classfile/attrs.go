package classfile

// This file decodes and re-encodes the class-file attributes that embed
// constant-pool indices but aren't interesting enough to earn their own
// top-level ClassRecord field the way Code/ConstantValue/Exceptions do:
// InnerClasses, Signature, EnclosingMethod, and the RuntimeVisible*
// annotation attributes. Each of these was previously carried as an
// opaque RawAttribute and copied through byte-for-byte, which corrupts
// every index once Encode rebuilds the constant pool from scratch with
// different entry numbering -- see RawAttribute's doc comment.

func parseInnerClasses(content []byte, pool *rawPool) []InnerClassEntry {
	cr := newByteReader(content)
	count, err := cr.u2()
	if err != nil {
		return nil
	}
	out := make([]InnerClassEntry, 0, count)
	for i := 0; i < int(count); i++ {
		innerIdx, err := cr.u2()
		if err != nil {
			break
		}
		outerIdx, err := cr.u2()
		if err != nil {
			break
		}
		nameIdx, err := cr.u2()
		if err != nil {
			break
		}
		access, err := cr.u2()
		if err != nil {
			break
		}
		entry := InnerClassEntry{InnerClass: pool.classNameAt(innerIdx), Access: AccessFlags(access)}
		if outerIdx != 0 {
			entry.OuterClass = pool.classNameAt(outerIdx)
		}
		if nameIdx != 0 {
			entry.InnerName = pool.utf8At(nameIdx)
		}
		out = append(out, entry)
	}
	return out
}

func encodeInnerClassesAttr(cp *Builder, entries []InnerClassEntry) []byte {
	w := &byteWriter{}
	w.u2(cp.UTF8("InnerClasses"))
	body := &byteWriter{}
	body.u2(uint16(len(entries)))
	for _, e := range entries {
		body.u2(cp.Class(e.InnerClass))
		if e.OuterClass != "" {
			body.u2(cp.Class(e.OuterClass))
		} else {
			body.u2(0)
		}
		if e.InnerName != "" {
			body.u2(cp.UTF8(e.InnerName))
		} else {
			body.u2(0)
		}
		body.u2(uint16(e.Access))
	}
	w.u4(uint32(len(body.Bytes())))
	w.raw(body.Bytes())
	return w.Bytes()
}

func parseEnclosingMethod(content []byte, pool *rawPool) *EnclosingMethodRef {
	if len(content) < 4 {
		return nil
	}
	cr := newByteReader(content)
	classIdx, err := cr.u2()
	if err != nil {
		return nil
	}
	methodIdx, err := cr.u2()
	if err != nil {
		return nil
	}
	ref := &EnclosingMethodRef{Class: pool.classNameAt(classIdx)}
	if methodIdx != 0 {
		ref.MethodName, ref.MethodDescriptor = pool.nameAndTypeAt(methodIdx)
	}
	return ref
}

func encodeEnclosingMethodAttr(cp *Builder, ref *EnclosingMethodRef) []byte {
	w := &byteWriter{}
	w.u2(cp.UTF8("EnclosingMethod"))
	w.u4(4)
	w.u2(cp.Class(ref.Class))
	if ref.MethodName != "" {
		w.u2(cp.NameAndType(ref.MethodName, ref.MethodDescriptor))
	} else {
		w.u2(0)
	}
	return w.Bytes()
}

func parseSignature(content []byte, pool *rawPool) string {
	if len(content) < 2 {
		return ""
	}
	idx := uint16(content[0])<<8 | uint16(content[1])
	return pool.utf8At(idx)
}

func encodeSignatureAttr(cp *Builder, signature string) []byte {
	w := &byteWriter{}
	w.u2(cp.UTF8("Signature"))
	w.u4(2)
	w.u2(cp.UTF8(signature))
	return w.Bytes()
}

// parseAnnotations decodes a RuntimeVisibleAnnotations attribute body (a
// bare num_annotations-prefixed list of annotation structures, JVMS
// 4.7.16).
func parseAnnotations(content []byte, pool *rawPool) []Annotation {
	cr := newByteReader(content)
	count, err := cr.u2()
	if err != nil {
		return nil
	}
	out := make([]Annotation, 0, count)
	for i := 0; i < int(count); i++ {
		a, err := parseAnnotation(cr, pool)
		if err != nil {
			break
		}
		out = append(out, a)
	}
	return out
}

func parseAnnotation(cr *byteReader, pool *rawPool) (Annotation, error) {
	typeIdx, err := cr.u2()
	if err != nil {
		return Annotation{}, err
	}
	pairCount, err := cr.u2()
	if err != nil {
		return Annotation{}, err
	}
	a := Annotation{Type: pool.utf8At(typeIdx), Pairs: make([]AnnotationPair, 0, pairCount)}
	for i := 0; i < int(pairCount); i++ {
		nameIdx, err := cr.u2()
		if err != nil {
			return a, err
		}
		value, err := parseElementValue(cr, pool)
		if err != nil {
			return a, err
		}
		a.Pairs = append(a.Pairs, AnnotationPair{Name: pool.utf8At(nameIdx), Value: value})
	}
	return a, nil
}

func parseElementValue(cr *byteReader, pool *rawPool) (AnnotationValue, error) {
	tag, err := cr.u1()
	if err != nil {
		return AnnotationValue{}, err
	}
	v := AnnotationValue{Tag: tag}
	switch tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's':
		idx, err := cr.u2()
		if err != nil {
			return v, err
		}
		v.Const = constValueForElementTag(tag, pool, idx)
	case 'e':
		typeIdx, err := cr.u2()
		if err != nil {
			return v, err
		}
		nameIdx, err := cr.u2()
		if err != nil {
			return v, err
		}
		v.EnumType = pool.utf8At(typeIdx)
		v.EnumConst = pool.utf8At(nameIdx)
	case 'c':
		idx, err := cr.u2()
		if err != nil {
			return v, err
		}
		v.ClassInfo = pool.utf8At(idx)
	case '@':
		nested, err := parseAnnotation(cr, pool)
		if err != nil {
			return v, err
		}
		v.Nested = &nested
	case '[':
		n, err := cr.u2()
		if err != nil {
			return v, err
		}
		v.Array = make([]AnnotationValue, 0, n)
		for i := 0; i < int(n); i++ {
			elem, err := parseElementValue(cr, pool)
			if err != nil {
				return v, err
			}
			v.Array = append(v.Array, elem)
		}
	}
	return v, nil
}

func constValueForElementTag(tag byte, pool *rawPool, idx uint16) interface{} {
	if int(idx) >= len(pool.entries) {
		return nil
	}
	e := pool.entries[idx]
	switch tag {
	case 's':
		return pool.utf8At(idx)
	case 'D':
		return e.doubleVal
	case 'F':
		return e.floatVal
	case 'J':
		return e.longVal
	default: // B C I S Z all share the Integer constant-pool representation
		return e.intVal
	}
}

// parseParameterAnnotations decodes a RuntimeVisibleParameterAnnotations
// attribute body: a num_parameters-prefixed list of annotation lists.
func parseParameterAnnotations(content []byte, pool *rawPool) [][]Annotation {
	cr := newByteReader(content)
	numParams, err := cr.u1()
	if err != nil {
		return nil
	}
	out := make([][]Annotation, 0, numParams)
	for p := 0; p < int(numParams); p++ {
		count, err := cr.u2()
		if err != nil {
			break
		}
		anns := make([]Annotation, 0, count)
		for i := 0; i < int(count); i++ {
			a, err := parseAnnotation(cr, pool)
			if err != nil {
				break
			}
			anns = append(anns, a)
		}
		out = append(out, anns)
	}
	return out
}

func encodeAnnotationsAttr(cp *Builder, name string, anns []Annotation) []byte {
	w := &byteWriter{}
	w.u2(cp.UTF8(name))
	body := &byteWriter{}
	body.u2(uint16(len(anns)))
	for _, a := range anns {
		encodeAnnotation(body, cp, a)
	}
	w.u4(uint32(len(body.Bytes())))
	w.raw(body.Bytes())
	return w.Bytes()
}

func encodeAnnotation(body *byteWriter, cp *Builder, a Annotation) {
	body.u2(cp.UTF8(a.Type))
	body.u2(uint16(len(a.Pairs)))
	for _, pair := range a.Pairs {
		body.u2(cp.UTF8(pair.Name))
		encodeElementValue(body, cp, pair.Value)
	}
}

func encodeElementValue(body *byteWriter, cp *Builder, v AnnotationValue) {
	body.u1(v.Tag)
	switch v.Tag {
	case 'B', 'C', 'I', 'S', 'Z':
		body.u2(cp.Int(toInt32(v.Const)))
	case 'D':
		body.u2(cp.Double(toFloat64(v.Const)))
	case 'F':
		body.u2(cp.Float(toFloat32(v.Const)))
	case 'J':
		body.u2(cp.Long(toInt64(v.Const)))
	case 's':
		body.u2(cp.UTF8(toString(v.Const)))
	case 'e':
		body.u2(cp.UTF8(v.EnumType))
		body.u2(cp.UTF8(v.EnumConst))
	case 'c':
		body.u2(cp.UTF8(v.ClassInfo))
	case '@':
		if v.Nested != nil {
			encodeAnnotation(body, cp, *v.Nested)
		}
	case '[':
		body.u2(uint16(len(v.Array)))
		for _, elem := range v.Array {
			encodeElementValue(body, cp, elem)
		}
	}
}

func encodeParameterAnnotationsAttr(cp *Builder, name string, params [][]Annotation) []byte {
	w := &byteWriter{}
	w.u2(cp.UTF8(name))
	body := &byteWriter{}
	body.u1(byte(len(params)))
	for _, anns := range params {
		body.u2(uint16(len(anns)))
		for _, a := range anns {
			encodeAnnotation(body, cp, a)
		}
	}
	w.u4(uint32(len(body.Bytes())))
	w.raw(body.Bytes())
	return w.Bytes()
}

func toInt32(v interface{}) int32 {
	if n, ok := v.(int32); ok {
		return n
	}
	return 0
}

func toInt64(v interface{}) int64 {
	if n, ok := v.(int64); ok {
		return n
	}
	return 0
}

func toFloat32(v interface{}) float32 {
	if n, ok := v.(float32); ok {
		return n
	}
	return 0
}

func toFloat64(v interface{}) float64 {
	if n, ok := v.(float64); ok {
		return n
	}
	return 0
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
