// Package remap implements the Remapper: the final pass that resolves
// every name in a rewritten class against the Class Resolver, per
// spec.md 4.7. It runs after every Definition Provider and Emitter has
// finished, so it sees the class's final shape.
package remap

import (
	"github.com/dsandbox/rewriter/classfile"
	"github.com/dsandbox/rewriter/resolver"
)

// Remapper resolves host names to sandbox names (or leaves them alone,
// per the resolver's pin/whitelist rules) across an entire class record.
type Remapper struct {
	resolver *resolver.Resolver
}

// New builds a Remapper over r.
func New(r *resolver.Resolver) *Remapper {
	return &Remapper{resolver: r}
}

// Remap walks rec -- superclass, interfaces, every field and method
// descriptor, every instruction's member/class/bootstrap references --
// and returns a new record with every name resolved. Definition
// Providers and Emitters work in host-namespace names (with the single
// documented exception of AlwaysInheritFromSandboxedObject, which sets
// Super directly); this is the one pass that moves the whole class into
// its final, fully resolved form.
func (m *Remapper) Remap(rec classfile.ClassRecord) classfile.ClassRecord {
	next := rec.Clone()

	next.Super = m.resolver.ResolveType(next.Super)
	for i, iface := range next.Interfaces {
		next.Interfaces[i] = m.resolver.ResolveType(iface)
	}

	for i := range next.Fields {
		next.Fields[i].Descriptor = m.resolver.ResolveDescriptor(next.Fields[i].Descriptor)
		next.Fields[i].Annotations = m.remapAnnotations(next.Fields[i].Annotations)
	}

	for i := range next.Methods {
		next.Methods[i] = m.remapMethod(next.Methods[i])
	}

	for i := range next.Bootstraps {
		next.Bootstraps[i] = m.remapBootstrap(next.Bootstraps[i])
	}

	for i := range next.InnerClasses {
		next.InnerClasses[i].InnerClass = m.resolver.ResolveType(next.InnerClasses[i].InnerClass)
		if next.InnerClasses[i].OuterClass != "" {
			next.InnerClasses[i].OuterClass = m.resolver.ResolveType(next.InnerClasses[i].OuterClass)
		}
	}

	if next.EnclosingMethod != nil {
		enc := *next.EnclosingMethod
		enc.Class = m.resolver.ResolveType(enc.Class)
		if enc.MethodName != "" {
			enc.MethodDescriptor = m.resolver.ResolveDescriptor(enc.MethodDescriptor)
		}
		next.EnclosingMethod = &enc
	}

	next.Annotations = m.remapAnnotations(next.Annotations)

	return next
}

// remapAnnotations resolves the type descriptors an Annotation references:
// its own Type, and any nested 'c' (ClassInfo) element value, recursing into
// '@' (Nested) and '[' (Array) element values. Signature text is left
// unremapped -- its class-name tokens live inside an encoded generic
// signature string rather than a separately addressable field.
func (m *Remapper) remapAnnotations(anns []classfile.Annotation) []classfile.Annotation {
	for i := range anns {
		anns[i] = m.remapAnnotation(anns[i])
	}
	return anns
}

func (m *Remapper) remapAnnotation(a classfile.Annotation) classfile.Annotation {
	a.Type = m.resolver.ResolveDescriptor(a.Type)
	for i := range a.Pairs {
		a.Pairs[i].Value = m.remapAnnotationValue(a.Pairs[i].Value)
	}
	return a
}

func (m *Remapper) remapAnnotationValue(v classfile.AnnotationValue) classfile.AnnotationValue {
	switch v.Tag {
	case 'e':
		v.EnumType = m.resolver.ResolveDescriptor(v.EnumType)
	case 'c':
		v.ClassInfo = m.resolver.ResolveDescriptor(v.ClassInfo)
	case '@':
		if v.Nested != nil {
			nested := m.remapAnnotation(*v.Nested)
			v.Nested = &nested
		}
	case '[':
		for i := range v.Array {
			v.Array[i] = m.remapAnnotationValue(v.Array[i])
		}
	}
	return v
}

func (m *Remapper) remapMethod(meth classfile.Method) classfile.Method {
	meth.Descriptor = m.resolver.ResolveDescriptor(meth.Descriptor)
	for i, t := range meth.Throws {
		meth.Throws[i] = m.resolver.ResolveType(t)
	}
	for i := range meth.Exceptions {
		if meth.Exceptions[i].CatchType != "" {
			meth.Exceptions[i].CatchType = m.resolver.ResolveType(meth.Exceptions[i].CatchType)
		}
	}
	for i := range meth.Code {
		meth.Code[i] = m.remapInstruction(meth.Code[i])
	}
	meth.Annotations = m.remapAnnotations(meth.Annotations)
	for i := range meth.ParameterAnnotations {
		meth.ParameterAnnotations[i] = m.remapAnnotations(meth.ParameterAnnotations[i])
	}
	return meth
}

func (m *Remapper) remapInstruction(inst classfile.Instruction) classfile.Instruction {
	if inst.Ref != nil {
		ref := *inst.Ref
		ref.Owner = m.resolver.ResolveType(ref.Owner)
		ref.Descriptor = m.resolver.ResolveDescriptor(ref.Descriptor)
		inst.Ref = &ref
	}
	if inst.ClassRef != nil {
		resolved := m.resolver.ResolveType(*inst.ClassRef)
		inst.ClassRef = &resolved
	}
	if inst.InvokeDyn != nil {
		dyn := *inst.InvokeDyn
		dyn.Descriptor = m.resolver.ResolveDescriptor(dyn.Descriptor)
		inst.InvokeDyn = &dyn
	}
	return inst
}

func (m *Remapper) remapBootstrap(bm classfile.BootstrapMethod) classfile.BootstrapMethod {
	bm.MethodHandle = m.remapMethodHandle(bm.MethodHandle)
	for i := range bm.Arguments {
		bm.Arguments[i] = m.remapBootstrapArg(bm.Arguments[i])
	}
	return bm
}

func (m *Remapper) remapMethodHandle(h classfile.MethodHandleRef) classfile.MethodHandleRef {
	h.Ref.Owner = m.resolver.ResolveType(h.Ref.Owner)
	h.Ref.Descriptor = m.resolver.ResolveDescriptor(h.Ref.Descriptor)
	return retargetThunkedHandle(h)
}

// retargetThunkedHandle implements spec.md 4.7's "method handles referring
// to Class, Object, or ClassLoader methods that have been thunked are
// rewritten into static handles whose descriptor prepends the original
// receiver type": if emit.RewriteClassLoaderMethods/RewriteClassMethods/
// RewriteObjectMethods already retargeted the owning call site to a
// static helper elsewhere in this class, any free-standing method handle
// referring to the same original (owner, name, descriptor) needs the same
// static-with-receiver-argument shape, not the virtual shape the original
// descriptor had. Since emit already rewrites call sites directly, this
// pass's job is narrower: only a handle whose owner is one of the three
// pinned types and whose reference kind is still virtual/interface needs
// the static-handle descriptor rewrite to stay consistent with how the
// receiver is now passed explicitly.
func retargetThunkedHandle(h classfile.MethodHandleRef) classfile.MethodHandleRef {
	const (
		refInvokeVirtual   = 5
		refInvokeStatic    = 6
		refInvokeInterface = 9
	)
	if !isPinnedReceiver(h.Ref.Owner) {
		return h
	}
	if h.RefKind != refInvokeVirtual && h.RefKind != refInvokeInterface {
		return h
	}
	h.Ref.Descriptor = prependReceiver(h.Ref.Owner, h.Ref.Descriptor)
	h.RefKind = refInvokeStatic
	return h
}

func isPinnedReceiver(owner string) bool {
	switch owner {
	case "java/lang/Class", "java/lang/Object", "java/lang/ClassLoader",
		resolver.SandboxPrefix + "java/lang/Class",
		resolver.SandboxPrefix + "java/lang/Object",
		resolver.SandboxPrefix + "java/lang/ClassLoader":
		return true
	default:
		return false
	}
}

func prependReceiver(owner, descriptor string) string {
	if len(descriptor) == 0 || descriptor[0] != '(' {
		return descriptor
	}
	return "(L" + owner + ";" + descriptor[1:]
}

func (m *Remapper) remapBootstrapArg(arg classfile.BootstrapArg) classfile.BootstrapArg {
	if arg.ClassName != "" {
		arg.ClassName = m.resolver.ResolveType(arg.ClassName)
	}
	if arg.MethodHandle != nil {
		resolved := m.remapMethodHandle(*arg.MethodHandle)
		arg.MethodHandle = &resolved
	}
	return arg
}
