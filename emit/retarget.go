package emit

import (
	"github.com/dsandbox/rewriter/classfile"
	"github.com/dsandbox/rewriter/opcodes"
)

// retarget looks up (name, descriptor) in methods and, on a hit, replaces
// inst with a static call to the mapped helper.
func retarget(inst classfile.Instruction, methods map[string]classfile.MemberRef, seq *classfile.Sequence) {
	if inst.Ref == nil || !opcodes.IsInvoke(inst.Op) {
		return
	}
	helper, ok := methods[memberKey(inst.Ref.Name, inst.Ref.Descriptor)]
	if !ok {
		return
	}
	helper.Kind = classfile.InvokeStaticKind
	seq.PreventDefault(classfile.Instruction{Op: opcodes.InvokeStatic, Ref: &helper})
}

// RewriteClassLoaderMethods retargets virtual calls on java/lang/ClassLoader
// not already disposed of by the policy table (DisallowNonDeterministicMethods
// runs first in priority order and calls preventDefault for anything the
// table governs) to deterministic static helpers.
type RewriteClassLoaderMethods struct {
	cfg Config
}

func (RewriteClassLoaderMethods) Name() string { return "RewriteClassLoaderMethods" }

func (e RewriteClassLoaderMethods) Emit(inst classfile.Instruction, _ *MethodContext, seq *classfile.Sequence) {
	if inst.Ref == nil || inst.Ref.Owner != "java/lang/ClassLoader" {
		return
	}
	retarget(inst, e.cfg.ClassLoaderMethods, seq)
}

// RewriteClassMethods retargets virtual calls on java/lang/Class.
type RewriteClassMethods struct {
	cfg Config
}

func (RewriteClassMethods) Name() string { return "RewriteClassMethods" }

func (e RewriteClassMethods) Emit(inst classfile.Instruction, _ *MethodContext, seq *classfile.Sequence) {
	if inst.Ref == nil || inst.Ref.Owner != "java/lang/Class" {
		return
	}
	retarget(inst, e.cfg.ClassMethods, seq)
}

// RewriteObjectMethods retargets virtual calls on java/lang/Object, with
// toString()Ljava/lang/String; specially rewritten to toDJVMString() so
// the sandbox can return a sandbox String without overloading the host
// toString signature, per spec.md 4.6.
type RewriteObjectMethods struct {
	cfg Config
}

func (RewriteObjectMethods) Name() string { return "RewriteObjectMethods" }

func (e RewriteObjectMethods) Emit(inst classfile.Instruction, _ *MethodContext, seq *classfile.Sequence) {
	if inst.Ref == nil || inst.Ref.Owner != "java/lang/Object" {
		return
	}
	if inst.Ref.Name == "toString" && inst.Ref.Descriptor == "()Ljava/lang/String;" {
		helper := e.cfg.ToDJVMString
		helper.Kind = classfile.InvokeVirtualKind
		seq.PreventDefault(classfile.Instruction{Op: opcodes.InvokeVirtual, Ref: &helper})
		return
	}
	retarget(inst, e.cfg.ObjectMethods, seq)
}
