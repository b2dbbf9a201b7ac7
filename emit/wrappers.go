package emit

import (
	"github.com/dsandbox/rewriter/classfile"
	"github.com/dsandbox/rewriter/opcodes"
)

// boundaryMethods lists the small, fixed set of pinned-type methods whose
// single reference argument or reference return crosses the sandbox
// boundary in a shape simple enough to wrap with one helper call: a lone
// Object-typed parameter, or an Object-typed return. Methods with more
// than one reference parameter need per-call-site stack bookkeeping the
// Rewrite Driver's streaming model does not track, so they are left to
// the deterministic runtime's own boundary checks instead.
var boundaryMethods = map[string]bool{
	memberKey("equals", "(Ljava/lang/Object;)Z"):    true,
	memberKey("compareTo", "(Ljava/lang/Object;)I"): true,
}

// ArgumentUnwrapper converts a sandbox-typed argument into its host
// equivalent immediately before a call that crosses into pinned host code,
// per spec.md 4.6.
type ArgumentUnwrapper struct {
	cfg Config
}

func (ArgumentUnwrapper) Name() string { return "ArgumentUnwrapper" }

func (e ArgumentUnwrapper) Emit(inst classfile.Instruction, _ *MethodContext, seq *classfile.Sequence) {
	if inst.Ref == nil || !opcodes.IsInvoke(inst.Op) {
		return
	}
	if !boundaryMethods[memberKey(inst.Ref.Name, inst.Ref.Descriptor)] {
		return
	}
	helper := e.cfg.UnwrapArgument
	helper.Kind = classfile.InvokeStaticKind
	seq.Prefix = append(seq.Prefix, classfile.Instruction{Op: opcodes.InvokeStatic, Ref: &helper})
}

// ReturnTypeWrapper converts a host-typed return value back into its
// sandbox equivalent immediately after a call into pinned host code, the
// mirror image of ArgumentUnwrapper.
type ReturnTypeWrapper struct {
	cfg Config
}

func (ReturnTypeWrapper) Name() string { return "ReturnTypeWrapper" }

func (e ReturnTypeWrapper) Emit(inst classfile.Instruction, _ *MethodContext, seq *classfile.Sequence) {
	if inst.Ref == nil || !opcodes.IsInvoke(inst.Op) {
		return
	}
	if classfile.ReturnType(inst.Ref.Descriptor) == "V" {
		return
	}
	if !boundaryMethods[memberKey(inst.Ref.Name, inst.Ref.Descriptor)] {
		return
	}
	helper := e.cfg.WrapReturn
	helper.Kind = classfile.InvokeStaticKind
	seq.Suffix = append(seq.Suffix, classfile.Instruction{Op: opcodes.InvokeStatic, Ref: &helper})
}
