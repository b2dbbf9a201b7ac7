package emit

import (
	"github.com/dsandbox/rewriter/classfile"
	"github.com/dsandbox/rewriter/opcodes"
	"github.com/dsandbox/rewriter/profile"
)

// debitCall builds the static call that debits one unit from the named
// budget counter and traps if it is exhausted.
func debitCall(helper classfile.MemberRef) classfile.Instruction {
	helper.Kind = classfile.InvokeStaticKind
	return classfile.Instruction{Op: opcodes.InvokeStatic, Ref: &helper}
}

// TraceAllocations prepends a budget debit before every `new`/`newarray`/
// `anewarray`/`multianewarray`, present in the pipeline only when an
// execution profile is configured (spec.md 4.6).
type TraceAllocations struct {
	profile *profile.Profile
}

func (TraceAllocations) Name() string { return "TraceAllocations" }

func (e TraceAllocations) Emit(inst classfile.Instruction, _ *MethodContext, seq *classfile.Sequence) {
	switch inst.Op {
	case opcodes.New, opcodes.NewArray, opcodes.ANewArray, opcodes.MultiANewArray:
		seq.Prefix = append(seq.Prefix, debitCall(e.profile.AllocationHelper))
	}
}

// TraceInvocations prepends a budget debit before every invoke-family
// instruction.
type TraceInvocations struct {
	profile *profile.Profile
}

func (TraceInvocations) Name() string { return "TraceInvocations" }

func (e TraceInvocations) Emit(inst classfile.Instruction, _ *MethodContext, seq *classfile.Sequence) {
	if opcodes.IsInvoke(inst.Op) {
		seq.Prefix = append(seq.Prefix, debitCall(e.profile.InvocationHelper))
	}
}

// TraceJumps prepends a budget debit before goto, goto_w, jsr_w, ifeq,
// ifnull and ifnonnull, to bound unbounded-loop execution. The other
// conditional branches (ifne, iflt, the if_icmp* and if_acmp* families and
// the rest) and tableswitch/lookupswitch are not debited.
type TraceJumps struct {
	profile *profile.Profile
}

func (TraceJumps) Name() string { return "TraceJumps" }

func (e TraceJumps) Emit(inst classfile.Instruction, _ *MethodContext, seq *classfile.Sequence) {
	switch inst.Op {
	case opcodes.Goto, opcodes.GotoW, opcodes.Ifeq, opcodes.Ifnull, opcodes.Ifnonnull, opcodes.JsrW:
		seq.Prefix = append(seq.Prefix, debitCall(e.profile.JumpHelper))
	}
}

// TraceThrows prepends a budget debit before every athrow.
type TraceThrows struct {
	profile *profile.Profile
}

func (TraceThrows) Name() string { return "TraceThrows" }

func (e TraceThrows) Emit(inst classfile.Instruction, _ *MethodContext, seq *classfile.Sequence) {
	if inst.Op == opcodes.Athrow {
		seq.Prefix = append(seq.Prefix, debitCall(e.profile.ThrowHelper))
	}
}
