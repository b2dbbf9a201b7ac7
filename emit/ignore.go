package emit

import (
	"github.com/dsandbox/rewriter/classfile"
	"github.com/dsandbox/rewriter/opcodes"
)

// IgnoreBreakpoints drops the debugger-trap opcode entirely: a sandboxed
// class is never attached to directly by a debugger, and leaving the
// breakpoint byte in place would fault in a host JVM that a rewritten
// class might incorrectly be loaded into outside the sandbox loader.
type IgnoreBreakpoints struct{}

func (IgnoreBreakpoints) Name() string { return "IgnoreBreakpoints" }

func (IgnoreBreakpoints) Emit(inst classfile.Instruction, _ *MethodContext, seq *classfile.Sequence) {
	if inst.Op == opcodes.Breakpoint {
		seq.PreventDefault()
	}
}

// IgnoreSynchronizedBlocks drops monitorenter/monitorexit instructions,
// the synchronized-block counterpart to
// AlwaysUseNonSynchronizedMethods's handling of the method-level flag: a
// sandbox has no second thread to exclude.
type IgnoreSynchronizedBlocks struct{}

func (IgnoreSynchronizedBlocks) Name() string { return "IgnoreSynchronizedBlocks" }

func (IgnoreSynchronizedBlocks) Emit(inst classfile.Instruction, _ *MethodContext, seq *classfile.Sequence) {
	if classfile.IsMonitorInstruction(inst.Op) {
		seq.PreventDefault()
	}
}
