package emit

import (
	"github.com/dsandbox/rewriter/classfile"
	"github.com/dsandbox/rewriter/opcodes"
)

// ExactMath is AlwaysUseExactMath: integer arithmetic opcodes that
// silently wrap on overflow in the host runtime are rewritten into a
// call to a deterministic helper that performs the exact-checked
// equivalent, so overflow behavior cannot vary with the host's word size
// or JIT strategy.
type ExactMath struct {
	cfg Config
}

func (ExactMath) Name() string { return "AlwaysUseExactMath" }

func (e ExactMath) Emit(inst classfile.Instruction, _ *MethodContext, seq *classfile.Sequence) {
	if !classfile.IsOverflowingArithmetic(inst.Op) {
		return
	}
	helper, ok := e.cfg.ExactMathHelpers[inst.Op]
	if !ok {
		return
	}
	helper.Kind = classfile.InvokeStaticKind
	seq.PreventDefault(classfile.Instruction{Op: opcodes.InvokeStatic, Ref: &helper})
}
