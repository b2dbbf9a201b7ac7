package emit

import (
	"github.com/dsandbox/rewriter/classfile"
	"github.com/dsandbox/rewriter/opcodes"
)

// StringConstantWrapper routes every ldc of a String constant through the
// deterministic intern helper, so a constant loaded in sandboxed code is
// never a bare host java.lang.String but the sandbox's interned
// equivalent, per spec.md 4.6. The same helper ConstantFieldRemover's
// synthetic initializer calls (analysis/providers.Config.InternHelper).
type StringConstantWrapper struct {
	cfg Config
}

func (StringConstantWrapper) Name() string { return "StringConstantWrapper" }

func (e StringConstantWrapper) Emit(inst classfile.Instruction, _ *MethodContext, seq *classfile.Sequence) {
	if inst.StringConst == nil {
		return
	}
	helper := e.cfg.InternHelper
	helper.Kind = classfile.InvokeStaticKind
	seq.Suffix = append(seq.Suffix, classfile.Instruction{Op: opcodes.InvokeStatic, Ref: &helper})
}
