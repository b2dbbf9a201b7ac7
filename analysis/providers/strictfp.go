package providers

import (
	"github.com/dsandbox/rewriter/classfile"
	"github.com/dsandbox/rewriter/sberrors"
)

// StrictFloatingPointArithmetic is AlwaysUseStrictFloatingPointArithmetic:
// every method gets the strictfp bit, so floating point results are
// identical across host JIT/interpreter implementations instead of
// depending on extended-precision intermediate values.
type StrictFloatingPointArithmetic struct{}

func (StrictFloatingPointArithmetic) Name() string {
	return "AlwaysUseStrictFloatingPointArithmetic"
}

func (StrictFloatingPointArithmetic) Apply(rec classfile.ClassRecord) (classfile.ClassRecord, []sberrors.Diagnostic) {
	next := rec.Clone()
	for i := range next.Methods {
		next.Methods[i].Access = next.Methods[i].Access.Set(classfile.AccStrict)
	}
	return next, nil
}
