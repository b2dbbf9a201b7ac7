package providers

import (
	"github.com/dsandbox/rewriter/classfile"
	"github.com/dsandbox/rewriter/sberrors"
)

// NonSynchronizedMethods is AlwaysUseNonSynchronizedMethods: a sandboxed
// class runs single-threaded within one sandbox, so the synchronized bit
// is cleared on every method rather than honored -- there is no second
// thread for it to exclude.
type NonSynchronizedMethods struct{}

func (NonSynchronizedMethods) Name() string { return "AlwaysUseNonSynchronizedMethods" }

func (NonSynchronizedMethods) Apply(rec classfile.ClassRecord) (classfile.ClassRecord, []sberrors.Diagnostic) {
	changed := false
	for _, m := range rec.Methods {
		if m.Access.Has(classfile.AccSynchronized) {
			changed = true
			break
		}
	}
	if !changed {
		return rec, nil
	}
	next := rec.Clone()
	for i := range next.Methods {
		next.Methods[i].Access = next.Methods[i].Access.Clear(classfile.AccSynchronized)
	}
	return next, nil
}
