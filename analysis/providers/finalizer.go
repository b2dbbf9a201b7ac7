package providers

import (
	"github.com/dsandbox/rewriter/classfile"
	"github.com/dsandbox/rewriter/sberrors"
)

// FinalizerMethods is StubOutFinalizerMethods: a host finalizer runs on a
// garbage-collector thread at a time the sandbox cannot control or
// reproduce, so its body is replaced with a bare return.
type FinalizerMethods struct{}

func (FinalizerMethods) Name() string { return "StubOutFinalizerMethods" }

func (FinalizerMethods) Apply(rec classfile.ClassRecord) (classfile.ClassRecord, []sberrors.Diagnostic) {
	m := rec.FindMethod("finalize", "()V")
	if m == nil || m.IsAbstractOrNative() {
		return rec, nil
	}
	updated := m.Clone()
	updated.Code = stubVoidBody()
	updated.MaxStack, updated.MaxLocals = 0, 1
	return rec.WithMethod(updated), nil
}
