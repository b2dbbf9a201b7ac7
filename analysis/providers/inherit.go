package providers

import (
	"github.com/dsandbox/rewriter/classfile"
	"github.com/dsandbox/rewriter/sberrors"
)

// InheritFromSandboxedObject is the AlwaysInheritFromSandboxedObject
// provider of spec.md 4.5: a class whose host super is java/lang/Object
// must inherit from the sandbox Object, set directly here rather than
// left for the Remapper, so that the sandbox Object's own (pinned)
// identity is never mistaken for a relocation candidate downstream.
type InheritFromSandboxedObject struct{}

func (InheritFromSandboxedObject) Name() string { return "AlwaysInheritFromSandboxedObject" }

func (InheritFromSandboxedObject) Apply(rec classfile.ClassRecord) (classfile.ClassRecord, []sberrors.Diagnostic) {
	if rec.Super != "java/lang/Object" {
		return rec, nil
	}
	next := rec.Clone()
	next.Super = sandboxObjectName
	return next, nil
}
