package providers

import (
	"github.com/dsandbox/rewriter/classfile"
	"github.com/dsandbox/rewriter/sberrors"
)

// introspectiveHooks names the reflection-registry callback methods a
// class may declare to customize how the platform's reflection machinery
// describes it. None of them can run deterministically inside a sandbox
// (they report host JVM internals the sandbox never constructs), so their
// bodies are replaced with a type-correct default return.
var introspectiveHooks = map[string]bool{
	"getEnclosingClass":      true,
	"getEnclosingMethod":     true,
	"getEnclosingConstructor": true,
	"getDeclaringClass":      true,
	"isAnonymousClass":       true,
	"isLocalClass":           true,
	"isMemberClass":          true,
	"isSynthetic":            true,
}

// IntrospectiveMethods is StubOutIntrospectiveMethods.
type IntrospectiveMethods struct{}

func (IntrospectiveMethods) Name() string { return "StubOutIntrospectiveMethods" }

func (IntrospectiveMethods) Apply(rec classfile.ClassRecord) (classfile.ClassRecord, []sberrors.Diagnostic) {
	next := rec
	changed := false
	for _, m := range rec.Methods {
		if !introspectiveHooks[m.Name] || m.IsAbstractOrNative() {
			continue
		}
		if !changed {
			next = rec.Clone()
			changed = true
		}
		updated := m.Clone()
		updated.Code = stubDefaultBody(m.Descriptor)
		updated.MaxStack = 1
		next = next.WithMethod(updated)
	}
	return next, nil
}
