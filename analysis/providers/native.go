package providers

import (
	"github.com/dsandbox/rewriter/classfile"
	"github.com/dsandbox/rewriter/opcodes"
	"github.com/dsandbox/rewriter/sberrors"
)

// NativeMethods is StubOutNativeMethods: a native method has no bytecode
// body to rewrite and, by definition, delegates to code the rewriter
// cannot see or control, so it is replaced with a call to a deterministic
// runtime helper that constructs and throws a fixed error.
type NativeMethods struct {
	cfg Config
}

func NewNativeMethods(cfg Config) NativeMethods { return NativeMethods{cfg: cfg} }

func (NativeMethods) Name() string { return "StubOutNativeMethods" }

func (p NativeMethods) Apply(rec classfile.ClassRecord) (classfile.ClassRecord, []sberrors.Diagnostic) {
	var diags []sberrors.Diagnostic
	next := rec
	changed := false
	for _, m := range rec.Methods {
		if !m.Access.Has(classfile.AccNative) {
			continue
		}
		if !changed {
			next = rec.Clone()
			changed = true
		}
		updated := m.Clone()
		helper := p.cfg.NativeErrorHelper
		helper.Kind = classfile.InvokeStaticKind
		updated.Access = updated.Access.Clear(classfile.AccNative)
		updated.Code = []classfile.Instruction{
			{Op: opcodes.InvokeStatic, Ref: &helper},
			{Op: opcodes.Athrow},
		}
		updated.MaxStack, updated.MaxLocals = 1, methodLocalSlots(updated)
		next = next.WithMethod(updated)
		diags = append(diags, sberrors.Diagnostic{
			Severity: sberrors.Warning,
			Class:    rec.HostName,
			Member:   m.Name + m.Descriptor,
			Message:  "native method stubbed to throw at call time",
		})
	}
	return next, diags
}

// methodLocalSlots preserves the original local-variable slot count a
// stubbed method needs for its argument list (the receiver plus each
// parameter occupies a slot) even though the stub body never reads them.
func methodLocalSlots(m classfile.Method) int {
	n := 1 // this
	if m.Access.Has(classfile.AccStatic) {
		n = 0
	}
	for _, arg := range classfile.ParseMethodDescriptorArgs(m.Descriptor) {
		if arg == "J" || arg == "D" {
			n += 2
		} else {
			n++
		}
	}
	return n
}
