package providers

import (
	"github.com/dsandbox/rewriter/classfile"
	"github.com/dsandbox/rewriter/opcodes"
	"github.com/dsandbox/rewriter/sberrors"
)

const stringDescriptor = "Ljava/lang/String;"

// ConstantFieldRemover implements spec.md 4.5's ConstantFieldRemover: a
// host String constant baked into a field's ConstantValue attribute
// bypasses the sandbox's interned-String type entirely if left in place,
// so the constant is stripped and, for static fields, replaced with a
// synthetic <clinit> assignment that routes the same literal through the
// deterministic intern helper.
type ConstantFieldRemover struct {
	cfg Config
}

func NewConstantFieldRemover(cfg Config) ConstantFieldRemover {
	return ConstantFieldRemover{cfg: cfg}
}

func (ConstantFieldRemover) Name() string { return "ConstantFieldRemover" }

type pendingStringInit struct {
	fieldName string
	value     string
}

func (p ConstantFieldRemover) Apply(rec classfile.ClassRecord) (classfile.ClassRecord, []sberrors.Diagnostic) {
	var pending []pendingStringInit
	touched := false

	for _, f := range rec.Fields {
		if f.Descriptor != stringDescriptor || f.ConstValue == nil {
			continue
		}
		touched = true
		if f.Access.Has(classfile.AccStatic) {
			if s, ok := f.ConstValue.(string); ok {
				pending = append(pending, pendingStringInit{fieldName: f.Name, value: s})
			}
		}
	}
	if !touched {
		return rec, nil
	}

	next := rec.Clone()
	for i := range next.Fields {
		if next.Fields[i].Descriptor == stringDescriptor {
			next.Fields[i].ConstValue = nil
		}
	}
	if len(pending) > 0 {
		next = injectStaticInitializer(next, pending, p.cfg.InternHelper)
	}
	return next, nil
}

// injectStaticInitializer prepends, to the class's <clinit> (creating one
// if absent), one ldc+invokestatic+putstatic triple per pending constant:
// load the original literal, intern it through the deterministic helper,
// store the interned sandbox String into the now-non-constant field.
func injectStaticInitializer(rec classfile.ClassRecord, pending []pendingStringInit, intern classfile.MemberRef) classfile.ClassRecord {
	intern.Kind = classfile.InvokeStaticKind

	var body []classfile.Instruction
	for _, p := range pending {
		v := p.value
		fieldRef := classfile.MemberRef{
			Owner: rec.HostName, Name: p.fieldName, Descriptor: stringDescriptor, Kind: classfile.PutStaticKind,
		}
		body = append(body,
			classfile.Instruction{Op: opcodes.Ldc, StringConst: &v},
			classfile.Instruction{Op: opcodes.InvokeStatic, Ref: &intern},
			classfile.Instruction{Op: opcodes.PutStatic, Ref: &fieldRef},
		)
	}

	if existing := rec.FindMethod("<clinit>", "()V"); existing != nil {
		updated := existing.Clone()
		// Run the injected assignments before whatever the class already
		// does in <clinit>, and drop its trailing return so the combined
		// body still ends with exactly one.
		if n := len(updated.Code); n > 0 && updated.Code[n-1].Op == opcodes.Return {
			updated.Code = updated.Code[:n-1]
		}
		updated.Code = append(append([]classfile.Instruction(nil), body...), updated.Code...)
		updated.Code = append(updated.Code, classfile.Instruction{Op: opcodes.Return})
		return rec.WithMethod(updated)
	}

	body = append(body, classfile.Instruction{Op: opcodes.Return})
	return rec.WithMethod(classfile.Method{
		Name:       "<clinit>",
		Descriptor: "()V",
		Access:     classfile.AccStatic,
		Code:       body,
		MaxStack:   4,
		MaxLocals:  0,
	})
}
