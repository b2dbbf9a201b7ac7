package providers

import (
	"github.com/dsandbox/rewriter/classfile"
	"github.com/dsandbox/rewriter/sberrors"
)

// serializationHooks names the ad hoc serialization callbacks the
// Serializable contract recognizes by exact signature rather than by
// interface method. Left in place they would let a class escape the
// sandbox's interned-String/deterministic-collection guarantees by
// writing or reconstructing fields directly against an ObjectOutputStream/
// ObjectInputStream the sandbox does not model.
var serializationHooks = map[string]string{
	"writeObject":  "(Ljava/io/ObjectOutputStream;)V",
	"readObject":   "(Ljava/io/ObjectInputStream;)V",
	"readObjectNoData": "()V",
	"writeReplace": "()Ljava/lang/Object;",
	"readResolve":  "()Ljava/lang/Object;",
}

// SerializationHooks is StubOutSerialization, a provider supplemented
// beyond spec.md 4.5's enumerated list: see DESIGN.md's Open Questions
// entry for why it is needed alongside the reflection allow-list the
// policy table grants.
type SerializationHooks struct{}

func (SerializationHooks) Name() string { return "StubOutSerialization" }

func (SerializationHooks) Apply(rec classfile.ClassRecord) (classfile.ClassRecord, []sberrors.Diagnostic) {
	next := rec
	changed := false
	var diags []sberrors.Diagnostic
	for _, m := range rec.Methods {
		desc, ok := serializationHooks[m.Name]
		if !ok || desc != m.Descriptor || m.IsAbstractOrNative() {
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
		diags = append(diags, sberrors.Diagnostic{
			Severity: sberrors.Informational,
			Class:    rec.HostName,
			Member:   m.Name + m.Descriptor,
			Message:  "serialization hook stubbed to a deterministic default",
		})
	}
	return next, diags
}
