package providers

import (
	"testing"

	"github.com/dsandbox/rewriter/classfile"
	"github.com/dsandbox/rewriter/opcodes"
)

func TestInheritFromSandboxedObject_RewritesObjectSuper(t *testing.T) {
	rec := classfile.ClassRecord{Super: "java/lang/Object"}
	next, diags := InheritFromSandboxedObject{}.Apply(rec)
	if diags != nil {
		t.Errorf("expected no diagnostics, got %v", diags)
	}
	if next.Super != sandboxObjectName {
		t.Errorf("Super = %q, want %q", next.Super, sandboxObjectName)
	}
}

func TestInheritFromSandboxedObject_LeavesOtherSupersAlone(t *testing.T) {
	rec := classfile.ClassRecord{Super: "com/acme/Base"}
	next, _ := InheritFromSandboxedObject{}.Apply(rec)
	if next.Super != "com/acme/Base" {
		t.Errorf("Super = %q, want unchanged", next.Super)
	}
}

func TestStrictFloatingPointArithmetic_SetsStrictOnEveryMethod(t *testing.T) {
	rec := classfile.ClassRecord{Methods: []classfile.Method{
		{Name: "a", Descriptor: "()V"},
		{Name: "b", Descriptor: "()V", Access: classfile.AccPublic},
	}}
	next, _ := StrictFloatingPointArithmetic{}.Apply(rec)
	for _, m := range next.Methods {
		if !m.Access.Has(classfile.AccStrict) {
			t.Errorf("method %s missing AccStrict", m.Name)
		}
	}
}

func TestNonSynchronizedMethods_ClearsSynchronizedBit(t *testing.T) {
	rec := classfile.ClassRecord{Methods: []classfile.Method{
		{Name: "spin", Descriptor: "()V", Access: classfile.AccSynchronized},
	}}
	next, _ := NonSynchronizedMethods{}.Apply(rec)
	if next.Methods[0].Access.Has(classfile.AccSynchronized) {
		t.Error("synchronized bit survived the rewrite")
	}
}

func TestNonSynchronizedMethods_NoOpWhenNothingSynchronized(t *testing.T) {
	rec := classfile.ClassRecord{Methods: []classfile.Method{
		{Name: "spin", Descriptor: "()V"},
	}}
	next, _ := NonSynchronizedMethods{}.Apply(rec)
	if next.Methods[0].Access.Has(classfile.AccSynchronized) {
		t.Error("unexpected synchronized bit")
	}
}

func TestFinalizerMethods_StubsFinalizeBody(t *testing.T) {
	rec := classfile.ClassRecord{Methods: []classfile.Method{
		{Name: "finalize", Descriptor: "()V", Code: []classfile.Instruction{
			{Op: opcodes.InvokeStatic}, {Op: opcodes.Return},
		}},
	}}
	next, _ := FinalizerMethods{}.Apply(rec)
	m := next.FindMethod("finalize", "()V")
	if len(m.Code) != 1 || m.Code[0].Op != opcodes.Return {
		t.Errorf("finalize body = %+v, want a bare return", m.Code)
	}
}

func TestFinalizerMethods_NoOpWithoutFinalizer(t *testing.T) {
	rec := classfile.ClassRecord{Methods: []classfile.Method{
		{Name: "run", Descriptor: "()V", Code: []classfile.Instruction{{Op: opcodes.Return}}},
	}}
	next, _ := FinalizerMethods{}.Apply(rec)
	if len(next.Methods) != 1 || next.Methods[0].Name != "run" {
		t.Errorf("unexpected method list: %+v", next.Methods)
	}
}

func TestIntrospectiveMethods_StubsKnownHooks(t *testing.T) {
	rec := classfile.ClassRecord{Methods: []classfile.Method{
		{Name: "getEnclosingClass", Descriptor: "()Ljava/lang/Class;", Code: []classfile.Instruction{{Op: opcodes.AconstNull}}},
		{Name: "ordinary", Descriptor: "()V", Code: []classfile.Instruction{{Op: opcodes.Return}}},
	}}
	next, _ := IntrospectiveMethods{}.Apply(rec)
	m := next.FindMethod("getEnclosingClass", "()Ljava/lang/Class;")
	if len(m.Code) != 2 || m.Code[0].Op != opcodes.AconstNull || m.Code[1].Op != opcodes.Areturn {
		t.Errorf("stubbed body = %+v, want aconst_null;areturn", m.Code)
	}
	if next.FindMethod("ordinary", "()V").Code[0].Op != opcodes.Return {
		t.Error("ordinary method body should be untouched")
	}
}

func TestSerializationHooks_StubsExactSignatureMatch(t *testing.T) {
	rec := classfile.ClassRecord{Methods: []classfile.Method{
		{Name: "writeObject", Descriptor: "(Ljava/io/ObjectOutputStream;)V", Code: []classfile.Instruction{{Op: opcodes.InvokeVirtual}}},
		{Name: "writeObject", Descriptor: "(Ljava/lang/String;)V", Code: []classfile.Instruction{{Op: opcodes.InvokeVirtual}}},
	}}
	next, diags := SerializationHooks{}.Apply(rec)
	if len(diags) != 1 {
		t.Fatalf("expected exactly one diagnostic for the matching overload, got %d", len(diags))
	}
	matching := next.FindMethod("writeObject", "(Ljava/io/ObjectOutputStream;)V")
	if len(matching.Code) != 1 || matching.Code[0].Op != opcodes.Return {
		t.Errorf("matching overload body = %+v, want a bare return", matching.Code)
	}
	mismatched := next.FindMethod("writeObject", "(Ljava/lang/String;)V")
	if mismatched.Code[0].Op != opcodes.InvokeVirtual {
		t.Error("non-matching overload should be untouched")
	}
}

func TestNativeMethods_StubsNativeBodyAndClearsAccNative(t *testing.T) {
	cfg := Config{NativeErrorHelper: classfile.MemberRef{Owner: "sandbox/java/rt/Native", Name: "unsupported", Descriptor: "()Ljava/lang/Error;"}}
	p := NewNativeMethods(cfg)

	rec := classfile.ClassRecord{Methods: []classfile.Method{
		{Name: "hashCode", Descriptor: "()I", Access: classfile.AccNative},
	}}
	next, diags := p.Apply(rec)
	if len(diags) != 1 {
		t.Fatalf("expected one diagnostic, got %d", len(diags))
	}
	m := next.FindMethod("hashCode", "()I")
	if m.Access.Has(classfile.AccNative) {
		t.Error("AccNative bit should be cleared once a body is installed")
	}
	if len(m.Code) != 2 || m.Code[0].Op != opcodes.InvokeStatic || m.Code[1].Op != opcodes.Athrow {
		t.Errorf("native stub body = %+v, want invokestatic;athrow", m.Code)
	}
}

func TestConstantFieldRemover_StripsConstantAndInjectsClinit(t *testing.T) {
	cfg := Config{InternHelper: classfile.MemberRef{Owner: "sandbox/java/rt/Strings", Name: "intern", Descriptor: "(Ljava/lang/String;)Ljava/lang/String;"}}
	p := NewConstantFieldRemover(cfg)

	rec := classfile.ClassRecord{
		HostName: "com/acme/Widget",
		Fields: []classfile.Field{
			{Name: "GREETING", Descriptor: "Ljava/lang/String;", Access: classfile.AccStatic, ConstValue: "hello"},
		},
	}
	next, diags := p.Apply(rec)
	if diags != nil {
		t.Errorf("expected no diagnostics, got %v", diags)
	}
	if next.Fields[0].ConstValue != nil {
		t.Error("ConstValue should be stripped from the field")
	}
	clinit := next.FindMethod("<clinit>", "()V")
	if clinit == nil {
		t.Fatal("expected a synthetic <clinit> to be injected")
	}
	if len(clinit.Code) != 4 {
		t.Fatalf("<clinit> body = %+v, want ldc;invokestatic;putstatic;return", clinit.Code)
	}
	if clinit.Code[0].Op != opcodes.Ldc || clinit.Code[1].Op != opcodes.InvokeStatic ||
		clinit.Code[2].Op != opcodes.PutStatic || clinit.Code[3].Op != opcodes.Return {
		t.Errorf("<clinit> body ops = %+v", clinit.Code)
	}
}

func TestConstantFieldRemover_NoOpWithoutStringConstants(t *testing.T) {
	rec := classfile.ClassRecord{Fields: []classfile.Field{
		{Name: "count", Descriptor: "I"},
	}}
	next, diags := NewConstantFieldRemover(Config{}).Apply(rec)
	if diags != nil {
		t.Errorf("expected no diagnostics, got %v", diags)
	}
	if next.FindMethod("<clinit>", "()V") != nil {
		t.Error("no <clinit> should be injected when nothing needs interning")
	}
}
