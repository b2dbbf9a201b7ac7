package rewrite

import (
	"testing"

	"github.com/dsandbox/rewriter/analysis"
	"github.com/dsandbox/rewriter/classfile"
	"github.com/dsandbox/rewriter/emit"
	"github.com/dsandbox/rewriter/opcodes"
	"github.com/dsandbox/rewriter/policy"
	"github.com/dsandbox/rewriter/resolver"
	"github.com/dsandbox/rewriter/sberrors"
)

func encodeFixture(t *testing.T, rec classfile.ClassRecord) []byte {
	t.Helper()
	data, err := classfile.Encode(rec)
	if err != nil {
		t.Fatalf("Encode fixture: %v", err)
	}
	return data
}

func TestDriver_Rewrite_FullPipeline(t *testing.T) {
	r := resolver.New(nil, resolver.DefaultPins(), nil)
	helper := classfile.MemberRef{Owner: "sandbox/java/rt/ExactMath", Name: "addExact", Descriptor: "(II)I"}
	cfg := emit.Config{
		Policy:           policy.New(),
		ExactMathHelpers: map[opcodes.Op]classfile.MemberRef{opcodes.Iadd: helper},
	}
	driver := New(r, cfg, nil)

	raw := encodeFixture(t, classfile.ClassRecord{
		SandboxName: "com/acme/Widget",
		Super:       "java/lang/Object",
		Access:      classfile.AccPublic,
		Methods: []classfile.Method{
			{
				Name:       "sum",
				Descriptor: "(II)I",
				Access:     classfile.AccPublic,
				Code: []classfile.Instruction{
					{Op: opcodes.Iload, Operands: []int32{0}},
					{Op: opcodes.Iload, Operands: []int32{1}},
					{Op: opcodes.Iadd},
					{Op: opcodes.Ireturn},
				},
				MaxStack:  2,
				MaxLocals: 2,
			},
		},
	})

	ctx := analysis.New("com/acme/Widget", sberrors.Error)
	out, err := driver.Rewrite(ctx, "com/acme/Widget", raw)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}

	rewritten, err := classfile.Decode(out)
	if err != nil {
		t.Fatalf("Decode rewritten bytes: %v", err)
	}
	if rewritten.HostName != "sandbox/com/acme/Widget" {
		t.Errorf("rewritten this-class = %q, want the sandbox name", rewritten.HostName)
	}

	meth := rewritten.FindMethod("sum", "(II)I")
	if meth == nil {
		t.Fatal("rewritten class is missing the sum method")
	}
	var sawHelperCall bool
	for _, inst := range meth.Code {
		if inst.Op == opcodes.InvokeStatic && inst.Ref != nil && inst.Ref.Name == "addExact" {
			sawHelperCall = true
		}
		if inst.Op == opcodes.Iadd {
			t.Error("plain iadd survived the rewrite; ExactMath should have replaced it")
		}
	}
	if !sawHelperCall {
		t.Error("expected a call to the ExactMath helper in the rewritten method")
	}
}

func TestDriver_Rewrite_ReservedMemberNameAborts(t *testing.T) {
	r := resolver.New(nil, resolver.DefaultPins(), nil)
	cfg := emit.Config{Policy: policy.New()}
	driver := New(r, cfg, nil)

	raw := encodeFixture(t, classfile.ClassRecord{
		SandboxName: "com/acme/Widget",
		Super:       "java/lang/Object",
		Access:      classfile.AccPublic,
		Methods: []classfile.Method{
			{
				Name:       "toDJVMString",
				Descriptor: "()Ljava/lang/String;",
				Access:     classfile.AccPublic,
				Code:       []classfile.Instruction{{Op: opcodes.AconstNull}, {Op: opcodes.Areturn}},
				MaxStack:   1,
				MaxLocals:  1,
			},
		},
	})

	ctx := analysis.New("com/acme/Widget", sberrors.Error)
	_, err := driver.Rewrite(ctx, "com/acme/Widget", raw)
	if err == nil {
		t.Fatal("expected the reserved member name toDJVMString to abort the rewrite")
	}
}

func TestDriver_Rewrite_ForbiddenCallAborts(t *testing.T) {
	r := resolver.New(nil, resolver.DefaultPins(), nil)
	table := policy.New()
	table.ForbidMember("java/lang/System", "currentTimeMillis", "()J")
	cfg := emit.Config{Policy: table}
	driver := New(r, cfg, nil)

	sysTime := classfile.MemberRef{Owner: "java/lang/System", Name: "currentTimeMillis", Descriptor: "()J", Kind: classfile.InvokeStaticKind}
	raw := encodeFixture(t, classfile.ClassRecord{
		SandboxName: "com/acme/Widget",
		Super:       "java/lang/Object",
		Access:      classfile.AccPublic,
		Methods: []classfile.Method{
			{
				Name:       "now",
				Descriptor: "()J",
				Access:     classfile.AccPublic,
				Code: []classfile.Instruction{
					{Op: opcodes.InvokeStatic, Ref: &sysTime},
					{Op: opcodes.Lreturn},
				},
				MaxStack:  2,
				MaxLocals: 1,
			},
		},
	})

	ctx := analysis.New("com/acme/Widget", sberrors.Error)
	_, err := driver.Rewrite(ctx, "com/acme/Widget", raw)
	if err == nil {
		t.Fatal("expected the forbidden System.currentTimeMillis call to abort the rewrite")
	}
}
