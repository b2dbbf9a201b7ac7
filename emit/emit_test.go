package emit

import (
	"testing"

	"github.com/dsandbox/rewriter/analysis"
	"github.com/dsandbox/rewriter/classfile"
	"github.com/dsandbox/rewriter/opcodes"
	"github.com/dsandbox/rewriter/policy"
	"github.com/dsandbox/rewriter/sberrors"
)

func runOne(p *Pipeline, mctx *MethodContext, inst classfile.Instruction) []classfile.Instruction {
	return p.RewriteMethod(mctx, []classfile.Instruction{inst})
}

func TestExactMath_RewritesOverflowingArithmetic(t *testing.T) {
	helper := classfile.MemberRef{Owner: "sandbox/java/rt/ExactMath", Name: "addExact", Descriptor: "(II)I"}
	cfg := Config{ExactMathHelpers: map[opcodes.Op]classfile.MemberRef{opcodes.Iadd: helper}}
	p := NewPipeline(cfg)
	mctx := &MethodContext{Config: cfg}

	out := runOne(p, mctx, classfile.Instruction{Op: opcodes.Iadd})
	if len(out) != 1 || out[0].Op != opcodes.InvokeStatic {
		t.Fatalf("got %+v, want a single InvokeStatic helper call", out)
	}
	if out[0].Ref.Name != "addExact" {
		t.Errorf("Ref.Name = %q, want addExact", out[0].Ref.Name)
	}
}

func TestExactMath_LeavesUnconfiguredOpcodeAlone(t *testing.T) {
	cfg := Config{ExactMathHelpers: map[opcodes.Op]classfile.MemberRef{}}
	p := NewPipeline(cfg)
	mctx := &MethodContext{Config: cfg}

	out := runOne(p, mctx, classfile.Instruction{Op: opcodes.Iadd})
	if len(out) != 1 || out[0].Op != opcodes.Iadd {
		t.Fatalf("got %+v, want the original iadd passed through", out)
	}
}

func TestExactMath_IgnoresNonArithmeticOpcodes(t *testing.T) {
	helper := classfile.MemberRef{Owner: "sandbox/java/rt/ExactMath", Name: "addExact", Descriptor: "(II)I"}
	cfg := Config{ExactMathHelpers: map[opcodes.Op]classfile.MemberRef{opcodes.Iadd: helper}}
	p := NewPipeline(cfg)
	mctx := &MethodContext{Config: cfg}

	out := runOne(p, mctx, classfile.Instruction{Op: opcodes.Return})
	if len(out) != 1 || out[0].Op != opcodes.Return {
		t.Fatalf("got %+v, want return passed through unchanged", out)
	}
}

func TestDisallowNonDeterministicMethods_ForbidRaisesDiagnosticAndThrows(t *testing.T) {
	table := policy.New()
	table.ForbidMember("java/lang/System", "currentTimeMillis", "()J")
	cfg := Config{
		Policy:               table,
		RuleViolationHelper:  classfile.MemberRef{Owner: "sandbox/java/rt/RuleViolationError", Name: "forCall", Descriptor: "()Lsandbox/java/rt/RuleViolationError;"},
	}
	p := NewPipeline(cfg)

	ctx := analysis.New("com/acme/Widget", sberrors.Error)
	mctx := &MethodContext{Class: "com/acme/Widget", Method: "now", Descriptor: "()J", Analysis: ctx, Config: cfg}

	ref := classfile.MemberRef{Owner: "java/lang/System", Name: "currentTimeMillis", Descriptor: "()J", Kind: classfile.InvokeStaticKind}
	out := runOne(p, mctx, classfile.Instruction{Op: opcodes.InvokeStatic, Ref: &ref})

	if len(out) != 2 || out[0].Op != opcodes.InvokeStatic || out[1].Op != opcodes.Athrow {
		t.Fatalf("got %+v, want invokestatic helper call then athrow", out)
	}
	if out[0].Ref.Name != "forCall" {
		t.Errorf("helper call = %+v, want the RuleViolationHelper", out[0])
	}
	if len(ctx.Diagnostics()) != 1 {
		t.Fatalf("expected one diagnostic to be reported, got %d", len(ctx.Diagnostics()))
	}
}

func TestDisallowNonDeterministicMethods_StubEmptyEnumerationCallsHelper(t *testing.T) {
	table := policy.New()
	table.StubMember("java/util/Vector", "elements", "()Ljava/util/Enumeration;", policy.StubEmptyEnumeration)
	cfg := Config{
		Policy:                 table,
		EmptyEnumerationHelper: classfile.MemberRef{Owner: "sandbox/java/rt/EmptyEnumeration", Name: "instance", Descriptor: "()Ljava/util/Enumeration;"},
	}
	p := NewPipeline(cfg)
	mctx := &MethodContext{Config: cfg}

	ref := classfile.MemberRef{Owner: "java/util/Vector", Name: "elements", Descriptor: "()Ljava/util/Enumeration;", Kind: classfile.InvokeVirtualKind}
	out := runOne(p, mctx, classfile.Instruction{Op: opcodes.InvokeVirtual, Ref: &ref})

	if len(out) != 1 || out[0].Op != opcodes.InvokeStatic {
		t.Fatalf("got %+v, want a single invokestatic helper call leaving the enumeration on the stack", out)
	}
	if out[0].Ref.Name != "instance" {
		t.Errorf("helper call = %+v, want the EmptyEnumerationHelper", out[0])
	}
}

func TestDisallowNonDeterministicMethods_StubReplacesCall(t *testing.T) {
	table := policy.New()
	table.StubMember("java/lang/Runtime", "gc", "()V", policy.StubVoid)
	cfg := Config{Policy: table}
	p := NewPipeline(cfg)
	mctx := &MethodContext{Config: cfg}

	ref := classfile.MemberRef{Owner: "java/lang/Runtime", Name: "gc", Descriptor: "()V", Kind: classfile.InvokeVirtualKind}
	out := runOne(p, mctx, classfile.Instruction{Op: opcodes.InvokeVirtual, Ref: &ref})
	if len(out) != 0 {
		t.Fatalf("got %+v, want StubVoid to elide the call entirely", out)
	}
}

func TestDisallowNonDeterministicMethods_ThunkRetargetsToStaticHelper(t *testing.T) {
	table := policy.New()
	table.ThunkMember("java/lang/System", "nanoTime", "()J", policy.ThunkTarget{
		Owner: "sandbox/java/rt/Clock", Name: "nanoTime", Descriptor: "()J",
	})
	cfg := Config{Policy: table}
	p := NewPipeline(cfg)
	mctx := &MethodContext{Config: cfg}

	ref := classfile.MemberRef{Owner: "java/lang/System", Name: "nanoTime", Descriptor: "()J", Kind: classfile.InvokeStaticKind}
	out := runOne(p, mctx, classfile.Instruction{Op: opcodes.InvokeStatic, Ref: &ref})
	if len(out) != 1 || out[0].Op != opcodes.InvokeStatic {
		t.Fatalf("got %+v, want a single retargeted static call", out)
	}
	if out[0].Ref.Owner != "sandbox/java/rt/Clock" {
		t.Errorf("Ref.Owner = %q, want sandbox/java/rt/Clock", out[0].Ref.Owner)
	}
}

func TestDisallowNonDeterministicMethods_AllowFromExemptsCallingClass(t *testing.T) {
	table := policy.New()
	table.ForbidMember("java/lang/ClassLoader", "defineClass", "([BII)Ljava/lang/Class;", "com/acme/Trusted")
	cfg := Config{Policy: table}
	p := NewPipeline(cfg)
	mctx := &MethodContext{Class: "com/acme/Trusted", Config: cfg}

	ref := classfile.MemberRef{Owner: "java/lang/ClassLoader", Name: "defineClass", Descriptor: "([BII)Ljava/lang/Class;", Kind: classfile.InvokeVirtualKind}
	out := runOne(p, mctx, classfile.Instruction{Op: opcodes.InvokeVirtual, Ref: &ref})
	if len(out) != 1 || out[0].Op != opcodes.InvokeVirtual {
		t.Fatalf("got %+v, want the allowed call passed through unchanged", out)
	}
}

func TestArgumentUnwrapperAndReturnTypeWrapper_WrapBoundaryCall(t *testing.T) {
	cfg := Config{
		UnwrapArgument: classfile.MemberRef{Owner: "sandbox/java/rt/Boundary", Name: "unwrap", Descriptor: "(Ljava/lang/Object;)Ljava/lang/Object;"},
		WrapReturn:     classfile.MemberRef{Owner: "sandbox/java/rt/Boundary", Name: "wrap", Descriptor: "(Z)Z"},
	}
	p := NewPipeline(cfg)
	mctx := &MethodContext{Config: cfg}

	ref := classfile.MemberRef{Owner: "com/acme/Widget", Name: "equals", Descriptor: "(Ljava/lang/Object;)Z", Kind: classfile.InvokeVirtualKind}
	out := runOne(p, mctx, classfile.Instruction{Op: opcodes.InvokeVirtual, Ref: &ref})

	if len(out) != 3 {
		t.Fatalf("got %d instructions, want prefix+call+suffix", len(out))
	}
	if out[0].Ref.Name != "unwrap" {
		t.Errorf("prefix = %+v, want the unwrap helper", out[0])
	}
	if out[1].Op != opcodes.InvokeVirtual {
		t.Errorf("middle instruction = %+v, want the original call", out[1])
	}
	if out[2].Ref.Name != "wrap" {
		t.Errorf("suffix = %+v, want the wrap helper", out[2])
	}
}

func TestRewriteObjectMethods_RetargetsToStringSpecially(t *testing.T) {
	cfg := Config{ToDJVMString: classfile.MemberRef{Owner: "sandbox/java/lang/Object", Name: "toDJVMString", Descriptor: "()Lsandbox/java/lang/String;"}}
	p := NewPipeline(cfg)
	mctx := &MethodContext{Config: cfg}

	ref := classfile.MemberRef{Owner: "java/lang/Object", Name: "toString", Descriptor: "()Ljava/lang/String;", Kind: classfile.InvokeVirtualKind}
	out := runOne(p, mctx, classfile.Instruction{Op: opcodes.InvokeVirtual, Ref: &ref})
	if len(out) != 1 || out[0].Ref.Name != "toDJVMString" {
		t.Fatalf("got %+v, want a single toDJVMString call", out)
	}
}

func TestRewriteClassLoaderMethods_RetargetsMappedMember(t *testing.T) {
	cfg := Config{ClassLoaderMethods: map[string]classfile.MemberRef{
		memberKey("loadClass", "(Ljava/lang/String;)Ljava/lang/Class;"): {
			Owner: "sandbox/java/rt/ClassLoaders", Name: "loadClass", Descriptor: "(Lsandbox/java/rt/ClassLoader;Ljava/lang/String;)Ljava/lang/Class;",
		},
	}}
	p := NewPipeline(cfg)
	mctx := &MethodContext{Config: cfg}

	ref := classfile.MemberRef{Owner: "java/lang/ClassLoader", Name: "loadClass", Descriptor: "(Ljava/lang/String;)Ljava/lang/Class;", Kind: classfile.InvokeVirtualKind}
	out := runOne(p, mctx, classfile.Instruction{Op: opcodes.InvokeVirtual, Ref: &ref})
	if len(out) != 1 || out[0].Ref.Owner != "sandbox/java/rt/ClassLoaders" {
		t.Fatalf("got %+v, want the retargeted static helper", out)
	}
}
