package sandboxloader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dsandbox/rewriter/cache"
	"github.com/dsandbox/rewriter/classfile"
	"github.com/dsandbox/rewriter/emit"
	"github.com/dsandbox/rewriter/opcodes"
	"github.com/dsandbox/rewriter/policy"
	"github.com/dsandbox/rewriter/resolver"
	"github.com/dsandbox/rewriter/rewrite"
	"github.com/dsandbox/rewriter/sberrors"
	"github.com/dsandbox/rewriter/sourceloader"
)

// writeFixtureClass encodes a minimal "extends Object, one no-op method"
// class under name into dir, as dir/<name>.class would be laid out by
// sourceloader's directory archive.
func writeFixtureClass(t *testing.T, dir, name string) {
	t.Helper()
	rec := classfile.ClassRecord{
		SandboxName: name,
		Super:       "java/lang/Object",
		Access:      classfile.AccPublic,
		Methods: []classfile.Method{
			{
				Name:       "doIt",
				Descriptor: "()V",
				Access:     classfile.AccPublic,
				Code:       []classfile.Instruction{{Op: opcodes.Return}},
				MaxStack:   0,
				MaxLocals:  1,
			},
		},
	}
	data, err := classfile.Encode(rec)
	if err != nil {
		t.Fatalf("Encode fixture: %v", err)
	}
	full := filepath.Join(dir, name+".class")
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func buildTestLoader(t *testing.T) *Loader {
	t.Helper()
	dir := t.TempDir()
	writeFixtureClass(t, dir, "com/acme/Widget")

	source, err := sourceloader.New(nil, []string{dir})
	if err != nil {
		t.Fatalf("sourceloader.New: %v", err)
	}
	t.Cleanup(func() { source.Close() })

	r := resolver.New(nil, resolver.DefaultPins(), nil)
	emitCfg := emit.Config{Policy: policy.New()}
	driver := rewrite.New(r, emitCfg, nil)
	c := cache.New(nil, nil, nil)

	return New(nil, r, source, c, driver, nil, sberrors.Error)
}

func TestLoadSandboxClass_RewritesAndCaches(t *testing.T) {
	loader := buildTestLoader(t)
	ctx := context.Background()

	sandboxName := resolver.SandboxPrefix + "com/acme/Widget"
	defined, err := loader.LoadSandboxClass(ctx, sandboxName)
	if err != nil {
		t.Fatalf("LoadSandboxClass: %v", err)
	}
	if defined.SandboxName != sandboxName {
		t.Errorf("SandboxName = %q, want %q", defined.SandboxName, sandboxName)
	}
	if defined.HostName != "com/acme/Widget" {
		t.Errorf("HostName = %q, want com/acme/Widget", defined.HostName)
	}
	if len(defined.Bytes) == 0 {
		t.Error("expected non-empty rewritten bytes")
	}

	// Second load should come back from the classSlot/cache without error.
	again, err := loader.LoadSandboxClass(ctx, sandboxName)
	if err != nil {
		t.Fatalf("second LoadSandboxClass: %v", err)
	}
	if string(again.Bytes) != string(defined.Bytes) {
		t.Error("second load produced different bytes than the first")
	}
}

func TestLoadSandboxClass_PinnedPassthrough(t *testing.T) {
	loader := buildTestLoader(t)
	defined, err := loader.LoadSandboxClass(context.Background(), "java/lang/Object")
	if err != nil {
		t.Fatalf("LoadSandboxClass(pinned): %v", err)
	}
	if defined.SandboxName != "java/lang/Object" || defined.HostName != "java/lang/Object" {
		t.Errorf("pinned passthrough result = %+v", defined)
	}
	if len(defined.Bytes) != 0 {
		t.Error("pinned passthrough should carry no rewritten bytes")
	}
}

func TestLoadSandboxClass_UnknownNonSandboxNameIsRuleViolation(t *testing.T) {
	loader := buildTestLoader(t)
	_, err := loader.LoadSandboxClass(context.Background(), "com/acme/Widget")
	if err == nil {
		t.Fatal("expected an error for a non-sandbox, non-pinned name")
	}
	if !sberrors.IsRuleViolation(err) {
		t.Errorf("expected a RuleViolationError, got %v", err)
	}
}

func TestLoadSandboxClass_MissingClassPropagatesError(t *testing.T) {
	loader := buildTestLoader(t)
	_, err := loader.LoadSandboxClass(context.Background(), resolver.SandboxPrefix+"com/acme/Missing")
	if err == nil {
		t.Fatal("expected an error for a class absent from every source archive")
	}
}

func TestLoadSandboxClass_RecursiveSelfReferenceBreaksCycle(t *testing.T) {
	loader := buildTestLoader(t)
	name := resolver.SandboxPrefix + "com/acme/Widget"

	slot := newLoadingSlot()
	loader.mu.Lock()
	loader.classes[name] = slot
	loader.mu.Unlock()

	ctx := withLoading(context.Background(), name)
	defined, err := loader.LoadSandboxClass(ctx, name)
	if err != nil {
		t.Fatalf("expected the in-progress placeholder, got error: %v", err)
	}
	if defined.SandboxName != name || defined.Bytes != nil {
		t.Errorf("expected an empty in-progress placeholder, got %+v", defined)
	}
}

func TestGetParent(t *testing.T) {
	root := buildTestLoader(t)
	child := New(root, nil, nil, nil, nil, nil, sberrors.Error)
	if child.GetParent() != root {
		t.Error("GetParent() did not return the configured parent")
	}
	if root.GetParent() != nil {
		t.Error("root loader's GetParent() should be nil")
	}
}

func TestCheckSandboxArgument(t *testing.T) {
	err := CheckSandboxArgument("java/lang/Class", "java.lang.String")
	if err == nil {
		t.Fatal("expected java/lang/Class to be forbidden")
	}
	if err.Error() != "Cannot sandbox class java.lang.String" {
		t.Errorf("Error() = %q, want the canonical message with the represented class name", err.Error())
	}
	if err := CheckSandboxArgument("com/acme/Widget", ""); err != nil {
		t.Errorf("did not expect an ordinary type to be forbidden: %v", err)
	}
}
