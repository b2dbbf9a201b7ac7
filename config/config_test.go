package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dsandbox/rewriter/classfile"
	"github.com/dsandbox/rewriter/resolver"
)

func writeFixtureClass(t *testing.T, dir, name string) {
	t.Helper()
	data, err := classfile.Encode(classfile.ClassRecord{
		SandboxName: name,
		Super:       "java/lang/Object",
	})
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

func minimalFile(sourceDir string) *File {
	return &File{
		SourcePaths: []string{sourceDir},
		MinSeverity: "error",
	}
}

func TestBuild_MinimalConfigurationLoadsAClass(t *testing.T) {
	dir := t.TempDir()
	writeFixtureClass(t, dir, "com/acme/Widget")

	sb, err := Build(minimalFile(dir))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if sb.RunID.String() == "" {
		t.Error("expected a non-empty RunID")
	}

	defined, err := sb.Loader.LoadSandboxClass(context.Background(), resolver.SandboxPrefix+"com/acme/Widget")
	if err != nil {
		t.Fatalf("LoadSandboxClass: %v", err)
	}
	if len(defined.Bytes) == 0 {
		t.Error("expected rewritten bytes for a freshly built sandbox")
	}
}

func TestBuild_UnknownExactMathOpcodeErrors(t *testing.T) {
	dir := t.TempDir()
	f := minimalFile(dir)
	f.Helpers.ExactMath = map[string]memberRef{
		"not_a_real_opcode": {Owner: "sandbox/java/rt/ExactMath", Name: "addExact", Descriptor: "(II)I"},
	}
	if _, err := Build(f); err == nil {
		t.Error("expected an error for an unrecognized opcode mnemonic")
	}
}

func TestBuild_WithParentNestsLoaderAndCache(t *testing.T) {
	dir := t.TempDir()
	writeFixtureClass(t, dir, "com/acme/Widget")

	root, err := Build(minimalFile(dir))
	if err != nil {
		t.Fatalf("Build(root): %v", err)
	}
	child, err := Build(minimalFile(dir), WithParent(root))
	if err != nil {
		t.Fatalf("Build(child): %v", err)
	}
	if child.Loader.GetParent() != root.Loader {
		t.Error("child sandbox's loader should chain to the parent's loader")
	}

	ctx := context.Background()
	name := resolver.SandboxPrefix + "com/acme/Gadget"
	root.Cache.PutIfAbsent(ctx, name, []byte{1}, nil)
	if _, ok := child.Cache.Get(ctx, name); !ok {
		t.Error("child sandbox's cache should see an entry in the parent's cache")
	}
}
