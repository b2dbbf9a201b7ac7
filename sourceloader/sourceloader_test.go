package sourceloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dsandbox/rewriter/classfile"
	"github.com/dsandbox/rewriter/sberrors"
)

func writeClass(t *testing.T, dir, name, super string, interfaces []string) {
	t.Helper()
	data, err := classfile.Encode(classfile.ClassRecord{
		SandboxName: name,
		Super:       super,
		Interfaces:  interfaces,
	})
	if err != nil {
		t.Fatalf("Encode %s: %v", name, err)
	}
	full := filepath.Join(dir, name+".class")
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestLoadClassBytes_ParentConsultedBeforeLocal(t *testing.T) {
	parentDir := t.TempDir()
	childDir := t.TempDir()
	writeClass(t, parentDir, "com/acme/Widget", "java/lang/Object", nil)
	writeClass(t, childDir, "com/acme/Widget", "com/acme/ShadowedBySomeoneElse", nil)

	parent, err := New(nil, []string{parentDir})
	if err != nil {
		t.Fatalf("New(parent): %v", err)
	}
	defer parent.Close()
	child, err := New(parent, []string{childDir})
	if err != nil {
		t.Fatalf("New(child): %v", err)
	}
	defer child.Close()

	data, err := child.LoadClassBytes("com/acme/Widget")
	if err != nil {
		t.Fatalf("LoadClassBytes: %v", err)
	}
	rec, err := classfile.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if rec.Super != "java/lang/Object" {
		t.Errorf("got the child's own archive's copy, want the parent's: Super = %q", rec.Super)
	}
}

func TestLoadClassBytes_MissingClassIsClassNotFound(t *testing.T) {
	dir := t.TempDir()
	l, err := New(nil, []string{dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	_, err = l.LoadClassBytes("com/acme/Missing")
	if !sberrors.IsClassNotFound(err) {
		t.Errorf("expected a ClassNotFoundError, got %v", err)
	}
}

func TestIsThrowable_TrueAcrossAncestorChain(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "com/acme/GrandchildException", "com/acme/ChildException", nil)
	writeClass(t, dir, "com/acme/ChildException", "com/acme/RootException", nil)
	writeClass(t, dir, "com/acme/RootException", "java/lang/Throwable", nil)

	l, err := New(nil, []string{dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	ok, err := l.IsThrowable("com/acme/GrandchildException")
	if err != nil {
		t.Fatalf("IsThrowable: %v", err)
	}
	if !ok {
		t.Error("expected the three-level chain to resolve to Throwable")
	}
}

func TestIsThrowable_FalseForOrdinaryClass(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "com/acme/Widget", "java/lang/Object", nil)

	l, err := New(nil, []string{dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	ok, err := l.IsThrowable("com/acme/Widget")
	if err != nil {
		t.Fatalf("IsThrowable: %v", err)
	}
	if ok {
		t.Error("an Object subclass should not be throwable")
	}
}

func TestIsAssignableFrom_ViaInterfaceChain(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "com/acme/Widget", "java/lang/Object", []string{"com/acme/Spinnable"})
	writeClass(t, dir, "com/acme/Spinnable", "java/lang/Object", []string{"com/acme/Nameable"})
	writeClass(t, dir, "com/acme/Nameable", "java/lang/Object", nil)

	l, err := New(nil, []string{dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	ok, err := l.IsAssignableFrom("com/acme/Nameable", "com/acme/Widget")
	if err != nil {
		t.Fatalf("IsAssignableFrom: %v", err)
	}
	if !ok {
		t.Error("expected Widget to be assignable to Nameable via its transitive interface chain")
	}
}

func TestIsAssignableFrom_ObjectIsAlwaysAssignable(t *testing.T) {
	l, err := New(nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	ok, err := l.IsAssignableFrom("java/lang/Object", "anything/At/All")
	if err != nil {
		t.Fatalf("IsAssignableFrom: %v", err)
	}
	if !ok {
		t.Error("every type should be assignable to Object")
	}
}
