package policy

import (
	"testing"

	"github.com/dsandbox/rewriter/classfile"
)

func member(owner, name, desc string) classfile.MemberRef {
	return classfile.MemberRef{Owner: owner, Name: name, Descriptor: desc, Kind: classfile.InvokeVirtualKind}
}

func TestTable_AllowForbidStubThunk(t *testing.T) {
	table := New()
	table.AllowMember("com/acme/Widget", "spin", "()V")
	table.ForbidMember("com/acme/Widget", "explode", "()V")
	table.StubMember("com/acme/Widget", "getParent", "()Lcom/acme/Widget;", StubNull)
	table.ThunkMember("com/acme/Widget", "now", "()J", ThunkTarget{Owner: "sandbox/java/rt/Clock", Name: "now", Descriptor: "()J"})

	cases := []struct {
		name string
		kind ActionKind
	}{
		{"spin", Allow},
		{"explode", Forbid},
		{"getParent", Stub},
		{"now", Thunk},
	}
	for _, c := range cases {
		var desc string
		switch c.name {
		case "spin", "explode":
			desc = "()V"
		case "getParent":
			desc = "()Lcom/acme/Widget;"
		case "now":
			desc = "()J"
		}
		a, ok := table.Lookup(member("com/acme/Widget", c.name, desc))
		if !ok {
			t.Fatalf("Lookup(%s): not found", c.name)
		}
		if a.Kind != c.kind {
			t.Errorf("Lookup(%s).Kind = %v, want %v", c.name, a.Kind, c.kind)
		}
	}
}

func TestTable_ForbidOwnerPrefix(t *testing.T) {
	table := New()
	table.AllowMember("java/lang/Class", "getName", "()Ljava/lang/String;")
	table.ForbidOwnerPrefix("java/lang/Class")

	if a, ok := table.Lookup(member("java/lang/Class", "getName", "()Ljava/lang/String;")); !ok || a.Kind != Allow {
		t.Errorf("explicit entry should win over the prefix catch-all")
	}
	a, ok := table.Lookup(member("java/lang/Class", "getProtectionDomain", "()Ljava/security/ProtectionDomain;"))
	if !ok {
		t.Fatal("expected prefix catch-all to produce a Forbid entry")
	}
	if a.Kind != Forbid {
		t.Errorf("Lookup(unlisted Class member).Kind = %v, want Forbid", a.Kind)
	}
}

func TestTable_LookupMiss(t *testing.T) {
	table := New()
	if _, ok := table.Lookup(member("com/acme/Widget", "spin", "()V")); ok {
		t.Error("expected a miss on an empty table")
	}
}

func TestNewCanonicalTable(t *testing.T) {
	table := NewCanonicalTable([]string{"sandbox/java/rt/Reflection"})

	a, ok := table.Lookup(member("java/lang/ClassLoader", "loadClass", "(Ljava/lang/String;)Ljava/lang/Class;"))
	if !ok || a.Kind != Thunk {
		t.Errorf("ClassLoader.loadClass(String) should be a Thunk entry, got %+v ok=%v", a, ok)
	}

	a, ok = table.Lookup(member("java/lang/ClassLoader", "defineClass", "(Ljava/lang/String;[BII)Ljava/lang/Class;"))
	if !ok || a.Kind != Forbid {
		t.Errorf("ClassLoader.defineClass should be Forbid, got %+v ok=%v", a, ok)
	}

	a, ok = table.Lookup(member("java/lang/reflect/Constructor", "newInstance", "([Ljava/lang/Object;)Ljava/lang/Object;"))
	if !ok || a.Kind != Forbid {
		t.Fatalf("Constructor.newInstance should be Forbid by default, got %+v ok=%v", a, ok)
	}
	if len(a.AllowFrom) == 0 {
		t.Error("expected Constructor.newInstance's Forbid entry to carry an AllowFrom exception list")
	}
}
