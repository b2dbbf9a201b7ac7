package resolver

import "testing"

type fakeWhitelist map[string]bool

func (w fakeWhitelist) Contains(name string) bool { return w[name] }

func TestResolveType_PinnedAndWhitelisted(t *testing.T) {
	r := New(fakeWhitelist{"com/acme/Utils": true}, DefaultPins(), nil)

	cases := map[string]string{
		"java/lang/Object":  "java/lang/Object",
		"java/lang/Integer": "java/lang/Integer",
		"com/acme/Utils":    "com/acme/Utils",
		"com/acme/Widget":   "sandbox/com/acme/Widget",
	}
	for in, want := range cases {
		if got := r.ResolveType(in); got != want {
			t.Errorf("ResolveType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveType_AlreadySandboxed(t *testing.T) {
	r := New(nil, DefaultPins(), nil)
	name := "sandbox/com/acme/Widget"
	if got := r.ResolveType(name); got != name {
		t.Errorf("ResolveType(%q) = %q, want unchanged", name, got)
	}
}

func TestResolveType_ArrayDescriptor(t *testing.T) {
	r := New(nil, DefaultPins(), nil)
	if got, want := r.ResolveType("[Lcom/acme/Widget;"), "[Lsandbox/com/acme/Widget;"; got != want {
		t.Errorf("ResolveType(array) = %q, want %q", got, want)
	}
	if got, want := r.ResolveType("[I"), "[I"; got != want {
		t.Errorf("ResolveType(primitive array) = %q, want %q", got, want)
	}
}

func TestResolveDescriptor(t *testing.T) {
	r := New(nil, DefaultPins(), nil)
	got := r.ResolveDescriptor("(Lcom/acme/Widget;I)Lcom/acme/Gadget;")
	want := "(Lsandbox/com/acme/Widget;I)Lsandbox/com/acme/Gadget;"
	if got != want {
		t.Errorf("ResolveDescriptor = %q, want %q", got, want)
	}
}

func TestReverse(t *testing.T) {
	r := New(nil, DefaultPins(), nil)
	if got := r.Reverse("sandbox/com/acme/Widget"); got != "com/acme/Widget" {
		t.Errorf("Reverse(sandboxed) = %q, want host name", got)
	}
	if got := r.Reverse("java/lang/Object"); got != "java/lang/Object" {
		t.Errorf("Reverse(pinned) = %q, want identity", got)
	}
}

func TestIsPinned(t *testing.T) {
	r := New(nil, DefaultPins(), []string{"sandbox/java/rt/ClassLoaders"})
	if !r.IsPinned("java/lang/String") {
		t.Error("expected java/lang/String to be pinned")
	}
	if !r.IsPinned("sandbox/java/rt/ClassLoaders") {
		t.Error("expected template class to be pinned")
	}
	if r.IsPinned("com/acme/Widget") {
		t.Error("did not expect an ordinary class to be pinned")
	}
}
