package policy

// runtimeHelper builds a ThunkTarget pointing at a static helper in the
// deterministic runtime's support namespace. The runtime itself is a
// sibling artifact (spec.md 1's Non-goals); this rewriter only needs to
// know the fully qualified name of each helper it thunks to.
func runtimeHelper(name, desc string) ThunkTarget {
	return ThunkTarget{Owner: "sandbox/java/rt/ClassLoaders", Name: name, Descriptor: desc}
}

// NewCanonicalTable builds the policy table spec.md 4.2 enumerates
// verbatim: every ClassLoader/Class/Object/reflection entry and action
// listed in the table. Deterministic-runtime internals that are allowed to
// call reflect.Constructor.newInstance are passed in by the caller (they
// come from config.File.TrustedInternals) because the fixed allow-list
// is a deployment detail, not a rewriter invariant.
func NewCanonicalTable(trustedReflectiveCallers []string) *Table {
	t := New()

	// --- java/lang/ClassLoader ---
	t.ThunkMember("java/lang/ClassLoader", "<init>", "()V",
		runtimeHelper("initDefault", "(Ljava/lang/ClassLoader;)Ljava/lang/ClassLoader;"))
	t.AllowMember("java/lang/ClassLoader", "<init>", "(Ljava/lang/ClassLoader;)V")
	// Any other <init> overload (e.g. ClassLoader(String, ClassLoader)) is forbidden.
	t.ForbidMember("java/lang/ClassLoader", "<init>", "(Ljava/lang/String;Ljava/lang/ClassLoader;)V")

	t.ThunkMember("java/lang/ClassLoader", "loadClass", "(Ljava/lang/String;)Ljava/lang/Class;",
		runtimeHelper("loadClass", "(Ljava/lang/ClassLoader;Ljava/lang/String;)Ljava/lang/Class;"))
	t.ForbidMember("java/lang/ClassLoader", "loadClass", "(Ljava/lang/String;Z)Ljava/lang/Class;")
	t.ForbidMember("java/lang/ClassLoader", "defineClass", "(Ljava/lang/String;[BII)Ljava/lang/Class;")
	t.ForbidMember("java/lang/ClassLoader", "findClass", "(Ljava/lang/String;)Ljava/lang/Class;")

	t.StubMember("java/lang/ClassLoader", "getParent", "()Ljava/lang/ClassLoader;", StubNull)
	t.StubMember("java/lang/ClassLoader", "getResources", "(Ljava/lang/String;)Ljava/util/Enumeration;", StubEmptyEnumeration)
	t.StubMember("java/lang/ClassLoader", "getResource", "(Ljava/lang/String;)Ljava/net/URL;", StubNull)
	t.StubMember("java/lang/ClassLoader", "getResourceAsStream", "(Ljava/lang/String;)Ljava/io/InputStream;", StubNull)

	t.ThunkMember("java/lang/ClassLoader", "getSystemClassLoader", "()Ljava/lang/ClassLoader;",
		runtimeHelper("getSystemClassLoader", "()Ljava/lang/ClassLoader;"))
	t.StubMember("java/lang/ClassLoader", "getSystemResources", "(Ljava/lang/String;)Ljava/util/Enumeration;", StubEmptyEnumeration)
	t.StubMember("java/lang/ClassLoader", "getSystemResource", "(Ljava/lang/String;)Ljava/net/URL;", StubNull)
	t.StubMember("java/lang/ClassLoader", "getSystemResourceAsStream", "(Ljava/lang/String;)Ljava/io/InputStream;", StubNull)

	// --- java/lang/Class ---
	t.ForbidMember("java/lang/Class", "getPackage", "()Ljava/lang/Package;")
	t.ForbidMember("java/lang/Class", "getProtectionDomain", "()Ljava/security/ProtectionDomain;")
	t.ForbidMember("java/lang/Class", "getDeclaredClasses", "()[Ljava/lang/Class;")
	t.AllowMember("java/lang/Class", "getConstructor", "([Ljava/lang/Class;)Ljava/lang/reflect/Constructor;")
	t.AllowMember("java/lang/Class", "getConstructors", "()[Ljava/lang/reflect/Constructor;")
	t.AllowMember("java/lang/Class", "getMethod", "(Ljava/lang/String;[Ljava/lang/Class;)Ljava/lang/reflect/Method;")
	t.AllowMember("java/lang/Class", "getMethods", "()[Ljava/lang/reflect/Method;")
	t.AllowMember("java/lang/Class", "getEnclosingConstructor", "()Ljava/lang/reflect/Constructor;")
	t.AllowMember("java/lang/Class", "getEnclosingMethod", "()Ljava/lang/reflect/Method;")
	// Every other Class.* member returning a reflection type is forbidden
	// by the catch-all prefix rule below; the explicit Allow entries above
	// take precedence because direct entries are checked first.
	t.ForbidOwnerPrefix("java/lang/Class")

	// --- java/lang/reflect/Constructor ---
	t.ForbidMember("java/lang/reflect/Constructor", "newInstance", "([Ljava/lang/Object;)Ljava/lang/Object;", trustedReflectiveCallers...)

	// --- java/lang/Object monitor methods ---
	t.ForbidMember("java/lang/Object", "wait", "()V")
	t.ForbidMember("java/lang/Object", "wait", "(J)V")
	t.ForbidMember("java/lang/Object", "wait", "(JI)V")
	t.ForbidMember("java/lang/Object", "notify", "()V")
	t.ForbidMember("java/lang/Object", "notifyAll", "()V")

	// --- selected sun/security/... constructors (allow-list) ---
	t.AllowMember("sun/security/util/SecurityConstants", "<clinit>", "()V")

	return t
}
