package classfile

// ClassRecord is the immutable, per-class analysis record spec.md 3
// describes: sandbox name, host name, access flags, superclass, interfaces,
// source file, and the declared members. Definition Providers never mutate
// a ClassRecord in place; they return a new value built from a copy.
type ClassRecord struct {
	HostName    string // original class name, e.g. "com/example/Foo"
	SandboxName string // resolved name the class will be defined under
	Version     ClassVersion
	Access      AccessFlags
	// Super and Interfaces hold host-namespace names until the Remapper's
	// final pass resolves every name in the class; a Definition Provider
	// (AlwaysInheritFromSandboxedObject) may set Super directly to an
	// already sandbox-prefixed name, which the resolver's identity rule
	// for sandbox-prefixed input leaves untouched on that final pass.
	Super      string
	Interfaces []string
	SourceFile  string
	// Signature is the class's generic signature (the Signature attribute),
	// empty when the class declares no type parameters/bounds.
	Signature string
	// InnerClasses and EnclosingMethod mirror the like-named class
	// attributes; both embed constant-pool class/UTF8 indices, so they are
	// decoded into typed fields rather than carried as RawAttribute (see
	// RawAttribute's doc comment).
	InnerClasses    []InnerClassEntry
	EnclosingMethod *EnclosingMethodRef
	Fields          []Field
	Methods         []Method
	Bootstraps      []BootstrapMethod
	Annotations     []Annotation // RuntimeVisibleAnnotations, decoded per spec.md's visibleAnnotations set
	OtherAttrs      []RawAttribute
}

// ClassVersion is the major/minor version pair a class file declares; the
// rewriter enforces a ceiling on it (a rule, not a hard limit baked into
// the model).
type ClassVersion struct {
	Major, Minor uint16
}

// Clone returns a deep-enough copy of the record for a Definition Provider
// to mutate the copy and return it, leaving the original untouched. Slices
// are copied at the top level, and each Method through Method.Clone.
// Slices nested further down (a Field's Annotations and Attrs, an
// Annotation's element values, a BootstrapMethod's arguments, the inner
// slices of ParameterAnnotations) still share their backing arrays with
// the original, so writing into them changes the original as well.
func (c ClassRecord) Clone() ClassRecord {
	clone := c
	clone.Interfaces = append([]string(nil), c.Interfaces...)
	clone.Fields = append([]Field(nil), c.Fields...)
	clone.Methods = make([]Method, len(c.Methods))
	for i, m := range c.Methods {
		clone.Methods[i] = m.Clone()
	}
	clone.Bootstraps = append([]BootstrapMethod(nil), c.Bootstraps...)
	clone.Annotations = append([]Annotation(nil), c.Annotations...)
	clone.OtherAttrs = append([]RawAttribute(nil), c.OtherAttrs...)
	clone.InnerClasses = append([]InnerClassEntry(nil), c.InnerClasses...)
	return clone
}

// FindMethod returns a pointer to the method matching name+descriptor, or
// nil. The pointer refers into c.Methods; callers that want to replace a
// method should build a new slice rather than mutate through the pointer,
// to preserve the "definition providers return new records" invariant.
func (c *ClassRecord) FindMethod(name, descriptor string) *Method {
	for i := range c.Methods {
		if c.Methods[i].Name == name && c.Methods[i].Descriptor == descriptor {
			return &c.Methods[i]
		}
	}
	return nil
}

// WithMethod returns a copy of c with the method at the same (name,
// descriptor) position replaced by updated. If no such method exists,
// updated is appended.
func (c ClassRecord) WithMethod(updated Method) ClassRecord {
	next := c.Clone()
	for i := range next.Methods {
		if next.Methods[i].Name == updated.Name && next.Methods[i].Descriptor == updated.Descriptor {
			next.Methods[i] = updated
			return next
		}
	}
	next.Methods = append(next.Methods, updated)
	return next
}

// Field is one field declaration.
type Field struct {
	Name       string
	Descriptor string
	Access     AccessFlags
	ConstValue interface{}  // nil unless a ConstantValue attribute was present
	Signature  string       // generic signature, "" if none
	Annotations []Annotation
	Attrs      []RawAttribute
}

// Method is one method or constructor declaration.
type Method struct {
	Name       string
	Descriptor string
	Access     AccessFlags
	Code       []Instruction    // nil for abstract/native methods
	MaxStack   int
	MaxLocals  int
	Exceptions []ExceptionHandler
	Throws     []string // declared checked exceptions (the Exceptions attribute)
	Signature  string   // generic signature, "" if none
	Annotations          []Annotation
	ParameterAnnotations [][]Annotation // one slice per formal parameter, nil if none
	Attrs      []RawAttribute
}

func (m Method) Clone() Method {
	clone := m
	clone.Code = append([]Instruction(nil), m.Code...)
	clone.Exceptions = append([]ExceptionHandler(nil), m.Exceptions...)
	clone.Throws = append([]string(nil), m.Throws...)
	clone.Annotations = append([]Annotation(nil), m.Annotations...)
	clone.ParameterAnnotations = append([][]Annotation(nil), m.ParameterAnnotations...)
	clone.Attrs = append([]RawAttribute(nil), m.Attrs...)
	return clone
}

// IsAbstractOrNative reports whether the method has no Code attribute by
// construction (its Access flags forbid one).
func (m Method) IsAbstractOrNative() bool {
	return m.Access.Has(AccAbstract) || m.Access.Has(AccNative)
}
