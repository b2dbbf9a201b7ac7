// Package classfile is the rewriter's class-file model: decoding raw class
// bytes into an immutable in-memory record, and encoding a (possibly
// rewritten) record back into bytes. It corresponds to no single spec.md
// component; it is the shared substrate every component (resolver, policy,
// analysis, emitters, remapper, rewrite driver) reads and writes.
package classfile

import "strings"

// AccessFlags mirrors the access_flags bitmask shared by classes, fields,
// and methods in the class file format. Not every bit is meaningful for
// every kind of member; callers read only the bits relevant to their kind.
type AccessFlags uint16

const (
	AccPublic       AccessFlags = 0x0001
	AccPrivate      AccessFlags = 0x0002
	AccProtected    AccessFlags = 0x0004
	AccStatic       AccessFlags = 0x0008
	AccFinal        AccessFlags = 0x0010
	AccSuper        AccessFlags = 0x0020
	AccSynchronized AccessFlags = 0x0020
	AccVolatile     AccessFlags = 0x0040
	AccBridge       AccessFlags = 0x0040
	AccTransient    AccessFlags = 0x0080
	AccVarargs      AccessFlags = 0x0080
	AccNative       AccessFlags = 0x0100
	AccInterface    AccessFlags = 0x0200
	AccAbstract     AccessFlags = 0x0400
	AccStrict       AccessFlags = 0x0800
	AccSynthetic    AccessFlags = 0x1000
	AccAnnotation   AccessFlags = 0x2000
	AccEnum         AccessFlags = 0x4000
	AccModule       AccessFlags = 0x8000
)

func (f AccessFlags) Has(bit AccessFlags) bool { return f&bit != 0 }
func (f AccessFlags) Set(bit AccessFlags) AccessFlags { return f | bit }
func (f AccessFlags) Clear(bit AccessFlags) AccessFlags { return f &^ bit }

// InvokeKind distinguishes the five invoke-family opcodes (plus the four
// field-access opcodes, reusing the same member-reference shape) so emitters
// can pattern-match a Member Reference the way spec.md 4.2's policy table
// is keyed.
type InvokeKind int

const (
	InvokeVirtualKind InvokeKind = iota
	InvokeStaticKind
	InvokeSpecialKind
	InvokeInterfaceKind
	InvokeDynamicKind
	GetFieldKind
	PutFieldKind
	GetStaticKind
	PutStaticKind
)

func (k InvokeKind) String() string {
	switch k {
	case InvokeVirtualKind:
		return "virtual"
	case InvokeStaticKind:
		return "static"
	case InvokeSpecialKind:
		return "special"
	case InvokeInterfaceKind:
		return "interface"
	case InvokeDynamicKind:
		return "dynamic"
	case GetFieldKind:
		return "getfield"
	case PutFieldKind:
		return "putfield"
	case GetStaticKind:
		return "getstatic"
	case PutStaticKind:
		return "putstatic"
	default:
		return "unknown"
	}
}

// MemberRef is the (owner, name, descriptor) triple plus invocation kind
// that spec.md 4 calls a Member Reference. Emitters and the policy table
// pattern-match on these rather than on raw constant-pool indices.
type MemberRef struct {
	Owner      string // internal name, e.g. "java/lang/ClassLoader"
	Name       string
	Descriptor string
	Kind       InvokeKind
}

// Key renders the member reference in the canonical "Owner.Member(Desc)"
// shape used in rule-violation messages and as a policy-table lookup key.
func (m MemberRef) Key() string {
	return m.Owner + "." + m.Name + m.Descriptor
}

// ArgTypes extracts the human-readable argument type list from the
// descriptor, for rule-violation messages of the form
// "Disallowed reference to API; owner.member(arg types)".
func (m MemberRef) ArgTypes() string {
	args := ParseMethodDescriptorArgs(m.Descriptor)
	readable := make([]string, len(args))
	for i, a := range args {
		readable[i] = HumanReadableType(a)
	}
	return strings.Join(readable, ", ")
}

// ExceptionHandler is one entry of a method's exception table.
type ExceptionHandler struct {
	StartPC, EndPC, HandlerPC int
	CatchType                 string // "" means catch-all (finally)
}

// BootstrapMethod is one entry of the BootstrapMethods class attribute,
// used by invokedynamic call sites.
type BootstrapMethod struct {
	MethodHandle MethodHandleRef
	Arguments    []BootstrapArg
}

// MethodHandleRef names a method handle's reference kind and the member it
// points to, so the remapper can rewrite owners that were thunked.
type MethodHandleRef struct {
	RefKind int // 1..9, per the class file spec's REF_ constants
	Ref     MemberRef
}

// BootstrapArg is one loadable constant-pool argument to a bootstrap
// method: a class name, string, numeric constant, or nested method handle.
type BootstrapArg struct {
	ClassName    string
	StringValue  *string
	IntValue     *int32
	LongValue    *int64
	FloatValue   *float32
	DoubleValue  *float64
	MethodHandle *MethodHandleRef
}

// RawAttribute preserves an attribute this model does not interpret
// structurally (any class, field or method attribute decode has no typed
// field for). It is copied through byte-for-byte.
// Only attributes whose content is opaque bytes with no constant-pool
// index of its own belong here -- anything that embeds a class, UTF8, or
// NameAndType index (InnerClasses, Signature, EnclosingMethod, the
// RuntimeVisible* annotation attributes) must be decoded into a typed
// field instead, since Encode rebuilds the constant pool from scratch and
// a raw index copied byte-for-byte into the new pool points at whatever
// unrelated entry now happens to live at that offset.
type RawAttribute struct {
	Name    string
	Content []byte
}

// InnerClassEntry is one entry of the InnerClasses class attribute.
type InnerClassEntry struct {
	InnerClass string
	OuterClass string // "" when this entry has no enclosing class (e.g. a local class)
	InnerName  string // "" for an anonymous class
	Access     AccessFlags
}

// EnclosingMethodRef is the EnclosingMethod class attribute: present on a
// local or anonymous class, naming the class and -- when the class is
// declared directly inside a method rather than a field initializer or
// static/instance initializer block -- the enclosing method.
type EnclosingMethodRef struct {
	Class            string
	MethodName       string // "" when not enclosed directly by a method
	MethodDescriptor string
}

// Annotation is one parsed entry of a RuntimeVisibleAnnotations (or, one
// slice per parameter, RuntimeVisibleParameterAnnotations) attribute, per
// JVMS 4.7.16. Type is a field/class type descriptor, e.g. "Lcom/acme/Foo;" --
// the Remapper resolves it the same way it resolves a field descriptor.
type Annotation struct {
	Type  string
	Pairs []AnnotationPair
}

// AnnotationPair is one element_name_index/value pair of an Annotation.
type AnnotationPair struct {
	Name  string
	Value AnnotationValue
}

// AnnotationValue is a JVMS 4.7.16.1 element_value, tagged by its first
// byte; exactly one of the fields matching Tag is meaningful:
//
//	B C D F I J S Z s -> Const (the literal value, Const is a string for s)
//	e                 -> EnumType, EnumConst
//	c                 -> ClassInfo (a type descriptor, not a bare class name)
//	@                 -> Nested
//	[                 -> Array
type AnnotationValue struct {
	Tag byte

	Const     interface{}
	EnumType  string
	EnumConst string
	ClassInfo string
	Nested    *Annotation
	Array     []AnnotationValue
}
