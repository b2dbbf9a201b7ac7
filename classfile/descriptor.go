package classfile

import "strings"

// IsPrimitiveDescriptor reports whether tok is one of the single-letter
// primitive type descriptors (B C D F I J S Z V).
func IsPrimitiveDescriptor(tok string) bool {
	if len(tok) != 1 {
		return false
	}
	switch tok[0] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 'V':
		return true
	default:
		return false
	}
}

// ArrayDepth returns the number of leading '[' characters in a descriptor
// token, and the element type that follows them.
func ArrayDepth(tok string) (depth int, element string) {
	d := 0
	for d < len(tok) && tok[d] == '[' {
		d++
	}
	return d, tok[d:]
}

// StripReferenceMarkers turns "Ljava/lang/String;" into "java/lang/String".
// Non-reference tokens (primitives, already-bare internal names) are
// returned unchanged.
func StripReferenceMarkers(tok string) string {
	if len(tok) >= 2 && tok[0] == 'L' && strings.HasSuffix(tok, ";") {
		return tok[1 : len(tok)-1]
	}
	return tok
}

// WrapReference turns "java/lang/String" back into "Ljava/lang/String;".
func WrapReference(internalName string) string {
	return "L" + internalName + ";"
}

// ParseMethodDescriptorArgs splits a method descriptor "(I[Ljava/lang/String;)V"
// into its argument type tokens ("I", "[Ljava/lang/String;"), not including
// the return type.
func ParseMethodDescriptorArgs(desc string) []string {
	if len(desc) == 0 || desc[0] != '(' {
		return nil
	}
	i := 1
	var args []string
	for i < len(desc) && desc[i] != ')' {
		start := i
		for desc[i] == '[' {
			i++
		}
		switch desc[i] {
		case 'L':
			for desc[i] != ';' {
				i++
			}
			i++
		default:
			i++
		}
		args = append(args, desc[start:i])
	}
	return args
}

// ReturnType extracts the return-type token following the closing ')' of a
// method descriptor.
func ReturnType(desc string) string {
	idx := strings.IndexByte(desc, ')')
	if idx < 0 || idx+1 >= len(desc) {
		return "V"
	}
	return desc[idx+1:]
}

// WalkTypeTokens calls fn once for every type token (primitive or
// reference, at any array depth) appearing in a field or method descriptor,
// in left-to-right order. It is the primitive the Remapper and
// resolver.ResolveDescriptor build on to rewrite every embedded class name.
func WalkTypeTokens(desc string, fn func(tok string) string) string {
	if len(desc) == 0 {
		return desc
	}
	if desc[0] != '(' {
		return walkOneType(desc, fn)
	}
	var b strings.Builder
	b.WriteByte('(')
	i := 1
	for i < len(desc) && desc[i] != ')' {
		start := i
		for desc[i] == '[' {
			i++
		}
		if desc[i] == 'L' {
			for desc[i] != ';' {
				i++
			}
			i++
		} else {
			i++
		}
		b.WriteString(walkOneType(desc[start:i], fn))
	}
	b.WriteByte(')')
	b.WriteString(walkOneType(desc[i+1:], fn))
	return b.String()
}

func walkOneType(tok string, fn func(string) string) string {
	depth, elem := ArrayDepth(tok)
	rewritten := fn(elem)
	return strings.Repeat("[", depth) + rewritten
}

// HumanReadableType renders a descriptor token the way rule-violation
// messages print argument types, e.g. "[Ljava/lang/String;" -> "String[]",
// "I" -> "int".
func HumanReadableType(tok string) string {
	depth, elem := ArrayDepth(tok)
	var base string
	switch {
	case IsPrimitiveDescriptor(elem):
		base = primitiveNames[elem]
	case strings.HasPrefix(elem, "L"):
		internal := StripReferenceMarkers(elem)
		base = internal[strings.LastIndex(internal, "/")+1:]
	default:
		base = elem
	}
	return base + strings.Repeat("[]", depth)
}

var primitiveNames = map[string]string{
	"B": "byte", "C": "char", "D": "double", "F": "float",
	"I": "int", "J": "long", "S": "short", "Z": "boolean", "V": "void",
}
