package classfile

import "github.com/dsandbox/rewriter/opcodes"

// Instruction is one decoded bytecode instruction, expressed as a value
// rather than raw bytes, per spec.md 3's "instruction sequence as a value
// list". Emitters and Definition Providers pattern-match on Op and the
// resolved Ref/ClassRef/StringConst fields instead of constant-pool
// indices; the Rewrite Driver re-resolves these against a fresh constant
// pool only at final emission.
type Instruction struct {
	PC       int // original byte offset, preserved for exception-table/line-table fixups
	Op       opcodes.Op
	Operands []int32 // raw immediate operands not otherwise modeled below

	// HandlerEntry marks the first instruction at an exception handler's
	// HandlerPC, where the JVM pushes the caught throwable as the sole
	// operand stack value. HandleExceptionUnwrapper looks for this marker
	// rather than re-deriving it from the exception table at emit time.
	HandlerEntry bool

	// Exactly one of the following is populated, depending on Op:
	Ref         *MemberRef // invoke*/getfield/putfield/getstatic/putstatic
	ClassRef    *string    // new/checkcast/instanceof/anewarray/multianewarray
	StringConst *string    // ldc/ldc_w of a String constant
	IntConst    *int32     // ldc/ldc_w of an int/float constant (bit pattern)
	LongConst   *int64     // ldc2_w of a long/double constant (bit pattern)
	InvokeDyn   *InvokeDynamicSite
}

// InvokeDynamicSite is the operand of an invokedynamic instruction: the
// bootstrap method table index it refers to, plus the call site's own
// name-and-type (the Name and Descriptor fields; there is no owner field
// since invokedynamic has no receiver class).
type InvokeDynamicSite struct {
	BootstrapIndex int
	Name           string
	Descriptor     string
}

// Sequence is a builder used by emitters to assemble replacement bytecode
// for a single original instruction: zero or more prefix instructions, the
// instruction itself (possibly substituted), and zero or more suffix
// instructions. An emitter that calls PreventDefault supplies Replacement
// instead of letting the walker copy Original through.
type Sequence struct {
	Prefix      []Instruction
	Replacement []Instruction // nil means "pass Original through unchanged"
	Suffix      []Instruction
	Prevented   bool
}

// PreventDefault marks that this emitter has fully decided the outcome for
// this instruction; no later emitter in priority order will be consulted.
func (s *Sequence) PreventDefault(replacement ...Instruction) {
	s.Prevented = true
	s.Replacement = replacement
}

// Flatten returns the final instruction list for this emitter's decision,
// given the original instruction the walker offered it.
func (s Sequence) Flatten(original Instruction) []Instruction {
	var out []Instruction
	out = append(out, s.Prefix...)
	if s.Prevented {
		out = append(out, s.Replacement...)
	} else {
		out = append(out, original)
	}
	out = append(out, s.Suffix...)
	return out
}

// IsMonitorInstruction reports whether op is monitorenter or monitorexit,
// which IgnoreSynchronizedBlocks elides entirely.
func IsMonitorInstruction(op opcodes.Op) bool {
	return op == opcodes.MonitorEnter || op == opcodes.MonitorExit
}

// IsOverflowingArithmetic reports whether op is one of the integer
// arithmetic opcodes that silently wrap on overflow in the host runtime and
// which AlwaysUseExactMath rewrites to an exact-checked helper call.
func IsOverflowingArithmetic(op opcodes.Op) bool {
	switch op {
	case opcodes.Iadd, opcodes.Ladd, opcodes.Isub, opcodes.Imul:
		return true
	default:
		return false
	}
}
