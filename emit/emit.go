// Package emit implements the Emitters of spec.md 4.6: the fixed-priority
// chain of instruction-level rewrites a method's code is streamed
// through before the Remapper's final name-resolution pass. Grounded on
// the teacher's gfunction dispatch table (one Go function installed per
// native method signature) generalized from "replace a method's runtime
// behavior" to "replace or wrap one instruction's effect."
package emit

import (
	"github.com/dsandbox/rewriter/analysis"
	"github.com/dsandbox/rewriter/classfile"
	"github.com/dsandbox/rewriter/opcodes"
	"github.com/dsandbox/rewriter/policy"
	"github.com/dsandbox/rewriter/profile"
)

// MethodContext is the per-method state an Emitter consults: which class
// and method it is rewriting, the diagnostics sink, and the shared
// configuration (policy table, helper method refs, optional profile).
type MethodContext struct {
	Class      string
	Method     string
	Descriptor string

	Analysis *analysis.Context
	Config   Config
}

// Config bundles every dependency an Emitter needs, passed in at pipeline
// construction rather than held as package state, per the §9 design note.
type Config struct {
	Policy *policy.Table
	// Profile is nil when no execution budget is configured; NewPipeline
	// omits the Trace* emitters entirely in that case.
	Profile *profile.Profile

	// UnwrapArgument/WrapReturn are deterministic-runtime static helpers
	// that convert a host primitive/String argument into its sandbox
	// counterpart at an API boundary, and back on return.
	UnwrapArgument classfile.MemberRef
	WrapReturn     classfile.MemberRef

	// ExactMathHelpers maps an overflow-prone integer opcode to the
	// deterministic-runtime static helper that performs the same
	// operation with an explicit overflow check.
	ExactMathHelpers map[opcodes.Op]classfile.MemberRef

	// InternHelper routes a host string constant through the sandbox's
	// interned String type; shared with providers.ConstantFieldRemover's
	// synthetic initializer.
	InternHelper classfile.MemberRef

	// ToDJVMString is the sandbox Object method that
	// RewriteObjectMethods retargets Object.toString()Ljava/lang/String;
	// calls to, per spec.md 4.6's special case.
	ToDJVMString classfile.MemberRef

	// ClassLoaderMethods/ClassMethods/ObjectMethods map a (name,descriptor)
	// key to the static helper RewriteClassLoaderMethods/RewriteClassMethods/
	// RewriteObjectMethods retarget a virtual call to, for every member the
	// policy table marks Thunk.
	ClassLoaderMethods map[string]classfile.MemberRef
	ClassMethods       map[string]classfile.MemberRef
	ObjectMethods      map[string]classfile.MemberRef

	// UnwrapThrowable/WrapThrowable convert between host and sandbox
	// throwable instances at catch sites (Handle) and throw sites (Throw).
	UnwrapThrowable classfile.MemberRef
	WrapThrowable   classfile.MemberRef

	// BlacklistedExceptionTypes are the sandbox's own internal
	// control-flow signal types (rule violations, budget traps) that user
	// catch blocks must never be able to intercept.
	BlacklistedExceptionTypes []string

	// RuleViolationHelper is the deterministic-runtime static helper that
	// constructs and returns a RuleViolationError, called by
	// DisallowNonDeterministicMethods' Forbid branch in place of a
	// new/invokespecial <init> pair so the thrown instance is actually left
	// on the stack for athrow.
	RuleViolationHelper classfile.MemberRef

	// EmptyEnumerationHelper is the deterministic-runtime static helper
	// that constructs and returns an empty java.util.Enumeration, called by
	// the Stub axis's StubEmptyEnumeration value for the same reason.
	EmptyEnumerationHelper classfile.MemberRef
}

func memberKey(name, descriptor string) string { return name + descriptor }

// Emitter is one instruction-level rewrite rule. Emit may call
// seq.PreventDefault to consume the instruction and supply a replacement;
// otherwise it leaves seq unmodified and the next emitter in priority
// order is consulted.
type Emitter interface {
	Name() string
	Emit(inst classfile.Instruction, mctx *MethodContext, seq *classfile.Sequence)
}

// Pipeline runs a method's instructions through every configured Emitter
// in fixed priority order, stopping at the first to call PreventDefault
// for a given instruction.
type Pipeline struct {
	emitters []Emitter
}

// NewPipeline builds the fixed-priority emitter chain spec.md 4.6
// enumerates. The Trace* emitters are included only when cfg.Profile is
// non-nil.
func NewPipeline(cfg Config) *Pipeline {
	p := &Pipeline{emitters: []Emitter{
		ExactMath{cfg: cfg},
		ArgumentUnwrapper{cfg: cfg},
		ReturnTypeWrapper{cfg: cfg},
		DisallowCatchingBlacklisted{cfg: cfg},
		DisallowNonDeterministicMethods{enforcer: NewEnforcer(cfg.Policy), cfg: cfg},
		HandleExceptionUnwrapper{cfg: cfg},
		ThrowExceptionWrapper{cfg: cfg},
		IgnoreBreakpoints{},
		IgnoreSynchronizedBlocks{},
		RewriteClassLoaderMethods{cfg: cfg},
		RewriteClassMethods{cfg: cfg},
		RewriteObjectMethods{cfg: cfg},
		StringConstantWrapper{cfg: cfg},
	}}
	if cfg.Profile != nil {
		p.emitters = append(p.emitters,
			TraceAllocations{profile: cfg.Profile},
			TraceInvocations{profile: cfg.Profile},
			TraceJumps{profile: cfg.Profile},
			TraceThrows{profile: cfg.Profile},
		)
	}
	return p
}

// RewriteMethod streams code through the pipeline, returning the
// concatenated instruction sequence each emitter's decision produced.
func (p *Pipeline) RewriteMethod(mctx *MethodContext, code []classfile.Instruction) []classfile.Instruction {
	var out []classfile.Instruction
	for _, inst := range code {
		seq := classfile.Sequence{}
		for _, e := range p.emitters {
			e.Emit(inst, mctx, &seq)
			if seq.Prevented {
				break
			}
		}
		out = append(out, seq.Flatten(inst)...)
	}
	return out
}
