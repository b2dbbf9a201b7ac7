package emit

import (
	"github.com/dsandbox/rewriter/classfile"
	"github.com/dsandbox/rewriter/opcodes"
	"github.com/dsandbox/rewriter/policy"
	"github.com/dsandbox/rewriter/sberrors"
)

// Enforcer drives the policy table of spec.md 4.2 as a single small state
// machine rather than as a chain of competing emitters, per the §9 design
// note: one decision point, not several emitters racing to call
// preventDefault first on the same non-deterministic-method check.
type Enforcer struct {
	table *policy.Table
}

// NewEnforcer builds an Enforcer over table. A nil table enforces nothing
// (every lookup misses), useful for tests that only exercise other
// emitters.
func NewEnforcer(table *policy.Table) *Enforcer {
	return &Enforcer{table: table}
}

// Decide looks up m and returns the action to take, along with whether the
// lookup found an entry at all (a miss means "this call isn't governed by
// the policy table; leave it to the Remapper").
func (e *Enforcer) Decide(m classfile.MemberRef, callingClass string) (policy.Action, bool) {
	if e.table == nil {
		return policy.Action{}, false
	}
	action, ok := e.table.Lookup(m)
	if !ok {
		return policy.Action{}, false
	}
	if action.Kind == policy.Forbid && len(action.AllowFrom) > 0 {
		for _, allowed := range action.AllowFrom {
			if allowed == callingClass {
				return policy.Action{Kind: policy.Allow}, true
			}
		}
	}
	return action, true
}

// DisallowNonDeterministicMethods is the emitter that consults the
// Enforcer for every member call and rewrites, stubs, or forbids it per
// spec.md 4.2/4.6.
type DisallowNonDeterministicMethods struct {
	enforcer *Enforcer
	cfg      Config
}

func (DisallowNonDeterministicMethods) Name() string { return "DisallowNonDeterministicMethods" }

func (e DisallowNonDeterministicMethods) Emit(inst classfile.Instruction, mctx *MethodContext, seq *classfile.Sequence) {
	if inst.Ref == nil || !opcodes.IsInvoke(inst.Op) {
		return
	}
	action, ok := e.enforcer.Decide(*inst.Ref, mctx.Class)
	if !ok {
		return
	}
	switch action.Kind {
	case policy.Allow:
		return
	case policy.Forbid:
		mctx.Analysis.Report(sberrors.Diagnostic{
			Severity: sberrors.Error,
			Class:    mctx.Class,
			Member:   mctx.Method + mctx.Descriptor,
			Message:  sberrors.NewDisallowedReference(inst.Ref.Owner, inst.Ref.Name, inst.Ref.ArgTypes()).Error(),
		})
		seq.PreventDefault(throwRuleViolationSequence(e.cfg.RuleViolationHelper)...)
	case policy.Stub:
		seq.PreventDefault(stubSequence(action.Stub, e.cfg.EmptyEnumerationHelper)...)
	case policy.Thunk:
		target := action.Thunk
		ref := classfile.MemberRef{Owner: target.Owner, Name: target.Name, Descriptor: target.Descriptor, Kind: classfile.InvokeStaticKind}
		seq.PreventDefault(classfile.Instruction{Op: opcodes.InvokeStatic, Ref: &ref})
	}
}

// throwRuleViolationSequence builds the instructions that discard the
// call's receiver and arguments (left to the Rewrite Driver's stack
// bookkeeping to balance, since the exact argument count varies per call
// site), call the deterministic-runtime helper that constructs a
// RuleViolationError, and throw the value it returns. A plain
// new/invokespecial <init> pair would leave nothing on the stack for the
// following athrow -- invokespecial pops the receiver new just pushed and
// returns nothing -- so this uses the same invokestatic-helper-then-athrow
// shape as providers.NativeMethods instead.
func throwRuleViolationSequence(helper classfile.MemberRef) []classfile.Instruction {
	helper.Kind = classfile.InvokeStaticKind
	return []classfile.Instruction{
		{Op: opcodes.InvokeStatic, Ref: &helper},
		{Op: opcodes.Athrow},
	}
}

// stubSequence builds the replacement for a Stub action: discard the call
// (handled by the Rewrite Driver's generic stack-balancing prefix, not
// modeled at this single-instruction granularity) and push the configured
// stub value.
func stubSequence(value policy.StubValue, emptyEnumerationHelper classfile.MemberRef) []classfile.Instruction {
	switch value {
	case policy.StubEmptyEnumeration:
		// Same reasoning as throwRuleViolationSequence: the helper returns
		// the constructed instance directly, so nothing is left stranded
		// the way a bare new/invokespecial <init> would leave it.
		emptyEnumerationHelper.Kind = classfile.InvokeStaticKind
		return []classfile.Instruction{{Op: opcodes.InvokeStatic, Ref: &emptyEnumerationHelper}}
	case policy.StubVoid:
		return nil
	default: // StubNull
		return []classfile.Instruction{{Op: opcodes.AconstNull}}
	}
}
