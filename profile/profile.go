// Package profile defines the optional execution profile spec.md 4.6 and
// 9 reference: a set of per-thread budgets the Trace* emitters debit from
// at allocation, invocation, jump, and throw sites, trapping with a
// deterministic error when a budget is exhausted. A nil *Profile means no
// budget is configured, and the rewrite driver omits the Trace* emitters
// from its pipeline entirely rather than emit budget checks against a
// budget that doesn't exist.
package profile

import "github.com/dsandbox/rewriter/classfile"

// Budgets are the configured ceilings for one sandboxed execution. A zero
// value for any field means that dimension is not limited.
type Budgets struct {
	Allocations int64
	Invocations int64
	Jumps       int64
	Throws      int64
}

// Profile bundles the configured budgets with the static helper methods
// the Trace* emitters call to debit them. Each helper takes no arguments
// and returns void; it reads and writes the budget counters through
// whatever thread-local state the deterministic runtime maintains, and
// throws when a counter reaches zero.
type Profile struct {
	Budgets Budgets

	AllocationHelper classfile.MemberRef
	InvocationHelper classfile.MemberRef
	JumpHelper       classfile.MemberRef
	ThrowHelper      classfile.MemberRef
}

// New builds a Profile. Passing a zero Budgets value is valid (an
// unlimited profile that still traces activity for instrumentation
// without ever trapping).
func New(budgets Budgets, allocation, invocation, jump, throwHelper classfile.MemberRef) *Profile {
	return &Profile{
		Budgets:          budgets,
		AllocationHelper: allocation,
		InvocationHelper: invocation,
		JumpHelper:       jump,
		ThrowHelper:      throwHelper,
	}
}
