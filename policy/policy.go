// Package policy holds the Whitelist & Policy Tables: static data
// classifying every instruction whose owner is a host classloader, host
// class, or host object into one of four axes -- allow, forbid, stub, or
// thunk -- per spec.md 4.2. The table is built once from a literal (the
// teacher's MethodSignatures map is the same shape: a key built from owner
// + member + descriptor mapping to a small action struct) but is passed
// into the emitter pipeline as configuration rather than held in package
// state, per the §9 design note against global singletons -- so tests can
// substitute a smaller table without mutating anything process-wide.
package policy

import "github.com/dsandbox/rewriter/classfile"

// ActionKind is one of the four policy axes.
type ActionKind int

const (
	// Allow passes the instruction through to the Remapper unchanged.
	Allow ActionKind = iota
	// Forbid raises a rule violation: the emitter replaces the call with a
	// throw of RuleViolationError carrying the canonical message.
	Forbid
	// Stub replaces the call's effect with an inert return (discard
	// receiver/args, push a fixed value: null, empty enumeration, or
	// nothing for void).
	Stub
	// Thunk rewrites a virtual/static call into a static call to a
	// deterministic helper in the sandbox runtime.
	Thunk
)

// StubValue names what a Stub action pushes after discarding the original
// call's receiver and arguments.
type StubValue int

const (
	StubNull StubValue = iota
	StubEmptyEnumeration
	StubVoid
)

// ThunkTarget names the deterministic-runtime static helper a Thunk action
// redirects a call to.
type ThunkTarget struct {
	Owner      string
	Name       string
	Descriptor string
}

// Action is the decision attached to one policy table entry.
type Action struct {
	Kind  ActionKind
	Stub  StubValue
	Thunk ThunkTarget
	// AllowFrom restricts a Forbid entry's scope: the call is allowed only
	// when issued from one of these host classes (spec.md 4.2's
	// reflect.Constructor.newInstance exception for deterministic-runtime
	// internals). Empty means the Forbid applies unconditionally.
	AllowFrom []string
}

// MemberKey looks up a policy entry by the same (owner, name, descriptor)
// shape a classfile.MemberRef carries.
type MemberKey struct {
	Owner, Name, Descriptor string
}

func keyOf(m classfile.MemberRef) MemberKey {
	return MemberKey{Owner: m.Owner, Name: m.Name, Descriptor: m.Descriptor}
}

// Table is the set of policy entries an Enforcer consults. It is ordinary
// data, constructed via New or NewCanonicalTable and passed by pointer into
// an emit.Config; nothing in this package holds a package-level table.
type Table struct {
	entries map[MemberKey]Action
	// prefixForbid lists owners for which ANY member not explicitly listed
	// in entries is forbidden outright -- e.g. java/lang/reflect/* types
	// returned from Class.get* reflection accessors that spec.md 4.2 marks
	// "forbid" as a catch-all after listing the allowed accessors.
	prefixForbid []string
}

// New builds an empty Table; callers add entries with Allow/Forbid/Stub/Thunk.
func New() *Table {
	return &Table{entries: make(map[MemberKey]Action)}
}

func (t *Table) set(owner, name, desc string, a Action) {
	t.entries[MemberKey{Owner: owner, Name: name, Descriptor: desc}] = a
}

// AllowMember marks one (owner, name, descriptor) as passed through.
func (t *Table) AllowMember(owner, name, desc string) { t.set(owner, name, desc, Action{Kind: Allow}) }

// ForbidMember marks one member as forbidden, optionally excepting calls
// issued from the given allow-listed classes.
func (t *Table) ForbidMember(owner, name, desc string, allowFrom ...string) {
	t.set(owner, name, desc, Action{Kind: Forbid, AllowFrom: allowFrom})
}

// StubMember marks one member as stubbed, pushing the given value.
func (t *Table) StubMember(owner, name, desc string, value StubValue) {
	t.set(owner, name, desc, Action{Kind: Stub, Stub: value})
}

// ThunkMember marks one member as rewritten into a static call to target.
func (t *Table) ThunkMember(owner, name, desc string, target ThunkTarget) {
	t.set(owner, name, desc, Action{Kind: Thunk, Thunk: target})
}

// ForbidOwnerPrefix marks every member of owner not already listed in the
// table as forbidden, for the "Class.* returning reflection types (other):
// forbid" catch-all rule.
func (t *Table) ForbidOwnerPrefix(owner string) {
	t.prefixForbid = append(t.prefixForbid, owner)
}

// Lookup returns the action for m and whether an entry was found (directly
// or via a prefix-forbid owner).
func (t *Table) Lookup(m classfile.MemberRef) (Action, bool) {
	if a, ok := t.entries[keyOf(m)]; ok {
		return a, true
	}
	for _, owner := range t.prefixForbid {
		if owner == m.Owner {
			return Action{Kind: Forbid}, true
		}
	}
	return Action{}, false
}
