// Package analysis implements the Analysis Context: the per-class walk
// that runs Definition Providers over a class record and aggregates the
// diagnostics Emitters raise while rewriting its instructions, per
// spec.md 4.4.
package analysis

import (
	"github.com/dsandbox/rewriter/classfile"
	"github.com/dsandbox/rewriter/sberrors"
)

// Provider is one Definition Provider: it inspects a class record and
// returns either the same record or a new one (spec.md 3's "Definition
// Providers return new records, not mutate"), plus any diagnostics raised
// while doing so.
type Provider interface {
	Name() string
	Apply(rec classfile.ClassRecord) (classfile.ClassRecord, []sberrors.Diagnostic)
}

// Context is the per-class analysis state: the ordered Provider list, the
// minimum severity that aborts the load, and the diagnostics collected so
// far. One Context is constructed per class being rewritten; it holds no
// state shared across classes.
type Context struct {
	Class       string
	providers   []Provider
	minSeverity sberrors.Severity
	diagnostics []sberrors.Diagnostic
}

// New builds a Context for class, running providers in the given order
// (spec.md 4.4's "applies every Definition Provider in list order") and
// treating any diagnostic at or above minSeverity as fatal.
func New(class string, minSeverity sberrors.Severity, providers ...Provider) *Context {
	return &Context{Class: class, providers: providers, minSeverity: minSeverity}
}

// RunProviders threads rec through every configured Provider in order,
// collecting their diagnostics, and returns the final record.
func (c *Context) RunProviders(rec classfile.ClassRecord) classfile.ClassRecord {
	for _, p := range c.providers {
		next, diags := p.Apply(rec)
		rec = next
		c.diagnostics = append(c.diagnostics, diags...)
	}
	return rec
}

// Report records a diagnostic raised outside the provider pass -- by an
// Emitter while walking a method's instructions, per spec.md 4.4's second
// responsibility ("observes instruction-level warnings and errors emitted
// by Emitters").
func (c *Context) Report(d sberrors.Diagnostic) {
	c.diagnostics = append(c.diagnostics, d)
}

// Diagnostics returns every diagnostic collected so far, in the order
// raised.
func (c *Context) Diagnostics() []sberrors.Diagnostic {
	return append([]sberrors.Diagnostic(nil), c.diagnostics...)
}

// Finish returns a SandboxClassLoadingError aggregating every diagnostic
// at or above the configured minimum severity, or nil if none reached it.
// Returning through this method (rather than constructing the error
// directly at call sites) avoids the typed-nil-in-an-interface trap: a nil
// *SandboxClassLoadingError assigned to an error-typed return is non-nil.
func (c *Context) Finish() error {
	var fatal []sberrors.Diagnostic
	for _, d := range c.diagnostics {
		if d.Severity >= c.minSeverity {
			fatal = append(fatal, d)
		}
	}
	if len(fatal) == 0 {
		return nil
	}
	return sberrors.NewSandboxClassLoadingError(c.Class, fatal)
}
