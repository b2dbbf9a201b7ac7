// Package sberrors defines the three error kinds the rewriter and the
// sandbox class loader raise, per the error-handling design: a
// RuleViolationError thrown inside sandboxed code when a forbidden API is
// reached, a SandboxClassLoadingError raised at rewrite time aggregating
// every analysis diagnostic, and ClassNotFoundError/NoClassDefFoundError
// raised by the source layer when a referenced class cannot be located.
package sberrors

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// RuleViolationError is raised at the sandbox boundary, or injected as a
// thrown instruction inside rewritten bytecode, when code reaches a
// forbidden API or attempts to sandbox a forbidden argument type.
type RuleViolationError struct {
	Message string
}

func (e *RuleViolationError) Error() string { return e.Message }

// NewDisallowedReference formats the canonical "forbidden API call" message:
// "Disallowed reference to API; <owner>.<member>(<arg types>)".
func NewDisallowedReference(owner, member, argTypes string) *RuleViolationError {
	return &RuleViolationError{
		Message: fmt.Sprintf("Disallowed reference to API; %s.%s(%s)", owner, member, argTypes),
	}
}

// NewCannotSandbox formats the canonical sandbox-boundary message:
// "Cannot sandbox <type> <value>".
func NewCannotSandbox(typ, value string) *RuleViolationError {
	return &RuleViolationError{Message: fmt.Sprintf("Cannot sandbox %s %s", typ, value)}
}

// NewReservedName formats the canonical reserved-member-name message:
// "Class is not allowed to implement <name>".
func NewReservedName(name string) *RuleViolationError {
	return &RuleViolationError{Message: fmt.Sprintf("Class is not allowed to implement %s", name)}
}

// Severity orders analysis diagnostics so a SandboxClassLoadingError can be
// raised only once diagnostics reach the configured minimum.
type Severity int

const (
	Informational Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Informational:
		return "informational"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Diagnostic is one analysis-time finding: a severity, the class and member
// it was raised against, and a human-readable message.
type Diagnostic struct {
	Severity Severity
	Class    string
	Member    string
	Message  string
}

func (d Diagnostic) Error() string {
	if d.Member != "" {
		return fmt.Sprintf("[%s] %s#%s: %s", d.Severity, d.Class, d.Member, d.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", d.Severity, d.Class, d.Message)
}

// SandboxClassLoadingError is raised by the rewrite driver when analysis
// diagnostics at or above the configured minimum severity were collected
// for a class. It aggregates every diagnostic via multierr so the caller's
// error message enumerates all of them, not just the first.
type SandboxClassLoadingError struct {
	Class       string
	Diagnostics []Diagnostic
	agg         error
}

// NewSandboxClassLoadingError builds the aggregate error from the collected
// diagnostics. Returns nil if diags is empty, so callers can call this
// unconditionally at the end of analysis and only treat a non-nil result as
// fatal.
func NewSandboxClassLoadingError(class string, diags []Diagnostic) *SandboxClassLoadingError {
	if len(diags) == 0 {
		return nil
	}
	var agg error
	for _, d := range diags {
		agg = multierr.Append(agg, d)
	}
	return &SandboxClassLoadingError{Class: class, Diagnostics: diags, agg: agg}
}

func (e *SandboxClassLoadingError) Error() string {
	return fmt.Sprintf("SandboxClassLoadingError: class %s failed analysis:\n%s", e.Class, e.agg.Error())
}

func (e *SandboxClassLoadingError) Unwrap() error { return e.agg }

// ClassNotFoundError is raised by the source layer when a class name cannot
// be located by any archive in the source loader's search chain.
type ClassNotFoundError struct {
	Name string
}

func (e *ClassNotFoundError) Error() string { return "ClassNotFoundError: " + e.Name }

// NoClassDefFoundError is raised when a class was located but a class it
// transitively refers to during loading could not be.
type NoClassDefFoundError struct {
	Name    string
	Missing string
}

func (e *NoClassDefFoundError) Error() string {
	return fmt.Sprintf("NoClassDefFoundError: %s (missing %s)", e.Name, e.Missing)
}

// IsClassNotFound reports whether err is, or wraps, a ClassNotFoundError.
func IsClassNotFound(err error) bool {
	var c *ClassNotFoundError
	return errors.As(err, &c)
}

// IsRuleViolation reports whether err is, or wraps, a RuleViolationError.
func IsRuleViolation(err error) bool {
	var r *RuleViolationError
	return errors.As(err, &r)
}
