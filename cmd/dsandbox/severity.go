package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/dsandbox/rewriter/config"
)

// severityFlag implements pflag.Value so --min-severity rejects an
// unrecognized level at flag-parse time instead of silently falling back
// to "error" the way a plain string flag would.
type severityFlag struct {
	value string
	set   bool
}

func (s *severityFlag) String() string { return s.value }

func (s *severityFlag) Type() string { return "severity" }

func (s *severityFlag) Set(v string) error {
	switch v {
	case "informational", "warning", "error":
		s.value = v
		s.set = true
		return nil
	default:
		return fmt.Errorf("unrecognized severity %q (want informational, warning, or error)", v)
	}
}

var _ pflag.Value = (*severityFlag)(nil)

var minSeverity = &severityFlag{value: "error"}

// applySeverityOverride overrides f.MinSeverity with the --min-severity
// flag's value, when the flag was explicitly set on the command line.
func applySeverityOverride(f *config.File) {
	if minSeverity.set {
		f.MinSeverity = minSeverity.value
	}
}
