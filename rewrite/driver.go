// Package rewrite implements the Rewrite Driver: the six-step pipeline
// of spec.md 4.8 that turns host class bytes into rewritten sandbox class
// bytes, given an Analysis Context already configured with Definition
// Providers and a minimum severity.
package rewrite

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dsandbox/rewriter/analysis"
	"github.com/dsandbox/rewriter/classfile"
	"github.com/dsandbox/rewriter/emit"
	"github.com/dsandbox/rewriter/remap"
	"github.com/dsandbox/rewriter/resolver"
	"github.com/dsandbox/rewriter/sberrors"
	"github.com/dsandbox/rewriter/tracelog"
)

// reservedMemberNames are the sandbox-internal member names spec.md 3's
// declaration invariants forbid a user class from declaring.
var reservedMemberNames = map[string]bool{
	"toDJVMString": true,
	"fromDJVM":     true,
	"toDJVM":       true,
}

// Driver is the Rewrite Driver. It is constructed once per sandbox
// configuration (not once per class) and reused across every class that
// configuration rewrites, holding only the resolver and emitter
// configuration as dependencies -- no per-class state, per the §9 design
// note.
type Driver struct {
	resolver *resolver.Resolver
	emitCfg  emit.Config
	duration prometheus.Histogram
}

// New builds a Driver over r and cfg. registerer is nil to skip metrics
// registration (as with cache.New, per the §9 anti-singleton note); when
// non-nil, a rewrite-duration histogram is registered on it.
func New(r *resolver.Resolver, cfg emit.Config, registerer prometheus.Registerer) *Driver {
	d := &Driver{
		resolver: r,
		emitCfg:  cfg,
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dsandbox_rewrite_duration_seconds",
			Help:    "Time spent rewriting one host class into its sandbox counterpart.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if registerer != nil {
		registerer.MustRegister(d.duration)
	}
	return d
}

// Rewrite runs the six-step pipeline of spec.md 4.8 against raw host
// class bytes for hostName, using ctx to run Definition Providers and
// collect diagnostics. Returns the final rewritten bytes, or the
// SandboxClassLoadingError ctx.Finish aggregates if any diagnostic
// reached the configured minimum severity.
func (d *Driver) Rewrite(ctx *analysis.Context, hostName string, raw []byte) ([]byte, error) {
	start := time.Now()
	defer func() { d.duration.Observe(time.Since(start).Seconds()) }()

	// Step 1: parse.
	rec, err := classfile.Decode(raw)
	if err != nil {
		return nil, err
	}
	rec.HostName = hostName
	rec.SandboxName = d.resolver.ResolveType(hostName)

	// Step 5 (checked early): a user class must not already declare a
	// reserved member name or reference the sandbox namespace directly --
	// checked against the as-decoded record, before any Definition
	// Provider or Emitter has had a chance to legitimately introduce a
	// sandbox-prefixed name of its own (AlwaysInheritFromSandboxedObject's
	// Super rewrite, in particular).
	checkDeclarationInvariants(ctx, rec)

	// Step 2: Definition Providers.
	rec = ctx.RunProviders(rec)

	// Step 3: Emitters, streamed per method.
	pipeline := emit.NewPipeline(d.emitCfg)
	blacklistCheck := emit.NewDisallowCatchingBlacklisted(d.emitCfg)
	for i := range rec.Methods {
		meth := &rec.Methods[i]
		if meth.IsAbstractOrNative() {
			continue
		}
		mctx := &emit.MethodContext{
			Class: rec.HostName, Method: meth.Name, Descriptor: meth.Descriptor,
			Analysis: ctx, Config: d.emitCfg,
		}
		meth.Code = pipeline.RewriteMethod(mctx, meth.Code)
		blacklistCheck.CheckHandlers(mctx, meth.Exceptions)
	}

	// Step 4: Remapper.
	rec = remap.New(d.resolver).Remap(rec)

	// Abort before emitting bytes if analysis found anything fatal.
	if err := ctx.Finish(); err != nil {
		tracelog.Warn("rewrite aborted", "class", hostName, "error", err.Error())
		return nil, err
	}

	// Step 6: emit final bytes.
	out, err := classfile.Encode(rec)
	if err != nil {
		return nil, err
	}
	tracelog.Trace("rewrote class", "host", hostName, "sandbox", rec.SandboxName, "bytes", len(out))
	return out, nil
}

func checkDeclarationInvariants(ctx *analysis.Context, rec classfile.ClassRecord) {
	for _, m := range rec.Methods {
		if reservedMemberNames[m.Name] {
			ctx.Report(sberrors.Diagnostic{
				Severity: sberrors.Error,
				Class:    rec.HostName,
				Member:   m.Name + m.Descriptor,
				Message:  sberrors.NewReservedName(m.Name).Error(),
			})
		}
	}
	for _, f := range rec.Fields {
		if reservedMemberNames[f.Name] {
			ctx.Report(sberrors.Diagnostic{
				Severity: sberrors.Error,
				Class:    rec.HostName,
				Member:   f.Name,
				Message:  sberrors.NewReservedName(f.Name).Error(),
			})
		}
	}
	if referencesSandboxNamespace(rec.Super) {
		reportNamespaceViolation(ctx, rec.HostName, rec.Super)
	}
	for _, iface := range rec.Interfaces {
		if referencesSandboxNamespace(iface) {
			reportNamespaceViolation(ctx, rec.HostName, iface)
		}
	}
	for _, m := range rec.Methods {
		for _, inst := range m.Code {
			if inst.ClassRef != nil && referencesSandboxNamespace(*inst.ClassRef) {
				reportNamespaceViolation(ctx, rec.HostName, *inst.ClassRef)
			}
			if inst.Ref != nil && referencesSandboxNamespace(inst.Ref.Owner) {
				reportNamespaceViolation(ctx, rec.HostName, inst.Ref.Owner)
			}
		}
	}
}

func referencesSandboxNamespace(name string) bool {
	return strings.HasPrefix(name, resolver.SandboxPrefix)
}

func reportNamespaceViolation(ctx *analysis.Context, class, name string) {
	ctx.Report(sberrors.Diagnostic{
		Severity: sberrors.Error,
		Class:    class,
		Message:  sberrors.NewReservedName(name).Error(),
	})
}
