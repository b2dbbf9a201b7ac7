// Package config assembles every other package in this module into one
// runnable sandbox configuration: it is the only place that constructs a
// resolver.Resolver, policy.Table, profile.Profile, cache.Cache,
// rewrite.Driver, and sandboxloader.Loader and wires them together, given
// either a File value built in Go or one read from a YAML file (Load) in
// the teacher's configuration style.
package config

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/dsandbox/rewriter/analysis"
	"github.com/dsandbox/rewriter/analysis/providers"
	"github.com/dsandbox/rewriter/cache"
	"github.com/dsandbox/rewriter/classfile"
	"github.com/dsandbox/rewriter/emit"
	"github.com/dsandbox/rewriter/opcodes"
	"github.com/dsandbox/rewriter/policy"
	"github.com/dsandbox/rewriter/profile"
	"github.com/dsandbox/rewriter/resolver"
	"github.com/dsandbox/rewriter/rewrite"
	"github.com/dsandbox/rewriter/sandboxloader"
	"github.com/dsandbox/rewriter/sberrors"
	"github.com/dsandbox/rewriter/sourceloader"
	"github.com/dsandbox/rewriter/tracelog"
)

// opcodeByName inverts opcodes.Table so configuration can name an opcode
// by its mnemonic ("iadd", "imul") rather than its numeric byte value.
var opcodeByName = func() map[string]opcodes.Op {
	m := make(map[string]opcodes.Op, len(opcodes.Table))
	for op, info := range opcodes.Table {
		m[info.Name] = op
	}
	return m
}()

// memberRef is the YAML-friendly shape of a classfile.MemberRef; the
// loader config never deals in invocation kind, only owner/name/descriptor,
// since each emitter that calls a configured helper picks the invoke opcode
// itself (invokestatic for most; RewriteObjectMethods calls ToDJVMString
// with invokevirtual).
type memberRef struct {
	Owner      string `yaml:"owner"`
	Name       string `yaml:"name"`
	Descriptor string `yaml:"descriptor"`
}

func (m memberRef) toMemberRef() classfile.MemberRef {
	return classfile.MemberRef{Owner: m.Owner, Name: m.Name, Descriptor: m.Descriptor, Kind: classfile.InvokeStaticKind}
}

// File is the on-disk YAML shape of a sandbox configuration, mirroring
// the teacher's whitelist/pin literal style (a flat list of fully
// qualified names) rather than a nested object tree.
type File struct {
	// SourcePaths are directories or jar/zip archives searched, in order,
	// for host class bytes; see sourceloader.New.
	SourcePaths []string `yaml:"sourcePaths"`

	// Whitelist lists host class names the Resolver leaves unmapped, in
	// addition to resolver.DefaultPins(); Pins and Templates extend and
	// rename that behavior for deterministic-runtime classes.
	Whitelist []string `yaml:"whitelist"`
	Pins      []string `yaml:"pins"`
	Templates []string `yaml:"templates"`

	// TrustedInternals is the caller allow-list for the
	// reflect.Constructor.newInstance exception NewCanonicalTable's doc
	// comment describes.
	TrustedInternals []string `yaml:"trustedInternals"`

	// MinSeverity is one of "informational", "warning", "error"; any
	// diagnostic at or above this severity aborts a rewrite. Defaults to
	// "error" when empty.
	MinSeverity string `yaml:"minSeverity"`

	// Budgets is nil to disable execution-budget tracing (emit.Config.Profile
	// stays nil and the Trace* emitters are never installed).
	Budgets *profile.Budgets `yaml:"budgets"`

	// Helpers names every deterministic-runtime static method the
	// rewritten bytecode is wired to call. Each field corresponds 1:1 to
	// an emit.Config or providers.Config field of the same concern.
	Helpers HelperRefs `yaml:"helpers"`

	// BlacklistedExceptionTypes are the sandbox's own internal
	// control-flow signal types user catch blocks must never intercept.
	BlacklistedExceptionTypes []string `yaml:"blacklistedExceptionTypes"`

	// ExternalCachePath, if set, backs cache.External with a directory of
	// one file per cached sandbox class, shared across process runs.
	ExternalCachePath string `yaml:"externalCachePath"`
}

// HelperRefs names the deterministic-runtime static helpers the Rewrite
// Driver's Emitters and Definition Providers call into.
type HelperRefs struct {
	UnwrapArgument    memberRef            `yaml:"unwrapArgument"`
	WrapReturn        memberRef            `yaml:"wrapReturn"`
	InternHelper      memberRef            `yaml:"internHelper"`
	ToDJVMString      memberRef            `yaml:"toDJVMString"`
	UnwrapThrowable   memberRef            `yaml:"unwrapThrowable"`
	WrapThrowable     memberRef            `yaml:"wrapThrowable"`
	NativeErrorHelper memberRef            `yaml:"nativeErrorHelper"`
	RuleViolationHelper    memberRef       `yaml:"ruleViolationHelper"`
	EmptyEnumerationHelper memberRef       `yaml:"emptyEnumerationHelper"`
	AllocationHelper  memberRef            `yaml:"allocationHelper"`
	InvocationHelper  memberRef            `yaml:"invocationHelper"`
	JumpHelper        memberRef            `yaml:"jumpHelper"`
	ThrowHelper       memberRef            `yaml:"throwHelper"`
	ExactMath         map[string]memberRef `yaml:"exactMath"`
	ClassLoaderMethods map[string]memberRef `yaml:"classLoaderMethods"`
	ClassMethods       map[string]memberRef `yaml:"classMethods"`
	ObjectMethods      map[string]memberRef `yaml:"objectMethods"`
}

// Load reads and parses a YAML configuration file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &f, nil
}

// severityFromString maps a configuration string to sberrors.Severity,
// defaulting to Error when empty or unrecognized.
func severityFromString(s string) sberrors.Severity {
	switch s {
	case "informational":
		return sberrors.Informational
	case "warning":
		return sberrors.Warning
	case "error", "":
		return sberrors.Error
	default:
		return sberrors.Error
	}
}

// simpleWhitelist is the resolver.Whitelist backing a flat configured
// name list -- the teacher's own MethodSignatures/whitelist tables are
// likewise flat Go maps built once from literal data, not a dynamic
// lookup service.
type simpleWhitelist map[string]bool

func (w simpleWhitelist) Contains(hostName string) bool { return w[hostName] }

func newWhitelist(names []string) simpleWhitelist {
	w := make(simpleWhitelist, len(names))
	for _, n := range names {
		w[n] = true
	}
	return w
}

// Sandbox is the fully assembled set of collaborators a running sandbox
// needs: a root class loader ready to answer LoadSandboxClass, plus the
// cache and resolver it was built from, for callers (chiefly cmd/dsandbox)
// that need to inspect them directly (e.g. cache-stats).
type Sandbox struct {
	Resolver *resolver.Resolver
	Cache    *cache.Cache
	Driver   *rewrite.Driver
	Loader   *sandboxloader.Loader
	// RunID correlates this configuration's log lines across a process
	// lifetime, and distinguishes one tenant's nested child configuration
	// from another's in shared log output.
	RunID uuid.UUID
}

// Option customizes Build beyond what the YAML File captures -- chiefly
// things that are themselves Go values rather than configuration data:
// an external cache implementation, a metrics registerer, a parent
// sandbox loader for a nested configuration.
type Option func(*buildState)

type buildState struct {
	external   cache.External
	registerer prometheus.Registerer
	parent     *sandboxloader.Loader
	parentCache *cache.Cache
}

// WithExternalCache configures the side-channel cache.External consulted
// ahead of this configuration's own local cache storage.
func WithExternalCache(external cache.External) Option {
	return func(s *buildState) { s.external = external }
}

// WithMetricsRegisterer registers the cache's hit/miss counters on
// registerer instead of leaving metrics unregistered.
func WithMetricsRegisterer(registerer prometheus.Registerer) Option {
	return func(s *buildState) { s.registerer = registerer }
}

// WithParent nests this configuration's sandbox loader and cache under an
// already-built parent Sandbox, per spec.md 4.9/4.10's parent/child
// hierarchies.
func WithParent(parent *Sandbox) Option {
	return func(s *buildState) {
		if parent == nil {
			return
		}
		s.parent = parent.Loader
		s.parentCache = parent.Cache
	}
}

// Build assembles a Sandbox from f and opts: a Resolver over the
// configured whitelist/pins/templates, a canonical policy Table, an emit
// and providers Config built from the named helper references, a Cache at
// this level, a Rewrite Driver, and a root (or nested) Sandbox Class
// Loader.
func Build(f *File, opts ...Option) (*Sandbox, error) {
	state := &buildState{}
	for _, opt := range opts {
		opt(state)
	}

	source, err := sourceloader.New(nil, f.SourcePaths)
	if err != nil {
		return nil, fmt.Errorf("build source loader: %w", err)
	}

	if state.external == nil && f.ExternalCachePath != "" {
		external, err := cache.NewDirExternal(f.ExternalCachePath)
		if err != nil {
			return nil, err
		}
		state.external = external
	}

	pins := append(append([]string(nil), resolver.DefaultPins()...), f.Pins...)
	r := resolver.New(newWhitelist(f.Whitelist), pins, f.Templates)

	table := policy.NewCanonicalTable(f.TrustedInternals)

	exactMath := make(map[opcodes.Op]classfile.MemberRef, len(f.Helpers.ExactMath))
	for opName, ref := range f.Helpers.ExactMath {
		op, ok := opcodeByName[opName]
		if !ok {
			return nil, fmt.Errorf("unknown exact-math opcode %q", opName)
		}
		exactMath[op] = ref.toMemberRef()
	}

	var prof *profile.Profile
	if f.Budgets != nil {
		prof = profile.New(*f.Budgets,
			f.Helpers.AllocationHelper.toMemberRef(),
			f.Helpers.InvocationHelper.toMemberRef(),
			f.Helpers.JumpHelper.toMemberRef(),
			f.Helpers.ThrowHelper.toMemberRef(),
		)
	}

	emitCfg := emit.Config{
		Policy:                    table,
		Profile:                   prof,
		UnwrapArgument:            f.Helpers.UnwrapArgument.toMemberRef(),
		WrapReturn:                f.Helpers.WrapReturn.toMemberRef(),
		ExactMathHelpers:          exactMath,
		InternHelper:              f.Helpers.InternHelper.toMemberRef(),
		ToDJVMString:              f.Helpers.ToDJVMString.toMemberRef(),
		ClassLoaderMethods:        toMemberMap(f.Helpers.ClassLoaderMethods),
		ClassMethods:              toMemberMap(f.Helpers.ClassMethods),
		ObjectMethods:             toMemberMap(f.Helpers.ObjectMethods),
		UnwrapThrowable:           f.Helpers.UnwrapThrowable.toMemberRef(),
		WrapThrowable:             f.Helpers.WrapThrowable.toMemberRef(),
		BlacklistedExceptionTypes: f.BlacklistedExceptionTypes,
		RuleViolationHelper:       f.Helpers.RuleViolationHelper.toMemberRef(),
		EmptyEnumerationHelper:    f.Helpers.EmptyEnumerationHelper.toMemberRef(),
	}

	providerCfg := providers.Config{
		InternHelper:      f.Helpers.InternHelper.toMemberRef(),
		NativeErrorHelper: f.Helpers.NativeErrorHelper.toMemberRef(),
	}
	allProviders := []analysis.Provider{
		providers.InheritFromSandboxedObject{},
		providers.NonSynchronizedMethods{},
		providers.StrictFloatingPointArithmetic{},
		providers.NewConstantFieldRemover(providerCfg),
		providers.FinalizerMethods{},
		providers.NewNativeMethods(providerCfg),
		providers.IntrospectiveMethods{},
		providers.SerializationHooks{},
	}

	c := cache.New(state.parentCache, state.external, state.registerer)
	driver := rewrite.New(r, emitCfg, state.registerer)
	loader := sandboxloader.New(state.parent, r, source, c, driver, allProviders, severityFromString(f.MinSeverity))

	runID := uuid.New()
	tracelog.Info("sandbox configuration built", "runID", runID.String(), "sourcePaths", f.SourcePaths)

	return &Sandbox{Resolver: r, Cache: c, Driver: driver, Loader: loader, RunID: runID}, nil
}

func toMemberMap(m map[string]memberRef) map[string]classfile.MemberRef {
	out := make(map[string]classfile.MemberRef, len(m))
	for k, v := range m {
		out[k] = v.toMemberRef()
	}
	return out
}
