// Package sandboxloader implements the Sandbox Class Loader of spec.md
// 4.10: the entry point user code ultimately calls through to get a
// defined class, backed by the Bytecode Cache, Source Class Loader, and
// Rewrite Driver.
package sandboxloader

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dsandbox/rewriter/analysis"
	"github.com/dsandbox/rewriter/cache"
	"github.com/dsandbox/rewriter/resolver"
	"github.com/dsandbox/rewriter/rewrite"
	"github.com/dsandbox/rewriter/sberrors"
	"github.com/dsandbox/rewriter/sourceloader"
)

// DefinedClass is the result of loadSandboxClass: enough for the
// deterministic runtime (a sibling artifact) to actually define the
// class. HostName equals SandboxName for a class that passed through
// unrewritten because it is pinned or whitelisted; Bytes is empty in that same case,
// since the host loader (not this one) owns its bytes.
type DefinedClass struct {
	SandboxName string
	HostName    string
	Bytes       []byte
}

type loadState int32

const (
	stateLoading loadState = iota
	stateDefined
	stateFailed
)

type classSlot struct {
	state  int32 // loadState, set atomically
	ready  chan struct{}
	result *DefinedClass
	err    error
}

func newLoadingSlot() *classSlot {
	return &classSlot{state: int32(stateLoading), ready: make(chan struct{})}
}

func (s *classSlot) succeed(result *DefinedClass) {
	s.result = result
	atomic.StoreInt32(&s.state, int32(stateDefined))
	close(s.ready)
}

func (s *classSlot) fail(err error) {
	s.err = err
	atomic.StoreInt32(&s.state, int32(stateFailed))
	close(s.ready)
}

// Loader is one sandbox class loader. Constructed with a parent (nil for
// the root sandbox loader -- never the host application loader: user
// code sees only sandbox loaders, per spec.md 4.10's point 5), and the
// dependencies needed to locate, rewrite, and cache a class on a miss.
type Loader struct {
	parent   *Loader
	resolver *resolver.Resolver
	source   *sourceloader.Loader
	cache    *cache.Cache
	driver   *rewrite.Driver

	providers   []analysis.Provider
	minSeverity sberrors.Severity

	mu      sync.Mutex
	classes map[string]*classSlot
}

// New builds a sandbox Loader. parent is nil only for the root loader.
func New(parent *Loader, r *resolver.Resolver, source *sourceloader.Loader, c *cache.Cache, driver *rewrite.Driver, providers []analysis.Provider, minSeverity sberrors.Severity) *Loader {
	return &Loader{
		parent: parent, resolver: r, source: source, cache: c, driver: driver,
		providers: providers, minSeverity: minSeverity,
		classes: make(map[string]*classSlot),
	}
}

// GetParent returns the parent sandbox loader, or nil for the root.
func (l *Loader) GetParent() *Loader { return l.parent }

type loadingStackKey struct{}

func withLoading(ctx context.Context, name string) context.Context {
	stack, _ := ctx.Value(loadingStackKey{}).([]string)
	next := append(append([]string(nil), stack...), name)
	return context.WithValue(ctx, loadingStackKey{}, next)
}

func inLoadingStack(ctx context.Context, name string) bool {
	stack, _ := ctx.Value(loadingStackKey{}).([]string)
	for _, s := range stack {
		if s == name {
			return true
		}
	}
	return false
}

// LoadSandboxClass implements spec.md 4.10's algorithm: fall through to
// the host loader for whitelisted/pinned names, consult the cache, and
// on a miss locate host bytes, rewrite, cache, and return.
func (l *Loader) LoadSandboxClass(ctx context.Context, name string) (*DefinedClass, error) {
	if !strings.HasPrefix(name, resolver.SandboxPrefix) {
		if l.resolver.IsPinned(name) || l.resolver.ResolveType(name) == name {
			return &DefinedClass{SandboxName: name, HostName: name}, nil
		}
		return nil, &sberrors.RuleViolationError{
			Message: fmt.Sprintf("%s is neither a sandbox class nor a permitted host type", name),
		}
	}

	l.mu.Lock()
	slot, exists := l.classes[name]
	if !exists {
		slot = newLoadingSlot()
		l.classes[name] = slot
	}
	l.mu.Unlock()

	if !exists {
		l.populate(ctx, name, slot)
		return slot.result, slot.err
	}

	switch loadState(atomic.LoadInt32(&slot.state)) {
	case stateDefined:
		return slot.result, nil
	case stateFailed:
		return nil, slot.err
	default: // still loading
		if inLoadingStack(ctx, name) {
			// A cyclic self-reference reached this class again while it is
			// still being defined: return the in-progress placeholder
			// rather than block forever waiting on our own completion.
			return &DefinedClass{SandboxName: name}, nil
		}
		<-slot.ready
		return slot.result, slot.err
	}
}

func (l *Loader) populate(ctx context.Context, name string, slot *classSlot) {
	ctx = withLoading(ctx, name)

	if data, ok := l.cache.Get(ctx, name); ok {
		slot.succeed(&DefinedClass{SandboxName: name, HostName: l.resolver.Reverse(name), Bytes: data})
		return
	}

	hostName := l.resolver.Reverse(name)
	raw, err := l.source.LoadClassBytes(hostName)
	if err != nil {
		slot.fail(err)
		return
	}

	actx := analysis.New(hostName, l.minSeverity, l.providers...)
	out, err := l.driver.Rewrite(actx, hostName, raw)
	if err != nil {
		slot.fail(err)
		return
	}
	l.cache.PutIfAbsent(ctx, name, out, nil)
	slot.succeed(&DefinedClass{SandboxName: name, HostName: hostName, Bytes: out})
}

// forbiddenArguments are the host types spec.md 4.10's point 6 names: a
// request to sandbox an instance of any of these crosses the boundary
// carrying reflective or loader capability the sandbox cannot bound. The
// map value is the human-readable noun NewCannotSandbox's message uses for
// that type, e.g. "Cannot sandbox class java.lang.String".
var forbiddenArguments = map[string]string{
	"java/lang/Class":               "class",
	"java/lang/reflect/Constructor": "constructor",
	"java/lang/reflect/Method":      "method",
	"java/lang/reflect/Field":       "field",
	"java/lang/ClassLoader":         "classloader",
}

// CheckSandboxArgument is the boundary entry point of spec.md 4.10's
// point 6: called with the host type name of a value about to be
// transferred into the sandbox and the dotted name of the class it
// represents (e.g. for a java.lang.Class argument, the class it is a
// mirror of), it raises RuleViolationError for a forbidden reflective or
// loader type. representedValue is only meaningful when hostTypeName is
// forbidden; callers that already know the argument's type is allowed may
// pass "".
func CheckSandboxArgument(hostTypeName, representedValue string) error {
	if noun, forbidden := forbiddenArguments[hostTypeName]; forbidden {
		return sberrors.NewCannotSandbox(noun, representedValue)
	}
	return nil
}
