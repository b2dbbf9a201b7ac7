// Package resolver implements the Class Resolver: bidirectional name
// mapping between the host namespace and the sandbox namespace, honoring a
// whitelist and a pinned-class set, per spec.md 4.1.
package resolver

import (
	"strings"

	"github.com/dsandbox/rewriter/classfile"
)

// SandboxPrefix is the literal namespace prefix every non-pinned,
// non-whitelisted host class is relocated under.
const SandboxPrefix = "sandbox/"

// Whitelist decides, for a fully qualified host name, whether that name
// passes through the Remapper unchanged ("mapped" in spec.md 4.2's sense
// is backwards from the name -- a whitelisted entry is NOT relocated).
type Whitelist interface {
	Contains(hostName string) bool
}

// Resolver is the Class Resolver: it converts between host and sandbox
// names given a pin set, a template set, and a whitelist, exactly as
// spec.md 4.1 describes. It holds no package-level state (the §9 design
// note against global singletons) -- every dependency is passed in at
// construction.
type Resolver struct {
	whitelist Whitelist
	pinned    map[string]bool
	templates map[string]bool
}

// New builds a Resolver over the given whitelist and the combined pin/
// template sets. pinned types (primitive wrappers, Object, Throwable,
// String, Class, ClassLoader, and anything explicitly pinned by
// configuration) keep their host name but may still have their bodies
// rewritten. templates are deterministic-runtime classes whose sandbox
// name equals their host name because the runtime supplies a fixed,
// pre-sandboxed implementation under that exact name.
func New(whitelist Whitelist, pinned, templates []string) *Resolver {
	r := &Resolver{
		whitelist: whitelist,
		pinned:    make(map[string]bool, len(pinned)),
		templates: make(map[string]bool, len(templates)),
	}
	for _, p := range pinned {
		r.pinned[p] = true
	}
	for _, t := range templates {
		r.templates[t] = true
	}
	return r
}

// DefaultPins is the minimal pin set spec.md 3 names explicitly: primitive
// wrappers, Object, Throwable, String, Class, ClassLoader. Callers
// typically pass DefaultPins() plus any configuration-supplied pins to New.
func DefaultPins() []string {
	return []string{
		"java/lang/Object",
		"java/lang/Throwable",
		"java/lang/String",
		"java/lang/Class",
		"java/lang/ClassLoader",
		"java/lang/Boolean",
		"java/lang/Byte",
		"java/lang/Character",
		"java/lang/Short",
		"java/lang/Integer",
		"java/lang/Long",
		"java/lang/Float",
		"java/lang/Double",
		"java/lang/Void",
	}
}

// IsPinned reports whether name is in the pin or template set, i.e. keeps
// its host name across the rewrite.
func (r *Resolver) IsPinned(name string) bool {
	return r.pinned[name] || r.templates[name]
}

// ResolveType applies the five rules of spec.md 4.1 to a single type name
// or descriptor-shaped array token:
//  1. array descriptors: strip brackets, recurse on the element, reassemble
//  2. primitive descriptors: identity
//  3. pinned, template, or whitelisted: identity
//  4. already sandbox-prefixed: identity
//  5. otherwise: prepend the sandbox prefix
func (r *Resolver) ResolveType(name string) string {
	if depth, elem := classfile.ArrayDepth(arrayToken(name)); depth > 0 {
		return strings.Repeat("[", depth) + r.resolveElementToken(elem)
	}
	return r.resolveBareName(name)
}

// resolveElementToken resolves one array element token, which may be a
// primitive descriptor letter, a reference descriptor ("Lfoo/Bar;"), or a
// bare internal name, depending on what the caller fed in.
func (r *Resolver) resolveElementToken(elem string) string {
	if classfile.IsPrimitiveDescriptor(elem) {
		return elem
	}
	if strings.HasPrefix(elem, "L") && strings.HasSuffix(elem, ";") {
		inner := classfile.StripReferenceMarkers(elem)
		return classfile.WrapReference(r.resolveBareName(inner))
	}
	return r.resolveBareName(elem)
}

// resolveBareName applies rules 2-5 to a bare (non-array) name.
func (r *Resolver) resolveBareName(name string) string {
	if classfile.IsPrimitiveDescriptor(name) {
		return name
	}
	if r.IsPinned(name) || (r.whitelist != nil && r.whitelist.Contains(name)) {
		return name
	}
	if strings.HasPrefix(name, SandboxPrefix) {
		return name
	}
	return SandboxPrefix + name
}

// arrayToken lets ResolveType accept either a bare internal name (no '['
// prefix possible for a bare name, so this is a no-op) or a descriptor
// token; kept as a named indirection so the intent at each call site in
// ResolveType reads clearly.
func arrayToken(name string) string { return name }

// ResolveDescriptor walks every type token inside a field or method
// descriptor and applies ResolveType to each, per spec.md 4.1.
func (r *Resolver) ResolveDescriptor(desc string) string {
	return classfile.WalkTypeTokens(desc, func(tok string) string {
		if classfile.IsPrimitiveDescriptor(tok) {
			return tok
		}
		if strings.HasPrefix(tok, "L") && strings.HasSuffix(tok, ";") {
			inner := classfile.StripReferenceMarkers(tok)
			return classfile.WrapReference(r.resolveBareName(inner))
		}
		return tok
	})
}

// Reverse converts a sandbox name back to its host name, for diagnostics
// and for the sandbox class loader's fallback-to-host-loader decision. It
// is the left inverse of ResolveType on names that were actually relocated:
// reversing a pinned/whitelisted name is the identity, since those were
// never relocated in the first place.
func (r *Resolver) Reverse(name string) string {
	if strings.HasPrefix(name, SandboxPrefix) {
		return strings.TrimPrefix(name, SandboxPrefix)
	}
	return name
}
