// Package sourceloader implements the Source Class Loader: a hierarchical,
// parent-first chain of archives that locate and return raw host class
// bytes, per spec.md 4.3. Grounded on the teacher's jmod-backed class
// loading in classloader.go (LoadClassFromNameOnly / LoadClassFromJar),
// generalized from "one fixed jmod plus app directory" to an arbitrary
// ordered sequence of directory or zip archive paths, since spec.md 4.3
// calls for "user-provided archive paths" plural.
package sourceloader

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dsandbox/rewriter/sberrors"
)

// Archive is one searchable source of class bytes: a directory tree or a
// zip/jar file, opened once and kept for the lifetime of the Loader.
type Archive interface {
	// Lookup returns the raw bytes for internalName+".class", or ok=false
	// if this archive does not contain that class.
	Lookup(internalName string) (data []byte, ok bool, err error)
	io.Closer
}

// dirArchive serves classes from a directory tree laid out the way a
// classpath directory is: internalName "foo/Bar" resolves to
// "<root>/foo/Bar.class".
type dirArchive struct {
	root string
}

func openDirArchive(root string) (*dirArchive, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sourceloader: %s is not a directory", root)
	}
	return &dirArchive{root: root}, nil
}

func (d *dirArchive) Lookup(internalName string) ([]byte, bool, error) {
	path := filepath.Join(d.root, filepath.FromSlash(internalName)+".class")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (d *dirArchive) Close() error { return nil }

// zipArchive serves classes from a zip or jar file, opened once and held
// for repeated lookups.
type zipArchive struct {
	reader  *zip.ReadCloser
	byName  map[string]*zip.File
}

func openZipArchive(path string) (*zipArchive, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		if strings.HasSuffix(f.Name, ".class") {
			byName[strings.TrimSuffix(f.Name, ".class")] = f
		}
	}
	return &zipArchive{reader: r, byName: byName}, nil
}

func (z *zipArchive) Lookup(internalName string) ([]byte, bool, error) {
	f, ok := z.byName[internalName]
	if !ok {
		return nil, false, nil
	}
	rc, err := f.Open()
	if err != nil {
		return nil, false, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (z *zipArchive) Close() error { return z.reader.Close() }

// OpenArchive opens path as a directory or a zip/jar archive, choosing by
// the path's form rather than its extension, matching the teacher's own
// "jmod files are just zip files" treatment.
func OpenArchive(path string) (Archive, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return openDirArchive(path)
	}
	return openZipArchive(path)
}

// ClassHeader is the partial descriptor loadClassHeader returns: enough to
// answer hierarchy questions (is this a Throwable, is it assignable from
// another type) without fully decoding and defining the class, per spec.md
// 4.3.
type ClassHeader struct {
	Name        string
	Super       string
	Interfaces  []string
	Access      uint16
	IsThrowable bool
}

// hierarchyLookup is the narrow interface of a class-header cache that
// answers IsAssignableFrom without recursively invoking the full source
// loader chain on every ancestor. No type in this package implements it,
// and Loader does not use it.
type hierarchyLookup interface {
	loadClassHeader(name string) (ClassHeader, error)
}

// Loader is the Source Class Loader: an ordered list of archives searched
// after an optional parent loader. Parent-first: if the parent can satisfy
// a request it wins, matching spec.md 4.3 and the teacher's own
// bootstrap-before-application classloader precedence.
type Loader struct {
	parent   *Loader
	archives []Archive

	mu     sync.Mutex
	cached map[string]ClassHeader
}

// New builds a Loader over archives opened from paths, in search order,
// with parent (nil for the root/bootstrap loader) consulted first on every
// request.
func New(parent *Loader, paths []string) (*Loader, error) {
	l := &Loader{parent: parent, cached: make(map[string]ClassHeader)}
	for _, p := range paths {
		a, err := OpenArchive(p)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("sourceloader: opening %s: %w", p, err)
		}
		l.archives = append(l.archives, a)
	}
	return l, nil
}

// Close releases every archive's file handles. A Loader is a scoped
// resource per spec.md 4.3; callers that construct one with New must
// Close it, typically via defer.
func (l *Loader) Close() error {
	var firstErr error
	for _, a := range l.archives {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// LoadClassBytes returns the raw class bytes for internalName, consulting
// the parent first and this loader's own archives in insertion order on a
// parent miss. Returns sberrors.ClassNotFoundError if no archive in the
// chain has the class.
func (l *Loader) LoadClassBytes(internalName string) ([]byte, error) {
	if l.parent != nil {
		if data, err := l.parent.LoadClassBytes(internalName); err == nil {
			return data, nil
		} else if !sberrors.IsClassNotFound(err) {
			return nil, err
		}
	}
	for _, a := range l.archives {
		data, ok, err := a.Lookup(internalName)
		if err != nil {
			return nil, fmt.Errorf("sourceloader: reading %s: %w", internalName, err)
		}
		if ok {
			return data, nil
		}
	}
	return nil, &sberrors.ClassNotFoundError{Name: internalName}
}

// LoadClassHeader returns the lightweight descriptor for internalName
// without building a full ClassRecord, caching the result so repeated
// hierarchy walks (IsAssignableFrom chains) don't re-read and re-parse the
// same bytes.
func (l *Loader) LoadClassHeader(internalName string) (ClassHeader, error) {
	if l.parent != nil {
		if h, err := l.parent.LoadClassHeader(internalName); err == nil {
			return h, nil
		} else if !sberrors.IsClassNotFound(err) {
			return ClassHeader{}, err
		}
	}

	l.mu.Lock()
	if h, ok := l.cached[internalName]; ok {
		l.mu.Unlock()
		return h, nil
	}
	l.mu.Unlock()

	data, err := l.loadLocalBytes(internalName)
	if err != nil {
		return ClassHeader{}, err
	}
	h, err := parseHeader(internalName, data)
	if err != nil {
		return ClassHeader{}, err
	}

	l.mu.Lock()
	l.cached[internalName] = h
	l.mu.Unlock()
	return h, nil
}

func (l *Loader) loadLocalBytes(internalName string) ([]byte, error) {
	for _, a := range l.archives {
		data, ok, err := a.Lookup(internalName)
		if err != nil {
			return nil, fmt.Errorf("sourceloader: reading %s: %w", internalName, err)
		}
		if ok {
			return data, nil
		}
	}
	return nil, &sberrors.ClassNotFoundError{Name: internalName}
}

// IsThrowable reports whether internalName's class, or any ancestor in its
// superclass chain, is java/lang/Throwable.
func (l *Loader) IsThrowable(internalName string) (bool, error) {
	name := internalName
	for name != "" {
		h, err := l.LoadClassHeader(name)
		if err != nil {
			return false, err
		}
		if h.IsThrowable || name == "java/lang/Throwable" {
			return true, nil
		}
		if h.Super == "" {
			return false, nil
		}
		name = h.Super
	}
	return false, nil
}

// IsAssignableFrom reports whether a value of class sub may be used where
// class super is expected: sub's ancestor chain reaches super, or sub
// implements super as an interface (transitively).
func (l *Loader) IsAssignableFrom(super, sub string) (bool, error) {
	if super == sub || super == "java/lang/Object" {
		return true, nil
	}
	h, err := l.LoadClassHeader(sub)
	if err != nil {
		return false, err
	}
	for _, iface := range h.Interfaces {
		if ok, _ := l.IsAssignableFrom(super, iface); ok {
			return true, nil
		}
	}
	if h.Super == "" {
		return false, nil
	}
	if h.Super == super {
		return true, nil
	}
	return l.IsAssignableFrom(super, h.Super)
}
