package files

import (
	"path"
	"strings"
)

// Finder searches the project for source files.
type Finder interface {
	// FilesByName returns project files with the given base name.
	FilesByName(name string) []string

	// PackageOf returns the dotted package of a project file.
	PackageOf(path string) (string, bool)

	// Contains reports whether path is a project file.
	Contains(path string) bool
}

// Resolver picks the file fdb refers to from the file map and the project.
type Resolver struct {
	files  *Map
	finder Finder
	exists func(string) bool
}

// NewResolver creates a resolver. finder may be nil; exists defaults to
// accepting every path.
func NewResolver(m *Map, finder Finder, exists func(string) bool) *Resolver {
	if exists == nil {
		exists = func(string) bool { return true }
	}
	return &Resolver{files: m, finder: finder, exists: exists}
}

// Files returns the underlying map.
func (r *Resolver) Files() *Map {
	return r.files
}

// Resolve finds the file for a short name, an optional dotted package and
// an optional fdb id. Candidates are tried in order:
//
//  1. the path recorded for id
//  2. a recorded path for name whose directory ends with the package path
//  3. a project file named name in the package
//  4. any project file named name
//  5. any recorded path for name that exists on disk
func (r *Resolver) Resolve(worker int, name, pkg, id string) (string, bool) {
	if id != "" {
		if p, ok := r.files.PathFor(worker, id); ok {
			if pkg == "" {
				pkg = guessPackage(p)
			}
			if r.exists(p) {
				return r.thisOrSimilar(p, pkg), true
			}
		}
	}

	if name == "" || name == "<null>" {
		return "", false
	}

	if pkg != "" {
		pkgPath := strings.ReplaceAll(pkg, ".", "/")
		for _, p := range r.files.PathsByName(worker, name) {
			if strings.HasSuffix(path.Dir(p), pkgPath) && r.exists(p) {
				return r.thisOrSimilar(p, pkg), true
			}
		}
		if p, ok := r.projectFileInPackage(name, pkg); ok {
			return p, true
		}
	}

	if r.finder != nil {
		if found := r.finder.FilesByName(name); len(found) > 0 {
			return found[0], true
		}
	}

	for _, p := range r.files.PathsByName(worker, name) {
		if r.exists(p) {
			return p, true
		}
	}
	return "", false
}

// Reference returns the text fdb accepts for a file in a break command:
// "#<id>" when the id is known, else the short name, qualified by the
// package when there is one.
func (r *Resolver) Reference(p string) string {
	if id, ok := r.files.IDForNoUpdate(p); ok {
		return "#" + id
	}
	name := path.Base(normalizePath(p))
	if r.finder != nil {
		if pkg, ok := r.finder.PackageOf(p); ok && pkg != "" {
			return pkg + "." + name
		}
	}
	return name
}

func (r *Resolver) projectFileInPackage(name, pkg string) (string, bool) {
	if r.finder == nil {
		return "", false
	}
	for _, p := range r.finder.FilesByName(name) {
		if got, ok := r.finder.PackageOf(p); ok && got == pkg {
			return p, true
		}
	}
	return "", false
}

// thisOrSimilar prefers a project copy of a file compiled elsewhere.
func (r *Resolver) thisOrSimilar(p, pkg string) string {
	if r.finder == nil || r.finder.Contains(p) {
		return p
	}
	name := path.Base(p)
	if pkg == "" {
		if found := r.finder.FilesByName(name); len(found) > 0 {
			return found[0]
		}
		return p
	}
	if found, ok := r.projectFileInPackage(name, pkg); ok {
		return found
	}
	return p
}

const (
	mavenSrc = "/src/main/flex/"
	plainSrc = "/src/"
)

// guessPackage derives a package from a conventional source layout.
func guessPackage(p string) string {
	for _, marker := range []string{mavenSrc, plainSrc} {
		if i := strings.Index(p, marker); i > 0 {
			dir := path.Dir(p[i+len(marker):])
			if dir == "." {
				return ""
			}
			return strings.ReplaceAll(dir, "/", ".")
		}
	}
	return ""
}
