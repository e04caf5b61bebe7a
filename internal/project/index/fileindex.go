package index

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FileIndex indexes source files by name below a set of roots.
type FileIndex struct {
	mu     sync.RWMutex
	config Config

	roots []string

	// Primary storage: path -> FileInfo
	entries map[string]FileInfo

	// Name index: name key -> list of paths
	nameIndex map[string][]string

	closed bool
}

// NewFileIndex creates an empty index.
func NewFileIndex(opts ...Option) *FileIndex {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	return &FileIndex{
		config:    config,
		entries:   make(map[string]FileInfo),
		nameIndex: make(map[string][]string),
	}
}

// AddRoot registers a source root and indexes everything below it.
func (fi *FileIndex) AddRoot(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	fi.mu.Lock()
	if fi.closed {
		fi.mu.Unlock()
		return ErrIndexClosed
	}
	for _, r := range fi.roots {
		if r == abs {
			fi.mu.Unlock()
			return nil
		}
	}
	fi.roots = append(fi.roots, abs)
	// longest root first so nested roots win in rootOf
	sort.Slice(fi.roots, func(i, j int) bool { return len(fi.roots[i]) > len(fi.roots[j]) })
	fi.mu.Unlock()

	return fi.Scan(abs)
}

// Roots returns the registered source roots.
func (fi *FileIndex) Roots() []string {
	fi.mu.RLock()
	defer fi.mu.RUnlock()

	return append([]string(nil), fi.roots...)
}

// Scan walks dir and adds every matching file. Unreadable entries are
// skipped.
func (fi *FileIndex) Scan(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != dir && !fi.config.IncludeHidden && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if addErr := fi.Add(p); addErr != nil && addErr != ErrAlreadyExists && addErr != ErrNotInRoot {
			return addErr
		}
		return nil
	})
}

// Add adds a file to the index. Files with other extensions are ignored.
func (fi *FileIndex) Add(path string) error {
	fi.mu.Lock()
	defer fi.mu.Unlock()

	if fi.closed {
		return ErrIndexClosed
	}

	// Normalize path
	path = filepath.Clean(path)
	if !fi.matchesExtension(path) {
		return nil
	}

	if _, exists := fi.entries[path]; exists {
		return ErrAlreadyExists
	}

	root, ok := fi.rootOf(path)
	if !ok {
		return ErrNotInRoot
	}

	info := FileInfo{
		Path:    path,
		Name:    filepath.Base(path),
		Root:    root,
		Package: packageOf(root, path),
	}
	fi.entries[path] = info

	key := fi.nameKey(info.Name)
	fi.nameIndex[key] = append(fi.nameIndex[key], path)

	return nil
}

// Remove removes a file, or every file below a removed directory.
func (fi *FileIndex) Remove(path string) error {
	fi.mu.Lock()
	defer fi.mu.Unlock()

	if fi.closed {
		return ErrIndexClosed
	}

	path = filepath.Clean(path)

	if info, exists := fi.entries[path]; exists {
		fi.removeEntry(info)
		return nil
	}

	prefix := path + string(filepath.Separator)
	removed := false
	for p, info := range fi.entries {
		if strings.HasPrefix(p, prefix) {
			fi.removeEntry(info)
			removed = true
		}
	}
	if !removed {
		return ErrNotFound
	}
	return nil
}

func (fi *FileIndex) removeEntry(info FileInfo) {
	delete(fi.entries, info.Path)

	key := fi.nameKey(info.Name)
	fi.nameIndex[key] = removeFromSlice(fi.nameIndex[key], info.Path)
	if len(fi.nameIndex[key]) == 0 {
		delete(fi.nameIndex, key)
	}
}

// Get retrieves file info by path.
func (fi *FileIndex) Get(path string) (FileInfo, bool) {
	fi.mu.RLock()
	defer fi.mu.RUnlock()

	info, ok := fi.entries[filepath.Clean(path)]
	return info, ok
}

// Contains reports whether path is an indexed project file.
func (fi *FileIndex) Contains(path string) bool {
	_, ok := fi.Get(path)
	return ok
}

// Count returns the number of indexed files.
func (fi *FileIndex) Count() int {
	fi.mu.RLock()
	defer fi.mu.RUnlock()

	return len(fi.entries)
}

// FilesByName returns the indexed paths with the given base name, sorted.
func (fi *FileIndex) FilesByName(name string) []string {
	fi.mu.RLock()
	defer fi.mu.RUnlock()

	paths := append([]string(nil), fi.nameIndex[fi.nameKey(name)]...)
	sort.Strings(paths)
	return paths
}

// PackageOf returns the dotted package of an indexed file.
func (fi *FileIndex) PackageOf(path string) (string, bool) {
	info, ok := fi.Get(path)
	if !ok {
		return "", false
	}
	return info.Package, true
}

// Close releases resources.
func (fi *FileIndex) Close() error {
	fi.mu.Lock()
	defer fi.mu.Unlock()

	fi.closed = true
	fi.entries = nil
	fi.nameIndex = nil
	return nil
}

func (fi *FileIndex) matchesExtension(path string) bool {
	if len(fi.config.Extensions) == 0 {
		return true
	}
	ext := filepath.Ext(path)
	for _, e := range fi.config.Extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

func (fi *FileIndex) rootOf(path string) (string, bool) {
	for _, r := range fi.roots {
		if path == r || strings.HasPrefix(path, r+string(filepath.Separator)) {
			return r, true
		}
	}
	return "", false
}

func (fi *FileIndex) nameKey(name string) string {
	if fi.config.CaseSensitive {
		return name
	}
	return strings.ToLower(name)
}

// packageOf converts the directory below root into a dotted package name.
func packageOf(root, path string) string {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil || rel == "." {
		return ""
	}
	return strings.ReplaceAll(filepath.ToSlash(rel), "/", ".")
}

// Exists reports whether path names a regular file on disk.
func Exists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

// removeFromSlice removes the first occurrence of item.
func removeFromSlice(slice []string, item string) []string {
	for i, s := range slice {
		if s == item {
			return append(slice[:i], slice[i+1:]...)
		}
	}
	return slice
}
