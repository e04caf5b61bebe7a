// Package index keeps a filename index of the project's source roots.
//
// fdb often reports a file by its short name only. The index answers
// "which project files are called Foo.as" and "which package does this file
// belong to", the two questions needed to pick the right candidate.
package index

import (
	"errors"
)

// Common errors.
var (
	ErrNotFound      = errors.New("entry not found")
	ErrAlreadyExists = errors.New("entry already exists")
	ErrNotInRoot     = errors.New("path is outside every source root")
	ErrIndexClosed   = errors.New("index is closed")
)

// DefaultExtensions are the source files the index tracks.
var DefaultExtensions = []string{".as", ".mxml", ".fxg"}

// FileInfo describes one indexed source file.
type FileInfo struct {
	// Path is the cleaned absolute path.
	Path string

	// Name is the base name.
	Name string

	// Root is the source root containing the file.
	Root string

	// Package is the dotted directory path below Root; "" for the
	// top-level package.
	Package string
}

// Option configures an Index.
type Option func(*Config)

// Config holds index configuration.
type Config struct {
	// Extensions limits indexed files; empty indexes everything.
	Extensions []string

	// CaseSensitive makes name lookups case-sensitive.
	CaseSensitive bool

	// IncludeHidden indexes dot-directories.
	IncludeHidden bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Extensions: DefaultExtensions,
	}
}

// WithExtensions sets the indexed extensions.
func WithExtensions(exts ...string) Option {
	return func(c *Config) {
		c.Extensions = exts
	}
}

// WithCaseSensitive sets case sensitivity.
func WithCaseSensitive(sensitive bool) Option {
	return func(c *Config) {
		c.CaseSensitive = sensitive
	}
}

// WithIncludeHidden indexes hidden directories too.
func WithIncludeHidden(include bool) Option {
	return func(c *Config) {
		c.IncludeHidden = include
	}
}
