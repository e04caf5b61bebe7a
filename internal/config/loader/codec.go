package loader

import (
	"fmt"
	"io"
)

// parseFunc decodes one document. source names it in errors.
type parseFunc func(source string, data []byte) (map[string]any, error)

// fileLoader is the format-independent part of TOMLLoader and YAMLLoader.
type fileLoader struct {
	fs    FileSystem
	path  string
	parse parseFunc
}

// Load reads the loader's own path.
func (l *fileLoader) Load() (map[string]any, error) {
	return l.LoadFrom(l.path)
}

// LoadFrom reads path. A missing file yields nil, nil.
func (l *fileLoader) LoadFrom(path string) (map[string]any, error) {
	data, err := readFile(l.fs, path)
	if err != nil || data == nil {
		return nil, err
	}
	return l.parse(path, data)
}

func (l *fileLoader) LoadFromReader(r io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return l.parse("<reader>", data)
}

// LoadWithIncludes reads path and merges the files named by its
// "@include" key beneath it.
func (l *fileLoader) LoadWithIncludes(path string, maxDepth int) (map[string]any, error) {
	return withIncludes(l.fs, l, path, maxDepth)
}
