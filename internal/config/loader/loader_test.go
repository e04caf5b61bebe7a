package loader

import (
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MemFS is an in-memory file system for testing.
type MemFS struct {
	files map[string][]byte
}

func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string][]byte)}
}

func (m *MemFS) AddFile(path string, content string) {
	m.files[path] = []byte(content)
}

func (m *MemFS) Open(name string) (fs.File, error) {
	return nil, fs.ErrNotExist
}

func (m *MemFS) ReadFile(path string) ([]byte, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

func (m *MemFS) Stat(path string) (fs.FileInfo, error) {
	if _, ok := m.files[path]; ok {
		return &memFileInfo{name: path}, nil
	}
	return nil, fs.ErrNotExist
}

type memFileInfo struct {
	name string
}

func (f *memFileInfo) Name() string       { return f.name }
func (f *memFileInfo) Size() int64        { return 0 }
func (f *memFileInfo) Mode() fs.FileMode  { return 0644 }
func (f *memFileInfo) ModTime() time.Time { return time.Now() }
func (f *memFileInfo) IsDir() bool        { return false }
func (f *memFileInfo) Sys() any           { return nil }

func TestForPath(t *testing.T) {
	memfs := NewMemFS()

	tests := []struct {
		path    string
		want    any
		wantErr bool
	}{
		{"/fdbridge.toml", &TOMLLoader{}, false},
		{"/fdbridge.yaml", &YAMLLoader{}, false},
		{"/FDBRIDGE.YML", &YAMLLoader{}, false},
		{"/fdbridge.json", nil, true},
	}

	for _, tt := range tests {
		l, err := ForPath(memfs, tt.path)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnsupportedFormat, tt.path)
			continue
		}
		require.NoError(t, err, tt.path)
		assert.IsType(t, tt.want, l, tt.path)
	}
}

func TestTOMLLoader_Load(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/fdbridge.toml", `
[fdb]
path = "/opt/flex/bin/fdb"
idle_poll = "50ms"

[value]
max_length = 200
`)

	config, err := NewTOMLLoaderWithFS(memfs, "/fdbridge.toml").Load()
	require.NoError(t, err)

	fdb, ok := config["fdb"].(map[string]any)
	require.True(t, ok, "fdb should be a map")
	assert.Equal(t, "/opt/flex/bin/fdb", fdb["path"])
	assert.Equal(t, int64(200), config["value"].(map[string]any)["max_length"])
}

func TestTOMLLoader_LoadNonExistent(t *testing.T) {
	config, err := NewTOMLLoaderWithFS(NewMemFS(), "/missing.toml").Load()
	assert.NoError(t, err)
	assert.Nil(t, config)
}

func TestTOMLLoader_LoadInvalid(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/bad.toml", "[fdb]\npath = \n")

	_, err := NewTOMLLoaderWithFS(memfs, "/bad.toml").Load()
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "/bad.toml", pe.Path)
	assert.Equal(t, 2, pe.Line)
}

func TestTOMLLoader_LoadFromReader(t *testing.T) {
	config, err := NewTOMLLoader("").LoadFromReader(strings.NewReader(`[console]
color = "never"
`))
	require.NoError(t, err)
	assert.Equal(t, "never", config["console"].(map[string]any)["color"])
}

func TestYAMLLoader_Load(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/fdbridge.yaml", `
player:
  url: http://localhost:8080/Main.html
  args: ["-fullscreen"]
session:
  ide_mode: true
`)

	config, err := NewYAMLLoaderWithFS(memfs, "/fdbridge.yaml").Load()
	require.NoError(t, err)

	player, ok := config["player"].(map[string]any)
	require.True(t, ok, "player should be a map, got %T", config["player"])
	assert.Equal(t, "http://localhost:8080/Main.html", player["url"])
	assert.Equal(t, []any{"-fullscreen"}, player["args"])
	assert.Equal(t, true, config["session"].(map[string]any)["ide_mode"])
}

func TestYAMLLoader_Empty(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/empty.yml", "")

	config, err := NewYAMLLoaderWithFS(memfs, "/empty.yml").Load()
	require.NoError(t, err)
	assert.NotNil(t, config)
	assert.Empty(t, config)
}

func TestYAMLLoader_LoadInvalid(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/bad.yaml", "fdb:\n  path: a\n   charset: b\n")

	_, err := NewYAMLLoaderWithFS(memfs, "/bad.yaml").Load()
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.NotZero(t, pe.Line, "expected a line number in %v", pe)
}

func TestLoadWithIncludes(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/cfg/base.yaml", `
fdb:
  path: /opt/flex/bin/fdb
  charset: windows-1252
`)
	memfs.AddFile("/cfg/fdbridge.toml", `
"@include" = ["base.yaml"]

[fdb]
charset = "UTF-8"
`)

	config, err := NewTOMLLoaderWithFS(memfs, "/cfg/fdbridge.toml").LoadWithIncludes("/cfg/fdbridge.toml", DefaultIncludeDepth)
	require.NoError(t, err)

	assert.NotContains(t, config, "@include")
	fdb := config["fdb"].(map[string]any)
	assert.Equal(t, "/opt/flex/bin/fdb", fdb["path"], "value from include")
	assert.Equal(t, "UTF-8", fdb["charset"], "including file wins")
}

func TestLoadWithIncludes_DepthExceeded(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/loop.toml", `"@include" = "loop.toml"`)

	_, err := NewTOMLLoaderWithFS(memfs, "/loop.toml").LoadWithIncludes("/loop.toml", 3)
	assert.ErrorIs(t, err, ErrIncludeDepthExceeded)
}

func TestLoadWithIncludes_BadDirective(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/bad.toml", `"@include" = 3`)

	_, err := NewTOMLLoaderWithFS(memfs, "/bad.toml").LoadWithIncludes("/bad.toml", 2)
	assert.Error(t, err, "non-string @include")
}

func TestDeepMerge(t *testing.T) {
	dst := map[string]any{
		"fdb":   map[string]any{"path": "fdb", "charset": "UTF-8"},
		"hooks": map[string]any{"script": "a.lua"},
	}
	src := map[string]any{
		"fdb":   map[string]any{"path": "/opt/fdb"},
		"hooks": "disabled",
		"log":   map[string]any{"level": "debug"},
	}

	got := DeepMerge(dst, src)

	assert.Equal(t, map[string]any{"path": "/opt/fdb", "charset": "UTF-8"}, got["fdb"])
	assert.Equal(t, "disabled", got["hooks"], "non-map src replaces")
	assert.Equal(t, map[string]any{"level": "debug"}, got["log"])

	assert.Equal(t, 1, DeepMerge(nil, map[string]any{"a": 1})["a"])
}

func TestClone(t *testing.T) {
	src := map[string]any{
		"project": map[string]any{"source_roots": []any{"src"}},
		"fdb":     map[string]any{"args": []string{"-p"}},
	}

	dst := Clone(src)
	dst["project"].(map[string]any)["source_roots"].([]any)[0] = "changed"
	dst["fdb"].(map[string]any)["args"].([]string)[0] = "changed"

	assert.Equal(t, "src", src["project"].(map[string]any)["source_roots"].([]any)[0], "Clone shared a []any")
	assert.Equal(t, "-p", src["fdb"].(map[string]any)["args"].([]string)[0], "Clone shared a []string")
	assert.Nil(t, Clone(nil))
}
