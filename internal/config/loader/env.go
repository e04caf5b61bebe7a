package loader

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
)

// EnvLoader loads configuration from environment variables.
//
// FDBRIDGE_FDB_PATH sets fdb.path and FDBRIDGE_VALUE_MAX_LENGTH sets
// value.max_length: the first word after the prefix is the section, the
// rest is the key in snake case. Variables in the mapping override that
// rule.
type EnvLoader struct {
	prefix  string
	mapping map[string]string // Env var -> config path
	environ func() []string
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore (e.g., "FDBRIDGE_").
func NewEnvLoader(prefix string) *EnvLoader {
	l := NewEnvLoaderWithMapping(prefix, nil)
	for suffix, path := range defaultEnvMapping {
		l.AddMapping(prefix+suffix, path)
	}
	return l
}

// NewEnvLoaderWithMapping creates a loader with custom environment variable mappings.
func NewEnvLoaderWithMapping(prefix string, mapping map[string]string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: mapping,
		environ: os.Environ,
	}
}

// defaultEnvMapping covers conventional variable names that do not follow
// the section_key pattern. Keys are relative to the prefix.
var defaultEnvMapping = map[string]string{
	"FDB":        "fdb.path",
	"PLAYER":     "player.command",
	"LOG":        "log.level",
	"HOOK":       "hooks.script",
	"SDK":        "session.sdk_version",
	"SOURCE_DIR": "project.source_roots",
}

// Load reads environment variables and returns a configuration map.
// Empty values are kept; they are set, not unset.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)

	for _, env := range l.environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}

		path, mapped := l.mapping[name]
		if !mapped {
			path = l.envToPath(name)
		}
		if path == "" {
			continue
		}
		setByPath(config, path, l.parseValue(path, value))
	}

	return config, nil
}

// AddMapping adds a custom environment variable mapping.
func (l *EnvLoader) AddMapping(envVar, configPath string) {
	if l.mapping == nil {
		l.mapping = make(map[string]string)
	}
	l.mapping[envVar] = configPath
}

// envToPath converts FDBRIDGE_VALUE_MAX_LENGTH to value.max_length.
// Names without a key part yield "".
func (l *EnvLoader) envToPath(env string) string {
	name := strings.ToLower(strings.TrimPrefix(env, l.prefix))
	section, key, ok := strings.Cut(name, "_")
	if !ok || section == "" || key == "" {
		return ""
	}
	return section + "." + key
}

// parseValue converts s to the type the setting most likely has.
// Durations stay strings; the typed config parses them.
func (l *EnvLoader) parseValue(path, s string) any {
	if s == "" {
		return s
	}

	if strings.HasSuffix(path, "_roots") || strings.HasSuffix(path, ".args") {
		if strings.HasPrefix(s, "[") {
			var v []any
			if err := json.Unmarshal([]byte(s), &v); err == nil {
				return v
			}
		}
		sep := string(os.PathListSeparator)
		if strings.HasSuffix(path, ".args") {
			sep = " "
		}
		var out []any
		for _, part := range strings.Split(s, sep) {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}

	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}

	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
	}

	return s
}

// setByPath sets a value in a nested map using a dot-separated path.
func setByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data

	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}

	current[parts[len(parts)-1]] = value
}
