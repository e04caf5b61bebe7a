package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/fdbridge/internal/config/loader"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "FDBRIDGE_"

// Config is the complete fdbridge configuration.
type Config struct {
	FDB     FDBConfig     `toml:"fdb"`
	Player  PlayerConfig  `toml:"player"`
	Session SessionConfig `toml:"session"`
	Value   ValueConfig   `toml:"value"`
	Project ProjectConfig `toml:"project"`
	Console ConsoleConfig `toml:"console"`
	Log     LogConfig     `toml:"log"`
	Hooks   HooksConfig   `toml:"hooks"`

	// Source is the config file that was read, or "".
	Source string `toml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		FDB: FDBConfig{
			Path:     "fdb",
			Charset:  "UTF-8",
			IdlePoll: Duration(100 * time.Millisecond),
		},
		Value: ValueConfig{
			MaxLength:    1000,
			PendingDelay: Duration(100 * time.Millisecond),
			XMLDelay:     Duration(700 * time.Millisecond),
		},
		Project: ProjectConfig{
			SourceRoots: []string{"src"},
			Watch:       true,
		},
		Console: ConsoleConfig{Color: "auto"},
		Log:     LogConfig{Level: "info"},
	}
}

type options struct {
	file      string
	fs        loader.FileSystem
	envPrefix string
	searchDir string
}

// Option configures Load.
type Option func(*options)

// WithFile names the config file. A named file must exist.
func WithFile(path string) Option {
	return func(o *options) {
		o.file = path
	}
}

// WithFS sets the file system config files are read from.
func WithFS(fsys loader.FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

// WithEnvPrefix sets the environment variable prefix; "" disables the
// environment source.
func WithEnvPrefix(prefix string) Option {
	return func(o *options) {
		o.envPrefix = prefix
	}
}

// WithSearchDir sets the directory searched for a config file when none
// is named.
func WithSearchDir(dir string) Option {
	return func(o *options) {
		o.searchDir = dir
	}
}

// Load merges defaults, the config file and the environment into a
// validated Config.
func Load(opts ...Option) (*Config, error) {
	o := options{fs: loader.DefaultFS(), envPrefix: EnvPrefix, searchDir: "."}
	for _, opt := range opts {
		opt(&o)
	}

	merged, err := toMap(Default())
	if err != nil {
		return nil, err
	}

	path := o.file
	if path == "" {
		path = findConfigFile(o.fs, o.searchDir)
	} else if _, err := o.fs.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	if path != "" {
		l, err := loader.ForPath(o.fs, path)
		if err != nil {
			return nil, err
		}
		data, err := l.LoadWithIncludes(path, loader.DefaultIncludeDepth)
		if err != nil {
			return nil, err
		}
		merged = loader.DeepMerge(merged, data)
	}

	if o.envPrefix != "" {
		data, err := loader.NewEnvLoader(o.envPrefix).Load()
		if err != nil {
			return nil, err
		}
		merged = loader.DeepMerge(merged, data)
	}

	cfg, err := fromMap(merged)
	if err != nil {
		return nil, err
	}
	cfg.Source = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile returns the first config file found in dir or the user
// config directory, or "".
func findConfigFile(fsys loader.FileSystem, dir string) string {
	candidates := []string{
		filepath.Join(dir, "fdbridge.toml"),
		filepath.Join(dir, "fdbridge.yaml"),
		filepath.Join(dir, "fdbridge.yml"),
		filepath.Join(dir, ".fdbridge.toml"),
	}
	if userDir := defaultUserConfigDir(); userDir != "" {
		candidates = append(candidates,
			filepath.Join(userDir, "config.toml"),
			filepath.Join(userDir, "config.yaml"),
		)
	}
	for _, c := range candidates {
		if info, err := fsys.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}

func defaultUserConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fdbridge")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "fdbridge")
}

func toMap(c *Config) (map[string]any, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding defaults: %w", err)
	}
	var m map[string]any
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding defaults: %w", err)
	}
	return m, nil
}

// fromMap decodes a merged map through TOML so keys match the struct tags.
func fromMap(m map[string]any) (*Config, error) {
	data, err := toml.Marshal(m)
	if err != nil {
		return nil, &ValidationError{Message: err.Error(), Code: ErrCodeTypeMismatch}
	}

	cfg := &Config{}
	dec := toml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(cfg); err != nil {
		ve := &ValidationError{Message: err.Error(), Code: ErrCodeTypeMismatch}
		var de *toml.DecodeError
		if errors.As(err, &de) {
			ve.Path = strings.Join(de.Key(), ".")
		}
		return nil, ve
	}
	return cfg, nil
}

// Validate checks settings whose values are constrained.
func (c *Config) Validate() error {
	var errs []error

	if c.FDB.Path == "" {
		errs = append(errs, &ValidationError{Path: "fdb.path", Message: "must not be empty", Value: c.FDB.Path, Code: ErrCodeRequiredMissing})
	}
	if c.FDB.IdlePoll <= 0 {
		errs = append(errs, &ValidationError{Path: "fdb.idle_poll", Message: "must be positive", Value: c.FDB.IdlePoll.D(), Code: ErrCodeOutOfRange})
	}
	if c.Value.MaxLength <= 0 {
		errs = append(errs, &ValidationError{Path: "value.max_length", Message: "must be positive", Value: c.Value.MaxLength, Code: ErrCodeOutOfRange})
	}
	if c.Value.PendingDelay < 0 || c.Value.XMLDelay < 0 {
		errs = append(errs, &ValidationError{Path: "value", Message: "delays must not be negative", Code: ErrCodeOutOfRange})
	}
	switch c.Console.Color {
	case "auto", "always", "never":
	default:
		errs = append(errs, &ValidationError{Path: "console.color", Message: "must be auto, always or never", Value: c.Console.Color, Code: ErrCodeInvalidEnum})
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, &ValidationError{Path: "log.level", Message: err.Error(), Value: c.Log.Level, Code: ErrCodeInvalidEnum})
	}

	return errors.Join(errs...)
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if c.Log.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}
