package config

import (
	"fmt"
	"time"
)

// Duration is a time.Duration written as a string in config files.
type Duration time.Duration

// D returns d as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// FDBConfig selects and configures the fdb executable.
type FDBConfig struct {
	// Path is the fdb executable or script; a bare name is looked up in PATH.
	Path string `toml:"path"`

	// Args are passed to fdb.
	Args []string `toml:"args"`

	// Charset is the IANA name of fdb's console encoding.
	Charset string `toml:"charset"`

	// IdlePoll is how often pending output is drained while nothing runs.
	IdlePoll Duration `toml:"idle_poll"`
}

// PlayerConfig describes what to start once fdb waits for a player.
// With neither Command nor URL set, the user starts the player.
type PlayerConfig struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
	URL     string   `toml:"url"`
}

// SessionConfig describes the SDK fdb comes from.
type SessionConfig struct {
	// SDKVersion is the Flex SDK version, e.g. "4.5.0".
	SDKVersion string `toml:"sdk_version"`

	// SDKName is the SDK's display name; AIR SDKs are recognized by it.
	SDKName string `toml:"sdk_name"`

	// IDEMode is set when fdb was built to escape values for IDEs.
	IDEMode bool `toml:"ide_mode"`

	// FilterSWFMessages hides [SWF] and [UnloadSWF] notices.
	FilterSWFMessages bool `toml:"filter_swf_messages"`
}

// ValueConfig tunes value presentation.
type ValueConfig struct {
	MaxLength    int      `toml:"max_length"`
	PendingDelay Duration `toml:"pending_delay"`
	XMLDelay     Duration `toml:"xml_delay"`
}

// ProjectConfig locates the debugged sources.
type ProjectConfig struct {
	SourceRoots []string `toml:"source_roots"`

	// Watch keeps the file index current while the session runs.
	Watch bool `toml:"watch"`
}

// ConsoleConfig controls terminal output.
type ConsoleConfig struct {
	// Color is "auto", "always" or "never".
	Color string `toml:"color"`
}

// LogConfig controls the diagnostic log.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `toml:"level"`

	// File is the log file path; empty logs to stderr.
	File string `toml:"file"`
}

// HooksConfig names the Lua hook script.
type HooksConfig struct {
	Script string `toml:"script"`
}
