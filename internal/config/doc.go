// Package config holds fdbridge's typed configuration.
//
// Settings come from, lowest precedence first: built-in defaults, a TOML or
// YAML file, FDBRIDGE_* environment variables and command-line flags. The
// first three are merged as maps by Load; flags are applied by the caller
// on the returned struct.
//
//	cfg, err := config.Load(config.WithFile("fdbridge.toml"))
//	if err != nil {
//	    return err
//	}
//	cfg.FDB.Path = *fdbFlag
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//
// A config file looks like:
//
//	"@include" = "team.toml"
//
//	[fdb]
//	path = "/opt/flex/bin/fdb"
//	charset = "windows-1252"
//
//	[player]
//	url = "bin-debug/Main.html"
//
//	[value]
//	max_length = 500
//	pending_delay = "150ms"
//
// Durations are written as strings ("100ms", "1s").
package config
