package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Settings are the typed options of one command invocation.
type Settings struct {
	LogLevel     string
	LogFile      string
	LogMaxSizeMB int
	LogMaxFiles  int

	TickInterval time.Duration
	MaxTicks     int

	SearchPaths     []string
	ScriptCacheSize int

	MetricsAddr      string
	MetricsNamespace string
}

// ResolveCommand returns the effective value of key for command, checking in
// order: the environment variable declared for the key, the [command]
// section, the global options, and the schema default.
func (s *ConfigSchema) ResolveCommand(c *Config, command, key string) string {
	opt := s.Lookup(command, key)
	if opt == nil {
		opt = s.Lookup("", key)
	}
	if opt != nil && opt.EnvVar != "" {
		if v, ok := os.LookupEnv(opt.EnvVar); ok {
			return v
		}
	}
	if c != nil {
		if v, ok := c.GetCommandOption(command, key); ok {
			return v
		}
	}
	if opt != nil {
		return opt.Default
	}
	return ""
}

// ResolveSettings resolves every global option for command. Values that do
// not parse as their declared type are an error.
func (s *ConfigSchema) ResolveSettings(c *Config, command string) (Settings, error) {
	var (
		out  Settings
		errs []error
	)
	str := func(key string) string {
		return s.ResolveCommand(c, command, key)
	}
	integer := func(key string) int {
		v := str(key)
		if v == "" {
			return 0
		}
		i, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: expected int, got %q", key, v))
		}
		return i
	}

	out.LogLevel = str("log.level")
	out.LogFile = str("log.file")
	out.LogMaxSizeMB = integer("log.max-size-mb")
	out.LogMaxFiles = integer("log.max-files")

	if v := str("tick.interval"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("tick.interval: expected duration, got %q", v))
		}
		out.TickInterval = d
	}
	out.MaxTicks = integer("tick.max")
	if out.MaxTicks < 0 {
		errs = append(errs, fmt.Errorf("tick.max: must not be negative, got %d", out.MaxTicks))
	}

	if v := str("tree.search-paths"); v != "" {
		out.SearchPaths = filepath.SplitList(v)
	}
	out.ScriptCacheSize = integer("tree.script-cache-size")

	out.MetricsAddr = str("metrics.addr")
	out.MetricsNamespace = str("metrics.namespace")

	if len(errs) > 0 {
		return out, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return out, nil
}

// ResolveBool is ResolveCommand parsed as a bool. Unset or unparsable values
// are false.
func (s *ConfigSchema) ResolveBool(c *Config, command, key string) bool {
	b, err := parseBool(s.ResolveCommand(c, command, key))
	return err == nil && b
}
