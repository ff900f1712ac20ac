package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

// OptionType is the type a configuration value must parse as.
type OptionType string

const (
	TypeString   OptionType = "string"
	TypeBool     OptionType = "bool"
	TypeInt      OptionType = "int"
	TypeDuration OptionType = "duration"
	// TypePathList is a list of paths joined by the OS list separator.
	TypePathList OptionType = "path-list"
)

// ConfigOption declares one option. Section is "" for global options and a
// command name otherwise.
type ConfigOption struct {
	Key         string
	Type        OptionType
	Default     string
	Description string
	Section     string
	// EnvVar, when set, overrides every configured value.
	EnvVar string
}

// ConfigSchema is the set of options btrun understands. It drives
// validation, resolution and `btrun config schema`.
type ConfigSchema struct {
	// options are indexed by section, then key; globals live under "".
	options map[string]map[string]*ConfigOption
	order   []*ConfigOption
}

// NewSchema creates an empty schema.
func NewSchema() *ConfigSchema {
	return &ConfigSchema{options: make(map[string]map[string]*ConfigOption)}
}

// RegisterAll adds opts to the schema. A later option replaces an earlier one
// with the same section and key.
func (s *ConfigSchema) RegisterAll(opts []ConfigOption) {
	for _, opt := range opts {
		ref := &opt
		sec := s.options[opt.Section]
		if sec == nil {
			sec = make(map[string]*ConfigOption)
			s.options[opt.Section] = sec
		}
		if prev, ok := sec[opt.Key]; ok {
			*prev = opt
			continue
		}
		sec[opt.Key] = ref
		s.order = append(s.order, ref)
	}
}

// Lookup returns the option declared for key in section ("" for global), or
// nil.
func (s *ConfigSchema) Lookup(section, key string) *ConfigOption {
	return s.options[section][key]
}

// lookupFor finds key in section, falling back to the global declaration.
func (s *ConfigSchema) lookupFor(section, key string) *ConfigOption {
	if opt := s.Lookup(section, key); opt != nil {
		return opt
	}
	return s.Lookup("", key)
}

// IsKnown reports whether key may appear in section. Global keys may appear
// in any section.
func (s *ConfigSchema) IsKnown(section, key string) bool {
	return s.lookupFor(section, key) != nil
}

// Options returns the options of section in registration order.
func (s *ConfigSchema) Options(section string) []ConfigOption {
	var out []ConfigOption
	for _, o := range s.order {
		if o.Section == section {
			out = append(out, *o)
		}
	}
	return out
}

// Sections returns the sorted command section names.
func (s *ConfigSchema) Sections() []string {
	out := make([]string, 0, len(s.options))
	for sec := range s.options {
		if sec != "" {
			out = append(out, sec)
		}
	}
	sort.Strings(out)
	return out
}

// ValidateConfig returns a sorted list of problems with c: unknown keys and
// values that do not parse as their declared type.
func ValidateConfig(c *Config, s *ConfigSchema) []string {
	var issues []string
	for key, value := range c.Global {
		opt := s.Lookup("", key)
		if opt == nil {
			issues = append(issues, fmt.Sprintf("unknown global option: %q (value: %q)", key, value))
		} else if err := validateType(opt.Type, value); err != nil {
			issues = append(issues, fmt.Sprintf("global option %q: %v", key, err))
		}
	}
	for section, opts := range c.Commands {
		for key, value := range opts {
			opt := s.lookupFor(section, key)
			if opt == nil {
				issues = append(issues, fmt.Sprintf("unknown option for command %q: %q (value: %q)", section, key, value))
			} else if err := validateType(opt.Type, value); err != nil {
				issues = append(issues, fmt.Sprintf("option %q in [%s]: %v", key, section, err))
			}
		}
	}
	sort.Strings(issues)
	return issues
}

func validateType(t OptionType, value string) error {
	var err error
	switch t {
	case TypeString, TypePathList, "":
	case TypeBool:
		_, err = parseBool(value)
	case TypeInt:
		_, err = strconv.Atoi(value)
	case TypeDuration:
		_, err = time.ParseDuration(value)
	default:
		return fmt.Errorf("unknown option type %q", t)
	}
	if err != nil {
		return fmt.Errorf("expected %s, got %q", t, value)
	}
	return nil
}

// FormatHelp renders every option, globals first, then one block per section.
func (s *ConfigSchema) FormatHelp() string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 8, 2, ' ', 0)
	writeBlock := func(title string, opts []ConfigOption) {
		if len(opts) == 0 {
			return
		}
		_, _ = fmt.Fprintln(w, title)
		for _, o := range opts {
			var notes []string
			if o.Type != "" && o.Type != TypeString {
				notes = append(notes, "type: "+string(o.Type))
			}
			if o.Default != "" {
				notes = append(notes, "default: "+o.Default)
			}
			if o.EnvVar != "" {
				notes = append(notes, "env: "+o.EnvVar)
			}
			line := "  " + o.Key + "\t" + o.Description
			if len(notes) > 0 {
				line += " (" + strings.Join(notes, ", ") + ")"
			}
			_, _ = fmt.Fprintln(w, line)
		}
	}
	writeBlock("Global Options:", s.Options(""))
	for _, sec := range s.Sections() {
		writeBlock(fmt.Sprintf("\n[%s] Options:", sec), s.Options(sec))
	}
	_ = w.Flush()
	return b.String()
}

// DefaultSchema returns the options btrun understands.
func DefaultSchema() *ConfigSchema {
	s := NewSchema()
	s.RegisterAll([]ConfigOption{
		{Key: "log.file", Type: TypeString, Description: "Log file path (JSON output, rotated)", EnvVar: "BTRUN_LOG_FILE"},
		{Key: "log.level", Type: TypeString, Default: "info", Description: "Log level: debug, info, warn, error", EnvVar: "BTRUN_LOG_LEVEL"},
		{Key: "log.max-size-mb", Type: TypeInt, Default: "10", Description: "Max log file size in MB before rotation"},
		{Key: "log.max-files", Type: TypeInt, Default: "5", Description: "Max number of rotated log backup files"},

		{Key: "tick.interval", Type: TypeDuration, Default: "10ms", Description: "Longest wait between ticks of a running tree"},
		{Key: "tick.max", Type: TypeInt, Default: "0", Description: "Stop a run after this many ticks (0 = unlimited)"},

		{Key: "tree.search-paths", Type: TypePathList, Description: "Directories searched for <include> paths"},
		{Key: "tree.script-cache-size", Type: TypeInt, Default: "256", Description: "Compiled script expressions kept per factory"},

		{Key: "metrics.addr", Type: TypeString, Description: "Serve Prometheus metrics on this address during runs", EnvVar: "BTRUN_METRICS_ADDR"},
		{Key: "metrics.namespace", Type: TypeString, Default: "btrun", Description: "Prometheus metric namespace"},

		{Key: "tree", Section: "run", Type: TypeString, Description: "Tree ID to run instead of the main tree"},
		{Key: "print", Section: "run", Type: TypeBool, Default: "false", Description: "Print the tree before running it"},
		{Key: "observe", Section: "run", Type: TypeBool, Default: "false", Description: "Log every node status change"},

		{Key: "xml", Section: "nodes", Type: TypeBool, Default: "false", Description: "Emit a TreeNodesModel document"},
	})
	return s
}
