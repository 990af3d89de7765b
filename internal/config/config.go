// Package config holds toolchain constants and the project configuration.
//
// A project is described by monc.yaml (or monc.toml):
//   - entry: the exported function to call
//   - args: integer arguments passed to it
//   - modules: IL module files or @store names to link
//   - max_cycles / max_call_depth: VM limits
//   - breakpoints: file:line locations armed before the run starts
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents a monc.yaml project file.
type Config struct {
	// Entry is the exported function name to call.
	Entry string `yaml:"entry" toml:"entry"`

	// Args are passed to the entry function, one word each.
	Args []int32 `yaml:"args,omitempty" toml:"args,omitempty"`

	// Modules lists serialized IL modules, relative to the config file,
	// or module store names prefixed with "@".
	Modules []string `yaml:"modules" toml:"modules"`

	// MaxCycles aborts the run after this many VM cycles. Zero disables the budget.
	MaxCycles int `yaml:"max_cycles,omitempty" toml:"max_cycles,omitempty"`

	// MaxCallDepth bounds the VM call stack.
	MaxCallDepth int `yaml:"max_call_depth,omitempty" toml:"max_call_depth,omitempty"`

	// AllowUndefined links even when some callees stay unresolved.
	AllowUndefined bool `yaml:"allow_undefined,omitempty" toml:"allow_undefined,omitempty"`

	// Store is the path of the module store database.
	Store string `yaml:"store,omitempty" toml:"store,omitempty"`

	// Breakpoints are "file:line" locations.
	Breakpoints []string `yaml:"breakpoints,omitempty" toml:"breakpoints,omitempty"`

	// Debug starts the run under the debugger CLI.
	Debug bool `yaml:"debug,omitempty" toml:"debug,omitempty"`

	// NoColor disables colored log output.
	NoColor bool `yaml:"no_color,omitempty" toml:"no_color,omitempty"`

	// Dir is the directory the config was loaded from.
	Dir string `yaml:"-" toml:"-"`
}

// Default returns a config with default values.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// Load reads a config file. The decoder is chosen by extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse parses config content. The path selects the format and is used in errors.
func Parse(data []byte, path string) (*Config, error) {
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("parse error in %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	cfg.Dir = filepath.Dir(path)
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// Find searches for a config file starting from dir and walking up to
// parent directories. It returns "" and a nil error when none is found.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range ConfigFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Validate checks the configuration for semantic errors.
func (c *Config) Validate() error {
	if c.MaxCycles < 0 {
		return fmt.Errorf("max_cycles must not be negative, got %d", c.MaxCycles)
	}
	if c.MaxCallDepth < 0 {
		return fmt.Errorf("max_call_depth must not be negative, got %d", c.MaxCallDepth)
	}
	for i, m := range c.Modules {
		if m == "" || m == StoreModulePrefix {
			return fmt.Errorf("modules[%d]: empty module reference", i)
		}
	}
	for i, bp := range c.Breakpoints {
		if _, _, err := ParseBreakpoint(bp); err != nil {
			return fmt.Errorf("breakpoints[%d]: %w", i, err)
		}
	}
	return nil
}

// ModulePath resolves a module reference relative to the config directory.
// Store references are returned unchanged.
func (c *Config) ModulePath(ref string) string {
	if strings.HasPrefix(ref, StoreModulePrefix) || filepath.IsAbs(ref) || c.Dir == "" {
		return ref
	}
	return filepath.Join(c.Dir, ref)
}

// StorePath resolves the module store location relative to the config directory.
func (c *Config) StorePath() string {
	if filepath.IsAbs(c.Store) || c.Dir == "" {
		return c.Store
	}
	return filepath.Join(c.Dir, c.Store)
}

// setDefaults fills in default values for omitted fields.
func (c *Config) setDefaults() {
	if c.Entry == "" {
		c.Entry = DefaultEntry
	}
	if c.MaxCallDepth == 0 {
		c.MaxCallDepth = DefaultMaxCallDepth
	}
	if c.Store == "" {
		c.Store = DefaultStorePath
	}
}

var errBreakpointFormat = errors.New("invalid breakpoint, expected [file:]line")

// ParseBreakpoint splits "file:line" (or a bare "line") into its parts.
func ParseBreakpoint(spec string) (file string, line int, err error) {
	lineText := spec
	if i := strings.LastIndex(spec, ":"); i >= 0 {
		file, lineText = spec[:i], spec[i+1:]
		if file == "" {
			return "", 0, fmt.Errorf("%w: %q", errBreakpointFormat, spec)
		}
	}
	line, err = strconv.Atoi(lineText)
	if err != nil || line <= 0 {
		return "", 0, fmt.Errorf("%w: %q", errBreakpointFormat, spec)
	}
	return file, line, nil
}
