// Package config provides configuration management for the 3BX compiler.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DiagnosticsFormat selects how diagnostics are rendered by the CLI.
type DiagnosticsFormat string

const (
	FormatPretty DiagnosticsFormat = "pretty"
	FormatJSON   DiagnosticsFormat = "json"
)

func (f DiagnosticsFormat) IsValid() bool {
	switch f {
	case FormatPretty, FormatJSON:
		return true
	default:
		return false
	}
}

// PrecedenceMode controls whether `priority: before "..."` directives
// are honored by the resolver.
type PrecedenceMode string

const (
	PrecedenceOff PrecedenceMode = "off"
	PrecedenceDAG PrecedenceMode = "dag"
)

func (m PrecedenceMode) IsValid() bool {
	switch m {
	case PrecedenceOff, PrecedenceDAG:
		return true
	default:
		return false
	}
}

// Config is the complete 3BX project configuration.
type Config struct {
	Resolver    ResolverConfig    `toml:"resolver"`
	Import      ImportConfig      `toml:"import"`
	Diagnostics DiagnosticsConfig `toml:"diagnostics"`
}

// ResolverConfig controls the pattern resolver's fixpoint loop.
type ResolverConfig struct {
	// MaxIterations bounds the fixpoint loop; default 256.
	MaxIterations int `toml:"max_iterations"`

	// Precedence selects whether priority directives feed a tie-break DAG.
	Precedence PrecedenceMode `toml:"precedence"`
}

// ImportConfig controls the import merger.
type ImportConfig struct {
	// LibDirs are extra base directories searched for a lib/ directory,
	// beyond the upward walk from the importing file.
	LibDirs []string `toml:"lib_dirs"`

	// Prelude is the path injected at the head of the root file unless
	// textually present already. Empty disables prelude injection.
	Prelude string `toml:"prelude"`

	// MaxUpwardSteps bounds how far the merger walks upward from the
	// importing file's directory looking for a lib/ directory.
	MaxUpwardSteps int `toml:"max_upward_steps"`
}

// DiagnosticsConfig controls how the CLI renders the diagnostics bus.
type DiagnosticsConfig struct {
	Format DiagnosticsFormat `toml:"format"`
}

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		Resolver: ResolverConfig{
			MaxIterations: 256,
			Precedence:    PrecedenceDAG,
		},
		Import: ImportConfig{
			LibDirs:        nil,
			Prelude:        "",
			MaxUpwardSteps: 8,
		},
		Diagnostics: DiagnosticsConfig{
			Format: FormatPretty,
		},
	}
}

// Load loads configuration with precedence:
//  1. built-in defaults (lowest)
//  2. user config (~/.3bx/config.toml)
//  3. project config (threebx.toml in dir)
//  4. overrides (highest, typically CLI flags)
func Load(dir string, overrides *Config) (*Config, error) {
	cfg := Default()

	userPath := filepath.Join(os.Getenv("HOME"), ".3bx", "config.toml")
	if err := loadFile(userPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}

	projectPath := filepath.Join(dir, "threebx.toml")
	if err := loadFile(projectPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to load project config: %w", err)
	}

	if overrides != nil {
		if overrides.Resolver.MaxIterations != 0 {
			cfg.Resolver.MaxIterations = overrides.Resolver.MaxIterations
		}
		if overrides.Resolver.Precedence != "" {
			cfg.Resolver.Precedence = overrides.Resolver.Precedence
		}
		if overrides.Diagnostics.Format != "" {
			cfg.Diagnostics.Format = overrides.Diagnostics.Format
		}
		if overrides.Import.Prelude != "" {
			cfg.Import.Prelude = overrides.Import.Prelude
		}
		if len(overrides.Import.LibDirs) > 0 {
			cfg.Import.LibDirs = append(cfg.Import.LibDirs, overrides.Import.LibDirs...)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Resolver.MaxIterations <= 0 {
		return fmt.Errorf("resolver.max_iterations must be positive, got %d", c.Resolver.MaxIterations)
	}
	if !c.Resolver.Precedence.IsValid() {
		return fmt.Errorf("invalid resolver.precedence: %q (must be %q or %q)", c.Resolver.Precedence, PrecedenceOff, PrecedenceDAG)
	}
	if !c.Diagnostics.Format.IsValid() {
		return fmt.Errorf("invalid diagnostics.format: %q (must be %q or %q)", c.Diagnostics.Format, FormatPretty, FormatJSON)
	}
	if c.Import.MaxUpwardSteps < 0 {
		return fmt.Errorf("import.max_upward_steps must be non-negative, got %d", c.Import.MaxUpwardSteps)
	}
	return nil
}
