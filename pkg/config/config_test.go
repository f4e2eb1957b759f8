package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid, got %v", err)
	}
	if cfg.Resolver.MaxIterations != 256 {
		t.Errorf("expected default max_iterations 256, got %d", cfg.Resolver.MaxIterations)
	}
	if cfg.Resolver.Precedence != PrecedenceDAG {
		t.Errorf("expected default precedence dag, got %q", cfg.Resolver.Precedence)
	}
}

func TestValidateRejectsBadFields(t *testing.T) {
	cfg := Default()
	cfg.Resolver.MaxIterations = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for zero max_iterations")
	}

	cfg = Default()
	cfg.Resolver.Precedence = "sideways"
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for an invalid precedence mode")
	}

	cfg = Default()
	cfg.Diagnostics.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for an invalid diagnostics format")
	}
}

func TestLoadReadsProjectConfigAndAppliesOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir) // keep the user-config layer out of this test
	projectToml := "[resolver]\nmax_iterations = 42\nprecedence = \"off\"\n"
	if err := os.WriteFile(filepath.Join(dir, "threebx.toml"), []byte(projectToml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir, &Config{Diagnostics: DiagnosticsConfig{Format: FormatJSON}})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Resolver.MaxIterations != 42 {
		t.Errorf("expected project config's max_iterations 42, got %d", cfg.Resolver.MaxIterations)
	}
	if cfg.Resolver.Precedence != PrecedenceOff {
		t.Errorf("expected project config's precedence off, got %q", cfg.Resolver.Precedence)
	}
	if cfg.Diagnostics.Format != FormatJSON {
		t.Errorf("expected override's diagnostics format json, got %q", cfg.Diagnostics.Format)
	}
}

func TestLoadWithoutProjectFileFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	cfg, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Resolver.MaxIterations != 256 {
		t.Errorf("expected default max_iterations, got %d", cfg.Resolver.MaxIterations)
	}
}
