package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestConfigParsing(t *testing.T) {
	t.Parallel()

	configContent := `# Global options
log.level debug
tick.interval 50ms

[run]
tree   Patrol
print true

[nodes]
xml true`

	config, err := LoadFromReader(strings.NewReader(configContent))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if value, ok := config.GetGlobalOption("log.level"); !ok || value != "debug" {
		t.Errorf("Expected log.level=debug, got %s (exists: %v)", value, ok)
	}
	if value, ok := config.GetCommandOption("run", "tree"); !ok || value != "Patrol" {
		t.Errorf("Expected run.tree=Patrol, got %q (exists: %v)", value, ok)
	}
	if value, ok := config.GetCommandOption("run", "tick.interval"); !ok || value != "50ms" {
		t.Errorf("Expected run.tick.interval=50ms (fallback), got %s (exists: %v)", value, ok)
	}
	if value, ok := config.GetCommandOption("nodes", "xml"); !ok || value != "true" {
		t.Errorf("Expected nodes.xml=true, got %s (exists: %v)", value, ok)
	}
	if value, ok := config.GetCommandOption("nonexistent", "option"); ok {
		t.Errorf("Expected nonexistent option to not exist, but got %s", value)
	}
	if len(config.GetWarnings()) > 0 {
		t.Errorf("Expected no warnings, got %v", config.GetWarnings())
	}
}

func TestConfigOptionWithoutValue(t *testing.T) {
	t.Parallel()

	config, err := LoadFromReader(strings.NewReader("log.file\n"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if value, ok := config.GetGlobalOption("log.file"); !ok || value != "" {
		t.Errorf("Expected empty log.file, got %q (exists: %v)", value, ok)
	}
}

func TestConfigWarnings(t *testing.T) {
	t.Parallel()

	config, err := LoadFromReader(strings.NewReader("bogus 1\ntick.max many\n[run]\nunknown x\n"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	warnings := config.GetWarnings()
	if len(warnings) != 3 {
		t.Fatalf("Expected 3 warnings, got %d: %v", len(warnings), warnings)
	}
	joined := strings.Join(warnings, "\n")
	for _, want := range []string{`"bogus"`, `"tick.max"`, `command "run"`} {
		if !strings.Contains(joined, want) {
			t.Errorf("Expected a warning mentioning %s, got %v", want, warnings)
		}
	}
}

func TestSetOptions(t *testing.T) {
	t.Parallel()

	config := NewConfig()
	config.SetGlobalOption("log.level", "warn")
	config.SetCommandOption("run", "print", "true")

	if value, _ := config.GetGlobalOption("log.level"); value != "warn" {
		t.Errorf("Expected log.level=warn, got %q", value)
	}
	if value, _ := config.GetCommandOption("run", "print"); value != "true" {
		t.Errorf("Expected run.print=true, got %q", value)
	}
	if value, ok := config.GetCommandOption("run", "log.level"); !ok || value != "warn" {
		t.Errorf("Expected fallback to global log.level, got %q", value)
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	t.Parallel()

	config, err := LoadFromPath(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("Expected missing file to give an empty config, got %v", err)
	}
	if len(config.Global) != 0 {
		t.Errorf("Expected empty config, got %v", config.Global)
	}
}

func TestLoadFromPathRejectsSymlink(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on Windows")
	}

	dir := t.TempDir()
	target := filepath.Join(dir, "real")
	if err := os.WriteFile(target, []byte("log.level debug\n"), 0644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "config")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFromPath(link); err == nil || !strings.Contains(err.Error(), "symlink") {
		t.Fatalf("Expected symlink error, got %v", err)
	}
}

func TestGetConfigPathEnvOverride(t *testing.T) {
	t.Setenv(ConfigEnvVar, "/tmp/custom-config")

	got, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath returned error: %v", err)
	}
	if got != "/tmp/custom-config" {
		t.Fatalf("expected override path, got %q", got)
	}
}

func TestGetConfigPathDefault(t *testing.T) {
	dir := t.TempDir()
	homeVar := "HOME"
	if runtime.GOOS == "windows" {
		homeVar = "USERPROFILE"
	}
	t.Setenv(homeVar, dir)
	t.Setenv(ConfigEnvVar, "")

	got, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath returned error: %v", err)
	}
	if expected := filepath.Join(dir, ".btrun", "config"); got != expected {
		t.Fatalf("expected default path %q, got %q", expected, got)
	}
}

func TestEnsureConfigDirCreatesDirectory(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config")
	t.Setenv(ConfigEnvVar, configPath)

	if err := EnsureConfigDir(); err != nil {
		t.Fatalf("EnsureConfigDir failed: %v", err)
	}
	info, err := os.Stat(filepath.Dir(configPath))
	if err != nil {
		t.Fatalf("expected config directory to exist: %v", err)
	}
	if !info.IsDir() {
		t.Fatalf("expected config directory, got %v", info.Mode())
	}
}
