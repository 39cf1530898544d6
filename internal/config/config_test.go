package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigUsesEnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv(EnvKamadoHome, tmpDir)

	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig() error = %v", err)
	}

	if cfg.HomeDir != tmpDir {
		t.Errorf("HomeDir = %q, want %q", cfg.HomeDir, tmpDir)
	}
	if cfg.ToolchainsDir != filepath.Join(tmpDir, "toolchains") {
		t.Errorf("ToolchainsDir = %q", cfg.ToolchainsDir)
	}
}

func TestDefaultConfigFallsBackToUserHome(t *testing.T) {
	t.Setenv(EnvKamadoHome, "")

	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig() error = %v", err)
	}

	home, _ := os.UserHomeDir()
	if cfg.HomeDir != filepath.Join(home, ".kamado") {
		t.Errorf("HomeDir = %q, want under user home", cfg.HomeDir)
	}
}

func TestEnsureDirectories(t *testing.T) {
	cfg := New(filepath.Join(t.TempDir(), "kamado"))

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories() error = %v", err)
	}

	for _, dir := range []string{cfg.ToolchainsDir, cfg.ManifestsDir, cfg.ArtifactsDir, cfg.StagingDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Errorf("directory %s not created: %v", dir, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}
}

func TestToolchainDirLayout(t *testing.T) {
	cfg := New("/home/user/.kamado")

	got := cfg.ToolchainDir("v1.2.0", "x86_64-unknown-linux-gnu", "release")
	want := "/home/user/.kamado/toolchains/v1.2.0/x86_64-unknown-linux-gnu/release"
	if got != want {
		t.Errorf("ToolchainDir = %q, want %q", got, want)
	}
}

func TestManifestPath(t *testing.T) {
	cfg := New("/home/user/.kamado")

	got := cfg.ManifestPath("aarch64-apple-darwin")
	want := "/home/user/.kamado/manifests/aarch64-apple-darwin.toml"
	if got != want {
		t.Errorf("ManifestPath = %q, want %q", got, want)
	}
}

func TestGetFetchTimeout(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"unset", "", DefaultFetchTimeout},
		{"valid", "45s", 45 * time.Second},
		{"invalid", "bogus", DefaultFetchTimeout},
		{"too low", "10ms", 1 * time.Second},
		{"too high", "1h", 10 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvFetchTimeout, tt.value)
			if got := GetFetchTimeout(); got != tt.want {
				t.Errorf("GetFetchTimeout() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetFetchRetries(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"unset", "", DefaultFetchRetries},
		{"valid", "5", 5},
		{"zero disables retry", "0", 0},
		{"negative", "-1", DefaultFetchRetries},
		{"invalid", "many", DefaultFetchRetries},
		{"too high", "50", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvFetchRetries, tt.value)
			if got := GetFetchRetries(); got != tt.want {
				t.Errorf("GetFetchRetries() = %v, want %v", got, tt.want)
			}
		})
	}
}
