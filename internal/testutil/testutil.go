// Package testutil provides shared helpers for kamado tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kamado-dev/kamado/internal/config"
)

// NewTestConfig creates a config rooted in an isolated temporary
// directory with all kamado directories created.
func NewTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.New(filepath.Join(t.TempDir(), "kamado"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("failed to create test directories: %v", err)
	}
	return cfg
}

// WriteExecutable writes an executable file into dir and returns its
// path.
func WriteExecutable(t *testing.T, dir, name string, body []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, body, 0755); err != nil {
		t.Fatalf("failed to write executable %s: %v", name, err)
	}
	return path
}
