// Package config holds the filesystem roots and tunables for kamado.
//
// Every component receives its paths through a Config value instead of
// reaching for a fixed home-directory location, so tests run against
// isolated temporary roots.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// EnvKamadoHome overrides the default kamado home directory.
	EnvKamadoHome = "KAMADO_HOME"

	// EnvFetchTimeout configures the per-attempt timeout for network
	// fetches. Accepts duration strings like "30s", "2m".
	EnvFetchTimeout = "KAMADO_FETCH_TIMEOUT"

	// EnvFetchRetries configures the retry bound for transient
	// network errors.
	EnvFetchRetries = "KAMADO_FETCH_RETRIES"

	// DefaultFetchTimeout is the default per-attempt fetch timeout.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultFetchRetries is the default retry bound for transient
	// network errors. The effective ceiling of a fetch is
	// DefaultFetchTimeout * (DefaultFetchRetries + 1).
	DefaultFetchRetries = 3
)

// Config holds all kamado directories.
type Config struct {
	// HomeDir is the kamado root, typically ~/.kamado.
	HomeDir string

	// ToolchainsDir holds installed toolchains, namespaced by
	// version and target so multiple installs coexist.
	ToolchainsDir string

	// ManifestsDir is the local publish root for manifests.
	ManifestsDir string

	// ArtifactsDir is the local publish root for packaged archives.
	ArtifactsDir string

	// StagingDir holds per-attempt staging directories for fetch and
	// extract. Contents are disposable.
	StagingDir string
}

// New builds a Config rooted at homeDir.
func New(homeDir string) *Config {
	return &Config{
		HomeDir:       homeDir,
		ToolchainsDir: filepath.Join(homeDir, "toolchains"),
		ManifestsDir:  filepath.Join(homeDir, "manifests"),
		ArtifactsDir:  filepath.Join(homeDir, "artifacts"),
		StagingDir:    filepath.Join(homeDir, "staging"),
	}
}

// DefaultConfig returns the configuration rooted at KAMADO_HOME, or
// ~/.kamado when the variable is unset.
func DefaultConfig() (*Config, error) {
	if home := os.Getenv(EnvKamadoHome); home != "" {
		return New(home), nil
	}

	userHome, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to determine home directory: %w", err)
	}
	return New(filepath.Join(userHome, ".kamado")), nil
}

// EnsureDirectories creates all kamado directories if missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.HomeDir, c.ToolchainsDir, c.ManifestsDir, c.ArtifactsDir, c.StagingDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ToolchainDir returns the final install location for one toolchain
// version on one target and profile. The layout keeps concurrent
// versions from colliding.
func (c *Config) ToolchainDir(version, target, profile string) string {
	return filepath.Join(c.ToolchainsDir, version, target, profile)
}

// ManifestPath returns the local manifest file for a target.
func (c *Config) ManifestPath(target string) string {
	return filepath.Join(c.ManifestsDir, target+".toml")
}

// ArtifactPath returns the local path for a named archive.
func (c *Config) ArtifactPath(name string) string {
	return filepath.Join(c.ArtifactsDir, name)
}

// GetFetchTimeout returns the per-attempt fetch timeout from
// KAMADO_FETCH_TIMEOUT. If not set or invalid, returns
// DefaultFetchTimeout.
func GetFetchTimeout() time.Duration {
	envValue := os.Getenv(EnvFetchTimeout)
	if envValue == "" {
		return DefaultFetchTimeout
	}

	duration, err := time.ParseDuration(envValue)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid %s value %q, using default %v\n",
			EnvFetchTimeout, envValue, DefaultFetchTimeout)
		return DefaultFetchTimeout
	}

	if duration < 1*time.Second {
		fmt.Fprintf(os.Stderr, "Warning: %s too low (%v), using minimum 1s\n",
			EnvFetchTimeout, duration)
		return 1 * time.Second
	}
	if duration > 10*time.Minute {
		fmt.Fprintf(os.Stderr, "Warning: %s too high (%v), using maximum 10m\n",
			EnvFetchTimeout, duration)
		return 10 * time.Minute
	}

	return duration
}

// GetFetchRetries returns the retry bound from KAMADO_FETCH_RETRIES.
// If not set or invalid, returns DefaultFetchRetries.
func GetFetchRetries() int {
	envValue := os.Getenv(EnvFetchRetries)
	if envValue == "" {
		return DefaultFetchRetries
	}

	n, err := strconv.Atoi(envValue)
	if err != nil || n < 0 {
		fmt.Fprintf(os.Stderr, "Warning: invalid %s value %q, using default %d\n",
			EnvFetchRetries, envValue, DefaultFetchRetries)
		return DefaultFetchRetries
	}

	if n > 10 {
		fmt.Fprintf(os.Stderr, "Warning: %s too high (%d), using maximum 10\n",
			EnvFetchRetries, n)
		return 10
	}

	return n
}
