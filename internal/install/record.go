package install

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/kamado-dev/kamado/internal/config"
	"github.com/kamado-dev/kamado/internal/manifest"
)

// recordFile is written into every installed toolchain directory and
// marks it complete. A directory without one is staging debris, never
// a toolchain.
const recordFile = "installed.toml"

// InstalledToolchain records one placed toolchain.
type InstalledToolchain struct {
	Language    string           `toml:"language,omitempty"`
	Profile     manifest.Profile `toml:"profile"`
	Target      string           `toml:"target"`
	Version     string           `toml:"version"`
	InstallDir  string           `toml:"install-dir"`
	Binaries    []string         `toml:"binaries"`
	InstalledAt time.Time        `toml:"installed-at"`
}

// NewRecord builds the record for a toolchain about to be placed at
// installDir.
func NewRecord(key manifest.ArtifactKey, installDir string, binaries []string) InstalledToolchain {
	return InstalledToolchain{
		Language:    key.Language,
		Profile:     key.Profile,
		Target:      key.Target,
		Version:     key.Version,
		InstallDir:  installDir,
		Binaries:    binaries,
		InstalledAt: time.Now().UTC().Truncate(time.Second),
	}
}

// Key returns the artifact key this toolchain was installed from.
func (t InstalledToolchain) Key() manifest.ArtifactKey {
	return manifest.ArtifactKey{
		Language: t.Language,
		Profile:  t.Profile,
		Target:   t.Target,
		Version:  t.Version,
	}
}

func (t InstalledToolchain) write(dir string) error {
	f, err := os.Create(filepath.Join(dir, recordFile))
	if err != nil {
		return fmt.Errorf("failed to write install record: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(t); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode install record: %w", err)
	}
	return f.Close()
}

// ReadRecord loads the install record from a toolchain directory.
// os.ErrNotExist means the directory holds no complete install.
func ReadRecord(dir string) (InstalledToolchain, error) {
	var t InstalledToolchain
	if _, err := toml.DecodeFile(filepath.Join(dir, recordFile), &t); err != nil {
		if os.IsNotExist(err) {
			return InstalledToolchain{}, fmt.Errorf("no install record in %s: %w", dir, os.ErrNotExist)
		}
		return InstalledToolchain{}, fmt.Errorf("failed to read install record in %s: %w", dir, err)
	}
	return t, nil
}

// List returns every installed toolchain under the configured root,
// ordered by version, then target, then profile. Directories without
// an install record are skipped.
func List(cfg *config.Config) ([]InstalledToolchain, error) {
	versions, err := os.ReadDir(cfg.ToolchainsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read toolchains directory: %w", err)
	}

	var installed []InstalledToolchain
	for _, version := range versions {
		if !version.IsDir() {
			continue
		}
		versionDir := filepath.Join(cfg.ToolchainsDir, version.Name())
		targets, err := os.ReadDir(versionDir)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", versionDir, err)
		}
		for _, target := range targets {
			if !target.IsDir() {
				continue
			}
			targetDir := filepath.Join(versionDir, target.Name())
			profiles, err := os.ReadDir(targetDir)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", targetDir, err)
			}
			for _, profile := range profiles {
				if !profile.IsDir() {
					continue
				}
				record, err := ReadRecord(filepath.Join(targetDir, profile.Name()))
				if err != nil {
					continue
				}
				installed = append(installed, record)
			}
		}
	}
	return installed, nil
}
