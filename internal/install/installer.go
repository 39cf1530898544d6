// Package install places fetched toolchains into their final
// versioned directories.
//
// An install request moves through explicit phases (resolve, fetch,
// verify, extract, place) so partial-failure states are enumerable
// rather than implicit in control flow. Extraction happens in a
// uniquely named staging directory; the only synchronization point is
// the final atomic rename, so a concurrent reader never observes a
// partially extracted toolchain and two racing installs cannot
// corrupt each other.
package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kamado-dev/kamado/internal/codec"
	"github.com/kamado-dev/kamado/internal/config"
	"github.com/kamado-dev/kamado/internal/fetch"
	"github.com/kamado-dev/kamado/internal/log"
	"github.com/kamado-dev/kamado/internal/manifest"
	"github.com/kamado-dev/kamado/internal/resolve"
)

// Phase names the step of the install state machine an error occurred
// in. The machine is Resolving -> Fetching -> Verifying -> Extracting
// -> Installed, with failure terminal from any phase.
type Phase string

const (
	PhaseResolving  Phase = "resolving"
	PhaseFetching   Phase = "fetching"
	PhaseVerifying  Phase = "verifying"
	PhaseExtracting Phase = "extracting"
	PhaseInstalled  Phase = "installed"
)

// Error wraps an install failure with the phase it occurred in and
// the artifact key it concerns.
type Error struct {
	Phase Phase
	Key   manifest.ArtifactKey
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("install of %s failed while %s: %v", e.Key, e.Phase, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Installer orchestrates resolve, fetch, verify, and placement.
type Installer struct {
	cfg     *config.Config
	fetcher *fetch.Fetcher
	logger  log.Logger
}

// Option configures an Installer.
type Option func(*Installer)

// WithFetcher replaces the fetcher.
func WithFetcher(f *fetch.Fetcher) Option {
	return func(i *Installer) { i.fetcher = f }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(i *Installer) { i.logger = l }
}

// New creates an Installer rooted at cfg.
func New(cfg *config.Config, opts ...Option) *Installer {
	inst := &Installer{cfg: cfg, logger: log.Default()}
	for _, opt := range opts {
		opt(inst)
	}
	if inst.fetcher == nil {
		inst.fetcher = fetch.New(cfg)
	}
	return inst
}

// Install resolves the request against the manifest, fetches and
// verifies the artifact, and places it under the versioned toolchain
// directory.
//
// If the final directory already holds the same key the request is
// already satisfied and nothing is re-fetched. Installed bytes are
// not re-verified here; Verify is the explicit integrity-check
// operation.
func (i *Installer) Install(ctx context.Context, m manifest.Manifest, f manifest.Filter, constraint string) (InstalledToolchain, error) {
	entry, err := resolve.Resolve(m, f, constraint)
	if err != nil {
		return InstalledToolchain{}, &Error{
			Phase: PhaseResolving,
			Key:   manifest.ArtifactKey{Language: f.Language, Profile: f.Profile, Target: f.Target, Version: constraint},
			Err:   err,
		}
	}
	key := entry.Key()
	logger := i.logger.With("artifact", key.String())

	finalDir := i.cfg.ToolchainDir(entry.Version, entry.Target, string(entry.Profile))
	if existing, err := ReadRecord(finalDir); err == nil && existing.Key() == key {
		logger.Info("toolchain already installed", "dir", finalDir)
		return existing, nil
	}

	logger.Info("fetching artifact", "location", entry.Location)
	archivePath, err := i.fetcher.Fetch(ctx, entry)
	if err != nil {
		phase := PhaseFetching
		if fetch.IsDigestMismatch(err) {
			phase = PhaseVerifying
		}
		return InstalledToolchain{}, &Error{Phase: phase, Key: key, Err: err}
	}
	// The digest gate already ran inside the fetcher; a staged
	// archive is a verified archive.
	installed, err := i.place(entry, archivePath, finalDir, logger)
	if err != nil {
		return InstalledToolchain{}, &Error{Phase: PhaseExtracting, Key: key, Err: err}
	}

	logger.Info("toolchain installed", "dir", installed.InstallDir)
	return installed, nil
}

// place extracts into a unique staging directory and renames it into
// the final location.
func (i *Installer) place(entry manifest.ArtifactEntry, archivePath, finalDir string, logger log.Logger) (InstalledToolchain, error) {
	if err := os.MkdirAll(i.cfg.StagingDir, 0755); err != nil {
		return InstalledToolchain{}, fmt.Errorf("failed to create staging root: %w", err)
	}

	// MkdirTemp gives every attempt its own staging directory, so
	// concurrent installs of the same key cannot collide before the
	// rename.
	stagingDir, err := os.MkdirTemp(i.cfg.StagingDir, "install-*")
	if err != nil {
		return InstalledToolchain{}, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)
	defer i.removeStagedArchive(archivePath)

	written, err := codec.Extract(archivePath, stagingDir)
	if err != nil {
		return InstalledToolchain{}, err
	}
	if len(written) == 0 {
		return InstalledToolchain{}, fmt.Errorf("archive %s contains no files", entry.Location)
	}

	record := NewRecord(entry.Key(), finalDir, written)
	if err := record.write(stagingDir); err != nil {
		return InstalledToolchain{}, err
	}

	if err := os.MkdirAll(filepath.Dir(finalDir), 0755); err != nil {
		return InstalledToolchain{}, fmt.Errorf("failed to create toolchain parent: %w", err)
	}

	if err := os.Rename(stagingDir, finalDir); err != nil {
		// A concurrent install won the rename. The destination is a
		// complete toolchain for the same key, so the request is
		// satisfied.
		if existing, readErr := ReadRecord(finalDir); readErr == nil && existing.Key() == entry.Key() {
			logger.Debug("concurrent install won the rename", "dir", finalDir)
			return existing, nil
		}
		return InstalledToolchain{}, fmt.Errorf("failed to place toolchain: %w", err)
	}

	return record, nil
}

// removeStagedArchive deletes a fetch staging file once extraction is
// done. Archives outside the staging dir (local artifacts) are kept.
func (i *Installer) removeStagedArchive(archivePath string) {
	rel, err := filepath.Rel(i.cfg.StagingDir, archivePath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	os.Remove(archivePath)
}

// Remove uninstalls one toolchain version. Removing a toolchain that
// is not installed is an error.
func (i *Installer) Remove(key manifest.ArtifactKey) error {
	dir := i.cfg.ToolchainDir(key.Version, key.Target, string(key.Profile))
	if _, err := ReadRecord(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("toolchain %s is not installed", key)
		}
		return err
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove toolchain %s: %w", key, err)
	}
	i.logger.Info("toolchain removed", "artifact", key.String(), "dir", dir)
	return pruneEmptyParents(dir, i.cfg.ToolchainsDir)
}

// pruneEmptyParents removes now-empty version/target directories up
// to the toolchains root.
func pruneEmptyParents(dir, root string) error {
	for parent := filepath.Dir(dir); parent != root && len(parent) > len(root); parent = filepath.Dir(parent) {
		if err := os.Remove(parent); err != nil {
			// Not empty or already gone; either way we are done.
			return nil
		}
	}
	return nil
}
