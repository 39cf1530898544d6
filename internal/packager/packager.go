// Package packager turns built toolchain binaries into a versioned,
// digest-anchored archive ready for manifest publication.
package packager

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/kamado-dev/kamado/internal/codec"
	"github.com/kamado-dev/kamado/internal/config"
	"github.com/kamado-dev/kamado/internal/log"
	"github.com/kamado-dev/kamado/internal/manifest"
)

// MissingBinaryError indicates a requested binary that does not exist
// or is not executable.
type MissingBinaryError struct {
	Path   string
	Reason string
}

func (e *MissingBinaryError) Error() string {
	return fmt.Sprintf("missing binary %s: %s", e.Path, e.Reason)
}

// IsMissingBinary reports whether err concerns an absent or
// non-executable binary.
func IsMissingBinary(err error) bool {
	var mb *MissingBinaryError
	return errors.As(err, &mb)
}

// Request describes one packaging run.
type Request struct {
	Language string
	Profile  manifest.Profile
	Target   string
	Version  string

	// Binaries are paths to the built executables to include.
	Binaries []string
}

// Packager collects built binaries into reproducible archives.
type Packager struct {
	cfg    *config.Config
	logger log.Logger
}

// Option configures a Packager.
type Option func(*Packager)

// WithLogger sets the logger used during packaging.
func WithLogger(l log.Logger) Option {
	return func(p *Packager) { p.logger = l }
}

// New creates a Packager writing archives under cfg.ArtifactsDir.
func New(cfg *config.Config, opts ...Option) *Packager {
	p := &Packager{cfg: cfg, logger: log.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ArchiveName returns the deterministic artifact filename for a key,
// so re-running packaging for identical inputs lands on the same
// path.
func ArchiveName(version, target string, profile manifest.Profile) string {
	return fmt.Sprintf("kamado-toolchain-%s-%s-%s.tar.gz", version, target, profile)
}

// Package archives the requested binaries and returns the manifest
// entry describing the result.
//
// The archive is written to exactly one deterministic location;
// manifest publication is a separate explicit step so a partial
// failure never leaves a manifest pointing at a missing artifact.
func (p *Packager) Package(req Request) (manifest.ArtifactEntry, error) {
	key := manifest.ArtifactKey{
		Language: req.Language,
		Profile:  req.Profile,
		Target:   req.Target,
		Version:  req.Version,
	}
	if err := key.Validate(); err != nil {
		return manifest.ArtifactEntry{}, fmt.Errorf("artifact %s: %w", key, err)
	}
	if len(req.Binaries) == 0 {
		return manifest.ArtifactEntry{}, fmt.Errorf("artifact %s: no binaries to package", key)
	}

	entries, err := collectBinaries(req.Binaries)
	if err != nil {
		return manifest.ArtifactEntry{}, fmt.Errorf("artifact %s: %w", key, err)
	}

	data, err := codec.Archive(entries)
	if err != nil {
		return manifest.ArtifactEntry{}, fmt.Errorf("artifact %s: %w", key, err)
	}
	digest := codec.DigestBytes(data)

	if err := os.MkdirAll(p.cfg.ArtifactsDir, 0755); err != nil {
		return manifest.ArtifactEntry{}, fmt.Errorf("artifact %s: failed to create output directory: %w", key, err)
	}

	outPath := p.cfg.ArtifactPath(ArchiveName(req.Version, req.Target, req.Profile))
	if err := writeFileAtomic(outPath, data); err != nil {
		return manifest.ArtifactEntry{}, fmt.Errorf("artifact %s: %w", key, err)
	}

	p.logger.Info("packaged toolchain",
		"artifact", key.String(),
		"archive", outPath,
		"digest", digest,
		"binaries", len(entries))

	return manifest.ArtifactEntry{
		ArtifactKey: key,
		Location:    outPath,
		Digest:      digest,
		Size:        int64(len(data)),
	}, nil
}

// collectBinaries validates and reads the executables, addressing
// each archive entry by its executable name only so no build-machine
// paths leak into the artifact.
func collectBinaries(paths []string) ([]codec.Entry, error) {
	entries := make([]codec.Entry, 0, len(paths))
	seen := make(map[string]string, len(paths))

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, &MissingBinaryError{Path: path, Reason: "no such file"}
			}
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if info.IsDir() {
			return nil, &MissingBinaryError{Path: path, Reason: "is a directory"}
		}
		if !isExecutable(path, info.Mode()) {
			return nil, &MissingBinaryError{Path: path, Reason: "not executable"}
		}

		name := filepath.Base(path)
		if prev, dup := seen[name]; dup {
			return nil, fmt.Errorf("binaries %s and %s collide on archive name %q", prev, path, name)
		}
		seen[name] = path

		body, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		entries = append(entries, codec.Entry{Name: name, Mode: info.Mode(), Body: body})
	}

	return entries, nil
}

// isExecutable checks the executable bit on unix and the .exe suffix
// on windows.
func isExecutable(path string, mode os.FileMode) bool {
	if runtime.GOOS == "windows" {
		return strings.EqualFold(filepath.Ext(path), ".exe")
	}
	return mode&0111 != 0
}

// writeFileAtomic replaces path with data via a temp file and rename.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".archive-*")
	if err != nil {
		return fmt.Errorf("failed to create temp archive: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close archive: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set archive mode: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to place archive: %w", err)
	}
	return nil
}
