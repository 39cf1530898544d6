// Package manifest defines the catalog of published toolchain
// artifacts and their integrity digests.
//
// A manifest is a TOML document holding an ordered list of artifact
// entries. Serialization is deterministic: entries keep append order
// and fields keep declaration order, so two manifests with the same
// logical content are byte-identical and diff cleanly.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"

	"github.com/kamado-dev/kamado/internal/codec"
	"github.com/kamado-dev/kamado/internal/platform"
)

// SchemaVersion identifies the manifest document layout. New optional
// fields may be added under the same schema version; existing fields
// are never repurposed.
const SchemaVersion = "1"

// VersionLocal is the sentinel version produced by local-only
// packaging. It is never matched by a "latest" constraint.
const VersionLocal = "local"

// Profile is a build configuration.
type Profile string

const (
	// ProfileDev is a development build. This is the default.
	ProfileDev Profile = "dev"

	// ProfileRelease is an optimized release build.
	ProfileRelease Profile = "release"
)

// ParseProfile validates a profile string.
func ParseProfile(s string) (Profile, error) {
	switch Profile(s) {
	case ProfileDev, ProfileRelease:
		return Profile(s), nil
	default:
		return "", fmt.Errorf("unknown profile %q: want dev or release", s)
	}
}

// ArtifactKey uniquely identifies one buildable artifact.
type ArtifactKey struct {
	// Language is the toolchain's source language, empty for
	// language-agnostic tools.
	Language string `toml:"language,omitempty"`

	// Profile is the build profile the artifact was produced with.
	Profile Profile `toml:"profile"`

	// Target is the target triple the binaries run on.
	Target string `toml:"target"`

	// Version is a semantic version (with or without a leading "v")
	// or the sentinel "local".
	Version string `toml:"version"`
}

// String renders the key for error messages and logs.
func (k ArtifactKey) String() string {
	if k.Language != "" {
		return fmt.Sprintf("%s/%s/%s/%s", k.Language, k.Version, k.Target, k.Profile)
	}
	return fmt.Sprintf("%s/%s/%s", k.Version, k.Target, k.Profile)
}

// Validate checks the key against the triple grammar and the version
// format.
func (k ArtifactKey) Validate() error {
	if _, err := ParseProfile(string(k.Profile)); err != nil {
		return err
	}
	if !platform.IsValid(k.Target) {
		return fmt.Errorf("invalid target triple %q", k.Target)
	}
	if k.Version != VersionLocal {
		if _, err := semver.NewVersion(k.Version); err != nil {
			return fmt.Errorf("invalid version %q: not a semantic version or %q", k.Version, VersionLocal)
		}
	}
	return nil
}

// ArtifactEntry records one published artifact. Entries are immutable
// once appended; a new version supersedes, never mutates, an existing
// entry.
type ArtifactEntry struct {
	ArtifactKey

	// Location is a URI or filesystem path the archive can be
	// fetched from.
	Location string `toml:"location"`

	// Digest is the hex SHA-256 of the archive bytes, the sole
	// integrity anchor between publish and install.
	Digest string `toml:"digest"`

	// Size is the archive size in bytes.
	Size int64 `toml:"size"`
}

// Key returns the entry's artifact key.
func (e ArtifactEntry) Key() ArtifactKey {
	return e.ArtifactKey
}

// validate checks the complete entry, including location and digest.
func (e ArtifactEntry) validate() error {
	if err := e.ArtifactKey.Validate(); err != nil {
		return err
	}
	if e.Location == "" {
		return fmt.Errorf("artifact %s: missing location", e.ArtifactKey)
	}
	if !codec.ValidDigest(e.Digest) {
		return fmt.Errorf("artifact %s: malformed digest %q", e.ArtifactKey, e.Digest)
	}
	return nil
}

// document is the on-disk TOML shape.
type document struct {
	SchemaVersion string          `toml:"schema-version"`
	Artifacts     []ArtifactEntry `toml:"artifact"`
}

// Manifest is an ordered collection of artifact entries. The zero
// value is an empty manifest. Manifests are value types: Append
// returns a new manifest, leaving the receiver unchanged, so a loaded
// snapshot can be read concurrently while the publish flow builds a
// successor.
type Manifest struct {
	entries []ArtifactEntry
}

// New returns an empty manifest.
func New() Manifest {
	return Manifest{}
}

// Len returns the number of entries.
func (m Manifest) Len() int {
	return len(m.entries)
}

// Entries returns all entries in manifest order.
func (m Manifest) Entries() []ArtifactEntry {
	out := make([]ArtifactEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Filter selects entries by a partial key; empty fields are
// wildcards.
type Filter struct {
	Language string
	Profile  Profile
	Target   string
	Version  string
}

// EntriesFor returns all entries matching the filter, in manifest
// order.
func (m Manifest) EntriesFor(f Filter) []ArtifactEntry {
	var out []ArtifactEntry
	for _, e := range m.entries {
		if f.Language != "" && e.Language != f.Language {
			continue
		}
		if f.Profile != "" && e.Profile != f.Profile {
			continue
		}
		if f.Target != "" && e.Target != f.Target {
			continue
		}
		if f.Version != "" && e.Version != f.Version {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Append returns a new manifest with the entry added.
//
// Appending an entry identical to an existing one is a no-op.
// Appending an entry whose key already exists under a different
// digest fails with a DuplicateKeyConflict: silently replacing a
// published digest would defeat the integrity guarantee.
func (m Manifest) Append(entry ArtifactEntry) (Manifest, error) {
	if err := entry.validate(); err != nil {
		return m, err
	}

	for _, existing := range m.entries {
		if existing.Key() != entry.Key() {
			continue
		}
		if existing.Digest == entry.Digest {
			return m, nil
		}
		return m, &DuplicateKeyError{
			Key:            entry.Key(),
			PublishedDigest: existing.Digest,
			OfferedDigest:   entry.Digest,
		}
	}

	next := Manifest{entries: make([]ArtifactEntry, len(m.entries), len(m.entries)+1)}
	copy(next.entries, m.entries)
	next.entries = append(next.entries, entry)
	return next, nil
}

// Load reads and validates a manifest document.
func Load(r io.Reader) (Manifest, error) {
	var doc document
	meta, err := toml.NewDecoder(r).Decode(&doc)
	if err != nil {
		return Manifest{}, &ParseError{Err: err}
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Manifest{}, &ParseError{Err: fmt.Errorf("unknown field %q", undecoded[0].String())}
	}
	if doc.SchemaVersion != SchemaVersion {
		return Manifest{}, &ParseError{Err: fmt.Errorf("unsupported schema version %q", doc.SchemaVersion)}
	}

	for _, e := range doc.Artifacts {
		if err := e.validate(); err != nil {
			return Manifest{}, &ParseError{Err: err}
		}
	}

	return Manifest{entries: doc.Artifacts}, nil
}

// LoadFile reads a manifest from path.
func LoadFile(path string) (Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	m, err := Load(f)
	if err != nil {
		return Manifest{}, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// Encode serializes the manifest deterministically.
func (m Manifest) Encode() ([]byte, error) {
	doc := document{SchemaVersion: SchemaVersion, Artifacts: m.entries}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveFile writes the manifest to path, creating parent directories.
// The write goes through a temp file and rename so readers never see
// a torn document.
func (m Manifest) SaveFile(path string) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".manifest-*")
	if err != nil {
		return fmt.Errorf("failed to create temp manifest: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close manifest: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace manifest: %w", err)
	}
	return nil
}

// ParseError indicates a manifest document that violates the schema.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("manifest parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DuplicateKeyError indicates an append whose key is already
// published under a different digest, which would silently substitute
// an artifact.
type DuplicateKeyError struct {
	Key             ArtifactKey
	PublishedDigest string
	OfferedDigest   string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("artifact %s already published with digest %s (refusing to replace with %s)",
		e.Key, e.PublishedDigest, e.OfferedDigest)
}

// IsDuplicateKey reports whether err is a duplicate-key conflict.
func IsDuplicateKey(err error) bool {
	var dup *DuplicateKeyError
	return errors.As(err, &dup)
}
