package install

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kamado-dev/kamado/internal/codec"
	"github.com/kamado-dev/kamado/internal/fetch"
	"github.com/kamado-dev/kamado/internal/manifest"
	"github.com/kamado-dev/kamado/internal/resolve"
)

// Verify re-checks an installed toolchain against the manifest.
//
// The archive format is reproducible, so the installed files can be
// re-archived and the digest compared with the published one. A
// mismatch means the files were modified after install.
func (i *Installer) Verify(m manifest.Manifest, key manifest.ArtifactKey) error {
	dir := i.cfg.ToolchainDir(key.Version, key.Target, string(key.Profile))
	record, err := ReadRecord(dir)
	if err != nil {
		return err
	}

	published, err := resolve.Resolve(m, manifest.Filter{
		Language: key.Language,
		Profile:  key.Profile,
		Target:   key.Target,
	}, key.Version)
	if err != nil {
		return fmt.Errorf("toolchain %s is not published: %w", key, err)
	}

	entries := make([]codec.Entry, 0, len(record.Binaries))
	for _, name := range record.Binaries {
		path := filepath.Join(dir, filepath.FromSlash(name))
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("toolchain %s: missing installed file %s: %w", key, name, err)
		}
		body, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("toolchain %s: failed to read %s: %w", key, name, err)
		}
		entries = append(entries, codec.Entry{Name: name, Mode: info.Mode(), Body: body})
	}

	archive, err := codec.Archive(entries)
	if err != nil {
		return fmt.Errorf("toolchain %s: failed to re-archive installed files: %w", key, err)
	}

	if actual := codec.DigestBytes(archive); actual != published.Digest {
		return &fetch.DigestMismatchError{
			Key:      key,
			Location: dir,
			Expected: published.Digest,
			Actual:   actual,
		}
	}

	i.logger.Debug("toolchain verified", "artifact", key.String(), "dir", dir)
	return nil
}
