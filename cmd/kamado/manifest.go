package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kamado-dev/kamado/internal/codec"
	"github.com/kamado-dev/kamado/internal/config"
	"github.com/kamado-dev/kamado/internal/manifest"
	"github.com/kamado-dev/kamado/internal/packager"
	"github.com/kamado-dev/kamado/internal/platform"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Generate and publish artifact manifests",
}

var (
	generateLanguage string
	generateProfile  string
	generateTarget   string
	generateVersion  string
	generateArtifact string
	generateLocation string
	generateOutput   string
)

var manifestGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Record a packaged artifact in the per-target manifest",
	Long: `Generate appends a manifest entry for a previously packaged artifact.
The artifact's digest and size are recomputed from the file on disk, so
the manifest always describes the bytes that actually exist.

Appending the same artifact twice is a no-op. Appending the same key
with a different digest is refused: a published digest is never
silently replaced.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := manifest.ParseProfile(generateProfile)
		if err != nil {
			return err
		}

		artifact := generateArtifact
		if artifact == "" {
			cfg, err := config.DefaultConfig()
			if err != nil {
				return err
			}
			artifact = cfg.ArtifactPath(packager.ArchiveName(generateVersion, generateTarget, profile))
		}

		digest, err := codec.DigestFile(artifact)
		if err != nil {
			return fmt.Errorf("failed to digest artifact %s: %w", artifact, err)
		}
		info, err := os.Stat(artifact)
		if err != nil {
			return err
		}

		location := generateLocation
		if location == "" {
			location = artifact
		}

		entry := manifest.ArtifactEntry{
			ArtifactKey: manifest.ArtifactKey{
				Language: generateLanguage,
				Profile:  profile,
				Target:   generateTarget,
				Version:  generateVersion,
			},
			Location: location,
			Digest:   digest,
			Size:     info.Size(),
		}

		path := filepath.Join(generateOutput, generateTarget+".toml")
		m, err := manifest.LoadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return err
			}
			m = manifest.New()
		}

		m, err = m.Append(entry)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(generateOutput, 0755); err != nil {
			return err
		}
		if err := m.SaveFile(path); err != nil {
			return err
		}

		printInfof("Recorded %s in %s\n", entry.Key(), path)
		return nil
	},
}

var (
	publishDir   string
	publishLocal bool
)

var manifestPublishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish generated manifests to the local root",
	Long: `Publish copies generated manifests, and the artifacts they
reference, into the local kamado root so install can consume them
offline. Entry locations are rewritten to the copied artifact paths.

Remote publication (uploading artifacts as release assets) is handled
by the release pipeline, not this command; only --local is supported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !publishLocal {
			return fmt.Errorf("only local publishing is supported; pass --local")
		}

		cfg, err := config.DefaultConfig()
		if err != nil {
			return err
		}
		if err := cfg.EnsureDirectories(); err != nil {
			return err
		}

		files, err := os.ReadDir(publishDir)
		if err != nil {
			return fmt.Errorf("failed to read manifest directory %s: %w", publishDir, err)
		}

		published := 0
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".toml") {
				continue
			}
			if err := publishManifest(cfg, filepath.Join(publishDir, f.Name())); err != nil {
				return err
			}
			published++
		}
		if published == 0 {
			return fmt.Errorf("no manifests found in %s", publishDir)
		}

		printInfof("Published %d manifest(s) to %s\n", published, cfg.ManifestsDir)
		return nil
	},
}

// publishManifest copies one manifest and its local artifacts into the
// kamado root.
func publishManifest(cfg *config.Config, path string) error {
	m, err := manifest.LoadFile(path)
	if err != nil {
		return err
	}

	out := manifest.New()
	for _, entry := range m.Entries() {
		if isLocalLocation(entry.Location) {
			source := strings.TrimPrefix(entry.Location, "file://")
			dest := cfg.ArtifactPath(filepath.Base(source))
			if err := copyFile(source, dest); err != nil {
				return fmt.Errorf("failed to copy artifact for %s: %w", entry.ArtifactKey, err)
			}
			entry.Location = dest
		}
		if out, err = out.Append(entry); err != nil {
			return err
		}
	}

	return out.SaveFile(filepath.Join(cfg.ManifestsDir, filepath.Base(path)))
}

func isLocalLocation(location string) bool {
	return strings.HasPrefix(location, "file://") || !strings.Contains(location, "://")
}

func copyFile(source, dest string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(dest), ".publish-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(out.Name())
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return err
	}
	return os.Rename(out.Name(), dest)
}

func init() {
	manifestGenerateCmd.Flags().StringVar(&generateLanguage, "language", "", "Language the toolchain serves")
	manifestGenerateCmd.Flags().StringVar(&generateProfile, "profile", "dev", "Build profile (dev or release)")
	manifestGenerateCmd.Flags().StringVar(&generateTarget, "target", platform.HostTriple(), "Target triple")
	manifestGenerateCmd.Flags().StringVar(&generateVersion, "version", manifest.VersionLocal, "Artifact version")
	manifestGenerateCmd.Flags().StringVar(&generateArtifact, "artifact", "", "Path to the packaged archive (defaults to the configured artifact path)")
	manifestGenerateCmd.Flags().StringVar(&generateLocation, "location", "", "Location to record for the artifact (defaults to its path)")
	manifestGenerateCmd.Flags().StringVar(&generateOutput, "output", "manifests", "Directory to write manifests into")

	manifestPublishCmd.Flags().StringVar(&publishDir, "dir", "manifests", "Directory holding generated manifests")
	manifestPublishCmd.Flags().BoolVar(&publishLocal, "local", false, "Publish into the local kamado root")

	manifestCmd.AddCommand(manifestGenerateCmd)
	manifestCmd.AddCommand(manifestPublishCmd)
}
