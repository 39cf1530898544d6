package main

import (
	"github.com/spf13/cobra"

	"github.com/kamado-dev/kamado/internal/config"
	"github.com/kamado-dev/kamado/internal/manifest"
	"github.com/kamado-dev/kamado/internal/packager"
	"github.com/kamado-dev/kamado/internal/platform"
)

var (
	packageLanguage string
	packageProfile  string
	packageTarget   string
	packageVersion  string
)

var packageCmd = &cobra.Command{
	Use:   "package <binary>...",
	Short: "Archive built toolchain binaries into a versioned artifact",
	Long: `Package collects built toolchain binaries into a reproducible
archive and computes its content digest. Re-running with identical
inputs produces byte-identical output.

Packaging only writes the archive; recording it in a manifest is the
separate "manifest generate" step, so a failed run never leaves a
manifest pointing at a missing artifact.

Examples:
  kamado package target/release/kamado-detector target/release/kamado-compiler
  kamado package --profile release --version 1.2.0 target/release/*`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.DefaultConfig()
		if err != nil {
			return err
		}
		if err := cfg.EnsureDirectories(); err != nil {
			return err
		}

		profile, err := manifest.ParseProfile(packageProfile)
		if err != nil {
			return err
		}

		entry, err := packager.New(cfg).Package(packager.Request{
			Language: packageLanguage,
			Profile:  profile,
			Target:   packageTarget,
			Version:  packageVersion,
			Binaries: args,
		})
		if err != nil {
			return err
		}

		printInfof("Packaged %s\n", entry.Key())
		printInfof("  location: %s\n", entry.Location)
		printInfof("  digest:   %s\n", entry.Digest)
		printInfof("  size:     %d bytes\n", entry.Size)
		return nil
	},
}

func init() {
	packageCmd.Flags().StringVar(&packageLanguage, "language", "", "Language the toolchain serves")
	packageCmd.Flags().StringVar(&packageProfile, "profile", "dev", "Build profile (dev or release)")
	packageCmd.Flags().StringVar(&packageTarget, "target", platform.HostTriple(), "Target triple")
	packageCmd.Flags().StringVar(&packageVersion, "version", manifest.VersionLocal, "Artifact version")
}
