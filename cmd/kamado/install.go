package main

import (
	"github.com/spf13/cobra"

	"github.com/kamado-dev/kamado/internal/config"
	"github.com/kamado-dev/kamado/internal/install"
	"github.com/kamado-dev/kamado/internal/manifest"
	"github.com/kamado-dev/kamado/internal/platform"
)

var (
	installLanguage string
	installProfile  string
	installTarget   string
	installVersion  string
	installManifest string
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install a toolchain from a published manifest",
	Long: `Install resolves the requested version against the manifest, fetches
the matching artifact, verifies its digest, and places it under the
versioned toolchain directory.

The version may be exact ("1.2.0"), "latest" (highest published
release), or "local" (a locally packaged build). Installing an already
installed version is a no-op.

Examples:
  kamado install
  kamado install --profile release --version latest
  kamado install --version 1.2.0 --manifest https://example.com/manifests/x86_64-unknown-linux-gnu.toml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.DefaultConfig()
		if err != nil {
			return err
		}
		if err := cfg.EnsureDirectories(); err != nil {
			return err
		}

		profile, err := manifest.ParseProfile(installProfile)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		m, err := loadManifest(ctx, cfg, installManifest, installTarget)
		if err != nil {
			return err
		}

		installed, err := install.New(cfg).Install(ctx, m, manifest.Filter{
			Language: installLanguage,
			Profile:  profile,
			Target:   installTarget,
		}, installVersion)
		if err != nil {
			return err
		}

		printInfof("Installed %s to %s\n", installed.Key(), installed.InstallDir)
		return nil
	},
}

func init() {
	installCmd.Flags().StringVar(&installLanguage, "language", "", "Language the toolchain serves")
	installCmd.Flags().StringVar(&installProfile, "profile", "dev", "Build profile (dev or release)")
	installCmd.Flags().StringVar(&installTarget, "target", platform.HostTriple(), "Target triple")
	installCmd.Flags().StringVar(&installVersion, "version", manifest.VersionLocal, "Version constraint (exact, latest, or local)")
	installCmd.Flags().StringVar(&installManifest, "manifest", "", "Manifest location (defaults to the local per-target manifest)")
}
