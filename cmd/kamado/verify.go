package main

import (
	"github.com/spf13/cobra"

	"github.com/kamado-dev/kamado/internal/config"
	"github.com/kamado-dev/kamado/internal/install"
	"github.com/kamado-dev/kamado/internal/platform"
)

var (
	verifyLanguage string
	verifyProfile  string
	verifyTarget   string
	verifyVersion  string
	verifyManifest string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Re-check an installed toolchain against its published digest",
	Long: `Verify re-archives the installed binaries and compares the result
against the digest recorded in the manifest. A mismatch means the
installed files were modified after install.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.DefaultConfig()
		if err != nil {
			return err
		}

		key, err := artifactKey(verifyLanguage, verifyProfile, verifyTarget, verifyVersion)
		if err != nil {
			return err
		}

		m, err := loadManifest(cmd.Context(), cfg, verifyManifest, verifyTarget)
		if err != nil {
			return err
		}

		if err := install.New(cfg).Verify(m, key); err != nil {
			return err
		}

		printInfof("Toolchain %s verified\n", key)
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyLanguage, "language", "", "Language the toolchain serves")
	verifyCmd.Flags().StringVar(&verifyProfile, "profile", "dev", "Build profile (dev or release)")
	verifyCmd.Flags().StringVar(&verifyTarget, "target", platform.HostTriple(), "Target triple")
	verifyCmd.Flags().StringVar(&verifyVersion, "version", "", "Installed version to verify")
	verifyCmd.Flags().StringVar(&verifyManifest, "manifest", "", "Manifest location (defaults to the local per-target manifest)")
	verifyCmd.MarkFlagRequired("version")
}
