package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kamado-dev/kamado/internal/config"
	"github.com/kamado-dev/kamado/internal/install"
	"github.com/kamado-dev/kamado/internal/platform"
)

var (
	removeLanguage string
	removeProfile  string
	removeTarget   string
	removeVersion  string
	removeYes      bool
)

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Uninstall a toolchain version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.DefaultConfig()
		if err != nil {
			return err
		}

		key, err := artifactKey(removeLanguage, removeProfile, removeTarget, removeVersion)
		if err != nil {
			return err
		}

		if !removeYes && !confirm(fmt.Sprintf("Remove toolchain %s?", key)) {
			printInfo("Aborted")
			return nil
		}

		if err := install.New(cfg).Remove(key); err != nil {
			return err
		}

		printInfof("Removed %s\n", key)
		return nil
	},
}

func init() {
	removeCmd.Flags().StringVar(&removeLanguage, "language", "", "Language the toolchain serves")
	removeCmd.Flags().StringVar(&removeProfile, "profile", "dev", "Build profile (dev or release)")
	removeCmd.Flags().StringVar(&removeTarget, "target", platform.HostTriple(), "Target triple")
	removeCmd.Flags().StringVar(&removeVersion, "version", "", "Installed version to remove")
	removeCmd.Flags().BoolVarP(&removeYes, "yes", "y", false, "Skip the confirmation prompt")
	removeCmd.MarkFlagRequired("version")
}
