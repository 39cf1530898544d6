package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kamado-dev/kamado/internal/config"
	"github.com/kamado-dev/kamado/internal/install"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed toolchains",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.DefaultConfig()
		if err != nil {
			return err
		}

		installed, err := install.List(cfg)
		if err != nil {
			return err
		}
		if len(installed) == 0 {
			printInfo("No toolchains installed")
			return nil
		}

		for _, t := range installed {
			language := t.Language
			if language == "" {
				language = "-"
			}
			fmt.Printf("%-12s %-10s %-30s %-8s %s\n",
				language, t.Version, t.Target, t.Profile, t.InstalledAt.Format("2006-01-02"))
		}
		return nil
	},
}
