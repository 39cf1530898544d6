package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kamado-dev/kamado/internal/log"
)

// Version is the current version of kamado
var Version = "0.1.0"

var (
	verboseFlag bool
	quietFlag   bool
)

var rootCmd = &cobra.Command{
	Use:   "kamado",
	Short: "Package, publish, and install language toolchains",
	Long: `kamado is a toolchain distribution pipeline. It packages compiled
toolchain binaries into versioned, digest-anchored archives, publishes
manifests describing which artifacts exist for which target and build
profile, and installs the matching artifact onto the local machine.

What gets installed is exactly what was built: every artifact carries a
content digest that is verified before a single file is placed.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verboseFlag {
			level = slog.LevelDebug
		}
		if quietFlag {
			level = slog.LevelError
		}
		log.SetDefault(log.NewText(os.Stderr, level))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress informational output")

	rootCmd.AddCommand(packageCmd)
	rootCmd.AddCommand(manifestCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(detectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		exitWithCode(exitCodeFor(err))
	}
}
