package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kamado-dev/kamado/internal/detect"
)

var (
	detectBinaries  []string
	detectLanguage  string
	detectExtension string
)

var detectCmd = &cobra.Command{
	Use:   "detect <path>",
	Short: "Detect the source language at a path",
	Long: `Detect runs source detectors against a file or directory and prints
the first passing result as JSON. Detectors are external binaries
shipped inside language toolchains; a built-in extension matcher is
available via --language and --extension.

Examples:
  kamado detect contracts/ --detector ~/.kamado/toolchains/1.2.0/x86_64-unknown-linux-gnu/release/solidity-detector
  kamado detect main.sol --language Solidity --extension sol`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var detectors []detect.Detector
		for _, binary := range detectBinaries {
			detectors = append(detectors, detect.NewRunner(binary))
		}
		if detectExtension != "" {
			detectors = append(detectors, detect.ExtensionDetector{
				Language:  detectLanguage,
				Extension: detectExtension,
			})
		}
		if len(detectors) == 0 {
			return fmt.Errorf("no detectors given; pass --detector or --extension")
		}

		result := detect.Fail()
		for _, d := range detectors {
			r, err := d.Detect(cmd.Context(), detect.Request{Path: args[0]})
			if err != nil {
				return err
			}
			if r.Pass {
				result = r
				break
			}
		}

		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(result)
	},
}

func init() {
	detectCmd.Flags().StringArrayVar(&detectBinaries, "detector", nil, "Path to a detector binary (repeatable)")
	detectCmd.Flags().StringVar(&detectLanguage, "language", "", "Language reported by the built-in extension matcher")
	detectCmd.Flags().StringVar(&detectExtension, "extension", "", "File extension matched by the built-in matcher")
}
