package main

import (
	"errors"
	"os"

	"github.com/kamado-dev/kamado/internal/codec"
	"github.com/kamado-dev/kamado/internal/fetch"
	"github.com/kamado-dev/kamado/internal/packager"
	"github.com/kamado-dev/kamado/internal/resolve"
)

// Exit codes for different error types.
// These enable scripts to distinguish between failure modes.
const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0

	// ExitGeneral indicates a general error
	ExitGeneral = 1

	// ExitUsage indicates invalid arguments or usage error
	ExitUsage = 2

	// ExitNoMatch indicates no artifact satisfied the constraints
	ExitNoMatch = 3

	// ExitNetwork indicates a network error
	ExitNetwork = 4

	// ExitIntegrity indicates a digest mismatch or corrupt archive
	ExitIntegrity = 5
)

// exitCodeFor maps an error to its exit code.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case fetch.IsDigestMismatch(err),
		errors.Is(err, codec.ErrCorruptArchive),
		errors.Is(err, codec.ErrPathEscape):
		return ExitIntegrity
	case resolve.IsNoMatch(err):
		return ExitNoMatch
	case isConstraintError(err), packager.IsMissingBinary(err):
		return ExitUsage
	case fetch.IsNetworkError(err):
		return ExitNetwork
	default:
		return ExitGeneral
	}
}

func isConstraintError(err error) bool {
	var ce *resolve.ConstraintError
	return errors.As(err, &ce)
}

// exitWithCode exits with the specified exit code
func exitWithCode(code int) {
	os.Exit(code)
}
