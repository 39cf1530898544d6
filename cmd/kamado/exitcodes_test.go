package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/kamado-dev/kamado/internal/codec"
	"github.com/kamado-dev/kamado/internal/fetch"
	"github.com/kamado-dev/kamado/internal/manifest"
	"github.com/kamado-dev/kamado/internal/packager"
	"github.com/kamado-dev/kamado/internal/resolve"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, ExitSuccess},
		{"generic", errors.New("boom"), ExitGeneral},
		{"no match", &resolve.NoMatchError{}, ExitNoMatch},
		{"bad constraint", &resolve.ConstraintError{Constraint: "v1..0"}, ExitUsage},
		{"missing binary", &packager.MissingBinaryError{Path: "bin/x", Reason: "not found"}, ExitUsage},
		{"network", &fetch.NetworkError{Location: "https://example.com", Err: errors.New("reset")}, ExitNetwork},
		{"digest mismatch", &fetch.DigestMismatchError{Key: manifest.ArtifactKey{Version: "1.2.0"}}, ExitIntegrity},
		{"corrupt archive", fmt.Errorf("extract: %w", codec.ErrCorruptArchive), ExitIntegrity},
		{"path escape", fmt.Errorf("extract: %w", codec.ErrPathEscape), ExitIntegrity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
