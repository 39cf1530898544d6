package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/kamado-dev/kamado/internal/config"
	"github.com/kamado-dev/kamado/internal/fetch"
	"github.com/kamado-dev/kamado/internal/manifest"
)

// printInfo prints an informational message unless quiet mode is enabled
func printInfo(a ...any) {
	if !quietFlag {
		fmt.Println(a...)
	}
}

// printInfof prints a formatted informational message unless quiet mode is enabled
func printInfof(format string, a ...any) {
	if !quietFlag {
		fmt.Printf(format, a...)
	}
}

// printError prints an error to stderr
func printError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

// loadManifest reads a manifest from an explicit location, or from the
// configured per-target manifest file when location is empty. Remote
// locations are fetched over the same transports artifacts use.
func loadManifest(ctx context.Context, cfg *config.Config, location, target string) (manifest.Manifest, error) {
	if location == "" {
		location = cfg.ManifestPath(target)
	}

	data, err := fetch.New(cfg).FetchBytes(ctx, location)
	if err != nil {
		return manifest.Manifest{}, fmt.Errorf("failed to load manifest from %s: %w", location, err)
	}
	return manifest.Load(bytes.NewReader(data))
}

// confirm asks the user a yes/no question on the terminal. Returns
// false without prompting when stdin is not interactive.
func confirm(prompt string) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false
	}

	fmt.Printf("%s [y/N]: ", prompt)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// artifactKey assembles the key addressed by the shared CLI flags.
func artifactKey(language, profile, target, version string) (manifest.ArtifactKey, error) {
	p, err := manifest.ParseProfile(profile)
	if err != nil {
		return manifest.ArtifactKey{}, err
	}
	key := manifest.ArtifactKey{
		Language: language,
		Profile:  p,
		Target:   target,
		Version:  version,
	}
	if err := key.Validate(); err != nil {
		return manifest.ArtifactKey{}, err
	}
	return key, nil
}
