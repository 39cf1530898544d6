// Package resolve selects the manifest entry that satisfies a version
// constraint for a given language, target, and profile.
package resolve

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/kamado-dev/kamado/internal/manifest"
)

// ConstraintLatest selects the highest released semantic version
// among the matching entries. Pre-release versions are considered
// only when no release version exists, so 1.2.0 outranks 2.0.0-beta.
// The "local" sentinel is never matched by latest.
const ConstraintLatest = "latest"

// NoMatchError indicates that no manifest entry satisfies the filter
// and constraint.
type NoMatchError struct {
	Filter     manifest.Filter
	Constraint string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no artifact matches target %q profile %q version %q",
		e.Filter.Target, e.Filter.Profile, e.Constraint)
}

// IsNoMatch reports whether err indicates an unsatisfiable request.
func IsNoMatch(err error) bool {
	var nm *NoMatchError
	return errors.As(err, &nm)
}

// ConstraintError indicates a version constraint that is neither an
// exact version nor a recognized sentinel.
type ConstraintError struct {
	Constraint string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("ambiguous version constraint %q: want an exact version, %q, or %q",
		e.Constraint, ConstraintLatest, manifest.VersionLocal)
}

// Resolve picks the entry satisfying the filter's language, target,
// and profile plus the version constraint.
//
// When multiple entries share a key the most recently appended one
// wins. The manifest's duplicate-key invariant makes that a defensive
// fallback rather than an expected case.
func Resolve(m manifest.Manifest, f manifest.Filter, constraint string) (manifest.ArtifactEntry, error) {
	f.Version = ""
	candidates := m.EntriesFor(f)

	switch constraint {
	case ConstraintLatest:
		return resolveLatest(candidates, f, constraint)
	case manifest.VersionLocal:
		return resolveExactString(candidates, manifest.VersionLocal, f, constraint)
	default:
		want, err := semver.NewVersion(constraint)
		if err != nil {
			return manifest.ArtifactEntry{}, &ConstraintError{Constraint: constraint}
		}
		return resolveExactVersion(candidates, want, f, constraint)
	}
}

func resolveLatest(candidates []manifest.ArtifactEntry, f manifest.Filter, constraint string) (manifest.ArtifactEntry, error) {
	var (
		best        manifest.ArtifactEntry
		bestVersion *semver.Version
		bestRelease bool
	)

	for _, e := range candidates {
		if e.Version == manifest.VersionLocal {
			continue
		}
		v, err := semver.NewVersion(e.Version)
		if err != nil {
			continue
		}
		release := v.Prerelease() == ""

		switch {
		case bestVersion == nil:
		case release && !bestRelease:
			// A release always beats any pre-release.
		case !release && bestRelease:
			continue
		case v.LessThan(bestVersion):
			continue
		}
		// Equal versions fall through so the later entry wins.
		best, bestVersion, bestRelease = e, v, release
	}

	if bestVersion == nil {
		return manifest.ArtifactEntry{}, &NoMatchError{Filter: f, Constraint: constraint}
	}
	return best, nil
}

func resolveExactString(candidates []manifest.ArtifactEntry, version string, f manifest.Filter, constraint string) (manifest.ArtifactEntry, error) {
	var (
		best  manifest.ArtifactEntry
		found bool
	)
	for _, e := range candidates {
		if e.Version == version {
			best, found = e, true
		}
	}
	if !found {
		return manifest.ArtifactEntry{}, &NoMatchError{Filter: f, Constraint: constraint}
	}
	return best, nil
}

func resolveExactVersion(candidates []manifest.ArtifactEntry, want *semver.Version, f manifest.Filter, constraint string) (manifest.ArtifactEntry, error) {
	var (
		best  manifest.ArtifactEntry
		found bool
	)
	for _, e := range candidates {
		if e.Version == manifest.VersionLocal {
			continue
		}
		v, err := semver.NewVersion(e.Version)
		if err != nil {
			continue
		}
		if v.Equal(want) {
			best, found = e, true
		}
	}
	if !found {
		return manifest.ArtifactEntry{}, &NoMatchError{Filter: f, Constraint: constraint}
	}
	return best, nil
}
