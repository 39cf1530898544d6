package install

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kamado-dev/kamado/internal/codec"
	"github.com/kamado-dev/kamado/internal/config"
	"github.com/kamado-dev/kamado/internal/fetch"
	"github.com/kamado-dev/kamado/internal/manifest"
	"github.com/kamado-dev/kamado/internal/packager"
	"github.com/kamado-dev/kamado/internal/resolve"
	"github.com/kamado-dev/kamado/internal/testutil"
)

const testTarget = "x86_64-unknown-linux-gnu"

// packageToolchain builds a real artifact on disk and returns its
// manifest entry.
func packageToolchain(t *testing.T, cfg *config.Config, version string, binaries map[string][]byte) manifest.ArtifactEntry {
	t.Helper()

	binDir := t.TempDir()
	var paths []string
	for name, body := range binaries {
		paths = append(paths, testutil.WriteExecutable(t, binDir, name, body))
	}

	entry, err := packager.New(cfg).Package(packager.Request{
		Profile:  manifest.ProfileRelease,
		Target:   testTarget,
		Version:  version,
		Binaries: paths,
	})
	if err != nil {
		t.Fatalf("Package() error = %v", err)
	}
	return entry
}

func publish(t *testing.T, entries ...manifest.ArtifactEntry) manifest.Manifest {
	t.Helper()

	m := manifest.New()
	for _, e := range entries {
		var err error
		m, err = m.Append(e)
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	return m
}

func newTestInstaller(cfg *config.Config) *Installer {
	return New(cfg, WithFetcher(fetch.New(cfg, fetch.WithRetries(0), fetch.WithBackoff(time.Millisecond))))
}

func TestInstallEndToEnd(t *testing.T) {
	cfg := testutil.NewTestConfig(t)
	entry := packageToolchain(t, cfg, "1.2.0", map[string][]byte{
		"kamado-detector": []byte("#!/bin/sh\necho detector\n"),
		"kamado-compiler": []byte("#!/bin/sh\necho compiler\n"),
	})
	m := publish(t, entry)

	inst := newTestInstaller(cfg)
	got, err := inst.Install(context.Background(), m, manifest.Filter{Profile: manifest.ProfileRelease, Target: testTarget}, "1.2.0")
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	wantDir := cfg.ToolchainDir("1.2.0", testTarget, "release")
	if got.InstallDir != wantDir {
		t.Errorf("InstallDir = %s, want %s", got.InstallDir, wantDir)
	}
	if len(got.Binaries) != 2 {
		t.Errorf("Binaries = %v, want 2 entries", got.Binaries)
	}

	for _, name := range []string{"kamado-detector", "kamado-compiler"} {
		info, err := os.Stat(filepath.Join(wantDir, name))
		if err != nil {
			t.Fatalf("installed binary missing: %v", err)
		}
		if info.Mode()&0111 == 0 {
			t.Errorf("%s lost its executable bit", name)
		}
	}

	if _, err := ReadRecord(wantDir); err != nil {
		t.Errorf("ReadRecord() error = %v", err)
	}

	// Staging must be empty once the install completes.
	entries, err := os.ReadDir(cfg.StagingDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("staging dir not cleaned: %v", entries)
	}
}

func TestInstallIsIdempotent(t *testing.T) {
	cfg := testutil.NewTestConfig(t)
	entry := packageToolchain(t, cfg, "1.2.0", map[string][]byte{"tool": []byte("bits")})

	archive, err := os.ReadFile(entry.Location)
	if err != nil {
		t.Fatal(err)
	}

	var downloads atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		downloads.Add(1)
		w.Write(archive)
	}))
	defer server.Close()
	entry.Location = server.URL + "/kamado-toolchain-1.2.0.tar.gz"

	m := publish(t, entry)
	inst := newTestInstaller(cfg)
	filter := manifest.Filter{Profile: manifest.ProfileRelease, Target: testTarget}

	first, err := inst.Install(context.Background(), m, filter, "1.2.0")
	if err != nil {
		t.Fatalf("first Install() error = %v", err)
	}
	second, err := inst.Install(context.Background(), m, filter, "1.2.0")
	if err != nil {
		t.Fatalf("second Install() error = %v", err)
	}

	if first.InstallDir != second.InstallDir {
		t.Errorf("install dirs differ: %s vs %s", first.InstallDir, second.InstallDir)
	}
	if n := downloads.Load(); n != 1 {
		t.Errorf("server saw %d downloads, want 1 (re-install must not re-fetch)", n)
	}
}

func TestInstallResolvesLatest(t *testing.T) {
	cfg := testutil.NewTestConfig(t)
	old := packageToolchain(t, cfg, "1.0.0", map[string][]byte{"tool": []byte("old")})
	current := packageToolchain(t, cfg, "1.2.0", map[string][]byte{"tool": []byte("new")})
	m := publish(t, old, current)

	inst := newTestInstaller(cfg)
	got, err := inst.Install(context.Background(), m, manifest.Filter{Profile: manifest.ProfileRelease, Target: testTarget}, resolve.ConstraintLatest)
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if got.Version != "1.2.0" {
		t.Errorf("installed version %s, want 1.2.0", got.Version)
	}
}

func TestInstallDigestMismatchLeavesNothingBehind(t *testing.T) {
	cfg := testutil.NewTestConfig(t)
	entry := packageToolchain(t, cfg, "1.2.0", map[string][]byte{"tool": []byte("bits")})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tampered stream"))
	}))
	defer server.Close()
	entry.Location = server.URL + "/kamado-toolchain-1.2.0.tar.gz"

	m := publish(t, entry)
	inst := newTestInstaller(cfg)

	_, err := inst.Install(context.Background(), m, manifest.Filter{Profile: manifest.ProfileRelease, Target: testTarget}, "1.2.0")
	if !fetch.IsDigestMismatch(err) {
		t.Fatalf("Install() error = %v, want DigestMismatchError", err)
	}

	var ie *Error
	if !errors.As(err, &ie) || ie.Phase != PhaseVerifying {
		t.Errorf("error phase = %v, want %s", err, PhaseVerifying)
	}

	if _, statErr := os.Stat(cfg.ToolchainDir("1.2.0", testTarget, "release")); !os.IsNotExist(statErr) {
		t.Error("failed install left a toolchain directory behind")
	}
	entries, readErr := os.ReadDir(cfg.StagingDir)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(entries) != 0 {
		t.Errorf("staging dir not cleaned: %v", entries)
	}
}

func TestInstallCorruptArchive(t *testing.T) {
	cfg := testutil.NewTestConfig(t)

	// Digest matches the bytes, but the bytes are not an archive.
	garbage := []byte("not a gzip stream at all")
	path := filepath.Join(t.TempDir(), "broken.tar.gz")
	if err := os.WriteFile(path, garbage, 0644); err != nil {
		t.Fatal(err)
	}

	entry := manifest.ArtifactEntry{
		ArtifactKey: manifest.ArtifactKey{
			Profile: manifest.ProfileRelease,
			Target:  testTarget,
			Version: "1.2.0",
		},
		Location: path,
		Digest:   codec.DigestBytes(garbage),
		Size:     int64(len(garbage)),
	}
	m := publish(t, entry)

	inst := newTestInstaller(cfg)
	_, err := inst.Install(context.Background(), m, manifest.Filter{Profile: manifest.ProfileRelease, Target: testTarget}, "1.2.0")

	var ie *Error
	if !errors.As(err, &ie) || ie.Phase != PhaseExtracting {
		t.Fatalf("Install() error = %v, want extracting-phase failure", err)
	}
	if _, statErr := os.Stat(cfg.ToolchainDir("1.2.0", testTarget, "release")); !os.IsNotExist(statErr) {
		t.Error("failed install left a toolchain directory behind")
	}
}

func TestInstallNoMatch(t *testing.T) {
	cfg := testutil.NewTestConfig(t)
	m := publish(t, packageToolchain(t, cfg, "1.2.0", map[string][]byte{"tool": []byte("bits")}))

	inst := newTestInstaller(cfg)
	_, err := inst.Install(context.Background(), m, manifest.Filter{Profile: manifest.ProfileRelease, Target: testTarget}, "9.9.9")
	if !resolve.IsNoMatch(err) {
		t.Fatalf("Install() error = %v, want NoMatchError", err)
	}
}

func TestConcurrentInstallsOfSameArtifact(t *testing.T) {
	cfg := testutil.NewTestConfig(t)
	entry := packageToolchain(t, cfg, "1.2.0", map[string][]byte{"tool": []byte("bits")})
	m := publish(t, entry)
	filter := manifest.Filter{Profile: manifest.ProfileRelease, Target: testTarget}

	const workers = 4
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			_, errs[w] = newTestInstaller(cfg).Install(context.Background(), m, filter, "1.2.0")
		}(w)
	}
	wg.Wait()

	for w, err := range errs {
		if err != nil {
			t.Errorf("worker %d: Install() error = %v", w, err)
		}
	}
	if _, err := ReadRecord(cfg.ToolchainDir("1.2.0", testTarget, "release")); err != nil {
		t.Errorf("no complete install after concurrent attempts: %v", err)
	}
}

func TestListAndRemove(t *testing.T) {
	cfg := testutil.NewTestConfig(t)
	m := publish(t,
		packageToolchain(t, cfg, "1.0.0", map[string][]byte{"tool": []byte("old")}),
		packageToolchain(t, cfg, "1.2.0", map[string][]byte{"tool": []byte("new")}),
	)

	inst := newTestInstaller(cfg)
	filter := manifest.Filter{Profile: manifest.ProfileRelease, Target: testTarget}
	for _, version := range []string{"1.0.0", "1.2.0"} {
		if _, err := inst.Install(context.Background(), m, filter, version); err != nil {
			t.Fatalf("Install(%s) error = %v", version, err)
		}
	}

	installed, err := List(cfg)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(installed) != 2 {
		t.Fatalf("List() = %d toolchains, want 2", len(installed))
	}

	key := manifest.ArtifactKey{Profile: manifest.ProfileRelease, Target: testTarget, Version: "1.0.0"}
	if err := inst.Remove(key); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	installed, err = List(cfg)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(installed) != 1 || installed[0].Version != "1.2.0" {
		t.Errorf("List() after remove = %+v, want only 1.2.0", installed)
	}

	if err := inst.Remove(key); err == nil {
		t.Error("Remove() of an absent toolchain succeeded")
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	cfg := testutil.NewTestConfig(t)
	entry := packageToolchain(t, cfg, "1.2.0", map[string][]byte{"tool": []byte("original bits")})
	m := publish(t, entry)

	inst := newTestInstaller(cfg)
	filter := manifest.Filter{Profile: manifest.ProfileRelease, Target: testTarget}
	installed, err := inst.Install(context.Background(), m, filter, "1.2.0")
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	key := installed.Key()
	if err := inst.Verify(m, key); err != nil {
		t.Fatalf("Verify() on a fresh install error = %v", err)
	}

	tampered := filepath.Join(installed.InstallDir, "tool")
	if err := os.WriteFile(tampered, []byte("modified bits"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := inst.Verify(m, key); !fetch.IsDigestMismatch(err) {
		t.Errorf("Verify() after tampering error = %v, want DigestMismatchError", err)
	}
}
