package packager

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/kamado-dev/kamado/internal/codec"
	"github.com/kamado-dev/kamado/internal/manifest"
	"github.com/kamado-dev/kamado/internal/testutil"
)

func writeBinary(t *testing.T, dir, name string, body []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, body, 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func testRequest(binaries ...string) Request {
	return Request{
		Language: "solidity",
		Profile:  manifest.ProfileRelease,
		Target:   "x86_64-unknown-linux-gnu",
		Version:  "1.2.0",
		Binaries: binaries,
	}
}

func TestPackageProducesVerifiableEntry(t *testing.T) {
	cfg := testutil.NewTestConfig(t)
	binDir := t.TempDir()
	bin := writeBinary(t, binDir, "solidity-detector", []byte("#!/bin/sh\necho pass\n"))

	entry, err := New(cfg).Package(testRequest(bin))
	if err != nil {
		t.Fatalf("Package() error = %v", err)
	}

	if entry.Version != "1.2.0" || entry.Profile != manifest.ProfileRelease {
		t.Errorf("entry key = %+v", entry.ArtifactKey)
	}

	data, err := os.ReadFile(entry.Location)
	if err != nil {
		t.Fatalf("archive not written: %v", err)
	}
	if int64(len(data)) != entry.Size {
		t.Errorf("Size = %d, archive is %d bytes", entry.Size, len(data))
	}
	if codec.DigestBytes(data) != entry.Digest {
		t.Error("entry digest does not match archive bytes")
	}

	// The archive extracts to the bare executable name.
	dest := t.TempDir()
	written, err := codec.Extract(entry.Location, dest)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(written) != 1 || written[0] != "solidity-detector" {
		t.Errorf("extracted paths = %v, want [solidity-detector]", written)
	}
}

func TestPackageIsReproducible(t *testing.T) {
	cfg := testutil.NewTestConfig(t)
	binDir := t.TempDir()
	a := writeBinary(t, binDir, "hmc", []byte("compiler"))
	b := writeBinary(t, binDir, "hmd", []byte("detector"))

	p := New(cfg)
	first, err := p.Package(testRequest(a, b))
	if err != nil {
		t.Fatal(err)
	}
	firstBytes, err := os.ReadFile(first.Location)
	if err != nil {
		t.Fatal(err)
	}

	// Re-run with the binary list reversed; output path and bytes
	// must be identical.
	second, err := p.Package(testRequest(b, a))
	if err != nil {
		t.Fatal(err)
	}
	secondBytes, err := os.ReadFile(second.Location)
	if err != nil {
		t.Fatal(err)
	}

	if first.Location != second.Location {
		t.Errorf("output paths differ: %s vs %s", first.Location, second.Location)
	}
	if !bytes.Equal(firstBytes, secondBytes) {
		t.Error("re-packaging identical inputs produced different bytes")
	}
	if first.Digest != second.Digest {
		t.Error("re-packaging identical inputs produced different digests")
	}
}

func TestPackageRejectsMissingBinary(t *testing.T) {
	cfg := testutil.NewTestConfig(t)

	_, err := New(cfg).Package(testRequest(filepath.Join(t.TempDir(), "nope")))
	if !IsMissingBinary(err) {
		t.Fatalf("Package() error = %v, want MissingBinaryError", err)
	}
}

func TestPackageRejectsNonExecutable(t *testing.T) {
	cfg := testutil.NewTestConfig(t)
	binDir := t.TempDir()
	path := filepath.Join(binDir, "README")
	if err := os.WriteFile(path, []byte("docs"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := New(cfg).Package(testRequest(path))
	if !IsMissingBinary(err) {
		t.Fatalf("Package() error = %v, want MissingBinaryError", err)
	}
}

func TestPackageRejectsInvalidKey(t *testing.T) {
	cfg := testutil.NewTestConfig(t)
	bin := writeBinary(t, t.TempDir(), "hmc", []byte("x"))

	req := testRequest(bin)
	req.Target = "nonsense"
	if _, err := New(cfg).Package(req); err == nil {
		t.Error("Package accepted malformed target")
	}

	req = testRequest(bin)
	req.Version = "not!semver"
	if _, err := New(cfg).Package(req); err == nil {
		t.Error("Package accepted malformed version")
	}

	if _, err := New(cfg).Package(testRequest()); err == nil {
		t.Error("Package accepted empty binary list")
	}
}

func TestPackageRejectsNameCollision(t *testing.T) {
	cfg := testutil.NewTestConfig(t)
	a := writeBinary(t, t.TempDir(), "hmc", []byte("one"))
	b := writeBinary(t, t.TempDir(), "hmc", []byte("two"))

	if _, err := New(cfg).Package(testRequest(a, b)); err == nil {
		t.Error("Package accepted colliding archive names")
	}
}

func TestPackageLocalSentinelVersion(t *testing.T) {
	cfg := testutil.NewTestConfig(t)
	bin := writeBinary(t, t.TempDir(), "hmc", []byte("dev build"))

	req := testRequest(bin)
	req.Version = manifest.VersionLocal
	req.Profile = manifest.ProfileDev

	entry, err := New(cfg).Package(req)
	if err != nil {
		t.Fatalf("Package() error = %v", err)
	}
	if filepath.Base(entry.Location) != "kamado-toolchain-local-x86_64-unknown-linux-gnu-dev.tar.gz" {
		t.Errorf("archive name = %s", filepath.Base(entry.Location))
	}
}
