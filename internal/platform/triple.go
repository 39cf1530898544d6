// Package platform provides target-triple parsing and host detection.
//
// A target triple identifies the CPU architecture, vendor, and operating
// system a binary was built for, in the form arch-vendor-os with an
// optional trailing ABI component (e.g. x86_64-unknown-linux-gnu,
// aarch64-apple-darwin).
package platform

import (
	"fmt"
	"runtime"
	"strings"
)

// knownArchs lists the architectures kamado distributes binaries for.
var knownArchs = map[string]bool{
	"x86_64":  true,
	"aarch64": true,
	"arm":     true,
	"i686":    true,
	"riscv64": true,
	"s390x":   true,
	"powerpc64le": true,
}

// knownSystems lists the recognized operating system components.
var knownSystems = map[string]bool{
	"linux":   true,
	"darwin":  true,
	"windows": true,
	"freebsd": true,
	"netbsd":  true,
	"illumos": true,
}

// Triple is a parsed target triple.
type Triple struct {
	Arch   string
	Vendor string
	OS     string
	ABI    string // optional, empty when the triple has three components
}

// String reassembles the triple in canonical form.
func (t Triple) String() string {
	s := t.Arch + "-" + t.Vendor + "-" + t.OS
	if t.ABI != "" {
		s += "-" + t.ABI
	}
	return s
}

// Parse validates and decomposes a target triple string.
// The grammar is arch-vendor-os with an optional abi component.
func Parse(s string) (Triple, error) {
	parts := strings.Split(s, "-")
	if len(parts) < 3 || len(parts) > 4 {
		return Triple{}, fmt.Errorf("invalid target triple %q: want arch-vendor-os[-abi]", s)
	}

	for _, p := range parts {
		if p == "" {
			return Triple{}, fmt.Errorf("invalid target triple %q: empty component", s)
		}
	}

	t := Triple{Arch: parts[0], Vendor: parts[1], OS: parts[2]}
	if len(parts) == 4 {
		t.ABI = parts[3]
	}

	if !knownArchs[t.Arch] {
		return Triple{}, fmt.Errorf("invalid target triple %q: unknown architecture %q", s, t.Arch)
	}
	if !knownSystems[t.OS] {
		return Triple{}, fmt.Errorf("invalid target triple %q: unknown operating system %q", s, t.OS)
	}

	return t, nil
}

// IsValid reports whether s parses as a target triple.
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// HostTriple returns the triple describing the running machine,
// derived from GOOS and GOARCH.
func HostTriple() string {
	return hostTripleFor(runtime.GOOS, runtime.GOARCH)
}

func hostTripleFor(goos, goarch string) string {
	arch := goarch
	switch goarch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	case "386":
		arch = "i686"
	case "ppc64le":
		arch = "powerpc64le"
	}

	switch goos {
	case "darwin":
		return arch + "-apple-darwin"
	case "windows":
		return arch + "-pc-windows-msvc"
	case "linux":
		return arch + "-unknown-linux-gnu"
	default:
		return arch + "-unknown-" + goos
	}
}
