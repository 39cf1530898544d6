// Package detect defines the source detection boundary.
//
// A detector answers one question: does the content at a path belong
// to a language this toolchain handles. Detectors ship as separate
// binaries inside language toolchains; the host runs them and reads a
// single JSON result from stdout, so any language can plug in without
// the host knowing its detectors by name.
package detect

import "context"

// Request carries what a detector needs to inspect a path.
type Request struct {
	// Path is the file or directory to inspect.
	Path string

	// Args are extra command-line arguments for external detectors.
	Args []string

	// Env holds extra environment entries in KEY=VALUE form.
	Env []string
}

// Result is the detector's answer, serialized as JSON by external
// detectors on exit.
type Result struct {
	Pass      bool   `json:"pass"`
	Language  string `json:"language,omitempty"`
	Extension string `json:"extension,omitempty"`
}

// Pass builds a successful result.
func Pass(language, extension string) Result {
	return Result{Pass: true, Language: language, Extension: extension}
}

// Fail builds a negative result.
func Fail() Result {
	return Result{}
}

// Detector is implemented by anything that can answer a detection
// request. The core pipeline never depends on concrete detectors.
type Detector interface {
	Detect(ctx context.Context, req Request) (Result, error)
}
