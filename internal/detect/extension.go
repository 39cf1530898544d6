package detect

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// ExtensionDetector recognizes a language by file extension. A
// directory passes when any first-level entry matches; it does not
// recurse.
type ExtensionDetector struct {
	Language  string
	Extension string
}

func (d ExtensionDetector) Detect(ctx context.Context, req Request) (Result, error) {
	if d.matches(req.Path) {
		return Pass(d.Language, d.Extension), nil
	}

	info, err := os.Stat(req.Path)
	if err != nil || !info.IsDir() {
		return Fail(), nil
	}

	entries, err := os.ReadDir(req.Path)
	if err != nil {
		return Fail(), nil
	}
	for _, entry := range entries {
		if !entry.IsDir() && d.matches(entry.Name()) {
			return Pass(d.Language, d.Extension), nil
		}
	}
	return Fail(), nil
}

func (d ExtensionDetector) matches(path string) bool {
	return strings.TrimPrefix(filepath.Ext(path), ".") == d.Extension
}
