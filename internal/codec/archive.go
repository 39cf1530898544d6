package codec

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"time"

	"github.com/klauspost/compress/gzip"
)

// Entry is one file to be placed in an archive, addressed by a
// slash-separated path relative to the archive root.
type Entry struct {
	Name string
	Mode fs.FileMode
	Body []byte
}

// Archive produces a tar.gz stream containing the given entries.
//
// The output is reproducible: entries are written in sorted name
// order, tar headers carry no timestamps or ownership, and the gzip
// header is left empty. Two calls with the same entries yield
// byte-identical output.
func Archive(entries []Entry) ([]byte, error) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var buf bytes.Buffer
	gzw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	tw := tar.NewWriter(gzw)

	seen := make(map[string]bool, len(sorted))
	for _, e := range sorted {
		name := path.Clean(e.Name)
		if name == "." || name == ".." || path.IsAbs(name) {
			return nil, fmt.Errorf("invalid archive entry name %q", e.Name)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate archive entry %q", name)
		}
		seen[name] = true

		hdr := &tar.Header{
			Name:     name,
			Mode:     int64(normalizeMode(e.Mode)),
			Size:     int64(len(e.Body)),
			Typeflag: tar.TypeReg,
			ModTime:  time.Unix(0, 0).UTC(),
			Format:   tar.FormatUSTAR,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("failed to write tar header for %s: %w", name, err)
		}
		if _, err := tw.Write(e.Body); err != nil {
			return nil, fmt.Errorf("failed to write tar entry %s: %w", name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish gzip stream: %w", err)
	}

	return buf.Bytes(), nil
}

// normalizeMode collapses file modes to two canonical values so the
// archive bytes do not depend on umask or owner bits: executables
// become 0755, everything else 0644.
func normalizeMode(mode fs.FileMode) fs.FileMode {
	if mode&0111 != 0 {
		return 0755
	}
	return 0644
}
