package codec

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	lzip "github.com/sorairolake/lzip-go"
	"github.com/ulikunitz/xz"
)

// Extract unpacks the archive at archivePath into destDir and returns
// the relative paths written, in extraction order.
//
// The format is detected from the filename suffix; bare kamado
// artifacts are tar.gz, the remaining formats cover archives mirrored
// from upstream toolchain releases. Any entry that would resolve
// outside destDir fails with ErrPathEscape before anything is written
// for it; a stream that does not parse fails with ErrCorruptArchive.
func Extract(archivePath, destDir string) ([]string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	switch detectFormat(archivePath) {
	case "tar.gz":
		gzr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
		}
		defer gzr.Close()
		return extractTar(tar.NewReader(gzr), destDir)
	case "tar.xz":
		xzr, err := xz.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
		}
		return extractTar(tar.NewReader(xzr), destDir)
	case "tar.bz2":
		return extractTar(tar.NewReader(bzip2.NewReader(f)), destDir)
	case "tar.zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
		}
		defer zr.Close()
		return extractTar(tar.NewReader(zr), destDir)
	case "tar.lz":
		lr, err := lzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
		}
		return extractTar(tar.NewReader(lr), destDir)
	case "tar":
		return extractTar(tar.NewReader(f), destDir)
	case "zip":
		return extractZip(archivePath, destDir)
	default:
		return nil, fmt.Errorf("%w: unrecognized archive format: %s", ErrCorruptArchive, filepath.Base(archivePath))
	}
}

// detectFormat maps a filename suffix to an archive format.
func detectFormat(filename string) string {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return "tar.gz"
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return "tar.xz"
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"):
		return "tar.bz2"
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return "tar.zst"
	case strings.HasSuffix(lower, ".tar.lz"), strings.HasSuffix(lower, ".tlz"):
		return "tar.lz"
	case strings.HasSuffix(lower, ".tar"):
		return "tar"
	case strings.HasSuffix(lower, ".zip"):
		return "zip"
	default:
		return "unknown"
	}
}

// isPathWithinDirectory checks if targetPath is contained in basePath.
// Prevents traversal where crafted archives write outside the
// destination via ".." components.
func isPathWithinDirectory(targetPath, basePath string) bool {
	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return false
	}
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return false
	}

	// The separator suffix stops /tmp/foo from matching /tmp/foobar.
	return absTarget == absBase || strings.HasPrefix(absTarget, absBase+string(os.PathSeparator))
}

// validateSymlinkTarget rejects symlinks that point outside destDir.
func validateSymlinkTarget(linkTarget, linkLocation, destDir string) error {
	if filepath.IsAbs(linkTarget) {
		return fmt.Errorf("%w: absolute symlink target %s -> %s", ErrPathEscape, linkLocation, linkTarget)
	}

	resolved := filepath.Join(filepath.Dir(linkLocation), linkTarget)
	if !isPathWithinDirectory(resolved, destDir) {
		return fmt.Errorf("%w: symlink %s -> %s resolves to %s", ErrPathEscape, linkLocation, linkTarget, resolved)
	}
	return nil
}

func extractTar(tr *tar.Reader, destDir string) ([]string, error) {
	var written []string

	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return written, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
		}

		relPath := filepath.Join(strings.Split(strings.TrimPrefix(header.Name, "./"), "/")...)
		if relPath == "" {
			continue
		}
		target := filepath.Join(destDir, relPath)

		if !isPathWithinDirectory(target, destDir) {
			return written, fmt.Errorf("%w: %s", ErrPathEscape, header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return written, fmt.Errorf("failed to create directory: %w", err)
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return written, fmt.Errorf("failed to create parent directory: %w", err)
			}

			f, err := os.OpenFile(target, os.O_CREATE|os.O_RDWR|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return written, fmt.Errorf("failed to create file: %w", err)
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return written, fmt.Errorf("failed to write file: %w", err)
			}
			if err := f.Close(); err != nil {
				return written, fmt.Errorf("failed to close file: %w", err)
			}
			written = append(written, relPath)

		case tar.TypeSymlink:
			if err := validateSymlinkTarget(header.Linkname, target, destDir); err != nil {
				return written, err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return written, fmt.Errorf("failed to create parent directory: %w", err)
			}
			if err := atomicSymlink(header.Linkname, target); err != nil {
				return written, fmt.Errorf("failed to create symlink: %w", err)
			}
			written = append(written, relPath)
		}
	}

	return written, nil
}

// atomicSymlink creates a symlink via rename so a concurrent reader
// never observes a half-replaced link.
func atomicSymlink(target, linkPath string) error {
	tmpLink := linkPath + ".tmp"
	os.Remove(tmpLink)

	if err := os.Symlink(target, tmpLink); err != nil {
		return err
	}
	if err := os.Rename(tmpLink, linkPath); err != nil {
		os.Remove(tmpLink)
		return err
	}
	return nil
}

func extractZip(archivePath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}
	defer r.Close()

	var written []string
	for _, f := range r.File {
		relPath := filepath.Join(strings.Split(strings.TrimPrefix(f.Name, "./"), "/")...)
		if relPath == "" {
			continue
		}
		target := filepath.Join(destDir, relPath)

		if !isPathWithinDirectory(target, destDir) {
			return written, fmt.Errorf("%w: %s", ErrPathEscape, f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return written, fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return written, fmt.Errorf("failed to create parent directory: %w", err)
		}

		rc, err := f.Open()
		if err != nil {
			return written, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
		}

		out, err := os.OpenFile(target, os.O_CREATE|os.O_RDWR|os.O_TRUNC, f.Mode())
		if err != nil {
			rc.Close()
			return written, fmt.Errorf("failed to create file: %w", err)
		}
		if _, err := io.Copy(out, rc); err != nil {
			out.Close()
			rc.Close()
			return written, fmt.Errorf("failed to write file: %w", err)
		}
		out.Close()
		rc.Close()
		written = append(written, relPath)
	}

	return written, nil
}
