// Package codec computes content digests and produces the archive
// format kamado distributes toolchains in.
//
// Digests are SHA-256 over the final archive byte stream, so the
// digest is independent of filesystem metadata on either side.
// Archiving normalizes tar headers and orders entries by name, making
// repeated packaging of identical inputs byte-identical.
package codec

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Digest computes the hex-encoded SHA-256 digest of a byte stream.
func Digest(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to read stream: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DigestBytes computes the hex-encoded SHA-256 digest of data.
func DigestBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DigestFile computes the hex-encoded SHA-256 digest of a file.
func DigestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	return Digest(f)
}

// ValidDigest reports whether s is a well-formed SHA-256 hex digest.
func ValidDigest(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
