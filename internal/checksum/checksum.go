package checksum

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// Algorithm selects the digest used for a file
type Algorithm string

const (
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
)

// File returns the lowercase hex digest of path.
// A missing file is not an error: the digest is empty.
func File(path string, algo Algorithm) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h, err := newHash(algo)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IsValid reports whether path exists and its SHA-1 equals expected.
// An empty expected hash only checks existence.
func IsValid(path, expected string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if expected == "" {
		return true
	}

	algo := SHA1
	if len(expected) == sha256.Size*2 {
		algo = SHA256
	}
	sum, err := File(path, algo)
	if err != nil || sum == "" {
		return false
	}
	return strings.EqualFold(sum, expected)
}

func newHash(algo Algorithm) (hash.Hash, error) {
	switch algo {
	case SHA1, "":
		return sha1.New(), nil
	case SHA256:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("unsupported checksum algorithm %q", algo)
	}
}
