package download

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// Unzip extracts archive into a sibling directory named after the archive
// without its extension, then removes the archive.
func Unzip(archive string) (string, error) {
	dest := strings.TrimSuffix(archive, filepath.Ext(archive))
	if dest == archive {
		dest = archive + "_extracted"
	}

	if err := ExtractZip(archive, dest, nil); err != nil {
		return "", err
	}

	if err := os.Remove(archive); err != nil {
		return "", fmt.Errorf("failed to remove archive: %w", err)
	}
	return dest, nil
}

// ExtractZip extracts archive into dest, skipping entries whose name starts
// with one of the exclude prefixes.
func ExtractZip(archive, dest string, exclude []string) error {
	reader, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", archive, err)
	}
	defer func() { _ = reader.Close() }()

	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dest, err)
	}

	for _, f := range reader.File {
		if excluded(f.Name, exclude) {
			continue
		}

		target := filepath.Join(dest, filepath.FromSlash(f.Name))
		if err := ensureWithinRoot(dest, target); err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", target, err)
			}
			continue
		}

		if err := extractFile(f, target); err != nil {
			return err
		}
	}

	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", target, err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open entry %s: %w", f.Name, err)
	}
	defer func() { _ = src.Close() }()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", target, err)
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return nil
}

// Decompress decodes a single xz or lzma stream into the sibling file without
// the extension and returns that path. The compressed file is kept.
func Decompress(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	out := strings.TrimSuffix(path, filepath.Ext(path))

	in, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = in.Close() }()

	var r io.Reader
	switch ext {
	case ".xz":
		r, err = xz.NewReader(in)
	case ".lzma":
		r, err = lzma.NewReader(in)
	default:
		return "", fmt.Errorf("unsupported compressed format %q", ext)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s stream: %w", ext, err)
	}

	tmpPath := out + ".tmp"
	dst, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", tmpPath, err)
	}
	_, err = io.Copy(dst, r)
	_ = dst.Close()
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to decompress %s: %w", path, err)
	}

	if err := os.Rename(tmpPath, out); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to move file: %w", err)
	}
	return out, nil
}

func excluded(name string, exclude []string) bool {
	for _, prefix := range exclude {
		if prefix != "" && strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func ensureWithinRoot(root, target string) error {
	root = filepath.Clean(root)
	target = filepath.Clean(target)
	if target == root {
		return nil
	}
	if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return fmt.Errorf("illegal path in archive: %s", target)
	}
	return nil
}
