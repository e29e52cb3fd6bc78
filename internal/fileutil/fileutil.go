// Package fileutil provides filesystem helpers shared by the download engine
// and the PDF assembler.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// SanitizeName makes a remote display name safe to use as a path component.
// Separators and control characters are replaced, and the result is NFC
// normalized so the same course name always maps to the same directory.
func SanitizeName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"\x00", "",
	)
	cleaned := replacer.Replace(name)
	cleaned = strings.Map(func(r rune) rune {
		if r < 0x20 {
			return -1
		}
		return r
	}, cleaned)
	if cleaned == "" {
		return "_"
	}
	return cleaned
}

// EnsureParentDir creates the parent directory of path.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

// SizeMatches reports whether path exists as a regular file with exactly the
// given byte length. Any stat error counts as a mismatch.
func SizeMatches(path string, size int64) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return info.Size() == size
}

// WriteFileAtomic writes data to path through a temp file in the same
// directory followed by a rename, so readers never observe a truncated file.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	if err := EnsureParentDir(path); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
