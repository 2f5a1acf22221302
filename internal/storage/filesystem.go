package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// CopyFile copies the contents of srcPath into a newly created destPath.
func CopyFile(srcPath string, destPath string) error {
	srcFile, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	destFile, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer destFile.Close()

	_, err = destFile.ReadFrom(srcFile)
	return err
}

// MoveFile renames srcPath to destPath, falling back to copy-and-remove when
// the two paths live on different filesystems.
func MoveFile(srcPath string, destPath string) error {
	if err := os.Rename(srcPath, destPath); err != nil {

		var linkErr *os.LinkError
		if errors.As(err, &linkErr) && linkErr.Err == syscall.EXDEV {
			if copyErr := CopyFile(srcPath, destPath); copyErr != nil {
				return copyErr
			}

			// Best-effort cleanup of the source file; ignore ENOENT in case
			// it was already removed.
			if rmErr := os.Remove(srcPath); rmErr != nil && !os.IsNotExist(rmErr) {
				return rmErr
			}
			return nil
		}
		return err
	}

	return nil
}

// WriteTempFile streams r into a temporary file inside dir while hashing it.
// It returns the temp file path, the SHA-256 hex digest and the byte count.
// The caller owns the returned file and must move or remove it.
func WriteTempFile(dir string, r io.Reader) (string, string, int64, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", 0, err
	}

	f, err := os.CreateTemp(dir, "upload-*")
	if err != nil {
		return "", "", 0, err
	}

	hasher := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, hasher), r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return "", "", 0, err
	}

	return f.Name(), hex.EncodeToString(hasher.Sum(nil)), n, nil
}

// removeEmptyParent deletes the directory containing path if it is empty.
func removeEmptyParent(path string) {
	dir := filepath.Dir(path)
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 0 {
		return
	}
	_ = os.Remove(dir)
}
