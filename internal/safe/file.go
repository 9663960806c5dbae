package safe

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultMaxFileSize is the default maximum file size for safe file operations (1MB).
const DefaultMaxFileSize = 1 << 20

// FileOptions configures the validation applied before a file is read.
type FileOptions struct {
	// MaxSize is the maximum allowed file size in bytes. Zero means DefaultMaxFileSize.
	MaxSize int64
	// AllowSymlinks allows reading through symlinks. Default is false for security.
	AllowSymlinks bool
}

// Stat validates path and returns its cleaned form and file info.
// It rejects symlinks by default to prevent file inclusion attacks,
// validates file size, and ensures path names a regular file.
func Stat(path string, opts *FileOptions) (string, os.FileInfo, error) {
	if opts == nil {
		opts = &FileOptions{}
	}
	maxSize := opts.MaxSize
	if maxSize == 0 {
		maxSize = DefaultMaxFileSize
	}

	cleanPath := filepath.Clean(path)

	// Check file info without following symlinks.
	info, err := os.Lstat(cleanPath)
	if err != nil {
		return "", nil, err
	}

	if info.Mode()&os.ModeSymlink != 0 && !opts.AllowSymlinks {
		return "", nil, fmt.Errorf("file %q is a symlink, which is not allowed for security reasons", path)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		info, err = os.Stat(cleanPath)
		if err != nil {
			return "", nil, err
		}
	}

	if !info.Mode().IsRegular() {
		return "", nil, fmt.Errorf("path %q is not a regular file", path)
	}

	// Check file size to prevent resource exhaustion.
	if info.Size() > maxSize {
		return "", nil, fmt.Errorf("file exceeds maximum allowed size of %d bytes", maxSize)
	}
	return cleanPath, info, nil
}

// Open validates path with Stat and opens it read-only.
func Open(path string, opts *FileOptions) (*os.File, os.FileInfo, error) {
	cleanPath, info, err := Stat(path, opts)
	if err != nil {
		return nil, nil, err
	}
	// #nosec G304 - we have validated the file prior to this.
	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, nil, err
	}
	return f, info, nil
}

// ReadFile reads a file after validating it with Stat.
func ReadFile(path string, opts *FileOptions) ([]byte, error) {
	cleanPath, _, err := Stat(path, opts)
	if err != nil {
		return nil, err
	}
	// #nosec G304 - we have validated the file prior to this.
	return os.ReadFile(cleanPath)
}

// Create creates or truncates the file at path for writing. An existing
// path must be a regular file; symlinks and special files are refused.
func Create(path string, perm os.FileMode) (*os.File, error) {
	if perm == 0 {
		perm = 0o644
	}
	cleanPath := filepath.Clean(path)
	if info, err := os.Lstat(cleanPath); err == nil && !info.Mode().IsRegular() {
		return nil, fmt.Errorf("refusing to write to %q: not a regular file", path)
	}
	// #nosec G304 - the destination was checked above.
	return os.OpenFile(cleanPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
}
