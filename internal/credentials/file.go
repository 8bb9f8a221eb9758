package credentials

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// FileStore provides file-based API key storage, rejecting files with
// permissions wider than owner-read/write.
type FileStore struct {
	filePath string
}

// Compile-time check to ensure FileStore implements Store
var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore for the given path.
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	return &FileStore{
		filePath: filePath,
	}, nil
}

// Read returns the stored key after trimming whitespace. Returns error if the
// file doesn't exist, is empty, or has insecure permissions.
func (f *FileStore) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	info, err := os.Stat(f.filePath)
	if err != nil {
		return "", err
	}
	if info.Mode().Perm()&0077 != 0 {
		return "", fmt.Errorf("insecure permissions on %s: %04o (expected no group/other access)", f.filePath, info.Mode().Perm())
	}

	data, err := os.ReadFile(f.filePath)
	if err != nil {
		return "", err
	}

	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("empty key file %s", f.filePath)
	}
	return key, nil
}
