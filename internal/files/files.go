// Package files is the local filesystem side of a transfer: existence checks,
// reads, atomic writes and content digests.
package files

import (
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

var (
	// ErrSourceMissing is returned when the file to push does not exist.
	ErrSourceMissing = errors.New("source file does not exist")
	// ErrDestinationExists is returned when a pull would overwrite a file without force.
	ErrDestinationExists = errors.New("destination file already exists")
)

// LocalIOError reports a failed local file operation.
type LocalIOError struct {
	Op   string // "stat", "read" or "write"
	Path string
	Err  error
}

func (e *LocalIOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *LocalIOError) Unwrap() error { return e.Err }

// OSStore reads and writes files on the local disk.
type OSStore struct{}

// Exists reports whether path exists.
func (OSStore) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, &LocalIOError{Op: "stat", Path: path, Err: err}
	}
}

// Size returns the size of the file at path in bytes.
func (OSStore) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = ErrSourceMissing
		}
		return 0, &LocalIOError{Op: "stat", Path: path, Err: err}
	}
	if info.IsDir() {
		return 0, &LocalIOError{Op: "stat", Path: path, Err: errors.New("is a directory")}
	}
	return info.Size(), nil
}

// ReadFile returns the whole content of path.
func (OSStore) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = ErrSourceMissing
		}
		return nil, &LocalIOError{Op: "read", Path: path, Err: err}
	}
	return data, nil
}

// WriteFile writes data to path through a temporary file in the same
// directory, renamed into place once complete. Without force an existing
// path is left untouched and ErrDestinationExists is returned.
func (s OSStore) WriteFile(path string, data []byte, force bool) error {
	if !force {
		exists, err := s.Exists(path)
		if err != nil {
			return err
		}
		if exists {
			return &LocalIOError{Op: "write", Path: path, Err: ErrDestinationExists}
		}
	}

	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &LocalIOError{Op: "write", Path: path, Err: errors.Wrap(err, "creating temp file")}
	}
	tmpPath := f.Name()

	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return &LocalIOError{Op: "write", Path: path, Err: errors.Wrap(err, "writing temp file")}
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return &LocalIOError{Op: "write", Path: path, Err: errors.Wrap(err, "setting mode")}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &LocalIOError{Op: "write", Path: path, Err: errors.Wrap(err, "moving file into place")}
	}
	return nil
}

// Digest returns the hex BLAKE2b-256 sum of data.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
