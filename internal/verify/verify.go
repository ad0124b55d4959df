// Package verify checks local files against the size and SHA-1 digest a
// manifest declares for them. It is the single source of truth for "is this
// cached artifact still valid", shared by the manifest store and the
// download orchestrator.
package verify

import (
	"fmt"
	"os"

	"github.com/vk/launchcraft/internal/fsutil"
)

// IntegrityError reports a size or digest mismatch between a local file and
// its expected values.
type IntegrityError struct {
	Path     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity mismatch for %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

// File validates the file at path against wantSize and wantSHA1. A negative
// wantSize or empty wantSHA1 skips that check. Returns an *IntegrityError on
// mismatch, or the underlying os error when the file cannot be read.
func File(path string, wantSize int64, wantSHA1 string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if wantSize >= 0 && info.Size() != wantSize {
		return &IntegrityError{
			Path:     path,
			Expected: fmt.Sprintf("size %d", wantSize),
			Actual:   fmt.Sprintf("size %d", info.Size()),
		}
	}
	if wantSHA1 == "" {
		return nil
	}
	digest, _, err := fsutil.FileSHA1(path)
	if err != nil {
		return err
	}
	if digest != wantSHA1 {
		return &IntegrityError{Path: path, Expected: "sha1 " + wantSHA1, Actual: "sha1 " + digest}
	}
	return nil
}

// Bytes validates an in-memory payload against an expected SHA-1 digest.
func Bytes(data []byte, wantSHA1 string) error {
	if wantSHA1 == "" {
		return nil
	}
	if digest := fsutil.SHA1Bytes(data); digest != wantSHA1 {
		return &IntegrityError{Expected: "sha1 " + wantSHA1, Actual: "sha1 " + digest}
	}
	return nil
}
