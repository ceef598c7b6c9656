package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidAssetName is returned for names that are empty or would leave
	// the media directory.
	ErrInvalidAssetName = errors.New("invalid asset name")

	// ErrAssetNotFound is returned when the named asset is not a regular file
	// in the media directory.
	ErrAssetNotFound = errors.New("asset not found")
)

// Resolve joins dir and name and checks that the result is an existing
// regular file inside dir.
func Resolve(dir, name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAssetName, name)
	}
	path := filepath.Join(dir, name)

	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrAssetNotFound, name)
		}
		return "", fmt.Errorf("stat asset %s: %w", name, err)
	}
	if !fi.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a regular file", ErrAssetNotFound, name)
	}
	return path, nil
}
