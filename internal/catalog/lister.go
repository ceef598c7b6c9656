package catalog

import (
	"os"
	"path/filepath"
)

// List returns the names of files directly under dir whose extension is a
// supported format. Tagged variants and untagged sources are both included.
//
// Names come back in the order the operating system's directory scan yields
// them; callers must not rely on any particular order or on it being stable
// between calls. A missing or unreadable directory yields an empty list
// together with the error.
func List(dir string) ([]string, error) {
	d, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	entries, err := d.ReadDir(-1)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsSupportedFormat(filepath.Ext(e.Name())) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Assets is List with each name parsed into an Asset.
func Assets(dir string) ([]Asset, error) {
	names, err := List(dir)
	if err != nil {
		return nil, err
	}
	assets := make([]Asset, 0, len(names))
	for _, n := range names {
		assets = append(assets, ParseAsset(dir, n))
	}
	return assets, nil
}
