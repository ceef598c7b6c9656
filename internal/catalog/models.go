// Package catalog owns the on-disk media store: the resolution × format
// matrix, derived-asset naming, the one-time variant build and the listing
// served to clients.
package catalog

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Resolution is a target height tag such as "720p".
type Resolution string

const (
	Res240p  Resolution = "240p"
	Res360p  Resolution = "360p"
	Res480p  Resolution = "480p"
	Res720p  Resolution = "720p"
	Res1080p Resolution = "1080p"

	// ResOriginal marks a source asset that carries no resolution tag.
	ResOriginal Resolution = "original"
)

// Resolutions is the ordered resolution half of the build matrix.
var Resolutions = []Resolution{Res240p, Res360p, Res480p, Res720p, Res1080p}

var dimensions = map[Resolution][2]int{
	Res240p:  {426, 240},
	Res360p:  {640, 360},
	Res480p:  {854, 480},
	Res720p:  {1280, 720},
	Res1080p: {1920, 1080},
}

// Dimensions returns the pixel size for r. Unknown resolutions get 480p's size.
func (r Resolution) Dimensions() (width, height int) {
	d, ok := dimensions[r]
	if !ok {
		d = dimensions[Res480p]
	}
	return d[0], d[1]
}

// Scale renders the value of an ffmpeg scale filter, e.g. "1280:720".
func (r Resolution) Scale() string {
	w, h := r.Dimensions()
	return fmt.Sprintf("%d:%d", w, h)
}

// Format is a container file extension without the dot.
type Format string

const (
	FormatMP4 Format = "mp4"
	FormatMKV Format = "mkv"
	FormatAVI Format = "avi"
)

// Formats is the ordered format half of the build matrix. It is also the
// extension filter for catalog listings.
var Formats = []Format{FormatMP4, FormatMKV, FormatAVI}

// Muxer is the ffmpeg -f name for the container.
func (f Format) Muxer() string {
	if f == FormatMKV {
		return "matroska"
	}
	return string(f)
}

// IsSupportedFormat reports whether ext (with or without the leading dot) is
// one of Formats. The comparison is exact, matching the on-disk names written
// by the builder.
func IsSupportedFormat(ext string) bool {
	ext = strings.TrimPrefix(ext, ".")
	for _, f := range Formats {
		if string(f) == ext {
			return true
		}
	}
	return false
}

// sourceExtensions are the containers accepted as build inputs.
var sourceExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".webm": true,
	".m4v":  true,
	".flv":  true,
	".wmv":  true,
	".mpeg": true,
	".mpg":  true,
	".ts":   true,
	".3gp":  true,
}

// Asset is a playable file in the media store, source or derived.
type Asset struct {
	Name       string     `json:"name"`
	Base       string     `json:"base"`
	Resolution Resolution `json:"resolution"`
	Format     Format     `json:"format"`
	Path       string     `json:"-"`
}

// Derived reports whether the asset is a builder-produced variant.
func (a Asset) Derived() bool {
	return a.Resolution != ResOriginal
}

// ParseAsset describes the file name found in dir.
func ParseAsset(dir, name string) Asset {
	a := Asset{
		Name:       name,
		Base:       CleanBaseName(name),
		Resolution: ResOriginal,
		Format:     Format(strings.TrimPrefix(filepath.Ext(name), ".")),
		Path:       filepath.Join(dir, name),
	}
	if m := derivedPattern.FindStringSubmatch(name); m != nil {
		a.Resolution = Resolution(m[1])
	}
	return a
}
