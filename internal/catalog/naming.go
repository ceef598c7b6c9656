package catalog

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	resolutionTag  = regexp.MustCompile(`[-_](240p|360p|480p|720p|1080p)`)
	trailingExt    = regexp.MustCompile(`\.[^.]+$`)
	derivedPattern = regexp.MustCompile(`^.*[-_](240p|360p|480p|720p|1080p)\.(mp4|mkv|avi)$`)
)

// partialSuffix is appended to a variant while the transcoder writes it.
const partialSuffix = ".part"

// IsDerived reports whether name already carries a resolution tag on a
// supported container, e.g. "movie-720p.mkv" or "movie_360p.mp4".
func IsDerived(name string) bool {
	return derivedPattern.MatchString(name)
}

// IsSource reports whether name is a build input: an untagged video file
// that is neither hidden nor an in-progress transcode.
func IsSource(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, partialSuffix) {
		return false
	}
	if IsDerived(name) {
		return false
	}
	return sourceExtensions[strings.ToLower(filepath.Ext(name))]
}

// CleanBaseName strips every resolution tag and the extension:
// "movie-720p.mp4" and "movie.mov" both yield "movie".
func CleanBaseName(name string) string {
	name = resolutionTag.ReplaceAllString(name, "")
	return trailingExt.ReplaceAllString(name, "")
}

// VariantName is the file name of base at the given resolution and format.
func VariantName(base string, r Resolution, f Format) string {
	return base + "-" + string(r) + "." + string(f)
}
