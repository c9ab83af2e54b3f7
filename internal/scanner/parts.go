package scanner

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Multi-part indicator anchored at the end of the stripped name: a
// separator, a part keyword, then digits. "Movie-cd2.mkv" → ("Movie", 2).
var multiPartPattern = regexp.MustCompile(`(?i)[\s._-](?:cd|disc|disk|part)(\d+)$`)

// ParseParts splits a video file name into its base name and part index.
// A part index of 0 means the file is not part of a multi-part set (and
// sorts as if it were part 1).
func ParseParts(filename string) (base string, part int) {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))

	m := multiPartPattern.FindStringSubmatchIndex(name)
	if m == nil {
		return name, 0
	}

	part, err := strconv.Atoi(name[m[2]:m[3]])
	if err != nil {
		return name, 0
	}
	// m[0] is the separator position; everything before it is the base.
	return name[:m[0]], part
}
