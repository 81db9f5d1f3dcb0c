package semver

import (
	"regexp"
	"strconv"
	"strings"
)

// SemVer is a dotted numeric version such as a GDAL release number.
type SemVer struct {
	Original string // Original string (e.g., "v3.8.4" or "3.10.0dev")
	Parts    []int  // Parsed numeric parts [3, 8, 4]
}

// Parse parses a version string into a SemVer struct
func Parse(v string) SemVer {
	original := v
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")

	var nums []int
	for _, part := range strings.Split(v, ".") {
		// Extract numeric prefix from part (e.g., "0dev" -> 0)
		end := 0
		for end < len(part) && part[end] >= '0' && part[end] <= '9' {
			end++
		}
		n, _ := strconv.Atoi(part[:end])
		nums = append(nums, n)
	}

	return SemVer{
		Original: original,
		Parts:    nums,
	}
}

var versionInText = regexp.MustCompile(`\d+\.\d+(?:\.\d+)?`)

// FromToolOutput extracts the first version number found in the output of a
// `--version` invocation, e.g. "GDAL 3.8.4, released 2024/02/08".
func FromToolOutput(out string) (SemVer, bool) {
	m := versionInText.FindString(out)
	if m == "" {
		return SemVer{}, false
	}
	return Parse(m), true
}

// String returns the original version string
func (v SemVer) String() string {
	return v.Original
}

// Compare compares two versions
// Returns: -1 if v < other, 0 if equal, 1 if v > other
func (v SemVer) Compare(other SemVer) int {
	maxLen := max(len(v.Parts), len(other.Parts))
	for i := 0; i < maxLen; i++ {
		vPart, otherPart := 0, 0
		if i < len(v.Parts) {
			vPart = v.Parts[i]
		}
		if i < len(other.Parts) {
			otherPart = other.Parts[i]
		}
		if vPart < otherPart {
			return -1
		}
		if vPart > otherPart {
			return 1
		}
	}
	return 0
}

// AtLeast reports whether v >= minimum.
func (v SemVer) AtLeast(minimum string) bool {
	return v.Compare(Parse(minimum)) >= 0
}

// Less returns true if v < other (for sorting)
func (v SemVer) Less(other SemVer) bool {
	return v.Compare(other) < 0
}
