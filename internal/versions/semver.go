package versions

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	semver "github.com/Masterminds/semver/v3"
)

// The suffix after the third group must not start with a digit or a dot, so
// "1.2.3.4" and "1.2.34" style ambiguities never collapse into a valid core.
var releaseCorePattern = regexp.MustCompile(`^([0-9]+)\.([0-9]+)\.([0-9]+)(?:[^0-9.].*)?$`)

// Parse normalizes a raw tag into its numeric core. The leading "v" and any
// pre-release or build suffix are dropped.
func Parse(raw string) (Version, bool) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "v")

	m := releaseCorePattern.FindStringSubmatch(trimmed)
	if m == nil {
		return Version{}, false
	}

	parts := make([]int, 0, 3)
	for _, group := range m[1:4] {
		n, err := strconv.Atoi(group)
		if err != nil || n < 0 {
			return Version{}, false
		}
		parts = append(parts, n)
	}

	return Version{Raw: raw, Major: parts[0], Minor: parts[1], Patch: parts[2]}, true
}

// ParseMinimum reads an "X.Y.Z" policy string; a leading "v" is tolerated.
func ParseMinimum(raw string) (Minimum, error) {
	v, ok := Parse(raw)
	if !ok || strings.ContainsAny(strings.TrimPrefix(strings.TrimSpace(raw), "v"), "-+") {
		return Minimum{}, fmt.Errorf("invalid minimum version %q (want MAJOR.MINOR.PATCH)", raw)
	}
	return Minimum{Major: v.Major, Minor: v.Minor, Patch: v.Patch}, nil
}

func (m Minimum) String() string {
	return fmt.Sprintf("%d.%d.%d", m.Major, m.Minor, m.Patch)
}

func (v Version) semver() *semver.Version {
	return semver.New(uint64(v.Major), uint64(v.Minor), uint64(v.Patch), "", "")
}

func (m Minimum) semver() *semver.Version {
	return semver.New(uint64(m.Major), uint64(m.Minor), uint64(m.Patch), "", "")
}

// AtLeast compares the numeric cores component by component.
func (v Version) AtLeast(m Minimum) bool {
	return !v.semver().LessThan(m.semver())
}

// Supported reports whether raw normalizes to a release at or above min.
// Malformed tags are rejected, never reported as errors.
func Supported(raw string, min Minimum) bool {
	v, ok := Parse(raw)
	if !ok {
		return false
	}
	return v.AtLeast(min)
}
