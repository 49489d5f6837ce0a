package domain

import (
	"fmt"
	"strconv"
)

// ParseVersionTag parses a snapshot version tag. Tags are decimal integers
// starting at 1; the parse rejects signs, leading zeros, and zero itself so
// that tag ordering coincides with numeric ordering.
func ParseVersionTag(tag string) (uint64, error) {
	if tag == "" {
		return 0, fmt.Errorf("empty version tag")
	}
	if tag[0] == '0' || tag[0] == '+' || tag[0] == '-' {
		return 0, fmt.Errorf("invalid version tag %q", tag)
	}
	n, err := strconv.ParseUint(tag, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid version tag %q: %w", tag, err)
	}
	return n, nil
}

// NextVersionTag returns the tag following the supplied snapshots, seeding at
// "1" when no snapshot exists. Unparseable tags are ignored rather than
// halting generation; the store rejects them at insert time.
func NextVersionTag(existing []GeneratedTheme) string {
	var max uint64
	for _, snapshot := range existing {
		if n, err := ParseVersionTag(snapshot.Version); err == nil && n > max {
			max = n
		}
	}
	return strconv.FormatUint(max+1, 10)
}
