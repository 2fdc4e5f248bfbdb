package utils

import (
	"strconv"
)

// StringToInt converts string to int, returns 0 if error
func StringToInt(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return i
}

// ParsePositiveIDs coerces raw form values to positive integer identifiers,
// silently dropping anything unparseable or non-positive.
func ParsePositiveIDs(raw []string) []uint {
	ids := make([]uint, 0, len(raw))
	for _, s := range raw {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			continue
		}
		ids = append(ids, uint(n))
	}
	return ids
}
