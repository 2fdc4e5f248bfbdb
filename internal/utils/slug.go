package utils

import (
	"strings"
)

// accentMap folds common accented characters so titles like "Créé" still
// produce a usable slug.
var accentMap = map[rune]rune{
	'á': 'a', 'à': 'a', 'ã': 'a', 'â': 'a', 'ä': 'a', 'å': 'a', 'ā': 'a',
	'é': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e', 'ē': 'e',
	'í': 'i', 'ì': 'i', 'î': 'i', 'ï': 'i', 'ī': 'i',
	'ó': 'o', 'ò': 'o', 'õ': 'o', 'ô': 'o', 'ö': 'o', 'ø': 'o', 'ō': 'o',
	'ú': 'u', 'ù': 'u', 'û': 'u', 'ü': 'u', 'ū': 'u',
	'ç': 'c', 'ć': 'c', 'č': 'c',
	'ñ': 'n', 'ń': 'n',
	'ý': 'y', 'ÿ': 'y',
	'ß': 's',
}

// Slugify derives a URL-safe identifier from a title or a user-supplied slug
// field. Returns "" when the input contains no usable characters; callers
// treat that as a validation error.
func Slugify(input string) string {
	slug := strings.ToLower(strings.TrimSpace(input))

	slug = strings.Map(func(r rune) rune {
		if replacement, ok := accentMap[r]; ok {
			return replacement
		}
		return r
	}, slug)

	slug = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		if r == ' ' || r == '_' {
			return '-'
		}
		return -1
	}, slug)

	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	return strings.Trim(slug, "-")
}

// Excerpt truncates plain text to at most maxLen characters, cutting at a
// word boundary and appending an ellipsis when anything was dropped.
func Excerpt(text string, maxLen int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}

	cut := string(runes[:maxLen])
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " .,;:") + "..."
}
