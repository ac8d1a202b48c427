// Package pathsafe implements the Path Sanitizer (spec.md §4.1): pure
// functions that normalize names and enforce root containment. Every
// filesystem write or move in this codebase routes through UnderRoot.
package pathsafe

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/franz/sonora/internal/apperr"
	"golang.org/x/text/unicode/norm"
)

var illegalChars = regexp.MustCompile(`[/\\:*?"<>|]`)
var whitespaceRun = regexp.MustCompile(`\s+`)

// CleanName strips control characters, replaces filesystem-hostile
// characters with underscores, collapses repeated spaces, and trims
// the result. An empty result is rejected.
func CleanName(raw string) (string, error) {
	s := norm.NFC.String(raw)
	s = removeControlChars(s)
	s = illegalChars.ReplaceAllString(s, "_")
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = strings.Trim(s, " .")

	if s == "" {
		return "", fmt.Errorf("%w: name is empty after cleaning %q", apperr.ErrPathEscape, raw)
	}
	return s, nil
}

func removeControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)
}

// UnderRoot resolves root and candidate to absolute, canonical form and
// requires candidate to have root as a path prefix. It returns the
// canonicalized candidate path on success.
func UnderRoot(root, candidate string) (string, error) {
	absRoot, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	absCandidate, err := filepath.Abs(filepath.Clean(candidate))
	if err != nil {
		return "", fmt.Errorf("resolve candidate: %w", err)
	}

	rel, err := filepath.Rel(absRoot, absCandidate)
	if err != nil {
		return "", fmt.Errorf("%w: %s is not comparable to root %s", apperr.ErrPathEscape, candidate, root)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s escapes root %s", apperr.ErrPathEscape, candidate, root)
	}

	return absCandidate, nil
}

// canonicalCapitalizationExceptions holds artist names whose stylized
// all-caps form should be preserved verbatim.
var canonicalCapitalizationExceptions = map[string]string{
	"ac/dc":    "AC/DC",
	"acdc":     "AC/DC",
	"abba":     "ABBA",
	"mgmt":     "MGMT",
	"mstrkrft": "MSTRKRFT",
	"unkle":    "UNKLE",
}

var lowercaseWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"of": true, "in": true, "on": true, "at": true, "to": true, "for": true,
	"feat": true, "feat.": true, "ft": true, "ft.": true, "vs": true, "vs.": true,
}

// CanonicalArtistCase applies a deterministic title-casing rule to an
// artist name so libraries with inconsistently-cased tags produce a
// stable directory name under the Organizer's canonical layout
// (spec.md §4.8). A small set of stylized-capitalization exceptions is
// preserved (e.g. "AC/DC", "ABBA").
func CanonicalArtistCase(artist string) string {
	if artist == "" {
		return ""
	}

	artist = norm.NFC.String(strings.TrimSpace(artist))

	if canonical, ok := canonicalCapitalizationExceptions[strings.ToLower(artist)]; ok {
		return canonical
	}

	if strings.HasPrefix(artist, "&") {
		trimmed := strings.TrimPrefix(artist, "&")
		if len(trimmed) <= 3 {
			return "&" + strings.ToUpper(trimmed)
		}
		return "&" + titleCase(trimmed)
	}

	return titleCase(artist)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	result := make([]string, len(words))
	for i, word := range words {
		lower := strings.ToLower(word)
		if i > 0 && lowercaseWords[lower] {
			result[i] = lower
			continue
		}
		result[i] = capitalizeWord(word)
	}
	return strings.Join(result, " ")
}

func capitalizeWord(word string) string {
	if word == "" {
		return ""
	}
	runes := []rune(word)
	hasLower, hasUpper := false, false
	for _, r := range runes {
		if unicode.IsLetter(r) {
			if unicode.IsLower(r) {
				hasLower = true
			}
			if unicode.IsUpper(r) {
				hasUpper = true
			}
		}
	}
	if (hasUpper && !hasLower) || (hasLower && !hasUpper) {
		runes[0] = unicode.ToUpper(runes[0])
		for i := 1; i < len(runes); i++ {
			runes[i] = unicode.ToLower(runes[i])
		}
	} else {
		runes[0] = unicode.ToUpper(runes[0])
	}
	return string(runes)
}
