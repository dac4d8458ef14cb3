// Package matcher resolves a canonical title against a provider catalog using
// normalized titles, edit-distance similarity and a cascading date/title policy.
package matcher

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	looseKeywords  = regexp.MustCompile(`season|cour|part`)
	strictKeywords = regexp.MustCompile(`season|cour|part|uncensored`)
	ordinalSuffix  = regexp.MustCompile(`(\d+)(?:st|nd|rd|th)`)
	nonAlnum       = regexp.MustCompile(`[^a-z0-9]+`)
)

// NormalizeLoose canonicalizes a title for comparison against another media title.
// It strips season/cour/part, ordinal suffixes and every non [a-z0-9] character,
// and folds a standalone "ii" to "2".
func NormalizeLoose(title string) string {
	return normalize(title, looseKeywords, true)
}

// NormalizeStrict is NormalizeLoose without the "ii" folding and with "uncensored"
// also stripped. It is used against raw user queries.
func NormalizeStrict(title string) string {
	return normalize(title, strictKeywords, false)
}

func normalize(title string, keywords *regexp.Regexp, foldII bool) string {
	if title == "" {
		return ""
	}
	s := foldDiacritics(title)
	// Stripping can join fragments into a new keyword ("sea son"), so repeat
	// until nothing changes. Every pass that changes s shortens it.
	for {
		next := normalizePass(s, keywords, foldII)
		if next == s {
			return next
		}
		s = next
	}
}

func normalizePass(s string, keywords *regexp.Regexp, foldII bool) string {
	s = strings.ToLower(s)
	s = keywords.ReplaceAllString(s, "")
	s = ordinalSuffix.ReplaceAllString(s, "$1")
	s = nonAlnum.ReplaceAllString(s, "")
	if foldII {
		s = foldRomanTwo(s)
	}
	return s
}

// foldRomanTwo replaces every run of exactly two 'i' characters with "2".
func foldRomanTwo(s string) string {
	if !strings.Contains(s, "ii") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] != 'i' {
			b.WriteByte(s[i])
			i++
			continue
		}
		j := i
		for j < len(s) && s[j] == 'i' {
			j++
		}
		if j-i == 2 {
			b.WriteByte('2')
		} else {
			b.WriteString(s[i:j])
		}
		i = j
	}
	return b.String()
}

// foldDiacritics removes combining marks so accented Latin letters survive
// the alphanumeric filter ("Pokémon" becomes "Pokemon").
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
