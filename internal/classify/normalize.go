// Package classify assigns housing-type categories to permit records using
// keyword rules over normalized free text.
package classify

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// dottedAbbrev matches dotted letter abbreviations such as "a.d.u." or "t.i.".
var dottedAbbrev = regexp.MustCompile(`\b(?:[a-z]\.){2,}(?:[a-z]\b)?`)

// Normalize returns a lower-case, punctuation-free, single-spaced form of s
// suitable for keyword matching. Dotted abbreviations collapse ("A.D.U." ->
// "adu") and diacritics are stripped. Empty input yields "".
func Normalize(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}

	s = stripMarks(s)
	s = strings.ToLower(s)
	s = dottedAbbrev.ReplaceAllStringFunc(s, func(m string) string {
		return strings.ReplaceAll(m, ".", "")
	})
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)

	return strings.Join(strings.Fields(s), " ")
}

// stripMarks decomposes s and drops nonspacing marks ("é" -> "e").
func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
