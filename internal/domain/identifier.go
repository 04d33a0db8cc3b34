/**
 * @description
 * Derivation of the primary account identifier from a person's name or a
 * unit's name. The identifier is the local part of the account address and
 * must be deterministic, lowercase ASCII, and diacritic-insensitive.
 */
package domain

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes accented characters and removes the combining marks,
// leaving the base ASCII letter.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var (
	invalidChars   = regexp.MustCompile(`[^a-z0-9_\s-]`)
	multipleHyphen = regexp.MustCompile(`--+`)
	whitespace     = regexp.MustCompile(`\s+`)
)

// Sanitize normalizes a single name component: diacritics stripped,
// lowercased, punctuation and inner spaces removed, hyphen runs collapsed.
func Sanitize(s string) string {
	// NFD decomposition cannot handle the Polish stroked L.
	s = strings.NewReplacer("Ł", "l", "ł", "l").Replace(s)
	if stripped, _, err := transform.String(stripMarks, s); err == nil {
		s = stripped
	}
	s = strings.ToLower(s)
	s = invalidChars.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = whitespace.ReplaceAllString(s, "")
	s = multipleHyphen.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	return s
}

// ProposeIdentifier derives the primary identifier for a personal account.
// ProposeIdentifier("Łukasz", "Nowak-Zdrój") == "lukasz.nowak-zdroj".
func ProposeIdentifier(name, surname string) string {
	return Sanitize(name) + "." + Sanitize(surname)
}

// SplitUnitName splits a unit's display name into given/family components.
// The last whitespace-delimited token becomes the family name; a single-word
// unit name is duplicated into both components.
func SplitUnitName(unitName string) (givenName, familyName string) {
	fields := strings.Fields(unitName)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], fields[0]
	default:
		return strings.Join(fields[:len(fields)-1], " "), fields[len(fields)-1]
	}
}
