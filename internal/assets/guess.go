package assets

import (
	"strings"
	"unicode"
)

// GuessDomains derives candidate domains for a company that is not in the
// directory, in the order they should be tried:
//
//	"Acme Corp" -> acmecorp.com, acme-corp.com, acmecorp.io
//
// Duplicates are removed, so single-word names yield two guesses.
func GuessDomains(company string) []string {
	name := strings.ToLower(strings.TrimSpace(company))
	if name == "" {
		return nil
	}

	compact := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, name)

	hyphenated := strings.Map(func(r rune) rune {
		switch {
		case r == ' ' || r == '_':
			return '-'
		case r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r):
			return r
		default:
			return -1
		}
	}, name)
	hyphenated = strings.Trim(hyphenated, "-")

	var out []string
	seen := make(map[string]bool, 3)
	add := func(stem, tld string) {
		if stem == "" {
			return
		}
		d := stem + tld
		if seen[d] {
			return
		}
		seen[d] = true
		out = append(out, d)
	}
	add(compact, ".com")
	add(hyphenated, ".com")
	add(compact, ".io")
	return out
}
