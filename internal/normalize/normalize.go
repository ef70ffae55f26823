// Package normalize canonicalizes contribution text so that trivially
// different renderings of the same submission (case, compatibility forms,
// whitespace runs) merge into one ledger row instead of diluting votes
// across near-identical candidates.
//
// The canonical form is: Unicode NFKC, case-folded, whitespace collapsed to
// single ASCII spaces, trimmed. It is stored alongside the raw text and
// backs the ledger's duplicate-merge unique index; it is never shown to
// voters.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

// Text returns the canonical form of s used for duplicate detection.
//
// Two submissions are considered identical when their canonical forms match;
// the raw text of the first submission is what circulates to voters.
func Text(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	s = whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
	return s
}

// Equal reports whether a and b normalize to the same canonical form.
func Equal(a, b string) bool { return Text(a) == Text(b) }
