// Package events filters the deforestation event catalog of a municipality
// by date, size and category.
package events

import (
	"golang.org/x/text/unicode/norm"
)

// Uncategorized is the bucket for every sub-class outside the specific set.
const Uncategorized = "sem categoria"

// DefaultCategories are the sub-classes reported on their own.
var DefaultCategories = []string{
	"desmatamento por degradação progressiva",
	"corte raso com vegetação",
	"corte raso com solo exposto",
}

// NormalizeCategory maps a raw sub-class to one of the specific categories
// when it matches exactly after NFC normalization, and to Uncategorized
// otherwise. Applying it to its own output returns the same value.
func NormalizeCategory(raw string, specific []string) string {
	c := norm.NFC.String(raw)
	for _, s := range specific {
		if c == norm.NFC.String(s) {
			return c
		}
	}
	return Uncategorized
}

// AllCategories returns the specific categories followed by Uncategorized,
// the full set a filter accepts.
func AllCategories(specific []string) []string {
	out := make([]string, 0, len(specific)+1)
	for _, s := range specific {
		out = append(out, norm.NFC.String(s))
	}
	return append(out, Uncategorized)
}
