package names

import (
	"regexp"
	"strings"

	"github.com/hyperjump/nasab/internal/arabic"
)

// AbuForms are the nominative, accusative and genitive forms of "father of".
var AbuForms = []string{"ابو", "ابا", "ابي"}

var kunyaPrefix = regexp.MustCompile(`^(?:ابو|ابا|ابي)\s+(.+)$`)

// ExpandKunya returns the case variants of a kunya. A kunya starting with
// ابو, ابا or ابي yields exactly those three forms; any other text (a laqab,
// say) is returned normalized as its only variant.
func ExpandKunya(text string) []string {
	normalized := strings.Join(strings.Fields(arabic.Normalize(text)), " ")
	if normalized == "" {
		return nil
	}
	m := kunyaPrefix.FindStringSubmatch(normalized)
	if m == nil {
		return []string{normalized}
	}
	variants := make([]string, len(AbuForms))
	for i, abu := range AbuForms {
		variants[i] = abu + " " + m[1]
	}
	return variants
}

// ExpandKunyas expands every entry and unions the results in order.
func ExpandKunyas(kunyas []string) []string {
	var set patternSet
	for _, k := range kunyas {
		for _, v := range ExpandKunya(k) {
			set.add(v)
		}
	}
	return set.items
}
