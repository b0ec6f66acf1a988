// Package names generates the search-string variants of a historical Arabic
// name from its kunya, nasab and nisba components.
package names

import (
	"regexp"
	"strings"

	"github.com/hyperjump/nasab/internal/arabic"
)

// Linking particles between consecutive names of a nasab.
const (
	Ibn  = "بن"
	Bint = "بنت"
	// IbnFull is the spelled-out form that may open a headless nasab.
	IbnFull = "ابن"
)

// MaxNasabParts is how many lineage names are used; longer chains are cut.
const MaxNasabParts = 3

var nasabSplit = regexp.MustCompile(`\s+(?:` + Bint + `|` + Ibn + `)\s+`)

// NasabInfo is a nasab split into its individual names.
type NasabInfo struct {
	Parts    []string `json:"parts"`
	IsFemale bool     `json:"is_female"`
}

// ParseNasab splits a free-text nasab on the linking particles.
//
// IsFemale is a plain substring check for بنت on the text with vowel marks
// stripped, so a name such as "احمد بن بنت الحسن" is also reported as
// female. A particle that opens the text stays attached to the first part
// ("بنت محمد").
func ParseNasab(text string) NasabInfo {
	normalized := strings.TrimSpace(arabic.Normalize(text))
	info := NasabInfo{IsFemale: strings.Contains(normalized, Bint)}
	if normalized == "" {
		return info
	}
	for _, seg := range nasabSplit.Split(normalized, -1) {
		seg = strings.Join(strings.Fields(seg), " ")
		if seg == "" {
			continue
		}
		info.Parts = append(info.Parts, seg)
		if len(info.Parts) == MaxNasabParts {
			break
		}
	}
	return info
}

// Headless reports whether the nasab starts mid-lineage, i.e. its first part
// opens with بن, بنت or ابن.
func (n NasabInfo) Headless() bool {
	if len(n.Parts) == 0 {
		return false
	}
	first := strings.Fields(n.Parts[0])
	if len(first) < 2 {
		return false
	}
	switch first[0] {
	case Ibn, Bint, IbnFull:
		return true
	}
	return false
}

// firstParticle is the particle used for the first join: بنت for a female
// nasab unless the first part already carries it.
func (n NasabInfo) firstParticle() string {
	if n.IsFemale && !strings.HasPrefix(n.Parts[0], Bint) {
		return Bint
	}
	return Ibn
}

// Join links the first count parts with gender-aware particles.
func (n NasabInfo) Join(count int) string {
	if count > len(n.Parts) {
		count = len(n.Parts)
	}
	if count <= 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(n.Parts[0])
	for i := 1; i < count; i++ {
		particle := Ibn
		if i == 1 {
			particle = n.firstParticle()
		}
		b.WriteString(" " + particle + " " + n.Parts[i])
	}
	return b.String()
}

// Lineage renders parts 1..count-1 preceded by a particle, for searches
// where the first given name is unknown: "بن احمد بن زياد".
func (n NasabInfo) Lineage(count int) string {
	if count > len(n.Parts) {
		count = len(n.Parts)
	}
	if count < 2 {
		return ""
	}
	parts := make([]string, 0, 2*(count-1))
	for i := 1; i < count; i++ {
		particle := Ibn
		if i == 1 {
			particle = n.firstParticle()
		}
		parts = append(parts, particle, n.Parts[i])
	}
	return strings.Join(parts, " ")
}
