package names

import (
	"strings"

	"github.com/hyperjump/nasab/internal/arabic"
)

// Flags select the partial-match policies of a form. Every flag only adds
// patterns; none removes the unconditional baseline.
type Flags struct {
	// AllowRareKunyaNisba emits kunya+nisba even when a nasab was supplied.
	AllowRareKunyaNisba bool `json:"allow_rare_kunya_nisba,omitempty"`
	// AllowTwoNasab emits the bare two-name nasab.
	AllowTwoNasab bool `json:"allow_two_nasab,omitempty"`
	// AllowKunyaNasab emits the bare kunya+first-name pattern.
	AllowKunyaNasab bool `json:"allow_kunya_nasab,omitempty"`
	// AllowOneNasabNisba emits first-name+nisba.
	AllowOneNasabNisba bool `json:"allow_one_nasab_nisba,omitempty"`
	// AllowOneNasab emits the bare first name when the nasab has one name.
	AllowOneNasab bool `json:"allow_one_nasab,omitempty"`
	// AllowSingleField marks a form that intentionally has one populated
	// field. The generator ignores it.
	AllowSingleField bool `json:"allow_single_field,omitempty"`
}

// FlagNames lists the stable names used when flags are serialized.
var FlagNames = []string{
	"rare_kunya_nisba",
	"two_nasab",
	"kunya_nasab",
	"one_nasab_nisba",
	"one_nasab",
	"single_field",
}

func (f *Flags) fields() []*bool {
	return []*bool{
		&f.AllowRareKunyaNisba,
		&f.AllowTwoNasab,
		&f.AllowKunyaNasab,
		&f.AllowOneNasabNisba,
		&f.AllowOneNasab,
		&f.AllowSingleField,
	}
}

// Names returns the serialized names of the flags that are set.
func (f Flags) Names() []string {
	var out []string
	for i, p := range f.fields() {
		if *p {
			out = append(out, FlagNames[i])
		}
	}
	return out
}

// Set turns on the flag with the given serialized name. It reports false for
// unknown names.
func (f *Flags) Set(name string) bool {
	for i, n := range FlagNames {
		if n == name {
			*f.fields()[i] = true
			return true
		}
	}
	return false
}

// NameForm is one independent name to search for. Several forms in one
// search are AND-combined.
type NameForm struct {
	Kunyas []string `json:"kunyas,omitempty"`
	Nasab  string   `json:"nasab,omitempty"`
	Nisbas []string `json:"nisbas,omitempty"`
	Flags  Flags    `json:"flags"`
}

// IsEmpty reports whether the form has no populated field.
func (f NameForm) IsEmpty() bool {
	return len(nonEmpty(f.Kunyas)) == 0 && strings.TrimSpace(f.Nasab) == "" && len(nonEmpty(f.Nisbas)) == 0
}

// Patterns generates the form's search patterns.
func (f NameForm) Patterns() Patterns {
	return GeneratePatterns(f.Kunyas, f.Nasab, f.Nisbas, f.Flags)
}

// Patterns is the generator output. FilterPatterns is always empty and kept
// only so older consumers of the JSON shape keep working.
type Patterns struct {
	SearchPatterns []string `json:"search_patterns"`
	FilterPatterns []string `json:"filter_patterns"`
}

type patternSet struct {
	items []string
	seen  map[string]struct{}
}

func (s *patternSet) add(p string) {
	p = strings.TrimSpace(p)
	if p == "" {
		return
	}
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[p]; ok {
		return
	}
	s.seen[p] = struct{}{}
	s.items = append(s.items, p)
}

// addWith adds base on its own when bare is true and base+nisba for every nisba.
func (s *patternSet) addWith(base string, bare bool, nisbas []string) {
	if bare {
		s.add(base)
	}
	for _, n := range nisbas {
		s.add(base + " " + n)
	}
}

// GeneratePatterns returns every search string for a name. It never fails:
// missing components just shrink the result, possibly to nothing.
func GeneratePatterns(kunyas []string, nasab string, nisbas []string, flags Flags) Patterns {
	var set patternSet

	rawKunyas := nonEmpty(kunyas)
	variants := ExpandKunyas(rawKunyas)
	info := ParseNasab(nasab)
	parts := info.Parts
	var normNisbas []string
	for _, n := range nonEmpty(nisbas) {
		normNisbas = append(normNisbas, strings.Join(strings.Fields(arabic.Normalize(n)), " "))
	}

	hasKunya := len(variants) > 0
	hasNisba := len(normNisbas) > 0
	n := len(parts)

	// kunya + nisba
	if (n == 0 && hasNisba) || flags.AllowRareKunyaNisba {
		for _, v := range variants {
			set.addWith(v, false, normNisbas)
		}
	}

	// kunya + nasab
	if hasKunya && n > 0 {
		top := min(MaxNasabParts, n)
		for _, v := range variants {
			set.addWith(v+" "+parts[0], flags.AllowKunyaNasab, normNisbas)
			for i := 2; i <= top; i++ {
				set.addWith(v+" "+info.Join(i), true, normNisbas)
			}
			for i := 2; i <= top; i++ {
				set.addWith(v+" "+info.Lineage(i), true, normNisbas)
			}
		}
	}

	// nasab without kunya
	if n == 1 && !hasKunya && hasNisba {
		set.addWith(parts[0], true, normNisbas)
	}
	if n > 0 && flags.AllowOneNasabNisba && hasNisba {
		set.addWith(parts[0], true, normNisbas)
	}
	if n >= 3 {
		set.addWith(info.Join(3), true, normNisbas)
	}
	if n >= 2 {
		set.addWith(info.Join(2), info.Headless() || flags.AllowTwoNasab, normNisbas)
	}
	if n == 1 && flags.AllowOneNasab {
		set.add(parts[0])
	}

	// single populated field
	switch {
	case n > 0 && !hasKunya && !hasNisba:
		if n <= 2 {
			set.add(info.Join(n))
		}
	case hasKunya && n == 0 && !hasNisba:
		if len(rawKunyas) >= 2 {
			for _, v := range variants {
				set.add(v)
			}
		}
	case hasNisba && !hasKunya && n == 0:
		for _, nisba := range normNisbas {
			set.add(nisba)
		}
	}

	search := set.items
	if search == nil {
		search = []string{}
	}
	return Patterns{SearchPatterns: search, FilterPatterns: []string{}}
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
