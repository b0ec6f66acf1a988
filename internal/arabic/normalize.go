// Package arabic provides orthographic normalization for Arabic search text.
package arabic

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Alef is the bare alef every hamza-bearing alef is folded into.
const Alef = 'ا'

// harakat covers the combining vowel signs, tanwin, shadda and sukun.
var harakat = &unicode.RangeTable{
	R16: []unicode.Range16{{Lo: 0x064B, Hi: 0x065F, Stride: 1}},
}

func foldHamza(r rune) rune {
	switch r {
	case 'أ', 'إ', 'آ':
		return Alef
	}
	return r
}

// Normalize folds أ, إ and آ into ا and strips short vowel marks.
// It is total and idempotent; empty input yields empty output.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	t := transform.Chain(runes.Map(foldHamza), runes.Remove(runes.In(harakat)))
	out, _, err := transform.String(t, text)
	if err != nil {
		// runes transformers only fail on short buffers, which String handles.
		return text
	}
	return out
}

// Proclitics are the single-letter prefixes written attached to the next word.
const Proclitics = "وفكلب"

// StripProclitic removes one leading proclitic from word when at least two
// letters remain after it.
func StripProclitic(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	if size == 0 || !strings.ContainsRune(Proclitics, r) {
		return word
	}
	rest := word[size:]
	if utf8.RuneCountInString(rest) < 2 {
		return word
	}
	return rest
}

// ProcliticForm normalizes text and strips a leading proclitic from every
// token. Applying it to both indexed text and queries lets "وابو منصور"
// match "ابو منصور".
func ProcliticForm(text string) string {
	fields := strings.Fields(Normalize(text))
	for i, f := range fields {
		fields[i] = StripProclitic(f)
	}
	return strings.Join(fields, " ")
}
