// Package ranges encodes sets of integer ids as compact range strings such
// as "1-3,5,9-12".
package ranges

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// MaxExpanded bounds how many ids a single range string may expand to.
const MaxExpanded = 1 << 20

// ErrInvalid is returned for strings that are not range lists.
var ErrInvalid = errors.New("invalid range string")

var rangePattern = regexp.MustCompile(`^\d+(-\d+)?(,\d+(-\d+)?)*$`)

// Run is an inclusive run of consecutive ids.
type Run struct {
	Lo, Hi int
}

func (r Run) String() string {
	if r.Lo == r.Hi {
		return strconv.Itoa(r.Lo)
	}
	return strconv.Itoa(r.Lo) + "-" + strconv.Itoa(r.Hi)
}

// Runs sorts and de-duplicates ids and groups them into consecutive runs.
func Runs(ids []int) []Run {
	if len(ids) == 0 {
		return nil
	}
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	runs := []Run{{Lo: sorted[0], Hi: sorted[0]}}
	for _, id := range sorted[1:] {
		last := &runs[len(runs)-1]
		if id == last.Hi+1 {
			last.Hi = id
			continue
		}
		runs = append(runs, Run{Lo: id, Hi: id})
	}
	return runs
}

// Compress renders ids as a range string. Order and duplicates in the input
// do not matter; an empty input gives "". Ids must be non-negative: the
// range syntax has no sign, so a negative id does not survive Decompress.
func Compress(ids []int) string {
	runs := Runs(ids)
	parts := make([]string, len(runs))
	for i, r := range runs {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}

// CheckIDs returns ErrInvalid when ids holds a negative id, which the range
// syntax cannot express.
func CheckIDs(ids []int) error {
	for _, id := range ids {
		if id < 0 {
			return fmt.Errorf("%w: negative id %d", ErrInvalid, id)
		}
	}
	return nil
}

// Valid reports whether s is a well-formed, non-empty range string.
func Valid(s string) bool {
	return s != "" && rangePattern.MatchString(s)
}

// ParseRuns parses s into its runs without expanding them.
func ParseRuns(s string) ([]Run, error) {
	if s == "" {
		return nil, nil
	}
	if !rangePattern.MatchString(s) {
		return nil, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	var runs []Run
	for _, part := range strings.Split(s, ",") {
		lo, hi, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalid, part, err)
		}
		end := start
		if isRange {
			if end, err = strconv.Atoi(hi); err != nil {
				return nil, fmt.Errorf("%w: %q: %v", ErrInvalid, part, err)
			}
		}
		if end < start {
			return nil, fmt.Errorf("%w: descending range %q", ErrInvalid, part)
		}
		runs = append(runs, Run{Lo: start, Hi: end})
	}
	return runs, nil
}

// Decompress expands s into a sorted, de-duplicated id list. "" gives an
// empty list.
func Decompress(s string) ([]int, error) {
	runs, err := ParseRuns(s)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, r := range runs {
		span := r.Hi - r.Lo
		if span >= MaxExpanded-total {
			return nil, fmt.Errorf("%w: expands to more than %d ids", ErrInvalid, MaxExpanded)
		}
		total += span + 1
	}
	ids := make([]int, 0, total)
	for _, r := range runs {
		for id := r.Lo; id <= r.Hi; id++ {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

// Length counts the ids a range string names, without expanding it.
// Overlapping runs are counted once per run. Invalid input, or input naming
// more than MaxExpanded ids, counts as 0.
func Length(s string) int {
	runs, err := ParseRuns(s)
	if err != nil {
		return 0
	}
	n := 0
	for _, r := range runs {
		span := r.Hi - r.Lo
		if span >= MaxExpanded-n {
			return 0
		}
		n += span + 1
	}
	return n
}

// ShouldCompress reports whether the range form is no longer than the plain
// comma-separated list.
func ShouldCompress(ids []int) bool {
	if len(ids) == 0 {
		return false
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = strconv.Itoa(id)
	}
	return len(Compress(ids)) <= len(strings.Join(raw, ","))
}
