package pipeline

import (
	"regexp"
	"strings"

	"labnorm/internal"
	"labnorm/internal/util"
)

var (
	reRangeLow  = regexp.MustCompile(`^([0-9]+)-`)
	reRangeHigh = regexp.MustCompile(`-([0-9]+)$`)
)

func compact(s string) string {
	s = strings.Join(strings.Fields(s), "")
	return strings.ReplaceAll(s, "/", ":")
}

// StandardizeComparison normalizes "< 0,05" into "<0.05".
func StandardizeComparison(s string) string {
	s = compact(s)
	i := strings.IndexFunc(s, func(r rune) bool { return r != '<' && r != '>' && r != '=' })
	if i < 0 {
		return s
	}
	return s[:i] + util.StandardizeNumber(s[i:])
}

// ValidRange reports whether a compact "a-b" range is ascending.
func ValidRange(s string) bool {
	lo := reRangeLow.FindStringSubmatch(s)
	hi := reRangeHigh.FindStringSubmatch(s)
	if lo == nil || hi == nil {
		return true
	}
	a, okA := util.ParseNumber(util.StandardizeNumber(lo[1]))
	b, okB := util.ParseNumber(util.StandardizeNumber(hi[1]))
	if !okA || !okB {
		return true
	}
	return a <= b
}

func normalizeNumeric(rec *internal.LabRecord) {
	switch rec.NumType {
	case internal.NumN1:
		rec.CleanResult = util.StandardizeNumber(rec.CleanResult)
	case internal.NumN2:
		rec.CleanResult = StandardizeComparison(rec.CleanResult)
	case internal.NumN3:
		rec.CleanResult = compact(rec.CleanResult)
		if !ValidRange(rec.CleanResult) {
			rec.NumType = internal.NumUnset
		}
	case internal.NumN4:
		rec.CleanResult = compact(rec.CleanResult)
	}
}

func normalizeReferences(rec *internal.LabRecord) {
	if rec.RefMin != "" {
		rec.RefMin = util.StandardizeNumber(rec.RefMin)
	}
	if rec.RefMax != "" {
		rec.RefMax = util.StandardizeNumber(rec.RefMax)
	}
}
