package pipeline

import (
	"regexp"

	"labnorm/internal"
)

type scaleRule struct {
	numType internal.NumType
	pattern *regexp.Regexp
}

// Evaluated in order; the first full match assigns the scale.
var scaleRules = []scaleRule{
	{internal.NumN1, regexp.MustCompile(`^` + n1Expr + `$`)},
	{internal.NumN2, regexp.MustCompile(`^[<>]\s*=?\s*(?:[0-9]+(?:[.,][0-9]+)?|[0-9]*[.,][0-9]+)$`)},
	{internal.NumN3, regexp.MustCompile(`^[0-9]{1,4}\s*-\s*[0-9]{1,4}$`)},
	{internal.NumN4, regexp.MustCompile(`^[<>]?\s*=?\s*1\s*[:/]\s*[0-9]{1,6}$`)},
	// digits with dangling or repeated separators, e.g. "5." or "1..2"
	{internal.NumOther, regexp.MustCompile(`^-?[0-9.,]*[0-9][0-9., ]*$`)},
}

// ClassifyScale returns the value-scale of a cleaned result.
func ClassifyScale(clean string, exponent bool) internal.NumType {
	for _, r := range scaleRules {
		if exponent && r.numType == internal.NumN1 {
			continue
		}
		if r.pattern.MatchString(clean) {
			return r.numType
		}
	}
	return internal.NumUnset
}

func classifyScale(rec *internal.LabRecord) {
	rec.NumType = ClassifyScale(rec.CleanResult, rec.HasAnnotation(internal.AnnotExponents))
}
