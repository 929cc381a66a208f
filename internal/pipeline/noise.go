package pipeline

import (
	"regexp"
	"strings"

	"labnorm/internal"
	"labnorm/internal/util"
)

var (
	reNoise     = regexp.MustCompile("[!#$&'();?@_`{|}~\"\\[\\]]")
	reEdgeEqual = regexp.MustCompile(`^=|=$`)
)

// StripNoise removes typing debris from a raw result.
func StripNoise(raw string) string {
	s := util.Fold(raw)
	s = reNoise.ReplaceAllString(s, "")
	s = reEdgeEqual.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// prepare unifies missing values before any stage looks at the record.
func prepare(rec *internal.LabRecord) {
	rec.RawResult = util.Unify(rec.RawResult)
	if rec.RawResult == "" {
		rec.RawResult = internal.NoCalc
	}
	rec.RawUnit = util.Unify(rec.RawUnit)
	rec.RefMin = util.Unify(rec.RefMin)
	rec.RefMax = util.Unify(rec.RefMax)
	rec.Name = util.Unify(rec.Name)
	rec.Code = strings.TrimSpace(rec.Code)
	rec.PeticioID = util.NormalizePeticioID(util.Unify(rec.PeticioID))
}

func stripNoise(rec *internal.LabRecord) {
	rec.CleanResult = StripNoise(rec.RawResult)
}
