package pipeline

import (
	"errors"

	"labnorm/internal"
	"labnorm/internal/conversion"
	"labnorm/internal/units"
	"labnorm/internal/util"
)

// Converter expresses n1 results in the reference unit of their test code.
// Without an index it harmonizes each code to its most common unit.
type Converter struct {
	index  *conversion.Index
	ranges Ranges
}

func NewConverter(index *conversion.Index, ranges Ranges) *Converter {
	return &Converter{index: index, ranges: ranges}
}

func (c *Converter) Harmonizing() bool {
	return c.index == nil
}

// Factor resolves the multiplier for a code: identical units, then the
// explicit table, then the unit algebra.
func (c *Converter) Factor(code, from, to string) (float64, error) {
	if from == to {
		return 1, nil
	}
	if c.index != nil {
		if f, ok := c.index.Factor(code, from, to); ok {
			return f, nil
		}
	}
	return units.ConversionFactor(from, to)
}

// Convert fills the conversion fields of rec. It returns false when the
// record's code is not in the conversion table and the row must be dropped.
func (c *Converter) Convert(rec *internal.LabRecord) bool {
	var target string
	if c.index != nil {
		unit, ok := c.index.Target(rec.Code)
		if !ok {
			return false
		}
		target = unit
		rec.Group = c.index.Group(rec.Code)
	} else {
		target = rec.CommonUnit
	}
	rec.TargetUnit = target

	if rec.NumType != internal.NumN1 {
		rec.Issue = internal.IssueNonNumeric
		return true
	}
	value, ok := util.ParseNumber(rec.CleanResult)
	if !ok {
		rec.Issue = internal.IssueNonNumeric
		return true
	}
	if rec.CleanUnit == "" || target == "" {
		rec.Issue = internal.IssueMissingUnit
		return true
	}

	factor, err := c.Factor(rec.Code, rec.CleanUnit, target)
	switch {
	case errors.Is(err, units.ErrIncompatibleDimension):
		rec.Issue = internal.IssueIncompatibleDimension
		return true
	case err != nil:
		rec.Issue = internal.IssueUnresolvableUnit
		return true
	}

	converted := util.Round(value*factor, 2)
	rec.Factor = util.FloatPtr(factor)
	if c.ranges != nil && !c.ranges.Check(rec.Code, target, converted) {
		rec.Outlier = true
		rec.Issue = internal.IssueOutOfRange
		return true
	}
	rec.Converted = util.FloatPtr(converted)
	return true
}

// ConvertAll converts a batch and returns the retained records.
func (c *Converter) ConvertAll(batch []internal.LabRecord) []internal.LabRecord {
	out := batch[:0]
	for i := range batch {
		if c.Convert(&batch[i]) {
			out = append(out, batch[i])
		}
	}
	return out
}
