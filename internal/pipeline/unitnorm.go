package pipeline

import (
	"labnorm/internal"
	"labnorm/internal/units"
)

func normalizeUnit(rec *internal.LabRecord) {
	if rec.UnitResolved {
		return
	}
	rec.CleanUnit, rec.UnitResolved = units.Canonical(rec.RawUnit)
}
