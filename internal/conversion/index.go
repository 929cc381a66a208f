package conversion

import "labnorm/internal"

type factorKey struct {
	code, from, to string
}

// Index answers the lookups of the reference-unit converter.
type Index struct {
	targets map[string]string
	groups  map[string]string
	factors map[factorKey]float64
	codes   []string
}

// BuildIndex keeps the first target unit, group and factor seen for a key.
func BuildIndex(rules []internal.ConversionRule) *Index {
	idx := &Index{
		targets: map[string]string{},
		groups:  map[string]string{},
		factors: map[factorKey]float64{},
	}

	for _, r := range rules {
		if r.Code == "" {
			continue
		}
		if _, ok := idx.targets[r.Code]; !ok {
			idx.targets[r.Code] = r.ToUnit
			idx.codes = append(idx.codes, r.Code)
		}
		if r.Group != "" {
			if _, ok := idx.groups[r.Code]; !ok {
				idx.groups[r.Code] = r.Group
			}
		}
		if r.FromUnit == "" || r.ToUnit == "" {
			continue
		}
		key := factorKey{code: r.Code, from: r.FromUnit, to: r.ToUnit}
		if _, ok := idx.factors[key]; !ok {
			idx.factors[key] = r.Factor
		}
	}

	return idx
}

func (i *Index) Has(code string) bool {
	_, ok := i.targets[code]
	return ok
}

// Target is the reference unit of a code.
func (i *Index) Target(code string) (string, bool) {
	unit, ok := i.targets[code]
	return unit, ok
}

func (i *Index) Group(code string) string {
	return i.groups[code]
}

// Factor is the explicit factor for a code and unit pair, if listed.
func (i *Index) Factor(code, from, to string) (float64, bool) {
	f, ok := i.factors[factorKey{code: code, from: from, to: to}]
	return f, ok
}

// Codes lists the codes in first-seen order.
func (i *Index) Codes() []string {
	return append([]string(nil), i.codes...)
}
