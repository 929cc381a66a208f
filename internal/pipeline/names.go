package pipeline

import (
	"strings"

	"labnorm/internal"
)

// Accumulator collects name and unit votes per test code across chunks.
type Accumulator struct {
	names map[string]map[string]int
	units map[string]map[string]int
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		names: map[string]map[string]int{},
		units: map[string]map[string]int{},
	}
}

func vote(m map[string]map[string]int, code, value string, n int) {
	if value == "" {
		return
	}
	counts, ok := m[code]
	if !ok {
		counts = map[string]int{}
		m[code] = counts
	}
	counts[value] += n
}

func (a *Accumulator) Observe(batch []internal.LabRecord) {
	for i := range batch {
		rec := &batch[i]
		vote(a.names, rec.Code, strings.TrimSpace(rec.Name), 1)
		vote(a.units, rec.Code, rec.CleanUnit, 1)
	}
}

// Merge adds the votes of another accumulator.
func (a *Accumulator) Merge(other *Accumulator) {
	for code, counts := range other.names {
		for v, n := range counts {
			vote(a.names, code, v, n)
		}
	}
	for code, counts := range other.units {
		for v, n := range counts {
			vote(a.units, code, v, n)
		}
	}
}

// Commons holds the winning name and unit of every code.
type Commons struct {
	Names map[string]string
	Units map[string]string
}

func (a *Accumulator) Finalize() Commons {
	out := Commons{Names: map[string]string{}, Units: map[string]string{}}
	for code, counts := range a.names {
		out.Names[code] = mostFrequent(counts)
	}
	for code, counts := range a.units {
		out.Units[code] = mostFrequent(counts)
	}
	return out
}

// mostFrequent breaks ties by taking the lexicographically smallest value.
func mostFrequent(counts map[string]int) string {
	best, bestN := "", 0
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best
}

func (c Commons) Apply(rec *internal.LabRecord) {
	if name, ok := c.Names[rec.Code]; ok {
		rec.Name = name
	}
	rec.CommonUnit = c.Units[rec.Code]
}

func (c Commons) ApplyAll(batch []internal.LabRecord) {
	for i := range batch {
		c.Apply(&batch[i])
	}
}
