package pipeline

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"labnorm/internal/units"
)

//go:embed ranges.yaml
var defaultRanges []byte

type Range struct {
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
	Unit string  `yaml:"unit"`
}

func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Ranges maps a test code to the interval its converted values must fall in.
type Ranges map[string]Range

type rangesFile struct {
	Ranges Ranges `yaml:"ranges"`
}

func ParseRanges(blob []byte) (Ranges, error) {
	var f rangesFile
	if err := yaml.Unmarshal(blob, &f); err != nil {
		return nil, fmt.Errorf("parse ranges: %w", err)
	}
	out := Ranges{}
	for code, r := range f.Ranges {
		if r.Min > r.Max {
			return nil, fmt.Errorf("range for %s: min %v above max %v", code, r.Min, r.Max)
		}
		if r.Unit != "" {
			r.Unit, _ = units.Canonical(r.Unit)
		}
		out[code] = r
	}
	return out, nil
}

// LoadRanges reads a ranges file, or the built-in table when path is empty.
func LoadRanges(path string) (Ranges, error) {
	if path == "" {
		return ParseRanges(defaultRanges)
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRanges(blob)
}

// Check reports whether a converted value is plausible. Codes without a range,
// or whose range is stated in another unit, always pass.
func (rs Ranges) Check(code, unit string, v float64) bool {
	r, ok := rs[code]
	if !ok {
		return true
	}
	if r.Unit != "" && r.Unit != unit {
		return true
	}
	return r.Contains(v)
}
