package units

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrUnresolvableUnit      = errors.New("unresolvable unit")
	ErrIncompatibleDimension = errors.New("incompatible dimension")
)

var baseUnits = map[string]bool{
	"l":     true,
	"mm3":   true,
	"g":     true,
	"mol":   true,
	"m":     true,
	"s":     true,
	"ui":    true,
	"eq":    true,
	"osmol": true,
	"kat":   true,
	"ph":    true,
}

var prefixes = map[string]float64{
	"p": 1e-12,
	"n": 1e-9,
	"µ": 1e-6,
	"m": 1e-3,
	"d": 1e-1,
	"k": 1e3,
}

// Component is one side of a unit: a base unit scaled by a prefix factor.
type Component struct {
	Base   string
	Factor float64
}

// Unit is a simple unit or a numerator/denominator composite.
type Unit struct {
	Num Component
	Den *Component
}

func (u Unit) Composite() bool {
	return u.Den != nil
}

// Factor is the multiplier to the unprefixed base form.
func (u Unit) Factor() float64 {
	if u.Den == nil {
		return u.Num.Factor
	}
	return u.Num.Factor / u.Den.Factor
}

// Dimension identifies units that can be converted into each other.
func (u Unit) Dimension() string {
	if u.Den == nil {
		return u.Num.Base
	}
	return u.Num.Base + "/" + u.Den.Base
}

func parseComponent(s string) (Component, bool) {
	s = strings.TrimSpace(s)
	if baseUnits[s] {
		return Component{Base: s, Factor: 1}, true
	}
	for prefix, factor := range prefixes {
		rest, ok := strings.CutPrefix(s, prefix)
		if ok && baseUnits[rest] {
			return Component{Base: rest, Factor: factor}, true
		}
	}
	return Component{}, false
}

// Parse decomposes a canonical unit such as "mmol/l" or "µg".
func Parse(unit string) (Unit, error) {
	s := strings.ToLower(strings.TrimSpace(unit))
	parts := strings.Split(s, "/")
	if s == "" || len(parts) > 2 {
		return Unit{}, fmt.Errorf("%w: %q", ErrUnresolvableUnit, unit)
	}
	num, ok := parseComponent(parts[0])
	if !ok {
		return Unit{}, fmt.Errorf("%w: %q", ErrUnresolvableUnit, unit)
	}
	out := Unit{Num: num}
	if len(parts) == 2 {
		den, ok := parseComponent(parts[1])
		if !ok {
			return Unit{}, fmt.Errorf("%w: %q", ErrUnresolvableUnit, unit)
		}
		out.Den = &den
	}
	return out, nil
}

// ConversionFactor returns the multiplier taking a value in from to a value in to.
func ConversionFactor(from, to string) (float64, error) {
	src, err := Parse(from)
	if err != nil {
		return 0, err
	}
	dst, err := Parse(to)
	if err != nil {
		return 0, err
	}
	if src.Dimension() != dst.Dimension() {
		return 0, fmt.Errorf("%w: %s (%s) to %s (%s)", ErrIncompatibleDimension, from, src.Dimension(), to, dst.Dimension())
	}
	return trimFloat(src.Factor() / dst.Factor()), nil
}

// trimFloat drops the binary noise left by dividing powers of ten.
func trimFloat(v float64) float64 {
	out, err := strconv.ParseFloat(strconv.FormatFloat(v, 'g', 12, 64), 64)
	if err != nil {
		return v
	}
	return out
}
