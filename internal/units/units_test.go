package units

import (
	"errors"
	"math"
	"testing"
)

func TestCanonical(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "mcg per dl", input: "mcg/dL", want: "µg/dl"},
		{name: "micro per 100ml", input: "MICROG/100ML", want: "µg/dl"},
		{name: "micro sign", input: "µg/dl", want: "µg/dl"},
		{name: "mg per dl", input: "mg/dl", want: "mg/dl"},
		{name: "mg per 100 ml", input: "mg/100 ml", want: "mg/dl"},
		{name: "mg with spaces", input: " mg / dl ", want: "mg/dl"},
		{name: "mg per l", input: "mg/L", want: "mg/l"},
		{name: "g per l", input: "g/l", want: "g/l"},
		{name: "gram per 100ml", input: "g/100ml", want: "g/dl"},
		{name: "mmol per l", input: "mmol/L", want: "mmol/l"},
		{name: "mmol per mol", input: "mmol/mol", want: "mmol/mol"},
		{name: "micromol", input: "umol/L", want: "µmol/l"},
		{name: "international units", input: "U/L", want: "ui/l"},
		{name: "percent", input: "%", want: "%"},
		{name: "arbitrary units", input: "U.A.", want: "ua"},
		{name: "thousands per microlitre", input: "x10E3/µL", want: "10^3/µl"},
		{name: "giga per litre", input: "x10E9/L", want: "10^9/l"},
		{name: "ng per ml", input: "ng/mL", want: "ng/ml"},
		{name: "pg per ml", input: "pg/mL", want: "pg/ml"},
		{name: "filtration rate", input: "mL/min/1.73m2", want: "ml/min/1.73m2"},
		{name: "index accent", input: "índex", want: "index"},
		{name: "femtolitre", input: "fL", want: "fl"},
		{name: "mercury", input: "mmHg", want: "mmhg"},
		{name: "cells per microlitre", input: "cel/µL", want: "cel/µl"},
		{name: "leucocytes per microlitre", input: "leucos/µl", want: "cel/µl"},
		{name: "meq", input: "mEq/L", want: "meq/l"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Canonical(tc.input)
			if !ok {
				t.Fatalf("%q unresolved, cleaned to %q", tc.input, got)
			}
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestCanonicalUnmatchedKeepsCleanedUnit(t *testing.T) {
	got, ok := Canonical("  bq / hpf. ")
	if ok {
		t.Fatalf("unexpected match: %q", got)
	}
	if got != "bq/hpf" {
		t.Fatalf("got %q", got)
	}
}

func TestCanonicalTokensAreFixedPoints(t *testing.T) {
	for _, token := range Rules.Tokens() {
		got, ok := Canonical(token)
		if !ok {
			t.Fatalf("token %q does not resolve", token)
		}
		if got != token {
			t.Fatalf("token %q resolves to %q", token, got)
		}
	}
}

func TestRuleExclude(t *testing.T) {
	r := ruleExcept("µg/g", `^[áâ]?(mc|micro|u|µ)g.*[/7]gr?`, `µg/ghb`)
	if !r.Match("µg/g") {
		t.Fatalf("µg/g should match")
	}
	if r.Match("µg/ghb") {
		t.Fatalf("µg/ghb should be excluded")
	}
}

func TestParse(t *testing.T) {
	cases := []struct {
		input  string
		dim    string
		factor float64
	}{
		{input: "mg/dl", dim: "g/l", factor: 1e-2},
		{input: "mmol/l", dim: "mol/l", factor: 1e-3},
		{input: "µg", dim: "g", factor: 1e-6},
		{input: "mm3", dim: "mm3", factor: 1},
		{input: "kat", dim: "kat", factor: 1},
		{input: "mui/l", dim: "ui/l", factor: 1e-3},
	}
	for _, tc := range cases {
		u, err := Parse(tc.input)
		if err != nil {
			t.Fatalf("%s: %v", tc.input, err)
		}
		if u.Dimension() != tc.dim {
			t.Fatalf("%s: got dim %s want %s", tc.input, u.Dimension(), tc.dim)
		}
		if math.Abs(u.Factor()-tc.factor) > 1e-12 {
			t.Fatalf("%s: got factor %v want %v", tc.input, u.Factor(), tc.factor)
		}
	}
}

func TestConversionFactor(t *testing.T) {
	cases := []struct {
		from string
		to   string
		want float64
	}{
		{from: "g/l", to: "mg/dl", want: 100},
		{from: "mg/dl", to: "g/l", want: 0.01},
		{from: "mg/dl", to: "mg/l", want: 10},
		{from: "g/l", to: "g/dl", want: 0.1},
		{from: "g/l", to: "mg/ml", want: 1},
		{from: "mg/dl", to: "µg/ml", want: 10},
		{from: "mg/l", to: "µg/dl", want: 100},
		{from: "mmol/l", to: "µmol/l", want: 1000},
		{from: "mg/dl", to: "mg/dl", want: 1},
	}
	for _, tc := range cases {
		got, err := ConversionFactor(tc.from, tc.to)
		if err != nil {
			t.Fatalf("%s -> %s: %v", tc.from, tc.to, err)
		}
		if got != tc.want {
			t.Fatalf("%s -> %s: got %v want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestConversionFactorInverse(t *testing.T) {
	pairs := [][2]string{{"mg/dl", "g/l"}, {"nmol/l", "µmol/l"}, {"pg", "kg"}, {"ui/l", "mui/ml"}}
	for _, p := range pairs {
		ab, err := ConversionFactor(p[0], p[1])
		if err != nil {
			t.Fatal(err)
		}
		ba, err := ConversionFactor(p[1], p[0])
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(ab*ba-1) > 1e-9 {
			t.Fatalf("%v: %v * %v != 1", p, ab, ba)
		}
	}
}

func TestConversionFactorErrors(t *testing.T) {
	if _, err := ConversionFactor("mg/dl", "mmol/l"); !errors.Is(err, ErrIncompatibleDimension) {
		t.Fatalf("got %v want incompatible dimension", err)
	}
	if _, err := ConversionFactor("g/l", "g"); !errors.Is(err, ErrIncompatibleDimension) {
		t.Fatalf("got %v want incompatible dimension", err)
	}
	for _, u := range []string{"10^9/l", "%", "xyz", "ml/min/1.73m2", ""} {
		if _, err := ConversionFactor(u, "g/l"); !errors.Is(err, ErrUnresolvableUnit) {
			t.Fatalf("%q: got %v want unresolvable", u, err)
		}
	}
}
