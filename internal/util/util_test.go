package util

import "testing"

func TestStandardizeNumber(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "decimal comma", input: "5,3", want: "5.3"},
		{name: "decimal dot", input: "5.3", want: "5.3"},
		{name: "integer", input: "100", want: "100"},
		{name: "leading comma", input: ",5", want: "0.5"},
		{name: "leading dot", input: ".25", want: "0.25"},
		{name: "leading zeros", input: "007", want: "7"},
		{name: "zero fraction", input: "00,5", want: "0.5"},
		{name: "millions", input: "1,000,000", want: "1000000"},
		{name: "ten thousand", input: "10,000", want: "10000"},
		{name: "hundred thousand", input: "100,000", want: "100000"},
		{name: "rounded", input: "1,234567", want: "1.2346"},
		{name: "negative", input: "-0,5", want: "-0.5"},
		{name: "negative zero", input: "-0,00001", want: "0"},
		{name: "unparseable kept", input: "1.2.3", want: "1.2.3"},
		{name: "unparseable comma run", input: "1,2,3", want: "1.2.3"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := StandardizeNumber(tc.input)
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestStandardizeNumberIdempotent(t *testing.T) {
	for _, input := range []string{"5,3", "1,000,000", "0,00012", "12.34567", "-3", "1,2,3", "010"} {
		once := StandardizeNumber(input)
		twice := StandardizeNumber(once)
		if once != twice {
			t.Fatalf("%q: got %q then %q", input, once, twice)
		}
	}
}

func TestParseNumberRejectsWords(t *testing.T) {
	for _, input := range []string{"inf", "NaN", "1e5", "0x10", ""} {
		if _, ok := ParseNumber(input); ok {
			t.Fatalf("%q parsed as a number", input)
		}
	}
	v, ok := ParseNumber("8.5")
	if !ok || v != 8.5 {
		t.Fatalf("got %v %v", v, ok)
	}
}

func TestParseFactor(t *testing.T) {
	cases := []struct {
		input string
		want  float64
		ok    bool
	}{
		{input: "0.02586", want: 0.02586, ok: true},
		{input: "0,000001", want: 0.000001, ok: true},
		{input: "1e-3", want: 0.001, ok: true},
		{input: " 18 ", want: 18, ok: true},
		{input: "abc"},
		{input: "inf"},
		{input: ""},
	}
	for _, tc := range cases {
		got, ok := ParseFactor(tc.input)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("%q: got %v %v want %v %v", tc.input, got, ok, tc.want, tc.ok)
		}
	}
}

func TestUnify(t *testing.T) {
	for _, input := range []string{"", " ", "nan", "NaN", "<NA>", "None"} {
		if got := Unify(input); got != "" {
			t.Fatalf("%q: got %q", input, got)
		}
	}
	if got := Unify(" 5,3 "); got != "5,3" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizePeticioID(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{input: "12345.0", want: "12345"},
		{input: "AB-123-9", want: "AB1239"},
		{input: "10.05", want: "1005"},
		{input: " 77/2 ", want: "772"},
	}
	for _, tc := range cases {
		if got := NormalizePeticioID(tc.input); got != tc.want {
			t.Fatalf("%q: got %q want %q", tc.input, got, tc.want)
		}
	}
}

func TestFoldComposesAccents(t *testing.T) {
	decomposed := "i\u0301ndex"
	if got := Fold(decomposed); got != "\u00edndex" {
		t.Fatalf("got %q", got)
	}
	if got := Fold("µg/dl"); got != "µg/dl" {
		t.Fatalf("micro sign changed: %q", got)
	}
}
