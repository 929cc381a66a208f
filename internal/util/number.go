package util

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	reMillions    = regexp.MustCompile(`\d{1,3},0{3},0{3}`)
	reTenThousand = regexp.MustCompile(`10{1,2},000`)
	reLeadingSep  = regexp.MustCompile(`^[,.]\d+`)
	reZeroFrac    = regexp.MustCompile(`^0+(\.\d+)`)
	reZeroInt     = regexp.MustCompile(`^0+(\d)`)
	reDecimal     = regexp.MustCompile(`^-?(\d+(\.\d*)?|\.\d+)$`)
)

// StandardizeNumber turns a locale-formatted numeric token into a canonical
// dot-decimal string rounded to 4 decimals. Tokens that still do not parse are
// returned with separator normalization applied and no rounding.
func StandardizeNumber(token string) string {
	s := strings.TrimSpace(token)
	if s == "" {
		return s
	}
	if reMillions.MatchString(s) || reTenThousand.MatchString(s) {
		s = strings.ReplaceAll(s, ",", "")
	}
	if reLeadingSep.MatchString(s) {
		s = "0" + s
	}
	s = strings.ReplaceAll(s, ",", ".")
	s = reZeroFrac.ReplaceAllString(s, "0$1")
	s = reZeroInt.ReplaceAllString(s, "$1")

	v, ok := parseDecimal(s)
	if !ok {
		return s
	}
	return FormatNumber(Round(v, 4))
}

// ParseNumber parses a canonical number produced by StandardizeNumber.
func ParseNumber(s string) (float64, bool) {
	return parseDecimal(strings.TrimSpace(s))
}

// ParseFactor reads a multiplier at full precision. A decimal comma is
// accepted; exponent notation such as "1e-3" is too.
func ParseFactor(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func parseDecimal(s string) (float64, bool) {
	if !reDecimal.MatchString(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// FormatNumber prints the shortest representation; negative zero prints as 0.
func FormatNumber(v float64) string {
	if v == 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
