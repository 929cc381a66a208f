package conversion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"labnorm/internal"
	"labnorm/internal/logging"
	"labnorm/internal/units"
	"labnorm/internal/util"
)

var ErrConversionTable = errors.New("conversion table")

var columnAliases = map[string]string{
	"codi_prova":  "codi_prova",
	"lab_prova_c": "codi_prova",
	"from_unit":   "from_unit",
	"to_unit":     "to_unit",
	"factor":      "factor",
	"group":       "group",
	"grup":        "group",
}

// Load reads a conversion table from a delimited file or an .xlsx workbook.
func Load(path string, comma rune) ([]internal.ConversionRule, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(path)
	default:
		rows, err = readDelimited(path, comma)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConversionTable, path, err)
	}
	return ParseRows(rows)
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.GetRows(f.GetSheetName(0))
}

func readDelimited(path string, comma rune) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.Comma = comma
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// ParseRows turns a header row plus data rows into rules. Units are
// canonicalized with the same table applied to results.
func ParseRows(rows [][]string) ([]internal.ConversionRule, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty table", ErrConversionTable)
	}
	colIdx := map[string]int{}
	for i, h := range rows[0] {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if canonical, ok := columnAliases[name]; ok {
			if _, seen := colIdx[canonical]; !seen {
				colIdx[canonical] = i
			}
		}
	}
	for _, required := range []string{"codi_prova", "to_unit"} {
		if _, ok := colIdx[required]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrConversionTable, required)
		}
	}

	valAt := func(row []string, col string) string {
		i, ok := colIdx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return util.Unify(row[i])
	}

	logger := logging.Logger(logging.SourceConversion)
	out := make([]internal.ConversionRule, 0, len(rows)-1)
	for n, row := range rows[1:] {
		code := valAt(row, "codi_prova")
		if code == "" {
			continue
		}
		rule := internal.ConversionRule{
			Code:     code,
			FromUnit: canonicalUnit(valAt(row, "from_unit")),
			ToUnit:   canonicalUnit(valAt(row, "to_unit")),
			Group:    valAt(row, "group"),
			Factor:   1,
		}
		if raw := valAt(row, "factor"); raw != "" {
			f, ok := util.ParseFactor(raw)
			if !ok || f <= 0 {
				logger.Warn("skipping conversion row with bad factor", "row", n+2, "code", code, "factor", raw)
				continue
			}
			rule.Factor = f
		} else if rule.FromUnit != "" && rule.FromUnit != rule.ToUnit {
			// no factor: left to the unit algebra
			rule.FromUnit = ""
		}
		out = append(out, rule)
	}
	return out, nil
}

func canonicalUnit(raw string) string {
	token, _ := units.Canonical(raw)
	return token
}
