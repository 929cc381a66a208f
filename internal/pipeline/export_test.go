package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"labnorm/internal"
	"labnorm/internal/util"
)

func sampleRows() []internal.OutputRow {
	year := int64(2021)
	return []internal.OutputRow{
		{SubjectID: "P1", PeticioID: "100", Year: &year, Code: "Q32685", Name: "Glucosa", CleanResult: "8.5", CleanUnit: "mmol/l", Converted: util.FloatPtr(153), ConvertedUnit: "mg/dl"},
		{SubjectID: "P2", Code: "Q32685", Name: "Glucosa", CleanResult: "negatiu", ConversionIssue: "non_numeric", ConvertedUnit: "mg/dl"},
	}
}

func TestXLSXWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	w, err := NewRowWriter(path, "nhc", true, '|')
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write(sampleRows()); err != nil {
		t.Fatal(err)
	}
	if w.Count() != 2 {
		t.Fatalf("count=%d", w.Count())
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0][0] != "nhc" || rows[0][8] != "resultat_convertit" {
		t.Fatalf("header: %v", rows[0])
	}
	if rows[1][2] != "2021" || rows[1][8] != "153" {
		t.Fatalf("row: %v", rows[1])
	}
	if rows[2][11] != "non_numeric" {
		t.Fatalf("row: %v", rows[2])
	}
}

func TestCellString(t *testing.T) {
	cases := []struct {
		input any
		want  string
	}{
		{1e6, "1000000"},
		{0.05, "0.05"},
		{int64(2021), "2021"},
		{"x", "x"},
		{derefFloat(nil), ""},
	}
	for _, tc := range cases {
		if got := cellString(tc.input); got != tc.want {
			t.Fatalf("%v: got %q want %q", tc.input, got, tc.want)
		}
	}
}

func TestToOutputRow(t *testing.T) {
	rec := normalizeOne("+5,3", "mg/L")
	rec.SubjectID = "P1"
	year := 2020
	rec.Year = &year
	row := ToOutputRow(rec)
	if row.CleanResult != "5.3" || row.Comment != "flag" || row.UnitComment != internal.UnitDone || row.NumType != "n1" {
		t.Fatalf("got %+v", row)
	}
	if row.Year == nil || *row.Year != 2020 || row.Date != nil {
		t.Fatalf("year/date: %v %v", row.Year, row.Date)
	}
}
