package pipeline

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"

	"labnorm/internal"
	"labnorm/internal/config"
	"labnorm/internal/storage"
)

const sampleInput = "nhc|peticio_id|any_prova|data_prova|codi_prova|nom_prova|resultat|unitat_mesura|ref_min|ref_max\n" +
	"P1|100.0|2021|2021-03-04|Q32685|Glucosa|8,5|mmol/L|3,9|6,1\n" +
	"P2|101|2021|2021-03-05|Q32685|GLUCOSA|90|mg/dl||\n" +
	"P3|102|2021|2021-03-05|Q32685|Glucosa|Negatiu|||\n" +
	"P4|103|2021|2021-03-05|Q99999|Altre|5|mg/dl||\n" +
	"P5|104|bad|2021-03-05|Q32685|Glucosa|<0,05 mg/dl|||\n"

const sampleTable = "codi_prova|from_unit|to_unit|factor|group\n" +
	"Q32685|mmol/L|mg/dL|18|glucose\n"

func setupRun(t *testing.T) (*ProcessingService, *storage.DB, string) {
	t.Helper()
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "labnorm.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	if err := os.WriteFile(filepath.Join(tmp, "input.csv"), []byte(sampleInput), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmp, "table.csv"), []byte(sampleTable), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Config{Delimiter: "|", ChunkSize: 2, Workers: 2}
	return NewProcessingService(db, cfg), db, tmp
}

func readDelimited(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.Comma = '|'
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestSmokeNormalizeToCSV(t *testing.T) {
	proc, db, tmp := setupRun(t)
	out := filepath.Join(tmp, "out", "normalized.csv")

	res, err := proc.Run(context.Background(), RunOptions{InputPath: filepath.Join(tmp, "input.csv"), OutputPath: out})
	if err != nil {
		t.Fatal(err)
	}
	if res.Converted || res.TraceID == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Stats.Chunks != 3 || res.Stats.RowsRead != 5 || res.Stats.RowsWritten != 5 {
		t.Fatalf("stats: %+v", res.Stats)
	}
	if res.Stats.CastIssues["any_prova"] != 1 {
		t.Fatalf("cast issues: %+v", res.Stats.CastIssues)
	}
	if res.Stats.ByNumType[internal.NumN1] != 3 || res.Stats.ByNumType[internal.NumN2] != 1 {
		t.Fatalf("num types: %+v", res.Stats.ByNumType)
	}

	rows := readDelimited(t, out)
	if len(rows) != 6 {
		t.Fatalf("got %d rows want 6", len(rows))
	}
	if rows[0][0] != "nhc" || rows[0][len(rows[0])-1] != "unitat_comuna" {
		t.Fatalf("header: %v", rows[0])
	}
	first := rows[1]
	if first[1] != "100" || first[5] != "Glucosa" || first[10] != "8.5" || first[11] != "mmol/l" || first[14] != "n1" {
		t.Fatalf("first row: %v", first)
	}
	if first[15] != "mg/dl" && first[15] != "mmol/l" {
		t.Fatalf("common unit: %q", first[15])
	}
	if rows[2][5] != "Glucosa" {
		t.Fatalf("name not unified: %q", rows[2][5])
	}
	if rows[3][10] != "negatiu" || rows[3][12] != "literal" {
		t.Fatalf("flag row: %v", rows[3])
	}

	if _, err := os.Stat(filepath.Join(tmp, "out", "normalized.tmp.csv")); !os.IsNotExist(err) {
		t.Fatalf("temp output left behind: %v", err)
	}
	runs, err := db.ListRuns(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].TraceID != res.TraceID || runs[0].Counts["rows_written"] != 5 {
		t.Fatalf("runs: %+v", runs)
	}
}

func TestSmokeConvertToCSV(t *testing.T) {
	proc, _, tmp := setupRun(t)
	out := filepath.Join(tmp, "converted.csv")

	res, err := proc.Run(context.Background(), RunOptions{
		InputPath:      filepath.Join(tmp, "input.csv"),
		OutputPath:     out,
		ConversionPath: filepath.Join(tmp, "table.csv"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Converted || res.Stats.RowsFiltered != 1 || res.Stats.RowsWritten != 4 || res.Stats.Converted != 2 {
		t.Fatalf("stats: %+v", res.Stats)
	}
	if res.Stats.Issues[internal.IssueNonNumeric] != 2 {
		t.Fatalf("issues: %+v", res.Stats.Issues)
	}

	rows := readDelimited(t, out)
	if len(rows) != 5 {
		t.Fatalf("got %d rows want 5", len(rows))
	}
	if rows[0][8] != "resultat_convertit" {
		t.Fatalf("header: %v", rows[0])
	}
	if rows[1][8] != "153" || rows[1][9] != "mg/dl" || rows[1][10] != "glucose" {
		t.Fatalf("converted row: %v", rows[1])
	}
	if rows[2][8] != "90" {
		t.Fatalf("same unit row: %v", rows[2])
	}
	if rows[3][8] != "" || rows[3][11] != "non_numeric" {
		t.Fatalf("literal row: %v", rows[3])
	}
}

func TestSmokeStoredTableToParquet(t *testing.T) {
	proc, _, tmp := setupRun(t)
	if _, err := proc.conv.Import(filepath.Join(tmp, "table.csv")); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(tmp, "converted.parquet")

	if _, err := proc.Run(context.Background(), RunOptions{
		InputPath:   filepath.Join(tmp, "input.csv"),
		OutputPath:  out,
		StoredTable: true,
	}); err != nil {
		t.Fatal(err)
	}

	records, err := parquet.ReadFile[internal.OutputRow](out)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 4 {
		t.Fatalf("got %d records want 4", len(records))
	}
	if records[0].Converted == nil || *records[0].Converted != 153 || records[0].Year == nil || *records[0].Year != 2021 {
		t.Fatalf("first record: %+v", records[0])
	}
	if records[3].Year != nil {
		t.Fatalf("uncastable year kept: %v", *records[3].Year)
	}
}

func TestSmokeMissingTableFallsBack(t *testing.T) {
	proc, _, tmp := setupRun(t)
	out := filepath.Join(tmp, "fallback.csv")

	res, err := proc.Run(context.Background(), RunOptions{
		InputPath:      filepath.Join(tmp, "input.csv"),
		OutputPath:     out,
		ConversionPath: filepath.Join(tmp, "missing.xlsx"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Converted || res.Stats.RowsWritten != 5 {
		t.Fatalf("expected normalized output, got %+v", res.Stats)
	}
}

func TestSmokeDefaultOutputFollowsMode(t *testing.T) {
	proc, _, tmp := setupRun(t)
	input := filepath.Join(tmp, "input.csv")
	outDir := filepath.Join(tmp, "out")

	cases := []struct {
		name      string
		opts      RunOptions
		converted bool
		want      string
	}{
		{name: "empty stored table", opts: RunOptions{StoredTable: true}, want: "input_normalized.csv"},
		{name: "table file", opts: RunOptions{ConversionPath: filepath.Join(tmp, "table.csv")}, converted: true, want: "input_converted.csv"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := tc.opts
			opts.InputPath = input
			opts.OutputDir = outDir
			res, err := proc.Run(context.Background(), opts)
			if err != nil {
				t.Fatal(err)
			}
			if res.Converted != tc.converted {
				t.Fatalf("converted: got %v want %v", res.Converted, tc.converted)
			}
			want := filepath.Join(outDir, tc.want)
			if res.OutputPath != want {
				t.Fatalf("got %q want %q", res.OutputPath, want)
			}
			if _, err := os.Stat(want); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestSmokeBadRangesStillConverts(t *testing.T) {
	proc, _, tmp := setupRun(t)
	ranges := filepath.Join(tmp, "ranges.yaml")
	if err := os.WriteFile(ranges, []byte("ranges: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := proc.Run(context.Background(), RunOptions{
		InputPath:      filepath.Join(tmp, "input.csv"),
		OutputPath:     filepath.Join(tmp, "converted.csv"),
		ConversionPath: filepath.Join(tmp, "table.csv"),
		RangesPath:     ranges,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Converted || res.Stats.Converted != 2 || res.Stats.Outliers != 0 {
		t.Fatalf("got converted=%v stats=%+v", res.Converted, res.Stats)
	}
}
