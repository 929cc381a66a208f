package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
	"github.com/xuri/excelize/v2"

	"labnorm/internal"
	"labnorm/internal/util"
)

const xlsxMaxRows = 1_048_576

// RowWriter is an output sink for exported rows.
type RowWriter interface {
	Write(rows []internal.OutputRow) error
	Close() error
	Count() int
}

type column struct {
	header string
	value  func(internal.OutputRow) any
}

// columns returns the export layout. The first header is the subject column
// name of the input.
func columns(subject string, converted bool) []column {
	if subject == "" {
		subject = "subject_id"
	}
	cols := []column{
		{subject, func(r internal.OutputRow) any { return r.SubjectID }},
		{"peticio_id", func(r internal.OutputRow) any { return r.PeticioID }},
	}
	if converted {
		return append(cols,
			column{"any", func(r internal.OutputRow) any { return derefInt(r.Year) }},
			column{"data", func(r internal.OutputRow) any { return util.DerefString(r.Date) }},
			column{"codi_prova", func(r internal.OutputRow) any { return r.Code }},
			column{"prova", func(r internal.OutputRow) any { return r.Name }},
			column{"resultat", func(r internal.OutputRow) any { return r.CleanResult }},
			column{"unitat", func(r internal.OutputRow) any { return r.CleanUnit }},
			column{"resultat_convertit", func(r internal.OutputRow) any { return derefFloat(r.Converted) }},
			column{"unitat_convertida", func(r internal.OutputRow) any { return r.ConvertedUnit }},
			column{"group", func(r internal.OutputRow) any { return r.Group }},
			column{"conversion_issue", func(r internal.OutputRow) any { return r.ConversionIssue }},
		)
	}
	return append(cols,
		column{"any_prova", func(r internal.OutputRow) any { return derefInt(r.Year) }},
		column{"data_prova", func(r internal.OutputRow) any { return util.DerefString(r.Date) }},
		column{"codi_prova", func(r internal.OutputRow) any { return r.Code }},
		column{"nom_prova", func(r internal.OutputRow) any { return r.Name }},
		column{"resultat", func(r internal.OutputRow) any { return r.Result }},
		column{"unitat_mesura", func(r internal.OutputRow) any { return r.Unit }},
		column{"ref_min", func(r internal.OutputRow) any { return r.RefMin }},
		column{"ref_max", func(r internal.OutputRow) any { return r.RefMax }},
		column{"clean_result", func(r internal.OutputRow) any { return r.CleanResult }},
		column{"clean_unit", func(r internal.OutputRow) any { return r.CleanUnit }},
		column{"comentari", func(r internal.OutputRow) any { return r.Comment }},
		column{"comentari_unitat", func(r internal.OutputRow) any { return r.UnitComment }},
		column{"num_type", func(r internal.OutputRow) any { return r.NumType }},
		column{"unitat_comuna", func(r internal.OutputRow) any { return r.CommonUnit }},
	)
}

// ToOutputRow flattens a processed record.
func ToOutputRow(rec internal.LabRecord) internal.OutputRow {
	row := internal.OutputRow{
		SubjectID:       rec.SubjectID,
		PeticioID:       rec.PeticioID,
		Code:            rec.Code,
		Name:            rec.Name,
		Result:          rec.RawResult,
		Unit:            rec.RawUnit,
		RefMin:          rec.RefMin,
		RefMax:          rec.RefMax,
		CleanResult:     rec.CleanResult,
		CleanUnit:       rec.CleanUnit,
		Comment:         rec.Comment(),
		UnitComment:     rec.UnitComment(),
		NumType:         string(rec.NumType),
		CommonUnit:      rec.CommonUnit,
		Converted:       rec.Converted,
		ConvertedUnit:   rec.TargetUnit,
		Group:           rec.Group,
		ConversionIssue: string(rec.Issue),
	}
	if rec.Year != nil {
		y := int64(*rec.Year)
		row.Year = &y
	}
	if rec.Date != nil {
		row.Date = util.StringPtr(rec.Date.Format("2006-01-02"))
	}
	return row
}

// NewRowWriter picks the sink from the output extension: .xlsx, .parquet, or
// delimited text for anything else.
func NewRowWriter(path, subject string, converted bool, comma rune) (RowWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	cols := columns(subject, converted)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return newXLSXWriter(path, cols)
	case ".parquet":
		return newParquetWriter(path)
	default:
		return newDelimitedWriter(path, cols, comma)
	}
}

type delimitedWriter struct {
	file  *os.File
	csv   *csv.Writer
	cols  []column
	count int
}

func newDelimitedWriter(path string, cols []column, comma rune) (*delimitedWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(file)
	w.Comma = comma
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.header
	}
	if err := w.Write(headers); err != nil {
		file.Close()
		return nil, err
	}
	return &delimitedWriter{file: file, csv: w, cols: cols}, nil
}

func (w *delimitedWriter) Write(rows []internal.OutputRow) error {
	record := make([]string, len(w.cols))
	for _, row := range rows {
		for i, c := range w.cols {
			record[i] = cellString(c.value(row))
		}
		if err := w.csv.Write(record); err != nil {
			return err
		}
		w.count++
	}
	return nil
}

func (w *delimitedWriter) Close() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func (w *delimitedWriter) Count() int {
	return w.count
}

type xlsxWriter struct {
	path   string
	file   *excelize.File
	stream *excelize.StreamWriter
	cols   []column
	count  int
}

func newXLSXWriter(path string, cols []column) (*xlsxWriter, error) {
	f := excelize.NewFile()
	sw, err := f.NewStreamWriter(f.GetSheetName(0))
	if err != nil {
		f.Close()
		return nil, err
	}
	headers := make([]any, len(cols))
	for i, c := range cols {
		headers[i] = c.header
	}
	if err := sw.SetRow("A1", headers); err != nil {
		f.Close()
		return nil, err
	}
	return &xlsxWriter{path: path, file: f, stream: sw, cols: cols}, nil
}

func (w *xlsxWriter) Write(rows []internal.OutputRow) error {
	for _, row := range rows {
		r := w.count + 2
		if r > xlsxMaxRows {
			return fmt.Errorf("xlsx output limited to %d rows", xlsxMaxRows-1)
		}
		values := make([]any, len(w.cols))
		for i, c := range w.cols {
			values[i] = c.value(row)
		}
		cell, _ := excelize.CoordinatesToCellName(1, r)
		if err := w.stream.SetRow(cell, values); err != nil {
			return err
		}
		w.count++
	}
	return nil
}

func (w *xlsxWriter) Close() error {
	defer w.file.Close()
	if err := w.stream.Flush(); err != nil {
		return err
	}
	return w.file.SaveAs(w.path)
}

func (w *xlsxWriter) Count() int {
	return w.count
}

type parquetWriter struct {
	file   *os.File
	writer *parquet.GenericWriter[internal.OutputRow]
	count  int
}

func newParquetWriter(path string) (*parquetWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create parquet file: %w", err)
	}
	writer := parquet.NewGenericWriter[internal.OutputRow](file,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}),
		parquet.PageBufferSize(8*1024),
		parquet.WriteBufferSize(64*1024*1024),
		parquet.DataPageStatistics(true),
		parquet.CreatedBy("labnorm", "1.0", ""),
	)
	return &parquetWriter{file: file, writer: writer}, nil
}

func (w *parquetWriter) Write(rows []internal.OutputRow) error {
	n, err := w.writer.Write(rows)
	w.count += n
	if err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	return nil
}

func (w *parquetWriter) Close() error {
	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return w.file.Close()
}

func (w *parquetWriter) Count() int {
	return w.count
}

func cellString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return util.FormatNumber(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprint(t)
	}
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt(v *int64) any {
	if v == nil {
		return ""
	}
	return *v
}
