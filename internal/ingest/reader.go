package ingest

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"labnorm/internal"
	"labnorm/internal/util"
)

var (
	ErrEmptyInput    = errors.New("empty input")
	ErrMissingColumn = errors.New("missing required column")
)

// Canonical column names and the spellings accepted for each.
var columnAliases = map[string][]string{
	"peticio_id":    {"peticio_id", "peticio"},
	"any_prova":     {"any_prova", "any"},
	"data_prova":    {"data_prova", "data"},
	"codi_prova":    {"codi_prova", "lab_prova_c"},
	"nom_prova":     {"nom_prova", "lab_prova", "prova"},
	"resultat":      {"resultat", "lab_resultat"},
	"unitat_mesura": {"unitat_mesura", "unitat", "lab_unitat"},
	"ref_min":       {"ref_min"},
	"ref_max":       {"ref_max"},
}

var requiredColumns = []string{"codi_prova", "resultat"}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"02-01-2006",
	"2006/01/02",
}

// Reader streams lab records from a delimited file. The first column is the
// subject identifier whatever its name.
type Reader struct {
	file    *os.File
	csv     *csv.Reader
	line    int
	colIdx  map[string]int
	subject string
	issues  []internal.CastIssue
}

func Open(path string, comma rune) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	r, err := NewReader(file, comma)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.file = file
	return r, nil
}

func NewReader(src io.Reader, comma rune) (*Reader, error) {
	bufReader := bufio.NewReaderSize(src, 256*1024)

	reader := csv.NewReader(bufReader)
	reader.Comma = comma
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	r := &Reader{csv: reader, colIdx: map[string]int{}}
	if err := r.readHeaders(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reader) readHeaders() error {
	headers, err := r.csv.Read()
	if err == io.EOF {
		return ErrEmptyInput
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	r.line++
	if len(headers) == 0 {
		return ErrEmptyInput
	}

	lower := map[string]int{}
	for i, h := range headers {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, ok := lower[key]; !ok {
			lower[key] = i
		}
	}
	r.subject = strings.TrimSpace(strings.TrimPrefix(headers[0], "\ufeff"))

	for canonical, aliases := range columnAliases {
		for _, alias := range aliases {
			if i, ok := lower[alias]; ok {
				r.colIdx[canonical] = i
				break
			}
		}
	}
	for _, col := range requiredColumns {
		if _, ok := r.colIdx[col]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	return nil
}

// SubjectColumn is the header of the first input column.
func (r *Reader) SubjectColumn() string {
	return r.subject
}

func (r *Reader) valAt(row []string, col string) string {
	i, ok := r.colIdx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Next returns the next record, or io.EOF.
func (r *Reader) Next() (internal.LabRecord, error) {
	for {
		row, err := r.csv.Read()
		if err != nil {
			return internal.LabRecord{}, err
		}
		r.line++
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}

		rec := internal.LabRecord{
			Line:          r.line,
			SubjectID:     strings.TrimSpace(row[0]),
			SubjectColumn: r.subject,
			PeticioID:     r.valAt(row, "peticio_id"),
			Code:          r.valAt(row, "codi_prova"),
			Name:          r.valAt(row, "nom_prova"),
			RawResult:     r.valAt(row, "resultat"),
			RawUnit:       r.valAt(row, "unitat_mesura"),
			RefMin:        r.valAt(row, "ref_min"),
			RefMax:        r.valAt(row, "ref_max"),
		}
		rec.Year = r.castYear(r.valAt(row, "any_prova"))
		rec.Date = r.castDate(r.valAt(row, "data_prova"))
		return rec, nil
	}
}

// ReadChunk reads up to n records. It returns io.EOF only with an empty chunk.
func (r *Reader) ReadChunk(n int) ([]internal.LabRecord, error) {
	out := make([]internal.LabRecord, 0, n)
	for len(out) < n {
		rec, err := r.Next()
		if err == io.EOF {
			if len(out) == 0 {
				return nil, io.EOF
			}
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *Reader) castYear(raw string) *int {
	if util.IsMissing(raw) {
		return nil
	}
	s := strings.TrimSuffix(raw, ".0")
	v, err := strconv.Atoi(s)
	if err != nil {
		r.issue("any_prova", raw, err.Error())
		return nil
	}
	return &v
}

func (r *Reader) castDate(raw string) *time.Time {
	if util.IsMissing(raw) {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	r.issue("data_prova", raw, "unrecognized date layout")
	return nil
}

func (r *Reader) issue(column, value, reason string) {
	r.issues = append(r.issues, internal.CastIssue{Line: r.line, Column: column, Value: value, Reason: reason})
}

// Issues returns and clears the cast failures seen since the last call.
func (r *Reader) Issues() []internal.CastIssue {
	out := r.issues
	r.issues = nil
	return out
}

func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}
