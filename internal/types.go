package internal

import (
	"strings"
	"time"
)

type NumType string

const (
	NumUnset NumType = ""
	NumN1    NumType = "n1"
	NumN2    NumType = "n2"
	NumN3    NumType = "n3"
	NumN4    NumType = "n4"
	NumOther NumType = "other"
)

type Annotation string

const (
	AnnotLiteral   Annotation = "literal"
	AnnotUnits     Annotation = "units"
	AnnotFlag      Annotation = "flag"
	AnnotPercent   Annotation = "percent"
	AnnotExponents Annotation = "exponents"
)

// NoCalc replaces a missing raw result before any stage runs.
const NoCalc = "nocalc"

// UnitDone is the serialized marker of a resolved unit.
const UnitDone = "done"

type ConversionIssue string

const (
	IssueNone                  ConversionIssue = ""
	IssueNonNumeric            ConversionIssue = "non_numeric"
	IssueMissingUnit           ConversionIssue = "missing_unit"
	IssueUnresolvableUnit      ConversionIssue = "unresolvable_unit"
	IssueIncompatibleDimension ConversionIssue = "incompatible_dimension"
	IssueOutOfRange            ConversionIssue = "out_of_range"
)

type LabRecord struct {
	Line          int
	SubjectID     string
	SubjectColumn string
	PeticioID     string
	Year          *int
	Date          *time.Time
	Code          string
	Name          string
	RawResult     string
	RawUnit       string
	RefMin        string
	RefMax        string

	CleanResult  string
	NumType      NumType
	Comments     []Annotation
	CleanUnit    string
	UnitResolved bool
	CommonUnit   string

	TargetUnit string
	Factor     *float64
	Converted  *float64
	Group      string
	Outlier    bool
	Issue      ConversionIssue
}

// Annotate appends a tag unless it is already present.
func (r *LabRecord) Annotate(a Annotation) {
	if r.HasAnnotation(a) {
		return
	}
	r.Comments = append(r.Comments, a)
}

func (r *LabRecord) HasAnnotation(a Annotation) bool {
	for _, c := range r.Comments {
		if c == a {
			return true
		}
	}
	return false
}

// Comment is the serialized annotation trail.
func (r *LabRecord) Comment() string {
	parts := make([]string, 0, len(r.Comments))
	for _, c := range r.Comments {
		parts = append(parts, string(c))
	}
	return strings.Join(parts, ",")
}

func (r *LabRecord) UnitComment() string {
	if r.UnitResolved {
		return UnitDone
	}
	return ""
}

type ConversionRule struct {
	Code     string
	FromUnit string
	ToUnit   string
	Factor   float64
	Group    string
}

// CastIssue reports a column value that could not be cast to its typed form.
type CastIssue struct {
	Line   int
	Column string
	Value  string
	Reason string
}

type Stats struct {
	RowsRead      int
	RowsWritten   int
	RowsFiltered  int
	Chunks        int
	ByNumType     map[NumType]int
	ByAnnotation  map[Annotation]int
	UnitsResolved int
	Converted     int
	Issues        map[ConversionIssue]int
	Outliers      int
	CastIssues    map[string]int
}

func NewStats() Stats {
	return Stats{
		ByNumType:    map[NumType]int{},
		ByAnnotation: map[Annotation]int{},
		Issues:       map[ConversionIssue]int{},
		CastIssues:   map[string]int{},
	}
}

// Counts flattens the counters for run history.
func (s Stats) Counts() map[string]int {
	out := map[string]int{
		"rows_read":      s.RowsRead,
		"rows_written":   s.RowsWritten,
		"rows_filtered":  s.RowsFiltered,
		"chunks":         s.Chunks,
		"units_resolved": s.UnitsResolved,
		"converted":      s.Converted,
		"outliers":       s.Outliers,
	}
	for k, v := range s.ByNumType {
		name := string(k)
		if k == NumUnset {
			name = "unset"
		}
		out["num_type."+name] = v
	}
	for k, v := range s.ByAnnotation {
		out["comentari."+string(k)] = v
	}
	for k, v := range s.Issues {
		out["issue."+string(k)] = v
	}
	for k, v := range s.CastIssues {
		out["cast."+k] = v
	}
	return out
}

// OutputRow is the flat export shape shared by every writer.
type OutputRow struct {
	SubjectID       string   `parquet:"subject_id"`
	PeticioID       string   `parquet:"peticio_id"`
	Year            *int64   `parquet:"any_prova,optional"`
	Date            *string  `parquet:"data_prova,optional"`
	Code            string   `parquet:"codi_prova"`
	Name            string   `parquet:"nom_prova"`
	Result          string   `parquet:"resultat"`
	Unit            string   `parquet:"unitat_mesura"`
	RefMin          string   `parquet:"ref_min"`
	RefMax          string   `parquet:"ref_max"`
	CleanResult     string   `parquet:"clean_result"`
	CleanUnit       string   `parquet:"clean_unit"`
	Comment         string   `parquet:"comentari"`
	UnitComment     string   `parquet:"comentari_unitat"`
	NumType         string   `parquet:"num_type"`
	CommonUnit      string   `parquet:"unitat_comuna"`
	Converted       *float64 `parquet:"resultat_convertit,optional"`
	ConvertedUnit   string   `parquet:"unitat_convertida"`
	Group           string   `parquet:"group"`
	ConversionIssue string   `parquet:"conversion_issue"`
}
