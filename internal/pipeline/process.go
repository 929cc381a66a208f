package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"labnorm/internal"
	"labnorm/internal/config"
	"labnorm/internal/conversion"
	"labnorm/internal/ingest"
	"labnorm/internal/logging"
	"labnorm/internal/storage"
)

type ProcessingService struct {
	db   *storage.DB
	cfg  config.Config
	conv *conversion.Service
}

func NewProcessingService(db *storage.DB, cfg config.Config) *ProcessingService {
	return &ProcessingService{db: db, cfg: cfg, conv: conversion.NewService(db, cfg)}
}

type RunOptions struct {
	InputPath string
	// OutputPath is derived from the input name under OutputDir when empty.
	OutputPath string
	OutputDir  string

	// ConversionPath names a conversion table file. StoredTable uses the
	// table imported into the database instead.
	ConversionPath string
	StoredTable    bool
	Harmonize      bool
	RangesPath     string
	SkipRanges     bool
}

func (o RunOptions) wantsConversion() bool {
	return o.ConversionPath != "" || o.StoredTable
}

type RunResult struct {
	TraceID    string
	OutputPath string
	Stats      internal.Stats
	Converted  bool
	Elapsed    time.Duration
}

// DefaultOutput names the result after the input, marking whether it holds
// converted values.
func DefaultOutput(dir, input string, converted bool) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	suffix := "_normalized"
	if converted {
		suffix = "_converted"
	}
	return filepath.Join(dir, base+suffix+filepath.Ext(input))
}

// Run normalizes a whole file in two passes. The first pass votes test names
// and units chunk by chunk; the second re-normalizes each chunk, applies the
// winners, converts when asked to and writes the output.
func (s *ProcessingService) Run(ctx context.Context, opts RunOptions) (RunResult, error) {
	start := time.Now()
	logger := logging.Logger(logging.SourcePipeline)
	res := RunResult{TraceID: uuid.NewString(), Stats: internal.NewStats()}

	converter, err := s.converter(opts)
	if err != nil {
		logger.Error("conversion disabled, writing normalized output", "err", err)
	}
	res.Converted = converter != nil
	if opts.OutputPath == "" {
		opts.OutputPath = DefaultOutput(opts.OutputDir, opts.InputPath, res.Converted)
	}
	res.OutputPath = opts.OutputPath

	p := New(s.cfg.Workers)

	acc := NewAccumulator()
	chunks, err := s.eachChunk(ctx, opts.InputPath, func(_ *ingest.Reader, chunk []internal.LabRecord) error {
		if err := p.Normalize(ctx, chunk); err != nil {
			return err
		}
		acc.Observe(chunk)
		return nil
	})
	if err != nil {
		return res, err
	}
	res.Stats.Chunks = chunks
	commons := acc.Finalize()
	passOne := time.Since(start)
	logger.Info("name and unit votes collected", "chunks", chunks, "codes", len(commons.Names), "elapsed", passOne.Round(time.Millisecond))

	ext := filepath.Ext(opts.OutputPath)
	tmpPath := strings.TrimSuffix(opts.OutputPath, ext) + ".tmp" + ext
	var writer RowWriter
	defer func() {
		if writer != nil {
			_ = writer.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	lastLog := time.Now()
	_, err = s.eachChunk(ctx, opts.InputPath, func(r *ingest.Reader, chunk []internal.LabRecord) error {
		if writer == nil {
			w, err := NewRowWriter(tmpPath, r.SubjectColumn(), res.Converted, s.cfg.Comma())
			if err != nil {
				return err
			}
			writer = w
		}
		for _, issue := range r.Issues() {
			res.Stats.CastIssues[issue.Column]++
			logger.Debug("cast failed", "line", issue.Line, "column", issue.Column, "value", issue.Value, "reason", issue.Reason)
		}

		res.Stats.RowsRead += len(chunk)
		if err := p.Normalize(ctx, chunk); err != nil {
			return err
		}
		commons.ApplyAll(chunk)
		if converter != nil {
			kept := converter.ConvertAll(chunk)
			res.Stats.RowsFiltered += len(chunk) - len(kept)
			chunk = kept
		}

		rows := make([]internal.OutputRow, 0, len(chunk))
		for _, rec := range chunk {
			tally(&res.Stats, rec)
			rows = append(rows, ToOutputRow(rec))
		}
		if err := writer.Write(rows); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		res.Stats.RowsWritten += len(rows)

		if time.Since(lastLog) >= 5*time.Second {
			logger.Info("progress", "rows", res.Stats.RowsRead, "written", res.Stats.RowsWritten)
			lastLog = time.Now()
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	if writer == nil {
		return res, ingest.ErrEmptyInput
	}

	w := writer
	writer = nil
	if err := w.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return res, fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmpPath, opts.OutputPath); err != nil {
		return res, err
	}

	res.Elapsed = time.Since(start)
	if s.db != nil {
		run := storage.Run{
			TraceID:    res.TraceID,
			Command:    "normalize",
			InputPath:  opts.InputPath,
			OutputPath: opts.OutputPath,
			Timings: map[string]float64{
				"votesMs": float64(passOne.Milliseconds()),
				"totalMs": float64(res.Elapsed.Milliseconds()),
			},
			Counts: res.Stats.Counts(),
		}
		if err := s.db.InsertRun(run); err != nil {
			logger.Warn("run history not saved", "err", err)
		}
	}
	return res, nil
}

func (s *ProcessingService) converter(opts RunOptions) (*Converter, error) {
	if !opts.wantsConversion() && !opts.Harmonize {
		return nil, nil
	}

	var ranges Ranges
	if !opts.SkipRanges {
		r, err := LoadRanges(firstNonEmpty(opts.RangesPath, s.cfg.RangesPath))
		if err != nil {
			logging.Logger(logging.SourceConversion).Warn("plausibility ranges not loaded, converting without them", "err", err)
		} else {
			ranges = r
		}
	}

	if !opts.wantsConversion() {
		return NewConverter(nil, ranges), nil
	}
	path := opts.ConversionPath
	if opts.StoredTable {
		path = ""
	}
	idx, err := s.conv.Index(path)
	if err != nil {
		return nil, err
	}
	logging.Logger(logging.SourceConversion).Info("conversion table loaded", "codes", len(idx.Codes()), "ranges", len(ranges))
	return NewConverter(idx, ranges), nil
}

// eachChunk streams path in chunks of the configured size and reports how
// many chunks it read.
func (s *ProcessingService) eachChunk(ctx context.Context, path string, fn func(*ingest.Reader, []internal.LabRecord) error) (int, error) {
	r, err := ingest.Open(path, s.cfg.Comma())
	if err != nil {
		return 0, err
	}
	defer r.Close()

	chunks := 0
	for {
		if err := ctx.Err(); err != nil {
			return chunks, err
		}
		chunk, err := r.ReadChunk(s.cfg.ChunkSize)
		if errors.Is(err, io.EOF) {
			return chunks, nil
		}
		if err != nil {
			return chunks, fmt.Errorf("read %s: %w", path, err)
		}
		chunks++
		if err := fn(r, chunk); err != nil {
			return chunks, err
		}
	}
}

func tally(stats *internal.Stats, rec internal.LabRecord) {
	stats.ByNumType[rec.NumType]++
	for _, a := range rec.Comments {
		stats.ByAnnotation[a]++
	}
	if rec.UnitResolved {
		stats.UnitsResolved++
	}
	if rec.Converted != nil {
		stats.Converted++
	}
	if rec.Outlier {
		stats.Outliers++
	}
	if rec.Issue != internal.IssueNone {
		stats.Issues[rec.Issue]++
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
