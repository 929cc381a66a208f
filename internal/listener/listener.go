package listener

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"labnorm/internal/config"
	"labnorm/internal/logging"
	"labnorm/internal/pipeline"
	"labnorm/internal/storage"
)

var inputExtensions = map[string]bool{
	".csv": true,
	".txt": true,
	".tsv": true,
}

// Service polls the inbox directory and normalizes every export that has not
// been processed yet.
type Service struct {
	db  *storage.DB
	cfg config.Config

	StoredTable bool
	Harmonize   bool
	// Settle is how long a file must stay unmodified before it is picked up.
	Settle time.Duration
}

func NewService(db *storage.DB, cfg config.Config) *Service {
	return &Service{db: db, cfg: cfg, Harmonize: cfg.Harmonize, Settle: 5 * time.Second}
}

func (s *Service) Run(ctx context.Context) error {
	logger := logging.Logger(logging.SourceApp)
	interval := time.Duration(max(s.cfg.WatchIntervalSec, 1)) * time.Second
	for {
		if _, err := s.RunCycle(ctx); err != nil {
			logger.Error("listener cycle failed", "err", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// RunCycle processes the pending inbox files once and returns how many it
// normalized.
func (s *Service) RunCycle(ctx context.Context) (int, error) {
	logger := logging.Logger(logging.SourceApp)
	pending, err := s.pending()
	if err != nil {
		return 0, err
	}

	processor := pipeline.NewProcessingService(s.db, s.cfg)
	processed := 0
	for _, path := range pending {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		opts := pipeline.RunOptions{
			InputPath:   path,
			OutputDir:   filepath.Join(s.cfg.OutputDir, "listener"),
			StoredTable: s.StoredTable,
			Harmonize:   s.Harmonize,
		}
		res, err := processor.Run(ctx, opts)
		if err != nil {
			logger.Error("normalize failed", "input", path, "err", err)
			continue
		}
		processed++
		logger.Info("normalized", "input", path, "output", res.OutputPath, "rows", res.Stats.RowsWritten, "trace", res.TraceID)
	}

	logger.Info("listener cycle done", "inbox", s.cfg.InboxDir, "pending", len(pending), "processed", processed)
	return processed, nil
}

func (s *Service) pending() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.InboxDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []string
	for _, entry := range entries {
		if entry.IsDir() || !inputExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, err
		}
		if time.Since(info.ModTime()) < s.Settle {
			continue
		}
		path := filepath.Join(s.cfg.InboxDir, entry.Name())
		done, err := s.db.RunExists(path)
		if err != nil {
			return nil, err
		}
		if !done {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out, nil
}
