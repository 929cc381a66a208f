package conversion

import (
	"fmt"
	"time"

	"labnorm/internal"
	"labnorm/internal/config"
	"labnorm/internal/storage"
)

// Service keeps the stored conversion table in sync with files on disk.
type Service struct {
	db  *storage.DB
	cfg config.Config
}

func NewService(db *storage.DB, cfg config.Config) *Service {
	return &Service{db: db, cfg: cfg}
}

// Import replaces the stored table with the rules read from path.
func (s *Service) Import(path string) (int, error) {
	rules, err := Load(path, s.cfg.Comma())
	if err != nil {
		return 0, err
	}
	if len(rules) == 0 {
		return 0, fmt.Errorf("%w: %s has no rules", ErrConversionTable, path)
	}
	if err := s.db.ReplaceConversionRules(rules); err != nil {
		return 0, err
	}
	_ = s.db.SetMetadata("conversion.source", path)
	_ = s.db.SetMetadata("conversion.imported_at", time.Now().UTC().Format(time.RFC3339))
	return len(rules), nil
}

// Rules reads path when given, otherwise the stored table.
func (s *Service) Rules(path string) ([]internal.ConversionRule, error) {
	if path != "" {
		return Load(path, s.cfg.Comma())
	}
	rules, err := s.db.ListConversionRules()
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: nothing imported", ErrConversionTable)
	}
	return rules, nil
}

// Index builds the lookup index for a run.
func (s *Service) Index(path string) (*Index, error) {
	rules, err := s.Rules(path)
	if err != nil {
		return nil, err
	}
	return BuildIndex(rules), nil
}
