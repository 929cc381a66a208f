package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"labnorm/internal"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// goose keeps its configuration in package globals.
var gooseMu sync.Mutex

type DB struct {
	conn *sql.DB
}

type Run struct {
	ID         int
	TraceID    string
	Command    string
	InputPath  string
	OutputPath string
	Timings    map[string]float64
	Counts     map[string]int
	CreatedAt  string
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) migrate() error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(d.conn, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// ReplaceConversionRules swaps the stored table for rules, keeping their order.
// A repeated (code, from, to) key keeps its first factor.
func (d *DB) ReplaceConversionRules(rules []internal.ConversionRule) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM conversion_rules`); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
INSERT INTO conversion_rules (codi_prova, from_unit, to_unit, factor, grp, position, importedAt)
VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(codi_prova, from_unit, to_unit) DO NOTHING
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range rules {
		if _, err := stmt.Exec(r.Code, r.FromUnit, r.ToUnit, r.Factor, r.Group, i); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListConversionRules() ([]internal.ConversionRule, error) {
	rows, err := d.conn.Query(`
SELECT codi_prova, from_unit, to_unit, factor, grp
FROM conversion_rules
ORDER BY position ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ConversionRule
	for rows.Next() {
		var r internal.ConversionRule
		if err := rows.Scan(&r.Code, &r.FromUnit, &r.ToUnit, &r.Factor, &r.Group); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) InsertRun(run Run) error {
	timingsJSON, _ := json.Marshal(run.Timings)
	countsJSON, _ := json.Marshal(run.Counts)
	_, err := d.conn.Exec(`
INSERT INTO runs (traceId, command, inputPath, outputPath, timingsJson, countsJson)
VALUES (?, ?, ?, ?, ?, ?)
`, run.TraceID, run.Command, run.InputPath, run.OutputPath, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.Query(`
SELECT id, traceId, command, COALESCE(inputPath, ''), COALESCE(outputPath, ''), timingsJson, countsJson, createdAt
FROM runs
ORDER BY id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var timingsJSON, countsJSON string
		if err := rows.Scan(&r.ID, &r.TraceID, &r.Command, &r.InputPath, &r.OutputPath, &timingsJSON, &countsJSON, &r.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(timingsJSON), &r.Timings)
		_ = json.Unmarshal([]byte(countsJSON), &r.Counts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunExists reports whether inputPath was already normalized.
func (d *DB) RunExists(inputPath string) (bool, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM runs WHERE inputPath = ?`, inputPath).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
