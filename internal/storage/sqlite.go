// Package storage persists the latest scan reports and saved strategies in
// a local SQLite key-value table.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/svirmi/options-scanner/internal/logger"
	"github.com/svirmi/options-scanner/internal/models"
)

var ErrNotFound = errors.New("key not found")

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    key        TEXT PRIMARY KEY,
    value      BLOB NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	logger zerolog.Logger
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbPath, err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.GetLogger("storage"),
	}, nil
}

func ReportKey(currency string) string {
	return "scan:" + strings.ToUpper(currency) + ":latest"
}

func StrategyKey(name string) string {
	return "strategy:" + name
}

// Put stores v as JSON under key, replacing any previous value
func (s *SQLiteStore) Put(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
        INSERT INTO kv (key, value, updated_at)
        VALUES (?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
    `, key, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Get decodes the JSON value under key into v
func (s *SQLiteStore) Get(key string, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return nil
}

// Keys lists stored keys with the given prefix in lexical order
func (s *SQLiteStore) Keys(prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT key FROM kv WHERE substr(key, 1, ?) = ? ORDER BY key`, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) SaveReport(report models.ScanReport) error {
	return s.Put(ReportKey(report.Currency), report)
}

func (s *SQLiteStore) LoadReport(currency string) (models.ScanReport, error) {
	var report models.ScanReport
	err := s.Get(ReportKey(currency), &report)
	return report, err
}

func (s *SQLiteStore) SaveStrategy(name string, legs []models.StrategyLeg) error {
	if name == "" {
		return errors.New("strategy name is required")
	}
	return s.Put(StrategyKey(name), legs)
}

func (s *SQLiteStore) LoadStrategy(name string) ([]models.StrategyLeg, error) {
	var legs []models.StrategyLeg
	err := s.Get(StrategyKey(name), &legs)
	return legs, err
}

// Strategies lists the names of saved strategies
func (s *SQLiteStore) Strategies() ([]string, error) {
	keys, err := s.Keys(StrategyKey(""))
	if err != nil {
		return nil, err
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = strings.TrimPrefix(k, StrategyKey(""))
	}
	return names, nil
}

// Persist saves every report received until the channel closes or ctx ends
func (s *SQLiteStore) Persist(ctx context.Context, reports <-chan models.ScanReport) {
	for {
		select {
		case <-ctx.Done():
			return
		case report, ok := <-reports:
			if !ok {
				return
			}
			if err := s.SaveReport(report); err != nil {
				s.logger.Error().Err(err).Str("currency", report.Currency).Msg("Failed to persist report")
				continue
			}
			s.logger.Debug().Str("currency", report.Currency).Uint64("generation", report.Generation).Msg("Report persisted")
		}
	}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
