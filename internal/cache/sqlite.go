package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite"

	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/clock"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/logger"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/monitoring"
)

// DefaultPath returns the cache database location. An empty dir means the
// XDG cache home.
func DefaultPath(dir string) string {
	if dir == "" {
		dir = filepath.Join(xdg.CacheHome, "stockscreener")
	}
	return filepath.Join(dir, "cache.db")
}

// SQLiteStore is the durable local cache
// ⭐ SSOT: on-disk response cache
type SQLiteStore struct {
	readDB  *sql.DB
	writeDB *sql.DB
	ttls    TTLs
	clock   clock.Clock
	logger  *logger.Logger
	metrics *monitoring.Registry
}

// Open opens or creates the cache database at dbPath
func Open(dbPath string, ttls TTLs, clk clock.Clock, log *logger.Logger, metrics *monitoring.Registry) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	s := &SQLiteStore{
		writeDB: writeDB,
		ttls:    ttls,
		clock:   clk,
		logger:  log.WithField("module", "cache"),
		metrics: metrics,
	}
	if err := s.init(); err != nil {
		s.Close()
		return nil, err
	}

	readDB, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}
	s.readDB = readDB

	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.writeDB.Exec(`
		PRAGMA journal_mode = WAL;
		CREATE TABLE IF NOT EXISTS responses (
			key       TEXT PRIMARY KEY,
			category  TEXT NOT NULL,
			payload   BLOB NOT NULL,
			stored_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_responses_category ON responses(category);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

// Close closes both database handles
func (s *SQLiteStore) Close() error {
	var errs []error
	if s.readDB != nil {
		errs = append(errs, s.readDB.Close())
	}
	if s.writeDB != nil {
		errs = append(errs, s.writeDB.Close())
	}
	return errors.Join(errs...)
}

// Get returns a fresh payload for key
func (s *SQLiteStore) Get(ctx context.Context, key, category string) ([]byte, bool) {
	var (
		payload  []byte
		storedAt int64
	)

	err := s.readDB.QueryRowContext(ctx,
		`SELECT payload, stored_at FROM responses WHERE key = ?`, key,
	).Scan(&payload, &storedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.metrics.CacheMiss(category)
		return nil, false
	case err != nil:
		s.logger.WithError(err).WithField("key", key).Warn("Cache read failed, treating as miss")
		s.metrics.CacheMiss(category)
		return nil, false
	}

	if !usable(payload) {
		s.logger.WithField("key", key).Warn("Corrupt cache entry, treating as miss")
		s.metrics.CacheMiss(category)
		return nil, false
	}

	if !s.ttls.Fresh(category, time.Unix(0, storedAt), s.clock.Now()) {
		s.metrics.CacheMiss(category)
		return nil, false
	}

	s.metrics.CacheHit(category)
	return payload, true
}

// Put stores payload under key, replacing any previous entry
func (s *SQLiteStore) Put(ctx context.Context, key, category string, payload []byte) error {
	if err := s.ttls.Validate(category); err != nil {
		return err
	}

	_, err := s.writeDB.ExecContext(ctx, `
		INSERT INTO responses (key, category, payload, stored_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			category = excluded.category,
			payload = excluded.payload,
			stored_at = excluded.stored_at
	`, key, category, payload, s.clock.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("storing %s: %w", key, err)
	}
	return nil
}

// Stats counts entries per category
func (s *SQLiteStore) Stats(ctx context.Context) ([]Stats, error) {
	rows, err := s.readDB.QueryContext(ctx, `SELECT category, stored_at FROM responses`)
	if err != nil {
		return nil, fmt.Errorf("querying cache stats: %w", err)
	}
	defer rows.Close()

	now := s.clock.Now()
	byCategory := make(map[string]*Stats)
	for rows.Next() {
		var (
			category string
			storedAt int64
		)
		if err := rows.Scan(&category, &storedAt); err != nil {
			return nil, fmt.Errorf("scanning cache stats: %w", err)
		}

		st, ok := byCategory[category]
		if !ok {
			st = &Stats{Category: category}
			byCategory[category] = st
		}
		st.Entries++
		if s.ttls.Fresh(category, time.Unix(0, storedAt), now) {
			st.Fresh++
		} else {
			st.Stale++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Stats, 0, len(byCategory))
	for _, st := range byCategory {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

// Clear deletes entries of category, or all entries when category is empty.
// This is the only way entries are ever removed.
func (s *SQLiteStore) Clear(ctx context.Context, category string) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if category == "" {
		res, err = s.writeDB.ExecContext(ctx, `DELETE FROM responses`)
	} else {
		res, err = s.writeDB.ExecContext(ctx, `DELETE FROM responses WHERE category = ?`, category)
	}
	if err != nil {
		return 0, fmt.Errorf("clearing cache: %w", err)
	}
	return res.RowsAffected()
}
