package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/nearby-cli/pkg/here"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db      *sql.DB
	ttlDays int
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode. ttlDays bounds cache entry age; zero disables expiry.
func NewSQLite(path string, ttlDays int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, ttlDays: ttlDays}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	address_hash TEXT PRIMARY KEY,
	latitude     REAL NOT NULL,
	longitude    REAL NOT NULL,
	cached_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	address    TEXT NOT NULL,
	terms      TEXT NOT NULL,
	radius     INTEGER NOT NULL,
	features   INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_geocode_cache_cached_at ON geocode_cache(cached_at);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetPosition(ctx context.Context, address string) (*here.Position, bool, error) {
	query := `SELECT latitude, longitude FROM geocode_cache WHERE address_hash = ?`
	if s.ttlDays > 0 {
		query += fmt.Sprintf(` AND cached_at > datetime('now', '-%d days')`, s.ttlDays)
	}

	var pos here.Position
	err := s.db.QueryRowContext(ctx, query, cacheKey(address)).Scan(&pos.Latitude, &pos.Longitude)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: get position")
	}
	return &pos, true, nil
}

func (s *SQLiteStore) PutPosition(ctx context.Context, address string, pos here.Position) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO geocode_cache (address_hash, latitude, longitude, cached_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(address_hash) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			cached_at = datetime('now')`,
		cacheKey(address), pos.Latitude, pos.Longitude,
	)
	return eris.Wrap(err, "sqlite: put position")
}

func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int64, error) {
	if s.ttlDays <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM geocode_cache WHERE cached_at <= datetime('now', '-%d days')`, s.ttlDays),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: purge expired")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: purge rows affected")
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	termsJSON, err := json.Marshal(run.Terms)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal terms")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, address, terms, radius, features, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Address, string(termsJSON), run.Radius, run.Features, run.CreatedAt.Format(time.RFC3339),
	)
	return eris.Wrap(err, "sqlite: insert run")
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, address, terms, radius, features, created_at FROM runs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		var r Run
		var termsJSON, createdAt string
		if err := rows.Scan(&r.ID, &r.Address, &termsJSON, &r.Radius, &r.Features, &createdAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if err := json.Unmarshal([]byte(termsJSON), &r.Terms); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal terms")
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse created_at")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}
