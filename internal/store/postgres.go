package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/nearby-cli/pkg/here"
)

// Pool is the subset of pgxpool.Pool the postgres store uses. pgxmock
// satisfies it for tests.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	ttlDays int
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, ttlDays int) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, ttlDays: ttlDays}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	address_hash TEXT PRIMARY KEY,
	latitude     DOUBLE PRECISION NOT NULL,
	longitude    DOUBLE PRECISION NOT NULL,
	cached_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	address    TEXT NOT NULL,
	terms      JSONB NOT NULL,
	radius     INTEGER NOT NULL,
	features   INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_geocode_cache_cached_at ON geocode_cache(cached_at);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetPosition(ctx context.Context, address string) (*here.Position, bool, error) {
	query := `SELECT latitude, longitude FROM geocode_cache WHERE address_hash = $1`
	if s.ttlDays > 0 {
		query += fmt.Sprintf(` AND cached_at > now() - interval '%d days'`, s.ttlDays)
	}

	var pos here.Position
	err := s.pool.QueryRow(ctx, query, cacheKey(address)).Scan(&pos.Latitude, &pos.Longitude)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: get position")
	}
	return &pos, true, nil
}

func (s *PostgresStore) PutPosition(ctx context.Context, address string, pos here.Position) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO geocode_cache (address_hash, latitude, longitude, cached_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (address_hash) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			cached_at = now()`,
		cacheKey(address), pos.Latitude, pos.Longitude,
	)
	return eris.Wrap(err, "postgres: put position")
}

func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	if s.ttlDays <= 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM geocode_cache WHERE cached_at <= now() - interval '%d days'`, s.ttlDays),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: purge expired")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) RecordRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	termsJSON, err := json.Marshal(run.Terms)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal terms")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, address, terms, radius, features, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.Address, termsJSON, run.Radius, run.Features, run.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert run")
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, address, terms, radius, features, created_at FROM runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var termsJSON []byte
		if err := rows.Scan(&r.ID, &r.Address, &termsJSON, &r.Radius, &r.Features, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if err := json.Unmarshal(termsJSON, &r.Terms); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal terms")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}
