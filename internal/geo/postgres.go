package geo

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/customermatch/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS zips (
	zip     TEXT NOT NULL,
	city    TEXT NOT NULL,
	state   TEXT NOT NULL,
	country TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS zips_place_idx ON zips (country, state, city)`

// Querier is the subset of *pgxpool.Pool the Postgres source uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// PostgresSource looks zips up in a shared Postgres table.
type PostgresSource struct {
	db    Querier
	close func()
}

// NewPostgresSource wraps an existing pool or connection.
func NewPostgresSource(db Querier) *PostgresSource {
	return &PostgresSource{db: db}
}

// OpenPostgres connects a pool and ensures the zips table exists.
func OpenPostgres(ctx context.Context, url string, maxConns int32) (*PostgresSource, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresSource{db: pool, close: pool.Close}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the zips table and index if missing.
func (s *PostgresSource) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create zips table: %w", err)
	}
	return nil
}

func (s *PostgresSource) Lookup(ctx context.Context, key core.PlaceKey) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT DISTINCT zip FROM zips WHERE country = $1 AND state = $2 AND city = $3 ORDER BY zip`,
		key.Country, key.State, key.City)
	if err != nil {
		return nil, fmt.Errorf("query zips for %s: %w", key, err)
	}
	defer rows.Close()

	var zips []string
	for rows.Next() {
		var zip string
		if err := rows.Scan(&zip); err != nil {
			return nil, fmt.Errorf("scan zip: %w", err)
		}
		zips = append(zips, zip)
	}
	return zips, rows.Err()
}

// Load bulk copies entries into the table.
func (s *PostgresSource) Load(ctx context.Context, entries []Entry) (int, error) {
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		if !e.valid() {
			continue
		}
		rows = append(rows, []any{e.Zip, e.City, e.State, e.Country})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"zips"},
		[]string{"zip", "city", "state", "country"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("copy zips: %w", err)
	}
	return int(n), nil
}

func (s *PostgresSource) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}
