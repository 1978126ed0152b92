package geo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/JonMunkholm/customermatch/internal/core"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS zips (
	zip     TEXT NOT NULL,
	city    TEXT NOT NULL,
	state   TEXT NOT NULL,
	country TEXT NOT NULL,
	PRIMARY KEY (country, state, city, zip)
)`

// SQLiteSource looks zips up in a local SQLite file.
type SQLiteSource struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create zips table: %w", err)
	}
	return &SQLiteSource{db: db}, nil
}

func (s *SQLiteSource) Lookup(ctx context.Context, key core.PlaceKey) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT zip FROM zips WHERE country = ? AND state = ? AND city = ? ORDER BY zip`,
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

// Load inserts entries in one transaction. Existing rows are kept.
func (s *SQLiteSource) Load(ctx context.Context, entries []Entry) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO zips (zip, city, state, country) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	n := 0
	for _, e := range entries {
		if !e.valid() {
			continue
		}
		res, err := stmt.ExecContext(ctx, e.Zip, e.City, e.State, e.Country)
		if err != nil {
			return n, fmt.Errorf("insert %s %s: %w", e.Key(), e.Zip, err)
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			n++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

func (s *SQLiteSource) Close() error {
	return s.db.Close()
}
