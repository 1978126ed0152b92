package geo

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/JonMunkholm/customermatch/internal/config"
)

// Open returns the backend named by cfg.Backend, or nil for "none".
func Open(ctx context.Context, cfg config.LookupConfig) (Source, error) {
	switch strings.ToLower(cfg.Backend) {
	case config.BackendNone, "":
		return nil, nil

	case config.BackendCSV:
		f, err := os.Open(cfg.CSVPath)
		if err != nil {
			return nil, fmt.Errorf("open zip csv: %w", err)
		}
		defer f.Close()

		entries, _, err := ReadEntries(f)
		if err != nil {
			return nil, fmt.Errorf("read zip csv %s: %w", cfg.CSVPath, err)
		}
		return NewStaticSource(entries), nil

	case config.BackendSQLite:
		s, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil

	case config.BackendPostgres:
		s, err := OpenPostgres(ctx, cfg.DatabaseURL, int32(cfg.MaxConns))
		if err != nil {
			return nil, err
		}
		return s, nil

	case config.BackendRedis:
		s, err := OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown zip backend %q", cfg.Backend)
	}
}
