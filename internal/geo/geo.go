// Package geo provides zip code reference data for zip inference.
//
// Every backend implements core.ZipSource and stores places under the same
// normalized key the pipeline builds from a row (see core.NewPlaceKey), so a
// row's "Hoboken, New Jersey" finds an entry loaded as "hoboken,NJ".
//
// Backends:
//
//	StaticSource    in-memory, loaded from a zip,city,state,country CSV
//	SQLiteSource    local database file (modernc.org/sqlite, no cgo)
//	PostgresSource  shared table, bulk loaded with COPY
//	RedisSource     one set per place
package geo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/customermatch/internal/core"
	"github.com/JonMunkholm/customermatch/internal/csvio"
)

// Source is a zip lookup backend that can also be loaded with reference data.
type Source interface {
	core.ZipSource

	// Load stores entries and returns how many were written.
	Load(ctx context.Context, entries []Entry) (int, error)

	Close() error
}

// Entry is one zip code for a place. Fields are stored normalized.
type Entry struct {
	Zip     string
	City    string
	State   string
	Country string
}

// NewEntry normalizes a raw reference row. Country must be ISO2; empty means US.
func NewEntry(zip, city, state, country string) Entry {
	if strings.TrimSpace(country) == "" {
		country = "US"
	}
	key := core.NewPlaceKey(city, state, country)
	return Entry{
		Zip:     strings.TrimSpace(zip),
		City:    key.City,
		State:   key.State,
		Country: key.Country,
	}
}

// Key returns the lookup key for the entry.
func (e Entry) Key() core.PlaceKey {
	return core.PlaceKey{City: e.City, State: e.State, Country: e.Country}
}

func (e Entry) valid() bool {
	return e.Zip != "" && e.City != "" && e.State != "" && e.Country != ""
}

// ErrBadReferenceHeader is returned when a reference file lacks the zip, city
// or state column.
var ErrBadReferenceHeader = errors.New("invalid csv: reference file needs zip, city and state columns")

// LoadStats summarizes a reference file read.
type LoadStats struct {
	Rows    int // data rows read
	Skipped int // rows missing zip, city or state, or with an unknown country
}

// ReadEntries reads a zip,city,state[,country] CSV. Column order is taken from
// the header; country names are resolved to ISO2.
func ReadEntries(r io.Reader) ([]Entry, LoadStats, error) {
	var stats LoadStats

	cr, err := csvio.NewReader(r)
	if err != nil {
		return nil, stats, err
	}
	header, err := cr.ReadHeader()
	if err != nil {
		return nil, stats, err
	}

	cols := map[string]int{}
	for i, h := range header {
		name := strings.ToLower(core.CleanCell(h))
		switch name {
		case "zipcode", "zip_code", "postal code", "postal_code":
			name = "zip"
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	for _, required := range []string{"zip", "city", "state"} {
		if _, ok := cols[required]; !ok {
			return nil, stats, ErrBadReferenceHeader
		}
	}

	countries := core.NewCountryNormalizer()
	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var entries []Entry
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("read reference row %d: %w", stats.Rows+2, err)
		}
		stats.Rows++

		country := cell(row, "country")
		if strings.TrimSpace(country) != "" {
			iso, ok := countries.Normalize(country)
			if !ok {
				stats.Skipped++
				continue
			}
			country = iso
		}

		e := NewEntry(cell(row, "zip"), cell(row, "city"), cell(row, "state"), country)
		if !e.valid() {
			stats.Skipped++
			continue
		}
		entries = append(entries, e)
	}

	return dedupe(entries), stats, nil
}

func dedupe(entries []Entry) []Entry {
	seen := make(map[Entry]struct{}, len(entries))
	out := entries[:0]
	for _, e := range entries {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}
