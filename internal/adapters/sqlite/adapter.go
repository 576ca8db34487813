// Package sqlite stores the anime catalog in SQLite so the scoring path can
// start without re-parsing the CSV export.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously

	"github.com/ewilliams-labs/animeterminal/internal/core/domain"
	"github.com/ewilliams-labs/animeterminal/internal/core/ports"
)

const (
	catalogTable = "catalog"
	// importBatch keeps multi-row inserts under SQLite's bound-variable limit.
	importBatch = 50
)

const upsertSuffix = `ON CONFLICT(name) DO UPDATE SET
	english_name=excluded.english_name,
	score=excluded.score,
	rank=excluded.rank,
	popularity=excluded.popularity,
	episodes=excluded.episodes,
	genres=excluded.genres,
	themes=excluded.themes,
	rating=excluded.rating,
	synopsis=excluded.synopsis,
	premiered=excluded.premiered`

var catalogColumns = []string{
	"name", "english_name", "score", "rank", "popularity", "episodes",
	"genres", "themes", "rating", "synopsis", "premiered",
}

// Adapter implements ports.CatalogSource on top of SQLite.
type Adapter struct {
	db *sql.DB
}

// compile-time interface assertion
var _ ports.CatalogSource = (*Adapter)(nil)

// NewAdapter opens the database and runs the schema migration.
func NewAdapter(storagePath string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// :memory: databases are per-connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	adapter := &Adapter{db: db}
	if err := adapter.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return adapter, nil
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	return a.db.Close()
}

// Import upserts entries keyed by name inside one transaction and returns
// the number of rows written.
func (a *Adapter) Import(ctx context.Context, entries []domain.CatalogEntry) (int, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	written := 0
	for start := 0; start < len(entries); start += importBatch {
		end := min(start+importBatch, len(entries))

		insert := sq.Insert(catalogTable).Columns(catalogColumns...)
		rows := 0
		for _, e := range entries[start:end] {
			if e.Name == "" {
				continue
			}
			genres, err := json.Marshal(e.Genres)
			if err != nil {
				return 0, fmt.Errorf("failed to encode genres for %s: %w", e.Name, err)
			}
			themes, err := json.Marshal(e.Themes)
			if err != nil {
				return 0, fmt.Errorf("failed to encode themes for %s: %w", e.Name, err)
			}
			insert = insert.Values(
				e.Name, e.EnglishName, e.Score, e.Rank, e.Popularity, e.Episodes,
				string(genres), string(themes), e.Rating, e.Synopsis, e.Premiered,
			)
			rows++
		}
		if rows == 0 {
			continue
		}

		query, args, err := insert.Suffix(upsertSuffix).ToSql()
		if err != nil {
			return 0, fmt.Errorf("failed to build catalog insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("failed to import catalog rows %d-%d: %w", start, end-1, err)
		}
		written += rows
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("transaction commit failed: %w", err)
	}
	return written, nil
}

// LoadCatalog returns every stored entry in import order.
func (a *Adapter) LoadCatalog(ctx context.Context) ([]domain.CatalogEntry, error) {
	query, args, err := sq.Select(catalogColumns...).From(catalogTable).OrderBy("id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog query: %w", err)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	defer rows.Close()

	var entries []domain.CatalogEntry
	for rows.Next() {
		var (
			e              domain.CatalogEntry
			english        sql.NullString
			rating         sql.NullString
			synopsis       sql.NullString
			premiered      sql.NullString
			genres, themes string
		)
		if err := rows.Scan(
			&e.Name,
			&english,
			&e.Score,
			&e.Rank,
			&e.Popularity,
			&e.Episodes,
			&genres,
			&themes,
			&rating,
			&synopsis,
			&premiered,
		); err != nil {
			return nil, fmt.Errorf("failed to scan catalog row: %w", err)
		}
		e.EnglishName = english.String
		e.Rating = rating.String
		e.Synopsis = synopsis.String
		e.Premiered = premiered.String
		if err := decodeList(genres, &e.Genres); err != nil {
			return nil, fmt.Errorf("failed to decode genres for %s: %w", e.Name, err)
		}
		if err := decodeList(themes, &e.Themes); err != nil {
			return nil, fmt.Errorf("failed to decode themes for %s: %w", e.Name, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate catalog rows: %w", err)
	}

	return entries, nil
}

// Count returns the number of stored entries.
func (a *Adapter) Count(ctx context.Context) (int, error) {
	query, args, err := sq.Select("COUNT(*)").From(catalogTable).ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := a.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count catalog rows: %w", err)
	}
	return n, nil
}

func decodeList(raw string, out *[]string) error {
	if raw == "" || raw == "null" {
		*out = nil
		return nil
	}
	return json.Unmarshal([]byte(raw), out)
}

func (a *Adapter) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS catalog (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		english_name TEXT,
		score REAL NOT NULL DEFAULT 0,
		rank INTEGER NOT NULL DEFAULT 999999,
		popularity INTEGER NOT NULL DEFAULT 999999,
		episodes REAL NOT NULL DEFAULT 0,
		genres TEXT NOT NULL DEFAULT '[]',
		themes TEXT NOT NULL DEFAULT '[]',
		rating TEXT,
		synopsis TEXT,
		premiered TEXT,
		imported_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_catalog_popularity ON catalog (popularity);
	`
	_, err := a.db.Exec(query)
	return err
}
