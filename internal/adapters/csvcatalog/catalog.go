// Package csvcatalog reads the local anime catalog from a CSV export.
//
// The file must carry a header row. Recognised columns are name, english_name,
// score, rank, popularity, episodes, genres, themes, rating, synopsis and
// premiered; others are ignored. Genres and themes are comma-separated lists
// inside a single quoted field.
package csvcatalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ewilliams-labs/animeterminal/internal/core/domain"
	"github.com/ewilliams-labs/animeterminal/internal/core/ports"
	"github.com/ewilliams-labs/animeterminal/internal/logging"
)

// DefaultPath is used when no catalog path is configured.
const DefaultPath = "top_15000_anime.csv"

// unranked is stored for missing or unparsable rank and popularity values.
const unranked = 999999

var ErrNoHeader = errors.New("csv catalog: missing header row")

// Source loads the catalog from a file on every call. Callers cache.
type Source struct {
	path string
}

// compile-time interface assertion
var _ ports.CatalogSource = (*Source)(nil)

func NewSource(path string) *Source {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	return &Source{path: path}
}

// Path returns the file the source reads.
func (s *Source) Path() string {
	return s.path
}

func (s *Source) LoadCatalog(ctx context.Context) ([]domain.CatalogEntry, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("csv catalog: open %s: %w", s.path, err)
	}
	defer f.Close()

	entries, skipped, err := Parse(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("csv catalog: %s: %w", s.path, err)
	}

	logging.Ctx(ctx).Info().
		Str("path", s.path).
		Int("entries", len(entries)).
		Int("skipped", skipped).
		Msg("csv catalog: loaded")
	return entries, nil
}

// Parse reads catalog rows from r. Rows with fewer fields than the header
// are skipped and counted.
func Parse(ctx context.Context, r io.Reader) ([]domain.CatalogEntry, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	header, width, err := readHeader(reader)
	if err != nil {
		return nil, 0, err
	}

	var (
		entries []domain.CatalogEntry
		skipped int
	)
	for line := 2; ; line++ {
		if line%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("line %d: %w", line, err)
		}
		if len(row) < width {
			skipped++
			continue
		}

		entries = append(entries, toEntry(header, row))
	}
	return entries, skipped, nil
}

func toEntry(header map[string]int, row []string) domain.CatalogEntry {
	return domain.CatalogEntry{
		Name:        valueAt(header, row, "name"),
		EnglishName: valueAt(header, row, "english_name"),
		Score:       parseFloat(valueAt(header, row, "score")),
		Rank:        parseRank(valueAt(header, row, "rank")),
		Popularity:  parseRank(valueAt(header, row, "popularity")),
		Episodes:    parseFloat(valueAt(header, row, "episodes")),
		Genres:      splitList(valueAt(header, row, "genres")),
		Themes:      splitList(valueAt(header, row, "themes")),
		Rating:      valueAt(header, row, "rating"),
		Synopsis:    valueAt(header, row, "synopsis"),
		Premiered:   valueAt(header, row, "premiered"),
	}
}

func readHeader(r *csv.Reader) (map[string]int, int, error) {
	row, err := r.Read()
	if err == io.EOF {
		return nil, 0, ErrNoHeader
	}
	if err != nil {
		return nil, 0, err
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		header[strings.ToLower(strings.Trim(strings.TrimSpace(name), `"`))] = idx
	}
	if _, ok := header["name"]; !ok {
		return nil, 0, fmt.Errorf("%w: no name column", ErrNoHeader)
	}
	return header, len(row), nil
}

func valueAt(header map[string]int, row []string, key string) string {
	idx, ok := header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.Trim(strings.TrimSpace(row[idx]), `"`)
}

func parseFloat(raw string) float64 {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseRank(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n == 0 {
		return unranked
	}
	return n
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
