package csvcatalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const sampleCSV = `name,english_name,score,rank,popularity,episodes,genres,themes,rating,synopsis,premiered
Shingeki no Kyojin,Attack on Titan,8.54,110,1,25,"Action, Award Winning, Drama","Gore, Military, Survival",R - 17+ (violence & profanity),"Centuries ago, mankind was slaughtered by giants.",Spring 2013
Mushishi,,8.66,,n/a,26.0,"Adventure, Mystery, Slice of Life",Historical,PG-13 - Teens 13 or older,Ginko travels.,Fall 2005
Broken Row,only two fields
Yuru Camp△,Laid-Back Camp,8.27,318,542,12,Slice of Life,"CGDCT, Iyashikei",PG-13 - Teens 13 or older,Rin camps alone.,
`

func TestParse(t *testing.T) {
	entries, skipped, err := Parse(context.Background(), strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if skipped != 1 {
		t.Fatalf("skipped = %d, want 1", skipped)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	aot := entries[0]
	if aot.Name != "Shingeki no Kyojin" || aot.EnglishName != "Attack on Titan" {
		t.Fatalf("unexpected names: %+v", aot)
	}
	if aot.Score != 8.54 || aot.Rank != 110 || aot.Popularity != 1 || aot.Episodes != 25 {
		t.Fatalf("numeric fields not parsed: %+v", aot)
	}
	if !reflect.DeepEqual(aot.Genres, []string{"Action", "Award Winning", "Drama"}) {
		t.Fatalf("genres = %v", aot.Genres)
	}
	if !reflect.DeepEqual(aot.Themes, []string{"Gore", "Military", "Survival"}) {
		t.Fatalf("themes = %v", aot.Themes)
	}
	if aot.PremiereYear() != 2013 {
		t.Fatalf("premiere year = %d, want 2013", aot.PremiereYear())
	}

	mushishi := entries[1]
	if mushishi.Rank != unranked || mushishi.Popularity != unranked {
		t.Fatalf("missing rank/popularity should default to %d: %+v", unranked, mushishi)
	}
	if mushishi.Episodes != 26 || mushishi.SearchTitle() != "Mushishi" {
		t.Fatalf("unexpected entry: %+v", mushishi)
	}

	camp := entries[2]
	if camp.Premiered != "" || camp.PremiereYear() != 2024 {
		t.Fatalf("empty premiere should fall back to 2024: %+v", camp)
	}
}

func TestParse_HeaderErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "empty file", in: ""},
		{name: "no name column", in: "title,score\nMonster,8.9\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse(context.Background(), strings.NewReader(tt.in))
			if !errors.Is(err, ErrNoHeader) {
				t.Fatalf("expected ErrNoHeader, got %v", err)
			}
		})
	}
}

func TestSource_LoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	entries, err := NewSource(path).LoadCatalog(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	_, err = NewSource(filepath.Join(t.TempDir(), "missing.csv")).LoadCatalog(context.Background())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestNewSource_DefaultPath(t *testing.T) {
	if got := NewSource("  ").Path(); got != DefaultPath {
		t.Fatalf("Path() = %q, want %q", got, DefaultPath)
	}
}
