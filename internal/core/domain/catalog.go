package domain

import (
	"strconv"
	"strings"
)

// DefaultPremiereYear is assumed when a catalog row has no parsable premiere season.
const DefaultPremiereYear = 2024

// CatalogEntry is one row of the local anime catalog.
type CatalogEntry struct {
	Name        string
	EnglishName string
	Score       float64 // 0-10 community rating
	Rank        int
	Popularity  int
	Episodes    float64
	Genres      []string
	Themes      []string
	Rating      string
	Synopsis    string
	Premiered   string // e.g. "Spring 2013"
}

// PremiereYear parses the year out of Premiered, falling back to DefaultPremiereYear.
func (e CatalogEntry) PremiereYear() int {
	fields := strings.Fields(e.Premiered)
	if len(fields) < 2 {
		return DefaultPremiereYear
	}
	year, err := strconv.Atoi(fields[1])
	if err != nil || year == 0 {
		return DefaultPremiereYear
	}
	return year
}

// SearchTitle is the name used when looking the entry up in the metadata service.
func (e CatalogEntry) SearchTitle() string {
	if e.EnglishName != "" {
		return e.EnglishName
	}
	return e.Name
}

// ScoredCandidate is a catalog entry annotated with its match score for one request.
type ScoredCandidate struct {
	Entry        CatalogEntry
	MatchScore   float64
	MatchReasons []string
}
