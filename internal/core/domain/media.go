package domain

// FuzzyDate is a partially known calendar date as reported by the metadata service.
type FuzzyDate struct {
	Year  *int
	Month *int
	Day   *int
}

// MediaRecord is a catalog-verified anime entry. ID is the canonical key.
// Records are created per successful metadata lookup and never mutated afterwards.
type MediaRecord struct {
	ID               int
	TitleEnglish     string
	TitleRomaji      string
	TitleNative      string
	CoverImageLarge  string
	CoverImageMedium string
	AverageScore     *int // 0-100, nil when the service has no score
	Genres           []string
	SeasonYear       *int
	Episodes         *int
	Status           string
	Format           string
	Description      string
	StartDate        FuzzyDate
	Studios          []string
}

// HasScore reports whether the record carries an average score.
func (m MediaRecord) HasScore() bool {
	return m.AverageScore != nil
}

// Score returns the average score, treating a missing score as 0.
func (m MediaRecord) Score() int {
	if m.AverageScore == nil {
		return 0
	}
	return *m.AverageScore
}

// DisplayTitle prefers the English title, then the romanized one.
func (m MediaRecord) DisplayTitle() string {
	if m.TitleEnglish != "" {
		return m.TitleEnglish
	}
	return m.TitleRomaji
}
