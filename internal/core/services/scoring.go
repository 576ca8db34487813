package services

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"

	"github.com/ewilliams-labs/animeterminal/internal/core/domain"
	"github.com/ewilliams-labs/animeterminal/internal/core/ports"
	"github.com/ewilliams-labs/animeterminal/internal/logging"
)

const (
	favoriteMatchWeight = 40.0
	favoriteGenreWeight = 5.0
	vibeWeight          = 25.0
	genreWeight         = 20.0
	keywordWeight       = 10.0
	qualityWeight       = 5.0

	minMatchScore = 5.0
	// scores closer than this are ordered by catalog score instead
	scoreTieWindow = 2.0
	oldCutoffYear  = 2010
)

type vibeProfile struct {
	genres   []string
	themes   []string
	keywords []string
}

var vibeProfiles = map[domain.Vibe]vibeProfile{
	domain.VibeEpic: {
		genres:   []string{"Action", "Adventure", "Fantasy", "Supernatural"},
		themes:   []string{"Military", "Super Power", "Magic"},
		keywords: []string{"battle", "war", "power", "epic", "hero", "fight"},
	},
	domain.VibeRelaxing: {
		genres:   []string{"Slice of Life", "Comedy", "Romance"},
		themes:   []string{"School", "Iyashikei", "CGDCT"},
		keywords: []string{"peaceful", "calm", "daily", "life", "friendship", "cozy"},
	},
	domain.VibeFunny: {
		genres:   []string{"Comedy", "Gag Humor"},
		themes:   []string{"Parody", "Slapstick"},
		keywords: []string{"funny", "comedy", "laugh", "humor", "joke", "silly"},
	},
	domain.VibeDark: {
		genres:   []string{"Thriller", "Horror", "Psychological"},
		themes:   []string{"Gore", "Psychological"},
		keywords: []string{"dark", "death", "psychological", "mystery", "thriller"},
	},
}

var keywordSeparators = regexp.MustCompile(`[,\s]+`)

// CatalogScorer ranks the local catalog against preferences. The catalog is
// loaded on first use and shared read-only by every later request.
type CatalogScorer struct {
	source ports.CatalogSource
	limit  int

	mu      sync.Mutex
	entries atomic.Pointer[[]domain.CatalogEntry]
}

// NewCatalogScorer constructs a CatalogScorer returning at most limit candidates.
func NewCatalogScorer(source ports.CatalogSource, limit int) *CatalogScorer {
	if limit <= 0 {
		limit = domain.MaxResults
	}
	return &CatalogScorer{source: source, limit: limit}
}

// Loaded reports whether the catalog is already cached.
func (s *CatalogScorer) Loaded() bool {
	return s.entries.Load() != nil
}

// Catalog returns the cached catalog, loading it if needed. Concurrent first
// callers wait for a single load; a failed load is retried by the next call.
func (s *CatalogScorer) Catalog(ctx context.Context) ([]domain.CatalogEntry, error) {
	if p := s.entries.Load(); p != nil {
		return *p, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.entries.Load(); p != nil {
		return *p, nil
	}

	entries, err := s.source.LoadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog scorer: %w: %w", domain.ErrCatalogUnavailable, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog scorer: %w: catalog is empty", domain.ErrCatalogUnavailable)
	}
	s.entries.Store(&entries)
	logging.Ctx(ctx).Info().Int("entries", len(entries)).Msg("catalog scorer: catalog loaded")
	return entries, nil
}

// Recommend scores the whole catalog and returns the best candidates, each with
// a match score above the minimum.
func (s *CatalogScorer) Recommend(ctx context.Context, prefs domain.Preferences) ([]domain.ScoredCandidate, error) {
	catalog, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return Rank(catalog, prefs, s.limit), nil
}

// Rank scores every entry of catalog and returns the top limit candidates.
func Rank(catalog []domain.CatalogEntry, prefs domain.Preferences, limit int) []domain.ScoredCandidate {
	prefs = prefs.Normalize()
	favoriteGenres := favoriteGenres(catalog, prefs.FavoriteAnime)

	scored := lo.FilterMap(catalog, func(e domain.CatalogEntry, _ int) (domain.ScoredCandidate, bool) {
		c := ScoreEntry(e, prefs, favoriteGenres)
		return c, c.MatchScore > minMatchScore
	})

	slices.SortStableFunc(scored, func(a, b domain.ScoredCandidate) int {
		if math.Abs(a.MatchScore-b.MatchScore) > scoreTieWindow {
			return compareDesc(a.MatchScore, b.MatchScore)
		}
		return compareDesc(a.Entry.Score, b.Entry.Score)
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// ScoreEntry computes the match score of one entry. favoriteGenres are the genres
// of the catalog entry matching the user's favorite, if any.
func ScoreEntry(e domain.CatalogEntry, prefs domain.Preferences, favoriteGenres []string) domain.ScoredCandidate {
	var score float64
	var reasons []string

	if prefs.FavoriteAnime != "" {
		if containsFold(e.Name, prefs.FavoriteAnime) || containsFold(e.EnglishName, prefs.FavoriteAnime) {
			score += favoriteMatchWeight
			reasons = append(reasons, "Similar to favorite")
		}
		shared := lo.CountBy(e.Genres, func(g string) bool { return lo.Contains(favoriteGenres, g) })
		score += float64(shared) * favoriteGenreWeight
	}

	if prefs.Vibe != "" {
		v := vibeScore(e, prefs.Vibe)
		score += v * vibeWeight
		if v > 0.5 {
			reasons = append(reasons, fmt.Sprintf("Matches %s vibe", prefs.Vibe))
		}
	}

	if len(prefs.Genres) > 0 {
		matches := lo.CountBy(e.Genres, func(g string) bool {
			return lo.SomeBy(prefs.Genres, func(want string) bool { return containsFold(g, want) })
		})
		score += float64(matches) / float64(len(prefs.Genres)) * genreWeight
		if matches > 0 {
			reasons = append(reasons, fmt.Sprintf("%d/%d genres match", matches, len(prefs.Genres)))
		}
	}

	if prefs.Keywords != "" {
		k := keywordScore(e, prefs.Keywords)
		score += k * keywordWeight
		if k > 0.3 {
			reasons = append(reasons, "Theme match")
		}
	}

	score += math.Min(e.Score/10, 1) * qualityWeight

	if penalty := dealbreakerPenalty(e, prefs.Dealbreakers); penalty > 0 {
		score -= float64(penalty)
		reasons = append(reasons, fmt.Sprintf("Dealbreaker penalty: -%d", penalty))
	}

	return domain.ScoredCandidate{
		Entry:        e,
		MatchScore:   math.Max(0, score),
		MatchReasons: reasons,
	}
}

func favoriteGenres(catalog []domain.CatalogEntry, favorite string) []string {
	if favorite == "" {
		return nil
	}
	match, ok := lo.Find(catalog, func(e domain.CatalogEntry) bool {
		return containsFold(e.Name, favorite) || containsFold(e.EnglishName, favorite)
	})
	if !ok {
		return nil
	}
	return match.Genres
}

func vibeScore(e domain.CatalogEntry, vibe domain.Vibe) float64 {
	profile, ok := vibeProfiles[vibe]
	if !ok {
		return 0
	}

	hasAny := func(values, wanted []string) int {
		return lo.CountBy(values, func(v string) bool {
			return lo.SomeBy(wanted, func(w string) bool { return strings.Contains(v, w) })
		})
	}
	synopsis := strings.ToLower(e.Synopsis)
	keywordHits := lo.CountBy(profile.keywords, func(k string) bool { return strings.Contains(synopsis, k) })

	score := 0.3*float64(hasAny(e.Genres, profile.genres)) +
		0.2*float64(hasAny(e.Themes, profile.themes)) +
		0.1*float64(keywordHits)
	return math.Min(score, 1)
}

func keywordScore(e domain.CatalogEntry, keywords string) float64 {
	tokens := lo.Filter(keywordSeparators.Split(strings.ToLower(keywords), -1), func(k string, _ int) bool {
		return len(k) > 2
	})
	if len(tokens) == 0 {
		return 0
	}

	synopsis := strings.ToLower(e.Synopsis)
	title := strings.ToLower(e.Name + " " + e.EnglishName)
	matches := lo.CountBy(tokens, func(k string) bool {
		return strings.Contains(synopsis, k) || strings.Contains(title, k)
	})
	return math.Min(float64(matches)/float64(len(tokens)), 1)
}

func dealbreakerPenalty(e domain.CatalogEntry, dealbreakers []domain.Dealbreaker) int {
	penalty := 0
	for _, d := range dealbreakers {
		switch d {
		case domain.DealbreakerSlow:
			if lo.Contains(e.Genres, "Slice of Life") && !lo.Contains(e.Genres, "Action") {
				penalty += 10
			}
		case domain.DealbreakerViolence:
			if lo.Contains(e.Themes, "Gore") || strings.Contains(e.Rating, "R+") {
				penalty += 15
			}
		case domain.DealbreakerComplex:
			if lo.Contains(e.Genres, "Psychological") || strings.Contains(strings.ToLower(e.Synopsis), "complex") {
				penalty += 8
			}
		case domain.DealbreakerOld:
			if e.PremiereYear() < oldCutoffYear {
				penalty += 12
			}
		}
	}
	return penalty
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func compareDesc(a, b float64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	default:
		return 0
	}
}
