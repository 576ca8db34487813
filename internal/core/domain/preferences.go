package domain

import (
	"strings"

	"github.com/samber/lo"
)

// MaxGenres is the largest genre selection the quiz accepts.
const MaxGenres = 3

// Vibe is the coarse mood the user picked in the quiz.
type Vibe string

const (
	VibeEpic     Vibe = "epic"
	VibeRelaxing Vibe = "relaxing"
	VibeFunny    Vibe = "funny"
	VibeDark     Vibe = "dark"
)

// Dealbreaker is an exclusion criterion chosen by the user.
type Dealbreaker string

const (
	DealbreakerSlow     Dealbreaker = "slow"
	DealbreakerComplex  Dealbreaker = "complex"
	DealbreakerViolence Dealbreaker = "violence"
	DealbreakerOld      Dealbreaker = "old"
)

// Preferences holds the answers of one quiz submission.
// It is immutable input to a single recommendation request.
type Preferences struct {
	FavoriteAnime string
	Vibe          Vibe
	Genres        []string
	Dealbreakers  []Dealbreaker
	Keywords      string
}

// Normalize trims free-text fields and drops blank or repeated list entries.
func (p Preferences) Normalize() Preferences {
	genres := lo.Uniq(lo.FilterMap(p.Genres, func(g string, _ int) (string, bool) {
		g = strings.TrimSpace(g)
		return g, g != ""
	}))
	dealbreakers := lo.Uniq(lo.FilterMap(p.Dealbreakers, func(d Dealbreaker, _ int) (Dealbreaker, bool) {
		d = Dealbreaker(strings.ToLower(strings.TrimSpace(string(d))))
		return d, d != ""
	}))

	return Preferences{
		FavoriteAnime: strings.TrimSpace(p.FavoriteAnime),
		Vibe:          Vibe(strings.ToLower(strings.TrimSpace(string(p.Vibe)))),
		Genres:        genres,
		Dealbreakers:  dealbreakers,
		Keywords:      strings.TrimSpace(p.Keywords),
	}
}

// HasInput reports whether at least one preference field carries a value.
func (p Preferences) HasInput() bool {
	n := p.Normalize()
	return n.FavoriteAnime != "" ||
		n.Vibe != "" ||
		len(n.Genres) > 0 ||
		len(n.Dealbreakers) > 0 ||
		n.Keywords != ""
}

// HasDealbreaker reports whether d was selected.
func (p Preferences) HasDealbreaker(d Dealbreaker) bool {
	return lo.Contains(p.Dealbreakers, d)
}
