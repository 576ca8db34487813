package services

import (
	"math"
	"strings"

	"github.com/samber/lo"

	"github.com/ewilliams-labs/animeterminal/internal/core/domain"
)

// preferredShare is the part of a fallback list drawn from preferred categories.
const preferredShare = 0.7

// Category is a named pool of representative fallback titles.
type Category struct {
	Name   string
	Titles []string
}

// DefaultCategories returns the built-in fallback pool.
func DefaultCategories() []Category {
	return []Category{
		{Name: "popular", Titles: []string{"Attack on Titan", "Death Note", "My Hero Academia", "Demon Slayer", "Jujutsu Kaisen"}},
		{Name: "classics", Titles: []string{"Cowboy Bebop", "Neon Genesis Evangelion", "Akira", "Ghost in the Shell", "Princess Mononoke"}},
		{Name: "hidden_gems", Titles: []string{"Monster", "Steins;Gate", "Parasyte", "Made in Abyss", "Vinland Saga"}},
		{Name: "comedy", Titles: []string{"One Punch Man", "Mob Psycho 100", "Konosuba", "Gintama", "The Devil is a Part-Timer"}},
		{Name: "romance", Titles: []string{"Your Name", "A Silent Voice", "Weathering with You", "Toradora!", "Kaguya-sama"}},
		{Name: "action", Titles: []string{"Fullmetal Alchemist: Brotherhood", "Hunter x Hunter", "Chainsaw Man", "Black Clover", "Fire Force"}},
		{Name: "slice_of_life", Titles: []string{"March Comes in Like a Lion", "Violet Evergarden", "Barakamon", "Silver Spoon", "Mushishi"}},
		{Name: "thriller", Titles: []string{"Tokyo Ghoul", "Psycho-Pass", "Another", "Erased", "Future Diary"}},
	}
}

var vibeCategories = map[domain.Vibe][]string{
	domain.VibeEpic:     {"action", "popular"},
	domain.VibeRelaxing: {"slice_of_life", "romance"},
	domain.VibeFunny:    {"comedy"},
	domain.VibeDark:     {"thriller", "hidden_gems"},
}

// keyed by lowercase genre
var genreCategories = map[string][]string{
	"action":        {"action"},
	"adventure":     {"action", "popular"},
	"comedy":        {"comedy"},
	"drama":         {"hidden_gems", "romance"},
	"fantasy":       {"popular", "hidden_gems"},
	"horror":        {"thriller"},
	"mecha":         {"classics"},
	"mystery":       {"thriller"},
	"psychological": {"thriller"},
	"romance":       {"romance"},
	"sci-fi":        {"classics", "hidden_gems"},
	"slice of life": {"slice_of_life"},
	"sports":        {"popular"},
	"supernatural":  {"thriller", "popular"},
	"suspense":      {"thriller"},
	"thriller":      {"thriller"},
	"award winning": {"classics"},
	"gourmet":       {"slice_of_life"},
	"avant garde":   {"classics"},
	"boys love":     {"romance"},
	"girls love":    {"romance"},
	"ecchi":         {"comedy"},
}

var excludedFor = map[domain.Dealbreaker][]string{
	domain.DealbreakerViolence: {"Tokyo Ghoul", "Another", "Future Diary", "Chainsaw Man", "Parasyte", "Attack on Titan"},
	domain.DealbreakerOld:      {"Cowboy Bebop", "Neon Genesis Evangelion", "Akira", "Ghost in the Shell", "Princess Mononoke", "Monster", "Mushishi", "Death Note"},
}

// FallbackSelector picks titles from a static pool without any external call.
type FallbackSelector struct {
	categories []Category
	rand       Random
}

// NewFallbackSelector constructs a selector over categories, or the default pool when none are given.
func NewFallbackSelector(r Random, categories ...Category) *FallbackSelector {
	if len(categories) == 0 {
		categories = DefaultCategories()
	}
	return &FallbackSelector{categories: categories, rand: r}
}

// Select returns up to n distinct titles. Vibe and genre preferences weight the
// draw toward matching categories; violence and old dealbreakers remove titles
// from the pool first.
func (s *FallbackSelector) Select(prefs domain.Preferences, n int) []string {
	if n <= 0 {
		return nil
	}
	prefs = prefs.Normalize()

	pools := make(map[string][]string, len(s.categories))
	names := make([]string, 0, len(s.categories))
	for _, c := range s.categories {
		titles := lo.Reject(c.Titles, func(t string, _ int) bool {
			return isExcluded(prefs, t)
		})
		if len(titles) == 0 {
			continue
		}
		pools[c.Name] = shuffled(s.rand, titles)
		names = append(names, c.Name)
	}

	var picked []string
	if preferred := preferredCategories(prefs, pools); len(preferred) > 0 {
		picked = s.weighted(pools, names, preferred, n)
		if len(picked)*2 < n {
			picked = nil
		}
	}
	if picked == nil {
		picked = roundRobin(pools, names, n)
	}

	out := shuffled(s.rand, lo.Uniq(picked))
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func (s *FallbackSelector) weighted(pools map[string][]string, names, preferred []string, n int) []string {
	target := int(math.Round(float64(n) * preferredShare))
	picked := roundRobin(pools, preferred, target)

	others := lo.Without(names, preferred...)
	return append(picked, roundRobin(pools, others, n-len(picked))...)
}

// roundRobin takes one title per category per pass, so quotas stay even and a
// short category hands its share to the others.
func roundRobin(pools map[string][]string, names []string, n int) []string {
	out := make([]string, 0, max(n, 0))
	next := make([]int, len(names))
	for len(out) < n {
		progressed := false
		for i, name := range names {
			if len(out) == n {
				break
			}
			if next[i] < len(pools[name]) {
				out = append(out, pools[name][next[i]])
				next[i]++
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return out
}

func preferredCategories(prefs domain.Preferences, pools map[string][]string) []string {
	var names []string
	names = append(names, vibeCategories[prefs.Vibe]...)
	for _, g := range prefs.Genres {
		names = append(names, genreCategories[strings.ToLower(g)]...)
	}
	return lo.Filter(lo.Uniq(names), func(name string, _ int) bool {
		_, ok := pools[name]
		return ok
	})
}

func isExcluded(prefs domain.Preferences, title string) bool {
	for d, blocked := range excludedFor {
		if prefs.HasDealbreaker(d) && lo.Contains(blocked, title) {
			return true
		}
	}
	return false
}
