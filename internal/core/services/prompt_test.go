package services

import (
	"strings"
	"testing"

	"github.com/ewilliams-labs/animeterminal/internal/core/domain"
)

func TestPromptBuilder_Build(t *testing.T) {
	tests := []struct {
		name        string
		prefs       domain.Preferences
		session     string
		contains    []string
		notContains []string
	}{
		{
			name:     "favorite only",
			prefs:    domain.Preferences{FavoriteAnime: "Attack on Titan"},
			contains: []string{`Reference anime: "Attack on Titan"`},
			notContains: []string{
				"Desired mood", "Preferred genres", "Exclude:", "Themes/elements", "Session context",
			},
		},
		{
			name: "every field",
			prefs: domain.Preferences{
				FavoriteAnime: "Mushishi",
				Vibe:          domain.VibeRelaxing,
				Genres:        []string{"Slice of Life", "Mystery"},
				Dealbreakers:  []domain.Dealbreaker{domain.DealbreakerViolence, domain.DealbreakerOld},
				Keywords:      "forest spirits",
			},
			session: "5f0c7a2e-0d4b-4a55-9a6f-1c2d3e4f5a6b",
			contains: []string{
				"Desired mood: Relaxing & Heartwarming",
				"Preferred genres: Slice of Life, Mystery",
				"Exclude: Avoid excessive violence/gore, Avoid older animation styles (prefer post-2010)",
				`Themes/elements: "forest spirits"`,
				"Session context: 3e4f5a6b (ensure variety from previous requests)",
			},
		},
		{
			name: "quotes and backslashes kept verbatim",
			prefs: domain.Preferences{
				FavoriteAnime: `Kaguya-sama "Ultra Romantic"`,
				Keywords:      `C:\path "x"`,
			},
			contains: []string{
				`Reference anime: "Kaguya-sama "Ultra Romantic"" (suggest`,
				`Themes/elements: "C:\path "x""`,
			},
			notContains: []string{`\"`, `\\`},
		},
		{
			name:        "unknown vibe passes through",
			prefs:       domain.Preferences{Vibe: "melancholic"},
			contains:    []string{"Desired mood: melancholic"},
			notContains: []string{"Reference anime"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			b := NewPromptBuilder(NewSeededRandom(1))
			got := b.Build(tt.prefs, tt.session)

			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Fatalf("prompt missing %q:\n%s", want, got)
				}
			}
			for _, unwanted := range tt.notContains {
				if strings.Contains(got, unwanted) {
					t.Fatalf("prompt should not contain %q:\n%s", unwanted, got)
				}
			}
			if !strings.HasSuffix(got, responseInstruction) {
				t.Fatalf("prompt should end with the response instruction:\n%s", got)
			}
			if !strings.Contains(got, "Diversity requirement: ") {
				t.Fatalf("prompt missing diversity requirement:\n%s", got)
			}
		})
	}
}

func TestPromptBuilder_DeterministicForSeed(t *testing.T) {
	prefs := domain.Preferences{Genres: []string{"Comedy"}}
	a := NewPromptBuilder(NewSeededRandom(42)).Build(prefs, "")
	b := NewPromptBuilder(NewSeededRandom(42)).Build(prefs, "")
	if a != b {
		t.Fatalf("expected identical prompts for identical seeds:\n%s\n---\n%s", a, b)
	}

	opening := strings.SplitN(a, "\n", 2)[0]
	found := false
	for _, p := range openingPhrases {
		if p == opening {
			found = true
		}
	}
	if !found {
		t.Fatalf("unexpected opening phrase %q", opening)
	}
}
