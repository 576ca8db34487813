package services

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/ewilliams-labs/animeterminal/internal/core/domain"
)

// SystemPrompt fixes the output format of the completion model.
const SystemPrompt = "You are an anime recommendation expert with extensive knowledge of both popular and obscure anime. " +
	"Always respond with ONLY a valid JSON array of exactly 15 diverse anime titles in English. " +
	"Prioritize variety and avoid repetitive suggestions. No explanations, just the JSON array."

const responseInstruction = `Respond with ONLY a valid JSON array of exactly 15 diverse anime titles in English. No explanations, just the array: ["Title 1", "Title 2", ...]`

var openingPhrases = []string{
	"Discover fresh anime recommendations based on these preferences:",
	"Find unique anime titles matching these criteria:",
	"Suggest diverse anime series based on the following:",
	"Recommend varied anime titles considering these preferences:",
	"Explore different anime options matching these requirements:",
}

var diversityInstructions = []string{
	"Include a mix of popular and hidden gems.",
	"Vary between different time periods and studios.",
	"Balance mainstream hits with lesser-known quality series.",
	"Mix different sub-genres and storytelling styles.",
	"Include both classic and modern recommendations.",
}

var vibeDescriptions = map[domain.Vibe]string{
	domain.VibeEpic:     "Epic & Intense: Fast-paced action, high stakes, thrilling moments",
	domain.VibeRelaxing: "Relaxing & Heartwarming: Cozy, low-stress stories about characters",
	domain.VibeFunny:    "Funny & Lighthearted: Comedy, parody, satirical content",
	domain.VibeDark:     "Dark & Thought-Provoking: Complex themes, psychological depth",
}

var dealbreakerDescriptions = map[domain.Dealbreaker]string{
	domain.DealbreakerSlow:     "Avoid slow pacing",
	domain.DealbreakerComplex:  "Avoid complex plots",
	domain.DealbreakerViolence: "Avoid excessive violence/gore",
	domain.DealbreakerOld:      "Avoid older animation styles (prefer post-2010)",
}

const sessionSuffixLen = 8

// PromptBuilder turns preferences into the user message for the completion model.
type PromptBuilder struct {
	rand Random
}

// NewPromptBuilder constructs a PromptBuilder drawing its variation from r.
func NewPromptBuilder(r Random) *PromptBuilder {
	return &PromptBuilder{rand: r}
}

// Build renders prefs as an instruction. Only supplied preferences are mentioned.
// A non-empty sessionToken adds a variation marker built from its last 8 characters.
func (b *PromptBuilder) Build(prefs domain.Preferences, sessionToken string) string {
	prefs = prefs.Normalize()

	var sb strings.Builder
	sb.WriteString(pick(b.rand, openingPhrases))
	sb.WriteString("\n\n")

	if prefs.FavoriteAnime != "" {
		fmt.Fprintf(&sb, "Reference anime: \"%s\" (suggest similar but different titles)\n", prefs.FavoriteAnime)
	}
	if prefs.Vibe != "" {
		desc, ok := vibeDescriptions[prefs.Vibe]
		if !ok {
			desc = string(prefs.Vibe)
		}
		fmt.Fprintf(&sb, "Desired mood: %s\n", desc)
	}
	if len(prefs.Genres) > 0 {
		fmt.Fprintf(&sb, "Preferred genres: %s\n", strings.Join(prefs.Genres, ", "))
	}
	if len(prefs.Dealbreakers) > 0 {
		avoid := lo.Map(prefs.Dealbreakers, func(d domain.Dealbreaker, _ int) string {
			if desc, ok := dealbreakerDescriptions[d]; ok {
				return desc
			}
			return string(d)
		})
		fmt.Fprintf(&sb, "Exclude: %s\n", strings.Join(avoid, ", "))
	}
	if prefs.Keywords != "" {
		fmt.Fprintf(&sb, "Themes/elements: \"%s\"\n", prefs.Keywords)
	}

	fmt.Fprintf(&sb, "\nDiversity requirement: %s\n", pick(b.rand, diversityInstructions))

	if sessionToken != "" {
		suffix := sessionToken
		if len(suffix) > sessionSuffixLen {
			suffix = suffix[len(suffix)-sessionSuffixLen:]
		}
		fmt.Fprintf(&sb, "Session context: %s (ensure variety from previous requests)\n", suffix)
	}

	sb.WriteString("\n")
	sb.WriteString(responseInstruction)
	return sb.String()
}
