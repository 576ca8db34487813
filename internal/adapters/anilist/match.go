package anilist

import (
	"strings"
	"unicode"

	"github.com/ewilliams-labs/animeterminal/internal/core/domain"
)

// minTitleSimilarity is the score below which a resolved title is logged
// as a suspicious match. The record is still returned.
const minTitleSimilarity = 0.5

var noiseTokens = map[string]struct{}{
	"season": {},
	"the":    {},
	"tv":     {},
	"movie":  {},
	"part":   {},
	"cour":   {},
}

// titleMatchScore compares the searched title with every title variant of
// the record and returns the best similarity in [0, 1].
func titleMatchScore(query string, record domain.MediaRecord) float64 {
	q := normalizeTitle(query)
	if q == "" {
		return 0
	}

	best := 0.0
	for _, candidate := range []string{record.TitleEnglish, record.TitleRomaji, record.TitleNative} {
		c := normalizeTitle(candidate)
		if c == "" {
			continue
		}
		if s := similarity(q, c); s > best {
			best = s
		}
	}
	return best
}

func normalizeTitle(input string) string {
	if input == "" {
		return ""
	}

	tokens := strings.Fields(cleanSeparators(stripBracketedSegments(strings.ToLower(input))))
	kept := tokens[:0]
	for _, token := range tokens {
		if _, drop := noiseTokens[token]; drop {
			continue
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, " ")
}

func stripBracketedSegments(input string) string {
	var out strings.Builder
	depth := 0
	for _, r := range input {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				out.WriteRune(r)
			}
		}
	}
	return out.String()
}

// cleanSeparators collapses punctuation runs into single spaces.
func cleanSeparators(input string) string {
	var out strings.Builder
	space := false
	for _, r := range input {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			out.WriteRune(r)
			space = false
			continue
		}
		if !space {
			out.WriteRune(' ')
			space = true
		}
	}
	return out.String()
}

func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(longest)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
