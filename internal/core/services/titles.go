package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/ewilliams-labs/animeterminal/internal/core/domain"
	"github.com/ewilliams-labs/animeterminal/internal/core/ports"
	"github.com/ewilliams-labs/animeterminal/internal/logging"
	"github.com/ewilliams-labs/animeterminal/internal/metrics"
)

const completionMaxTokens = 800

var (
	ErrEmptyReply     = errors.New("completion reply is empty")
	ErrMalformedReply = errors.New("completion reply is not a JSON array")
	ErrTooFewTitles   = errors.New("completion reply has too few usable titles")
)

// TitleGenerator asks the completion service for candidate titles.
type TitleGenerator struct {
	client  ports.CompletionClient
	prompts *PromptBuilder
	rand    Random
	policy  Policy

	sleep      func(ctx context.Context, d time.Duration) error
	newSession func() string
}

// NewTitleGenerator constructs a TitleGenerator.
func NewTitleGenerator(client ports.CompletionClient, r Random, policy Policy) *TitleGenerator {
	return &TitleGenerator{
		client:     client,
		prompts:    NewPromptBuilder(r),
		rand:       r,
		policy:     policy,
		sleep:      sleepWithContext,
		newSession: uuid.NewString,
	}
}

// Generate returns up to policy.MaxResults distinct titles. Every failure
// is retried with linear backoff; once the attempts run out the returned
// error wraps domain.ErrAIUnavailable.
func (g *TitleGenerator) Generate(ctx context.Context, prefs domain.Preferences) ([]string, error) {
	attempts := g.policy.MaxRetries + 1
	log := logging.Ctx(ctx)

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("title generator: %w", errors.Join(domain.ErrAIUnavailable, err))
		}

		titles, err := g.attempt(ctx, prefs)
		metrics.RecordCompletionAttempt(err == nil)
		if err == nil {
			log.Info().Int("attempt", attempt+1).Int("titles", len(titles)).Msg("title generator: titles received")
			return titles, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt+1).Int("max_attempts", attempts).Msg("title generator: attempt failed")

		if attempt == attempts-1 {
			break
		}
		delay := retryDelay(g.policy.RetryBackoff, attempt, err)
		if err := g.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("title generator: %w", errors.Join(domain.ErrAIUnavailable, err))
		}
	}

	return nil, fmt.Errorf("title generator: %d attempts failed: %w", attempts, errors.Join(domain.ErrAIUnavailable, lastErr))
}

func (g *TitleGenerator) attempt(ctx context.Context, prefs domain.Preferences) ([]string, error) {
	req := ports.CompletionRequest{
		Messages: []ports.ChatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: g.prompts.Build(prefs, g.newSession())},
		},
		MaxTokens: completionMaxTokens,
		Sampling: ports.Sampling{
			Temperature:      g.policy.Sampling.Temperature.draw(g.rand),
			TopP:             g.policy.Sampling.TopP.draw(g.rand),
			FrequencyPenalty: g.policy.Sampling.FrequencyPenalty.draw(g.rand),
			PresencePenalty:  g.policy.Sampling.PresencePenalty.draw(g.rand),
		},
	}

	reply, err := g.client.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	return ParseTitles(reply, g.policy.MaxResults, g.policy.MinTitles)
}

// ParseTitles extracts a title list from a model reply. The reply may be a bare
// JSON array or contain one somewhere in surrounding prose. Non-string and blank
// items are dropped, the rest trimmed and deduplicated, and the list cut to limit.
func ParseTitles(reply string, limit, minTitles int) ([]string, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil, ErrEmptyReply
	}

	var items []any
	if err := json.Unmarshal([]byte(reply), &items); err != nil {
		if items, err = embeddedArray(reply); err != nil {
			return nil, err
		}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty array", ErrMalformedReply)
	}

	titles := lo.Uniq(lo.FilterMap(items, func(item any, _ int) (string, bool) {
		s, ok := item.(string)
		if !ok {
			return "", false
		}
		s = strings.TrimSpace(s)
		return s, s != ""
	}))
	if limit > 0 && len(titles) > limit {
		titles = titles[:limit]
	}
	if len(titles) < minTitles {
		return nil, fmt.Errorf("%w: got %d, need %d", ErrTooFewTitles, len(titles), minTitles)
	}
	return titles, nil
}

// embeddedArray returns the first balanced JSON array in s that holds at
// least one string. Brackets inside string literals do not count.
func embeddedArray(s string) ([]any, error) {
	var lastErr error
	for start := strings.IndexByte(s, '['); start >= 0; {
		if end := closingBracket(s, start); end > 0 {
			var items []any
			err := json.Unmarshal([]byte(s[start:end+1]), &items)
			if err == nil && lo.SomeBy(items, isString) {
				return items, nil
			}
			lastErr = err
		}
		next := strings.IndexByte(s[start+1:], '[')
		if next < 0 {
			break
		}
		start += next + 1
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, lastErr)
	}
	return nil, ErrMalformedReply
}

// closingBracket returns the index of the bracket closing s[open], or -1.
func closingBracket(s string, open int) int {
	depth := 0
	inString, escaped := false, false
	for i := open; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '[':
			depth++
		case c == ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}
