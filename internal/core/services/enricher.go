package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ewilliams-labs/animeterminal/internal/core/domain"
	"github.com/ewilliams-labs/animeterminal/internal/core/ports"
	"github.com/ewilliams-labs/animeterminal/internal/logging"
	"github.com/ewilliams-labs/animeterminal/internal/metrics"
)

const (
	DefaultLookupInterval = 100 * time.Millisecond
	DefaultLookupTimeout  = 10 * time.Second
)

// Enricher resolves candidate titles to media records one lookup at a time.
type Enricher struct {
	provider ports.MetadataProvider
	interval time.Duration
	timeout  time.Duration
}

// NewEnricher constructs an Enricher. Zero durations select the defaults.
func NewEnricher(provider ports.MetadataProvider, interval, timeout time.Duration) *Enricher {
	if interval <= 0 {
		interval = DefaultLookupInterval
	}
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &Enricher{provider: provider, interval: interval, timeout: timeout}
}

// Session returns a pacing session for one request. Every lookup of the
// session, across all of its Enrich calls, starts at least the interval after
// the previous lookup finished. A Session is not safe for concurrent use.
func (e *Enricher) Session() *Session {
	return &Session{enricher: e}
}

// Enrich runs a single batch in a fresh session.
func (e *Enricher) Enrich(ctx context.Context, titles []string, minResolved int) ([]domain.MediaRecord, error) {
	return e.Session().Enrich(ctx, titles, minResolved)
}

// Session spaces the metadata lookups of one request.
type Session struct {
	enricher *Enricher
	lastDone time.Time
}

// Enrich looks up every title in order. Failed lookups are skipped. Fewer than
// minResolved records yields an error wrapping domain.ErrInsufficientMetadata.
func (s *Session) Enrich(ctx context.Context, titles []string, minResolved int) ([]domain.MediaRecord, error) {
	log := logging.Ctx(ctx)

	records := make([]domain.MediaRecord, 0, len(titles))
	var failed []string
	for i, title := range titles {
		if err := s.pace(ctx); err != nil {
			log.Warn().Err(err).Int("remaining", len(titles)-i).Msg("enricher: stopped before all lookups ran")
			failed = append(failed, titles[i:]...)
			break
		}

		rec, err := s.enricher.lookup(ctx, title)
		s.lastDone = time.Now()
		metrics.RecordMetadataLookup(err == nil)
		if err != nil {
			log.Warn().Err(err).Str("title", title).Msg("enricher: lookup failed")
			failed = append(failed, title)
			continue
		}
		records = append(records, rec)
	}

	log.Info().
		Int("resolved", len(records)).
		Strs("failed", failed).
		Msg("enricher: lookups finished")

	if len(records) < minResolved {
		return records, fmt.Errorf("enricher: %w: resolved %d of %d, need %d",
			domain.ErrInsufficientMetadata, len(records), len(titles), minResolved)
	}
	return records, nil
}

// pace waits out the rest of the interval since the previous lookup finished.
func (s *Session) pace(ctx context.Context) error {
	if s.lastDone.IsZero() {
		return ctx.Err()
	}
	return sleepWithContext(ctx, s.enricher.interval-time.Since(s.lastDone))
}

func (e *Enricher) lookup(ctx context.Context, title string) (domain.MediaRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	rec, err := e.provider.SearchByTitle(ctx, title)
	if err != nil {
		return domain.MediaRecord{}, err
	}
	if rec.TitleEnglish == "" {
		rec.TitleEnglish = rec.TitleRomaji
	}
	if rec.TitleEnglish == "" {
		rec.TitleEnglish = title
	}
	return rec, nil
}
