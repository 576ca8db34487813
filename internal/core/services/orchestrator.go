package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/ewilliams-labs/animeterminal/internal/core/domain"
	"github.com/ewilliams-labs/animeterminal/internal/core/ports"
	"github.com/ewilliams-labs/animeterminal/internal/logging"
	"github.com/ewilliams-labs/animeterminal/internal/metrics"
)

// GeneratorMode selects where candidate titles come from.
type GeneratorMode string

const (
	GeneratorLLM     GeneratorMode = "llm"
	GeneratorCatalog GeneratorMode = "catalog"
)

const (
	msgInputRequired   = "At least one field must be filled out"
	msgNotConfigured   = "The AI service API key is not configured."
	msgAIUnavailable   = "Could not generate titles. Please try again later."
	msgMetadata        = "Could not retrieve anime details."
	msgCatalog         = "The anime database could not be loaded."
	msgNoMatches       = "No suitable anime found matching your preferences."
	msgAllFallbacksOut = "All recommendation services are temporarily unavailable. Please try again later."
)

// Options configures an Orchestrator. Zero values select the defaults.
type Options struct {
	Generator      GeneratorMode
	Policy         Policy
	LookupInterval time.Duration
	LookupTimeout  time.Duration
	Random         Random
}

// Orchestrator runs one recommendation request end to end.
type Orchestrator struct {
	mode       GeneratorMode
	policy     Policy
	completion ports.CompletionClient
	titles     *TitleGenerator
	fallback   *FallbackSelector
	scorer     *CatalogScorer
	enricher   *Enricher
}

// NewOrchestrator constructs an Orchestrator. catalog may be nil when the
// catalog generator is not used.
func NewOrchestrator(completion ports.CompletionClient, metadata ports.MetadataProvider, catalog ports.CatalogSource, opts Options) *Orchestrator {
	if opts.Generator == "" {
		opts.Generator = GeneratorLLM
	}
	if opts.Policy == (Policy{}) {
		opts.Policy = DefaultPolicy()
	}
	if opts.Random == nil {
		opts.Random = NewRandom()
	}

	o := &Orchestrator{
		mode:       opts.Generator,
		policy:     opts.Policy,
		completion: completion,
		fallback:   NewFallbackSelector(opts.Random),
		enricher:   NewEnricher(metadata, opts.LookupInterval, opts.LookupTimeout),
	}
	if completion != nil {
		o.titles = NewTitleGenerator(completion, opts.Random, opts.Policy)
	}
	if catalog != nil {
		o.scorer = NewCatalogScorer(catalog, opts.Policy.MaxResults)
	}
	return o
}

// Mode returns the configured generator.
func (o *Orchestrator) Mode() GeneratorMode {
	return o.mode
}

// CatalogLoaded reports whether the scoring catalog is cached in memory.
func (o *Orchestrator) CatalogLoaded() bool {
	return o.scorer != nil && o.scorer.Loaded()
}

// WarmCatalog loads the scoring catalog ahead of the first request.
func (o *Orchestrator) WarmCatalog(ctx context.Context) error {
	if o.scorer == nil {
		return nil
	}
	_, err := o.scorer.Catalog(ctx)
	return err
}

// Recommend validates prefs and returns at most policy.MaxResults records with
// unique IDs, ordered by average score. Failures are returned as *domain.Error.
func (o *Orchestrator) Recommend(ctx context.Context, prefs domain.Preferences) ([]domain.MediaRecord, error) {
	prefs = prefs.Normalize()
	if !prefs.HasInput() {
		return nil, domain.NewError(domain.KindInputRequired, msgInputRequired, domain.ErrInputRequired)
	}

	var (
		records []domain.MediaRecord
		err     error
	)
	switch o.mode {
	case GeneratorCatalog:
		records, err = o.fromCatalog(ctx, prefs)
	default:
		records, err = o.fromCompletion(ctx, prefs)
	}

	outcome := "ok"
	if err != nil {
		outcome = string(domain.KindOf(err))
	}
	metrics.RecordPipelineRun(string(o.mode), outcome)
	return records, err
}

func (o *Orchestrator) fromCompletion(ctx context.Context, prefs domain.Preferences) ([]domain.MediaRecord, error) {
	log := logging.Ctx(ctx)

	titles, err := o.candidateTitles(ctx, prefs)
	if err != nil {
		return nil, err
	}

	lookups := o.enricher.Session()
	records, err := o.enrichAndMerge(ctx, lookups, prefs, titles)
	if err == nil {
		log.Info().Int("count", len(records)).Msg("orchestrator: recommendations ready")
		return records, nil
	}
	if o.policy.OnExhaustion == ExhaustFail {
		return nil, domain.NewError(domain.KindMetadata, msgMetadata, err)
	}

	log.Warn().Err(err).Msg("orchestrator: primary path failed, running last-resort fallback")
	metrics.RecordFallback("last_resort")
	fresh := o.fallback.Select(prefs, o.policy.MaxResults)
	extra, lastErr := lookups.Enrich(ctx, fresh, o.policy.MinResolved)
	if lastErr != nil {
		return nil, domain.NewError(domain.KindSystem, msgAllFallbacksOut, errors.Join(domain.ErrAllFallbacksFailed, err, lastErr))
	}
	return Merge(extra, o.policy.FilterUnscored, o.policy.MaxResults), nil
}

// candidateTitles asks the completion service for titles, switching to the
// static pool when it is unconfigured or exhausted under the fallback policy.
func (o *Orchestrator) candidateTitles(ctx context.Context, prefs domain.Preferences) ([]string, error) {
	log := logging.Ctx(ctx)
	failFast := o.policy.OnExhaustion == ExhaustFail

	if o.titles == nil || !o.completion.Configured() {
		if failFast {
			return nil, domain.NewError(domain.KindConfiguration, msgNotConfigured, domain.ErrNotConfigured)
		}
		log.Warn().Msg("orchestrator: completion service not configured, using fallback titles")
		metrics.RecordFallback("unconfigured")
		return o.fallback.Select(prefs, o.policy.MaxResults), nil
	}

	titles, err := o.titles.Generate(ctx, prefs)
	if err == nil {
		return titles, nil
	}
	if failFast {
		return nil, domain.NewError(domain.KindAIConnection, msgAIUnavailable, err)
	}
	log.Warn().Err(err).Msg("orchestrator: title generation exhausted, using fallback titles")
	metrics.RecordFallback("generation")
	return o.fallback.Select(prefs, o.policy.MaxResults), nil
}

// enrichAndMerge resolves titles and merges them, topping up with a
// supplementary fallback round when too few records survive.
func (o *Orchestrator) enrichAndMerge(ctx context.Context, lookups *Session, prefs domain.Preferences, titles []string) ([]domain.MediaRecord, error) {
	records, err := lookups.Enrich(ctx, titles, o.policy.MinResolved)
	if err != nil {
		return nil, err
	}
	merged := Merge(records, o.policy.FilterUnscored, o.policy.MaxResults)
	if len(merged) >= o.policy.SupplementThreshold {
		return merged, nil
	}

	logging.Ctx(ctx).Info().Int("count", len(merged)).Msg("orchestrator: too few results, running supplementary round")
	metrics.RecordFallback("supplement")
	extra, err := lookups.Enrich(ctx, o.fallback.Select(prefs, o.policy.SupplementCount), o.policy.MinResolved)
	if err != nil {
		return nil, fmt.Errorf("supplementary round: %w", err)
	}
	return Merge(append(merged, extra...), o.policy.FilterUnscored, o.policy.MaxResults), nil
}

func (o *Orchestrator) fromCatalog(ctx context.Context, prefs domain.Preferences) ([]domain.MediaRecord, error) {
	if o.scorer == nil {
		return nil, domain.NewError(domain.KindDatabase, msgCatalog, domain.ErrCatalogUnavailable)
	}

	candidates, err := o.scorer.Recommend(ctx, prefs)
	if err != nil {
		return nil, domain.NewError(domain.KindDatabase, msgCatalog, err)
	}
	if len(candidates) == 0 {
		return nil, domain.NewError(domain.KindNoMatches, msgNoMatches, domain.ErrNoMatches)
	}

	log := logging.Ctx(ctx)
	for i, c := range candidates {
		log.Debug().
			Int("rank", i+1).
			Str("title", c.Entry.SearchTitle()).
			Float64("match_score", c.MatchScore).
			Strs("reasons", c.MatchReasons).
			Msg("orchestrator: catalog candidate")
	}

	titles := lo.Map(candidates, func(c domain.ScoredCandidate, _ int) string {
		return c.Entry.SearchTitle()
	})
	records, err := o.enricher.Enrich(ctx, titles, o.policy.CatalogMinResolved)
	if err != nil {
		return nil, domain.NewError(domain.KindMetadata, msgMetadata, err)
	}
	return Merge(records, false, o.policy.MaxResults), nil
}
