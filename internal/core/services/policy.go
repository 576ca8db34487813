package services

import (
	"fmt"
	"time"
)

// ExhaustionPolicy decides what happens once title generation runs out of attempts.
type ExhaustionPolicy string

const (
	ExhaustFallback ExhaustionPolicy = "fallback"
	ExhaustFail     ExhaustionPolicy = "fail"
)

// Band is an inclusive range a sampling knob is drawn from.
type Band struct {
	Min float64
	Max float64
}

func (b Band) draw(r Random) float64 {
	if b.Max <= b.Min {
		return b.Min
	}
	return b.Min + r.Float64()*(b.Max-b.Min)
}

// SamplingBands holds the jitter range of every sampling knob.
type SamplingBands struct {
	Temperature      Band
	TopP             Band
	FrequencyPenalty Band
	PresencePenalty  Band
}

// Policy collects the tunables of the recommendation pipeline.
type Policy struct {
	MaxRetries   int
	RetryBackoff time.Duration
	Sampling     SamplingBands
	OnExhaustion ExhaustionPolicy
	// FilterUnscored drops records without an average score on the LLM path.
	FilterUnscored bool

	MaxResults          int
	MinTitles           int
	MinResolved         int
	SupplementThreshold int
	SupplementCount     int
	// CatalogMinResolved is the enrichment threshold of the catalog generator.
	// Scoring has already filtered for quality, so it is lower than MinResolved.
	CatalogMinResolved int
}

// DefaultPolicy returns the canonical pipeline settings.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		RetryBackoff: 2 * time.Second,
		Sampling: SamplingBands{
			Temperature:      Band{Min: 0.8, Max: 1.0},
			TopP:             Band{Min: 0.85, Max: 0.95},
			FrequencyPenalty: Band{Min: 0.3, Max: 0.6},
			PresencePenalty:  Band{Min: 0.2, Max: 0.4},
		},
		OnExhaustion:        ExhaustFallback,
		FilterUnscored:      true,
		MaxResults:          15,
		MinTitles:           5,
		MinResolved:         5,
		SupplementThreshold: 3,
		SupplementCount:     10,
		CatalogMinResolved:  1,
	}
}

// Validate rejects settings the pipeline cannot run with.
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("policy: max retries must not be negative")
	}
	if p.RetryBackoff < 0 {
		return fmt.Errorf("policy: retry backoff must not be negative")
	}
	if p.OnExhaustion != ExhaustFallback && p.OnExhaustion != ExhaustFail {
		return fmt.Errorf("policy: unknown exhaustion policy %q", p.OnExhaustion)
	}
	bands := map[string]Band{
		"temperature":       p.Sampling.Temperature,
		"top_p":             p.Sampling.TopP,
		"frequency_penalty": p.Sampling.FrequencyPenalty,
		"presence_penalty":  p.Sampling.PresencePenalty,
	}
	for name, b := range bands {
		if b.Min > b.Max {
			return fmt.Errorf("policy: %s band is inverted (%v > %v)", name, b.Min, b.Max)
		}
	}
	if p.MaxResults <= 0 || p.MinTitles <= 0 || p.SupplementCount <= 0 || p.CatalogMinResolved <= 0 {
		return fmt.Errorf("policy: result and title counts must be positive")
	}
	return nil
}
