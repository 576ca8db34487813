// Package anilist resolves anime titles against the AniList GraphQL API.
package anilist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shurcooL/graphql"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/ewilliams-labs/animeterminal/internal/adapters/breaker"
	"github.com/ewilliams-labs/animeterminal/internal/core/domain"
	"github.com/ewilliams-labs/animeterminal/internal/core/ports"
	"github.com/ewilliams-labs/animeterminal/internal/logging"
)

const (
	DefaultURL     = "https://graphql.anilist.co"
	DefaultTimeout = 10 * time.Second

	// DefaultRequestsPerMinute is AniList's published per-IP limit.
	DefaultRequestsPerMinute = 90
	requestBurst             = 10

	breakerName = "metadata"
	maxErrBody  = 512
)

// Config configures the client. Zero values select the defaults.
type Config struct {
	URL               string
	Timeout           time.Duration
	RequestsPerMinute int
	BreakerFailures   uint32
	BreakerCooldown   time.Duration
}

// errNotFound is raised by the transport when AniList answers 404,
// which it does for searches with no result.
var errNotFound = errors.New("anilist: not found")

// StatusError is returned for unexpected non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
	retryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("anilist: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("anilist: unexpected status %d: %s", e.StatusCode, e.Body)
}

// RetryAfter returns the wait requested by the server, if any.
func (e *StatusError) RetryAfter() time.Duration {
	return e.retryAfter
}

type Client struct {
	gql     *graphql.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[domain.MediaRecord]
}

// compile-time interface assertion
var _ ports.MetadataProvider = (*Client)(nil)

type mediaTitle struct {
	English *string `graphql:"english"`
	Romaji  *string `graphql:"romaji"`
	Native  *string `graphql:"native"`
}

type mediaCover struct {
	Large  *string `graphql:"large"`
	Medium *string `graphql:"medium"`
}

type mediaDate struct {
	Year  *int `graphql:"year"`
	Month *int `graphql:"month"`
	Day   *int `graphql:"day"`
}

type media struct {
	ID           int        `graphql:"id"`
	Title        mediaTitle `graphql:"title"`
	CoverImage   mediaCover `graphql:"coverImage"`
	AverageScore *int       `graphql:"averageScore"`
	Genres       []string   `graphql:"genres"`
	SeasonYear   *int       `graphql:"seasonYear"`
	Episodes     *int       `graphql:"episodes"`
	Status       *string    `graphql:"status"`
	Format       *string    `graphql:"format"`
	Description  *string    `graphql:"description"`
	StartDate    mediaDate  `graphql:"startDate"`
	Studios      struct {
		Nodes []struct {
			Name string `graphql:"name"`
		} `graphql:"nodes"`
	} `graphql:"studios"`
}

type mediaQuery struct {
	Media media `graphql:"Media(search: $search, type: ANIME)"`
}

// NewClient constructs a Client for the given endpoint.
func NewClient(cfg Config) *Client {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		url = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = DefaultRequestsPerMinute
	}
	burst := min(requestBurst, cfg.RequestsPerMinute)

	httpClient := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &statusTransport{base: http.DefaultTransport},
	}
	return &Client{
		gql:     graphql.NewClient(url, httpClient),
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), burst),
		breaker: breaker.New[domain.MediaRecord](breaker.Settings{
			Name:     breakerName,
			Failures: cfg.BreakerFailures,
			Cooldown: cfg.BreakerCooldown,
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ports.ErrNoMatch) || errors.Is(err, context.Canceled)
			},
		}),
	}
}

// SearchByTitle returns the best AniList match for title.
// A search without a result yields a ports.NoMatchError.
func (c *Client) SearchByTitle(ctx context.Context, title string) (domain.MediaRecord, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.MediaRecord{}, ports.NoMatchError{}
	}

	// waiting for the budget is not a service failure, so it stays outside the breaker
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.MediaRecord{}, fmt.Errorf("anilist: request budget: %w", err)
	}

	record, err := c.breaker.Execute(func() (domain.MediaRecord, error) {
		return c.search(ctx, title)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.MediaRecord{}, fmt.Errorf("anilist: %w", err)
	}
	return record, err
}

func (c *Client) search(ctx context.Context, title string) (domain.MediaRecord, error) {
	var q mediaQuery
	err := c.gql.Query(ctx, &q, map[string]interface{}{
		"search": graphql.String(title),
	})
	if errors.Is(err, errNotFound) {
		return domain.MediaRecord{}, ports.NoMatchError{Title: title}
	}
	if err != nil {
		return domain.MediaRecord{}, fmt.Errorf("anilist: search %q: %w", title, err)
	}
	if q.Media.ID == 0 {
		return domain.MediaRecord{}, ports.NoMatchError{Title: title}
	}

	record := toRecord(q.Media)
	logMatch(title, record)
	return record, nil
}

func toRecord(m media) domain.MediaRecord {
	record := domain.MediaRecord{
		ID:               m.ID,
		TitleEnglish:     deref(m.Title.English),
		TitleRomaji:      deref(m.Title.Romaji),
		TitleNative:      deref(m.Title.Native),
		CoverImageLarge:  deref(m.CoverImage.Large),
		CoverImageMedium: deref(m.CoverImage.Medium),
		AverageScore:     m.AverageScore,
		Genres:           m.Genres,
		SeasonYear:       m.SeasonYear,
		Episodes:         m.Episodes,
		Status:           deref(m.Status),
		Format:           deref(m.Format),
		Description:      deref(m.Description),
		StartDate: domain.FuzzyDate{
			Year:  m.StartDate.Year,
			Month: m.StartDate.Month,
			Day:   m.StartDate.Day,
		},
	}
	for _, node := range m.Studios.Nodes {
		if node.Name != "" {
			record.Studios = append(record.Studios, node.Name)
		}
	}
	return record
}

func logMatch(query string, record domain.MediaRecord) {
	score := titleMatchScore(query, record)
	event := logging.Debug()
	if score < minTitleSimilarity {
		event = logging.Warn()
	}
	event.
		Str("query", query).
		Str("matched", record.DisplayTitle()).
		Int("media_id", record.ID).
		Float64("similarity", score).
		Msg("anilist: title resolved")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// statusTransport turns non-2xx responses into typed errors before the
// GraphQL client flattens them into strings.
type statusTransport struct {
	base http.RoundTripper
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Accept", "application/json")
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
	return nil, &StatusError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(snippet)),
		retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

func parseRetryAfter(v string) time.Duration {
	if seconds, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
}
