package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ewilliams-labs/animeterminal/internal/core/domain"
)

func TestParseTitles(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    []string
		wantErr error
	}{
		{
			name:  "bare array",
			reply: ` ["A", "B", "C", "D", "E"] `,
			want:  []string{"A", "B", "C", "D", "E"},
		},
		{
			name:  "array wrapped in prose",
			reply: "Here you go:\n[\"A\",\n\"B\", \"C\", \"D\", \"E\", \"F\"]\nEnjoy!",
			want:  []string{"A", "B", "C", "D", "E", "F"},
		},
		{
			name:  "filters, trims and dedupes case-sensitively",
			reply: `["A", " A ", "", 3, null, "a", "B", "C", "D"]`,
			want:  []string{"A", "a", "B", "C", "D"},
		},
		{
			name:  "truncates to limit",
			reply: `["1","2","3","4","5","6","7","8","9","10","11","12","13","14","15","16","17"]`,
			want:  []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12", "13", "14", "15"},
		},
		{
			name:  "trailing bracketed note",
			reply: `Try these: ["A", "B", "C", "D", "E"] (see [1] for sources)`,
			want:  []string{"A", "B", "C", "D", "E"},
		},
		{
			name:  "numeric array before titles",
			reply: `Top [3] picks follow. ["A", "B", "C", "D", "E"]`,
			want:  []string{"A", "B", "C", "D", "E"},
		},
		{
			name:  "brackets and escapes inside titles",
			reply: `Sure: ["Re:Zero [Director's Cut]", "A \"]\" B", "C", "D", "E"] [end]`,
			want:  []string{"Re:Zero [Director's Cut]", `A "]" B`, "C", "D", "E"},
		},
		{name: "empty reply", reply: "   ", wantErr: ErrEmptyReply},
		{name: "no array", reply: "I cannot help with that.", wantErr: ErrMalformedReply},
		{name: "broken array", reply: `Titles: ["A", "B",`, wantErr: ErrMalformedReply},
		{name: "empty array", reply: `[]`, wantErr: ErrMalformedReply},
		{name: "too few", reply: `["A", "B", "A", "C", ""]`, wantErr: ErrTooFewTitles},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTitles(tt.reply, 15, 5)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

type retryHint time.Duration

func (r retryHint) Error() string             { return "rate limited" }
func (r retryHint) RetryAfter() time.Duration { return time.Duration(r) }

func TestTitleGenerator_Generate(t *testing.T) {
	tests := []struct {
		name       string
		completion *mockCompletion
		wantErr    bool
		wantCalls  int
		wantSleeps []time.Duration
	}{
		{
			name:       "first attempt succeeds",
			completion: &mockCompletion{configured: true, replies: []string{goodReply}},
			wantCalls:  1,
		},
		{
			name:       "recovers after malformed replies",
			completion: &mockCompletion{configured: true, replies: []string{"nope", `["A"]`, goodReply}},
			wantCalls:  3,
			wantSleeps: []time.Duration{2 * time.Second, 4 * time.Second},
		},
		{
			name:       "retry-after stretches the backoff",
			completion: &mockCompletion{configured: true, replies: []string{goodReply}, errs: []error{retryHint(9 * time.Second)}},
			wantCalls:  2,
			wantSleeps: []time.Duration{9 * time.Second},
		},
		{
			name:       "exhausts every attempt",
			completion: &mockCompletion{configured: true, replies: []string{"{}"}},
			wantErr:    true,
			wantCalls:  4,
			wantSleeps: []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			g := NewTitleGenerator(tt.completion, NewSeededRandom(3), DefaultPolicy())
			var sleeps []time.Duration
			g.sleep = func(_ context.Context, d time.Duration) error {
				sleeps = append(sleeps, d)
				return nil
			}

			titles, err := g.Generate(context.Background(), domain.Preferences{Vibe: domain.VibeDark})
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: got err=%v wantErr=%v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, domain.ErrAIUnavailable) {
				t.Fatalf("expected ErrAIUnavailable, got %v", err)
			}
			if !tt.wantErr && len(titles) == 0 {
				t.Fatalf("expected titles")
			}
			if tt.completion.calls != tt.wantCalls {
				t.Fatalf("expected %d calls, got %d", tt.wantCalls, tt.completion.calls)
			}
			if len(sleeps) != len(tt.wantSleeps) {
				t.Fatalf("sleeps = %v, want %v", sleeps, tt.wantSleeps)
			}
			for i := range sleeps {
				if sleeps[i] != tt.wantSleeps[i] {
					t.Fatalf("sleeps = %v, want %v", sleeps, tt.wantSleeps)
				}
			}
		})
	}
}

func TestTitleGenerator_SamplingWithinBands(t *testing.T) {
	completion := &mockCompletion{configured: true, replies: []string{"x"}}
	policy := DefaultPolicy()
	g := NewTitleGenerator(completion, NewSeededRandom(11), policy)
	g.sleep = func(context.Context, time.Duration) error { return nil }

	_, _ = g.Generate(context.Background(), domain.Preferences{Keywords: "mecha"})

	inBand := func(v float64, b Band) bool { return v >= b.Min && v <= b.Max }
	for i, req := range completion.requests {
		s := req.Sampling
		if !inBand(s.Temperature, policy.Sampling.Temperature) ||
			!inBand(s.TopP, policy.Sampling.TopP) ||
			!inBand(s.FrequencyPenalty, policy.Sampling.FrequencyPenalty) ||
			!inBand(s.PresencePenalty, policy.Sampling.PresencePenalty) {
			t.Fatalf("request %d sampling out of band: %+v", i, s)
		}
		if req.MaxTokens != completionMaxTokens {
			t.Fatalf("expected max tokens %d, got %d", completionMaxTokens, req.MaxTokens)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Fatalf("unexpected messages: %+v", req.Messages)
		}
	}
}

func TestTitleGenerator_CanceledWait(t *testing.T) {
	completion := &mockCompletion{configured: true, replies: []string{"x"}}
	policy := DefaultPolicy()
	policy.RetryBackoff = time.Hour
	g := NewTitleGenerator(completion, NewSeededRandom(5), policy)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := g.Generate(ctx, domain.Preferences{Keywords: "mecha"})
	if !errors.Is(err, domain.ErrAIUnavailable) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected AI unavailable after deadline, got %v", err)
	}
	if completion.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", completion.calls)
	}
}
