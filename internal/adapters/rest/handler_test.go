package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ewilliams-labs/animeterminal/internal/core/domain"
	"github.com/ewilliams-labs/animeterminal/internal/core/ports"
	"github.com/ewilliams-labs/animeterminal/internal/core/services"
)

// --- Mocks ---
// The handler depends on the concrete Orchestrator, so the tests build a
// real one on top of mocked ports.

type mockCompletion struct {
	configured bool
	reply      string
	err        error
	calls      int
}

func (m *mockCompletion) Configured() bool { return m.configured }

func (m *mockCompletion) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

// mockMetadata resolves every title; scores descend with call order.
type mockMetadata struct {
	mu    sync.Mutex
	calls int
	panic bool
}

func (m *mockMetadata) SearchByTitle(ctx context.Context, title string) (domain.MediaRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panic {
		panic("metadata exploded")
	}
	m.calls++
	score := 90 - m.calls
	year := 2020 + m.calls
	rec := domain.MediaRecord{
		ID:              m.calls,
		TitleEnglish:    title,
		TitleRomaji:     title,
		CoverImageLarge: "https://img.example/" + title + ".jpg",
		AverageScore:    &score,
		SeasonYear:      &year,
		StartDate:       domain.FuzzyDate{Year: &year},
	}
	if m.calls == 1 {
		rec.Genres = []string{"Action", "Drama"}
		rec.Studios = []string{"MAPPA"}
	}
	return rec, nil
}

type mockCatalog struct {
	err error
}

func (m *mockCatalog) LoadCatalog(ctx context.Context) ([]domain.CatalogEntry, error) {
	return nil, m.err
}

const sixTitles = `["Vinland Saga", "Attack on Titan", "Berserk", "Claymore", "Kingdom", "Fate/Zero"]`

type testEnv struct {
	handler    *Handler
	completion *mockCompletion
	metadata   *mockMetadata
}

func newTestEnv(t *testing.T, opts Options, mutate func(*services.Options)) *testEnv {
	t.Helper()
	env := &testEnv{
		completion: &mockCompletion{configured: true, reply: sixTitles},
		metadata:   &mockMetadata{},
	}
	svcOpts := services.Options{
		Generator:      services.GeneratorLLM,
		Policy:         services.DefaultPolicy(),
		LookupInterval: time.Millisecond,
		LookupTimeout:  time.Second,
		Random:         services.NewSeededRandom(3),
	}
	if mutate != nil {
		mutate(&svcOpts)
	}
	svc := services.NewOrchestrator(env.completion, env.metadata, &mockCatalog{err: errors.New("open top_15000_anime.csv: no such file")}, svcOpts)
	if opts.Environment == "" {
		opts.Environment = "test"
	}
	env.handler = NewHandler(svc, opts)
	env.handler.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return env
}

func (e *testEnv) do(method, path, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rr.Body.String(), err)
	}
	return resp
}

// --- Tests ---

func TestHealth(t *testing.T) {
	env := newTestEnv(t, Options{Environment: "development", APIKeyConfigured: true, APIKeyLength: 73}, nil)

	rr := env.do(http.MethodGet, "/api/health", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var got healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Timestamp.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("timestamp = %v", got.Timestamp)
	}
	got.Timestamp = time.Time{}

	want := healthResponse{
		Status:           "OK",
		Message:          healthMessage,
		Environment:      "development",
		Generator:        "llm",
		APIKeyConfigured: true,
		APIKeyLength:     73,
		CatalogLoaded:    false,
	}
	if got != want {
		t.Errorf("health = %+v, want %+v", got, want)
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Errorf("expected a request ID header")
	}
}

func TestRouting(t *testing.T) {
	env := newTestEnv(t, Options{}, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantCode   string
	}{
		{name: "preflight on recommendations", method: http.MethodOptions, path: "/api/recommendations", wantStatus: http.StatusOK},
		{name: "preflight anywhere", method: http.MethodOptions, path: "/some/where", wantStatus: http.StatusOK},
		{name: "GET recommendations", method: http.MethodGet, path: "/api/recommendations", wantStatus: http.StatusMethodNotAllowed, wantCode: codeMethodNotAllowed},
		{name: "DELETE health", method: http.MethodDelete, path: "/api/health", wantStatus: http.StatusMethodNotAllowed, wantCode: codeMethodNotAllowed},
		{name: "unknown path", method: http.MethodGet, path: "/api/unknown", wantStatus: http.StatusNotFound, wantCode: codeNotFound},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(tt.method, tt.path, "", "")
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d (%s)", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if tt.wantCode == "" {
				if rr.Body.Len() != 0 {
					t.Errorf("expected empty body, got %q", rr.Body.String())
				}
				return
			}
			if got := decodeError(t, rr).Error; got != tt.wantCode {
				t.Errorf("error = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, Options{CORSOrigins: []string{"https://ui.example"}}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/recommendations", nil)
	req.Header.Set("Origin", "https://ui.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://ui.example" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestRecommend_Success(t *testing.T) {
	env := newTestEnv(t, Options{}, nil)

	rr := env.do(http.MethodPost, "/api/recommendations", "application/json; charset=utf-8",
		`{"favoriteAnime":"Vinland Saga","vibe":"Epic","genres":["Action","Drama"],"dealbreakers":["slow"]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var body struct {
		Success         bool             `json:"success"`
		Count           int              `json:"count"`
		Timestamp       string           `json:"timestamp"`
		Recommendations []map[string]any `json:"recommendations"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Count != 6 || len(body.Recommendations) != 6 {
		t.Fatalf("unexpected envelope: success=%v count=%d len=%d", body.Success, body.Count, len(body.Recommendations))
	}
	if body.Timestamp != "2026-03-01T12:00:00Z" {
		t.Errorf("timestamp = %q", body.Timestamp)
	}
	if env.completion.calls != 1 {
		t.Errorf("completion calls = %d, want 1", env.completion.calls)
	}

	first := body.Recommendations[0]
	if first["id"].(float64) != 1 || first["averageScore"].(float64) != 89 {
		t.Errorf("expected highest score first, got %v", first)
	}
	title := first["title"].(map[string]any)
	if title["english"] != "Vinland Saga" {
		t.Errorf("title = %v", title)
	}
	nodes := first["studios"].(map[string]any)["nodes"].([]any)
	if len(nodes) != 1 || nodes[0].(map[string]any)["name"] != "MAPPA" {
		t.Errorf("studios = %v", nodes)
	}

	// records without studios or genres still render arrays
	last := body.Recommendations[5]
	if _, ok := last["genres"].([]any); !ok {
		t.Errorf("genres should be an array, got %T", last["genres"])
	}
	if _, ok := last["studios"].(map[string]any)["nodes"].([]any); !ok {
		t.Errorf("studios.nodes should be an array")
	}
}

func TestRecommend_RequestErrors(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
		wantCode    string
	}{
		{name: "wrong content type", contentType: "text/plain", body: `{"vibe":"epic"}`, wantStatus: http.StatusUnsupportedMediaType, wantCode: codeUnsupportedMediaType},
		{name: "missing content type", body: `{"vibe":"epic"}`, wantStatus: http.StatusUnsupportedMediaType, wantCode: codeUnsupportedMediaType},
		{name: "malformed json", contentType: "application/json", body: `{"vibe":`, wantStatus: http.StatusBadRequest, wantCode: string(domain.KindValidation)},
		{name: "unknown vibe", contentType: "application/json", body: `{"vibe":"spooky"}`, wantStatus: http.StatusBadRequest, wantCode: string(domain.KindValidation)},
		{name: "too many genres", contentType: "application/json", body: `{"genres":["a","b","c","d"]}`, wantStatus: http.StatusBadRequest, wantCode: string(domain.KindValidation)},
		{name: "unknown dealbreaker", contentType: "application/json", body: `{"dealbreakers":["subtitles"]}`, wantStatus: http.StatusBadRequest, wantCode: string(domain.KindValidation)},
		{name: "empty object", contentType: "application/json", body: `{}`, wantStatus: http.StatusBadRequest, wantCode: string(domain.KindInputRequired)},
		{name: "empty body", contentType: "application/json", body: ``, wantStatus: http.StatusBadRequest, wantCode: string(domain.KindInputRequired)},
		{name: "blank fields", contentType: "application/json", body: `{"favoriteAnime":"  ","genres":[" "]}`, wantStatus: http.StatusBadRequest, wantCode: string(domain.KindInputRequired)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Options{}, nil)
			rr := env.do(http.MethodPost, "/api/recommendations", tt.contentType, tt.body)

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			resp := decodeError(t, rr)
			if resp.Error != tt.wantCode {
				t.Errorf("error = %q, want %q", resp.Error, tt.wantCode)
			}
			if resp.Message == "" {
				t.Errorf("expected a message")
			}
			if env.completion.calls != 0 || env.metadata.calls != 0 {
				t.Errorf("no external call expected, got completion=%d metadata=%d", env.completion.calls, env.metadata.calls)
			}
		})
	}
}

func TestRecommend_PipelineErrors(t *testing.T) {
	tests := []struct {
		name        string
		production  bool
		mutate      func(*services.Options)
		setup       func(*testEnv)
		wantStatus  int
		wantKind    domain.ErrorKind
		wantDetails bool
	}{
		{
			name: "unconfigured key under fail policy",
			mutate: func(o *services.Options) {
				o.Policy.OnExhaustion = services.ExhaustFail
			},
			setup:       func(e *testEnv) { e.completion.configured = false },
			wantStatus:  http.StatusServiceUnavailable,
			wantKind:    domain.KindConfiguration,
			wantDetails: true,
		},
		{
			name: "catalog unavailable",
			mutate: func(o *services.Options) {
				o.Generator = services.GeneratorCatalog
			},
			wantStatus:  http.StatusServiceUnavailable,
			wantKind:    domain.KindDatabase,
			wantDetails: true,
		},
		{
			name:       "production hides details",
			production: true,
			mutate: func(o *services.Options) {
				o.Generator = services.GeneratorCatalog
			},
			wantStatus: http.StatusServiceUnavailable,
			wantKind:   domain.KindDatabase,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Options{Production: tt.production}, tt.mutate)
			if tt.setup != nil {
				tt.setup(env)
			}
			rr := env.do(http.MethodPost, "/api/recommendations", "application/json", `{"vibe":"dark"}`)

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			resp := decodeError(t, rr)
			if resp.Error != string(tt.wantKind) {
				t.Errorf("error = %q, want %q", resp.Error, tt.wantKind)
			}
			if (resp.Details != "") != tt.wantDetails {
				t.Errorf("details = %q, wantDetails %v", resp.Details, tt.wantDetails)
			}
			if resp.RequestID == "" {
				t.Errorf("expected requestId in error body")
			}
		})
	}
}

func TestStatusForKind(t *testing.T) {
	tests := map[domain.ErrorKind]int{
		domain.KindInputRequired: http.StatusBadRequest,
		domain.KindValidation:    http.StatusBadRequest,
		domain.KindConfiguration: http.StatusServiceUnavailable,
		domain.KindAIConnection:  http.StatusServiceUnavailable,
		domain.KindMetadata:      http.StatusServiceUnavailable,
		domain.KindDatabase:      http.StatusServiceUnavailable,
		domain.KindSystem:        http.StatusServiceUnavailable,
		domain.KindNoMatches:     http.StatusNotFound,
		domain.KindUnexpected:    http.StatusInternalServerError,
		domain.ErrorKind("WHO"):  http.StatusInternalServerError,
	}
	for kind, want := range tests {
		if got := statusForKind(kind); got != want {
			t.Errorf("statusForKind(%s) = %d, want %d", kind, got, want)
		}
	}
}

func TestRecommend_RecoversFromPanic(t *testing.T) {
	env := newTestEnv(t, Options{}, nil)
	env.metadata.panic = true

	rr := env.do(http.MethodPost, "/api/recommendations", "application/json", `{"keywords":"space pirates"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	resp := decodeError(t, rr)
	if resp.Error != string(domain.KindUnexpected) || resp.Details != "metadata exploded" {
		t.Errorf("unexpected body: %+v", resp)
	}
}

func TestRecommend_RateLimited(t *testing.T) {
	env := newTestEnv(t, Options{RateLimitRequests: 1, RateLimitWindow: time.Minute}, nil)

	first := env.do(http.MethodPost, "/api/recommendations", "application/json", `{"vibe":"funny"}`)
	if first.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d: %s", first.Code, first.Body.String())
	}
	second := env.do(http.MethodPost, "/api/recommendations", "application/json", `{"vibe":"funny"}`)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", second.Code)
	}
	if got := decodeError(t, second).Error; got != codeRateLimited {
		t.Errorf("error = %q, want %q", got, codeRateLimited)
	}

	// health is not limited
	if rr := env.do(http.MethodGet, "/api/health", "", ""); rr.Code != http.StatusOK {
		t.Errorf("health: expected 200, got %d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, Options{}, nil)
	env.do(http.MethodGet, "/api/health", "", "")

	rr := env.do(http.MethodGet, "/metrics", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "animeterminal_http_requests_total") {
		t.Errorf("expected http request counter in exposition")
	}
}
