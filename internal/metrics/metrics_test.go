package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("POST", "/api/recommendations", "200"))

	RecordHTTPRequest("POST", "/api/recommendations", 200, 150*time.Millisecond)

	after := testutil.ToFloat64(HTTPRequests.WithLabelValues("POST", "/api/recommendations", "200"))
	if after-before != 1 {
		t.Fatalf("expected counter to grow by 1, got %v", after-before)
	}
}

func TestRecordOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		record  func()
		counter func() float64
	}{
		{
			name:    "completion failure",
			record:  func() { RecordCompletionAttempt(false) },
			counter: func() float64 { return testutil.ToFloat64(CompletionAttempts.WithLabelValues("failure")) },
		},
		{
			name:    "metadata success",
			record:  func() { RecordMetadataLookup(true) },
			counter: func() float64 { return testutil.ToFloat64(MetadataLookups.WithLabelValues("success")) },
		},
		{
			name:    "fallback stage",
			record:  func() { RecordFallback("supplement") },
			counter: func() float64 { return testutil.ToFloat64(FallbackActivations.WithLabelValues("supplement")) },
		},
		{
			name:    "pipeline run",
			record:  func() { RecordPipelineRun("llm", "ok") },
			counter: func() float64 { return testutil.ToFloat64(PipelineRuns.WithLabelValues("llm", "ok")) },
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			before := tt.counter()
			tt.record()
			if got := tt.counter() - before; got != 1 {
				t.Fatalf("expected increment of 1, got %v", got)
			}
		})
	}
}

func TestSetBreakerState(t *testing.T) {
	SetBreakerState("anilist", 2)
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("anilist")); got != 2 {
		t.Fatalf("expected gauge 2, got %v", got)
	}
}
