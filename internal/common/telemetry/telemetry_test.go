package telemetry

import (
	"context"
	"expvar"
	"testing"
	"time"
)

func mapCount(m *expvar.Map, key string) int64 {
	v, ok := m.Get(key).(*expvar.Int)
	if !ok || v == nil {
		return 0
	}
	return v.Value()
}

func TestRecordExtractionCountsOutcome(t *testing.T) {
	RecordExtraction("Fallback", 1)
	before := mapCount(extractionTotal, "fallback")
	RecordExtraction(" fallback ", 1)
	if got := mapCount(extractionTotal, "fallback"); got != before+1 {
		t.Fatalf("expected fallback count %d, got %d", before+1, got)
	}
}

func TestRecordLLMCallUsesUnknownForBlankOutcome(t *testing.T) {
	RecordLLMCall("", 5*time.Millisecond)
	if mapCount(llmCallsTotal, "unknown") == 0 {
		t.Fatalf("expected unknown outcome to be counted")
	}
	if llmLatencyMS.Value() < 5 {
		t.Fatalf("expected latency to accumulate, got %d", llmLatencyMS.Value())
	}
}

func TestStartSpanTracksDuration(t *testing.T) {
	ctx, end := StartSpan(context.Background(), "draft")
	time.Sleep(2 * time.Millisecond)
	if SpanDuration(ctx) <= 0 {
		t.Fatalf("expected positive span duration")
	}
	end("run_id", 1)
	if SpanDuration(context.Background()) != 0 {
		t.Fatalf("expected zero duration without span")
	}
}
