// File path: internal/common/telemetry/telemetry.go
package telemetry

import (
	"context"
	"expvar"
	"strings"
	"sync"
	"time"

	"github.com/nicodishanthj/rfpassist/internal/common"
)

type spanKey struct{}

type span struct {
	name  string
	start time.Time
}

var (
	initOnce sync.Once

	llmCallsTotal *expvar.Map
	llmLatencyMS  *expvar.Int

	extractionTotal *expvar.Map

	runsCreatedTotal  *expvar.Int
	uploadBytesTotal  *expvar.Int
	draftsTotal       *expvar.Int
	exportsTotal      *expvar.Int
	exportPagesTotal  *expvar.Int
	runsDeletedTotal  *expvar.Int
	itemsToggledTotal *expvar.Int
)

func ensureInit() {
	initOnce.Do(func() {
		llmCallsTotal = expvar.NewMap("rfp_llm_calls_total")
		llmLatencyMS = expvar.NewInt("rfp_llm_latency_ms")

		extractionTotal = expvar.NewMap("rfp_extractions_total")

		runsCreatedTotal = expvar.NewInt("rfp_runs_created_total")
		uploadBytesTotal = expvar.NewInt("rfp_upload_bytes_total")
		draftsTotal = expvar.NewInt("rfp_drafts_generated_total")
		exportsTotal = expvar.NewInt("rfp_exports_total")
		exportPagesTotal = expvar.NewInt("rfp_export_pages_total")
		runsDeletedTotal = expvar.NewInt("rfp_runs_deleted_total")
		itemsToggledTotal = expvar.NewInt("rfp_checklist_updates_total")
	})
}

// StartSpan logs the start of a named stage and returns a func that logs its
// end with the elapsed duration and any extra attributes.
func StartSpan(ctx context.Context, name string) (context.Context, func(attrs ...interface{})) {
	ensureInit()
	sp := &span{name: name, start: time.Now()}
	ctx = context.WithValue(ctx, spanKey{}, sp)
	logger := common.Logger()
	logger.Debug("trace: start", "span", name)
	return ctx, func(attrs ...interface{}) {
		logger.Debug("trace: end", append([]interface{}{"span", name, "dur", time.Since(sp.start)}, attrs...)...)
	}
}

// SpanDuration reports how long the span stored in ctx has been running.
func SpanDuration(ctx context.Context) time.Duration {
	sp, _ := ctx.Value(spanKey{}).(*span)
	if sp == nil {
		return 0
	}
	return time.Since(sp.start)
}

// RecordLLMCall counts a gateway call by outcome ("ok", "error", "offline").
func RecordLLMCall(outcome string, duration time.Duration) {
	ensureInit()
	llmCallsTotal.Add(normalizeKey(outcome, "unknown"), 1)
	if duration > 0 {
		llmLatencyMS.Add(duration.Milliseconds())
	}
}

// RecordExtraction counts requirement extractions by parse outcome.
func RecordExtraction(outcome string, requirements int) {
	ensureInit()
	extractionTotal.Add(normalizeKey(outcome, "unknown"), 1)
	extractionTotal.Add("requirements", int64(requirements))
}

func RecordRunCreated(uploadBytes int64) {
	ensureInit()
	runsCreatedTotal.Add(1)
	if uploadBytes > 0 {
		uploadBytesTotal.Add(uploadBytes)
	}
}

func RecordDraft() {
	ensureInit()
	draftsTotal.Add(1)
}

func RecordExport(pages int) {
	ensureInit()
	exportsTotal.Add(1)
	if pages > 0 {
		exportPagesTotal.Add(int64(pages))
	}
}

func RecordRunDeleted() {
	ensureInit()
	runsDeletedTotal.Add(1)
}

func RecordChecklistUpdate() {
	ensureInit()
	itemsToggledTotal.Add(1)
}

func normalizeKey(value, fallback string) string {
	key := strings.TrimSpace(strings.ToLower(value))
	if key == "" {
		return fallback
	}
	return key
}
