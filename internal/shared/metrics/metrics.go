package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	httpRequestsTotal     atomic.Uint64
	httpRequestErrors     atomic.Uint64
	analysisRequestsTotal atomic.Uint64
	analysisCompleted     atomic.Uint64
	cacheHitsTotal        atomic.Uint64
	cacheMissesTotal      atomic.Uint64
	rateLimitedTotal      atomic.Uint64
	taskJobsReceived      atomic.Uint64
	taskJobsCompleted     atomic.Uint64
	taskJobsFailed        atomic.Uint64
	taskJobsUnrecoverable atomic.Uint64
	webhookDelivered      atomic.Uint64
	webhookFailed         atomic.Uint64

	analysisFailures = newCounterVec("code")
	verdictsTotal    = newCounterVec("verdict")
	predictionsTotal = newCounterVec("version")

	requestDuration  = newHistogram([]float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000})
	analysisDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
	confidenceScores = newHistogram([]float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100})
)

// IncHTTPRequest increments the request counter; 5xx responses also count as errors.
func IncHTTPRequest(status int) {
	httpRequestsTotal.Add(1)
	if status >= 500 {
		httpRequestErrors.Add(1)
	}
}

// ObserveRequestDurationMs records a request duration in milliseconds.
func ObserveRequestDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	requestDuration.Observe(value)
}

// IncAnalysisRequested increments the analysis request counter.
func IncAnalysisRequested() {
	analysisRequestsTotal.Add(1)
}

// IncAnalysisCompleted increments the completed counter.
func IncAnalysisCompleted() {
	analysisCompleted.Add(1)
}

// IncAnalysisFailed increments the failure counter for the given error code.
func IncAnalysisFailed(code string) {
	analysisFailures.Inc(code)
}

// IncVerdict increments the verdict counter ("real" or "fake").
func IncVerdict(verdict string) {
	verdictsTotal.Inc(verdict)
}

// IncPrediction increments the per-model-version prediction counter.
func IncPrediction(version string) {
	predictionsTotal.Inc(version)
}

// ObserveConfidence records a confidence score (0-100).
func ObserveConfidence(value float64) {
	if value < 0 {
		value = 0
	}
	confidenceScores.Observe(value)
}

// ObserveAnalysisDurationMs records an analysis duration in milliseconds.
func ObserveAnalysisDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	analysisDuration.Observe(value)
}

// IncCacheHit increments the analysis cache hit counter.
func IncCacheHit() {
	cacheHitsTotal.Add(1)
}

// IncCacheMiss increments the analysis cache miss counter.
func IncCacheMiss() {
	cacheMissesTotal.Add(1)
}

// IncRateLimited counts requests rejected by the rate limiter.
func IncRateLimited() {
	rateLimitedTotal.Add(1)
}

// IncTaskJobsReceived counts queue messages received by the worker.
func IncTaskJobsReceived() {
	taskJobsReceived.Add(1)
}

// IncTaskJobsCompleted counts tasks finished successfully.
func IncTaskJobsCompleted() {
	taskJobsCompleted.Add(1)
}

// IncTaskJobsFailed counts tasks that ended in failure.
func IncTaskJobsFailed() {
	taskJobsFailed.Add(1)
}

// IncTaskJobsDeletedUnrecoverable counts messages dropped as unprocessable.
func IncTaskJobsDeletedUnrecoverable() {
	taskJobsUnrecoverable.Add(1)
}

// IncWebhookDelivered counts successful webhook deliveries.
func IncWebhookDelivered() {
	webhookDelivered.Add(1)
}

// IncWebhookFailed counts failed webhook deliveries.
func IncWebhookFailed() {
	webhookFailed.Add(1)
}

// CacheStats is a point-in-time view of the analysis cache counters,
// served by the admin stats endpoint.
type CacheStats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

// SnapshotCache returns the current cache hit and miss counts.
func SnapshotCache() CacheStats {
	return CacheStats{Hits: cacheHitsTotal.Load(), Misses: cacheMissesTotal.Load()}
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "http_requests_total", "Total HTTP requests", httpRequestsTotal.Load())
	writeCounter(&buf, "http_request_errors_total", "Total HTTP 5xx responses", httpRequestErrors.Load())
	writeHistogram(&buf, "http_request_duration_ms", "HTTP request duration in milliseconds", requestDuration.Snapshot())
	writeCounter(&buf, "analysis_requests_total", "Total analyses requested", analysisRequestsTotal.Load())
	writeCounter(&buf, "analysis_completed_total", "Total analyses completed", analysisCompleted.Load())
	writeCounterVec(&buf, "analysis_failed_total", "Total analyses failed", analysisFailures)
	writeCounterVec(&buf, "analysis_verdicts_total", "Total verdicts by label", verdictsTotal)
	writeHistogram(&buf, "analysis_duration_ms", "Analysis duration in milliseconds", analysisDuration.Snapshot())
	writeCounterVec(&buf, "model_predictions_total", "Total predictions by model version", predictionsTotal)
	writeHistogram(&buf, "model_confidence", "Model confidence scores", confidenceScores.Snapshot())
	writeCounter(&buf, "cache_hits_total", "Analysis cache hits", cacheHitsTotal.Load())
	writeCounter(&buf, "cache_misses_total", "Analysis cache misses", cacheMissesTotal.Load())
	writeCounter(&buf, "rate_limited_total", "Requests rejected by the rate limiter", rateLimitedTotal.Load())
	writeCounter(&buf, "task_jobs_received_total", "Queue messages received", taskJobsReceived.Load())
	writeCounter(&buf, "task_jobs_completed_total", "Tasks completed", taskJobsCompleted.Load())
	writeCounter(&buf, "task_jobs_failed_total", "Tasks failed", taskJobsFailed.Load())
	writeCounter(&buf, "task_jobs_deleted_unrecoverable_total", "Unprocessable messages dropped", taskJobsUnrecoverable.Load())
	writeCounter(&buf, "webhook_deliveries_total", "Webhook deliveries succeeded", webhookDelivered.Load())
	writeCounter(&buf, "webhook_failures_total", "Webhook deliveries failed", webhookFailed.Load())
	return buf.String()
}

type counterVec struct {
	mu    sync.Mutex
	label string
	vals  map[string]uint64
}

func newCounterVec(label string) *counterVec {
	return &counterVec{label: label, vals: make(map[string]uint64)}
}

func (v *counterVec) Inc(key string) {
	if key == "" {
		key = "unknown"
	}
	v.mu.Lock()
	v.vals[key]++
	v.mu.Unlock()
}

func (v *counterVec) snapshot() (string, map[string]uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[string]uint64, len(v.vals))
	for k, n := range v.vals {
		out[k] = n
	}
	return v.label, out
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeCounterVec(buf *bytes.Buffer, name, help string, vec *counterVec) {
	label, vals := vec.snapshot()
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s=%q} %d\n", name, label, k, vals[k])
	}
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// NowMillis returns current time in milliseconds, useful for callers without time utilities.
func NowMillis() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Millisecond)
}
