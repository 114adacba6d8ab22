package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	jobStartedTotal    atomic.Uint64
	jobProcessedTotal  atomic.Uint64
	jobFailedTotal     atomic.Uint64
	pageProcessedTotal atomic.Uint64
	pageFailedTotal    atomic.Uint64
	draftSavedTotal    atomic.Uint64

	workerMessagesReceivedTotal      atomic.Uint64
	workerMessagesCompletedTotal     atomic.Uint64
	workerMessagesFailedTotal        atomic.Uint64
	workerMessagesUnrecoverableTotal atomic.Uint64

	jobDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000})
)

// IncJobStarted increments the started counter.
func IncJobStarted() {
	jobStartedTotal.Add(1)
}

// IncJobProcessed increments the processed counter.
func IncJobProcessed() {
	jobProcessedTotal.Add(1)
}

// IncJobFailed increments the failed counter.
func IncJobFailed() {
	jobFailedTotal.Add(1)
}

// IncPageProcessed increments the per-page success counter.
func IncPageProcessed() {
	pageProcessedTotal.Add(1)
}

// IncPageFailed increments the per-page failure counter.
func IncPageFailed() {
	pageFailedTotal.Add(1)
}

// IncDraftSaved increments the saved-draft counter.
func IncDraftSaved() {
	draftSavedTotal.Add(1)
}

// IncWorkerMessagesReceived counts queue messages picked up by the worker.
func IncWorkerMessagesReceived() {
	workerMessagesReceivedTotal.Add(1)
}

// IncWorkerMessagesCompleted counts messages processed and deleted.
func IncWorkerMessagesCompleted() {
	workerMessagesCompletedTotal.Add(1)
}

// IncWorkerMessagesFailed counts messages that failed and will be redelivered.
func IncWorkerMessagesFailed() {
	workerMessagesFailedTotal.Add(1)
}

// IncWorkerMessagesUnrecoverable counts malformed messages deleted without
// processing.
func IncWorkerMessagesUnrecoverable() {
	workerMessagesUnrecoverableTotal.Add(1)
}

// ObserveJobDurationMs records an end-to-end job duration in milliseconds.
func ObserveJobDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	jobDuration.Observe(value)
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
	writeCounter(&buf, "job_started_total", "Total processing jobs started", jobStartedTotal.Load())
	writeCounter(&buf, "job_processed_total", "Total processing jobs completed", jobProcessedTotal.Load())
	writeCounter(&buf, "job_failed_total", "Total processing jobs failed", jobFailedTotal.Load())
	writeCounter(&buf, "page_processed_total", "Total pages processed", pageProcessedTotal.Load())
	writeCounter(&buf, "page_failed_total", "Total pages that failed processing", pageFailedTotal.Load())
	writeCounter(&buf, "draft_saved_total", "Total draft bills saved", draftSavedTotal.Load())
	writeCounter(&buf, "worker_messages_received_total", "Total queue messages received by the worker", workerMessagesReceivedTotal.Load())
	writeCounter(&buf, "worker_messages_completed_total", "Total queue messages processed and deleted", workerMessagesCompletedTotal.Load())
	writeCounter(&buf, "worker_messages_failed_total", "Total queue messages that failed processing", workerMessagesFailedTotal.Load())
	writeCounter(&buf, "worker_messages_unrecoverable_total", "Total malformed queue messages deleted", workerMessagesUnrecoverableTotal.Load())
	writeHistogram(&buf, "job_duration_ms", "Job duration in milliseconds", jobDuration.Snapshot())
	return buf.String()
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
