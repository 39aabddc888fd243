package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

type counter struct {
	name  string
	help  string
	value atomic.Uint64
}

var (
	batchesSubmitted    = &counter{name: "batch_submitted_total", help: "Batches accepted for processing"}
	batchesFailed       = &counter{name: "batch_failed_total", help: "Batches that failed before any item ran"}
	itemsSucceeded      = &counter{name: "batch_items_succeeded_total", help: "Batch items analyzed successfully"}
	itemsFailed         = &counter{name: "batch_items_failed_total", help: "Batch items recorded as failures"}
	answersFailed       = &counter{name: "session_answers_failed_total", help: "Answer generations that failed"}
	evaluationsScored   = &counter{name: `session_evaluations_total{outcome="scored"}`, help: "Evaluation calls by outcome"}
	evaluationsFallback = &counter{name: `session_evaluations_total{outcome="fallback"}`}

	// counters are rendered in this order.
	counters = []*counter{batchesSubmitted, batchesFailed, itemsSucceeded, itemsFailed, answersFailed, evaluationsScored, evaluationsFallback}

	itemDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000})

	gaugesMu sync.RWMutex
	gauges   = map[string]gauge{}
)

type gauge struct {
	help string
	read func() float64
}

func IncBatchSubmitted() { batchesSubmitted.value.Add(1) }

// IncBatchFailed counts batches that failed as a whole.
func IncBatchFailed() { batchesFailed.value.Add(1) }

func IncItemSucceeded() { itemsSucceeded.value.Add(1) }

func IncItemFailed() { itemsFailed.value.Add(1) }

func IncAnswerFailed() { answersFailed.value.Add(1) }

// IncEvaluation counts an evaluation call. fallback marks a call whose
// record was replaced by the all-zero fallback.
func IncEvaluation(fallback bool) {
	if fallback {
		evaluationsFallback.value.Add(1)
		return
	}
	evaluationsScored.value.Add(1)
}

// ObserveItemDurationMs records a batch item duration in milliseconds.
func ObserveItemDurationMs(value float64) {
	itemDuration.Observe(max(value, 0))
}

// RegisterGauge exposes a value read at scrape time. Registering a name
// again replaces the reader.
func RegisterGauge(name, help string, read func() float64) {
	gaugesMu.Lock()
	defer gaugesMu.Unlock()
	gauges[name] = gauge{help: help, read: read}
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(Render()))
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	for _, c := range counters {
		if c.help != "" {
			writeHeader(&buf, baseName(c.name), c.help, "counter")
		}
		fmt.Fprintf(&buf, "%s %d\n", c.name, c.value.Load())
	}
	writeHistogram(&buf, "batch_item_duration_ms", "Batch item duration in milliseconds", itemDuration.Snapshot())

	gaugesMu.RLock()
	names := make([]string, 0, len(gauges))
	for name := range gauges {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		g := gauges[name]
		writeHeader(&buf, name, g.help, "gauge")
		fmt.Fprintf(&buf, "%s %s\n", name, formatFloat(g.read()))
	}
	gaugesMu.RUnlock()
	return buf.String()
}

func baseName(name string) string {
	for i := 0; i < len(name); i++ {
		if name[i] == '{' {
			return name[:i]
		}
	}
	return name
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

// Observe records value in the first bucket whose bound it does not exceed.
// Values above every bound only reach +Inf.
func (h *histogram) Observe(value float64) {
	i := sort.SearchFloat64s(h.buckets, value)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	if i < len(h.counts) {
		h.counts[i]++
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeHeader(buf *bytes.Buffer, name, help, kind string) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s %s\n", name, kind)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	writeHeader(buf, name, help, "histogram")
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
