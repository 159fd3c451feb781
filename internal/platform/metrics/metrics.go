package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector keeps process-local counters for HTTP traffic and appraisal
// workflow outcomes. It implements appraisal.Recorder.
type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	clientErrors    uint64
	totalDurationMs uint64
	scoringFailures uint64

	mu        sync.Mutex
	committed map[string]uint64
	rejected  map[string]uint64
}

func New() *Collector {
	return &Collector{
		committed: map[string]uint64{},
		rejected:  map[string]uint64{},
	}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	switch {
	case status >= 500:
		atomic.AddUint64(&c.errorRequests, 1)
	case status >= 400:
		atomic.AddUint64(&c.clientErrors, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

func (c *Collector) TransitionCommitted(to string) {
	c.mu.Lock()
	c.committed[to]++
	c.mu.Unlock()
}

func (c *Collector) TransitionRejected(kind string) {
	c.mu.Lock()
	c.rejected[kind]++
	c.mu.Unlock()
}

func (c *Collector) ScoringFailed() {
	atomic.AddUint64(&c.scoringFailures, 1)
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}

	c.mu.Lock()
	committed := copyCounts(c.committed)
	rejected := copyCounts(c.rejected)
	c.mu.Unlock()

	return map[string]any{
		"requestsTotal":        total,
		"errorsTotal":          atomic.LoadUint64(&c.errorRequests),
		"clientErrorsTotal":    atomic.LoadUint64(&c.clientErrors),
		"avgDurationMs":        avg,
		"totalDurationMs":      totalMs,
		"transitionsCommitted": committed,
		"transitionsRejected":  rejected,
		"scoringFailuresTotal": atomic.LoadUint64(&c.scoringFailures),
	}
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
