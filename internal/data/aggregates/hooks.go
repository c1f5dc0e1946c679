package aggregates

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

// Hooks receives per-operation outcomes plus conflict and retry signals from
// the write executor.
type Hooks interface {
	ObserveOperation(name, status string, dur time.Duration)
	IncConflict(name string)
	IncRetry(name string)
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration) {}
func (noopHooks) IncConflict(string)                             {}
func (noopHooks) IncRetry(string)                                {}

type opCounters struct {
	conflicts atomic.Int64
	retries   atomic.Int64
}

// logHooks writes aggregate signals to the structured log, keeping running
// conflict and retry totals per operation so contention shows up in a single
// line without a metrics backend.
type logHooks struct {
	log *logger.Logger
	ops sync.Map // op name -> *opCounters
}

func NewLogHooks(baseLog *logger.Logger) Hooks {
	if baseLog == nil {
		return noopHooks{}
	}
	return &logHooks{log: baseLog.With("component", "AggregateHooks")}
}

func (h *logHooks) counters(op string) *opCounters {
	if c, ok := h.ops.Load(op); ok {
		return c.(*opCounters)
	}
	c, _ := h.ops.LoadOrStore(op, &opCounters{})
	return c.(*opCounters)
}

func (h *logHooks) ObserveOperation(name, status string, dur time.Duration) {
	fields := []interface{}{"op", name, "status", status, "duration_ms", dur.Milliseconds()}
	switch status {
	case "success":
		h.log.Debug("aggregate write", fields...)
	case "conflict", "retryable":
		c := h.counters(name)
		fields = append(fields, "conflicts_total", c.conflicts.Load(), "retries_total", c.retries.Load())
		h.log.Warn("aggregate write contended", fields...)
	default:
		h.log.Warn("aggregate write failed", fields...)
	}
}

func (h *logHooks) IncConflict(name string) {
	n := h.counters(name).conflicts.Add(1)
	h.log.Info("aggregate conflict", "op", name, "conflicts_total", n)
}

func (h *logHooks) IncRetry(name string) {
	n := h.counters(name).retries.Add(1)
	h.log.Info("aggregate retryable failure", "op", name, "retries_total", n)
}
