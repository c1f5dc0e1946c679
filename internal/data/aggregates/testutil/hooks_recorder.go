package testutil

import (
	"sync"
	"time"

	"github.com/yungbote/neurobridge-mastery/internal/data/aggregates"
)

// Hook signal kinds recorded by HooksRecorder.
const (
	SignalOperation = "operation"
	SignalConflict  = "conflict"
	SignalRetry     = "retry"
)

// HookSignal is one call observed on the aggregate Hooks surface.
type HookSignal struct {
	Kind     string
	Op       string
	Status   string
	Duration time.Duration
}

// HooksRecorder keeps every aggregate hook call in arrival order so tests can
// assert on conflict and retry counts per operation.
type HooksRecorder struct {
	mu      sync.Mutex
	signals []HookSignal
}

var _ aggregates.Hooks = (*HooksRecorder)(nil)

func (h *HooksRecorder) ObserveOperation(name, status string, dur time.Duration) {
	h.add(HookSignal{Kind: SignalOperation, Op: name, Status: status, Duration: dur})
}

func (h *HooksRecorder) IncConflict(name string) {
	h.add(HookSignal{Kind: SignalConflict, Op: name})
}

func (h *HooksRecorder) IncRetry(name string) {
	h.add(HookSignal{Kind: SignalRetry, Op: name})
}

func (h *HooksRecorder) add(s HookSignal) {
	h.mu.Lock()
	h.signals = append(h.signals, s)
	h.mu.Unlock()
}

// Signals returns a copy of everything recorded so far.
func (h *HooksRecorder) Signals() []HookSignal {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]HookSignal(nil), h.signals...)
}

// Count returns how many signals of kind were recorded for op. An empty op
// matches any operation.
func (h *HooksRecorder) Count(kind, op string) int {
	n := 0
	for _, s := range h.Signals() {
		if s.Kind == kind && (op == "" || s.Op == op) {
			n++
		}
	}
	return n
}

// LastStatus is the status of the most recent completed run of op, or "" if
// op never finished.
func (h *HooksRecorder) LastStatus(op string) string {
	signals := h.Signals()
	for i := len(signals) - 1; i >= 0; i-- {
		if signals[i].Kind == SignalOperation && signals[i].Op == op {
			return signals[i].Status
		}
	}
	return ""
}
