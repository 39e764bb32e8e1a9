package service

import (
	"sync"
	"time"

	"commit-reveal-voting/models"
)

// Operation names a metered engine call.
type Operation string

const (
	OpCommit       Operation = "commit"
	OpReveal       Operation = "reveal"
	OpAdvancePhase Operation = "advance_phase"
	OpGetVotes     Operation = "get_votes"
)

// MetricsCollector tracks counts and timings of engine operations.
type MetricsCollector struct {
	mu         sync.RWMutex
	operations map[Operation]*operationStats
	rejections map[string]int
	phaseTimes map[models.Phase]time.Time
}

type operationStats struct {
	accepted  int
	rejected  int
	totalTime time.Duration
	lastAt    time.Time
}

// OperationMetrics contains timing information for an operation
type OperationMetrics struct {
	Accepted       int       `json:"accepted"`
	Rejected       int       `json:"rejected"`
	ProcessingTime int64     `json:"processing_time_ms"`
	LastAt         time.Time `json:"last_at,omitempty"`
}

// MetricsResponse provides the metrics for all operations
type MetricsResponse struct {
	Operations map[Operation]OperationMetrics `json:"operations"`
	Rejections map[string]int                 `json:"rejections"`
	PhaseTimes map[string]time.Time           `json:"phase_times"`
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		operations: make(map[Operation]*operationStats),
		rejections: make(map[string]int),
		phaseTimes: make(map[models.Phase]time.Time),
	}
}

// Record accounts one call of op that took duration and ended with err.
func (mc *MetricsCollector) Record(op Operation, duration time.Duration, err error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	stats, ok := mc.operations[op]
	if !ok {
		stats = &operationStats{}
		mc.operations[op] = stats
	}
	stats.totalTime += duration
	stats.lastAt = time.Now()

	if err != nil {
		stats.rejected++
		code := ErrorCode(err)
		if code == "" {
			code = "Internal"
		}
		mc.rejections[code]++
		return
	}
	stats.accepted++
}

// RecordPhase marks the moment the round entered phase, or was found in it
// when a persisted round is restored.
func (mc *MetricsCollector) RecordPhase(phase models.Phase) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.phaseTimes[phase] = time.Now()
}

// GetMetrics returns current metrics for all operations
func (mc *MetricsCollector) GetMetrics() MetricsResponse {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	resp := MetricsResponse{
		Operations: make(map[Operation]OperationMetrics, len(mc.operations)),
		Rejections: make(map[string]int, len(mc.rejections)),
		PhaseTimes: make(map[string]time.Time, len(mc.phaseTimes)),
	}
	for op, stats := range mc.operations {
		resp.Operations[op] = OperationMetrics{
			Accepted:       stats.accepted,
			Rejected:       stats.rejected,
			ProcessingTime: stats.totalTime.Milliseconds(),
			LastAt:         stats.lastAt,
		}
	}
	for code, n := range mc.rejections {
		resp.Rejections[code] = n
	}
	for phase, at := range mc.phaseTimes {
		resp.PhaseTimes[phase.String()] = at
	}
	return resp
}
