package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"commit-reveal-voting/models"
)

func TestMetricsCollector(t *testing.T) {
	mc := NewMetricsCollector()
	assert.Empty(t, mc.GetMetrics().PhaseTimes)

	mc.RecordPhase(models.PhaseCommit)
	mc.Record(OpCommit, 2*time.Millisecond, nil)
	mc.Record(OpCommit, 3*time.Millisecond, ErrNotWhitelisted)
	mc.Record(OpReveal, time.Millisecond, ErrCommitMismatch)
	mc.Record(OpReveal, time.Millisecond, errors.New("disk full"))
	mc.RecordPhase(models.PhaseReveal)

	m := mc.GetMetrics()
	assert.Equal(t, 1, m.Operations[OpCommit].Accepted)
	assert.Equal(t, 1, m.Operations[OpCommit].Rejected)
	assert.Equal(t, int64(5), m.Operations[OpCommit].ProcessingTime)
	assert.Equal(t, 2, m.Operations[OpReveal].Rejected)
	assert.Equal(t, map[string]int{
		"NotWhitelisted": 1,
		"CommitMismatch": 1,
		"Internal":       1,
	}, m.Rejections)
	assert.Contains(t, m.PhaseTimes, "commit")
	assert.Contains(t, m.PhaseTimes, "reveal")
}

func TestErrorCode(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), ErrResultsNotReady)

	assert.Equal(t, "ResultsNotReady", ErrorCode(wrapped))
	assert.Equal(t, "NotAuthorized", ErrorCode(ErrNotAuthorized))
	assert.Equal(t, "", ErrorCode(errors.New("other")))
	assert.True(t, IsEngineError(ErrWrongPhase))
	assert.False(t, IsEngineError(nil))
}
