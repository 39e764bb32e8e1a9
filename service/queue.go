package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"commit-reveal-voting/log"
	"commit-reveal-voting/models"
)

var (
	ErrQueueFull    = errors.New("request queue is full")
	ErrQueueStopped = errors.New("request queue is stopped")
)

// QueueProcessor feeds every state-changing request through a single worker,
// so commits, reveals and phase changes take effect in submission order.
type QueueProcessor struct {
	votingService *VotingService
	requestCh     chan *queuedRequest
	processingWg  sync.WaitGroup
	shutdownCh    chan struct{}

	mu      sync.RWMutex
	stopped bool
}

type queuedRequest struct {
	id       string
	ctx      context.Context
	run      func(ctx context.Context) (interface{}, error)
	resultCh chan *ProcessingResult
}

// ProcessingResult contains the result of a queued request
type ProcessingResult struct {
	RequestID string
	Value     interface{}
	Err       error
	Timestamp int64
}

// NewQueueProcessor creates a new queue processor
func NewQueueProcessor(votingService *VotingService, queueSize int) *QueueProcessor {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &QueueProcessor{
		votingService: votingService,
		requestCh:     make(chan *queuedRequest, queueSize),
		shutdownCh:    make(chan struct{}),
	}
}

// Start begins processing queued requests
func (qp *QueueProcessor) Start() {
	qp.processingWg.Add(1)
	go qp.worker()
}

// Stop gracefully shuts down the queue processor. Requests still queued are
// answered with ErrQueueStopped.
func (qp *QueueProcessor) Stop() {
	qp.mu.Lock()
	if qp.stopped {
		qp.mu.Unlock()
		return
	}
	qp.stopped = true
	close(qp.shutdownCh)
	qp.mu.Unlock()

	qp.processingWg.Wait()

	for {
		select {
		case req := <-qp.requestCh:
			qp.finish(req, nil, ErrQueueStopped)
		default:
			return
		}
	}
}

// QueueCommit adds a commit to the processing queue
func (qp *QueueProcessor) QueueCommit(ctx context.Context, req models.CommitRequest) <-chan *ProcessingResult {
	return qp.enqueue(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, qp.votingService.Commit(ctx, req)
	})
}

// QueueReveal adds a reveal to the processing queue
func (qp *QueueProcessor) QueueReveal(ctx context.Context, req models.RevealRequest) <-chan *ProcessingResult {
	return qp.enqueue(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, qp.votingService.Reveal(ctx, req)
	})
}

// QueueAdvance adds a phase change to the processing queue. The result value
// is the phase after the call.
func (qp *QueueProcessor) QueueAdvance(ctx context.Context, req models.AdvanceRequest) <-chan *ProcessingResult {
	return qp.enqueue(ctx, func(ctx context.Context) (interface{}, error) {
		return qp.votingService.AdvancePhase(ctx, req)
	})
}

// Wait blocks until the queued request finishes or ctx is done.
func Wait(ctx context.Context, resultCh <-chan *ProcessingResult) (*ProcessingResult, error) {
	select {
	case res, ok := <-resultCh:
		if !ok {
			return nil, ErrQueueStopped
		}
		return res, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (qp *QueueProcessor) enqueue(ctx context.Context, run func(ctx context.Context) (interface{}, error)) <-chan *ProcessingResult {
	req := &queuedRequest{
		id:       uuid.New().String(),
		ctx:      ctx,
		run:      run,
		resultCh: make(chan *ProcessingResult, 1),
	}

	qp.mu.RLock()
	defer qp.mu.RUnlock()

	if qp.stopped {
		qp.finish(req, nil, ErrQueueStopped)
		return req.resultCh
	}

	select {
	case qp.requestCh <- req:
	default:
		// Queue is full, return immediate error
		log.Warn("Request queue is full, request dropped", zap.String("request", req.id))
		qp.finish(req, nil, ErrQueueFull)
	}
	return req.resultCh
}

func (qp *QueueProcessor) worker() {
	defer qp.processingWg.Done()

	for {
		select {
		case <-qp.shutdownCh:
			return
		case req := <-qp.requestCh:
			if err := req.ctx.Err(); err != nil {
				qp.finish(req, nil, err)
				continue
			}
			value, err := req.run(req.ctx)
			qp.finish(req, value, err)
		}
	}
}

func (qp *QueueProcessor) finish(req *queuedRequest, value interface{}, err error) {
	req.resultCh <- &ProcessingResult{
		RequestID: req.id,
		Value:     value,
		Err:       err,
		Timestamp: time.Now().Unix(),
	}
	close(req.resultCh)
}
