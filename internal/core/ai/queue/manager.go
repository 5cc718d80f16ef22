// Package queue bounds the number of completions in flight.
package queue

import (
	"context"
	"sync"
	"sync/atomic"

	"allergen-engine/internal/core/ai/provider"
	"allergen-engine/internal/pkg/common"

	"go.uber.org/zap"
)

// Request is one queued completion.
type Request struct {
	Context context.Context
	Request *provider.Request
	Result  chan Result
}

// Result is what a worker produced.
type Result struct {
	Response *provider.Response
	Error    error
}

// Status reports queue occupancy.
type Status struct {
	QueueLength    int   `json:"queue_length"`
	ProcessedCount int64 `json:"processed_count"`
	MaxQueueSize   int   `json:"max_queue_size"`
	Workers        int   `json:"workers"`
}

// Options sizes the queue.
type Options struct {
	Workers int
	MaxSize int
}

// Manager feeds queued requests to a fixed set of workers.
type Manager struct {
	provider  provider.Provider
	opts      Options
	queue     chan *Request
	done      chan struct{}
	processed int64
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
}

// NewManager creates a Manager and starts its workers.
func NewManager(p provider.Provider, opts Options) *Manager {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.MaxSize < 1 {
		opts.MaxSize = 1
	}
	m := &Manager{
		provider: p,
		opts:     opts,
		queue:    make(chan *Request, opts.MaxSize),
		done:     make(chan struct{}),
	}
	for i := 0; i < opts.Workers; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}
	return m
}

// Enqueue adds req without blocking. It fails with ErrQueueFull when the
// buffer is full and ErrQueueClosed after Close.
func (m *Manager) Enqueue(ctx context.Context, req *provider.Request) (<-chan Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, common.ErrQueueClosed
	}

	queueReq := &Request{
		Context: ctx,
		Request: req,
		Result:  make(chan Result, 1),
	}
	select {
	case m.queue <- queueReq:
		common.LogDebug("request enqueued",
			zap.Int("queue_length", len(m.queue)),
			zap.Int("max_queue_size", m.opts.MaxSize),
		)
		return queueReq.Result, nil
	default:
		return nil, common.ErrQueueFull
	}
}

// Do enqueues req and waits for its result.
func (m *Manager) Do(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	ch, err := m.Enqueue(ctx, req)
	if err != nil {
		return nil, err
	}
	select {
	case res := <-ch:
		return res.Response, res.Error
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) worker(id int) {
	defer m.wg.Done()
	for {
		select {
		case req, ok := <-m.queue:
			if !ok {
				return
			}
			m.process(req)
		case <-m.done:
			common.LogDebug("queue worker stopped", zap.Int("worker", id))
			return
		}
	}
}

func (m *Manager) process(req *Request) {
	defer atomic.AddInt64(&m.processed, 1)

	if err := req.Context.Err(); err != nil {
		req.Result <- Result{Error: err}
		return
	}
	resp, err := m.provider.Generate(req.Context, req.Request)
	req.Result <- Result{Response: resp, Error: err}
}

// GetQueueStatus returns current occupancy.
func (m *Manager) GetQueueStatus() *Status {
	return &Status{
		QueueLength:    len(m.queue),
		ProcessedCount: atomic.LoadInt64(&m.processed),
		MaxQueueSize:   m.opts.MaxSize,
		Workers:        m.opts.Workers,
	}
}

// Close stops accepting requests and waits for the workers. Requests still
// buffered are answered with ErrQueueClosed.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.done)
	m.mu.Unlock()

	m.wg.Wait()
	for {
		select {
		case req := <-m.queue:
			req.Result <- Result{Error: common.ErrQueueClosed}
		default:
			return
		}
	}
}
