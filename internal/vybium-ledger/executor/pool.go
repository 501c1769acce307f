// Package executor runs proofs on a fixed pool of workers. Each worker owns
// one process.Process, built the first time the worker takes a job and kept
// for the worker's lifetime, so processes are never shared.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/ledger"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/metrics"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/process"
)

// ErrPoolClosed is returned for work submitted after Close.
var ErrPoolClosed = errors.New("executor: pool is closed")

type result struct {
	tx  *ledger.Transaction
	err error
}

type job struct {
	ctx    context.Context
	req    *ExecuteRequest
	result chan<- result
}

// Pool is a fixed set of prover workers fed from a bounded queue.
type Pool struct {
	jobs       chan *job
	newProcess func() (*process.Process, error)
	metrics    *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	queued atomic.Int64
	built  atomic.Int64
}

// Option configures a Pool.
type Option func(*Pool)

// WithMetrics reports queue depth, busy workers and proof outcomes to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pool) {
		p.metrics = m
	}
}

// WithProcessOptions passes opts to every worker's LoadProcess.
func WithProcessOptions(opts ...process.Option) Option {
	return func(p *Pool) {
		p.newProcess = func() (*process.Process, error) {
			return process.LoadProcess(opts...)
		}
	}
}

// NewPool starts workers goroutines reading from a queue of queueDepth jobs.
func NewPool(workers, queueDepth int, opts ...Option) (*Pool, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("workers must be positive, got %d", workers)
	}
	if queueDepth < 0 {
		return nil, fmt.Errorf("queue depth must not be negative, got %d", queueDepth)
	}
	p := &Pool{
		jobs: make(chan *job, queueDepth),
		newProcess: func() (*process.Process, error) {
			return process.LoadProcess()
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p, nil
}

// Execute hands req to a worker and waits for the transaction. If ctx ends
// first the caller gets ctx's error; a proof already running finishes on
// its worker and its result is dropped.
func (p *Pool) Execute(ctx context.Context, req *ExecuteRequest) (*ledger.Transaction, error) {
	if req == nil || req.FunctionAuthorization == nil {
		return nil, errs.New(errs.MalformedAuthorization, "execute request has no function authorization")
	}
	done := make(chan result, 1)
	j := &job{ctx: ctx, req: req, result: done}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrPoolClosed
	}
	p.setQueued(p.queued.Add(1))
	select {
	case p.jobs <- j:
		p.mu.RUnlock()
	case <-ctx.Done():
		p.setQueued(p.queued.Add(-1))
		p.mu.RUnlock()
		return nil, ctx.Err()
	}

	select {
	case r := <-done:
		return r.tx, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting work, lets queued jobs drain and waits for the
// workers to exit.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// ProcessesBuilt returns how many workers have built their process.
func (p *Pool) ProcessesBuilt() int {
	return int(p.built.Load())
}

func (p *Pool) worker() {
	defer p.wg.Done()
	var proc *process.Process
	for j := range p.jobs {
		p.setQueued(p.queued.Add(-1))
		if err := j.ctx.Err(); err != nil {
			j.result <- result{err: err}
			continue
		}
		if proc == nil {
			var err error
			if proc, err = p.newProcess(); err != nil {
				j.result <- result{err: fmt.Errorf("load process: %w", err)}
				continue
			}
			p.built.Add(1)
		}
		j.result <- p.run(proc, j)
	}
}

func (p *Pool) run(proc *process.Process, j *job) result {
	if p.metrics != nil {
		p.metrics.BusyWorkers.Inc()
		defer p.metrics.BusyWorkers.Dec()
	}
	start := time.Now()
	tx, err := proc.Execute(j.ctx, j.req.FunctionAuthorization, j.req.FeeAuthorization, j.req.Query())
	outcome := "ok"
	if err != nil {
		outcome = errs.CodeOf(err).String()
	}
	p.metrics.ObserveProof(outcome, time.Since(start))
	return result{tx: tx, err: err}
}

func (p *Pool) setQueued(n int64) {
	if p.metrics != nil {
		p.metrics.QueueDepth.Set(float64(n))
	}
}
