package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Worker processes jobs from a queue
type Worker struct {
	store    JobStore
	config   WorkerConfig
	handlers map[string]JobHandler
	mu       sync.RWMutex
	stopped  bool
	wg       sync.WaitGroup
	logger   zerolog.Logger
}

// NewWorker creates a new job worker
func NewWorker(store JobStore, config WorkerConfig) *Worker {
	defaults := DefaultWorkerConfig()
	if config.Queue == "" {
		config.Queue = defaults.Queue
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	return &Worker{
		store:    store,
		config:   config,
		handlers: make(map[string]JobHandler),
		logger:   log.With().Str("component", "jobs.worker").Str("queue", config.Queue).Logger(),
	}
}

// RegisterHandler registers a job handler for a specific job type
func (w *Worker) RegisterHandler(handler JobHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[handler.GetType()] = handler
	w.logger.Info().Str("type", handler.GetType()).Msg("registered job handler")
}

// Start starts the worker goroutines
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return fmt.Errorf("worker is stopped, cannot restart")
	}
	w.mu.Unlock()

	w.logger.Info().Int("concurrency", w.config.Concurrency).Msg("starting job worker")

	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.runWorker(ctx, i+1)
	}

	return nil
}

// Stop gracefully stops the worker, letting in-flight jobs finish
func (w *Worker) Stop() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()

	w.logger.Info().Msg("stopping job worker")
	w.wg.Wait()
	w.logger.Info().Msg("job worker stopped")
}

// Wait waits for all workers to finish
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) isStopped() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stopped
}

func (w *Worker) runWorker(ctx context.Context, workerID int) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if w.isStopped() {
				return
			}

			// drain the queue before waiting for the next tick
			for !w.isStopped() && ctx.Err() == nil {
				err := w.processNextJob(ctx, workerID)
				if err == nil {
					continue
				}
				if !errors.Is(err, ErrNoJobsAvailable) {
					w.logger.Warn().Err(err).Int("worker", workerID).Msg("worker error")
				}
				break
			}
		}
	}
}

// ErrNoJobsAvailable is returned when no jobs are available
var ErrNoJobsAvailable = errors.New("no jobs available")

func (w *Worker) processNextJob(ctx context.Context, workerID int) error {
	job, err := w.store.Dequeue(ctx, w.config.Queue)
	if err != nil {
		return fmt.Errorf("failed to dequeue job: %w", err)
	}
	if job == nil {
		return ErrNoJobsAvailable
	}

	logger := w.logger.With().
		Int("worker", workerID).
		Str("job_id", job.ID.String()).
		Str("type", job.Type).
		Int("attempt", job.Attempts).
		Logger()

	w.mu.RLock()
	handler, exists := w.handlers[job.Type]
	w.mu.RUnlock()

	if !exists {
		logger.Error().Msg("no handler registered for job type")
		if err := w.store.MarkFailed(ctx, job.ID, Permanent(fmt.Errorf("no handler registered for job type: %s", job.Type))); err != nil {
			logger.Warn().Err(err).Msg("failed to mark job as failed")
		}
		return nil
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	startTime := time.Now()
	err = w.handle(jobCtx, handler, job)
	duration := time.Since(startTime)

	if err != nil {
		logger.Warn().Err(err).Dur("duration", duration).Msg("job failed")
		if markErr := w.store.MarkFailed(ctx, job.ID, err); markErr != nil {
			logger.Warn().Err(markErr).Msg("failed to mark job as failed")
		}
		return nil
	}

	logger.Debug().Dur("duration", duration).Msg("job completed")
	if err := w.store.MarkCompleted(ctx, job.ID, nil); err != nil {
		logger.Warn().Err(err).Msg("failed to mark job as completed")
	}

	return nil
}

func (w *Worker) handle(ctx context.Context, handler JobHandler, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(fmt.Errorf("job handler panicked: %v", r))
		}
	}()
	return handler.Handle(ctx, job)
}

// WorkerPool manages multiple workers across different queues
type WorkerPool struct {
	workers []*Worker
	mu      sync.RWMutex
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool() *WorkerPool {
	return &WorkerPool{
		workers: make([]*Worker, 0),
	}
}

// AddWorker adds a worker to the pool
func (p *WorkerPool) AddWorker(worker *Worker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.workers = append(p.workers, worker)
}

// Start starts all workers in the pool
func (p *WorkerPool) Start(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, worker := range p.workers {
		if err := worker.Start(ctx); err != nil {
			return fmt.Errorf("failed to start worker: %w", err)
		}
	}

	return nil
}

// Stop stops all workers in the pool
func (p *WorkerPool) Stop() {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var wg sync.WaitGroup
	for _, worker := range p.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Stop()
		}(worker)
	}

	wg.Wait()
}
