package jobs

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Service provides high-level job queue functionality
type Service struct {
	queue      *Queue
	workerPool *WorkerPool
}

// NewService creates a new job service
func NewService(db *gorm.DB) *Service {
	return &Service{
		queue:      NewQueue(db),
		workerPool: NewWorkerPool(),
	}
}

// Enqueue adds a new job to the queue
func (s *Service) Enqueue(ctx context.Context, tenantID string, jobType string, payload interface{}, opts ...EnqueueOptions) (*Job, error) {
	options := DefaultEnqueueOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	return s.queue.Enqueue(ctx, tenantID, jobType, payload, options)
}

// RegisterWorker creates and registers a worker for a queue
func (s *Service) RegisterWorker(config WorkerConfig, handlers ...JobHandler) *Worker {
	worker := NewWorker(s.queue, config)

	for _, handler := range handlers {
		worker.RegisterHandler(handler)
	}

	s.workerPool.AddWorker(worker)
	return worker
}

// StartWorkers starts all registered workers
func (s *Service) StartWorkers(ctx context.Context) error {
	return s.workerPool.Start(ctx)
}

// StopWorkers stops all workers
func (s *Service) StopWorkers() {
	s.workerPool.Stop()
}

// QueueStats returns job counts per status for a queue
func (s *Service) QueueStats(ctx context.Context, queueName string) (map[JobStatus]int64, error) {
	return s.queue.CountByStatus(ctx, queueName)
}

// Cleanup deletes old completed/failed jobs
func (s *Service) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.queue.DeleteOldJobs(ctx, olderThan)
}
