package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Queue manages job queue operations
type Queue struct {
	db *gorm.DB
}

// NewQueue creates a new job queue
func NewQueue(db *gorm.DB) *Queue {
	return &Queue{db: db}
}

// Enqueue adds a new job to the queue
func (q *Queue) Enqueue(ctx context.Context, tenantID string, jobType string, payload interface{}, opts EnqueueOptions) (*Job, error) {
	if opts.Queue == "" {
		opts.Queue = "default"
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize payload: %w", err)
	}

	job := &Job{
		TenantID:   tenantID,
		Queue:      opts.Queue,
		Type:       jobType,
		Payload:    payloadJSON,
		Status:     StatusPending,
		Priority:   opts.Priority,
		MaxRetries: opts.MaxRetries,
	}

	if err := q.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	return job, nil
}

// Dequeue claims the next runnable job of the queue, or returns nil when there is none.
// Pending jobs and retrying jobs whose backoff has elapsed are runnable.
func (q *Queue) Dequeue(ctx context.Context, queueName string) (*Job, error) {
	var job Job

	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("queue = ? AND status IN ?", queueName, []JobStatus{StatusPending, StatusRetrying}).
			Where("scheduled_at IS NULL OR scheduled_at <= ?", time.Now()).
			Order("priority DESC, created_at ASC").
			First(&job).Error
		if err != nil {
			return err
		}

		now := time.Now()
		job.Status = StatusProcessing
		job.StartedAt = &now
		job.Attempts++

		return tx.Save(&job).Error
	})

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}

	return &job, nil
}

// MarkCompleted marks a job as completed
func (q *Queue) MarkCompleted(ctx context.Context, jobID uuid.UUID, result interface{}) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":       StatusCompleted,
		"completed_at": now,
	}

	if result != nil {
		resultJSON, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to serialize result: %w", err)
		}
		updates["result"] = resultJSON
	}

	return q.db.WithContext(ctx).Model(&Job{}).Where("id = ?", jobID).Updates(updates).Error
}

// MarkFailed records the failure and schedules a retry unless the job is out
// of attempts or the error is permanent
func (q *Queue) MarkFailed(ctx context.Context, jobID uuid.UUID, jobErr error) error {
	var job Job
	if err := q.db.WithContext(ctx).First(&job, "id = ?", jobID).Error; err != nil {
		return fmt.Errorf("failed to find job: %w", err)
	}

	now := time.Now()
	job.Error = jobErr.Error()
	job.FailedAt = &now

	if job.Attempts < job.MaxRetries && !IsPermanent(jobErr) {
		scheduleAt := now.Add(calculateBackoff(job.Attempts))
		job.Status = StatusRetrying
		job.ScheduledAt = &scheduleAt
	} else {
		job.Status = StatusFailed
	}

	return q.db.WithContext(ctx).Save(&job).Error
}

// CountByStatus returns the number of jobs per status in a queue
func (q *Queue) CountByStatus(ctx context.Context, queueName string) (map[JobStatus]int64, error) {
	var rows []struct {
		Status JobStatus
		Count  int64
	}
	err := q.db.WithContext(ctx).Model(&Job{}).
		Select("status, COUNT(*) as count").
		Where("queue = ?", queueName).
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}

	counts := make(map[JobStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// DeleteOldJobs deletes completed/failed jobs that finished before the cutoff
func (q *Queue) DeleteOldJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	result := q.db.WithContext(ctx).
		Where("status IN ? AND COALESCE(completed_at, failed_at) < ?", []JobStatus{StatusCompleted, StatusFailed}, cutoff).
		Delete(&Job{})

	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete old jobs: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// calculateBackoff is 2^attempt seconds, capped at one hour
func calculateBackoff(attempt int) time.Duration {
	if attempt > 12 {
		return time.Hour
	}
	backoff := time.Duration(1<<attempt) * time.Second
	if backoff > time.Hour {
		backoff = time.Hour
	}
	return backoff
}
