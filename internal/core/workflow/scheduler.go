package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Purger deletes records older than a given age and returns how many it removed
type Purger func(ctx context.Context, olderThan time.Duration) (int64, error)

// Scheduler runs housekeeping tasks on cron schedules
type Scheduler struct {
	cron    *cron.Cron
	tasks   map[string]cron.EntryID // name -> entry_id
	tasksMu sync.RWMutex
	timeout time.Duration
	logger  zerolog.Logger
}

// NewScheduler creates a scheduler. Schedules use six fields (with seconds).
func NewScheduler() *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		tasks:   make(map[string]cron.EntryID),
		timeout: 10 * time.Minute,
		logger:  log.With().Str("component", "workflow.scheduler").Logger(),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("tasks", len(s.Tasks())).Msg("scheduler started")
}

// Stop stops the scheduler and returns a context that is done once running tasks finish
func (s *Scheduler) Stop() context.Context {
	ctx := s.cron.Stop()
	s.logger.Info().Msg("scheduler stopped")
	return ctx
}

// AddTask registers (or replaces) a named task
func (s *Scheduler) AddTask(name, schedule string, task func(ctx context.Context) error) error {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()

	if entryID, exists := s.tasks[name]; exists {
		s.cron.Remove(entryID)
		delete(s.tasks, name)
	}

	entryID, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		start := time.Now()
		if err := task(ctx); err != nil {
			s.logger.Error().Err(err).Str("task", name).Msg("scheduled task failed")
			return
		}
		s.logger.Debug().Str("task", name).Dur("duration", time.Since(start)).Msg("scheduled task finished")
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.tasks[name] = entryID
	s.logger.Info().Str("task", name).Str("schedule", schedule).Msg("task scheduled")
	return nil
}

// AddRetention schedules a purge of records older than maxAge
func (s *Scheduler) AddRetention(name, schedule string, maxAge time.Duration, purge Purger) error {
	if maxAge <= 0 {
		return fmt.Errorf("retention for %s must be positive", name)
	}
	return s.AddTask(name, schedule, func(ctx context.Context) error {
		deleted, err := purge(ctx, maxAge)
		if err != nil {
			return err
		}
		s.logger.Info().Str("task", name).Int64("deleted", deleted).Msg("retention sweep finished")
		return nil
	})
}

// RemoveTask removes a task from the scheduler
func (s *Scheduler) RemoveTask(name string) {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()

	if entryID, exists := s.tasks[name]; exists {
		s.cron.Remove(entryID)
		delete(s.tasks, name)
	}
}

// Tasks returns the names of all scheduled tasks
func (s *Scheduler) Tasks() []string {
	s.tasksMu.RLock()
	defer s.tasksMu.RUnlock()

	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	return names
}
