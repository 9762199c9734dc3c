package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/common"
	"github.com/ternarybob/quill/internal/interfaces"
)

// CleanupJobName is the registered name of the job store sweep
const CleanupJobName = "job_cleanup"

// jobEntry represents a registered job with metadata
type jobEntry struct {
	name        string
	schedule    string
	description string
	handler     func(ctx context.Context) error
	cronID      cron.EntryID
	lastRun     *time.Time
	isRunning   bool
	lastError   string
}

// JobStatus is a snapshot of one registered job
type JobStatus struct {
	Name        string     `json:"name"`
	Schedule    string     `json:"schedule"`
	Description string     `json:"description"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty"`
	IsRunning   bool       `json:"is_running"`
	LastError   string     `json:"last_error,omitempty"`
}

// Service runs housekeeping jobs on cron schedules
type Service struct {
	cron    *cron.Cron
	logger  arbor.ILogger
	jobMu   sync.Mutex // Protects jobs and running
	jobs    map[string]*jobEntry
	running bool
	timeout time.Duration
}

// NewService creates a new scheduler service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		cron:    cron.New(),
		logger:  logger,
		jobs:    make(map[string]*jobEntry),
		timeout: 5 * time.Minute,
	}
}

// RegisterJob registers a handler under name on a 5-field cron schedule
func (s *Service) RegisterJob(name, schedule, description string, handler func(ctx context.Context) error) error {
	if err := common.ValidateSchedule(schedule); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	entry := &jobEntry{
		name:        name,
		schedule:    schedule,
		description: description,
		handler:     handler,
	}

	cronID, err := s.cron.AddFunc(schedule, func() {
		s.executeJob(name)
	})
	if err != nil {
		return fmt.Errorf("failed to add job to cron: %w", err)
	}

	entry.cronID = cronID
	s.jobs[name] = entry

	s.logger.Info().
		Str("job_name", name).
		Str("schedule", schedule).
		Msg("Job registered")

	return nil
}

// RegisterCleanup schedules removal of jobs idle longer than maxAge
func (s *Service) RegisterCleanup(reaper interfaces.JobReaper, schedule string, maxAge time.Duration) error {
	return s.RegisterJob(CleanupJobName, schedule, "Remove idle job records", func(ctx context.Context) error {
		removed, err := reaper.CleanupOldJobs(ctx, maxAge)
		if err != nil {
			return err
		}
		if removed > 0 {
			s.logger.Info().Int("removed", removed).Dur("max_age", maxAge).Msg("Old jobs cleaned up")
		}
		return nil
	})
}

// Start begins firing registered jobs
func (s *Service) Start() error {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	s.cron.Start()
	s.running = true

	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler and waits for running jobs to finish
func (s *Service) Stop() {
	s.jobMu.Lock()
	if !s.running {
		s.jobMu.Unlock()
		return
	}
	s.running = false
	s.jobMu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// IsRunning returns true if scheduler is active
func (s *Service) IsRunning() bool {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	return s.running
}

// RunNow executes a registered job synchronously
func (s *Service) RunNow(name string) error {
	s.jobMu.Lock()
	_, exists := s.jobs[name]
	s.jobMu.Unlock()
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}

	s.executeJob(name)

	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if msg := s.jobs[name].lastError; msg != "" {
		return fmt.Errorf("job %s failed: %s", name, msg)
	}
	return nil
}

// GetJobStatus returns a snapshot of one job
func (s *Service) GetJobStatus(name string) (*JobStatus, error) {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	entry, exists := s.jobs[name]
	if !exists {
		return nil, fmt.Errorf("job %s not found", name)
	}

	var nextRun *time.Time
	if next := s.cron.Entry(entry.cronID).Next; !next.IsZero() {
		nextRun = &next
	}

	return &JobStatus{
		Name:        entry.name,
		Schedule:    entry.schedule,
		Description: entry.description,
		LastRun:     entry.lastRun,
		NextRun:     nextRun,
		IsRunning:   entry.isRunning,
		LastError:   entry.lastError,
	}, nil
}

// executeJob wraps job execution with panic recovery and status tracking.
// A tick that fires while the previous run is still going is skipped.
func (s *Service) executeJob(name string) {
	s.jobMu.Lock()
	entry, exists := s.jobs[name]
	if !exists || entry.isRunning {
		s.jobMu.Unlock()
		return
	}
	entry.isRunning = true
	handler := entry.handler
	s.jobMu.Unlock()

	start := time.Now()
	var runErr error

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("job_name", name).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in job execution")
			runErr = fmt.Errorf("panic: %v", r)
		}

		s.jobMu.Lock()
		entry.isRunning = false
		entry.lastRun = &start
		entry.lastError = ""
		if runErr != nil {
			entry.lastError = runErr.Error()
		}
		s.jobMu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	runErr = handler(ctx)
	if runErr != nil {
		s.logger.Error().Err(runErr).Str("job_name", name).Msg("Scheduled job failed")
		return
	}

	s.logger.Debug().
		Str("job_name", name).
		Dur("duration", time.Since(start)).
		Msg("Scheduled job finished")
}
