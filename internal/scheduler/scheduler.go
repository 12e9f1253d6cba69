// Package scheduler runs discovery jobs on cron schedules.
// Jobs live in memory for the lifetime of the process; a job that is still
// running when its next tick arrives skips that tick.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/anstrom/netprobe/internal/discovery"
	"github.com/anstrom/netprobe/internal/logging"
)

// RunFunc performs one discovery.
type RunFunc func(ctx context.Context, spec discovery.TargetSpec) (*discovery.Result, error)

// ResultHandler receives the result of every successful run.
type ResultHandler func(job JobStatus, result *discovery.Result)

// Scheduler manages scheduled discovery jobs.
type Scheduler struct {
	cron     *cron.Cron
	run      RunFunc
	onResult ResultHandler
	logger   *logging.Logger
	now      func() time.Time
	jobs     map[uuid.UUID]*ScheduledJob
	mu       sync.RWMutex
	running  bool
	ctx      context.Context
	cancel   context.CancelFunc
}

// ScheduledJob is one registered job and its run state.
type ScheduledJob struct {
	ID        uuid.UUID
	Name      string
	CronExpr  string
	Spec      discovery.TargetSpec
	CronID    cron.EntryID
	schedule  cron.Schedule
	LastRun   time.Time
	Running   bool
	Runs      int
	Failures  int
	LastError string
}

// JobStatus is a point-in-time copy of a job for display.
type JobStatus struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Cron      string    `json:"cron"`
	Network   string    `json:"network"`
	LastRun   time.Time `json:"last_run,omitempty"`
	NextRun   time.Time `json:"next_run"`
	Running   bool      `json:"running"`
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
	LastError string    `json:"last_error,omitempty"`
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithResultHandler sets the callback for finished runs.
func WithResultHandler(h ResultHandler) Option {
	return func(s *Scheduler) { s.onResult = h }
}

// NewScheduler creates a new job scheduler.
func NewScheduler(run RunFunc, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		cron:   cron.New(),
		run:    run,
		logger: logging.Default(),
		now:    time.Now,
		jobs:   make(map[uuid.UUID]*ScheduledJob),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("scheduler")
	return s
}

// Start begins the scheduler.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("Scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop stops the scheduler, cancels running discoveries and waits for
// them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// AddJob registers a discovery of spec on cronExpr. Standard five-field
// expressions and descriptors such as "@every 1h" are accepted.
func (s *Scheduler) AddJob(name, cronExpr string, spec discovery.TargetSpec) (*JobStatus, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}

	job := &ScheduledJob{
		ID:       uuid.New(),
		Name:     name,
		CronExpr: cronExpr,
		Spec:     spec,
		schedule: schedule,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job.CronID = s.cron.Schedule(schedule, cron.FuncJob(s.wrap(job.ID)))
	s.jobs[job.ID] = job

	s.logger.Info("Added discovery job",
		"job", name,
		"cron", cronExpr,
		"network", spec.Network)
	status := s.statusLocked(job)
	return &status, nil
}

// RemoveJob removes a scheduled job.
func (s *Scheduler) RemoveJob(jobID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("job not found")
	}

	s.cron.Remove(job.CronID)
	delete(s.jobs, jobID)

	s.logger.Info("Removed discovery job", "job", job.Name)
	return nil
}

// RunNow runs a job immediately in the calling goroutine, outside its
// schedule.
func (s *Scheduler) RunNow(jobID uuid.UUID) {
	s.wrap(jobID)()
}

// Jobs returns a snapshot of all jobs ordered by name.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, s.statusLocked(job))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) statusLocked(job *ScheduledJob) JobStatus {
	return JobStatus{
		ID:        job.ID,
		Name:      job.Name,
		Cron:      job.CronExpr,
		Network:   job.Spec.Network,
		LastRun:   job.LastRun,
		NextRun:   job.schedule.Next(s.now()),
		Running:   job.Running,
		Runs:      job.Runs,
		Failures:  job.Failures,
		LastError: job.LastError,
	}
}

// wrap returns the cron callback for a job. A panic inside a run is
// recovered and counted as a failure.
func (s *Scheduler) wrap(jobID uuid.UUID) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Discovery job panicked", "job_id", jobID.String(), "panic", r)
				s.finishJob(jobID, fmt.Errorf("panic: %v", r))
			}
		}()
		s.executeJob(jobID)
	}
}

// executeJob runs one discovery for a job.
func (s *Scheduler) executeJob(jobID uuid.UUID) {
	job, ok := s.prepareJobExecution(jobID)
	if !ok {
		return
	}

	s.logger.Info("Executing discovery job", "job", job.Name, "network", job.Spec.Network)

	result, err := s.run(s.ctx, job.Spec)
	if err != nil {
		s.logger.Error("Discovery job failed", "job", job.Name, "error", err)
		s.finishJob(jobID, err)
		return
	}

	status := s.finishJob(jobID, nil)
	if s.onResult != nil {
		s.onResult(status, result)
	}
	s.logger.Info("Discovery job completed",
		"job", job.Name,
		"scan_id", result.Metadata.ScanID,
		"devices", result.Metadata.TotalDevices)
}

// prepareJobExecution marks a job as running. It reports false when the
// job is gone or still busy with the previous tick.
func (s *Scheduler) prepareJobExecution(jobID uuid.UUID) (ScheduledJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return ScheduledJob{}, false
	}
	if job.Running {
		s.logger.Warn("Discovery job is already running, skipping", "job", job.Name)
		return ScheduledJob{}, false
	}

	job.Running = true
	job.LastRun = s.now()
	return *job, true
}

// finishJob clears the running flag and records the outcome.
func (s *Scheduler) finishJob(jobID uuid.UUID, err error) JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return JobStatus{ID: jobID}
	}
	if !job.Running {
		return s.statusLocked(job)
	}
	job.Running = false
	job.Runs++
	if err != nil {
		job.Failures++
		job.LastError = err.Error()
	} else {
		job.LastError = ""
	}
	return s.statusLocked(job)
}
