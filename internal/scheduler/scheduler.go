package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// JobFunc is the function signature for scheduled jobs
type JobFunc func(ctx context.Context)

var parser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Validate checks a five-field cron expression
func Validate(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

// Scheduler runs named cron jobs. A job whose previous run is still in
// progress is skipped.
type Scheduler struct {
	cron    *cron.Cron
	jobs    map[string]cron.EntryID // name -> entryID
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	manual  sync.WaitGroup // runs started by RunNow
	stopped bool
}

// New creates a new scheduler
func New() *Scheduler {
	logger := slogLogger{}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		jobs:   make(map[string]cron.EntryID),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler started")
}

// Stop stops scheduling new runs and cancels the context handed to running
// jobs. The returned context is done once every scheduled and manual run
// has returned.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	cronDone := s.cron.Stop()
	s.cancel()

	done, finish := context.WithCancel(context.Background())
	go func() {
		<-cronDone.Done()
		s.manual.Wait()
		finish()
	}()
	return done
}

// AddJob schedules a job, replacing any job with the same name
func (s *Scheduler) AddJob(name, schedule string, job JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, exists := s.jobs[name]; exists {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
	}

	entryID, err := s.cron.AddFunc(schedule, func() { job(s.ctx) })
	if err != nil {
		return err
	}

	s.jobs[name] = entryID
	slog.Debug("added scheduled job", "job", name, "schedule", schedule)

	return nil
}

// RunNow starts the named job outside its schedule. The run goes through the
// same chain as scheduled runs, so it is skipped while another run is active,
// and Stop waits for it.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.stopped {
		return fmt.Errorf("scheduler stopped, not running job %q", name)
	}
	entryID, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("job %q not found", name)
	}

	job := s.cron.Entry(entryID).WrappedJob
	if job == nil {
		return fmt.Errorf("job %q not found", name)
	}

	s.manual.Add(1)
	go func() {
		defer s.manual.Done()
		job.Run()
	}()
	return nil
}

// JobInfo contains information about a scheduled job
type JobInfo struct {
	Name    string
	NextRun time.Time
}

// ListJobs returns information about all scheduled jobs
func (s *Scheduler) ListJobs() map[string]JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]JobInfo, len(s.jobs))
	for name, entryID := range s.jobs {
		entry := s.cron.Entry(entryID)
		result[name] = JobInfo{
			Name:    name,
			NextRun: entry.Next,
		}
	}
	return result
}

// slogLogger adapts slog to cron.Logger
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
