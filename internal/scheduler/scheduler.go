// Package scheduler fires the staleness sweep at configured times of day.
// It is an in-process complement to the external cron endpoint: deployments
// without a cron service still get periodic sweeps.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"finsync/internal/models"
)

// ScheduleTime represents a specific time of day when the sweep should run.
type ScheduleTime struct {
	Hour   int
	Minute int
}

// String returns the time in HH:MM format.
func (st ScheduleTime) String() string {
	return fmt.Sprintf("%02d:%02d", st.Hour, st.Minute)
}

// ParseScheduleTime parses a time string in HH:MM format.
func ParseScheduleTime(s string) (ScheduleTime, error) {
	var hour, minute int
	_, err := fmt.Sscanf(s, "%d:%d", &hour, &minute)
	if err != nil {
		return ScheduleTime{}, fmt.Errorf("invalid time format (expected HH:MM): %w", err)
	}

	if hour < 0 || hour > 23 {
		return ScheduleTime{}, fmt.Errorf("invalid hour: %d (must be 0-23)", hour)
	}
	if minute < 0 || minute > 59 {
		return ScheduleTime{}, fmt.Errorf("invalid minute: %d (must be 0-59)", minute)
	}

	return ScheduleTime{Hour: hour, Minute: minute}, nil
}

// SweepRunner runs one staleness sweep pass.
type SweepRunner interface {
	Run(ctx context.Context) (*models.SweepSummary, error)
}

// Scheduler triggers the sweep at the configured times. Runs are sequential:
// a tick that lands while a sweep is still in flight is skipped, since browser
// sessions cannot be shared between overlapping sweeps anyway.
type Scheduler struct {
	sweep         SweepRunner
	scheduleTimes []ScheduleTime
	runOnStartup  bool

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	running     bool
	lastRunDate string
	mu          sync.Mutex
}

// Config holds configuration for the scheduler.
type Config struct {
	ScheduleTimes []string
	RunOnStartup  bool
}

// New creates a scheduler driving the given sweep.
func New(sweep SweepRunner, config Config) (*Scheduler, error) {
	scheduleTimes := make([]ScheduleTime, 0, len(config.ScheduleTimes))
	for _, timeStr := range config.ScheduleTimes {
		st, err := ParseScheduleTime(timeStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse schedule time %q: %w", timeStr, err)
		}
		scheduleTimes = append(scheduleTimes, st)
	}

	if len(scheduleTimes) == 0 {
		return nil, fmt.Errorf("at least one schedule time is required")
	}

	ctx, cancel := context.WithCancel(context.Background())

	log.Printf("Scheduler initialized with %d schedule times: %v", len(scheduleTimes), config.ScheduleTimes)

	return &Scheduler{
		sweep:         sweep,
		scheduleTimes: scheduleTimes,
		runOnStartup:  config.RunOnStartup,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Start launches the scheduling loop.
func (s *Scheduler) Start() {
	log.Println("Starting scheduler...")

	if s.runOnStartup {
		log.Println("Scheduler: Running initial sweep on startup")
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runSweep()
		}()
	}

	s.wg.Add(1)
	go s.scheduleLoop()

	log.Println("Scheduler started")
}

// scheduleLoop is the main scheduling loop.
func (s *Scheduler) scheduleLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	log.Println("Scheduler loop started, checking every minute")

	for {
		select {
		case <-s.ctx.Done():
			log.Println("Scheduler loop: Context cancelled, shutting down")
			return

		case now := <-ticker.C:
			if s.shouldRun(now) {
				log.Printf("Scheduler: Triggered at %s", now.Format("15:04"))
				s.runSweep()
			}
		}
	}
}

// shouldRun checks if the current time matches any scheduled time. The same
// minute never fires twice.
func (s *Scheduler) shouldRun(now time.Time) bool {
	currentHour := now.Hour()
	currentMinute := now.Minute()
	currentKey := fmt.Sprintf("%s-%02d:%02d", now.Format("2006-01-02"), currentHour, currentMinute)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastRunDate == currentKey {
		return false
	}

	for _, st := range s.scheduleTimes {
		if currentHour == st.Hour && currentMinute == st.Minute {
			s.lastRunDate = currentKey
			return true
		}
	}

	return false
}

// runSweep executes one sweep pass unless one is already in flight.
func (s *Scheduler) runSweep() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Println("Scheduler: Sweep already in flight, skipping this trigger")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	summary, err := s.sweep.Run(s.ctx)
	if err != nil {
		log.Printf("Scheduler: Sweep failed: %v", err)
		return
	}
	log.Printf("Scheduler: Sweep done (users=%d synced=%d errors=%d)",
		summary.UsersProcessed, summary.TotalSynced, summary.TotalErrors)
}

// TriggerNow manually triggers a sweep immediately.
func (s *Scheduler) TriggerNow() {
	log.Println("Scheduler: Manual trigger")
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runSweep()
	}()
}

// GetNextScheduledTime returns the next scheduled run time.
func (s *Scheduler) GetNextScheduledTime() time.Time {
	now := time.Now()

	for _, st := range s.scheduleTimes {
		scheduledTime := time.Date(now.Year(), now.Month(), now.Day(), st.Hour, st.Minute, 0, 0, now.Location())
		if scheduledTime.After(now) {
			return scheduledTime
		}
	}

	if len(s.scheduleTimes) > 0 {
		st := s.scheduleTimes[0]
		tomorrow := now.AddDate(0, 0, 1)
		return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), st.Hour, st.Minute, 0, 0, now.Location())
	}

	return time.Time{}
}

// Shutdown gracefully stops the scheduler.
func (s *Scheduler) Shutdown(timeout time.Duration) {
	log.Println("Scheduler: Initiating graceful shutdown...")

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Scheduler: Shutdown complete")
	case <-time.After(timeout):
		log.Println("Scheduler: Timeout waiting for in-flight sweep to stop")
	}
}
