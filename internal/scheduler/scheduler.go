package scheduler

import (
	"sync"
	"time"

	pkglogger "github.com/vaporchat/vapor-backend/pkg/logger"
)

// PeriodicTask is a registered recurring job
type PeriodicTask struct {
	Name      string
	Interval  time.Duration
	Handler   func() error
	LastRun   time.Time
	NextRun   time.Time
	RunCount  int64
	LastError error
}

// Scheduler owns all timer-driven work in the process: recurring tasks
// (the expiry sweep) and keyed one-shot jobs (grace-delayed deletions).
// It is started on service init and stopped on shutdown; the handle is
// passed explicitly to anything that schedules or cancels jobs, so there
// is no ambient global timer state.
type Scheduler struct {
	tasks    []*PeriodicTask
	oneShots map[string]*time.Timer
	mu       sync.Mutex
	tick     time.Duration
	stop     chan struct{}
	stopped  bool
	wg       sync.WaitGroup
}

// New creates a scheduler. tick bounds how late a periodic task can fire.
func New(tick time.Duration) *Scheduler {
	if tick <= 0 {
		tick = time.Second
	}
	return &Scheduler{
		oneShots: make(map[string]*time.Timer),
		tick:     tick,
		stop:     make(chan struct{}),
	}
}

// Register adds a recurring task. First run happens one interval from now.
func (s *Scheduler) Register(name string, interval time.Duration, handler func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = append(s.tasks, &PeriodicTask{
		Name:     name,
		Interval: interval,
		Handler:  handler,
		NextRun:  time.Now().Add(interval),
	})

	pkglogger.Info("Scheduled task registered: %s (every %s)", name, interval)
}

// ScheduleOnce queues fn to run once after delay. Keys dedup: while a job
// for the same key is pending, further calls are no-ops and return false.
func (s *Scheduler) ScheduleOnce(key string, delay time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}
	if _, pending := s.oneShots[key]; pending {
		return false
	}

	s.oneShots[key] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.oneShots, key)
		s.mu.Unlock()
		fn()
	})
	return true
}

// Cancel stops a pending one-shot job. Returns true if one was pending.
// Cancellation is an optimization only: jobs that fire anyway must be
// written to no-op against already-done work.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.oneShots[key]
	if !ok {
		return false
	}
	delete(s.oneShots, key)
	return timer.Stop()
}

// Pending reports whether a one-shot job is queued for key
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.oneShots[key]
	return ok
}

// Start launches the periodic loop in a background goroutine
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case now := <-ticker.C:
				s.runDue(now)
			}
		}
	}()
	pkglogger.Info("Scheduler started")
}

// Stop halts the periodic loop and drops all pending one-shot jobs
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for key, timer := range s.oneShots {
		timer.Stop()
		delete(s.oneShots, key)
	}
	s.mu.Unlock()

	close(s.stop)
	s.wg.Wait()
	pkglogger.Info("Scheduler stopped")
}

// runDue executes periodic tasks whose NextRun has passed
func (s *Scheduler) runDue(now time.Time) {
	s.mu.Lock()
	due := make([]*PeriodicTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		if !now.Before(t.NextRun) {
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	for _, task := range due {
		if err := task.Handler(); err != nil {
			pkglogger.Error("Scheduled task error [%s]: %v", task.Name, err)
			task.LastError = err
		} else {
			task.LastError = nil
		}

		task.LastRun = now
		task.NextRun = now.Add(task.Interval)
		task.RunCount++
	}
}
