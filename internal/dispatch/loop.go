package dispatch

import (
	"context"
	"sync"
)

// Scheduler runs jobs on the host's execution context.
//
// Schedule must be safe to call from any goroutine. It returns false if the
// job was not accepted, for example because the loop has stopped.
type Scheduler interface {
	Schedule(job func()) bool
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(job func()) bool

// Schedule calls f(job).
func (f SchedulerFunc) Schedule(job func()) bool {
	return f(job)
}

// Inline is a Scheduler that runs each job immediately on the caller's
// goroutine. It is meant for tests and single-threaded tools.
var Inline Scheduler = SchedulerFunc(func(job func()) bool {
	job()
	return true
})

// Loop is a single goroutine executing scheduled jobs in FIFO order.
//
// It is the host context for listener callbacks: anything touched only
// from loop jobs needs no further locking between jobs.
type Loop struct {
	jobs     chan func()
	done     chan struct{}
	stopOnce sync.Once

	logger Logger
}

// NewLoop creates a Loop with a job queue of the given capacity.
// Schedule blocks while the queue is full.
func NewLoop(capacity int) *Loop {
	if capacity < 1 {
		capacity = 1
	}
	return &Loop{
		jobs:   make(chan func(), capacity),
		done:   make(chan struct{}),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger used for recovered job panics. Call before Run.
func (l *Loop) SetLogger(logger Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// Schedule queues job for execution. It returns false once the loop has
// stopped; it never blocks after that point.
func (l *Loop) Schedule(job func()) bool {
	if job == nil {
		return false
	}
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.jobs <- job:
		return true
	case <-l.done:
		return false
	}
}

// Run executes jobs until ctx is cancelled. Jobs still queued when ctx is
// cancelled are discarded.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job := <-l.jobs:
			l.run(job)
		}
	}
}

// Done is closed when the loop stops.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

func (l *Loop) run(job func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop job panic recovered", "panic", r)
		}
	}()
	job()
}
