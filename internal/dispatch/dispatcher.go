package dispatch

import (
	"maps"
	"reflect"
	"sync"

	"github.com/nerrad567/duuxlink/internal/payload"
)

// Listener receives decoded state snapshots.
//
// Listeners are identified by value equality, so implementations should be
// pointer types. The snapshot passed in is the listener's own copy.
type Listener interface {
	HandleSnapshot(snapshot payload.Snapshot)
}

// ListenerFunc adapts a function to Listener. Function values are not
// comparable, so wrap it in a pointer before registering:
//
//	fn := dispatch.ListenerFunc(func(s payload.Snapshot) { ... })
//	d.Register(&fn)
type ListenerFunc func(snapshot payload.Snapshot)

// HandleSnapshot calls f(snapshot).
func (f *ListenerFunc) HandleSnapshot(snapshot payload.Snapshot) {
	(*f)(snapshot)
}

// Logger interface for optional logging support.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Error(string, ...any) {}

// Dispatcher fans snapshots out to a dynamic set of listeners.
//
// Thread Safety:
//   - Register, Unregister, Notify and Clear are safe for concurrent use.
//   - The listener slice is replaced, never mutated, so Notify iterates a
//     stable copy without holding the lock.
type Dispatcher struct {
	scheduler Scheduler

	mu        sync.Mutex
	listeners []Listener
	index     map[Listener]struct{}

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a Dispatcher that schedules deliveries on s.
func New(s Scheduler) *Dispatcher {
	return &Dispatcher{
		scheduler: s,
		index:     make(map[Listener]struct{}),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger used for recovered listener panics.
func (d *Dispatcher) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	d.loggerMu.Lock()
	d.logger = logger
	d.loggerMu.Unlock()
}

func (d *Dispatcher) getLogger() Logger {
	d.loggerMu.RLock()
	defer d.loggerMu.RUnlock()
	return d.logger
}

// Register adds l to the listener set.
//
// Returns false if l is nil, not comparable, or already registered.
func (d *Dispatcher) Register(l Listener) bool {
	if l == nil || !reflect.TypeOf(l).Comparable() {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.index[l]; exists {
		return false
	}
	d.index[l] = struct{}{}

	next := make([]Listener, len(d.listeners), len(d.listeners)+1)
	copy(next, d.listeners)
	d.listeners = append(next, l)

	return true
}

// Unregister removes l. Removing a listener that is not registered is a no-op.
func (d *Dispatcher) Unregister(l Listener) {
	if l == nil || !reflect.TypeOf(l).Comparable() {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.index[l]; !exists {
		return
	}
	delete(d.index, l)

	next := make([]Listener, 0, len(d.listeners)-1)
	for _, existing := range d.listeners {
		if existing != l {
			next = append(next, existing)
		}
	}
	d.listeners = next
}

// IsRegistered reports whether l is currently registered.
func (d *Dispatcher) IsRegistered(l Listener) bool {
	if l == nil || !reflect.TypeOf(l).Comparable() {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, exists := d.index[l]
	return exists
}

// Len returns the number of registered listeners.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners)
}

// Clear removes every listener. Jobs already scheduled become no-ops.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	d.listeners = nil
	d.index = make(map[Listener]struct{})
	d.mu.Unlock()
}

// Notify schedules delivery of snapshot to every registered listener and
// returns the number of jobs accepted by the scheduler.
//
// Each listener gets its own copy of the snapshot.
func (d *Dispatcher) Notify(snapshot payload.Snapshot) int {
	d.mu.Lock()
	listeners := d.listeners
	d.mu.Unlock()

	scheduled := 0
	for _, l := range listeners {
		job := d.deliverJob(l, maps.Clone(snapshot))
		if d.scheduler.Schedule(job) {
			scheduled++
		}
	}

	if scheduled < len(listeners) {
		d.getLogger().Debug("snapshot delivery not scheduled",
			"listeners", len(listeners),
			"scheduled", scheduled,
		)
	}

	return scheduled
}

// deliverJob builds the job for one listener. The registration check runs
// at delivery time so an unregister that races the notify wins.
func (d *Dispatcher) deliverJob(l Listener, snapshot payload.Snapshot) func() {
	return func() {
		if !d.IsRegistered(l) {
			return
		}

		defer func() {
			if r := recover(); r != nil {
				d.getLogger().Error("listener panic recovered",
					"listener", reflect.TypeOf(l).String(),
					"panic", r,
				)
			}
		}()

		l.HandleSnapshot(snapshot)
	}
}
