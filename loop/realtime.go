package loop

import (
	"runtime"
	"runtime/debug"
	"sync"
)

// BaselinePriority is the level a process starts from. Requests at or
// below it change nothing.
const BaselinePriority = 20

// ApplyFunc switches the calling thread to a real-time policy.
type ApplyFunc func(cores []int, priority int) error

// Realtime tracks the real-time level of a process. The level only goes
// up.
type Realtime struct {
	lock   sync.Mutex
	level  int
	apply  ApplyFunc
	stopGC bool

	lockThread   func()
	unlockThread func()
	setGCPercent func(int) int
}

// A RealtimeOption tunes a tracker.
type RealtimeOption func(*Realtime)

// WithGCStopped turns the garbage collector off the first time the level
// rises, so that collection cycles cannot delay a real-time loop. Only
// processes with a bounded heap should use it.
func WithGCStopped() RealtimeOption {
	return func(r *Realtime) {
		r.stopGC = true
	}
}

// NewRealtime creates a tracker that applies levels through apply.
func NewRealtime(apply ApplyFunc, opts ...RealtimeOption) *Realtime {
	r := &Realtime{
		level:        BaselinePriority,
		apply:        apply,
		lockThread:   runtime.LockOSThread,
		unlockThread: runtime.UnlockOSThread,
		setGCPercent: debug.SetGCPercent,
	}

	for _, o := range opts {
		o(r)
	}

	return r
}

// Level returns the current level.
func (r *Realtime) Level() int {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.level
}

// Configure raises the level to priority and pins the calling goroutine's
// thread to cores. It reports whether anything changed. On failure the
// goroutine is released from its thread again.
func (r *Realtime) Configure(cores []int, priority int) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if priority <= r.level {
		return false, nil
	}

	r.lockThread()

	if err := r.apply(cores, priority); err != nil {
		r.unlockThread()
		return false, err
	}

	if r.stopGC && r.level == BaselinePriority {
		r.setGCPercent(-1)
	}

	r.level = priority

	return true, nil
}

var defaultRealtime = NewRealtime(applyFIFO)

// ConfigRealtime configures the process-wide level with SCHED_FIFO.
func ConfigRealtime(cores []int, priority int) (bool, error) {
	return defaultRealtime.Configure(cores, priority)
}
