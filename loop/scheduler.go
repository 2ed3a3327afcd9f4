// Package loop paces the process loop of a daemon or an app.
//
// Every writer and paced reader owns a Trigger and calls KeepTime once per
// loop iteration. The scheduler runs rounds at a base tick equal to the GCD
// of all requested periods. A trigger with period p is due once every
// p/tick rounds. When the process falls behind, the scheduler skips the
// missed ticks and makes every trigger due at once.
package loop

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// InitialTick is the base tick before any period is requested.
const InitialTick = 100

// ErrInvalidPeriod is returned for periods that are not positive.
var ErrInvalidPeriod = errors.New("loop: period must be a positive number of ms")

// Trigger is the phase counter of one stream.
type Trigger struct {
	s       *Scheduler
	phase   int
	divisor int
	period  int
}

// Due reports whether the stream fires this round.
func (t *Trigger) Due() bool {
	t.s.lock.Lock()
	defer t.s.lock.Unlock()

	return t.phase == 0
}

// Phase returns the number of rounds since the stream last fired.
func (t *Trigger) Phase() int {
	t.s.lock.Lock()
	defer t.s.lock.Unlock()

	return t.phase
}

// Divisor returns how many rounds separate two firings.
func (t *Trigger) Divisor() int {
	t.s.lock.Lock()
	defer t.s.lock.Unlock()

	return t.divisor
}

// Period returns the requested period in ms, 0 if none was requested.
func (t *Trigger) Period() int {
	t.s.lock.Lock()
	defer t.s.lock.Unlock()

	return t.period
}

// Reset makes the stream due in the next round it is checked.
func (t *Trigger) Reset() {
	t.s.lock.Lock()
	defer t.s.lock.Unlock()

	t.phase = 0
}

// Scheduler coordinates the triggers of one process.
type Scheduler struct {
	lock sync.Mutex

	clock    Clock
	pacing   bool
	tick     int
	periods  map[int]struct{}
	triggers []*Trigger

	calls    int
	rounds   uint64
	lagged   uint64
	started  bool
	deadline time.Time
}

// Builder creates schedulers.
type Builder struct {
	clock  Clock
	pacing bool
}

// MakeBuilder returns a builder with the wall clock and pacing on.
func MakeBuilder() Builder {
	return Builder{pacing: true}
}

// WithClock sets the time source.
func (b Builder) WithClock(c Clock) Builder {
	b.clock = c
	return b
}

// WithoutPacing makes rounds end without sleeping. Phases still advance.
func (b Builder) WithoutPacing() Builder {
	b.pacing = false
	return b
}

// Build creates a scheduler.
func (b Builder) Build() *Scheduler {
	c := b.clock
	if c == nil {
		c = WallClock()
	}

	return &Scheduler{
		clock:   c,
		pacing:  b.pacing,
		tick:    InitialTick,
		periods: make(map[int]struct{}),
	}
}

var (
	defaultLock      sync.Mutex
	defaultScheduler *Scheduler
)

// Default returns the process-wide scheduler, creating it on first use.
func Default() *Scheduler {
	defaultLock.Lock()
	defer defaultLock.Unlock()

	if defaultScheduler == nil {
		defaultScheduler = MakeBuilder().Build()
	}

	return defaultScheduler
}

// Init replaces the process-wide scheduler. It should run before any writer
// or reader is built.
func Init(s *Scheduler) {
	defaultLock.Lock()
	defer defaultLock.Unlock()

	defaultScheduler = s
}

// Shutdown drops the process-wide scheduler. The next Default call starts
// from a clean state.
func Shutdown() {
	defaultLock.Lock()
	defer defaultLock.Unlock()

	defaultScheduler = nil
}

// NewTrigger registers a stream that fires every round until a period is
// set.
func (s *Scheduler) NewTrigger() *Trigger {
	s.lock.Lock()
	defer s.lock.Unlock()

	t := &Trigger{s: s, divisor: 1}
	s.triggers = append(s.triggers, t)

	return t
}

// Remove withdraws a trigger. Requested periods are kept, so the base tick
// never grows back.
func (s *Scheduler) Remove(t *Trigger) {
	s.lock.Lock()
	defer s.lock.Unlock()

	for i, o := range s.triggers {
		if o == t {
			s.triggers = append(s.triggers[:i], s.triggers[i+1:]...)
			return
		}
	}
}

// SetPeriod requests that t fires every ms milliseconds.
func (s *Scheduler) SetPeriod(ms int, t *Trigger) error {
	if ms <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPeriod, ms)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if _, known := s.periods[ms]; !known {
		s.periods[ms] = struct{}{}
		s.retick()
	}

	t.period = ms
	t.divisor = ms / s.tick
	t.phase %= t.divisor

	return nil
}

func (s *Scheduler) retick() {
	tick := 0
	for p := range s.periods {
		tick = gcd(tick, p)
	}

	if len(s.periods) > 1 && tick != s.tick {
		multiplier := s.tick / tick
		for _, t := range s.triggers {
			t.divisor *= multiplier
			t.phase *= multiplier
		}

		slog.Debug("bbos/loop: base tick changed",
			"from_ms", s.tick, "to_ms", tick)
	}

	s.tick = tick
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}

	return a
}

// KeepTime marks the end of one stream's iteration. The last call of a
// round ends the round, which may sleep.
func (s *Scheduler) KeepTime() {
	s.lock.Lock()

	s.calls++
	if s.calls < len(s.triggers) {
		s.lock.Unlock()
		return
	}

	s.calls = 0
	d := s.endRound()
	pacing := s.pacing

	s.lock.Unlock()

	if pacing && d > 0 {
		s.clock.Sleep(d)
	}
}

// endRound advances the phases and returns how long to sleep until the next
// deadline.
func (s *Scheduler) endRound() time.Duration {
	now := s.clock.Now()
	tick := time.Duration(s.tick) * time.Millisecond
	s.rounds++

	if !s.started {
		s.started = true
		s.deadline = now
		s.advance()

		return 0
	}

	target := s.deadline.Add(tick)
	if !now.After(target) {
		s.deadline = target
		s.advance()

		return target.Sub(now)
	}

	behind := now.Sub(s.deadline)
	n := (behind + tick - 1) / tick
	s.deadline = s.deadline.Add(n * tick)
	s.lagged++

	for _, t := range s.triggers {
		t.phase = 0
	}

	return s.deadline.Sub(now)
}

func (s *Scheduler) advance() {
	for _, t := range s.triggers {
		t.phase = (t.phase + 1) % t.divisor
	}
}

// BaseTick returns the current base tick.
func (s *Scheduler) BaseTick() time.Duration {
	s.lock.Lock()
	defer s.lock.Unlock()

	return time.Duration(s.tick) * time.Millisecond
}

// Periods returns the requested periods in ms, sorted.
func (s *Scheduler) Periods() []int {
	s.lock.Lock()
	defer s.lock.Unlock()

	periods := make([]int, 0, len(s.periods))
	for p := range s.periods {
		periods = append(periods, p)
	}

	sort.Ints(periods)

	return periods
}

// NumTriggers returns the number of registered streams.
func (s *Scheduler) NumTriggers() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return len(s.triggers)
}

// Rounds returns the number of completed rounds.
func (s *Scheduler) Rounds() uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.rounds
}

// Lagged returns the number of rounds that had to skip ticks.
func (s *Scheduler) Lagged() uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.lagged
}
