package timer

import (
	"sync"
	"time"
)

// Scheduler constants.
const (
	// DefaultMaxTimers is the default slot table size.
	DefaultMaxTimers = 16

	// InvalidID is returned when a timer cannot be created and rejected
	// by all operations that take a timer ID.
	InvalidID = -1

	// RunForever marks a timer with no run limit.
	RunForever = -1
)

// Clock returns the current time in milliseconds as a wrapping counter.
// All due-time comparisons use unsigned subtraction, so the scheduler keeps
// working across the ~49.7 day wraparound point.
type Clock func() uint32

// Callback is invoked when a timer fires.
//
// Callbacks run synchronously inside Run on the tick goroutine. They may
// call back into the scheduler, including deleting their own timer.
type Callback func()

// slot is one entry in the fixed timer table.
type slot struct {
	interval  uint32
	lastFired uint32
	maxRuns   int
	runCount  int
	enabled   bool
	inUse     bool
	callback  Callback
}

// Scheduler is a fixed-capacity software timer table driven by an external
// tick (Run). It mirrors the cooperative scheduling model of embedded
// firmware: no goroutines are spawned, timers only fire during Run.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Callbacks are invoked without holding internal locks, so they may
//     freely create, modify, or delete timers.
type Scheduler struct {
	mu    sync.Mutex
	slots []slot
	clock Clock
}

// New creates a Scheduler with the default slot count and a wall-clock
// millisecond Clock.
func New() *Scheduler {
	return NewWithClock(DefaultMaxTimers, nil)
}

// NewWithClock creates a Scheduler with a custom slot count and clock.
//
// Parameters:
//   - maxTimers: Slot table size; values < 1 fall back to DefaultMaxTimers
//   - clock: Millisecond clock; nil selects the wall-clock default
//
// Returns:
//   - *Scheduler: Ready to use, all slots free
func NewWithClock(maxTimers int, clock Clock) *Scheduler {
	if maxTimers < 1 {
		maxTimers = DefaultMaxTimers
	}
	if clock == nil {
		start := time.Now()
		clock = func() uint32 {
			return uint32(time.Since(start).Milliseconds())
		}
	}
	return &Scheduler{
		slots: make([]slot, maxTimers),
		clock: clock,
	}
}

// SetInterval creates a repeating timer that fires every interval
// milliseconds until deleted or disabled.
//
// Returns:
//   - int: Timer ID, or InvalidID if the table is full
func (s *Scheduler) SetInterval(intervalMS uint32, cb Callback) int {
	return s.SetTimer(intervalMS, cb, RunForever)
}

// SetTimeout creates a one-shot timer that fires once after interval
// milliseconds and then frees its slot.
//
// Returns:
//   - int: Timer ID, or InvalidID if the table is full
func (s *Scheduler) SetTimeout(intervalMS uint32, cb Callback) int {
	return s.SetTimer(intervalMS, cb, 1)
}

// SetTimer creates a timer that fires numRuns times and then frees its slot.
//
// Parameters:
//   - intervalMS: Milliseconds between fires
//   - cb: Callback invoked on each fire
//   - numRuns: Fire count; RunForever for unlimited, zero is rejected
//
// Returns:
//   - int: Timer ID, or InvalidID if numRuns is zero, cb is nil, or the
//     table is full
func (s *Scheduler) SetTimer(intervalMS uint32, cb Callback, numRuns int) int {
	if numRuns == 0 || cb == nil {
		return InvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.findFreeSlot()
	if id == InvalidID {
		return InvalidID
	}

	s.slots[id] = slot{
		interval:  intervalMS,
		lastFired: s.clock(),
		maxRuns:   numRuns,
		enabled:   true,
		inUse:     true,
		callback:  cb,
	}
	return id
}

// findFreeSlot returns the lowest free slot index, or InvalidID.
// Caller must hold s.mu.
func (s *Scheduler) findFreeSlot() int {
	for i := range s.slots {
		if !s.slots[i].inUse {
			return i
		}
	}
	return InvalidID
}

// Run fires all due timers. Call it from the main tick loop.
//
// A timer is due when at least interval milliseconds have elapsed since it
// last fired, measured with wraparound-safe unsigned subtraction. Finite
// timers are freed automatically after their final run, unless the callback
// restarted or deleted them first.
func (s *Scheduler) Run() {
	now := s.clock()

	for i := range s.slots {
		s.mu.Lock()
		sl := &s.slots[i]
		if !sl.inUse || !sl.enabled {
			s.mu.Unlock()
			continue
		}
		if now-sl.lastFired < sl.interval {
			s.mu.Unlock()
			continue
		}

		sl.lastFired = now
		sl.runCount++
		cb := sl.callback
		s.mu.Unlock()

		// Invoke without the lock so the callback can re-enter the scheduler.
		cb()

		s.mu.Lock()
		sl = &s.slots[i]
		if sl.inUse && sl.maxRuns > 0 && sl.runCount >= sl.maxRuns {
			s.freeSlot(i)
		}
		s.mu.Unlock()
	}
}

// freeSlot clears a slot. Caller must hold s.mu.
func (s *Scheduler) freeSlot(i int) {
	s.slots[i] = slot{}
}

// Enable re-enables a disabled timer. The elapsed-time reference is reset,
// so a full interval must pass before the next fire.
//
// Returns:
//   - bool: false if the ID does not refer to a live timer
func (s *Scheduler) Enable(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validLocked(id) {
		return false
	}
	s.slots[id].enabled = true
	s.slots[id].lastFired = s.clock()
	return true
}

// Disable pauses a timer without freeing its slot. Interval, callback, and
// run count are preserved.
//
// Returns:
//   - bool: false if the ID does not refer to a live timer
func (s *Scheduler) Disable(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validLocked(id) {
		return false
	}
	s.slots[id].enabled = false
	return true
}

// Toggle flips a timer between enabled and disabled. Enabling resets the
// elapsed-time reference, same as Enable.
//
// Returns:
//   - bool: false if the ID does not refer to a live timer
func (s *Scheduler) Toggle(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validLocked(id) {
		return false
	}
	sl := &s.slots[id]
	sl.enabled = !sl.enabled
	if sl.enabled {
		sl.lastFired = s.clock()
	}
	return true
}

// ChangeInterval updates a timer's interval and resets its elapsed-time
// reference.
//
// Returns:
//   - bool: false if the ID does not refer to a live timer
func (s *Scheduler) ChangeInterval(id int, intervalMS uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validLocked(id) {
		return false
	}
	s.slots[id].interval = intervalMS
	s.slots[id].lastFired = s.clock()
	return true
}

// Restart resets a timer's elapsed-time reference and run count, giving a
// finite timer its full run budget again.
//
// Returns:
//   - bool: false if the ID does not refer to a live timer
func (s *Scheduler) Restart(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validLocked(id) {
		return false
	}
	s.slots[id].lastFired = s.clock()
	s.slots[id].runCount = 0
	return true
}

// Delete frees a timer slot. Safe to call from the timer's own callback.
//
// Returns:
//   - bool: false if the ID does not refer to a live timer
func (s *Scheduler) Delete(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validLocked(id) {
		return false
	}
	s.freeSlot(id)
	return true
}

// DeleteAll frees every slot.
func (s *Scheduler) DeleteAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.slots {
		s.freeSlot(i)
	}
}

// IsValid reports whether the ID refers to a live timer.
func (s *Scheduler) IsValid(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validLocked(id)
}

// IsEnabled reports whether the ID refers to a live, enabled timer.
func (s *Scheduler) IsEnabled(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validLocked(id) && s.slots[id].enabled
}

// Remaining returns the milliseconds until the timer next fires, or zero if
// it is already due. Returns zero for invalid IDs.
func (s *Scheduler) Remaining(id int) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validLocked(id) {
		return 0
	}
	elapsed := s.clock() - s.slots[id].lastFired
	if elapsed >= s.slots[id].interval {
		return 0
	}
	return s.slots[id].interval - elapsed
}

// NumTimers returns the number of live timers.
func (s *Scheduler) NumTimers() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for i := range s.slots {
		if s.slots[i].inUse {
			n++
		}
	}
	return n
}

// NumAvailable returns the number of free slots.
func (s *Scheduler) NumAvailable() int {
	return s.MaxTimers() - s.NumTimers()
}

// MaxTimers returns the slot table size.
func (s *Scheduler) MaxTimers() int {
	return len(s.slots)
}

// validLocked reports whether id refers to a live timer. Caller must hold s.mu.
func (s *Scheduler) validLocked(id int) bool {
	return id >= 0 && id < len(s.slots) && s.slots[id].inUse
}
