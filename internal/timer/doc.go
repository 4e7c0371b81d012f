// Package timer implements a fixed-capacity software timer scheduler
// driven by an explicit tick.
//
// The design mirrors cooperative embedded schedulers: a small slot table,
// millisecond resolution, and a Run method called from the main loop that
// fires every due timer synchronously. No goroutines are spawned and
// nothing fires between ticks, which keeps callback execution single-file
// and predictable.
//
// Time is a wrapping uint32 millisecond counter. Due checks use unsigned
// subtraction (now - lastFired >= interval), so behaviour is unaffected by
// counter wraparound. The clock is injectable for tests.
//
// # Usage
//
//	s := timer.New()
//	id := s.SetInterval(1000, func() { fmt.Println("tick") })
//	for {
//	    s.Run()
//	    time.Sleep(10 * time.Millisecond)
//	}
//	s.Delete(id)
package timer
