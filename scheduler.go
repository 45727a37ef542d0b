package fetchcache

import (
	"sync"
	"time"
)

// Scheduler owns the single process-wide cleanup timer. Arm cancels any
// pending sweep and schedules a new one delay later, so a burst of settles
// produces one sweep after the last of them.
type Scheduler struct {
	mu     sync.Mutex
	delay  time.Duration
	timer  *time.Timer
	seq    uint64 // bumped by Arm; a fire from an older arm is ignored
	closed bool

	sweep func() int
	log   Logger
}

// NewScheduler returns an idle scheduler calling sweep when it fires.
func NewScheduler(delay time.Duration, sweep func() int) *Scheduler {
	return &Scheduler{
		delay: coalesce(delay, defaultSweepDelay),
		sweep: sweep,
		log:   NopLogger{},
	}
}

// Arm (re)schedules the sweep.
func (s *Scheduler) Arm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.seq++
	seq := s.seq
	s.timer = time.AfterFunc(s.delay, func() { s.fire(seq) })
}

// Armed reports whether a sweep is scheduled.
func (s *Scheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *Scheduler) fire(seq uint64) {
	s.mu.Lock()
	if s.closed || seq != s.seq {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	removed := s.sweep()
	if removed > 0 {
		s.log.Debug("sweep removed unused entries", Fields{"removed": removed})
	}
}

// Stop cancels a scheduled sweep and disables further arming.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
