package game

import (
	"sync"
	"time"
)

// timerRegistry tracks every scheduled background task per session so a
// forced finish can cancel them before the session state is discarded. A
// stale timer firing against a finished session id is the failure mode this
// exists to prevent.
type timerRegistry struct {
	mu     sync.Mutex
	timers map[string][]*time.Timer
}

func newTimerRegistry() *timerRegistry {
	return &timerRegistry{timers: make(map[string][]*time.Timer)}
}

// Schedule runs fn after d, tracking the timer under the session id.
func (r *timerRegistry) Schedule(sessionID string, d time.Duration, fn func()) *time.Timer {
	timer := time.AfterFunc(d, fn)
	r.mu.Lock()
	r.timers[sessionID] = append(r.timers[sessionID], timer)
	r.mu.Unlock()
	return timer
}

// CancelAll stops every pending timer registered for the session.
func (r *timerRegistry) CancelAll(sessionID string) {
	r.mu.Lock()
	timers := r.timers[sessionID]
	delete(r.timers, sessionID)
	r.mu.Unlock()

	for _, timer := range timers {
		timer.Stop()
	}
}
