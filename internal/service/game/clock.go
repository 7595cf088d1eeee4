package game

import (
	"sync"
	"time"

	model "github.com/hakoke/impostor/internal/model/game"
)

// DeadlineStore maps (session, stage) to the absolute wall-clock deadline of
// that stage. Pure data; the orchestrator owns all scheduling built on it.
type DeadlineStore struct {
	mu        sync.RWMutex
	deadlines map[string]map[model.Status]time.Time
}

// NewDeadlineStore returns an empty deadline store.
func NewDeadlineStore() *DeadlineStore {
	return &DeadlineStore{deadlines: make(map[string]map[model.Status]time.Time)}
}

// Set records the deadline for a session stage, overwriting any prior value.
func (d *DeadlineStore) Set(sessionID string, stage model.Status, deadline time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	stages, ok := d.deadlines[sessionID]
	if !ok {
		stages = make(map[model.Status]time.Time)
		d.deadlines[sessionID] = stages
	}
	stages[stage] = deadline
}

// Get returns the deadline for a session stage, if one was recorded.
func (d *DeadlineStore) Get(sessionID string, stage model.Status) (time.Time, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	deadline, ok := d.deadlines[sessionID][stage]
	return deadline, ok
}

// Expired reports whether the stage deadline has passed at the given instant.
// A stage without a recorded deadline never expires.
func (d *DeadlineStore) Expired(sessionID string, stage model.Status, now time.Time) bool {
	deadline, ok := d.Get(sessionID, stage)
	if !ok {
		return false
	}
	return now.After(deadline)
}

// Clear drops all deadlines held for a session. Required on finish so reused
// or abandoned session ids cannot leak entries.
func (d *DeadlineStore) Clear(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.deadlines, sessionID)
}
