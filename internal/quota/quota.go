// Package quota enforces per-calendar-day caps on chargeable operations,
// tracked independently per operation class and per client.
package quota

import (
	"sync"
	"time"
)

// Class names a category of chargeable operation with its own daily cap.
type Class string

const (
	ClassAnalyze Class = "scan"
	ClassBreach  Class = "breach check"
)

// state is the per-class counter map for one calendar day.
type state struct {
	limit int
	day   string
	used  map[string]int
}

// Limiter tracks daily usage. Allow and Increment are deliberately
// separate: a request is only charged once the orchestrator commits to
// the operation, so cache hits and mid-flight failures are never billed.
type Limiter struct {
	mu     sync.Mutex
	states map[Class]*state

	// now is swappable so tests can simulate a date rollover.
	now func() time.Time
}

// New creates a limiter with the given per-class daily limits.
// Unconfigured classes admit nothing.
func New(limits map[Class]int) *Limiter {
	states := make(map[Class]*state, len(limits))
	for class, limit := range limits {
		states[class] = &state{limit: limit, used: make(map[string]int)}
	}
	return &Limiter{
		states: states,
		now:    time.Now,
	}
}

// Allow reports whether clientID has remaining budget for class today.
// It does not consume anything. A wall-clock date change wipes every
// count for the class before the check, under the same lock, so stale
// counts from a previous day are never consulted.
func (l *Limiter) Allow(clientID string, class Class) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.states[class]
	if st == nil {
		return false
	}
	l.rollover(st)
	return st.used[clientID] < st.limit
}

// Increment charges one unit against clientID for class.
func (l *Limiter) Increment(clientID string, class Class) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.states[class]
	if st == nil {
		return
	}
	l.rollover(st)
	st.used[clientID]++
}

// Limit returns the configured daily cap for class.
func (l *Limiter) Limit(class Class) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if st := l.states[class]; st != nil {
		return st.limit
	}
	return 0
}

// Used returns today's consumed count for clientID and class.
func (l *Limiter) Used(clientID string, class Class) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.states[class]
	if st == nil {
		return 0
	}
	l.rollover(st)
	return st.used[clientID]
}

func (l *Limiter) rollover(st *state) {
	day := l.now().Format("2006-01-02")
	if day != st.day {
		st.used = make(map[string]int)
		st.day = day
	}
}
