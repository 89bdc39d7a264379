// Package audit records one event per orchestrated operation so
// operators can see what the service decided without reading request
// logs. Delivery is asynchronous and lossy under pressure: emitting an
// event never blocks or fails a request.
package audit

import (
	"context"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Decision is the outcome of an operation from PageGuard's perspective.
type Decision string

const (
	DecisionServed       Decision = "served"
	DecisionCacheHit     Decision = "cache_hit"
	DecisionQuotaBlocked Decision = "quota_blocked"
	DecisionFallback     Decision = "fallback"
)

// Operation classes as they appear in events.
const (
	OpAnalyze = "analyze"
	OpBreach  = "breach"
)

// Event is one audited operation.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Operation string    `json:"operation"`
	Decision  Decision  `json:"decision"`
	ClientID  string    `json:"client_id"`
	Subject   string    `json:"subject"` // URL, or masked email for breach checks
	RiskScore int       `json:"risk_score,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Sink consumes audit events (stdout, file, etc.).
type Sink interface {
	Name() string
	Deliver(context.Context, *Event) error
	Close(context.Context) error
}

// Emitter buffers events and delivers them to a sink off the request
// path. A full queue drops the event rather than stalling a request.
type Emitter struct {
	queue chan *Event
	sink  Sink

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
	wg      sync.WaitGroup
}

// NewEmitter starts a background worker delivering events to sink.
func NewEmitter(sink Sink, queueSize int) *Emitter {
	if queueSize <= 0 {
		queueSize = 256
	}
	e := &Emitter{
		queue: make(chan *Event, queueSize),
		sink:  sink,
	}
	e.wg.Add(1)
	go e.worker()
	return e
}

// Emit enqueues the event without blocking.
func (e *Emitter) Emit(ev *Event) {
	if e == nil || ev == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return
	}
	select {
	case e.queue <- ev:
	default:
		e.dropped.Add(1)
	}
}

// Dropped reports how many events were discarded because the queue was
// full.
func (e *Emitter) Dropped() uint64 {
	return e.dropped.Load()
}

// Close stops accepting events and waits briefly for the queue to drain.
func (e *Emitter) Close(ctx context.Context) {
	if e == nil {
		return
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	select {
	case <-done:
	case <-waitCtx.Done():
	}

	if err := e.sink.Close(waitCtx); err != nil {
		log.Printf("audit: sink %s close error: %v", e.sink.Name(), err)
	}
}

func (e *Emitter) worker() {
	defer e.wg.Done()
	for ev := range e.queue {
		if err := e.sink.Deliver(context.Background(), ev); err != nil {
			log.Printf("audit: sink %s failed: %v", e.sink.Name(), err)
		}
	}
}

// MaskEmail hides the local part of an email so audit trails don't
// accumulate raw addresses.
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
