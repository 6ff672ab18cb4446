package hlswalk

import (
	"time"

	"github.com/google/uuid"
)

// pendingRegistry tracks outstanding asynchronous work (C3, spec.md §4.3):
// inflight counts fetch callbacks that have been issued but not yet
// returned, and timers holds cancellable tokens for scheduled refreshes.
// Both fields are only ever touched from the walk controller's single
// goroutine, so no internal locking is needed — concurrency comes in
// through channel messages, not shared-memory mutation (spec.md §5).
type pendingRegistry struct {
	inflight int
	timers   map[uuid.UUID]*time.Timer
}

func newPendingRegistry() *pendingRegistry {
	return &pendingRegistry{timers: make(map[uuid.UUID]*time.Timer)}
}

func (p *pendingRegistry) incr() {
	p.inflight++
	inflightFetches.Set(float64(p.inflight))
}

func (p *pendingRegistry) decr() {
	p.inflight--
	inflightFetches.Set(float64(p.inflight))
}

// schedule inserts a cancellable timer token and, after delay, invokes fire
// with that same token from the timer's own goroutine; fire is expected to
// hand off to the controller's goroutine (via a channel send) and have that
// handoff remove the token with cancel, so the registry only ever reflects
// work the controller has actually finished accounting for. The caller is
// responsible for making fire a no-op once the controller has moved past
// `reading` (spec.md §4.3: "must be a no-op that returns a sentinel when the
// controller is in state ended").
func (p *pendingRegistry) schedule(delay time.Duration, fire func(uuid.UUID)) uuid.UUID {
	token := uuid.New()
	p.timers[token] = time.AfterFunc(delay, func() {
		fire(token)
	})
	scheduledTimers.Set(float64(len(p.timers)))
	return token
}

// cancel removes and stops a single timer, if still pending. Called by a
// firing timer's own callback once it has run, and by cancelAll.
func (p *pendingRegistry) cancel(token uuid.UUID) {
	if t, ok := p.timers[token]; ok {
		t.Stop()
		delete(p.timers, token)
		scheduledTimers.Set(float64(len(p.timers)))
	}
}

// cancelAll stops every pending timer (used on the ended->closed
// transition, spec.md §4.8).
func (p *pendingRegistry) cancelAll() {
	for token, t := range p.timers {
		t.Stop()
		delete(p.timers, token)
	}
	scheduledTimers.Set(0)
}

// consumed reports whether there is no outstanding work at all: the
// in-flight counter is zero and no timer is pending (spec.md §3 invariant 5).
func (p *pendingRegistry) consumed() bool {
	return p.inflight == 0 && len(p.timers) == 0
}
