package exam

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pavelanni/timedexam/internal/model"
)

// Factory builds a fresh controller for a new client.
type Factory func() *Controller

// Registry maps client ids to their controllers. Each client owns at most one session.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	factory  Factory
	clock    Clock
}

type entry struct {
	ctl      *Controller
	lastSeen time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(factory Factory, clock Clock) *Registry {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Registry{
		sessions: make(map[string]*entry),
		factory:  factory,
		clock:    clock,
	}
}

// Lookup returns the controller registered under id.
func (r *Registry) Lookup(id string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.clock.Now()
	return e.ctl, true
}

// Acquire returns the controller for id, creating one when id is unknown.
// The returned controller's ID must be used as the client id from then on.
func (r *Registry) Acquire(id string) *Controller {
	if ctl, ok := r.Lookup(id); ok {
		return ctl
	}
	ctl := r.factory()
	r.mu.Lock()
	r.sessions[ctl.ID()] = &entry{ctl: ctl, lastSeen: r.clock.Now()}
	r.mu.Unlock()
	return ctl
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Prune drops clients idle longer than ttl whose session is not running.
func (r *Registry) Prune(ttl time.Duration) int {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.sessions {
		if now.Sub(e.lastSeen) < ttl || e.ctl.State() == model.StateInProgress {
			continue
		}
		e.ctl.Restart()
		delete(r.sessions, id)
		n++
	}
	if n > 0 {
		slog.Debug("pruned idle sessions", "count", n)
	}
	return n
}
