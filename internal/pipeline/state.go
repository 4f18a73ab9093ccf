package pipeline

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// State is a request's position in the pipeline.
type State string

const (
	StateReceived   State = "received"
	StateValidating State = "validating"
	StateStaged     State = "staged"
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

func validTransition(from, to State) bool {
	if to == StateFailed {
		return !from.Terminal()
	}
	switch from {
	case StateReceived:
		return to == StateValidating
	case StateValidating:
		return to == StateStaged
	case StateStaged:
		return to == StateQueued
	case StateQueued:
		return to == StateProcessing
	case StateProcessing:
		return to == StateSucceeded
	default:
		return false
	}
}

// RequestStatus is a snapshot of one live request.
type RequestStatus struct {
	ID        string    `json:"id"`
	State     State     `json:"state"`
	Filename  string    `json:"filename"`
	Language  string    `json:"language"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type tracker struct {
	mu     sync.Mutex
	status RequestStatus
}

func (t *tracker) transition(to State) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	from := t.status.State
	if !validTransition(from, to) {
		return fmt.Errorf("invalid transition: %s -> %s", from, to)
	}
	t.status.State = to
	t.status.UpdatedAt = time.Now()
	return nil
}

func (t *tracker) state() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status.State
}

func (t *tracker) snapshot() RequestStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

type registry struct {
	mu   sync.Mutex
	live map[string]*tracker
}

func (r *registry) add(t *tracker) {
	r.mu.Lock()
	r.live[t.status.ID] = t
	r.mu.Unlock()
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	delete(r.live, id)
	r.mu.Unlock()
}

func (r *registry) snapshot() []RequestStatus {
	r.mu.Lock()
	out := make([]RequestStatus, 0, len(r.live))
	for _, t := range r.live {
		out = append(out, t.snapshot())
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}
