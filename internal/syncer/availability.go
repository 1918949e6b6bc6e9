package syncer

import (
	"sync"

	"calixo/internal/domain"
)

// Availability is the process-wide remote latch. It starts unknown and only
// moves on an observed outcome.
type Availability struct {
	mu       sync.Mutex
	state    domain.Availability
	onChange func(domain.Availability)
}

func NewAvailability(onChange func(domain.Availability)) *Availability {
	return &Availability{state: domain.AvailabilityUnknown, onChange: onChange}
}

func (a *Availability) State() domain.Availability {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Set records a new state and reports whether it changed.
func (a *Availability) Set(state domain.Availability) bool {
	a.mu.Lock()
	if a.state == state {
		a.mu.Unlock()
		return false
	}
	a.state = state
	onChange := a.onChange
	a.mu.Unlock()

	if onChange != nil {
		onChange(state)
	}
	return true
}

func (a *Availability) Unavailable() bool {
	return a.State() == domain.AvailabilityUnavailable
}
