package usecase

import (
	"sort"
	"sync"

	"calixo/internal/domain"
	"calixo/internal/ports"
)

// Controls holds the rendered state of every session-owning UI control. The
// frontend mirrors it from ControlChanged events.
type Controls struct {
	events ports.EventSink

	mu     sync.Mutex
	states map[domain.ControlID]domain.ControlState
	idle   map[domain.ControlID]string
}

func NewControls(events ports.EventSink) *Controls {
	c := &Controls{
		events: events,
		states: make(map[domain.ControlID]domain.ControlState),
		idle:   make(map[domain.ControlID]string),
	}
	for _, f := range features {
		c.Register(f.control, f.idleLabel)
	}
	c.Register(domain.ControlVoiceDashboard, "Read aloud")
	c.Register(domain.ControlVoiceSuggestions, "Read suggestions")
	c.Register(domain.ControlVoiceBriefing, "Coach briefing")
	return c
}

// Register declares a control with its idle label. Registering again resets it.
func (c *Controls) Register(id domain.ControlID, idleLabel string) {
	c.mu.Lock()
	c.idle[id] = idleLabel
	c.states[id] = domain.ControlState{ID: id, Label: idleLabel}
	c.mu.Unlock()
}

// Get returns the current state of id.
func (c *Controls) Get(id domain.ControlID) domain.ControlState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[id]
}

// Snapshot returns every control ordered by id.
func (c *Controls) Snapshot() []domain.ControlState {
	c.mu.Lock()
	out := make([]domain.ControlState, 0, len(c.states))
	for _, state := range c.states {
		out = append(out, state)
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Set replaces the label and enabled state, keeping the status line.
func (c *Controls) Set(id domain.ControlID, label string, disabled bool) {
	c.update(id, func(state *domain.ControlState) {
		state.Label = label
		state.Disabled = disabled
	})
}

// SetStatus replaces the status line shown next to the control.
func (c *Controls) SetStatus(id domain.ControlID, status string) {
	c.update(id, func(state *domain.ControlState) {
		state.Status = status
	})
}

// Claim disables id behind label and returns the label it replaced.
func (c *Controls) Claim(id domain.ControlID, label string) string {
	var saved string
	c.update(id, func(state *domain.ControlState) {
		saved = state.Label
		state.Label = label
		state.Disabled = true
	})
	return saved
}

// Release re-enables id with label. An empty label means the idle label.
func (c *Controls) Release(id domain.ControlID, label string) {
	c.mu.Lock()
	if label == "" {
		label = c.idle[id]
	}
	c.mu.Unlock()
	c.Set(id, label, false)
}

// Reset returns id to its idle label, enabled, with status cleared or set.
func (c *Controls) Reset(id domain.ControlID, status string) {
	c.mu.Lock()
	label := c.idle[id]
	c.mu.Unlock()
	c.update(id, func(state *domain.ControlState) {
		state.Label = label
		state.Disabled = false
		state.Status = status
	})
}

func (c *Controls) update(id domain.ControlID, fn func(state *domain.ControlState)) {
	c.mu.Lock()
	state, ok := c.states[id]
	if !ok {
		state = domain.ControlState{ID: id}
	}
	fn(&state)
	c.states[id] = state
	c.mu.Unlock()

	if c.events != nil {
		c.events.ControlChanged(state)
	}
}
