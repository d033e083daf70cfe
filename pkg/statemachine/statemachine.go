// Package statemachine provides a small finite state machine for entities
// whose current state lives outside the machine (for example in a database
// row). The machine owns only the transition table; callers pass the current
// state on every Fire and persist the returned next state themselves.
package statemachine

import (
	"context"
	"fmt"
	"sync"
)

// State represents a state in the state machine.
type State interface {
	Name() string
}

// Event represents an event that can trigger a state transition.
type Event interface {
	Name() string
}

// Action executes side effects during state transitions. Returning an error aborts the transition.
type Action func(ctx context.Context, from, to State, event Event, data any) error

// Guard evaluates whether a transition should be allowed based on runtime conditions.
type Guard func(ctx context.Context, from State, event Event, data any) bool

// Transition defines a state change triggered by an event, with optional guards and actions.
type Transition struct {
	From    State
	To      State
	Event   Event
	Guards  []Guard  // All must pass for transition to proceed
	Actions []Action // Executed in order before state change
}

// StringState provides a simple string-based state implementation.
type StringState string

func (s StringState) Name() string {
	return string(s)
}

// StringEvent provides a simple string-based event implementation.
type StringEvent string

func (e StringEvent) Name() string {
	return string(e)
}

// Machine is a thread-safe transition table. The current state is supplied
// by the caller on each Fire, so one Machine instance serves any number of
// entities concurrently.
// Uses a nested map for O(1) transition lookups: [fromState][event][]Transition.
type Machine struct {
	transitions map[string]map[string][]Transition
	mu          sync.RWMutex
}

func New() *Machine {
	return &Machine{
		transitions: make(map[string]map[string][]Transition),
	}
}

func (m *Machine) AddTransition(from, to State, event Event, guards []Guard, actions []Action) error {
	if from == nil || to == nil || event == nil {
		return ErrInvalidTransition
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	fromName := from.Name()
	eventName := event.Name()

	if _, ok := m.transitions[fromName]; !ok {
		m.transitions[fromName] = make(map[string][]Transition)
	}

	// Multiple transitions allowed for same from/event to support guard-based branching
	m.transitions[fromName][eventName] = append(m.transitions[fromName][eventName], Transition{
		From:    from,
		To:      to,
		Event:   event,
		Guards:  guards,
		Actions: actions,
	})
	return nil
}

// Fire resolves the transition for (from, event), runs its actions, and
// returns the next state. The caller is responsible for persisting it.
func (m *Machine) Fire(ctx context.Context, from State, event Event, data any) (State, error) {
	if event == nil {
		return nil, ErrInvalidEvent
	}
	if from == nil {
		return nil, ErrInvalidTransition
	}

	m.mu.RLock()
	transition := m.resolve(ctx, from, event, data)
	m.mu.RUnlock()

	if transition == nil {
		if !m.hasTransition(from, event) {
			return nil, NewErrNoTransitionAvailable(from.Name(), event.Name())
		}
		return nil, NewErrTransitionRejected(from.Name(), event.Name())
	}

	// Execute actions before reporting the state change; any failure aborts.
	for _, action := range transition.Actions {
		if action != nil {
			if err := action(ctx, from, transition.To, event, data); err != nil {
				return nil, fmt.Errorf("action failed: %w", err)
			}
		}
	}

	return transition.To, nil
}

// CanFire reports whether any transition for (from, event) would pass its guards.
func (m *Machine) CanFire(ctx context.Context, from State, event Event, data any) bool {
	if event == nil || from == nil {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.resolve(ctx, from, event, data) != nil
}

// resolve returns the first transition whose guards all pass.
// Callers must hold at least a read lock.
func (m *Machine) resolve(ctx context.Context, from State, event Event, data any) *Transition {
	byEvent, ok := m.transitions[from.Name()]
	if !ok {
		return nil
	}
	transitions, ok := byEvent[event.Name()]
	if !ok {
		return nil
	}

	// First transition with passing guards wins (enables priority ordering)
	for i, t := range transitions {
		passed := true
		for _, guard := range t.Guards {
			if guard != nil && !guard(ctx, from, event, data) {
				passed = false
				break
			}
		}
		if passed {
			return &transitions[i]
		}
	}
	return nil
}

func (m *Machine) hasTransition(from State, event Event) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byEvent, ok := m.transitions[from.Name()]
	if !ok {
		return false
	}
	transitions, ok := byEvent[event.Name()]
	return ok && len(transitions) > 0
}
