package state

import (
	"errors"
	"sync"
)

// GameState is a room's position in its match lifecycle.
type GameState string

const (
	Waiting  GameState = "waiting"
	Playing  GameState = "playing"
	Finished GameState = "finished"
)

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// Machine is a transition-checked state holder. Edges not registered
// up front are rejected, so an illegal transition can never corrupt a
// room. Finished has no outgoing edges and is terminal.
type Machine struct {
	current     GameState
	transitions map[GameState]map[GameState]bool
	mutex       sync.RWMutex
}

// NewMachine starts in Waiting with the three legal duel edges:
// Waiting→Playing (start), Playing→Finished (both players done) and
// Playing→Waiting (the disconnect abort, the one non-monotonic edge).
func NewMachine() *Machine {
	m := &Machine{
		current:     Waiting,
		transitions: make(map[GameState]map[GameState]bool),
	}
	m.addTransition(Waiting, Playing)
	m.addTransition(Playing, Finished)
	m.addTransition(Playing, Waiting)
	return m
}

func (m *Machine) addTransition(from, to GameState) {
	if _, exists := m.transitions[from]; !exists {
		m.transitions[from] = make(map[GameState]bool)
	}
	m.transitions[from][to] = true
}

func (m *Machine) Current() GameState {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.current
}

func (m *Machine) Is(s GameState) bool {
	return m.Current() == s
}

func (m *Machine) Transition(to GameState) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.transitions[m.current][to] {
		return ErrTransitionNotAllowed
	}
	m.current = to
	return nil
}
