// Package beliefs provides an in-process belief system.
package beliefs

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dyluth/hri/pkg/hri"
)

// Memory is an hri.BeliefSystem backed by maps. It is safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	facts map[string]map[string]hri.Fact // type -> id -> fact
}

var _ hri.BeliefSystem = (*Memory)(nil)

// NewMemory returns an empty belief system.
func NewMemory() *Memory {
	return &Memory{facts: make(map[string]map[string]hri.Fact)}
}

// Get returns the facts of factType matching description, ordered by ID.
func (m *Memory) Get(_ context.Context, factType, description string) ([]hri.Fact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []hri.Fact{}
	for _, f := range m.facts[factType] {
		if f.Matches(description) {
			out = append(out, clone(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

// Update stores a fact, replacing any fact of the same type and ID.
func (m *Memory) Update(_ context.Context, factType string, fact hri.Fact) error {
	if factType == "" {
		return fmt.Errorf("fact type cannot be empty")
	}
	if fact.ID() == "" {
		return fmt.Errorf("fact has no id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	byID, ok := m.facts[factType]
	if !ok {
		byID = make(map[string]hri.Fact)
		m.facts[factType] = byID
	}
	byID[fact.ID()] = clone(fact)
	return nil
}

func (m *Memory) UpdatePerson(ctx context.Context, person hri.Fact) error {
	return m.Update(ctx, hri.BeliefPerson, person)
}

func (m *Memory) UpdateObject(ctx context.Context, object hri.Fact) error {
	return m.Update(ctx, hri.BeliefObject, object)
}

// UpdateRobot stores the robot fact. A fact without an id is stored as hri.RobotFactID.
func (m *Memory) UpdateRobot(ctx context.Context, robot hri.Fact) error {
	if robot.ID() == "" {
		robot = clone(robot)
		robot["id"] = hri.RobotFactID
	}
	return m.Update(ctx, hri.BeliefRobot, robot)
}

// Robot returns the robot fact, or an empty fact if none was stored.
func (m *Memory) Robot(_ context.Context) (hri.Fact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if f, ok := m.facts[hri.BeliefRobot][hri.RobotFactID]; ok {
		return clone(f), nil
	}
	return hri.Fact{}, nil
}

func clone(f hri.Fact) hri.Fact {
	out := make(hri.Fact, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	return out
}
