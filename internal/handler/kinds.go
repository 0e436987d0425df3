package handler

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dyluth/hri/internal/pattern"
)

var (
	// ErrUnknownKind is returned when a spec names a kind with no factory.
	ErrUnknownKind = errors.New("unknown handler kind")

	// ErrUnknownReference is returned when a spec references a template that does not exist.
	ErrUnknownReference = errors.New("unknown template reference")
)

// KindFactory builds the logic of a kind from a template's static params.
type KindFactory func(params map[string]string) (Logic, error)

// Kinds maps kind names to factories. It is safe for concurrent use.
type Kinds struct {
	mu        sync.RWMutex
	factories map[string]KindFactory
}

// NewKinds returns an empty registry.
func NewKinds() *Kinds {
	return &Kinds{factories: make(map[string]KindFactory)}
}

// DefaultKinds returns a registry with every built-in kind.
func DefaultKinds() *Kinds {
	k := NewKinds()
	k.Register(KindSay, newSay)
	k.Register(KindCheckAvailability, newCheckAvailability)
	k.Register(KindLookup, newLookup)
	k.Register(KindAct, newAct)
	k.Register(KindReason, newReason)
	k.Register(KindPresence, newPresence)
	return k
}

// Register adds or replaces a kind.
func (k *Kinds) Register(name string, f KindFactory) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.factories[name] = f
}

// New builds logic of the named kind.
func (k *Kinds) New(name string, params map[string]string) (Logic, error) {
	k.mu.RLock()
	f, ok := k.factories[name]
	k.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
	logic, err := f(params)
	if err != nil {
		return nil, fmt.Errorf("kind %s: %w", name, err)
	}
	return logic, nil
}

// Names returns the registered kind names, sorted.
func (k *Kinds) Names() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()

	names := make([]string, 0, len(k.factories))
	for name := range k.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Spec is the declarative form of a template, as read from configuration.
// Continuation fields name other specs.
type Spec struct {
	Name      string
	Pattern   string
	Gesture   string
	Kind      string
	Params    map[string]string
	Ack       string
	OnSuccess string
	OnFailure string
	Planner   string
}

// Build turns specs into linked templates. Handlers must be selectable;
// continuations must not be. The returned slice holds the handlers in order
// followed by the continuations, ready for Engine.Register.
func Build(handlers, continuations []Spec, kinds *Kinds) ([]*Template, error) {
	byName := make(map[string]*Template, len(handlers)+len(continuations))
	var ordered []*Template

	add := func(s Spec, selectable bool) error {
		if s.Name == "" {
			return fmt.Errorf("%w: spec has no name", ErrInvalidTemplate)
		}
		if _, exists := byName[s.Name]; exists {
			return fmt.Errorf("%w: %q", ErrDuplicateTemplate, s.Name)
		}

		t := &Template{
			Name:    s.Name,
			Kind:    s.Kind,
			Gesture: s.Gesture,
			Params:  copyValues(s.Params),
		}

		if s.Pattern != "" {
			m, err := pattern.Compile(s.Pattern)
			if err != nil {
				return fmt.Errorf("template %q: %w", s.Name, err)
			}
			t.Matcher = m
		}

		if selectable && !t.Selectable() {
			return fmt.Errorf("%w: handler %q needs a pattern or a gesture", ErrInvalidTemplate, s.Name)
		}
		if !selectable && t.Selectable() {
			return fmt.Errorf("%w: continuation %q cannot have a pattern or a gesture", ErrInvalidTemplate, s.Name)
		}

		logic, err := kinds.New(s.Kind, t.Params)
		if err != nil {
			return fmt.Errorf("template %q: %w", s.Name, err)
		}
		t.Logic = logic

		byName[s.Name] = t
		ordered = append(ordered, t)
		return nil
	}

	for _, s := range handlers {
		if err := add(s, true); err != nil {
			return nil, err
		}
	}
	for _, s := range continuations {
		if err := add(s, false); err != nil {
			return nil, err
		}
	}

	ref := func(from, field, name string) (*Template, error) {
		if name == "" {
			return nil, nil
		}
		t, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s -> %q", ErrUnknownReference, from, field, name)
		}
		return t, nil
	}

	specs := append(append([]Spec{}, handlers...), continuations...)
	for i, s := range specs {
		t := ordered[i]
		var err error
		if t.Ack, err = ref(s.Name, "ack", s.Ack); err != nil {
			return nil, err
		}
		if t.OnSuccess, err = ref(s.Name, "on_success", s.OnSuccess); err != nil {
			return nil, err
		}
		if t.OnFailure, err = ref(s.Name, "on_failure", s.OnFailure); err != nil {
			return nil, err
		}
		if t.Planner, err = ref(s.Name, "planner", s.Planner); err != nil {
			return nil, err
		}
	}

	return ordered, nil
}
