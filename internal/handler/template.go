// Package handler implements the handler chain: response templates, their
// per-request instances and the engine that selects, resolves, handles and
// dispatches continuations.
//
// A Template is registered once and never mutated. Every request that matches
// it gets a fresh Instance, together with fresh instances of all of its
// continuations (acknowledgement, on-success, on-failure, planner), so
// concurrent requests never share value maps or continuation objects. The only
// state shared along a chain is its resolution context.
package handler

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dyluth/hri/internal/availability"
	"github.com/dyluth/hri/internal/decision"
	"github.com/dyluth/hri/internal/pattern"
	"github.com/dyluth/hri/internal/reasoning"
	"github.com/dyluth/hri/internal/resolution"
	"github.com/dyluth/hri/pkg/hri"
	"go.uber.org/zap"
)

// State is the lifecycle position of an Instance.
type State string

const (
	StateUnmatched State = "unmatched"
	StateMatched   State = "matched"
	StateResolved  State = "resolved"
	StateHandled   State = "handled"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Env holds the collaborators a handler's logic may use.
type Env struct {
	Beliefs        hri.BeliefSystem
	Availability   *availability.Manager
	Reasoning      *reasoning.Registry
	DecisionPolicy decision.Policy
	Logger         *zap.Logger
}

// Logic is the domain-specific part of a template.
type Logic interface {
	Handle(ctx context.Context, inst *Instance, env *Env) (hri.Response, error)
}

// LogicFunc adapts a function to the Logic interface.
type LogicFunc func(ctx context.Context, inst *Instance, env *Env) (hri.Response, error)

func (f LogicFunc) Handle(ctx context.Context, inst *Instance, env *Env) (hri.Response, error) {
	return f(ctx, inst, env)
}

// Template is a reusable definition of how to recognize and respond to a
// class of requests. A template with neither a Matcher nor a Gesture is only
// reachable as a continuation.
type Template struct {
	Name    string
	Kind    string
	Matcher *pattern.Matcher
	Gesture string
	Logic   Logic
	Params  map[string]string

	Ack       *Template
	OnSuccess *Template
	OnFailure *Template
	Planner   *Template
}

// Selectable reports whether requests can match the template directly.
func (t *Template) Selectable() bool {
	return t.Matcher != nil || t.Gesture != ""
}

// Match tries the template against a request and returns the extracted values.
//
// A verbal request matches when its raw text matches the pattern, or when the
// recognizer already reported this exact pattern; a visual request matches on
// its gesture label.
func (t *Template) Match(req *hri.Request) (map[string]string, bool) {
	if req.Verbal != nil && t.Matcher != nil {
		if req.Verbal.RawText != "" {
			if values, ok := t.Matcher.Match(req.Verbal.RawText); ok {
				return values, true
			}
		}
		if req.Verbal.Pattern != "" && req.Verbal.Pattern == t.Matcher.Template() {
			return map[string]string{}, true
		}
	}
	if req.Visual != nil && t.Gesture != "" && req.Visual.Gesture == t.Gesture {
		return map[string]string{}, true
	}
	return map[string]string{}, false
}

// specificity orders matching templates under the most_specific policy.
func (t *Template) specificity() int {
	if t.Matcher != nil {
		return t.Matcher.LiteralLength()
	}
	return len(t.Gesture)
}

// Instance is a template bound to one request.
type Instance struct {
	Template   *Template
	Request    *hri.Request
	Person     *hri.Person
	Emotion    string
	Matched    bool
	State      State
	Resolution *resolution.Context

	// Values are the instance's resolved values, keyed by placeholder token.
	Values map[string]string

	// Previous is the primary response, set on planner instances.
	Previous *hri.Response

	Ack       *Instance
	OnSuccess *Instance
	OnFailure *Instance
	Planner   *Instance

	input map[string]string
}

// Instantiate builds a fresh instance of the template and of every
// continuation reachable from it. A reference back into the chain being
// built is dropped rather than followed.
func (t *Template) Instantiate(req *hri.Request, rctx *resolution.Context) *Instance {
	return t.instantiate(req, rctx, map[*Template]bool{})
}

func (t *Template) instantiate(req *hri.Request, rctx *resolution.Context, path map[*Template]bool) *Instance {
	if t == nil || path[t] {
		return nil
	}
	path[t] = true
	defer delete(path, t)

	emotion := req.Emotion()
	if emotion == "" {
		emotion = hri.EmotionNatural
	}

	return &Instance{
		Template:   t,
		Request:    req,
		Person:     req.Person,
		Emotion:    emotion,
		State:      StateUnmatched,
		Resolution: rctx,
		Values:     map[string]string{},
		input:      map[string]string{},
		Ack:        t.Ack.instantiate(req, rctx, path),
		OnSuccess:  t.OnSuccess.instantiate(req, rctx, path),
		OnFailure:  t.OnFailure.instantiate(req, rctx, path),
		Planner:    t.Planner.instantiate(req, rctx, path),
	}
}

// Param returns a static parameter of the template.
func (i *Instance) Param(name string) string {
	return i.Template.Params[name]
}

// Expand substitutes the instance's values, and then the resolution context,
// into text. It returns the expanded text and the tokens that remain unresolved.
// Planner instances can also reference {previous_reason} and {previous_success}.
func (i *Instance) Expand(ctx context.Context, text string) (string, []string, error) {
	table := map[string]string{}
	if i.Resolution != nil {
		snap, err := i.Resolution.Snapshot(ctx)
		if err != nil {
			return "", nil, err
		}
		table = snap
	}
	for k, v := range i.Values {
		table[k] = v
	}
	if i.Previous != nil {
		table[pattern.Token("previous_reason")] = i.Previous.Reason
		table[pattern.Token("previous_success")] = strconv.FormatBool(i.Previous.Success)
	}

	out := pattern.Expand(text, table)
	return out, pattern.FindTokens(out), nil
}

// Store records key -> value in the chain's resolution context so later
// handlers can reference it.
func (i *Instance) Store(ctx context.Context, key, value string) error {
	if i.Resolution == nil {
		return fmt.Errorf("instance has no resolution context")
	}
	return i.Resolution.Put(ctx, key, value)
}

// String renders the instance for logs.
func (i *Instance) String() string {
	keys := make([]string, 0, len(i.Values))
	for k := range i.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+i.Values[k])
	}
	return fmt.Sprintf("%s[%s]{%s}", i.Template.Name, i.State, strings.Join(parts, ", "))
}
