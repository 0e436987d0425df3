package handler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/dyluth/hri/internal/decision"
	"github.com/dyluth/hri/internal/logging"
	"github.com/dyluth/hri/internal/metrics"
	"github.com/dyluth/hri/internal/resolution"
	"github.com/dyluth/hri/pkg/hri"
	"go.uber.org/zap"
)

var (
	// ErrDuplicateTemplate is returned when a template name is registered twice.
	ErrDuplicateTemplate = errors.New("duplicate template")

	// ErrCycle is returned when continuation references form a cycle.
	ErrCycle = errors.New("continuation cycle")

	// ErrInvalidTemplate is returned for templates missing a name or logic.
	ErrInvalidTemplate = errors.New("invalid template")
)

// Selection is the policy used when several templates match a request.
type Selection string

const (
	// SelectFirstMatch picks the first matching template in registration order
	SelectFirstMatch Selection = "first_match"

	// SelectMostSpecific picks the matching template with the most literal text
	SelectMostSpecific Selection = "most_specific"
)

// Validate checks if the Selection is a valid enum value.
func (s Selection) Validate() error {
	switch s {
	case SelectFirstMatch, SelectMostSpecific:
		return nil
	default:
		return fmt.Errorf("unknown selection policy: %q", s)
	}
}

// Sink receives acknowledgement responses, which are never returned to the caller.
type Sink interface {
	Ack(ctx context.Context, req *hri.Request, handler string, resp hri.Response)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, req *hri.Request, handler string, resp hri.Response)

func (f SinkFunc) Ack(ctx context.Context, req *hri.Request, handler string, resp hri.Response) {
	f(ctx, req, handler, resp)
}

// Result is the outcome of resolving one request.
type Result struct {
	Handler  string       // Name of the selected template, empty on no match
	Matched  bool         // Whether any template matched
	Response hri.Response // Final response
}

// Engine selects templates for requests and runs their handler chains.
// Resolve is safe for concurrent use.
type Engine struct {
	mu        sync.RWMutex
	templates []*Template
	names     map[string]*Template

	selection   Selection
	env         Env
	sink        Sink
	store       resolution.Store
	punctuation string
	logger      *zap.Logger

	wg sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithSelection sets the selection policy.
func WithSelection(s Selection) Option {
	return func(e *Engine) {
		e.selection = s
	}
}

// WithSink sets where acknowledgement responses go.
func WithSink(s Sink) Option {
	return func(e *Engine) {
		e.sink = s
	}
}

// WithResolutionStore sets the store backing resolution contexts.
func WithResolutionStore(s resolution.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithPunctuation sets the characters stripped from tokens during resolution.
func WithPunctuation(chars string) Option {
	return func(e *Engine) {
		e.punctuation = chars
	}
}

// NewEngine creates an engine. The env's logger defaults to the engine's.
func NewEngine(env Env, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		names:       make(map[string]*Template),
		selection:   SelectFirstMatch,
		env:         env,
		store:       resolution.NewMemoryStore(),
		punctuation: resolution.DefaultPunctuation,
		logger:      logging.OrNop(logger),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.env.Logger == nil {
		e.env.Logger = e.logger
	}
	if e.env.DecisionPolicy == "" {
		e.env.DecisionPolicy = decision.PolicyAll
	}
	return e
}

// Register adds templates in order. Selectable templates take part in
// matching; continuation-only templates are reachable through references.
// The whole batch is rejected if a name is taken, a template is incomplete,
// or the continuation graph has a cycle.
func (e *Engine) Register(templates ...*Template) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	batch := make(map[string]bool, len(templates))
	for _, t := range templates {
		if t == nil {
			return fmt.Errorf("%w: nil template", ErrInvalidTemplate)
		}
		if _, exists := e.names[t.Name]; exists || batch[t.Name] {
			return fmt.Errorf("%w: %q", ErrDuplicateTemplate, t.Name)
		}
		batch[t.Name] = true
	}

	if err := validateGraph(templates); err != nil {
		return err
	}

	for _, t := range templates {
		e.names[t.Name] = t
		if t.Selectable() {
			e.templates = append(e.templates, t)
		}
	}
	return nil
}

// Template returns a registered template by name.
func (e *Engine) Template(name string) (*Template, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.names[name]
	return t, ok
}

// Templates returns the selectable templates in registration order.
func (e *Engine) Templates() []*Template {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*Template(nil), e.templates...)
}

// Select returns the template chosen for req and its extracted values.
func (e *Engine) Select(req *hri.Request) (*Template, map[string]string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var best *Template
	var bestValues map[string]string
	for _, t := range e.templates {
		values, ok := t.Match(req)
		if !ok {
			continue
		}
		if e.selection != SelectMostSpecific {
			return t, values, true
		}
		if best == nil || t.specificity() > best.specificity() {
			best, bestValues = t, values
		}
	}
	if best == nil {
		return nil, map[string]string{}, false
	}
	return best, bestValues, true
}

// Resolve turns a request into a response. It never fails: every error is
// reported in the response.
func (e *Engine) Resolve(ctx context.Context, req *hri.Request) Result {
	start := time.Now()

	if err := req.Validate(); err != nil {
		metrics.RecordRequest("", "invalid", time.Since(start))
		return Result{Response: hri.Failure(fmt.Sprintf("invalid request: %v", err))}
	}

	t, extracted, ok := e.Select(req)
	if !ok {
		e.logger.Info("request_unmatched",
			zap.String("request_id", req.ID),
			zap.String("utterance", req.Utterance()))
		metrics.RecordRequest("", "no_match", time.Since(start))
		return Result{Response: hri.Failure("no handler matches the request", req.Utterance())}
	}

	// A fresh context ID per call; request IDs come from clients and may repeat.
	rctx := resolution.New("", e.store, resolution.WithPunctuation(e.punctuation))
	e.logger.Info("request_matched",
		zap.String("request_id", req.ID),
		zap.String("handler", t.Name),
		zap.String("context_id", rctx.ID()))

	inst := t.Instantiate(req, rctx)
	inst.Matched = true
	inst.State = StateMatched

	// Pre-extracted values first, so the template's own extraction wins.
	if req.Verbal != nil {
		for k, v := range req.Verbal.Values {
			inst.input[k] = v
		}
	}
	for k, v := range extracted {
		inst.input[k] = v
	}

	var acks sync.WaitGroup
	resp := e.run(ctx, inst, &acks).Normalize()

	// The context outlives the chain until its acknowledgements are done.
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		acks.Wait()
		if err := rctx.Release(context.WithoutCancel(ctx)); err != nil {
			e.logger.Warn("resolution_release_failed", zap.String("context_id", rctx.ID()), zap.Error(err))
		}
	}()

	outcome := "failure"
	if resp.Success {
		outcome = "success"
	}
	metrics.RecordRequest(t.Name, outcome, time.Since(start))
	e.logger.Info("request_resolved",
		zap.String("request_id", req.ID),
		zap.String("handler", t.Name),
		zap.Bool("success", resp.Success),
		zap.Strings("missing_info", resp.MissingInfo))

	return Result{Handler: t.Name, Matched: true, Response: resp}
}

// Wait blocks until every acknowledgement and context release started by
// Resolve has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// run drives one instance through resolve, handle, planner and continuation dispatch.
func (e *Engine) run(ctx context.Context, inst *Instance, acks *sync.WaitGroup) hri.Response {
	if err := e.resolve(ctx, inst); err != nil {
		e.logger.Warn("resolution_failed", zap.String("handler", inst.Template.Name), zap.Error(err))
		resp := hri.Failure(fmt.Sprintf("resolution context unavailable: %v", err))
		return e.dispatch(ctx, inst, resp, acks)
	}

	if inst.Ack != nil {
		e.dispatchAck(ctx, inst, acks)
	}

	resp := e.handle(ctx, inst)

	if inst.Planner != nil && !inst.Request.Reactive {
		planner := inst.Planner
		planner.Previous = &resp
		inherit(planner, inst)
		if err := e.resolve(ctx, planner); err != nil {
			resp = hri.Failure(fmt.Sprintf("resolution context unavailable: %v", err))
		} else {
			resp = e.handle(ctx, planner)
		}
		e.logger.Debug("planner_consulted",
			zap.String("handler", inst.Template.Name),
			zap.String("planner", planner.Template.Name),
			zap.Bool("success", resp.Success))
	}

	return e.dispatch(ctx, inst, resp, acks)
}

// resolve merges the instance's input into the resolution context and
// resolves it against the context.
func (e *Engine) resolve(ctx context.Context, inst *Instance) error {
	if err := inst.Resolution.Merge(ctx, inst.input); err != nil {
		return err
	}
	values, err := inst.Resolution.Resolve(ctx, inst.input)
	if err != nil {
		return err
	}
	inst.Values = values
	inst.State = StateResolved
	return nil
}

// handle runs the instance's logic. Errors and panics become failed responses.
func (e *Engine) handle(ctx context.Context, inst *Instance) (resp hri.Response) {
	defer func() {
		if r := recover(); r != nil {
			metrics.HandlerPanics.WithLabelValues(inst.Template.Name).Inc()
			e.logger.Error("handler_panicked",
				zap.String("handler", inst.Template.Name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			resp = hri.Failure(fmt.Sprintf("handler %s panicked: %v", inst.Template.Name, r))
		}
		inst.State = StateHandled
	}()

	resp, err := inst.Template.Logic.Handle(ctx, inst, &e.env)
	if err != nil {
		e.logger.Warn("handler_failed", zap.String("handler", inst.Template.Name), zap.Error(err))
		return hri.Failure(err.Error())
	}
	return resp
}

// dispatch runs the on-success or on-failure continuation and merges its response.
func (e *Engine) dispatch(ctx context.Context, inst *Instance, resp hri.Response, acks *sync.WaitGroup) hri.Response {
	next := inst.OnFailure
	if resp.Success {
		next = inst.OnSuccess
	}

	if next != nil {
		inherit(next, inst)
		e.logger.Debug("continuation_dispatched",
			zap.String("handler", inst.Template.Name),
			zap.String("continuation", next.Template.Name),
			zap.Bool("on_success", resp.Success))
		resp = mergeContinuation(resp, e.run(ctx, next, acks), resp.Success)
	}

	if resp.Success {
		inst.State = StateSucceeded
	} else {
		inst.State = StateFailed
	}
	return resp
}

// dispatchAck runs the acknowledgement chain in the background and hands its
// response to the sink.
func (e *Engine) dispatchAck(ctx context.Context, inst *Instance, acks *sync.WaitGroup) {
	ack := inst.Ack
	inherit(ack, inst)

	acks.Add(1)
	e.wg.Add(1)
	metrics.AcksDispatched.Inc()
	e.logger.Debug("ack_dispatched", zap.String("handler", inst.Template.Name), zap.String("ack", ack.Template.Name))

	go func() {
		defer e.wg.Done()
		defer acks.Done()

		resp := e.run(ctx, ack, acks).Normalize()
		if e.sink != nil {
			e.sink.Ack(ctx, inst.Request, ack.Template.Name, resp)
		}
	}()
}

// mergeContinuation combines a response with its continuation's response.
// Actions run in order; the continuation's emotion wins when set; reasons are
// joined; missing info is the ordered union. After on-success the overall
// success is the continuation's; after on-failure it stays false.
func mergeContinuation(parent, child hri.Response, onSuccess bool) hri.Response {
	out := hri.Response{
		Actions: append(append([]hri.Action{}, parent.Actions...), child.Actions...),
		Emotion: parent.Emotion,
		Success: onSuccess && child.Success,
	}
	if child.Emotion != "" {
		out.Emotion = child.Emotion
	}

	var reasons []string
	for _, r := range []string{parent.Reason, child.Reason} {
		if r != "" {
			reasons = append(reasons, r)
		}
	}
	out.Reason = strings.Join(reasons, "; ")

	seen := make(map[string]bool)
	out.MissingInfo = []string{}
	for _, m := range append(append([]string{}, parent.MissingInfo...), child.MissingInfo...) {
		if !seen[m] {
			seen[m] = true
			out.MissingInfo = append(out.MissingInfo, m)
		}
	}
	return out
}

// inherit hands the parent's resolved values, person and emotion to a continuation.
func inherit(next, parent *Instance) {
	next.input = copyValues(parent.Values)
	next.Person = parent.Person
	next.Emotion = parent.Emotion
}

func copyValues(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
