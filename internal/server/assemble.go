package server

import (
	"fmt"
	"sort"

	"github.com/dyluth/hri/internal/availability"
	"github.com/dyluth/hri/internal/beliefs"
	"github.com/dyluth/hri/internal/config"
	"github.com/dyluth/hri/internal/decision"
	"github.com/dyluth/hri/internal/handler"
	"github.com/dyluth/hri/internal/logging"
	"github.com/dyluth/hri/internal/reasoning"
	"github.com/dyluth/hri/internal/resolution"
	"github.com/dyluth/hri/pkg/hri"
	"go.uber.org/zap"
)

// Deps are the stores and collaborators an engine is assembled from.
// Nil fields fall back to in-process implementations.
type Deps struct {
	Beliefs           hri.BeliefSystem
	AvailabilityStore availability.Store
	ResolutionStore   resolution.Store
	Sink              handler.Sink
	Kinds             *handler.Kinds
	Logger            *zap.Logger
}

// Components is a fully wired resolution pipeline.
type Components struct {
	Engine       *handler.Engine
	Availability *availability.Manager
	Reasoning    *reasoning.Registry
	Beliefs      hri.BeliefSystem
}

// Assemble builds the pipeline described by cfg. Reasoning backends are loaded
// eagerly so misconfigured backends fail at startup.
func Assemble(cfg *config.HRIConfig, deps Deps) (*Components, error) {
	logger := logging.OrNop(deps.Logger)
	if deps.Beliefs == nil {
		deps.Beliefs = beliefs.NewMemory()
	}
	if deps.ResolutionStore == nil {
		deps.ResolutionStore = resolution.NewMemoryStore()
	}
	if deps.Kinds == nil {
		deps.Kinds = handler.DefaultKinds()
	}

	avail := availability.NewManager(deps.AvailabilityStore, logger,
		availability.WithStep(*cfg.Availability.Step),
		availability.WithInitialScore(*cfg.Availability.InitialScore))

	registry := reasoning.NewRegistry(logger)
	if cfg.Reasoning != nil {
		keys := make([]string, 0, len(cfg.Reasoning.Backends))
		for key := range cfg.Reasoning.Backends {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			b := cfg.Reasoning.Backends[key]
			registry.Configure(key, reasoning.Spec{Type: b.Type, Params: b.Params})
			if _, err := registry.Load(key); err != nil {
				return nil, fmt.Errorf("failed to load reasoning backend: %w", err)
			}
		}
	}

	handlers, continuations := cfg.Specs()
	templates, err := handler.Build(handlers, continuations, deps.Kinds)
	if err != nil {
		return nil, fmt.Errorf("failed to build handlers: %w", err)
	}

	env := handler.Env{
		Beliefs:        deps.Beliefs,
		Availability:   avail,
		Reasoning:      registry,
		DecisionPolicy: decision.Policy(cfg.Decision.Policy),
		Logger:         logger,
	}
	opts := []handler.Option{
		handler.WithSelection(handler.Selection(cfg.Selection)),
		handler.WithResolutionStore(deps.ResolutionStore),
		handler.WithPunctuation(*cfg.Resolution.Punctuation),
	}
	if deps.Sink != nil {
		opts = append(opts, handler.WithSink(deps.Sink))
	}

	engine := handler.NewEngine(env, logger, opts...)
	if err := engine.Register(templates...); err != nil {
		return nil, fmt.Errorf("failed to register handlers: %w", err)
	}

	logger.Info("pipeline_assembled",
		zap.Int("handlers", len(handlers)),
		zap.Int("continuations", len(continuations)),
		zap.String("selection", cfg.Selection),
		zap.String("decision_policy", cfg.Decision.Policy))

	return &Components{
		Engine:       engine,
		Availability: avail,
		Reasoning:    registry,
		Beliefs:      deps.Beliefs,
	}, nil
}
