package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dyluth/hri/internal/availability"
	"github.com/dyluth/hri/internal/decision"
	"github.com/dyluth/hri/internal/handler"
	"github.com/dyluth/hri/internal/resolution"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure returned by Load and Parse.
var ErrInvalidConfig = errors.New("invalid configuration")

// DefaultResolutionTTL bounds how long a resolution context survives in Redis.
const DefaultResolutionTTL = 10 * time.Minute

// HRIConfig represents the top-level hri.yml configuration
type HRIConfig struct {
	Version       string              `yaml:"version"`
	Selection     string              `yaml:"selection,omitempty"` // first_match (default) or most_specific
	Resolution    *ResolutionConfig   `yaml:"resolution,omitempty"`
	Availability  *AvailabilityConfig `yaml:"availability,omitempty"`
	Decision      *DecisionConfig     `yaml:"decision,omitempty"`
	Reasoning     *ReasoningConfig    `yaml:"reasoning,omitempty"`
	Handlers      []Handler           `yaml:"handlers"`
	Continuations []Handler           `yaml:"continuations,omitempty"` // Reachable only through references
}

// ResolutionConfig tunes resolution contexts
type ResolutionConfig struct {
	Punctuation *string `yaml:"punctuation,omitempty"` // Characters stripped from tokens before lookup
	TTL         string  `yaml:"ttl,omitempty"`         // Go duration, e.g. "10m"
}

// AvailabilityConfig tunes the availability score
type AvailabilityConfig struct {
	Step         *float64 `yaml:"step,omitempty"`
	InitialScore *float64 `yaml:"initial_score,omitempty"`
}

// DecisionConfig selects how several decision helpers combine
type DecisionConfig struct {
	Policy string `yaml:"policy,omitempty"` // all (default) or any
}

// ReasoningConfig declares the reasoning backends handlers may use
type ReasoningConfig struct {
	Backends map[string]Backend `yaml:"backends"`
}

// Backend is one reasoning backend
type Backend struct {
	Type   string            `yaml:"type"` // static or http
	Params map[string]string `yaml:"params,omitempty"`
}

// Handler is one response template
type Handler struct {
	Name      string            `yaml:"name"`
	Pattern   string            `yaml:"pattern,omitempty"`
	Gesture   string            `yaml:"gesture,omitempty"`
	Kind      string            `yaml:"kind"`
	Params    map[string]string `yaml:"params,omitempty"`
	Ack       string            `yaml:"ack,omitempty"`
	OnSuccess string            `yaml:"on_success,omitempty"`
	OnFailure string            `yaml:"on_failure,omitempty"`
	Planner   string            `yaml:"planner,omitempty"`
}

// Validate performs strict validation on the configuration and applies defaults
func (c *HRIConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Selection == "" {
		c.Selection = string(handler.SelectFirstMatch)
	}
	if err := handler.Selection(c.Selection).Validate(); err != nil {
		return fmt.Errorf("selection: %w", err)
	}

	if err := c.validateResolution(); err != nil {
		return err
	}
	if err := c.validateAvailability(); err != nil {
		return err
	}

	if c.Decision == nil {
		c.Decision = &DecisionConfig{}
	}
	if c.Decision.Policy == "" {
		c.Decision.Policy = string(decision.PolicyAll)
	}
	if err := decision.Policy(c.Decision.Policy).Validate(); err != nil {
		return fmt.Errorf("decision: %w", err)
	}

	if c.Reasoning != nil {
		for key, b := range c.Reasoning.Backends {
			if b.Type == "" {
				return fmt.Errorf("reasoning backend '%s': type is required", key)
			}
		}
	}

	// Required: at least one handler
	if len(c.Handlers) == 0 {
		return fmt.Errorf("no handlers defined")
	}

	names := make(map[string]string) // name → section
	for _, h := range c.Handlers {
		if err := h.Validate(true); err != nil {
			return err
		}
		if section, exists := names[h.Name]; exists {
			return fmt.Errorf("duplicate template name '%s' (already defined in %s)", h.Name, section)
		}
		names[h.Name] = "handlers"
	}
	for _, h := range c.Continuations {
		if err := h.Validate(false); err != nil {
			return err
		}
		if section, exists := names[h.Name]; exists {
			return fmt.Errorf("duplicate template name '%s' (already defined in %s)", h.Name, section)
		}
		names[h.Name] = "continuations"
	}

	for _, h := range append(append([]Handler{}, c.Handlers...), c.Continuations...) {
		for field, ref := range h.references() {
			if _, ok := names[ref]; !ok {
				return fmt.Errorf("template '%s': %s references unknown template '%s'", h.Name, field, ref)
			}
		}
		if h.Kind == handler.KindReason && !c.hasBackend(h.Params["backend"]) {
			return fmt.Errorf("template '%s': reasoning backend '%s' is not configured", h.Name, h.Params["backend"])
		}
	}

	return nil
}

func (c *HRIConfig) validateResolution() error {
	if c.Resolution == nil {
		c.Resolution = &ResolutionConfig{}
	}
	if c.Resolution.Punctuation == nil {
		p := resolution.DefaultPunctuation
		c.Resolution.Punctuation = &p
	}
	if c.Resolution.TTL == "" {
		c.Resolution.TTL = DefaultResolutionTTL.String()
	}
	ttl, err := time.ParseDuration(c.Resolution.TTL)
	if err != nil {
		return fmt.Errorf("resolution.ttl: %w", err)
	}
	if ttl <= 0 {
		return fmt.Errorf("resolution.ttl must be > 0, got %s", c.Resolution.TTL)
	}
	return nil
}

func (c *HRIConfig) validateAvailability() error {
	if c.Availability == nil {
		c.Availability = &AvailabilityConfig{}
	}
	if c.Availability.Step == nil {
		step := availability.DefaultStep
		c.Availability.Step = &step
	}
	if c.Availability.InitialScore == nil {
		initial := availability.DefaultInitialScore
		c.Availability.InitialScore = &initial
	}

	if step := *c.Availability.Step; step <= 0 || step > 1 {
		return fmt.Errorf("availability.step must be in (0, 1], got %g", step)
	}
	if initial := *c.Availability.InitialScore; initial < 0 || initial > 1 {
		return fmt.Errorf("availability.initial_score must be in [0, 1], got %g", initial)
	}
	return nil
}

func (c *HRIConfig) hasBackend(key string) bool {
	if c.Reasoning == nil || key == "" {
		return false
	}
	_, ok := c.Reasoning.Backends[key]
	return ok
}

// ResolutionTTL returns the parsed resolution TTL. Call after Validate.
func (c *HRIConfig) ResolutionTTL() time.Duration {
	ttl, err := time.ParseDuration(c.Resolution.TTL)
	if err != nil {
		return DefaultResolutionTTL
	}
	return ttl
}

// Specs converts the handler sections into handler specs, in order.
func (c *HRIConfig) Specs() (handlers, continuations []handler.Spec) {
	for _, h := range c.Handlers {
		handlers = append(handlers, h.spec())
	}
	for _, h := range c.Continuations {
		continuations = append(continuations, h.spec())
	}
	return handlers, continuations
}

// Validate performs validation on a single template. Top-level handlers need
// a pattern or a gesture; continuations must have neither.
func (h *Handler) Validate(topLevel bool) error {
	// Required: name
	if h.Name == "" {
		return fmt.Errorf("template with kind '%s': name is required", h.Kind)
	}

	// Required: kind
	if h.Kind == "" {
		return fmt.Errorf("template '%s': kind is required", h.Name)
	}

	hasTrigger := h.Pattern != "" || h.Gesture != ""
	if topLevel && !hasTrigger {
		return fmt.Errorf("handler '%s': pattern or gesture is required", h.Name)
	}
	if !topLevel && hasTrigger {
		return fmt.Errorf("continuation '%s': pattern and gesture are not allowed", h.Name)
	}

	for field, ref := range h.references() {
		if ref == h.Name {
			return fmt.Errorf("template '%s': %s references itself", h.Name, field)
		}
	}

	return nil
}

func (h *Handler) references() map[string]string {
	refs := make(map[string]string)
	for field, ref := range map[string]string{
		"ack":        h.Ack,
		"on_success": h.OnSuccess,
		"on_failure": h.OnFailure,
		"planner":    h.Planner,
	} {
		if ref != "" {
			refs[field] = ref
		}
	}
	return refs
}

func (h *Handler) spec() handler.Spec {
	return handler.Spec{
		Name:      h.Name,
		Pattern:   h.Pattern,
		Gesture:   h.Gesture,
		Kind:      h.Kind,
		Params:    h.Params,
		Ack:       h.Ack,
		OnSuccess: h.OnSuccess,
		OnFailure: h.OnFailure,
		Planner:   h.Planner,
	}
}

// Parse decodes and validates hri.yml content. Unknown fields are rejected.
func Parse(data []byte) (*HRIConfig, error) {
	var config HRIConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return &config, nil
}

// Load reads and validates hri.yml from the specified path
func Load(path string) (*HRIConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}
