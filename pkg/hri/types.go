package hri

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Emotions understood by the actuation layer. Handlers may use any string;
// these are the ones the built-in handlers emit.
const (
	EmotionNatural    = "natural"
	EmotionNeutral    = "neutral"
	EmotionHappy      = "happy"
	EmotionSad        = "sad"
	EmotionFrustrated = "frustrated"
)

// Person identifies the human who made a request.
type Person struct {
	ID         string            `json:"id"`                   // Stable identifier (e.g., hri tracking id)
	Name       string            `json:"name,omitempty"`       // Display name, if known
	Attributes map[string]string `json:"attributes,omitempty"` // Free-form attributes from perception
}

// Label returns the name used when talking about the person.
func (p *Person) Label() string {
	if p == nil {
		return ""
	}
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// VerbalRequest is the spoken part of a request, as produced by the recognizer.
type VerbalRequest struct {
	RawText string            `json:"raw_text"`         // e.g., "bring the bottle to bob"
	Pattern string            `json:"pattern"`          // e.g., "bring the {object} to {who}"
	Values  map[string]string `json:"values,omitempty"` // Pre-extracted values, keyed by "{token}"
	Emotion string            `json:"emotion,omitempty"`
}

// Pose is a position and orientation reported by the gesture detector.
type Pose struct {
	Position    [3]float64 `json:"position"`
	Orientation [4]float64 `json:"orientation"`
}

// VisualRequest is the gesture part of a request.
type VisualRequest struct {
	Gesture string            `json:"gesture"`          // e.g., "pointing"
	Poses   map[string]Pose   `json:"poses,omitempty"`  // e.g., "left_hand" -> pointing vector
	Params  map[string]string `json:"params,omitempty"` // Other detector-specific parameters
}

// Request is an immutable description of one interaction instance.
type Request struct {
	ID       string         `json:"id"`
	Person   *Person        `json:"person,omitempty"`
	Verbal   *VerbalRequest `json:"verbal,omitempty"`
	Visual   *VisualRequest `json:"visual,omitempty"`
	Priority int            `json:"priority"` // Lower is more urgent
	Reactive bool           `json:"reactive"` // Reactive requests bypass planner arbitration
}

// Validate checks that the request carries something to resolve.
func (r *Request) Validate() error {
	if r == nil {
		return fmt.Errorf("request is nil")
	}
	if r.Verbal == nil && r.Visual == nil {
		return fmt.Errorf("request has neither a verbal nor a visual part")
	}
	if r.Verbal != nil && strings.TrimSpace(r.Verbal.RawText) == "" && len(r.Verbal.Values) == 0 {
		return fmt.Errorf("verbal request has no text and no values")
	}
	if r.Visual != nil && r.Visual.Gesture == "" {
		return fmt.Errorf("visual request has no gesture")
	}
	if r.ID != "" {
		if _, err := uuid.Parse(r.ID); err != nil {
			return fmt.Errorf("invalid request ID: not a valid UUID")
		}
	}
	return nil
}

// EnsureID assigns a fresh UUID when the request has none and returns the ID.
func (r *Request) EnsureID() string {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return r.ID
}

// UnnamedUtterance labels a verbal request that carries only pre-extracted values.
const UnnamedUtterance = "utterance"

// Utterance names what the request said: the raw verbal text, the recognized
// pattern when there is no text, or the gesture label for visual requests.
func (r *Request) Utterance() string {
	switch {
	case r.Verbal != nil && r.Verbal.RawText != "":
		return r.Verbal.RawText
	case r.Verbal != nil && r.Verbal.Pattern != "":
		return r.Verbal.Pattern
	case r.Visual != nil:
		return r.Visual.Gesture
	case r.Verbal != nil:
		return UnnamedUtterance
	default:
		return ""
	}
}

// Emotion returns the emotion detected with the verbal request, if any.
func (r *Request) Emotion() string {
	if r.Verbal != nil {
		return r.Verbal.Emotion
	}
	return ""
}

// ActionKind tags an action descriptor.
type ActionKind string

const (
	// ActionSay speaks a text with an emotion
	ActionSay ActionKind = "say"

	// ActionMove moves the robot to a destination
	ActionMove ActionKind = "move"

	// ActionGesture performs a body gesture
	ActionGesture ActionKind = "gesture"
)

// Action is an abstract descriptor for the actuation layer.
type Action struct {
	Kind   ActionKind        `json:"kind"`
	Params map[string]string `json:"params"`
}

// Response is the outcome of resolving a request.
type Response struct {
	Actions     []Action `json:"actions"`
	Emotion     string   `json:"emotion"`
	Reason      string   `json:"reason"`
	Success     bool     `json:"success"`
	MissingInfo []string `json:"missing_info"`
}

// Fact is an opaque belief-system record, e.g. {"id": "b1", "type": "bottle", "color": "red"}.
type Fact map[string]string

// ID returns the fact's "id" attribute.
func (f Fact) ID() string {
	return f["id"]
}

// Matches reports whether every word of description appears among the words of
// the fact's attribute values, ignoring case. An empty description matches.
func (f Fact) Matches(description string) bool {
	words := make(map[string]bool)
	for _, v := range f {
		for _, w := range strings.Fields(strings.ToLower(v)) {
			words[w] = true
		}
	}
	for _, w := range strings.Fields(strings.ToLower(description)) {
		if !words[w] {
			return false
		}
	}
	return true
}
