// Package decision evaluates go/no-go preconditions for a request.
//
// A Helper inspects a request together with situational state and returns
// exactly one Decision. Helpers are read-only: state changes belong to the
// handler layer.
package decision

import (
	"context"
	"fmt"

	"github.com/dyluth/hri/internal/metrics"
	"github.com/dyluth/hri/pkg/hri"
)

// Speed factors. A decision's speed factor is within [MinSpeed, MaxSpeed].
const (
	MinSpeed    = 0.0
	NormalSpeed = 1.0
	MaxSpeed    = 2.0
)

// Decision is a go/no-go verdict.
type Decision struct {
	Go          bool    `json:"go"`
	SpeedFactor float64 `json:"speed_factor"` // 0..2, 1 is normal speed
	Emotion     string  `json:"emotion"`
	Reason      string  `json:"reason"`
}

// Helper produces a decision for a request.
type Helper interface {
	Decide(ctx context.Context, req *hri.Request) Decision
}

// AvailabilityChecker is the read side of the availability state.
type AvailabilityChecker interface {
	IsAvailable(ctx context.Context, personID string) bool
}

// PersonAvailability decides go when the target person is available.
type PersonAvailability struct {
	checker AvailabilityChecker

	// Target picks the person to check. Nil checks the requester.
	Target func(req *hri.Request) *hri.Person
}

// NewPersonAvailability creates a helper that checks the requester.
func NewPersonAvailability(checker AvailabilityChecker) *PersonAvailability {
	return &PersonAvailability{checker: checker}
}

// ForPerson returns a copy of the helper that checks p instead of the requester.
func (h *PersonAvailability) ForPerson(p *hri.Person) *PersonAvailability {
	return &PersonAvailability{
		checker: h.checker,
		Target:  func(*hri.Request) *hri.Person { return p },
	}
}

func (h *PersonAvailability) Decide(ctx context.Context, req *hri.Request) Decision {
	var person *hri.Person
	switch {
	case h.Target != nil:
		person = h.Target(req)
	case req != nil:
		person = req.Person
	}

	d := h.decide(ctx, person)
	metrics.RecordDecision("person_availability", d.Go)
	return d
}

func (h *PersonAvailability) decide(ctx context.Context, person *hri.Person) Decision {
	if person == nil || person.ID == "" {
		return Decision{Go: false, SpeedFactor: MinSpeed, Emotion: hri.EmotionNeutral, Reason: "You did not specify a person"}
	}

	if h.checker.IsAvailable(ctx, person.ID) {
		return Decision{Go: true, SpeedFactor: NormalSpeed, Emotion: hri.EmotionNeutral, Reason: fmt.Sprintf("%s is available", person.Label())}
	}
	return Decision{Go: false, SpeedFactor: MinSpeed, Emotion: hri.EmotionNeutral, Reason: fmt.Sprintf("%s is not available", person.Label())}
}
