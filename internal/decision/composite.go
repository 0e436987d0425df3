package decision

import (
	"context"
	"fmt"

	"github.com/dyluth/hri/pkg/hri"
)

// Policy is the tie-break rule of a Composite.
type Policy string

const (
	// PolicyAll requires every helper to say go
	PolicyAll Policy = "all"

	// PolicyAny requires at least one helper to say go
	PolicyAny Policy = "any"
)

// Validate checks if the Policy is a valid enum value.
func (p Policy) Validate() error {
	switch p {
	case PolicyAll, PolicyAny:
		return nil
	default:
		return fmt.Errorf("unknown decision policy: %q", p)
	}
}

// Composite combines helpers under a policy.
//
// Under PolicyAll the first no-go decision is reported; under PolicyAny the
// first go decision is. When the verdict is go, the speed factor is the
// minimum over all go decisions. A composite without helpers decides go at
// normal speed.
type Composite struct {
	Policy  Policy
	Helpers []Helper
}

// NewComposite creates a composite. An empty policy means PolicyAll.
func NewComposite(policy Policy, helpers ...Helper) *Composite {
	if policy == "" {
		policy = PolicyAll
	}
	return &Composite{Policy: policy, Helpers: helpers}
}

func (c *Composite) Decide(ctx context.Context, req *hri.Request) Decision {
	if len(c.Helpers) == 0 {
		return Decision{Go: true, SpeedFactor: NormalSpeed, Emotion: hri.EmotionNeutral}
	}

	decisions := make([]Decision, len(c.Helpers))
	for i, h := range c.Helpers {
		decisions[i] = h.Decide(ctx, req)
	}

	var reported *Decision
	for i := range decisions {
		d := &decisions[i]
		if c.Policy == PolicyAny && d.Go {
			reported = d
			break
		}
		if c.Policy != PolicyAny && !d.Go {
			reported = d
			break
		}
	}

	if reported == nil {
		if c.Policy == PolicyAny {
			// No helper said go; report the first refusal.
			return decisions[0]
		}
		reported = &decisions[0]
	}
	if !reported.Go {
		return *reported
	}

	out := *reported
	for _, d := range decisions {
		if d.Go && d.SpeedFactor < out.SpeedFactor {
			out.SpeedFactor = d.SpeedFactor
		}
	}
	return out
}

// Func adapts a function to the Helper interface.
type Func func(ctx context.Context, req *hri.Request) Decision

func (f Func) Decide(ctx context.Context, req *hri.Request) Decision {
	return f(ctx, req)
}
