package handler

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dyluth/hri/internal/decision"
	"github.com/dyluth/hri/internal/pattern"
	"github.com/dyluth/hri/pkg/hri"
	"go.uber.org/zap"
)

// Built-in kinds.
const (
	KindSay               = "say"
	KindCheckAvailability = "check_availability"
	KindLookup            = "lookup"
	KindAct               = "act"
	KindReason            = "reason"
	KindPresence          = "presence"
)

// unresolved is the response for text that still references unknown tokens.
func unresolved(missing []string) hri.Response {
	return hri.Failure("unresolved reference", missing...)
}

func requireParams(params map[string]string, names ...string) error {
	for _, name := range names {
		if strings.TrimSpace(params[name]) == "" {
			return fmt.Errorf("param %q is required", name)
		}
	}
	return nil
}

// say: speaks params.text, with an optional params.emotion.
func newSay(params map[string]string) (Logic, error) {
	if err := requireParams(params, "text"); err != nil {
		return nil, err
	}
	return LogicFunc(func(ctx context.Context, inst *Instance, _ *Env) (hri.Response, error) {
		text, missing, err := inst.Expand(ctx, inst.Param("text"))
		if err != nil {
			return hri.Response{}, err
		}
		if len(missing) > 0 {
			return unresolved(missing), nil
		}

		emotion := inst.Param("emotion")
		if emotion == "" {
			emotion = inst.Emotion
		}
		return hri.SayResponse(text, emotion), nil
	}), nil
}

// check_availability: decides whether params.person (or the requester) is
// available. Several persons may be given separated by commas; they are
// combined under the environment's decision policy.
func newCheckAvailability(params map[string]string) (Logic, error) {
	return LogicFunc(func(ctx context.Context, inst *Instance, env *Env) (hri.Response, error) {
		if env.Availability == nil {
			return hri.Response{}, fmt.Errorf("availability state unavailable")
		}
		base := decision.NewPersonAvailability(env.Availability)

		var helper decision.Helper = base
		if raw := inst.Param("person"); raw != "" {
			expanded, missing, err := inst.Expand(ctx, raw)
			if err != nil {
				return hri.Response{}, err
			}
			if len(missing) > 0 {
				return unresolved(missing), nil
			}

			var helpers []decision.Helper
			for _, ref := range strings.Split(expanded, ",") {
				person, err := lookupPerson(ctx, env.Beliefs, strings.TrimSpace(ref))
				if err != nil {
					return hri.Response{}, err
				}
				helpers = append(helpers, base.ForPerson(person))
			}
			helper = decision.NewComposite(env.DecisionPolicy, helpers...)
		}

		d := helper.Decide(ctx, inst.Request)
		resp := hri.SayResponse(d.Reason, d.Emotion)
		resp.Actions[0].Params["speed_factor"] = strconv.FormatFloat(d.SpeedFactor, 'f', -1, 64)
		resp.Reason = d.Reason
		resp.Success = d.Go
		return resp, nil
	}), nil
}

// lookupPerson resolves a name or id to a person through the belief system.
// Unknown references are taken as ids.
func lookupPerson(ctx context.Context, beliefs hri.BeliefSystem, ref string) (*hri.Person, error) {
	if ref == "" {
		return nil, nil
	}
	if beliefs != nil {
		facts, err := beliefs.Get(ctx, hri.BeliefPerson, ref)
		if err != nil {
			return nil, fmt.Errorf("failed to look up person %q: %w", ref, err)
		}
		for _, f := range facts {
			if f.ID() == ref || strings.EqualFold(f["name"], ref) {
				return &hri.Person{ID: f.ID(), Name: f["name"]}, nil
			}
		}
	}
	return &hri.Person{ID: ref}, nil
}

// lookup: finds facts of params.type matching params.description. The first
// fact's id is stored under params.store_as; params.say, if set, is spoken
// afterwards so it can reference the stored key.
func newLookup(params map[string]string) (Logic, error) {
	if err := requireParams(params, "type"); err != nil {
		return nil, err
	}
	return LogicFunc(func(ctx context.Context, inst *Instance, env *Env) (hri.Response, error) {
		if env.Beliefs == nil {
			return hri.Response{}, fmt.Errorf("belief system unavailable")
		}

		description, missing, err := inst.Expand(ctx, inst.Param("description"))
		if err != nil {
			return hri.Response{}, err
		}
		if len(missing) > 0 {
			return unresolved(missing), nil
		}

		factType := inst.Param("type")
		facts, err := env.Beliefs.Get(ctx, factType, description)
		if err != nil {
			return hri.Response{}, fmt.Errorf("failed to query %s facts: %w", factType, err)
		}
		if len(facts) == 0 {
			subject := factType
			if description != "" {
				subject = description
			}
			return hri.Failure(fmt.Sprintf("no %s matches %q", factType, description), subject), nil
		}

		if key := inst.Param("store_as"); key != "" {
			if err := inst.Store(ctx, tokenKey(key), facts[0].ID()); err != nil {
				return hri.Response{}, fmt.Errorf("failed to store %s: %w", key, err)
			}
		}

		reason := fmt.Sprintf("found %d %s", len(facts), factType)
		say := inst.Param("say")
		if say == "" {
			return hri.Response{Emotion: inst.Emotion, Reason: reason, Success: true}, nil
		}

		text, missing, err := inst.Expand(ctx, say)
		if err != nil {
			return hri.Response{}, err
		}
		if len(missing) > 0 {
			return unresolved(missing), nil
		}
		resp := hri.SayResponse(text, inst.Emotion)
		resp.Reason = reason
		return resp, nil
	}), nil
}

// act: emits one action of kind params.action carrying every other param.
func newAct(params map[string]string) (Logic, error) {
	if err := requireParams(params, "action"); err != nil {
		return nil, err
	}
	return LogicFunc(func(ctx context.Context, inst *Instance, _ *Env) (hri.Response, error) {
		names := make([]string, 0, len(inst.Template.Params))
		for name := range inst.Template.Params {
			if name != "action" {
				names = append(names, name)
			}
		}
		sort.Strings(names)

		actionParams := make(map[string]string, len(names))
		var missing []string
		for _, name := range names {
			v, m, err := inst.Expand(ctx, inst.Param(name))
			if err != nil {
				return hri.Response{}, err
			}
			missing = append(missing, m...)
			actionParams[name] = v
		}
		if len(missing) > 0 {
			return unresolved(dedupe(missing)), nil
		}

		return hri.Response{
			Actions: []hri.Action{{Kind: hri.ActionKind(inst.Param("action")), Params: actionParams}},
			Emotion: inst.Emotion,
			Success: true,
		}, nil
	}), nil
}

// reason: asks the params.backend reasoning backend params.prompt and says
// the answer. The answer is stored under params.store_as when set.
func newReason(params map[string]string) (Logic, error) {
	if err := requireParams(params, "backend", "prompt"); err != nil {
		return nil, err
	}
	return LogicFunc(func(ctx context.Context, inst *Instance, env *Env) (hri.Response, error) {
		if env.Reasoning == nil {
			return hri.Failure("reasoning unavailable"), nil
		}
		backend := env.Reasoning.Lookup(inst.Param("backend"))
		if backend == nil {
			return hri.Failure("reasoning unavailable"), nil
		}

		prompt, missing, err := inst.Expand(ctx, inst.Param("prompt"))
		if err != nil {
			return hri.Response{}, err
		}
		if len(missing) > 0 {
			return unresolved(missing), nil
		}

		answer, err := backend.Ask(ctx, prompt)
		if err != nil {
			return hri.Failure(fmt.Sprintf("reasoning failed: %v", err)), nil
		}
		if key := inst.Param("store_as"); key != "" {
			if err := inst.Store(ctx, tokenKey(key), answer); err != nil {
				return hri.Response{}, fmt.Errorf("failed to store %s: %w", key, err)
			}
		}
		return hri.SayResponse(answer, inst.Emotion), nil
	}), nil
}

// presence: folds the latest vision detections into the availability state.
func newPresence(map[string]string) (Logic, error) {
	return LogicFunc(func(ctx context.Context, inst *Instance, env *Env) (hri.Response, error) {
		if env.Beliefs == nil || env.Availability == nil {
			return hri.Response{}, fmt.Errorf("presence needs a belief system and availability state")
		}

		facts, err := env.Beliefs.Get(ctx, hri.BeliefVision, "")
		if err != nil {
			return hri.Response{}, fmt.Errorf("failed to read vision data: %w", err)
		}

		var observed []string
		for _, f := range facts {
			if f.ID() != "" && f["seen"] == "true" {
				observed = append(observed, f.ID())
			}
		}

		snap, err := env.Availability.HandlePersons(ctx, observed)
		if err != nil {
			return hri.Response{}, fmt.Errorf("failed to update availability: %w", err)
		}

		env.Logger.Debug("presence_updated",
			zap.Strings("observed", observed),
			zap.Int("known", len(snap)))

		return hri.Response{
			Emotion: inst.Emotion,
			Reason:  fmt.Sprintf("%d of %d known persons present", len(dedupe(observed)), len(snap)),
			Success: true,
		}, nil
	}), nil
}

// tokenKey stores plain names in braced form so later text can reference them.
func tokenKey(key string) string {
	if pattern.IsToken(key) {
		return key
	}
	return pattern.Token(key)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
