package handler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/dyluth/hri/internal/availability"
	"github.com/dyluth/hri/internal/beliefs"
	"github.com/dyluth/hri/internal/pattern"
	"github.com/dyluth/hri/internal/resolution"
	"github.com/dyluth/hri/pkg/hri"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func say(t *testing.T, name, text string) *Template {
	t.Helper()
	logic, err := newSay(map[string]string{"text": text})
	require.NoError(t, err)
	return &Template{Name: name, Kind: KindSay, Logic: logic, Params: map[string]string{"text": text}}
}

func verbal(text string) *hri.Request {
	return &hri.Request{Verbal: &hri.VerbalRequest{RawText: text}}
}

func sayText(t *testing.T, resp hri.Response, i int) string {
	t.Helper()
	require.Greater(t, len(resp.Actions), i)
	return resp.Actions[i].Params["text"]
}

func TestResolveExtractsAndSpeaks(t *testing.T) {
	e := NewEngine(Env{}, nil)
	bring := say(t, "bring", "bringing the {object} to {who}")
	bring.Matcher = pattern.MustCompile("bring the {object} to {who}")
	require.NoError(t, e.Register(bring))

	res := e.Resolve(context.Background(), verbal("bring the bottle to bob"))
	e.Wait()

	assert.True(t, res.Matched)
	assert.Equal(t, "bring", res.Handler)
	assert.True(t, res.Response.Success)
	assert.Equal(t, "bringing the bottle to bob", sayText(t, res.Response, 0))
	assert.Equal(t, hri.EmotionNatural, res.Response.Emotion)
}

func TestResolveNoMatch(t *testing.T) {
	e := NewEngine(Env{}, nil)
	hello := say(t, "hello", "hi")
	hello.Matcher = pattern.MustCompile("hello robot")
	require.NoError(t, e.Register(hello))

	res := e.Resolve(context.Background(), verbal("goodbye robot"))

	assert.False(t, res.Matched)
	assert.Empty(t, res.Handler)
	assert.False(t, res.Response.Success)
	assert.Equal(t, []string{"goodbye robot"}, res.Response.MissingInfo)
	assert.Empty(t, res.Response.Actions)

	valuesOnly := &hri.Request{Verbal: &hri.VerbalRequest{Values: map[string]string{"object": "cup"}}}
	res = e.Resolve(context.Background(), valuesOnly)
	assert.False(t, res.Matched)
	assert.Equal(t, []string{hri.UnnamedUtterance}, res.Response.MissingInfo)
}

func TestResolveInvalidRequest(t *testing.T) {
	e := NewEngine(Env{}, nil)
	res := e.Resolve(context.Background(), &hri.Request{})

	assert.False(t, res.Response.Success)
	assert.Contains(t, res.Response.Reason, "invalid request")
}

func TestResolveUsesPreExtractedValues(t *testing.T) {
	e := NewEngine(Env{}, nil)
	bring := say(t, "bring", "bringing the {object}")
	bring.Matcher = pattern.MustCompile("bring the {object} to {who}")
	require.NoError(t, e.Register(bring))

	req := &hri.Request{Verbal: &hri.VerbalRequest{
		Pattern: "bring the {object} to {who}",
		Values:  map[string]string{"{object}": "cup", "{who}": "ann"},
	}}
	res := e.Resolve(context.Background(), req)
	e.Wait()

	require.True(t, res.Response.Success)
	assert.Equal(t, "bringing the cup", sayText(t, res.Response, 0))
}

func TestUnresolvedReferenceReportsTokens(t *testing.T) {
	e := NewEngine(Env{}, nil)
	h := say(t, "greet", "hello {who}, where is {place}")
	h.Matcher = pattern.MustCompile("greet {who}")
	require.NoError(t, e.Register(h))

	res := e.Resolve(context.Background(), verbal("greet bob"))
	e.Wait()

	assert.False(t, res.Response.Success)
	assert.Equal(t, []string{"{place}"}, res.Response.MissingInfo)
}

func TestOnSuccessContinuationMerges(t *testing.T) {
	e := NewEngine(Env{}, nil)
	done := say(t, "done", "done with the {object}")
	done.Params["emotion"] = hri.EmotionHappy

	h := say(t, "bring", "bringing the {object}")
	h.Matcher = pattern.MustCompile("bring the {object}")
	h.OnSuccess = done
	require.NoError(t, e.Register(h, done))

	res := e.Resolve(context.Background(), verbal("bring the cup"))
	e.Wait()

	require.True(t, res.Response.Success)
	require.Len(t, res.Response.Actions, 2)
	assert.Equal(t, "bringing the cup", sayText(t, res.Response, 0))
	assert.Equal(t, "done with the cup", sayText(t, res.Response, 1))
	assert.Equal(t, hri.EmotionHappy, res.Response.Emotion)
}

func TestOnFailureContinuationKeepsFailure(t *testing.T) {
	e := NewEngine(Env{Beliefs: beliefs.NewMemory()}, nil)
	sorry := say(t, "sorry", "sorry, I cannot find the {object}")

	find := &Template{
		Name:      "find",
		Kind:      KindLookup,
		Matcher:   pattern.MustCompile("find the {object}"),
		Params:    map[string]string{"type": hri.BeliefObject, "description": "{object}"},
		OnFailure: sorry,
	}
	var err error
	find.Logic, err = newLookup(find.Params)
	require.NoError(t, err)
	require.NoError(t, e.Register(find, sorry))

	res := e.Resolve(context.Background(), verbal("find the keys"))
	e.Wait()

	assert.False(t, res.Response.Success)
	assert.Equal(t, []string{"keys"}, res.Response.MissingInfo)
	assert.Equal(t, "sorry, I cannot find the keys", sayText(t, res.Response, 0))
	assert.Contains(t, res.Response.Reason, `no object matches "keys"`)
}

func TestHandlerErrorTriggersOnFailure(t *testing.T) {
	e := NewEngine(Env{}, nil)
	sorry := say(t, "sorry", "something went wrong")
	h := &Template{
		Name:    "broken",
		Matcher: pattern.MustCompile("break"),
		Logic: LogicFunc(func(context.Context, *Instance, *Env) (hri.Response, error) {
			return hri.Response{}, errors.New("arm offline")
		}),
		OnFailure: sorry,
	}
	require.NoError(t, e.Register(h, sorry))

	res := e.Resolve(context.Background(), verbal("break"))
	e.Wait()

	assert.False(t, res.Response.Success)
	assert.Contains(t, res.Response.Reason, "arm offline")
	assert.Equal(t, "something went wrong", sayText(t, res.Response, 0))
}

func TestHandlerPanicBecomesFailure(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	e := NewEngine(Env{}, zap.New(core))
	h := &Template{
		Name:    "panicky",
		Matcher: pattern.MustCompile("panic"),
		Logic: LogicFunc(func(context.Context, *Instance, *Env) (hri.Response, error) {
			panic("boom")
		}),
	}
	require.NoError(t, e.Register(h))

	res := e.Resolve(context.Background(), verbal("panic"))
	e.Wait()

	assert.False(t, res.Response.Success)
	assert.Contains(t, res.Response.Reason, "panicked: boom")
	assert.Equal(t, 1, logs.FilterMessage("handler_panicked").Len())
}

func TestAckGoesToSinkNotResponse(t *testing.T) {
	var mu sync.Mutex
	var acks []string
	sink := SinkFunc(func(_ context.Context, req *hri.Request, handler string, resp hri.Response) {
		mu.Lock()
		defer mu.Unlock()
		acks = append(acks, handler+": "+resp.Actions[0].Params["text"])
	})

	store := resolution.NewMemoryStore()
	e := NewEngine(Env{}, nil, WithSink(sink), WithResolutionStore(store))
	ack := say(t, "ack", "on my way to {who}")
	h := say(t, "go", "arrived at {who}")
	h.Matcher = pattern.MustCompile("go to {who}")
	h.Ack = ack
	require.NoError(t, e.Register(h, ack))

	res := e.Resolve(context.Background(), verbal("go to bob"))
	e.Wait()

	require.Len(t, res.Response.Actions, 1)
	assert.Equal(t, "arrived at bob", sayText(t, res.Response, 0))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"ack: on my way to bob"}, acks)
	assert.Equal(t, 0, store.Len(), "context released after the chain finishes")
}

func TestLookupStoresForContinuation(t *testing.T) {
	mem := beliefs.NewMemory()
	require.NoError(t, mem.UpdateObject(context.Background(), hri.Fact{"id": "b1", "type": "bottle", "color": "red"}))

	e := NewEngine(Env{Beliefs: mem}, nil)
	fetch := say(t, "fetch", "fetching {object_id}")
	find := &Template{
		Name:      "find",
		Kind:      KindLookup,
		Matcher:   pattern.MustCompile("find the {object}"),
		Params:    map[string]string{"type": hri.BeliefObject, "description": "{object}", "store_as": "object_id"},
		OnSuccess: fetch,
	}
	var err error
	find.Logic, err = newLookup(find.Params)
	require.NoError(t, err)
	require.NoError(t, e.Register(find, fetch))

	res := e.Resolve(context.Background(), verbal("find the red bottle"))
	e.Wait()

	require.True(t, res.Response.Success, res.Response.Reason)
	assert.Equal(t, "fetching b1", sayText(t, res.Response, 0))
}

func TestPlannerReplacesResponseUnlessReactive(t *testing.T) {
	e := NewEngine(Env{}, nil)
	planner := say(t, "planner", "planned after: {previous_reason}")
	h := &Template{
		Name:    "wave",
		Matcher: pattern.MustCompile("wave"),
		Logic: LogicFunc(func(context.Context, *Instance, *Env) (hri.Response, error) {
			resp := hri.SayResponse("waving", "")
			resp.Reason = "arm free"
			return resp, nil
		}),
		Planner: planner,
	}
	require.NoError(t, e.Register(h, planner))

	res := e.Resolve(context.Background(), verbal("wave"))
	assert.Equal(t, "planned after: arm free", sayText(t, res.Response, 0))

	reactive := verbal("wave")
	reactive.Reactive = true
	res = e.Resolve(context.Background(), reactive)
	assert.Equal(t, "waving", sayText(t, res.Response, 0))

	e.Wait()
}

func TestGestureRequest(t *testing.T) {
	e := NewEngine(Env{}, nil)
	h := say(t, "point", "looking where you point")
	h.Gesture = "pointing"
	require.NoError(t, e.Register(h))

	res := e.Resolve(context.Background(), &hri.Request{Visual: &hri.VisualRequest{Gesture: "pointing"}})
	e.Wait()
	assert.True(t, res.Response.Success)

	res = e.Resolve(context.Background(), &hri.Request{Visual: &hri.VisualRequest{Gesture: "waving"}})
	assert.Equal(t, []string{"waving"}, res.Response.MissingInfo)
}

func TestSelectionPolicies(t *testing.T) {
	generic := say(t, "generic", "something")
	generic.Matcher = pattern.MustCompile("{anything}")
	specific := say(t, "specific", "bringing")
	specific.Matcher = pattern.MustCompile("bring the {object}")

	first := NewEngine(Env{}, nil)
	require.NoError(t, first.Register(generic, specific))
	got, _, ok := first.Select(verbal("bring the cup"))
	require.True(t, ok)
	assert.Equal(t, "generic", got.Name)

	most := NewEngine(Env{}, nil, WithSelection(SelectMostSpecific))
	require.NoError(t, most.Register(generic, specific))
	got, values, ok := most.Select(verbal("bring the cup"))
	require.True(t, ok)
	assert.Equal(t, "specific", got.Name)
	assert.Equal(t, map[string]string{"{object}": "cup"}, values)

	assert.NoError(t, SelectMostSpecific.Validate())
	assert.Error(t, Selection("random").Validate())
}

func TestRegisterRejectsBadBatches(t *testing.T) {
	e := NewEngine(Env{}, nil)
	a := say(t, "a", "a")
	a.Matcher = pattern.MustCompile("a")
	require.NoError(t, e.Register(a))

	dup := say(t, "a", "again")
	assert.ErrorIs(t, e.Register(dup), ErrDuplicateTemplate)

	x := say(t, "x", "x")
	x.Matcher = pattern.MustCompile("x")
	y := say(t, "y", "y")
	x.OnSuccess = y
	y.OnFailure = x
	err := e.Register(x, y)
	assert.ErrorIs(t, err, ErrCycle)
	assert.Contains(t, err.Error(), "x")

	_, ok := e.Template("x")
	assert.False(t, ok, "rejected batch leaves no trace")

	assert.ErrorIs(t, e.Register(&Template{Name: "nologic"}), ErrInvalidTemplate)
	assert.Len(t, e.Templates(), 1)
}

func TestConcurrentRequestsAreIsolated(t *testing.T) {
	var mu sync.Mutex
	acks := map[string]string{}
	sink := SinkFunc(func(_ context.Context, req *hri.Request, _ string, resp hri.Response) {
		mu.Lock()
		defer mu.Unlock()
		acks[req.Verbal.RawText] = resp.Actions[0].Params["text"]
	})
	e := NewEngine(Env{}, nil, WithSink(sink))
	ack := say(t, "ack", "ok {who}")
	h := say(t, "greet", "hello {who}")
	h.Matcher = pattern.MustCompile("greet {who}")
	h.Ack = ack
	require.NoError(t, e.Register(h, ack))

	names := []string{"ann", "bob", "cid", "dee", "eve", "fay", "gus", "hal"}
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			res := e.Resolve(context.Background(), verbal("greet "+name))
			assert.Equal(t, "hello "+name, res.Response.Actions[0].Params["text"])
		}(name)
	}
	wg.Wait()
	e.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, acks, len(names))
	for _, name := range names {
		assert.Equal(t, "ok "+name, acks["greet "+name])
	}
}

func TestDuplicateRequestIDsDoNotShareContext(t *testing.T) {
	store := resolution.NewMemoryStore()
	e := NewEngine(Env{}, nil, WithResolutionStore(store))

	entered := make(chan struct{})
	release := make(chan struct{})
	contexts := make(chan string, 2)
	report := say(t, "report", "holding the {object}")
	hold := &Template{
		Name:    "hold",
		Matcher: pattern.MustCompile("hold the {object}"),
		Logic: LogicFunc(func(_ context.Context, inst *Instance, _ *Env) (hri.Response, error) {
			contexts <- inst.Resolution.ID()
			if inst.Values["object"] == "cup" {
				close(entered)
				<-release
			}
			return hri.Response{Success: true}, nil
		}),
		OnSuccess: report,
	}
	require.NoError(t, e.Register(hold, report))

	id := uuid.New().String()
	first := verbal("hold the cup")
	first.ID = id
	second := verbal("hold the plate")
	second.ID = id

	results := make(chan Result, 1)
	go func() { results <- e.Resolve(context.Background(), first) }()
	<-entered

	// The second request finishes and releases its context while the first is mid-chain.
	res := e.Resolve(context.Background(), second)
	assert.Equal(t, "holding the plate", sayText(t, res.Response, 0))

	close(release)
	res = <-results
	e.Wait()

	require.True(t, res.Response.Success, res.Response.Reason)
	assert.Equal(t, "holding the cup", sayText(t, res.Response, 0))
	assert.Equal(t, 0, store.Len())

	a, b := <-contexts, <-contexts
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, id, a)
	assert.NotEqual(t, id, b)
}

func TestContinuationInheritsPersonAndEmotion(t *testing.T) {
	var mu sync.Mutex
	var ackPerson string
	sink := SinkFunc(func(_ context.Context, _ *hri.Request, _ string, resp hri.Response) {
		mu.Lock()
		defer mu.Unlock()
		ackPerson = resp.Actions[0].Params["text"]
	})
	e := NewEngine(Env{}, nil, WithSink(sink))

	seen := func(inst *Instance) hri.Response {
		return hri.SayResponse("for "+inst.Person.Label(), inst.Emotion)
	}
	done := &Template{
		Name: "done",
		Logic: LogicFunc(func(_ context.Context, inst *Instance, _ *Env) (hri.Response, error) {
			return seen(inst), nil
		}),
	}
	ack := &Template{
		Name: "ack",
		Logic: LogicFunc(func(_ context.Context, inst *Instance, _ *Env) (hri.Response, error) {
			return seen(inst), nil
		}),
	}
	// The primary logic runs after the ack is dispatched, so only the
	// resolve-time person reaches the ack.
	h := &Template{
		Name:    "handover",
		Matcher: pattern.MustCompile("hand it over"),
		Logic: LogicFunc(func(_ context.Context, inst *Instance, _ *Env) (hri.Response, error) {
			inst.Person = &hri.Person{ID: "p2", Name: "carol"}
			inst.Emotion = hri.EmotionHappy
			return hri.Response{Success: true}, nil
		}),
		Ack:       ack,
		OnSuccess: done,
	}
	require.NoError(t, e.Register(h, ack, done))

	req := verbal("hand it over")
	req.Person = &hri.Person{ID: "p1", Name: "bob"}
	req.Verbal.Emotion = hri.EmotionSad

	res := e.Resolve(context.Background(), req)
	e.Wait()

	require.True(t, res.Response.Success, res.Response.Reason)
	assert.Equal(t, "for carol", sayText(t, res.Response, 0))
	assert.Equal(t, hri.EmotionHappy, res.Response.Emotion)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "for bob", ackPerson)
}

func TestInstantiateClonesChain(t *testing.T) {
	ack := say(t, "ack", "one moment")
	done := say(t, "done", "done with the {object}")
	h := say(t, "bring", "bringing the {object}")
	h.Matcher = pattern.MustCompile("bring the {object}")
	h.Ack = ack
	h.OnSuccess = done

	req := verbal("bring the cup")
	rctx := resolution.New("", nil)
	a := h.Instantiate(req, rctx)
	b := h.Instantiate(req, rctx)

	assert.NotSame(t, a, b)
	assert.Same(t, a.Template, b.Template)
	assert.NotSame(t, a.Ack, b.Ack)
	assert.NotSame(t, a.OnSuccess, b.OnSuccess)
	assert.Same(t, done, a.OnSuccess.Template)
	assert.Nil(t, a.OnFailure)
	assert.Equal(t, hri.EmotionNatural, a.Emotion)

	a.Values["object"] = "cup"
	a.OnSuccess.Values["object"] = "cup"
	assert.Empty(t, b.Values)
	assert.Empty(t, b.OnSuccess.Values)

	// Resolving leaves the shared templates untouched.
	params := map[string]string{"text": "bringing the {object}"}
	e := NewEngine(Env{}, nil)
	require.NoError(t, e.Register(h, ack, done))
	for _, object := range []string{"cup", "plate"} {
		res := e.Resolve(context.Background(), verbal("bring the "+object))
		assert.Equal(t, "done with the "+object, sayText(t, res.Response, 1))
	}
	e.Wait()

	assert.Equal(t, params, h.Params)
	assert.Same(t, ack, h.Ack)
	assert.Same(t, done, h.OnSuccess)
	assert.Nil(t, h.OnFailure)
}

func TestCheckAvailabilityKind(t *testing.T) {
	ctx := context.Background()
	mem := beliefs.NewMemory()
	require.NoError(t, mem.UpdatePerson(ctx, hri.Fact{"id": "p2", "name": "bob"}))
	avail := availability.NewManager(nil, nil)
	require.NoError(t, avail.SetAvailability(ctx, "p2", true))

	logic, err := newCheckAvailability(nil)
	require.NoError(t, err)
	h := &Template{
		Name:    "check",
		Kind:    KindCheckAvailability,
		Matcher: pattern.MustCompile("is {who} free"),
		Params:  map[string]string{"person": "{who}"},
		Logic:   logic,
	}
	requester := &Template{
		Name:    "me",
		Kind:    KindCheckAvailability,
		Matcher: pattern.MustCompile("am I free"),
		Logic:   logic,
	}
	e := NewEngine(Env{Beliefs: mem, Availability: avail}, nil)
	require.NoError(t, e.Register(h, requester))

	res := e.Resolve(ctx, verbal("is bob free"))
	assert.True(t, res.Response.Success)
	assert.Equal(t, "bob is available", res.Response.Reason)
	assert.Equal(t, "1", res.Response.Actions[0].Params["speed_factor"])

	res = e.Resolve(ctx, verbal("is carol free"))
	assert.False(t, res.Response.Success)
	assert.Equal(t, "carol is not available", res.Response.Reason)

	res = e.Resolve(ctx, verbal("am I free"))
	assert.False(t, res.Response.Success)
	assert.Equal(t, "You did not specify a person", res.Response.Reason)
	assert.Equal(t, "0", res.Response.Actions[0].Params["speed_factor"])

	e.Wait()
}

// Inputs that conform to no registered template always yield a failed
// response with non-empty missing info.
func TestNoMatchProperty(t *testing.T) {
	e := NewEngine(Env{}, nil)
	for _, tpl := range []string{"bring the {object} to {who}", "hello robot", "go to {place}"} {
		h := say(t, tpl, "ok")
		h.Matcher = pattern.MustCompile(tpl)
		require.NoError(t, e.Register(h))
	}

	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	properties.Property("non-conforming input fails with missing info", prop.ForAll(
		func(word string) bool {
			utterance := "zz " + strings.ToLower(word)
			res := e.Resolve(context.Background(), verbal(utterance))
			return !res.Matched &&
				!res.Response.Success &&
				len(res.Response.MissingInfo) > 0 &&
				res.Response.MissingInfo[0] == utterance
		},
		gen.Identifier(),
	))
	properties.TestingRun(t)
	e.Wait()
}
