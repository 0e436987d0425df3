package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dyluth/hri/internal/beliefs"
	"github.com/dyluth/hri/internal/config"
	"github.com/dyluth/hri/internal/handler"
	"github.com/dyluth/hri/internal/printer"
	"github.com/dyluth/hri/internal/server"
	"github.com/dyluth/hri/internal/watch"
	"github.com/dyluth/hri/pkg/blackboard"
	"github.com/dyluth/hri/pkg/hri"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	resolveGesture    string
	resolvePersonID   string
	resolvePersonName string
	resolveEmotion    string
	resolvePattern    string
	resolveValues     map[string]string
	resolveReactive   bool
	resolvePriority   int
	resolveRemote     bool
	resolveTimeout    time.Duration
	resolveFactsFile  string
	resolvePresent    []string
	resolveOutput     string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [text]",
	Short: "Resolve one request and print the response",
	Long: `Resolve a spoken request and/or gesture.

By default the pipeline runs in this process with in-memory beliefs and
availability, seeded from --facts and --present. With --remote the request
is published to a running 'hri serve' and the response is awaited.

Output Formats:
  default - Human-readable response
  json    - Line-delimited JSON response events (acks first)

Examples:
  # Try a handler locally
  hri resolve "bring the bottle to bob" --facts facts.yml --present bob

  # A pointing gesture from person p1
  hri resolve --gesture pointing --person p1

  # Send to the server of instance "lab"
  hri resolve "hello bob" --remote --instance lab`,
	RunE: runResolve,
}

func init() {
	f := resolveCmd.Flags()
	f.StringVar(&resolveGesture, "gesture", "", "Gesture label of the visual part")
	f.StringVar(&resolvePersonID, "person", "", "ID of the requesting person")
	f.StringVar(&resolvePersonName, "person-name", "", "Display name of the requesting person")
	f.StringVar(&resolveEmotion, "emotion", "", "Emotion detected with the utterance")
	f.StringVar(&resolvePattern, "pattern", "", "Pattern the recognizer already matched")
	f.StringToStringVar(&resolveValues, "value", nil, "Pre-extracted value, e.g. --value object=bottle (repeatable)")
	f.BoolVar(&resolveReactive, "reactive", false, "Bypass planner arbitration")
	f.IntVar(&resolvePriority, "priority", 0, "Request priority (lower is more urgent)")
	f.BoolVar(&resolveRemote, "remote", false, "Publish to a running server instead of resolving locally")
	f.DurationVar(&resolveTimeout, "timeout", 30*time.Second, "How long to wait for a remote response")
	f.StringVar(&resolveFactsFile, "facts", "", "YAML file of belief facts for local resolution")
	f.StringSliceVar(&resolvePresent, "present", nil, "Person IDs observed before a local resolution")
	f.StringVarP(&resolveOutput, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if resolveOutput != "default" && resolveOutput != "json" {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", resolveOutput),
			[]string{"Valid formats: default, json"},
		)
	}

	req := buildRequest(strings.Join(args, " "))
	if err := req.Validate(); err != nil {
		return printer.Error(
			"nothing to resolve",
			err.Error(),
			[]string{
				"Pass the spoken text:\n  hri resolve \"hello bob\"",
				"Or a gesture:\n  hri resolve --gesture pointing",
			},
		)
	}
	req.EnsureID()

	out := cmd.OutOrStdout()
	if resolveRemote {
		return resolveRemotely(ctx, req, out)
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var facts map[string][]hri.Fact
	if resolveFactsFile != "" {
		if facts, err = loadFacts(resolveFactsFile); err != nil {
			return printer.Error("invalid facts file", err.Error(), nil)
		}
	}

	final, acks, err := resolveLocally(ctx, cfg, req, facts, resolvePresent, logger)
	if err != nil {
		return err
	}
	for _, ack := range acks {
		if err := renderEvent(out, ack, resolveOutput); err != nil {
			return err
		}
	}
	return renderEvent(out, final, resolveOutput)
}

func buildRequest(text string) *hri.Request {
	req := &hri.Request{
		Priority: resolvePriority,
		Reactive: resolveReactive,
	}
	if text != "" || resolvePattern != "" || len(resolveValues) > 0 {
		req.Verbal = &hri.VerbalRequest{
			RawText: text,
			Pattern: resolvePattern,
			Values:  parseValues(resolveValues),
			Emotion: resolveEmotion,
		}
	}
	if resolveGesture != "" {
		req.Visual = &hri.VisualRequest{Gesture: resolveGesture}
	}
	if resolvePersonID != "" || resolvePersonName != "" {
		id := resolvePersonID
		if id == "" {
			id = resolvePersonName
		}
		req.Person = &hri.Person{ID: id, Name: resolvePersonName}
	}
	return req
}

// loadFacts reads a facts file of the form
//
//	person:
//	  - {id: bob, name: Bob}
//	object:
//	  - {id: b1, type: bottle, color: red}
func loadFacts(path string) (map[string][]hri.Fact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read facts: %w", err)
	}
	var facts map[string][]hri.Fact
	if err := yaml.Unmarshal(data, &facts); err != nil {
		return nil, fmt.Errorf("failed to parse facts: %w", err)
	}
	for factType, list := range facts {
		for i, f := range list {
			if f.ID() == "" {
				return nil, fmt.Errorf("%s fact #%d has no id", factType, i+1)
			}
		}
	}
	return facts, nil
}

// resolveLocally runs the pipeline in memory. Acks are collected and returned
// in the order they completed.
func resolveLocally(ctx context.Context, cfg *config.HRIConfig, req *hri.Request, facts map[string][]hri.Fact, present []string, logger *zap.Logger) (*blackboard.ResponseEvent, []*blackboard.ResponseEvent, error) {
	memory := beliefs.NewMemory()
	for factType, list := range facts {
		for _, f := range list {
			if err := memory.Update(ctx, factType, f); err != nil {
				return nil, nil, fmt.Errorf("failed to seed %s facts: %w", factType, err)
			}
		}
	}

	var (
		mu   sync.Mutex
		acks []*blackboard.ResponseEvent
	)
	sink := handler.SinkFunc(func(_ context.Context, r *hri.Request, name string, resp hri.Response) {
		mu.Lock()
		defer mu.Unlock()
		acks = append(acks, &blackboard.ResponseEvent{
			RequestID:    r.ID,
			Kind:         blackboard.ResponseKindAck,
			Handler:      name,
			Response:     resp,
			ResolvedAtMs: time.Now().UnixMilli(),
		})
	})

	components, err := server.Assemble(cfg, server.Deps{Beliefs: memory, Sink: sink, Logger: logger})
	if err != nil {
		return nil, nil, printer.Error("failed to assemble pipeline", err.Error(), nil)
	}

	if len(present) > 0 {
		if _, err := components.Availability.HandlePersons(ctx, present); err != nil {
			return nil, nil, fmt.Errorf("failed to record present persons: %w", err)
		}
	}

	res := components.Engine.Resolve(ctx, req)
	components.Engine.Wait()

	final := &blackboard.ResponseEvent{
		RequestID:    req.ID,
		Kind:         blackboard.ResponseKindFinal,
		Handler:      res.Handler,
		Response:     res.Response,
		ResolvedAtMs: time.Now().UnixMilli(),
	}
	return final, acks, nil
}

func resolveRemotely(ctx context.Context, req *hri.Request, out io.Writer) error {
	bbClient, err := connect(ctx)
	if err != nil {
		return err
	}
	defer bbClient.Close()

	// The subscription must exist before the request is published.
	type outcome struct {
		event *blackboard.ResponseEvent
		err   error
	}
	done := make(chan outcome, 1)
	subscribed := make(chan struct{})
	src := &readySource{Source: bbClient, ready: subscribed}
	go func() {
		event, err := watch.AwaitResponse(ctx, src, req.ID, resolveTimeout, func(ack *blackboard.ResponseEvent) {
			renderEvent(out, ack, resolveOutput) //nolint:errcheck
		})
		done <- outcome{event, err}
	}()

	select {
	case <-subscribed:
	case o := <-done:
		if o.err != nil {
			return fmt.Errorf("failed to watch responses: %w", o.err)
		}
		return renderEvent(out, o.event, resolveOutput)
	}

	if err := bbClient.PublishRequest(ctx, req); err != nil {
		return fmt.Errorf("failed to publish request: %w", err)
	}

	o := <-done
	if o.err != nil {
		return printer.ErrorWithContext(
			"no response",
			o.err.Error(),
			map[string]string{"Request": req.ID, "Instance": bbClient.InstanceName()},
			[]string{"Check that a server is running for this instance:\n  hri serve --instance " + bbClient.InstanceName()},
		)
	}
	return renderEvent(out, o.event, resolveOutput)
}

// readySource signals once the response subscription is open.
type readySource struct {
	watch.Source
	ready chan struct{}
	once  sync.Once
}

func (s *readySource) SubscribeResponseEvents(ctx context.Context) (*blackboard.Subscription[blackboard.ResponseEvent], error) {
	sub, err := s.Source.SubscribeResponseEvents(ctx)
	s.once.Do(func() { close(s.ready) })
	return sub, err
}

func renderEvent(w io.Writer, event *blackboard.ResponseEvent, format string) error {
	if format == "json" {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to encode response: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	switch {
	case event.Kind == blackboard.ResponseKindAck:
		fmt.Fprintf(w, "ack from %s: ", event.Handler)
	case event.Handler != "":
		fmt.Fprintf(w, "%s: ", event.Handler)
	}
	printer.Response(w, event.Response)
	return nil
}
