// Package server runs the resolution pipeline against the blackboard: it
// consumes request events, resolves them concurrently and publishes the
// final responses and acknowledgements as response events.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/hri/internal/handler"
	"github.com/dyluth/hri/internal/logging"
	"github.com/dyluth/hri/internal/metrics"
	"github.com/dyluth/hri/pkg/blackboard"
	"github.com/dyluth/hri/pkg/hri"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxConcurrent bounds the number of requests resolved at once.
const DefaultMaxConcurrent = 8

// Blackboard is the part of the blackboard client the serving loop needs.
type Blackboard interface {
	Pinger
	SubscribeRequestEvents(ctx context.Context) (*blackboard.Subscription[hri.Request], error)
	PublishResponse(ctx context.Context, event *blackboard.ResponseEvent) error
}

// Resolver turns requests into responses.
type Resolver interface {
	Resolve(ctx context.Context, req *hri.Request) handler.Result
	Wait()
}

// Server consumes request events and publishes response events.
type Server struct {
	bb            Blackboard
	resolver      Resolver
	health        *HealthServer
	maxConcurrent int
	logger        *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithMaxConcurrent sets how many requests may be resolved at once.
func WithMaxConcurrent(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxConcurrent = n
		}
	}
}

// WithHealthServer serves health and metrics endpoints while Run is active.
func WithHealthServer(h *HealthServer) Option {
	return func(s *Server) {
		s.health = h
	}
}

// New creates a server.
func New(bb Blackboard, resolver Resolver, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		bb:            bb,
		resolver:      resolver,
		maxConcurrent: DefaultMaxConcurrent,
		logger:        logging.OrNop(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run serves until ctx is cancelled or the subscription closes. In-flight
// requests and their acknowledgements finish before Run returns; they run on
// a context that is not cancelled with ctx.
func (s *Server) Run(ctx context.Context) error {
	if s.health != nil {
		if err := s.health.Start(); err != nil {
			return fmt.Errorf("failed to start health server: %w", err)
		}
		defer s.health.Shutdown(context.Background())
	}

	subscription, err := s.bb.SubscribeRequestEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to request events: %w", err)
	}
	defer subscription.Close()

	s.logger.Info("server_started", zap.Int("max_concurrent", s.maxConcurrent))

	drainCtx := context.WithoutCancel(ctx)
	g := new(errgroup.Group)
	g.SetLimit(s.maxConcurrent)
	defer func() {
		g.Wait()
		s.resolver.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("server_stopping")
			return nil

		case req, ok := <-subscription.Events():
			if !ok {
				s.logger.Info("subscription_closed")
				return nil
			}
			req.EnsureID()
			s.logger.Debug("request_received", zap.String("request_id", req.ID))

			// Blocks while max_concurrent requests are in flight.
			g.Go(func() error {
				s.handle(drainCtx, req)
				return nil
			})

		case err, ok := <-subscription.Errors():
			if !ok {
				s.logger.Info("error_channel_closed")
				return nil
			}
			// Malformed events are not fatal.
			s.logger.Warn("subscription_error", zap.Error(err))
		}
	}
}

// handle resolves one request and publishes its final response.
func (s *Server) handle(ctx context.Context, req *hri.Request) {
	metrics.InflightRequests.Inc()
	defer metrics.InflightRequests.Dec()

	res := s.resolver.Resolve(ctx, req)

	event := &blackboard.ResponseEvent{
		RequestID:    req.ID,
		Kind:         blackboard.ResponseKindFinal,
		Handler:      res.Handler,
		Response:     res.Response,
		ResolvedAtMs: time.Now().UnixMilli(),
	}
	if err := s.bb.PublishResponse(ctx, event); err != nil {
		s.logger.Error("response_publish_failed", zap.String("request_id", req.ID), zap.Error(err))
	}
}

// AckPublisher is a handler.Sink that publishes acknowledgements as response events.
type AckPublisher struct {
	bb     Blackboard
	logger *zap.Logger
}

// NewAckPublisher creates an ack sink backed by the blackboard.
func NewAckPublisher(bb Blackboard, logger *zap.Logger) *AckPublisher {
	return &AckPublisher{bb: bb, logger: logging.OrNop(logger)}
}

func (a *AckPublisher) Ack(ctx context.Context, req *hri.Request, handlerName string, resp hri.Response) {
	event := &blackboard.ResponseEvent{
		RequestID:    req.ID,
		Kind:         blackboard.ResponseKindAck,
		Handler:      handlerName,
		Response:     resp,
		ResolvedAtMs: time.Now().UnixMilli(),
	}
	if err := a.bb.PublishResponse(context.WithoutCancel(ctx), event); err != nil {
		a.logger.Warn("ack_publish_failed", zap.String("request_id", req.ID), zap.Error(err))
	}
}
