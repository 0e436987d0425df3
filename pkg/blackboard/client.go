package blackboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dyluth/hri/pkg/hri"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultResolutionTTL bounds how long an abandoned resolution context survives.
	DefaultResolutionTTL = 10 * time.Minute

	// DefaultResponseTTL bounds how long a stored final response can be fetched.
	DefaultResponseTTL = time.Hour

	// maxTxRetries is how often an optimistic availability update is retried.
	maxTxRetries = 32
)

// Client provides instance-scoped Redis operations for the blackboard.
// All keys and channels are automatically namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb           *redis.Client
	instanceName  string
	resolutionTTL time.Duration
	responseTTL   time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithResolutionTTL sets the expiry refreshed on every resolution context write.
// Zero disables expiry.
func WithResolutionTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.resolutionTTL = ttl
	}
}

// WithResponseTTL sets the expiry of stored final responses. Zero disables expiry.
func WithResponseTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.responseTTL = ttl
	}
}

// NewClient creates a new blackboard client for the specified instance.
// The client automatically namespaces all keys and channels with the instance name.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - instanceName: HRI instance identifier (must not be empty)
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string, opts ...ClientOption) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	c := &Client{
		rdb:           redis.NewClient(redisOpts),
		instanceName:  instanceName,
		resolutionTTL: DefaultResolutionTTL,
		responseTTL:   DefaultResponseTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// InstanceName returns the namespace this client operates in.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
// Returns an error if Redis is not reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// SetResolutionValues merges values into a resolution context hash and
// refreshes its expiry.
func (c *Client) SetResolutionValues(ctx context.Context, contextID string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	key := ResolutionKey(c.instanceName, contextID)
	fields := make(map[string]interface{}, len(values))
	for k, v := range values {
		fields[k] = v
	}

	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		if c.resolutionTTL > 0 {
			pipe.Expire(ctx, key, c.resolutionTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write resolution values to Redis: %w", err)
	}
	return nil
}

// GetResolutionValues reads a whole resolution context.
// A missing context returns an empty map (not an error).
func (c *Client) GetResolutionValues(ctx context.Context, contextID string) (map[string]string, error) {
	values, err := c.rdb.HGetAll(ctx, ResolutionKey(c.instanceName, contextID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read resolution values from Redis: %w", err)
	}
	return values, nil
}

// DeleteResolutionValues removes a resolution context.
func (c *Client) DeleteResolutionValues(ctx context.Context, contextID string) error {
	if err := c.rdb.Del(ctx, ResolutionKey(c.instanceName, contextID)).Err(); err != nil {
		return fmt.Errorf("failed to delete resolution values: %w", err)
	}
	return nil
}

// UpdateAvailability atomically applies fn to a person's availability record.
// fn receives the current record, or nil if the person has never been seen,
// and returns the record to store. The read-modify-write runs inside a
// WATCH/MULTI transaction and is retried when another writer interferes.
func (c *Client) UpdateAvailability(ctx context.Context, personID string, fn func(current *AvailabilityRecord) AvailabilityRecord) (*AvailabilityRecord, error) {
	key := AvailabilityKey(c.instanceName, personID)
	indexKey := AvailabilityIndexKey(c.instanceName)

	var updated AvailabilityRecord
	txf := func(tx *redis.Tx) error {
		hash, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}

		var current *AvailabilityRecord
		if len(hash) > 0 {
			current, err = HashToAvailability(hash)
			if err != nil {
				return fmt.Errorf("failed to deserialize availability: %w", err)
			}
		}

		updated = fn(current)
		updated.PersonID = personID
		if err := updated.Validate(); err != nil {
			return fmt.Errorf("invalid availability record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, AvailabilityToHash(&updated))
			pipe.ZAdd(ctx, indexKey, redis.Z{Score: IndexScore(updated.UpdatedAtMs), Member: personID})
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := c.rdb.Watch(ctx, txf, key)
		if err == nil {
			return &updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, fmt.Errorf("failed to update availability for %s: %w", personID, err)
	}

	return nil, fmt.Errorf("failed to update availability for %s: too much contention", personID)
}

// GetAvailability retrieves a person's availability record.
// Returns (nil, redis.Nil) if the person has never been seen.
// Use IsNotFound() to check for not-found errors.
func (c *Client) GetAvailability(ctx context.Context, personID string) (*AvailabilityRecord, error) {
	hash, err := c.rdb.HGetAll(ctx, AvailabilityKey(c.instanceName, personID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read availability from Redis: %w", err)
	}

	// HGetAll returns empty map for non-existent keys
	if len(hash) == 0 {
		return nil, redis.Nil
	}

	record, err := HashToAvailability(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize availability: %w", err)
	}
	return record, nil
}

// ListAvailability returns the records updated within [sinceMs, untilMs],
// oldest update first. A zero bound is unbounded.
func (c *Client) ListAvailability(ctx context.Context, sinceMs, untilMs int64) ([]*AvailabilityRecord, error) {
	ids, err := c.rdb.ZRangeByScore(ctx, AvailabilityIndexKey(c.instanceName), &redis.ZRangeBy{
		Min: scoreBound(sinceMs, "-inf"),
		Max: scoreBound(untilMs, "+inf"),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read availability index: %w", err)
	}

	records := make([]*AvailabilityRecord, 0, len(ids))
	for _, id := range ids {
		record, err := c.GetAvailability(ctx, id)
		if IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// Update stores a belief fact, replacing any previous fact with the same type and ID.
func (c *Client) Update(ctx context.Context, factType string, fact hri.Fact) error {
	if factType == "" {
		return fmt.Errorf("fact type cannot be empty")
	}
	id := fact.ID()
	if id == "" {
		return fmt.Errorf("fact has no id")
	}

	key := FactKey(c.instanceName, factType, id)
	fields := make(map[string]interface{}, len(fact))
	for k, v := range fact {
		fields[k] = v
	}

	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		pipe.SAdd(ctx, FactIndexKey(c.instanceName, factType), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write fact to Redis: %w", err)
	}
	return nil
}

// UpdatePerson stores a person fact.
func (c *Client) UpdatePerson(ctx context.Context, person hri.Fact) error {
	return c.Update(ctx, hri.BeliefPerson, person)
}

// UpdateObject stores an object fact.
func (c *Client) UpdateObject(ctx context.Context, object hri.Fact) error {
	return c.Update(ctx, hri.BeliefObject, object)
}

// UpdateRobot stores the robot's own fact. A fact without an id is stored as hri.RobotFactID.
func (c *Client) UpdateRobot(ctx context.Context, robot hri.Fact) error {
	if robot.ID() == "" {
		robot = copyFact(robot)
		robot["id"] = hri.RobotFactID
	}
	return c.Update(ctx, hri.BeliefRobot, robot)
}

// Robot returns the robot's own fact, or an empty fact if none was stored.
func (c *Client) Robot(ctx context.Context) (hri.Fact, error) {
	hash, err := c.rdb.HGetAll(ctx, FactKey(c.instanceName, hri.BeliefRobot, hri.RobotFactID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read robot fact from Redis: %w", err)
	}
	return hri.Fact(hash), nil
}

// Get returns the facts of factType matching description, ordered by ID.
func (c *Client) Get(ctx context.Context, factType, description string) ([]hri.Fact, error) {
	ids, err := c.rdb.SMembers(ctx, FactIndexKey(c.instanceName, factType)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read fact index: %w", err)
	}
	sort.Strings(ids)

	facts := []hri.Fact{}
	for _, id := range ids {
		hash, err := c.rdb.HGetAll(ctx, FactKey(c.instanceName, factType, id)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read fact %s: %w", id, err)
		}
		if len(hash) == 0 {
			continue
		}
		if fact := hri.Fact(hash); fact.Matches(description) {
			facts = append(facts, fact)
		}
	}
	return facts, nil
}

// PublishRequest validates a request and publishes it to
// hri:{instance}:request_events. A missing request ID is generated first.
func (c *Client) PublishRequest(ctx context.Context, req *hri.Request) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	req.EnsureID()

	requestJSON, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request for event: %w", err)
	}

	if err := c.rdb.Publish(ctx, RequestEventsChannel(c.instanceName), requestJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish request event: %w", err)
	}
	return nil
}

// PublishResponse publishes a response event to hri:{instance}:response_events.
// Final responses are also stored at hri:{instance}:response:{request_id} so
// they can be fetched after the event has passed.
func (c *Client) PublishResponse(ctx context.Context, event *ResponseEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid response event: %w", err)
	}
	event.Response = event.Response.Normalize()

	if event.Kind == ResponseKindFinal {
		hash, err := ResponseEventToHash(event)
		if err != nil {
			return fmt.Errorf("failed to serialize response: %w", err)
		}

		key := ResponseKey(c.instanceName, event.RequestID)
		_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, hash)
			if c.responseTTL > 0 {
				pipe.Expire(ctx, key, c.responseTTL)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to write response to Redis: %w", err)
		}
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal response for event: %w", err)
	}

	if err := c.rdb.Publish(ctx, ResponseEventsChannel(c.instanceName), eventJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish response event: %w", err)
	}
	return nil
}

// GetResponse retrieves the stored final response for a request.
// Returns (nil, redis.Nil) if there is none (yet, or any more).
func (c *Client) GetResponse(ctx context.Context, requestID string) (*ResponseEvent, error) {
	hash, err := c.rdb.HGetAll(ctx, ResponseKey(c.instanceName, requestID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read response from Redis: %w", err)
	}
	if len(hash) == 0 {
		return nil, redis.Nil
	}

	event, err := HashToResponseEvent(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize response: %w", err)
	}
	return event, nil
}

// ScanResponses returns the request IDs of stored final responses that start
// with prefix, sorted. Uses SCAN so large instances are not blocked.
func (c *Client) ScanResponses(ctx context.Context, prefix string) ([]string, error) {
	keyPrefix := ResponseKey(c.instanceName, "")
	iter := c.rdb.Scan(ctx, 0, keyPrefix+prefix+"*", 0).Iterator()

	var ids []string
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan responses: %w", err)
	}

	sort.Strings(ids)
	return ids, nil
}

// Subscription represents an active Pub/Sub subscription delivering decoded events.
// Caller must call Close() when done to clean up resources.
type Subscription[T any] struct {
	events <-chan *T
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of decoded events.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *Subscription[T]) Events() <-chan *T {
	return s.events
}

// Errors returns the channel of subscription errors.
// Errors include JSON unmarshaling failures and other non-fatal issues.
// The subscription continues after errors - messages are skipped.
func (s *Subscription[T]) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription[T]) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeRequestEvents subscribes to request events for this instance.
// Caller must call subscription.Close() when done.
// Context cancellation also stops the subscription.
func (c *Client) SubscribeRequestEvents(ctx context.Context) (*Subscription[hri.Request], error) {
	return subscribe[hri.Request](ctx, c.rdb, RequestEventsChannel(c.instanceName), "request")
}

// SubscribeResponseEvents subscribes to response events for this instance.
// Caller must call subscription.Close() when done.
func (c *Client) SubscribeResponseEvents(ctx context.Context) (*Subscription[ResponseEvent], error) {
	return subscribe[ResponseEvent](ctx, c.rdb, ResponseEventsChannel(c.instanceName), "response")
}

// subscribe starts a goroutine that decodes JSON messages from channel.
//
// Events are delivered on a buffered channel (size 10) to prevent blocking.
// If the subscriber is too slow, events may be dropped by Redis Pub/Sub (at-most-once delivery).
func subscribe[T any](ctx context.Context, rdb *redis.Client, channel, name string) (*Subscription[T], error) {
	pubsub := rdb.Subscribe(ctx, channel)

	// Wait for the subscription to be confirmed so no event published after
	// this call returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s events: %w", name, err)
	}

	eventsChan := make(chan *T, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event T
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					// Send error on error channel, skip message
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal %s event: %w", name, err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription[T]{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
// Use this to check if GetAvailability or GetResponse returned "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}

func copyFact(f hri.Fact) hri.Fact {
	out := make(hri.Fact, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	return out
}
