// Package watch follows the responses to a published request.
package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/hri/pkg/blackboard"
)

// Source is the part of the blackboard client needed to follow responses.
type Source interface {
	SubscribeResponseEvents(ctx context.Context) (*blackboard.Subscription[blackboard.ResponseEvent], error)
	GetResponse(ctx context.Context, requestID string) (*blackboard.ResponseEvent, error)
}

// AwaitResponse waits for the final response to requestID. Acknowledgements
// seen on the way are passed to onAck, which may be nil.
//
// The subscription is opened before the stored response is checked, so a
// response published at any point after the call is not missed.
func AwaitResponse(ctx context.Context, src Source, requestID string, timeout time.Duration, onAck func(*blackboard.ResponseEvent)) (*blackboard.ResponseEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sub, err := src.SubscribeResponseEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to response events: %w", err)
	}
	defer sub.Close()

	stored, err := src.GetResponse(ctx, requestID)
	if err == nil {
		return stored, nil
	}
	if !blackboard.IsNotFound(err) {
		return nil, fmt.Errorf("failed to query for response: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return nil, fmt.Errorf("timeout waiting for response after %v", timeout)
			}
			return nil, ctx.Err()

		case event, ok := <-sub.Events():
			if !ok {
				return nil, fmt.Errorf("response subscription closed")
			}
			if event.RequestID != requestID {
				continue
			}
			if event.Kind == blackboard.ResponseKindAck {
				if onAck != nil {
					onAck(event)
				}
				continue
			}
			return event, nil

		case <-sub.Errors():
			// Malformed events from other publishers are skipped.
		}
	}
}
