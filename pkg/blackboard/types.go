// Package blackboard provides type-safe Go definitions and Redis schema patterns
// for the shared state of an HRI instance. The blackboard is where the serving
// loop, the CLI and any number of resolution engines meet: request and response
// events, resolution contexts, availability records and belief facts all live
// in Redis under well-defined keys.
//
// All Redis keys and channels are namespaced by instance name to enable multiple
// HRI instances to safely coexist on a single Redis server.
package blackboard

import (
	"fmt"

	"github.com/dyluth/hri/pkg/hri"
	"github.com/google/uuid"
)

// AvailabilityRecord is the persisted availability of one person.
// Records are created on first observation and never deleted.
type AvailabilityRecord struct {
	PersonID    string  `json:"person_id"`     // Person identifier as reported by perception
	Present     bool    `json:"present"`       // Whether the person was seen in the latest observation
	Score       float64 `json:"score"`         // Decaying availability score in [0, 1]
	UpdatedAtMs int64   `json:"updated_at_ms"` // Unix timestamp in milliseconds of the last transition
}

// ResponseKind distinguishes the final response of a request from the
// acknowledgements emitted while it is being handled.
type ResponseKind string

const (
	// ResponseKindFinal is the single outcome of a request
	ResponseKindFinal ResponseKind = "final"

	// ResponseKindAck is an acknowledgement spoken as handling begins
	ResponseKindAck ResponseKind = "ack"
)

// ResponseEvent carries a response back to whoever published the request.
type ResponseEvent struct {
	RequestID    string       `json:"request_id"`     // UUID of the originating request
	Kind         ResponseKind `json:"kind"`           // final or ack
	Handler      string       `json:"handler"`        // Template that produced the response, empty on no match
	Response     hri.Response `json:"response"`       // The response itself
	ResolvedAtMs int64        `json:"resolved_at_ms"` // Unix timestamp in milliseconds
}

// Validate checks if the AvailabilityRecord has valid field values.
func (r *AvailabilityRecord) Validate() error {
	if r.PersonID == "" {
		return fmt.Errorf("person ID cannot be empty")
	}
	if r.Score < 0 || r.Score > 1 {
		return fmt.Errorf("invalid score: must be within [0, 1], got %v", r.Score)
	}
	return nil
}

// Validate checks if the ResponseEvent has valid field values.
func (e *ResponseEvent) Validate() error {
	if !isValidUUID(e.RequestID) {
		return fmt.Errorf("invalid request ID: not a valid UUID")
	}
	if err := e.Kind.Validate(); err != nil {
		return fmt.Errorf("invalid kind: %w", err)
	}
	return nil
}

// Validate checks if the ResponseKind is a valid enum value.
func (k ResponseKind) Validate() error {
	switch k {
	case ResponseKindFinal, ResponseKindAck:
		return nil
	default:
		return fmt.Errorf("unknown response kind: %q", k)
	}
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
