package blackboard

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Nested structures are
// JSON-encoded into single hash fields. This provides a balance between
// queryability (individual fields) and flexibility (complex structures).

// AvailabilityToHash converts an AvailabilityRecord to a Redis hash format.
func AvailabilityToHash(r *AvailabilityRecord) map[string]interface{} {
	return map[string]interface{}{
		"person_id":     r.PersonID,
		"present":       strconv.FormatBool(r.Present),
		"score":         strconv.FormatFloat(r.Score, 'f', -1, 64),
		"updated_at_ms": formatInt(r.UpdatedAtMs),
	}
}

// HashToAvailability converts a Redis hash to an AvailabilityRecord.
func HashToAvailability(hash map[string]string) (*AvailabilityRecord, error) {
	present, err := strconv.ParseBool(hash["present"])
	if err != nil {
		return nil, fmt.Errorf("invalid present field: %w", err)
	}

	score, err := strconv.ParseFloat(hash["score"], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid score field: %w", err)
	}

	updatedAtMs, _ := strconv.ParseInt(hash["updated_at_ms"], 10, 64)

	return &AvailabilityRecord{
		PersonID:    hash["person_id"],
		Present:     present,
		Score:       score,
		UpdatedAtMs: updatedAtMs,
	}, nil
}

// ResponseEventToHash converts a ResponseEvent to a Redis hash format.
// The response body is JSON-encoded.
func ResponseEventToHash(e *ResponseEvent) (map[string]interface{}, error) {
	responseJSON, err := json.Marshal(e.Response.Normalize())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return map[string]interface{}{
		"request_id":     e.RequestID,
		"kind":           string(e.Kind),
		"handler":        e.Handler,
		"response":       string(responseJSON),
		"resolved_at_ms": formatInt(e.ResolvedAtMs),
	}, nil
}

// HashToResponseEvent converts a Redis hash to a ResponseEvent.
func HashToResponseEvent(hash map[string]string) (*ResponseEvent, error) {
	e := &ResponseEvent{
		RequestID: hash["request_id"],
		Kind:      ResponseKind(hash["kind"]),
		Handler:   hash["handler"],
	}

	if responseJSON := hash["response"]; responseJSON != "" {
		if err := json.Unmarshal([]byte(responseJSON), &e.Response); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	e.Response = e.Response.Normalize()

	e.ResolvedAtMs, _ = strconv.ParseInt(hash["resolved_at_ms"], 10, 64)

	return e, nil
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
