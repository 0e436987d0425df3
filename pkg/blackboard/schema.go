package blackboard

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name to enable
// multiple HRI instances to safely coexist on a single Redis server.
//
// Key pattern: hri:{instance_name}:{entity}:{id}
// Channel pattern: hri:{instance_name}:{event_type}_events

// ResolutionKey returns the Redis key for a resolution context hash.
// Pattern: hri:{instance_name}:resolution:{context_id}
func ResolutionKey(instanceName, contextID string) string {
	return fmt.Sprintf("hri:%s:resolution:%s", instanceName, contextID)
}

// AvailabilityKey returns the Redis key for a person's availability record.
// Pattern: hri:{instance_name}:availability:{person_id}
func AvailabilityKey(instanceName, personID string) string {
	return fmt.Sprintf("hri:%s:availability:%s", instanceName, personID)
}

// AvailabilityIndexKey returns the Redis key for the availability index ZSET.
// Members are person IDs scored by the record's updated_at_ms.
// Pattern: hri:{instance_name}:availability_index
func AvailabilityIndexKey(instanceName string) string {
	return fmt.Sprintf("hri:%s:availability_index", instanceName)
}

// FactKey returns the Redis key for a belief fact hash.
// Pattern: hri:{instance_name}:fact:{fact_type}:{fact_id}
func FactKey(instanceName, factType, factID string) string {
	return fmt.Sprintf("hri:%s:fact:%s:%s", instanceName, factType, factID)
}

// FactIndexKey returns the Redis key for the set of fact IDs of one type.
// Pattern: hri:{instance_name}:facts:{fact_type}
func FactIndexKey(instanceName, factType string) string {
	return fmt.Sprintf("hri:%s:facts:%s", instanceName, factType)
}

// ResponseKey returns the Redis key for the stored final response of a request.
// Pattern: hri:{instance_name}:response:{request_id}
func ResponseKey(instanceName, requestID string) string {
	return fmt.Sprintf("hri:%s:response:%s", instanceName, requestID)
}

// RequestEventsChannel returns the Pub/Sub channel name for request events.
// Pattern: hri:{instance_name}:request_events
func RequestEventsChannel(instanceName string) string {
	return fmt.Sprintf("hri:%s:request_events", instanceName)
}

// ResponseEventsChannel returns the Pub/Sub channel name for response events.
// Pattern: hri:{instance_name}:response_events
func ResponseEventsChannel(instanceName string) string {
	return fmt.Sprintf("hri:%s:response_events", instanceName)
}
