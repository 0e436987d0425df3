package blackboard

// Availability index utilities
//
// The availability index is a ZSET per instance where:
// - Key: hri:{instance_name}:availability_index
// - Members: person IDs
// - Score: the record's updated_at_ms (as float64)
//
// This enables listing records in update order and range queries by time.

// IndexScore converts a millisecond timestamp to a ZSET score.
func IndexScore(updatedAtMs int64) float64 {
	return float64(updatedAtMs)
}

// TimestampFromScore converts a ZSET score back to a millisecond timestamp.
func TimestampFromScore(score float64) int64 {
	return int64(score)
}

// scoreBound renders a range bound for ZRANGEBYSCORE; zero means unbounded.
func scoreBound(ms int64, unbounded string) string {
	if ms == 0 {
		return unbounded
	}
	return formatInt(ms)
}
