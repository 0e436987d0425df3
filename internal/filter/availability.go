package filter

import (
	"path/filepath"

	"github.com/dyluth/hri/pkg/blackboard"
)

// Criteria defines filtering criteria for availability records.
// All filters are ANDed together - a record must match ALL criteria to pass.
type Criteria struct {
	SinceTimestampMs int64   // Unix timestamp in milliseconds, 0 = no filter
	UntilTimestampMs int64   // Unix timestamp in milliseconds, 0 = no filter
	PersonGlob       string  // Glob pattern for person ID, empty = no filter
	Present          *bool   // Exact match on the present flag, nil = no filter
	MinScore         float64 // Lowest score to include, 0 = no filter
}

// Matches returns true if the record matches all filter criteria.
func (c *Criteria) Matches(rec *blackboard.AvailabilityRecord) bool {
	if c.SinceTimestampMs > 0 && rec.UpdatedAtMs < c.SinceTimestampMs {
		return false
	}
	if c.UntilTimestampMs > 0 && rec.UpdatedAtMs > c.UntilTimestampMs {
		return false
	}

	if c.PersonGlob != "" {
		matched, err := filepath.Match(c.PersonGlob, rec.PersonID)
		if err != nil || !matched {
			return false
		}
	}

	if c.Present != nil && rec.Present != *c.Present {
		return false
	}

	if c.MinScore > 0 && rec.Score < c.MinScore {
		return false
	}

	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.SinceTimestampMs > 0 ||
		c.UntilTimestampMs > 0 ||
		c.PersonGlob != "" ||
		c.Present != nil ||
		c.MinScore > 0
}
