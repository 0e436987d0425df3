package filter

import (
	"testing"

	"github.com/dyluth/hri/pkg/blackboard"
	"github.com/stretchr/testify/assert"
)

func TestCriteriaMatches(t *testing.T) {
	present := true
	absent := false
	rec := &blackboard.AvailabilityRecord{PersonID: "visitor-7", Present: true, Score: 0.6, UpdatedAtMs: 2000}

	tests := []struct {
		name     string
		criteria Criteria
		want     bool
	}{
		{"empty criteria match all", Criteria{}, true},
		{"since before update", Criteria{SinceTimestampMs: 1000}, true},
		{"since after update", Criteria{SinceTimestampMs: 3000}, false},
		{"until after update", Criteria{UntilTimestampMs: 3000}, true},
		{"until before update", Criteria{UntilTimestampMs: 1000}, false},
		{"glob match", Criteria{PersonGlob: "visitor-*"}, true},
		{"glob mismatch", Criteria{PersonGlob: "staff-*"}, false},
		{"malformed glob", Criteria{PersonGlob: "[visitor"}, false},
		{"present filter", Criteria{Present: &present}, true},
		{"absent filter", Criteria{Present: &absent}, false},
		{"score above minimum", Criteria{MinScore: 0.5}, true},
		{"score below minimum", Criteria{MinScore: 0.7}, false},
		{"all combined", Criteria{SinceTimestampMs: 1000, PersonGlob: "visitor-?", Present: &present, MinScore: 0.6}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.criteria.Matches(rec))
		})
	}
}

func TestHasFilters(t *testing.T) {
	present := false
	assert.False(t, (&Criteria{}).HasFilters())
	assert.True(t, (&Criteria{PersonGlob: "*"}).HasFilters())
	assert.True(t, (&Criteria{Present: &present}).HasFilters())
	assert.True(t, (&Criteria{MinScore: 0.1}).HasFilters())
}
