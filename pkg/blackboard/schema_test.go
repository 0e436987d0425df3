package blackboard

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

// TestKeyPatterns tests key and channel generation
func TestKeyPatterns(t *testing.T) {
	id := uuid.New().String()

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"resolution", ResolutionKey("default-1", id), "hri:default-1:resolution:" + id},
		{"availability", AvailabilityKey("default-1", "p1"), "hri:default-1:availability:p1"},
		{"availability index", AvailabilityIndexKey("default-1"), "hri:default-1:availability_index"},
		{"fact", FactKey("default-1", "object", "b1"), "hri:default-1:fact:object:b1"},
		{"fact index", FactIndexKey("default-1", "object"), "hri:default-1:facts:object"},
		{"response", ResponseKey("default-1", id), "hri:default-1:response:" + id},
		{"request events", RequestEventsChannel("default-1"), "hri:default-1:request_events"},
		{"response events", ResponseEventsChannel("default-1"), "hri:default-1:response_events"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, expected %q", tt.got, tt.expected)
			}
			if !strings.HasPrefix(tt.got, "hri:default-1:") {
				t.Errorf("%q should be namespaced with 'hri:default-1:'", tt.got)
			}
		})
	}
}

// TestIndexScore tests timestamp to score round-trips
func TestIndexScore(t *testing.T) {
	ms := int64(1729000000123)
	if got := TimestampFromScore(IndexScore(ms)); got != ms {
		t.Errorf("TimestampFromScore(IndexScore(%d)) = %d", ms, got)
	}
	if got := scoreBound(0, "-inf"); got != "-inf" {
		t.Errorf("scoreBound(0) = %q, expected -inf", got)
	}
	if got := scoreBound(1500, "-inf"); got != "1500" {
		t.Errorf("scoreBound(1500) = %q, expected 1500", got)
	}
}
