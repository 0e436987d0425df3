// Package roster renders the availability records of an instance for the CLI.
package roster

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/dyluth/hri/internal/filter"
	"github.com/dyluth/hri/pkg/blackboard"
)

// OutputFormat specifies how to format the roster output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table format
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete records as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, OutputFormatJSONL:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format: %s", s)
	}
}

// Source lists availability records in a time window (zero bounds are open).
type Source interface {
	ListAvailability(ctx context.Context, sinceMs, untilMs int64) ([]*blackboard.AvailabilityRecord, error)
}

// ListAvailability retrieves the availability records of an instance and writes
// them to w. The time window is pushed down to the source; the remaining
// criteria are applied here. Records are ordered by person ID for stable output.
func ListAvailability(ctx context.Context, src Source, instanceName string, format OutputFormat, criteria *filter.Criteria, w io.Writer) error {
	var sinceMs, untilMs int64
	if criteria != nil {
		sinceMs, untilMs = criteria.SinceTimestampMs, criteria.UntilTimestampMs
	}

	records, err := src.ListAvailability(ctx, sinceMs, untilMs)
	if err != nil {
		return fmt.Errorf("failed to list availability: %w", err)
	}

	var kept []*blackboard.AvailabilityRecord
	for _, rec := range records {
		if criteria != nil && !criteria.Matches(rec) {
			continue
		}
		kept = append(kept, rec)
	}

	SortByPerson(kept)

	switch format {
	case OutputFormatDefault:
		FormatTable(w, kept, instanceName)
	case OutputFormatJSONL:
		if err := FormatJSONL(w, kept); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}

	return nil
}

// SortByPerson orders records by person ID.
func SortByPerson(records []*blackboard.AvailabilityRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].PersonID < records[j].PersonID
	})
}
