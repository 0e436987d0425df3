package roster

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dyluth/hri/pkg/blackboard"
)

// FormatTable writes records as a table with columns PERSON, PRESENT, SCORE and UPDATED.
// Returns the number of records formatted.
func FormatTable(w io.Writer, records []*blackboard.AvailabilityRecord, instanceName string) int {
	if len(records) == 0 {
		fmt.Fprintf(w, "No persons observed for instance '%s'\n", instanceName)
		return 0
	}

	fmt.Fprintf(w, "Availability for instance '%s':\n\n", instanceName)

	fmt.Fprintf(w, "%-20s %-8s %-16s %s\n", "PERSON", "PRESENT", "SCORE", "UPDATED")
	fmt.Fprintf(w, "%-20s %-8s %-16s %s\n", "--------------------", "--------", "----------------", "--------")

	for _, r := range records {
		fmt.Fprintf(w, "%-20s %-8s %-16s %s\n",
			formatPerson(r.PersonID),
			formatPresent(r.Present),
			formatScore(r.Score),
			formatTimestamp(r.UpdatedAtMs),
		)
	}

	noun := "person"
	if len(records) != 1 {
		noun = "persons"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(records), noun)

	return len(records)
}

// FormatJSONL writes records as line-delimited JSON, one record per line.
func FormatJSONL(w io.Writer, records []*blackboard.AvailabilityRecord) error {
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal availability record to JSON: %w", err)
		}

		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// FormatSingleJSON writes one record as pretty-printed JSON.
func FormatSingleJSON(w io.Writer, rec *blackboard.AvailabilityRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal availability record to JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)
	return nil
}

// formatPerson truncates long person IDs.
func formatPerson(id string) string {
	if len(id) > 20 {
		return id[:17] + "..."
	}
	return id
}

func formatPresent(present bool) string {
	if present {
		return "yes"
	}
	return "no"
}

// formatScore renders the score with a ten-cell bar, e.g. "0.60 ######....".
func formatScore(score float64) string {
	cells := int(score*10 + 0.5)
	if cells < 0 {
		cells = 0
	}
	if cells > 10 {
		cells = 10
	}
	return fmt.Sprintf("%.2f %s%s", score, strings.Repeat("#", cells), strings.Repeat(".", 10-cells))
}

// formatTimestamp formats Unix milliseconds as a relative time like "2m ago".
func formatTimestamp(timestampMs int64) string {
	if timestampMs == 0 {
		return "-"
	}

	diff := time.Since(time.UnixMilli(timestampMs))

	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
