package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/hri/internal/filter"
	"github.com/dyluth/hri/internal/printer"
	"github.com/dyluth/hri/internal/roster"
	"github.com/dyluth/hri/internal/timespec"
	"github.com/spf13/cobra"
)

var (
	availabilityOutput   string
	availabilitySince    string
	availabilityUntil    string
	availabilityPerson   string
	availabilityPresent  bool
	availabilityAbsent   bool
	availabilityMinScore float64
)

var availabilityCmd = &cobra.Command{
	Use:   "availability [PERSON_ID]",
	Short: "Inspect the availability of observed persons",
	Long: `Inspect availability records in list or get mode.

List Mode (no PERSON_ID):
  Displays the persons matching filters as a table or JSONL stream.

Get Mode (with PERSON_ID):
  Displays one person's record as pretty-printed JSON.

Output Formats (list mode only):
  default - Human-readable table with person, presence, score and last update
  jsonl   - Line-delimited JSON, one record per line

Time Filters (list mode only):
  --since  - Records updated after this time
  --until  - Records updated before this time

Content Filters (list mode only):
  --person     - Person ID (glob pattern: "guest-*")
  --present    - Only persons currently in view
  --absent     - Only persons currently out of view
  --min-score  - Only persons with at least this score

Examples:
  # Everyone the robot has seen
  hri availability

  # Who is in view and seen in the last 10 minutes
  hri availability --present --since=10m

  # One person
  hri availability bob`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAvailability,
}

func init() {
	f := availabilityCmd.Flags()
	f.StringVarP(&availabilityOutput, "output", "o", "default", "Output format: default or jsonl (ignored in get mode)")
	f.StringVar(&availabilitySince, "since", "", "Show records updated after time (duration or RFC3339)")
	f.StringVar(&availabilityUntil, "until", "", "Show records updated before time (duration or RFC3339)")
	f.StringVar(&availabilityPerson, "person", "", "Filter by person ID (glob pattern)")
	f.BoolVar(&availabilityPresent, "present", false, "Only persons currently in view")
	f.BoolVar(&availabilityAbsent, "absent", false, "Only persons currently out of view")
	f.Float64Var(&availabilityMinScore, "min-score", 0, "Only persons with at least this score")
	availabilityCmd.MarkFlagsMutuallyExclusive("present", "absent")
	rootCmd.AddCommand(availabilityCmd)
}

func runAvailability(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := cmd.OutOrStdout()

	bbClient, err := connect(ctx)
	if err != nil {
		return err
	}
	defer bbClient.Close()

	if len(args) == 1 {
		err := roster.GetPerson(ctx, bbClient, args[0], out)
		if roster.IsNotFound(err) {
			return printer.Error(
				fmt.Sprintf("person '%s' not found", args[0]),
				err.Error(),
				[]string{"List observed persons:\n  hri availability"},
			)
		}
		return err
	}

	format, err := roster.ParseOutputFormat(availabilityOutput)
	if err != nil {
		return printer.Error(
			"invalid output format",
			err.Error(),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	window, err := timespec.ParseRange(availabilitySince, availabilityUntil)
	if err != nil {
		return printer.Error(
			"invalid time filter",
			err.Error(),
			[]string{"Use a duration (10m, 2h) or an RFC3339 time (2025-10-29T13:00:00Z)"},
		)
	}

	criteria := &filter.Criteria{
		SinceTimestampMs: window.SinceMs,
		UntilTimestampMs: window.UntilMs,
		PersonGlob:       availabilityPerson,
		MinScore:         availabilityMinScore,
	}
	switch {
	case availabilityPresent:
		present := true
		criteria.Present = &present
	case availabilityAbsent:
		present := false
		criteria.Present = &present
	}

	return roster.ListAvailability(ctx, bbClient, bbClient.InstanceName(), format, criteria, out)
}
