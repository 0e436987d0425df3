package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/hri/internal/availability"
	"github.com/dyluth/hri/internal/printer"
	"github.com/dyluth/hri/internal/roster"
	"github.com/dyluth/hri/pkg/blackboard"
	"github.com/dyluth/hri/pkg/hri"
	"github.com/spf13/cobra"
)

var presenceGesture string

var presenceCmd = &cobra.Command{
	Use:   "presence [person-id...]",
	Short: "Report which persons are currently in view",
	Long: `Record one presence observation: the listed persons are in view and every
other known person is not. With no arguments nobody is in view.

By default the availability records in Redis are updated directly, using
the step and initial score from hri.yml. With --gesture the observation is
written as computer vision facts and a gesture request is published, so a
running server folds it in through its presence handler.

Examples:
  # ann and bob are in front of the robot
  hri presence ann bob

  # Let the server's presence handler do it
  hri presence ann --gesture presence_update`,
	RunE: runPresence,
}

func init() {
	presenceCmd.Flags().StringVar(&presenceGesture, "gesture", "", "Publish a gesture request with this label instead of updating directly")
	rootCmd.AddCommand(presenceCmd)
}

func runPresence(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	bbClient, err := connect(ctx)
	if err != nil {
		return err
	}
	defer bbClient.Close()

	if len(args) == 0 {
		printer.Warning("No persons given: every known person is recorded as out of view\n")
	}

	if presenceGesture != "" {
		if err := writeVision(ctx, bbClient, args); err != nil {
			return err
		}
		req := &hri.Request{Visual: &hri.VisualRequest{Gesture: presenceGesture}, Reactive: true}
		if err := bbClient.PublishRequest(ctx, req); err != nil {
			return fmt.Errorf("failed to publish presence request: %w", err)
		}
		printer.Success("Published %s request %s\n", presenceGesture, req.ID)
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}

	manager := availability.NewManager(bbClient, logger,
		availability.WithStep(*cfg.Availability.Step),
		availability.WithInitialScore(*cfg.Availability.InitialScore))
	snap, err := manager.HandlePersons(ctx, args)
	if err != nil {
		return fmt.Errorf("failed to update availability: %w", err)
	}

	records := make([]*blackboard.AvailabilityRecord, 0, len(snap))
	for _, rec := range snap {
		records = append(records, &rec)
	}
	roster.SortByPerson(records)
	roster.FormatTable(cmd.OutOrStdout(), records, bbClient.InstanceName())
	return nil
}

// visionStore reads and writes belief facts.
type visionStore interface {
	Get(ctx context.Context, factType, description string) ([]hri.Fact, error)
	Update(ctx context.Context, factType string, fact hri.Fact) error
}

// writeVision marks the observed persons as seen and every other person with
// a vision fact as not seen.
func writeVision(ctx context.Context, store visionStore, observed []string) error {
	seen := make(map[string]bool, len(observed))
	for _, id := range observed {
		seen[id] = true
	}

	existing, err := store.Get(ctx, hri.BeliefVision, "")
	if err != nil {
		return fmt.Errorf("failed to read vision facts: %w", err)
	}
	for _, f := range existing {
		if !seen[f.ID()] {
			if err := store.Update(ctx, hri.BeliefVision, hri.Fact{"id": f.ID(), "seen": "false"}); err != nil {
				return fmt.Errorf("failed to write vision fact: %w", err)
			}
		}
	}
	for id := range seen {
		if err := store.Update(ctx, hri.BeliefVision, hri.Fact{"id": id, "seen": "true"}); err != nil {
			return fmt.Errorf("failed to write vision fact: %w", err)
		}
	}
	return nil
}
