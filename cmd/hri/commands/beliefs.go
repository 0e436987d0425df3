package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dyluth/hri/internal/printer"
	"github.com/spf13/cobra"
)

var beliefsCmd = &cobra.Command{
	Use:   "beliefs",
	Short: "Read and seed the belief facts of an instance",
}

var beliefsLoadCmd = &cobra.Command{
	Use:   "load <FACTS_FILE>",
	Short: "Store the facts of a YAML file in Redis",
	Long: `Store belief facts in Redis so a running server can use them.

The file maps fact types to lists of facts, each with an id:

  person:
    - {id: bob, name: Bob}
  object:
    - {id: b1, type: bottle, color: red}`,
	Args: cobra.ExactArgs(1),
	RunE: runBeliefsLoad,
}

var beliefsGetCmd = &cobra.Command{
	Use:   "get <TYPE> [DESCRIPTION]",
	Short: "Print the facts of a type matching a description as JSONL",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runBeliefsGet,
}

func init() {
	beliefsCmd.AddCommand(beliefsLoadCmd, beliefsGetCmd)
	rootCmd.AddCommand(beliefsCmd)
}

func runBeliefsLoad(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	facts, err := loadFacts(args[0])
	if err != nil {
		return printer.Error("invalid facts file", err.Error(), nil)
	}

	bbClient, err := connect(ctx)
	if err != nil {
		return err
	}
	defer bbClient.Close()

	types := make([]string, 0, len(facts))
	for factType := range facts {
		types = append(types, factType)
	}
	sort.Strings(types)

	total := 0
	for _, factType := range types {
		for _, f := range facts[factType] {
			if err := bbClient.Update(ctx, factType, f); err != nil {
				return fmt.Errorf("failed to store %s fact %s: %w", factType, f.ID(), err)
			}
			total++
		}
	}
	printer.Success("Stored %d facts in instance '%s'\n", total, bbClient.InstanceName())
	return nil
}

func runBeliefsGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	description := ""
	if len(args) == 2 {
		description = args[1]
	}

	bbClient, err := connect(ctx)
	if err != nil {
		return err
	}
	defer bbClient.Close()

	facts, err := bbClient.Get(ctx, args[0], description)
	if err != nil {
		return fmt.Errorf("failed to read facts: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, f := range facts {
		if err := enc.Encode(f); err != nil {
			return fmt.Errorf("failed to encode fact: %w", err)
		}
	}
	return nil
}
