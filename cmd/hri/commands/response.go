package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dyluth/hri/internal/printer"
	"github.com/dyluth/hri/internal/resolver"
	"github.com/spf13/cobra"
)

var responseOutput string

var responseCmd = &cobra.Command{
	Use:   "response <REQUEST_ID>",
	Short: "Show the stored final response of a request",
	Long: `Show the final response a server published for a request.

Final responses are kept in Redis for a while after they are published.
Short IDs (at least 6 characters) are accepted when unambiguous.

Examples:
  hri response 3f2a9c
  hri response 3f2a9c1e-0d4b-4c1a-9d8e-5b6f7a8b9c0d --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runResponse,
}

func init() {
	responseCmd.Flags().StringVarP(&responseOutput, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(responseCmd)
}

func runResponse(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if responseOutput != "default" && responseOutput != "json" {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", responseOutput),
			[]string{"Valid formats: default, json"},
		)
	}

	bbClient, err := connect(ctx)
	if err != nil {
		return err
	}
	defer bbClient.Close()

	requestID, err := resolver.ResolveRequestID(ctx, bbClient, args[0])
	if err != nil {
		var ambiguous *resolver.AmbiguousError
		switch {
		case resolver.IsNotFoundError(err):
			return printer.Error(
				fmt.Sprintf("response '%s' not found", args[0]),
				"No stored response matches this ID. Responses expire some time after they are published.",
				nil,
			)
		case errors.As(err, &ambiguous):
			return printer.Error(
				fmt.Sprintf("ambiguous ID '%s'", args[0]),
				"Several responses match:\n  "+strings.Join(ambiguous.Suggestions(), "\n  "),
				[]string{"Use a longer prefix"},
			)
		default:
			return printer.Error("invalid request ID", err.Error(), nil)
		}
	}

	event, err := bbClient.GetResponse(ctx, requestID)
	if err != nil {
		return fmt.Errorf("failed to fetch response: %w", err)
	}
	return renderEvent(cmd.OutOrStdout(), event, responseOutput)
}
