package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/hri/internal/instance"
	"github.com/dyluth/hri/internal/printer"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var instancesCmd = &cobra.Command{
	Use:   "instances",
	Short: "List the instances that have state on the Redis server",
	Args:  cobra.NoArgs,
	RunE:  runInstances,
}

func init() {
	rootCmd.AddCommand(instancesCmd)
}

func runInstances(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	redisOpts, err := instance.RedisOptions(settings.GetString(keyRedisURL))
	if err != nil {
		return printer.Error("invalid Redis URL", err.Error(), nil)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	names, err := instance.Discover(ctx, rdb)
	if err != nil {
		return printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not list instances on %s", redisOpts.Addr),
			map[string]string{"Error": err.Error()},
			nil,
		)
	}

	out := cmd.OutOrStdout()
	if len(names) == 0 {
		fmt.Fprintln(out, "No instances found")
		return nil
	}
	for _, name := range names {
		fmt.Fprintln(out, name)
	}
	return nil
}
