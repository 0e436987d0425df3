package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dyluth/hri/internal/printer"
	"github.com/dyluth/hri/internal/server"
	"github.com/dyluth/hri/pkg/blackboard"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	keyListen        = "listen"
	keyMaxConcurrent = "max-concurrent"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Resolve requests published on the blackboard",
	Long: `Run the resolution pipeline against Redis.

Consumes request events from hri:{instance}:request_events, resolves them
with the handlers in hri.yml and publishes acknowledgements and final
responses on hri:{instance}:response_events. Beliefs, availability and
resolution contexts are kept in Redis so they are shared with other tools.

Serves /healthz and /metrics on --listen until interrupted.

Examples:
  # Serve the default instance on a local Redis
  hri serve

  # Serve instance "lab" with at most 4 requests in flight
  HRI_INSTANCE=lab hri serve --max-concurrent 4`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String(keyListen, server.DefaultHealthAddr, "Address of the health and metrics server")
	serveCmd.Flags().Int(keyMaxConcurrent, server.DefaultMaxConcurrent, "Maximum number of requests resolved at once")
	if err := settings.BindPFlags(serveCmd.Flags()); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	bbClient, err := connect(ctx, blackboard.WithResolutionTTL(cfg.ResolutionTTL()))
	if err != nil {
		return err
	}
	defer bbClient.Close()

	logger = logger.With(zap.String("instance", bbClient.InstanceName()))

	components, err := server.Assemble(cfg, server.Deps{
		Beliefs:           bbClient,
		AvailabilityStore: bbClient,
		ResolutionStore:   bbClient,
		Sink:              server.NewAckPublisher(bbClient, logger),
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("failed to assemble pipeline: %w", err)
	}

	health := server.NewHealthServer(bbClient, settings.GetString(keyListen), logger)
	srv := server.New(bbClient, components.Engine, logger,
		server.WithMaxConcurrent(settings.GetInt(keyMaxConcurrent)),
		server.WithHealthServer(health))

	logger.Info("serving",
		zap.String("config", settings.GetString(keyConfig)),
		zap.String("listen", settings.GetString(keyListen)))
	printer.Step("Serving instance '%s' (health and metrics on %s)\n", bbClient.InstanceName(), settings.GetString(keyListen))

	if err := srv.Run(ctx); err != nil {
		return err
	}
	printer.Info("Stopped serving instance '%s'\n", bbClient.InstanceName())
	return nil
}
