package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/dyluth/hri/internal/config"
	"github.com/dyluth/hri/internal/instance"
	"github.com/dyluth/hri/internal/logging"
	"github.com/dyluth/hri/internal/pattern"
	"github.com/dyluth/hri/internal/printer"
	"github.com/dyluth/hri/pkg/blackboard"
	"go.uber.org/zap"
)

func newLogger() (*zap.Logger, error) {
	logger, err := logging.New(settings.GetString(keyLogLevel), settings.GetString(keyLogFormat))
	if err != nil {
		return nil, printer.Error(
			"invalid logging settings",
			err.Error(),
			[]string{"Use --log-level debug|info|warn|error and --log-format console|json"},
		)
	}
	return logger, nil
}

// loadConfig reads hri.yml from --config, rendering failures for the terminal.
func loadConfig() (*config.HRIConfig, error) {
	path := settings.GetString(keyConfig)
	cfg, err := config.Load(path)
	switch {
	case err == nil:
		return cfg, nil
	case errors.Is(err, fs.ErrNotExist):
		return nil, printer.Error(
			"configuration not found",
			fmt.Sprintf("No configuration file at %s.", path),
			[]string{
				"Create one:\n  hri init",
				"Point at an existing file:\n  hri --config path/to/hri.yml <command>",
			},
		)
	default:
		return nil, printer.ErrorWithContext(
			"invalid configuration",
			err.Error(),
			map[string]string{"Config": path},
			[]string{fmt.Sprintf("Check the file with:\n  hri validate --config %s", path)},
		)
	}
}

// connect opens a blackboard client for --instance on --redis-url and checks
// that Redis answers.
func connect(ctx context.Context, opts ...blackboard.ClientOption) (*blackboard.Client, error) {
	instanceName, err := instance.ResolveName(settings.GetString(keyInstance))
	if err != nil {
		return nil, printer.Error(
			"invalid instance name",
			err.Error(),
			[]string{"Use a DNS-compatible name, e.g. --instance lab-1"},
		)
	}

	redisURL := settings.GetString(keyRedisURL)
	redisOpts, err := instance.RedisOptions(redisURL)
	if err != nil {
		return nil, printer.Error(
			"invalid Redis URL",
			err.Error(),
			[]string{"Use the redis://host:port/db form, e.g. --redis-url redis://localhost:6379"},
		)
	}

	bbClient, err := blackboard.NewClient(redisOpts, instanceName, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create blackboard client: %w", err)
	}

	if err := bbClient.Ping(ctx); err != nil {
		bbClient.Close()
		return nil, printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", redisOpts.Addr),
			map[string]string{"Instance": instanceName, "Error": err.Error()},
			[]string{
				"Start Redis locally:\n  docker run -d -p 6379:6379 redis:7-alpine",
				"Point at another server:\n  hri --redis-url redis://host:6379 <command>",
			},
		)
	}
	return bbClient, nil
}

// parseValues turns key=value pairs into a value table keyed by braced tokens.
func parseValues(pairs map[string]string) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	values := make(map[string]string, len(pairs))
	for k, v := range pairs {
		k = strings.TrimSpace(k)
		if !pattern.IsToken(k) {
			k = pattern.Token(k)
		}
		values[k] = v
	}
	return values
}
