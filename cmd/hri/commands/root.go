package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version string
	commit  string
	date    string
)

// settings resolves global flags, falling back to HRI_* environment variables
// (e.g. --redis-url / HRI_REDIS_URL).
var settings = viper.New()

// Setting keys shared by several commands.
const (
	keyConfig    = "config"
	keyRedisURL  = "redis-url"
	keyInstance  = "instance"
	keyLogLevel  = "log-level"
	keyLogFormat = "log-format"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hri",
	Short: "HRI - human-robot interaction request resolution",
	Long: `HRI resolves what a person asks a robot to do.

Requests (spoken text and gestures) are matched against the response
templates in hri.yml, their handler chains run against the robot's
beliefs and the availability of the people around it, and the resulting
action descriptors are published for the actuation layer.

State is shared through Redis, namespaced by instance name, so several
robots can share one server.`,
	Version: version,
	// Prevent silent success when unknown flags are passed to root command
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP(keyConfig, "c", "hri.yml", "Path to hri.yml")
	flags.String(keyRedisURL, "", "Redis URL (default redis://localhost:6379)")
	flags.StringP(keyInstance, "n", "", "Instance name used to namespace Redis keys (default \"default\")")
	flags.String(keyLogLevel, "info", "Log level (debug, info, warn, error)")
	flags.String(keyLogFormat, "console", "Log format (console or json)")

	settings.SetEnvPrefix("HRI")
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()
	if err := settings.BindPFlags(flags); err != nil {
		panic(err)
	}
}
