package main

import (
	"github.com/spf13/cobra"

	"github.com/kbukum/eventfeed/app"
	"github.com/kbukum/eventfeed/config"
	"github.com/kbukum/eventfeed/version"
)

var (
	cfgFile string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   app.ServiceName,
	Short: "Append-only event feed with SSE delivery",
	Long: `eventfeed stores published JSON events and streams them to subscribers
over Server-Sent Events. Clients resume with Last-Event-ID.

Configuration comes from config.yml and EVENTFEED_* environment variables.`,
	Version:      version.Get().String(),
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yml or ./cmd/eventfeed/config.yml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", ".env file loaded before the environment is read")

	rootCmd.AddCommand(serveCmd, tokenCmd, hashKeyCmd)
}

// loadConfig reads the service configuration and applies defaults.
func loadConfig() (*app.Config, error) {
	var opts []config.LoaderOption
	if cfgFile != "" {
		opts = append(opts, config.WithConfigFile(cfgFile))
	}
	if envFile != "" {
		opts = append(opts, config.WithEnvFile(envFile))
	}

	cfg := &app.Config{}
	if err := config.LoadConfig(app.ServiceName, cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}
