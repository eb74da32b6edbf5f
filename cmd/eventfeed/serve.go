package main

import (
	"github.com/spf13/cobra"

	"github.com/kbukum/eventfeed/app"
	"github.com/kbukum/eventfeed/bootstrap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the event feed server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := app.New(cfg, bootstrap.WithGracefulTimeout(app.ShutdownTimeout(cfg)))
		if err != nil {
			return err
		}
		return a.Run(cmd.Context())
	},
}
