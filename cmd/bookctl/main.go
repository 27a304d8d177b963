// Command bookctl is a staff console for the clinic booking flow: it lists
// the catalog, prints open slots, checks a candidate start and books on a
// patient's behalf.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	appconfig "github.com/wolfman30/dental-booking/internal/config"
	"github.com/wolfman30/dental-booking/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	if err := newRootCmd(cfg, logging.New(cfg.LogLevel)).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(cfg *appconfig.Config, logger *logging.Logger) *cobra.Command {
	app := &app{cfg: cfg, logger: logger}
	rootCmd := &cobra.Command{
		Use:           "bookctl",
		Short:         "Clinic booking console",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.connect(cmd.Context())
		},
	}
	rootCmd.PersistentFlags().StringVar(&cfg.ClinicAPIBaseURL, "base-url", cfg.ClinicAPIBaseURL, "Clinic backend base URL")
	rootCmd.PersistentFlags().StringVar(&cfg.ClinicAPIToken, "token", cfg.ClinicAPIToken, "Bearer token (defaults to CLINIC_API_TOKEN or OIDC client credentials)")
	rootCmd.PersistentFlags().StringVar(&cfg.ClinicTimezone, "timezone", cfg.ClinicTimezone, "Clinic time zone for input and output")
	rootCmd.PersistentFlags().BoolVar(&app.jsonOutput, "json", false, "Print JSON instead of tables")

	rootCmd.AddCommand(proceduresCmd(app))
	rootCmd.AddCommand(doctorsCmd(app))
	rootCmd.AddCommand(slotsCmd(app))
	rootCmd.AddCommand(checkCmd(app))
	rootCmd.AddCommand(bookCmd(app))
	rootCmd.AddCommand(attemptsCmd(app))
	return rootCmd
}
