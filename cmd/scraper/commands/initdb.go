package commands

import (
	"log/slog"

	"wordsynk-backend/lib/configutil"
	"wordsynk-backend/lib/serviceutil"
	"wordsynk-backend/lib/sqliteutil"
	"wordsynk-backend/services/bookings"
	"wordsynk-backend/services/bookings/db"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

var initdbConfig *string

func init() {
	initdbConfig = initdbCmd.Flags().String("config", "config.json5", "Path to the scraper config file.")
	rootCmd.AddCommand(initdbCmd)
}

var initdbCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Creates the booking database and applies the schema.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := configutil.ReadConfig[bookings.Config](*initdbConfig)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		cfg = cfg.WithDefaults()

		sqlite, err := sqliteutil.OpenDB(db.Schema, cfg.DatabasePath)
		if err != nil {
			serviceutil.Fatal("failed to initialize db", err)
		}
		defer sqlite.Close()

		slog.Info("database ready", "path", cfg.DatabasePath)
	},
}
