package commands

import (
	"context"
	"log/slog"
	"time"

	"wordsynk-backend/lib/configutil"
	"wordsynk-backend/lib/serviceutil"
	"wordsynk-backend/lib/sqliteutil"
	"wordsynk-backend/lib/telemetry"
	"wordsynk-backend/lib/uiauto"
	"wordsynk-backend/services/bookings"
	"wordsynk-backend/services/bookings/db"
	"wordsynk-backend/services/bookings/session"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

var runConfig *string

func init() {
	runConfig = runCmd.Flags().String("config", "config.json5", "Path to the scraper config file.")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [--config <path/to/config.json5>]",
	Short: "Runs a crawl over the booking app, resuming any interrupted session.",
	Run: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
		ctx := cmd.Context()

		cfg, err := configutil.ReadConfig[bookings.Config](*runConfig)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		cfg = cfg.WithDefaults()

		sqlite, err := sqliteutil.OpenDB(db.Schema, cfg.DatabasePath)
		if err != nil {
			serviceutil.Fatal("failed to open db", err)
		}
		defer sqlite.Close()

		tracker, err := session.LoadOrCreate(ctx, sqlite)
		if err != nil {
			serviceutil.Fatal("failed to load session state", err)
		}

		ui, err := uiauto.NewSession(ctx, uiauto.Options{
			ServerURL:    cfg.Appium.ServerURL,
			Capabilities: cfg.Capabilities(),
		})
		if err != nil {
			serviceutil.Fatal("failed to start automation session", err)
		}
		defer func() {
			quitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := ui.Quit(quitCtx); err != nil {
				slog.Warn("failed to quit automation session", "err", err)
			}
		}()

		if cfg.Appium.DisplayID != 0 {
			err := ui.UpdateSettings(ctx, map[string]any{"displayId": cfg.Appium.DisplayID})
			if err != nil {
				serviceutil.Fatal("failed to target display", err)
			}
		}

		t1 := time.Now()
		err = bookings.NewCrawler(cfg, ui, sqlite, tracker).Run(ctx)
		t2 := time.Now()

		if err != nil {
			slog.Error("crawl ended with error", "err", err, "seconds", t2.Sub(t1).Seconds())
			return
		}
		slog.Info("crawl complete", "seconds", t2.Sub(t1).Seconds())
	},
}
