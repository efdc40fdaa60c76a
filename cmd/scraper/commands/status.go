package commands

import (
	"os"

	"wordsynk-backend/lib/configutil"
	"wordsynk-backend/lib/serviceutil"
	"wordsynk-backend/lib/sqliteutil"
	"wordsynk-backend/services/bookings"
	"wordsynk-backend/services/bookings/db"
	"wordsynk-backend/services/bookings/store"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

var statusConfig *string

func init() {
	statusConfig = statusCmd.Flags().String("config", "config.json5", "Path to the scraper config file.")
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Prints how many bookings sit in each processing status.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		cfg, err := configutil.ReadConfig[bookings.Config](*statusConfig)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		cfg = cfg.WithDefaults()

		sqlite, err := sqliteutil.OpenDB(db.Schema, cfg.DatabasePath)
		if err != nil {
			serviceutil.Fatal("failed to open db", err)
		}
		defer sqlite.Close()

		counts, err := store.NewStore(sqlite).StatusCounts(ctx)
		if err != nil {
			serviceutil.Fatal("failed to query status counts", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Status", "Bookings"})
		total := 0
		for _, status := range []store.Status{
			store.StatusPending,
			store.StatusSecondaryProcessed,
			store.StatusScraped,
			store.StatusCancelledOnList,
			store.StatusErrorList,
			store.StatusErrorNavSecondary,
			store.StatusErrorSecondaryInfo,
			store.StatusErrorClickMJR,
			store.StatusErrorNavDetail,
			store.StatusErrorDetailExtract,
			store.StatusErrorSave,
			store.StatusErrorUnknown,
			store.StatusSkippedDuplicate,
			store.StatusSkippedManual,
			store.StatusSkippedOfferViewed,
		} {
			n, ok := counts[status]
			if !ok {
				continue
			}
			t.AppendRow(table.Row{string(status), n})
			total += n
		}
		t.AppendFooter(table.Row{"total", total})
		t.Render()
	},
}
