package bookings

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"wordsynk-backend/lib/telemetry"
	"wordsynk-backend/services/bookings/db"
	"wordsynk-backend/services/bookings/dump"
	"wordsynk-backend/services/bookings/parse"
	"wordsynk-backend/services/bookings/session"
	"wordsynk-backend/services/bookings/store"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func testSaveCrawler(t *testing.T) (*Crawler, *sql.DB, context.Context) {
	t.Helper()
	cleanup := telemetry.SetupForTesting(t, "test:bookings/detail")
	t.Cleanup(cleanup)

	sqlite, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqlite.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlite.Close() })
	_, err = sqlite.Exec(db.Schema)
	require.NoError(t, err)

	tracker, err := session.LoadOrCreate(context.Background(), sqlite)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	t.Cleanup(cancel)

	return &Crawler{
		store:                store.NewStore(sqlite),
		tracker:              tracker,
		parser:               parse.NewParser(""),
		dumper:               dump.New(""),
		processedThisCycle:   map[string]struct{}{},
		processedThisSession: map[string]struct{}{},
		completeMJRs:         map[string]struct{}{},
	}, sqlite, ctx
}

func fp(v float64) *float64 { return &v }

// The payment block on a single-day page carries the day's own MJA id; the
// saved row is keyed on it, with the clicked card id only as a fallback.
func TestSaveDetailSingleDayKeyedOnParsedID(t *testing.T) {
	c, sqlite, ctx := testSaveCrawler(t)

	_, err := c.store.InsertBookingBase(ctx, parse.CardInfo{
		BookingID: "MJA00500001",
		Status:    parse.CardNormal,
		Postcode:  "LS1 3BY",
	})
	require.NoError(t, err)

	d := parse.Detail{
		MJRID:        "MJR00500000",
		MJAID:        "MJA00500002",
		BookingDate:  "01-05-2025",
		StartTime:    "10:00:00",
		EndTime:      "13:00:00",
		Duration:     "03:00",
		LanguagePair: "English to Polish",
		Payments:     parse.DayPayments{ServiceLine: fp(78)},
		DayTotal:     fp(89.93),
	}
	require.NoError(t, c.saveDetail(ctx, "MJA00500001", "MJR00500000", 1, d))

	status, err := c.store.BookingStatus(ctx, "MJA00500002")
	require.NoError(t, err)
	require.Equal(t, store.StatusScraped, status)

	var seq int
	var date string
	require.NoError(t, sqlite.QueryRowContext(ctx, `
		SELECT appointment_sequence, booking_date
		FROM bookings WHERE booking_id = 'MJA00500002'`,
	).Scan(&seq, &date))
	require.Equal(t, 1, seq)
	require.Equal(t, "01-05-2025", date)

	// neither id may be revisited this run
	require.Contains(t, c.processedThisSession, "MJA00500001")
	require.Contains(t, c.processedThisSession, "MJA00500002")
}

func TestSaveDetailSingleDayFallsBackToClickedID(t *testing.T) {
	c, _, ctx := testSaveCrawler(t)

	_, err := c.store.InsertBookingBase(ctx, parse.CardInfo{
		BookingID: "MJA00500011",
		Status:    parse.CardNormal,
	})
	require.NoError(t, err)

	d := parse.Detail{
		MJRID:    "MJR00500010",
		DayTotal: fp(45),
	}
	require.NoError(t, c.saveDetail(ctx, "MJA00500011", "MJR00500010", 1, d))

	status, err := c.store.BookingStatus(ctx, "MJA00500011")
	require.NoError(t, err)
	require.Equal(t, store.StatusScraped, status)
}
