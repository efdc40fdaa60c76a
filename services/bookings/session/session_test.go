package session

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"wordsynk-backend/lib/telemetry"
	"wordsynk-backend/services/bookings/db"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func testDB(t *testing.T) (*sql.DB, context.Context) {
	cleanup := telemetry.SetupForTesting(t, "test:bookings/session")
	t.Cleanup(cleanup)

	sqlite, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqlite.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlite.Close() })
	_, err = sqlite.Exec(db.Schema)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	t.Cleanup(cancel)
	return sqlite, ctx
}

func TestReconcile(t *testing.T) {
	for _, tc := range []struct {
		persisted State
		resumed   State
	}{
		{StateList, StateList},
		{StateSecondary, StateSecondary},
		{StateDetail, StateDetail},
		{StateInitializing, StateNavigatingToList},
		{StateNavigatingToList, StateNavigatingToList},
		{StateError, StateNavigatingToList},
		{StateFinished, StateNavigatingToList},
		{StateIdle, StateNavigatingToList},
		{State("garbage"), StateNavigatingToList},
	} {
		require.Equal(t, tc.resumed, Reconcile(tc.persisted), "persisted=%s", tc.persisted)
	}
}

func TestFreshSession(t *testing.T) {
	sqlite, ctx := testDB(t)

	tr, err := LoadOrCreate(ctx, sqlite)
	require.NoError(t, err)
	require.False(t, tr.Resumed())
	require.Equal(t, StateNavigatingToList, tr.State())
	require.NotZero(t, tr.SessionID())
	require.Zero(t, tr.TotalScraped())
	require.Zero(t, tr.TotalErrors())
}

func TestResumeMidDetail(t *testing.T) {
	sqlite, ctx := testDB(t)

	tr, err := LoadOrCreate(ctx, sqlite)
	require.NoError(t, err)

	// simulate dying mid-detail with a recorded attempt counter
	_, err = sqlite.Exec(`
		INSERT INTO bookings (booking_id, mjr_id, scrape_attempt, status)
		VALUES ('MJA00000001', 'MJR00000001', 2, 'pending')
	`)
	require.NoError(t, err)
	require.NoError(t, tr.SetState(ctx, StateDetail,
		WithBookingID("MJA00000001"),
		WithMJRID("MJR00000001"),
		WithLastProcessed("MJA00000000"),
	))
	require.NoError(t, tr.RecordScraped(ctx))

	resumed, err := LoadOrCreate(ctx, sqlite)
	require.NoError(t, err)
	require.True(t, resumed.Resumed())
	require.Equal(t, tr.SessionID(), resumed.SessionID())
	require.Equal(t, StateDetail, resumed.State())
	require.Equal(t, "MJA00000001", resumed.CurrentBookingID())
	require.Equal(t, "MJR00000001", resumed.CurrentMJRID())
	require.Equal(t, "MJA00000000", resumed.LastProcessedBookingID())
	require.Equal(t, 1, resumed.TotalScraped())
	require.Equal(t, 2, resumed.ScrapeAttempt())
}

func TestResumeFromNonBookingStateRestartsAtList(t *testing.T) {
	sqlite, ctx := testDB(t)

	tr, err := LoadOrCreate(ctx, sqlite)
	require.NoError(t, err)
	require.NoError(t, tr.SetState(ctx, StateIdle))

	resumed, err := LoadOrCreate(ctx, sqlite)
	require.NoError(t, err)
	require.Equal(t, tr.SessionID(), resumed.SessionID())
	require.Equal(t, StateNavigatingToList, resumed.State())
}

func TestErrorStateCountsAndResumes(t *testing.T) {
	sqlite, ctx := testDB(t)

	tr, err := LoadOrCreate(ctx, sqlite)
	require.NoError(t, err)
	require.NoError(t, tr.SetState(ctx, StateError,
		WithErrorMessage("element not found"),
	))
	require.Equal(t, 1, tr.TotalErrors())

	// an errored session is still resumable
	resumed, err := LoadOrCreate(ctx, sqlite)
	require.NoError(t, err)
	require.Equal(t, tr.SessionID(), resumed.SessionID())
	require.Equal(t, 1, resumed.TotalErrors())
	require.Equal(t, StateNavigatingToList, resumed.State())
}

func TestAttemptCounterResetsOnSecondaryToDetail(t *testing.T) {
	sqlite, ctx := testDB(t)

	tr, err := LoadOrCreate(ctx, sqlite)
	require.NoError(t, err)

	require.NoError(t, tr.SetState(ctx, StateSecondary, WithBookingID("MJA00000002")))
	tr.IncrementAttempt()
	tr.IncrementAttempt()
	require.Equal(t, 2, tr.ScrapeAttempt())

	require.NoError(t, tr.SetState(ctx, StateDetail))
	require.Equal(t, 0, tr.ScrapeAttempt())
}

func TestFinish(t *testing.T) {
	sqlite, ctx := testDB(t)

	tr, err := LoadOrCreate(ctx, sqlite)
	require.NoError(t, err)
	require.NoError(t, tr.Finish(ctx, nil))

	// a completed session never resumes
	next, err := LoadOrCreate(ctx, sqlite)
	require.NoError(t, err)
	require.False(t, next.Resumed())
	require.NotEqual(t, tr.SessionID(), next.SessionID())

	require.NoError(t, next.Finish(ctx, errors.New("too many consecutive errors")))
	var status, msg string
	err = sqlite.QueryRow(
		"SELECT status, error_message FROM bookings_scrape WHERE session_id = ?",
		next.SessionID(),
	).Scan(&status, &msg)
	require.NoError(t, err)
	require.Equal(t, "error", status)
	require.Equal(t, "too many consecutive errors", msg)
}
