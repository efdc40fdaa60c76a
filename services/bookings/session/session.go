// Package session tracks crawl progress in the database so an interrupted
// run can pick up where it stopped instead of starting over.
package session

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"wordsynk-backend/lib/timezone"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("wordsynk.services.bookings.session")

// State is where the crawl currently is in its screen flow.
type State string

const (
	StateInitializing     State = "initializing"
	StateNavigatingToList State = "navigating_to_list"
	StateList             State = "list"
	StateSecondary        State = "secondary"
	StateDetail           State = "detail"
	StateError            State = "error"
	StateFinished         State = "finished"
	StateIdle             State = "idle"
)

// Reconcile maps a persisted state to the state a resumed run starts in.
// Mid-booking states survive a restart; everything else goes back to
// navigating, since the app won't still be on that screen.
func Reconcile(s State) State {
	switch s {
	case StateList, StateSecondary, StateDetail:
		return s
	default:
		return StateNavigatingToList
	}
}

const timeLayout = "2006-01-02 15:04:05"

// Tracker is the persisted progress of one crawl session. It is not safe
// for concurrent use; the orchestrator owns it.
type Tracker struct {
	db *sql.DB

	sessionID int64
	resumed   bool

	state State
	prev  State

	currentBookingID       string
	currentMJRID           string
	lastProcessedBookingID string

	totalScraped  int
	totalErrors   int
	scrapeAttempt int
}

// LoadOrCreate resumes the most recent running or errored session, or starts
// a fresh one. A running session wins over an errored one so a crash during
// recovery does not fork history.
func LoadOrCreate(ctx context.Context, db *sql.DB) (*Tracker, error) {
	ctx, span := tracer.Start(ctx, "LoadOrCreate")
	defer span.End()

	t := &Tracker{db: db, state: StateInitializing}

	var (
		lastState     sql.NullString
		bookingID     sql.NullString
		mjrID         sql.NullString
		lastProcessed sql.NullString
	)
	err := db.QueryRowContext(ctx, `
		SELECT session_id, last_state, current_booking_id, current_mjr_id,
		       last_processed_booking_id, total_bookings_scraped, total_errors
		FROM bookings_scrape
		WHERE status = 'running' OR status = 'error'
		ORDER BY CASE status WHEN 'running' THEN 1 WHEN 'error' THEN 2 ELSE 3 END,
		         start_time DESC
		LIMIT 1
	`).Scan(&t.sessionID, &lastState, &bookingID, &mjrID,
		&lastProcessed, &t.totalScraped, &t.totalErrors)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := db.ExecContext(ctx, `
			INSERT INTO bookings_scrape (start_time, status, last_state)
			VALUES (?, 'running', ?)
		`, timezone.Now().Format(timeLayout), string(StateNavigatingToList))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		t.sessionID, err = res.LastInsertId()
		if err != nil {
			return nil, err
		}
		t.state = StateNavigatingToList
		slog.InfoContext(ctx, "created scrape session", "session", t.sessionID)

	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err

	default:
		t.resumed = true
		t.currentBookingID = bookingID.String
		t.currentMJRID = mjrID.String
		t.lastProcessedBookingID = lastProcessed.String
		t.state = Reconcile(State(lastState.String))

		_, err = db.ExecContext(ctx, `
			UPDATE bookings_scrape SET status = 'running', start_time = ?
			WHERE session_id = ?
		`, timezone.Now().Format(timeLayout), t.sessionID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		slog.InfoContext(ctx, "resuming scrape session",
			"session", t.sessionID,
			"state", t.state,
			"booking", t.currentBookingID,
			"mjr", t.currentMJRID,
			"last_processed", t.lastProcessedBookingID)
	}

	// pick the attempt counter back up when we died mid-booking
	if t.currentBookingID != "" && (t.state == StateSecondary || t.state == StateDetail) {
		var attempt sql.NullInt64
		err := db.QueryRowContext(ctx,
			"SELECT scrape_attempt FROM bookings WHERE booking_id = ?",
			t.currentBookingID,
		).Scan(&attempt)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		t.scrapeAttempt = int(attempt.Int64)
	}

	span.SetAttributes(
		attribute.Int64("session", t.sessionID),
		attribute.Bool("resumed", t.resumed),
		attribute.String("state", string(t.state)),
	)
	return t, nil
}

func (t *Tracker) SessionID() int64               { return t.sessionID }
func (t *Tracker) Resumed() bool                  { return t.resumed }
func (t *Tracker) State() State                   { return t.state }
func (t *Tracker) CurrentBookingID() string       { return t.currentBookingID }
func (t *Tracker) CurrentMJRID() string           { return t.currentMJRID }
func (t *Tracker) LastProcessedBookingID() string { return t.lastProcessedBookingID }
func (t *Tracker) TotalScraped() int              { return t.totalScraped }
func (t *Tracker) TotalErrors() int               { return t.totalErrors }
func (t *Tracker) ScrapeAttempt() int             { return t.scrapeAttempt }
func (t *Tracker) IncrementAttempt()              { t.scrapeAttempt++ }

type update struct {
	bookingID     *string
	mjrID         *string
	lastProcessed *string
	errMessage    string
}

// Option adjusts one field along with a state change. Fields without an
// option keep their value; passing an empty string clears the field.
type Option func(*update)

func WithBookingID(id string) Option {
	return func(u *update) { u.bookingID = &id }
}

func WithMJRID(id string) Option {
	return func(u *update) { u.mjrID = &id }
}

func WithLastProcessed(id string) Option {
	return func(u *update) { u.lastProcessed = &id }
}

func WithErrorMessage(msg string) Option {
	return func(u *update) { u.errMessage = msg }
}

// SetState transitions and persists the session. Entering the error state
// bumps the session error counter; entering detail from secondary resets the
// per-booking attempt counter.
func (t *Tracker) SetState(ctx context.Context, next State, opts ...Option) error {
	ctx, span := tracer.Start(ctx, "SetState")
	defer span.End()

	var u update
	for _, opt := range opts {
		opt(&u)
	}

	t.prev = t.state
	t.state = next
	if u.bookingID != nil {
		t.currentBookingID = *u.bookingID
	}
	if u.mjrID != nil {
		t.currentMJRID = *u.mjrID
	}
	if u.lastProcessed != nil {
		t.lastProcessedBookingID = *u.lastProcessed
	}

	status := "running"
	switch {
	case next == StateError:
		t.totalErrors++
		status = "error"
		slog.ErrorContext(ctx, "session entered error state",
			"session", t.sessionID, "message", u.errMessage,
			"booking", t.currentBookingID, "mjr", t.currentMJRID)
	case next == StateDetail && t.prev == StateSecondary:
		t.scrapeAttempt = 0
	}

	span.SetAttributes(
		attribute.String("from", string(t.prev)),
		attribute.String("to", string(next)),
	)

	var err error
	if next == StateError {
		_, err = t.db.ExecContext(ctx, `
			UPDATE bookings_scrape
			SET last_state = ?, current_booking_id = ?, current_mjr_id = ?,
			    last_processed_booking_id = ?, total_errors = ?, status = ?,
			    error_message = ?
			WHERE session_id = ?
		`, string(next), nullStr(t.currentBookingID), nullStr(t.currentMJRID),
			nullStr(t.lastProcessedBookingID), t.totalErrors, status,
			nullStr(u.errMessage), t.sessionID)
	} else {
		_, err = t.db.ExecContext(ctx, `
			UPDATE bookings_scrape
			SET last_state = ?, current_booking_id = ?, current_mjr_id = ?,
			    last_processed_booking_id = ?, total_errors = ?, status = ?
			WHERE session_id = ?
		`, string(next), nullStr(t.currentBookingID), nullStr(t.currentMJRID),
			nullStr(t.lastProcessedBookingID), t.totalErrors, status, t.sessionID)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// RecordScraped bumps and persists the session's scraped counter.
func (t *Tracker) RecordScraped(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "RecordScraped")
	defer span.End()

	t.totalScraped++
	_, err := t.db.ExecContext(ctx,
		"UPDATE bookings_scrape SET total_bookings_scraped = ? WHERE session_id = ?",
		t.totalScraped, t.sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Finish closes out the session. A nil finalErr completes it; otherwise it
// is stored as errored with the message.
func (t *Tracker) Finish(ctx context.Context, finalErr error) error {
	ctx, span := tracer.Start(ctx, "Finish")
	defer span.End()

	status := "completed"
	t.state = StateFinished
	var msg sql.NullString
	if finalErr != nil {
		status = "error"
		t.state = StateError
		msg = nullStr(finalErr.Error())
	}

	_, err := t.db.ExecContext(ctx, `
		UPDATE bookings_scrape
		SET end_time = ?, status = ?, last_state = ?,
		    error_message = COALESCE(?, error_message)
		WHERE session_id = ?
	`, timezone.Now().Format(timeLayout), status, string(t.state), msg, t.sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	slog.InfoContext(ctx, "scrape session finished",
		"session", t.sessionID, "status", status,
		"scraped", t.totalScraped, "errors", t.totalErrors)
	return nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
