// Package bookings drives the booking app through its three screens and
// persists what it finds. The crawler is a state machine over the session
// tracker: each state handler does one screen's worth of work, records the
// outcome, and moves the tracker to the next state. Progress is durable, so
// a crashed run resumes where it stopped.
package bookings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"wordsynk-backend/lib/uiauto"
	"wordsynk-backend/services/bookings/dump"
	"wordsynk-backend/services/bookings/parse"
	"wordsynk-backend/services/bookings/screens"
	"wordsynk-backend/services/bookings/session"
	"wordsynk-backend/services/bookings/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("wordsynk.services.bookings")

// maxConsecutiveErrors ends the run when the app stops cooperating rather
// than looping on a broken screen forever.
const maxConsecutiveErrors = 3

type Crawler struct {
	cfg     Config
	ui      *uiauto.Session
	store   store.Store
	tracker *session.Tracker
	parser  *parse.Parser
	dumper  *dump.Dumper

	list      screens.ListScreen
	secondary screens.SecondaryScreen
	detail    screens.DetailScreen

	// bookings handled since this list view was last entered from the top
	processedThisCycle map[string]struct{}
	// bookings that have reached a terminal status this run or a prior one
	processedThisSession map[string]struct{}
	// groups already confirmed fully scraped
	completeMJRs map[string]struct{}

	scrollAttempts    int
	consecutiveErrors int
}

// NewCrawler wires a crawler over an open device session and database.
func NewCrawler(cfg Config, ui *uiauto.Session, db *sql.DB, tracker *session.Tracker) *Crawler {
	return &Crawler{
		cfg:                  cfg,
		ui:                   ui,
		store:                store.NewStore(db),
		tracker:              tracker,
		parser:               parse.NewParser(cfg.LanguageAnchor),
		dumper:               dump.New(cfg.DumpDir),
		list:                 screens.NewListScreen(ui),
		secondary:            screens.NewSecondaryScreen(ui),
		detail:               screens.NewDetailScreen(ui),
		processedThisCycle:   map[string]struct{}{},
		processedThisSession: map[string]struct{}{},
		completeMJRs:         map[string]struct{}{},
	}
}

// Run executes the crawl until the list is exhausted, the context is
// cancelled, or too many steps fail in a row. The session tracker is
// finalized on every exit path.
func (c *Crawler) Run(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "Crawler.Run")
	defer span.End()

	defer func() {
		// an interrupted session stays 'running' so the next run resumes it
		if errors.Is(err, context.Canceled) {
			slog.InfoContext(ctx, "crawl interrupted, session left resumable",
				"session", c.tracker.SessionID())
			return
		}
		if finishErr := c.tracker.Finish(context.WithoutCancel(ctx), err); finishErr != nil {
			slog.ErrorContext(ctx, "could not finalize session", "error", finishErr)
		}
	}()

	processed, err := c.store.ProcessedBookingIDs(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	c.processedThisSession = processed
	slog.InfoContext(ctx, "starting crawl",
		"session", c.tracker.SessionID(),
		"resumed", c.tracker.Resumed(),
		"state", c.tracker.State(),
		"already_processed", len(processed),
	)

	for {
		if ctx.Err() != nil {
			err = ctx.Err()
			return err
		}

		state := c.tracker.State()
		var stepErr error
		switch state {
		case session.StateNavigatingToList:
			stepErr = c.navigateToList(ctx)
		case session.StateList:
			stepErr = c.processListCycle(ctx)
		case session.StateSecondary:
			stepErr = c.processSecondary(ctx)
		case session.StateDetail:
			stepErr = c.processDetail(ctx)
		case session.StateFinished:
			slog.InfoContext(ctx, "crawl finished",
				"scraped", c.tracker.TotalScraped(),
				"errors", c.tracker.TotalErrors(),
			)
			return nil
		case session.StateError:
			err = fmt.Errorf("crawl stopped in error state after %d errors", c.tracker.TotalErrors())
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		default:
			stepErr = c.tracker.SetState(ctx, session.StateNavigatingToList)
		}

		if stepErr != nil {
			c.consecutiveErrors++
			slog.ErrorContext(ctx, "crawl step failed",
				"state", state,
				"consecutive", c.consecutiveErrors,
				"error", stepErr,
			)
			if c.consecutiveErrors >= maxConsecutiveErrors {
				if serr := c.tracker.SetState(ctx, session.StateError,
					session.WithErrorMessage(stepErr.Error())); serr != nil {
					slog.ErrorContext(ctx, "could not record error state", "error", serr)
				}
				err = stepErr
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return err
			}
			if serr := c.tracker.SetState(ctx, session.StateNavigatingToList); serr != nil {
				err = serr
				return err
			}
		} else {
			c.consecutiveErrors = 0
		}

		// pacing between steps keeps the driver from racing animations
		sleep(ctx, 500*time.Millisecond)
	}
}

// navigateToList gets the app back onto the booking list, trying a single
// back press before giving up.
func (c *Crawler) navigateToList(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Crawler.navigateToList")
	defer span.End()

	if c.list.IsDisplayed(ctx, 10*time.Second) {
		return c.enterList(ctx)
	}

	slog.InfoContext(ctx, "list not visible, pressing back")
	if err := c.ui.Back(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("back navigation failed: %w", err)
	}
	if c.list.IsDisplayed(ctx, 5*time.Second) {
		return c.enterList(ctx)
	}

	err := fmt.Errorf("booking list did not appear")
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// enterList resets the per-view bookkeeping and moves to the list state.
// Entering from navigation means the list rendered fresh from the top, so
// the cycle set starts over.
func (c *Crawler) enterList(ctx context.Context) error {
	c.processedThisCycle = map[string]struct{}{}
	c.scrollAttempts = 0
	return c.tracker.SetState(ctx, session.StateList)
}

// markProcessed records a terminal decision for a booking in both tracking
// sets so neither this pass nor a later cycle revisits it.
func (c *Crawler) markProcessed(bookingID string) {
	c.processedThisCycle[bookingID] = struct{}{}
	c.processedThisSession[bookingID] = struct{}{}
}

// returnToList walks back from a deeper screen to the list. The first back
// press leaves the current screen, the second clears any intermediate view;
// a third is a last resort before declaring navigation lost.
func (c *Crawler) returnToList(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Crawler.returnToList")
	defer span.End()

	if err := c.ui.Back(ctx); err != nil {
		return err
	}
	sleep(ctx, 800*time.Millisecond)
	if c.list.IsDisplayed(ctx, 2*time.Second) {
		return c.tracker.SetState(ctx, session.StateList)
	}

	if err := c.ui.Back(ctx); err != nil {
		return err
	}
	sleep(ctx, 1200*time.Millisecond)
	if c.list.IsDisplayed(ctx, 5*time.Second) {
		return c.tracker.SetState(ctx, session.StateList)
	}

	if err := c.ui.Back(ctx); err != nil {
		return err
	}
	if c.list.IsDisplayed(ctx, 5*time.Second) {
		return c.tracker.SetState(ctx, session.StateList)
	}

	slog.WarnContext(ctx, "lost navigation while returning to list")
	return c.tracker.SetState(ctx, session.StateNavigatingToList)
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
