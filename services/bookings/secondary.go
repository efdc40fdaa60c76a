package bookings

import (
	"context"
	"log/slog"
	"time"

	"wordsynk-backend/services/bookings/session"
	"wordsynk-backend/services/bookings/store"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// processSecondary reads the intermediate screen of the booking the tracker
// is holding, links the booking to its group, and clicks through to the
// group detail page. Every failure settles the booking with a specific
// error status and walks back to the list.
func (c *Crawler) processSecondary(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Crawler.processSecondary")
	defer span.End()

	bookingID := c.tracker.CurrentBookingID()
	span.SetAttributes(attribute.String("booking", bookingID))
	if bookingID == "" {
		slog.WarnContext(ctx, "secondary state with no current booking")
		return c.tracker.SetState(ctx, session.StateNavigatingToList)
	}

	if !c.secondary.IsDisplayed(ctx, 5*time.Second) {
		slog.WarnContext(ctx, "secondary screen did not appear", "booking", bookingID)
		return c.settleSecondary(ctx, bookingID, store.StatusErrorNavSecondary)
	}

	info, markup, err := c.secondary.Info(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	c.dumper.Save(ctx, "secondary", bookingID, "info", markup)

	if info.MJRID == "" {
		slog.WarnContext(ctx, "secondary screen carried no group reference",
			"booking", bookingID, "mjb", info.MJBID)
		return c.settleSecondary(ctx, bookingID, store.StatusErrorSecondaryInfo)
	}

	if err := c.store.UpdateSecondaryIDs(ctx, bookingID, info); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	// half-processed marker so a crash between here and the detail save
	// leaves the booking eligible for another visit
	if err := c.store.UpdateStatus(ctx, bookingID, store.StatusSecondaryProcessed); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	slog.InfoContext(ctx, "linked booking to group",
		"booking", bookingID, "mjb", info.MJBID, "mjr", info.MJRID,
		"type_hint", info.TypeHint, "count_hint", info.AppointmentCountHint)

	// the group may have been completed via a sibling day since the list
	// pass chose this card
	scraped, err := c.store.IsMJRFullyScraped(ctx, info.MJRID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if scraped {
		c.completeMJRs[info.MJRID] = struct{}{}
		slog.InfoContext(ctx, "group already complete, skipping detail",
			"booking", bookingID, "mjr", info.MJRID)
		return c.settleSecondary(ctx, bookingID, store.StatusScraped)
	}

	if err := c.secondary.ClickMJRLink(ctx, info.MJRID); err != nil {
		slog.WarnContext(ctx, "could not open group link",
			"booking", bookingID, "mjr", info.MJRID, "error", err)
		return c.settleSecondary(ctx, bookingID, store.StatusErrorClickMJR)
	}

	return c.tracker.SetState(ctx, session.StateDetail,
		session.WithBookingID(bookingID),
		session.WithMJRID(info.MJRID))
}

// settleSecondary stamps a terminal status for the booking and walks back
// to the list.
func (c *Crawler) settleSecondary(ctx context.Context, bookingID string, status store.Status) error {
	if err := c.store.UpdateStatus(ctx, bookingID, status); err != nil {
		return err
	}
	c.markProcessed(bookingID)
	if err := c.ui.Back(ctx); err != nil {
		return err
	}
	sleep(ctx, 800*time.Millisecond)
	if !c.list.IsDisplayed(ctx, 5*time.Second) {
		return c.tracker.SetState(ctx, session.StateNavigatingToList)
	}
	return c.tracker.SetState(ctx, session.StateList,
		session.WithLastProcessed(bookingID))
}
