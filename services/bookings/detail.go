package bookings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"wordsynk-backend/lib/textutil"
	"wordsynk-backend/services/bookings/parse"
	"wordsynk-backend/services/bookings/session"
	"wordsynk-backend/services/bookings/store"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// maxDetailScrolls bounds the scroll loop on pathological pages
	maxDetailScrolls = 7
	// maxScrapeAttempts is how many detail visits a booking gets before
	// its extraction failure becomes terminal
	maxScrapeAttempts = 3
)

// processDetail extracts the group detail page for the booking the tracker
// is holding and persists one row per appointment day. Header and venue
// material come from the initial view; payment blocks accumulate across
// scrolls; the notes and total come from the final view.
func (c *Crawler) processDetail(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Crawler.processDetail")
	defer span.End()

	bookingID := c.tracker.CurrentBookingID()
	span.SetAttributes(attribute.String("booking", bookingID))
	if bookingID == "" {
		slog.WarnContext(ctx, "detail state with no current booking")
		return c.tracker.SetState(ctx, session.StateNavigatingToList)
	}

	attempt, err := c.store.IncrementScrapeAttempt(ctx, bookingID)
	if err != nil {
		return err
	}
	c.tracker.IncrementAttempt()
	span.SetAttributes(attribute.Int("attempt", attempt))

	if err := c.detail.WaitDisplayed(ctx, 10*time.Second); err != nil {
		slog.WarnContext(ctx, "detail screen did not appear", "booking", bookingID)
		if uerr := c.store.UpdateStatus(ctx, bookingID, store.StatusErrorNavDetail); uerr != nil {
			return uerr
		}
		c.markProcessed(bookingID)
		return c.tracker.SetState(ctx, session.StateNavigatingToList)
	}

	detail, err := c.extractDetail(ctx, bookingID)
	if err != nil {
		return c.settleDetailFailure(ctx, bookingID, attempt, err)
	}

	mjrID := c.tracker.CurrentMJRID()
	if mjrID == "" {
		mjrID = detail.MJRID
	}
	if mjrID == "" {
		return c.settleDetailFailure(ctx, bookingID, attempt, parse.ErrGroupIDMissing)
	}

	// a multiday screen without a single payment block has nothing to
	// persist; settling it as scraped would lose the group silently
	if detail.Multiday && len(detail.Days) == 0 {
		return c.settleDetailFailure(ctx, bookingID, attempt, parse.ErrPaymentBlocksMissing)
	}

	if err := c.saveDetail(ctx, bookingID, mjrID, attempt, detail); err != nil {
		slog.ErrorContext(ctx, "could not save booking details",
			"booking", bookingID, "mjr", mjrID, "error", err)
		if uerr := c.store.UpdateStatus(ctx, bookingID, store.StatusErrorSave); uerr != nil {
			return uerr
		}
		c.markProcessed(bookingID)
		return c.returnToList(ctx)
	}

	if err := c.tracker.RecordScraped(ctx); err != nil {
		return err
	}
	if err := c.tracker.SetState(ctx, session.StateList,
		session.WithLastProcessed(bookingID),
		session.WithBookingID(""),
		session.WithMJRID(""),
	); err != nil {
		return err
	}
	return c.returnToList(ctx)
}

// extractDetail runs the staged parse over the scrolling page. It returns
// the parse anchor errors unwrapped so the caller can distinguish a broken
// page from a broken driver.
func (c *Crawler) extractDetail(ctx context.Context, bookingID string) (parse.Detail, error) {
	ctx, span := tracer.Start(ctx, "Crawler.extractDetail")
	defer span.End()

	source, err := c.detail.Source(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return parse.Detail{}, err
	}
	c.dumper.Save(ctx, "detail", bookingID, "initial", source)

	frags := textutil.Fragments(source)
	header, multiday, langIdx := c.parser.Header(ctx, frags)
	if langIdx < 0 {
		return parse.Detail{}, parse.ErrAnchorMissing
	}
	info := c.parser.InfoBlock(ctx, frags, langIdx)

	// payment blocks slide through the viewport; keep the first sighting
	// of each day and scroll until the disclaimer or a dead view
	seen := map[string]struct{}{}
	var blocks []parse.PaymentBlock
	collect := func(frags []string) bool {
		added := false
		for _, b := range c.parser.PaymentBlocks(ctx, frags) {
			if _, ok := seen[b.MJAID]; ok {
				continue
			}
			seen[b.MJAID] = struct{}{}
			blocks = append(blocks, b)
			added = true
		}
		return added
	}
	collect(frags)

	lastSource := source
	for i := 0; i < maxDetailScrolls; i++ {
		if c.detail.DisclaimerVisible(ctx) {
			break
		}
		if err := c.detail.ScrollDown(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return parse.Detail{}, err
		}
		source, err = c.detail.Source(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return parse.Detail{}, err
		}
		c.dumper.Save(ctx, "detail", bookingID, fmt.Sprintf("scroll_%02d", i+1), source)
		frags = textutil.Fragments(source)
		added := collect(frags)
		if !added && source == lastSource {
			break
		}
		lastSource = source
	}

	notes, totalRaw := c.parser.NotesTotal(ctx, frags)
	detail := c.parser.Consolidate(ctx, header, multiday, info, blocks, notes, totalRaw)
	span.SetAttributes(
		attribute.Bool("multiday", detail.Multiday),
		attribute.Int("payment_blocks", len(blocks)),
	)
	return detail, nil
}

// saveDetail persists the consolidated parse: one row for a single-day
// booking, one row per sibling day plus the group header for a multiday.
func (c *Crawler) saveDetail(ctx context.Context, bookingID, mjrID string, attempt int, d parse.Detail) error {
	ctx, span := tracer.Start(ctx, "Crawler.saveDetail")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking", bookingID),
		attribute.String("mjr", mjrID),
	)

	cc, err := c.store.CardContextForBooking(ctx, bookingID)
	if err != nil {
		return err
	}

	if !d.Multiday {
		// the payment block's own identifier wins over the clicked card's
		dayID := d.MJAID
		if dayID == "" {
			dayID = bookingID
		}
		rec := c.detailRecord(dayID, mjrID, attempt, cc, d)
		rec.AppointmentSequence = 1
		rec.BookingDate = d.BookingDate
		rec.StartTime = d.StartTime
		rec.EndTime = d.EndTime
		rec.Duration = d.Duration
		rec.Payments = d.Payments
		rec.DayTotal = d.DayTotal
		if err := c.store.SaveBookingDetails(ctx, rec); err != nil {
			return err
		}
		c.markProcessed(dayID)
		c.markProcessed(bookingID)
		slog.InfoContext(ctx, "scraped booking",
			"booking", dayID, "mjr", mjrID, "total", fmtMoney(d.DayTotal))
		return nil
	}

	// the hints from this booking's secondary pass describe the whole
	// group; push them to sibling rows before the per-day saves
	if cc.AppointmentCountHint > 0 || cc.TypeHint != "" {
		if err := c.store.UpdateHintsForMJR(ctx, mjrID, cc.AppointmentCountHint, cc.TypeHint); err != nil {
			return err
		}
	}
	if hints, ok, err := c.store.SecondaryHintsForMJR(ctx, mjrID); err != nil {
		return err
	} else if ok {
		cc.AppointmentCountHint = hints.AppointmentCount
		cc.TypeHint = hints.TypeHint
	}

	if err := c.store.UpsertMultidayHeader(ctx, mjrID,
		d.DateRange, d.AppointmentInfo, d.OverallTotal, d.HeaderTotal); err != nil {
		return err
	}

	sawCurrent := false
	for i, day := range d.Days {
		dayID := day.MJAID
		if dayID == "" {
			continue
		}
		dayCC := cc
		if dayID != bookingID {
			sibling, err := c.store.CardContextForBooking(ctx, dayID)
			if err != nil {
				return err
			}
			// group-wide hints still apply to days never seen on the list
			sibling.AppointmentCountHint = cc.AppointmentCountHint
			sibling.TypeHint = cc.TypeHint
			dayCC = sibling
		} else {
			sawCurrent = true
		}

		rec := c.detailRecord(dayID, mjrID, attempt, dayCC, d)
		rec.AppointmentSequence = i + 1
		rec.BookingDate = day.BookingDate
		rec.Payments = day.Payments
		rec.DayTotal = d.DayTotal
		if err := c.store.SaveBookingDetails(ctx, rec); err != nil {
			return err
		}
		c.markProcessed(dayID)
	}

	// the clicked booking's block can scroll past undetected; settle it
	// anyway so the list does not loop on it
	if !sawCurrent {
		slog.WarnContext(ctx, "clicked booking missing from payment blocks",
			"booking", bookingID, "mjr", mjrID, "days", len(d.Days))
		rec := c.detailRecord(bookingID, mjrID, attempt, cc, d)
		rec.DayTotal = d.DayTotal
		if err := c.store.SaveBookingDetails(ctx, rec); err != nil {
			return err
		}
		c.markProcessed(bookingID)
	}

	if scraped, err := c.store.IsMJRFullyScraped(ctx, mjrID); err != nil {
		return err
	} else if scraped {
		c.completeMJRs[mjrID] = struct{}{}
	}
	slog.InfoContext(ctx, "scraped multiday group",
		"booking", bookingID, "mjr", mjrID,
		"days", len(d.Days), "overall", fmtMoney(d.OverallTotal))
	return nil
}

// detailRecord builds the shared portion of a per-day record.
func (c *Crawler) detailRecord(dayID, mjrID string, attempt int, cc store.CardContext, d parse.Detail) store.DetailRecord {
	return store.DetailRecord{
		BookingID:    dayID,
		MJRID:        mjrID,
		CreationID:   cc.CreationID,
		ProcessingID: cc.ProcessingID,
		CardStatus:   cc.CardStatus,

		Multiday:             d.Multiday,
		AppointmentCountHint: cc.AppointmentCountHint,
		TypeHint:             cc.TypeHint,

		LanguagePair:   d.LanguagePair,
		ClientName:     d.ClientName,
		Address:        d.Address,
		BookingType:    d.BookingType,
		ContactName:    d.ContactName,
		ContactPhone:   d.ContactPhone,
		TravelDistance: d.TravelDistance,
		MeetingLink:    d.MeetingLink,

		Notes:    d.Notes,
		Postcode: cc.Postcode,
		Remote:   cc.Remote,

		ScrapeAttempt: attempt,
		Status:        store.StatusScraped,
	}
}

// settleDetailFailure records an extraction failure. Early attempts leave
// the booking pending so the list retries it; the final attempt stamps it
// as a terminal extraction error.
func (c *Crawler) settleDetailFailure(ctx context.Context, bookingID string, attempt int, cause error) error {
	slog.WarnContext(ctx, "detail extraction failed",
		"booking", bookingID, "attempt", attempt, "error", cause)

	pageProblem := errors.Is(cause, parse.ErrAnchorMissing) ||
		errors.Is(cause, parse.ErrGroupIDMissing) ||
		errors.Is(cause, parse.ErrPaymentBlocksMissing)
	if !pageProblem && attempt >= maxScrapeAttempts {
		// repeated driver failures are a crawl problem, not a page problem
		return cause
	}

	if attempt >= maxScrapeAttempts {
		if err := c.store.UpdateStatus(ctx, bookingID, store.StatusErrorDetailExtract); err != nil {
			return err
		}
		c.markProcessed(bookingID)
	}
	return c.returnToList(ctx)
}

func fmtMoney(f *float64) string {
	if f == nil {
		return "?"
	}
	return fmt.Sprintf("%.2f", *f)
}
