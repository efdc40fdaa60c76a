package bookings

import (
	"context"
	"log/slog"
	"time"

	"wordsynk-backend/services/bookings/parse"
	"wordsynk-backend/services/bookings/session"
	"wordsynk-backend/services/bookings/store"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// maxScrollAttempts is how many consecutive scrolls may yield nothing new
// before the list is considered exhausted.
const maxScrollAttempts = 3

// processListCycle reads the cards currently on screen, settles every card
// that can be settled from the list alone, and opens the first booking that
// needs a deeper visit. When nothing on screen needs work it scrolls, and
// when scrolling stops producing new cards the crawl is done.
func (c *Crawler) processListCycle(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Crawler.processListCycle")
	defer span.End()

	if !c.list.IsDisplayed(ctx, 5*time.Second) {
		return c.tracker.SetState(ctx, session.StateNavigatingToList)
	}

	cards, markup, err := c.list.Cards(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(attribute.Int("cards", len(cards)))

	var lastSeen string
	for _, card := range cards {
		lastSeen = card.BookingID
		if _, done := c.processedThisCycle[card.BookingID]; done {
			continue
		}

		if _, err := c.store.InsertBookingBase(ctx, card); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		// cancelled and offer/viewed cards are settled by the insert alone
		if status := store.StatusForCard(card.Status); status != store.StatusPending {
			slog.InfoContext(ctx, "card settled from list",
				"booking", card.BookingID, "status", status)
			c.markProcessed(card.BookingID)
			continue
		}

		if _, done := c.processedThisSession[card.BookingID]; done {
			c.processedThisCycle[card.BookingID] = struct{}{}
			continue
		}

		done, err := c.settleFromKnownGroup(ctx, card)
		if err != nil {
			return err
		}
		if done {
			continue
		}

		// found work; a productive view resets the exhaustion counter
		c.scrollAttempts = 0
		return c.openCard(ctx, card, markup)
	}

	c.scrollAttempts++
	if c.scrollAttempts > maxScrollAttempts {
		slog.InfoContext(ctx, "list exhausted", "scrolls_without_work", c.scrollAttempts-1)
		return c.tracker.SetState(ctx, session.StateFinished)
	}
	slog.DebugContext(ctx, "no workable cards on screen, scrolling",
		"attempt", c.scrollAttempts, "anchor", lastSeen)
	if err := c.list.Scroll(ctx, lastSeen); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// settleFromKnownGroup marks a booking scraped without opening it when its
// group is already known to be complete from earlier visits.
func (c *Crawler) settleFromKnownGroup(ctx context.Context, card parse.CardInfo) (bool, error) {
	mjrID, err := c.store.MJRForBooking(ctx, card.BookingID)
	if err != nil || mjrID == "" {
		return false, err
	}

	if _, complete := c.completeMJRs[mjrID]; !complete {
		scraped, err := c.store.IsMJRFullyScraped(ctx, mjrID)
		if err != nil {
			return false, err
		}
		if !scraped {
			return false, nil
		}
		c.completeMJRs[mjrID] = struct{}{}
	}

	slog.InfoContext(ctx, "booking covered by completed group",
		"booking", card.BookingID, "mjr", mjrID)
	if err := c.store.UpdateStatus(ctx, card.BookingID, store.StatusScraped); err != nil {
		return false, err
	}
	c.markProcessed(card.BookingID)
	return true, nil
}

// openCard taps a card and hands off to the secondary state. A failed tap
// settles the booking as a list error so the cycle moves on.
func (c *Crawler) openCard(ctx context.Context, card parse.CardInfo, markup string) error {
	ctx, span := tracer.Start(ctx, "Crawler.openCard")
	defer span.End()
	span.SetAttributes(attribute.String("booking", card.BookingID))

	if el, err := c.list.CardElement(ctx, card.BookingID); err == nil {
		if clickable, _ := c.list.ClickableCard(ctx, el); !clickable {
			// partially rendered at a screen edge; scroll it into the
			// comfortable band and try again next iteration
			slog.DebugContext(ctx, "card not comfortably tappable, scrolling",
				"booking", card.BookingID)
			return c.list.Scroll(ctx, card.BookingID)
		}
	}

	c.dumper.Save(ctx, "list", card.BookingID, "before_click", markup)

	slog.InfoContext(ctx, "opening booking", "booking", card.BookingID, "status", card.Status)
	if err := c.list.ClickCard(ctx, card.BookingID); err != nil {
		span.RecordError(err)
		slog.WarnContext(ctx, "could not open card", "booking", card.BookingID, "error", err)
		if uerr := c.store.UpdateStatus(ctx, card.BookingID, store.StatusErrorList); uerr != nil {
			return uerr
		}
		c.markProcessed(card.BookingID)
		return nil
	}

	return c.tracker.SetState(ctx, session.StateSecondary,
		session.WithBookingID(card.BookingID))
}
