package screens

import (
	"context"
	"strings"
	"time"

	"wordsynk-backend/lib/uiauto"
	"wordsynk-backend/services/bookings/parse"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

// ListScreen is the scrollable list of booking cards. Each card carries its
// whole text as a single content-desc attribute on a ViewGroup.
type ListScreen struct {
	session *uiauto.Session
}

func NewListScreen(session *uiauto.Session) ListScreen {
	return ListScreen{session: session}
}

// IsDisplayed reports whether the list container is on screen within the
// given timeout.
func (l ListScreen) IsDisplayed(ctx context.Context, timeout time.Duration) bool {
	_, err := l.session.WaitForElement(ctx, uiauto.ByClassName, listContainerClass, timeout)
	return err == nil
}

// Cards returns the booking cards currently rendered, in document order,
// along with the raw page source they were parsed from.
func (l ListScreen) Cards(ctx context.Context) ([]parse.CardInfo, string, error) {
	ctx, span := tracer.Start(ctx, "ListScreen.Cards")
	defer span.End()

	source, err := l.session.PageSource(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, source, err
	}

	var cards []parse.CardInfo
	doc.Find("[content-desc]").Each(func(_ int, sel *goquery.Selection) {
		if goquery.NodeName(sel) != "android.view.viewgroup" {
			return
		}
		desc, _ := sel.Attr("content-desc")
		if desc == "" {
			return
		}
		card, ok := parse.Card(ctx, desc)
		if !ok {
			return
		}
		cards = append(cards, card)
	})
	return cards, source, nil
}

// CardElement locates the on-screen element for a booking id. The card must
// already be rendered; callers scroll first if it is not.
func (l ListScreen) CardElement(ctx context.Context, bookingID string) (uiauto.Element, error) {
	return l.session.WaitForElement(ctx, uiauto.ByXPath, cardXPath(bookingID), 2*time.Second)
}

// ClickableCard reports whether the element is far enough from the screen
// edges that a tap will land on it rather than on a half-rendered row.
func (l ListScreen) ClickableCard(ctx context.Context, el uiauto.Element) (bool, error) {
	displayed, err := el.Displayed(ctx)
	if err != nil || !displayed {
		return false, err
	}
	rect, err := el.Rect(ctx)
	if err != nil {
		return false, err
	}
	win, err := l.session.WindowSize(ctx)
	if err != nil {
		return false, err
	}
	top := int(float64(win.Height) * 0.15)
	bottom := int(float64(win.Height) * 0.85)
	return rect.Y >= top && rect.Y+rect.Height <= bottom, nil
}

// ClickCard taps the card for the given booking id.
func (l ListScreen) ClickCard(ctx context.Context, bookingID string) error {
	ctx, span := tracer.Start(ctx, "ListScreen.ClickCard")
	defer span.End()

	el, err := l.session.WaitForElement(ctx, uiauto.ByXPath, cardXPath(bookingID), 5*time.Second)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if err := el.Click(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	sleep(ctx, time.Second)
	return nil
}

// Scroll advances the list by roughly half a screen. It prefers scrolling
// the anchor card's own container, falls back to the list container, and
// finally to a raw coordinate gesture when neither element cooperates.
func (l ListScreen) Scroll(ctx context.Context, anchorBookingID string) error {
	ctx, span := tracer.Start(ctx, "ListScreen.Scroll")
	defer span.End()

	scrolled := false
	if anchorBookingID != "" {
		if el, err := l.session.WaitForElement(ctx, uiauto.ByXPath, cardXPath(anchorBookingID), 2*time.Second); err == nil {
			if err := l.session.ScrollElement(ctx, el, "down", 0.6); err == nil {
				scrolled = true
			}
		}
	}
	if !scrolled {
		if el, err := l.session.FindElement(ctx, uiauto.ByClassName, listContainerClass); err == nil {
			if err := l.session.ScrollElement(ctx, el, "down", 0.6); err == nil {
				scrolled = true
			}
		}
	}
	if !scrolled {
		win, err := l.session.WindowSize(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		area := uiauto.Rect{
			X:      win.Width / 2,
			Y:      int(float64(win.Height) * 0.7),
			Width:  1,
			Height: int(float64(win.Height) * 0.4),
		}
		if err := l.session.ScrollArea(ctx, area, "down", 1.0); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}
	sleep(ctx, time.Second)
	return nil
}
