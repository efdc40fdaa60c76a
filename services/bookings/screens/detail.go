package screens

import (
	"context"
	"time"

	"wordsynk-backend/lib/uiauto"

	"go.opentelemetry.io/otel/codes"
)

// DetailScreen is the MJR group page holding the payment breakdown. Its
// content extends well below the fold, so callers scroll it in steps until
// the closing disclaimer appears.
type DetailScreen struct {
	session *uiauto.Session
}

func NewDetailScreen(session *uiauto.Session) DetailScreen {
	return DetailScreen{session: session}
}

// WaitDisplayed blocks until the MJR title renders or the timeout elapses.
func (d DetailScreen) WaitDisplayed(ctx context.Context, timeout time.Duration) error {
	_, err := d.session.WaitForElement(ctx, uiauto.ByUiAutomator, textStartsWith(detailTitlePrefix), timeout)
	return err
}

// DisclaimerVisible does a single cheap check for the acceptance disclaimer
// that closes every detail page.
func (d DetailScreen) DisclaimerVisible(ctx context.Context) bool {
	el, err := d.session.FindElement(ctx, uiauto.ByUiAutomator, textStartsWith(disclaimerPrefix))
	if err != nil {
		return false
	}
	displayed, err := el.Displayed(ctx)
	return err == nil && displayed
}

// Source returns the current page markup.
func (d DetailScreen) Source(ctx context.Context) (string, error) {
	return d.session.PageSource(ctx)
}

// ScrollDown swipes the middle band of the screen upward, advancing the
// content by roughly forty percent of the window height.
func (d DetailScreen) ScrollDown(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "DetailScreen.ScrollDown")
	defer span.End()

	win, err := d.session.WindowSize(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	area := uiauto.Rect{
		X:      win.Width / 4,
		Y:      int(float64(win.Height) * 0.3),
		Width:  win.Width / 2,
		Height: int(float64(win.Height) * 0.4),
	}
	if err := d.session.Swipe(ctx, area, "up", 0.75); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	sleep(ctx, time.Second)
	return nil
}
