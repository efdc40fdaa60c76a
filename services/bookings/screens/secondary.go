package screens

import (
	"context"
	"fmt"
	"time"

	"wordsynk-backend/lib/uiauto"
	"wordsynk-backend/services/bookings/parse"

	"go.opentelemetry.io/otel/codes"
)

// SecondaryScreen is the intermediate booking view titled with an MJB
// reference. It links each appointment to its MJR group page.
type SecondaryScreen struct {
	session *uiauto.Session
}

func NewSecondaryScreen(session *uiauto.Session) SecondaryScreen {
	return SecondaryScreen{session: session}
}

// IsDisplayed reports whether the MJB title is on screen within the timeout.
func (s SecondaryScreen) IsDisplayed(ctx context.Context, timeout time.Duration) bool {
	_, err := s.session.WaitForElement(ctx, uiauto.ByUiAutomator, textStartsWith(secondaryTitlePrefix), timeout)
	return err == nil
}

// Info extracts the identifiers from the current page, returning the raw
// markup alongside for dumping.
func (s SecondaryScreen) Info(ctx context.Context) (parse.SecondaryInfo, string, error) {
	ctx, span := tracer.Start(ctx, "SecondaryScreen.Info")
	defer span.End()

	source, err := s.session.PageSource(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return parse.SecondaryInfo{}, "", err
	}
	info := parse.Secondary(ctx, source)
	return info, source, nil
}

// ClickMJRLink taps the element whose descriptor starts with the MJR
// reference, opening the detail screen.
func (s SecondaryScreen) ClickMJRLink(ctx context.Context, mjrID string) error {
	ctx, span := tracer.Start(ctx, "SecondaryScreen.ClickMJRLink")
	defer span.End()

	selector := fmt.Sprintf(`//android.view.ViewGroup[@content-desc and starts-with(@content-desc, "%s")]`, mjrID)
	el, err := s.session.WaitForElement(ctx, uiauto.ByXPath, selector, 7*time.Second)
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
	sleep(ctx, 1500*time.Millisecond)
	return nil
}
