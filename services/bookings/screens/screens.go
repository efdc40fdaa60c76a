// Package screens wraps the three app screens the crawler walks through.
// Each screen knows how to recognize itself, pull its markup, and perform
// the gestures the crawler needs; interpretation of the markup lives in the
// parse package.
package screens

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("wordsynk.services.bookings.screens")

const (
	listContainerClass   = "androidx.recyclerview.widget.RecyclerView"
	secondaryTitlePrefix = "Booking #MJB"
	detailTitlePrefix    = "Booking #MJR"
	disclaimerPrefix     = "By accepting this assignment"
)

// cardXPath locates a card element by the booking id inside its descriptor,
// regardless of any status prefix in front of it.
func cardXPath(bookingID string) string {
	return fmt.Sprintf(`//android.view.ViewGroup[@content-desc and contains(@content-desc, "%s")]`, bookingID)
}

func textStartsWith(prefix string) string {
	return fmt.Sprintf(`new UiSelector().textStartsWith("%s")`, prefix)
}

// sleep waits without outliving the context. Screen transitions have no
// completion signal, so fixed settle times are unavoidable.
func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
