package parse

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"wordsynk-backend/lib/textutil"
)

// CardStatus is the status of a booking as rendered on its list card.
type CardStatus string

const (
	CardNormal    CardStatus = "Normal"
	CardCancelled CardStatus = "Cancelled"
	CardNewOffer  CardStatus = "New Offer"
	CardViewed    CardStatus = "Viewed"
	CardUnknown   CardStatus = "Unknown"
)

var (
	mjaIDRegex     = regexp.MustCompile(`(MJA\d{8})`)
	timeRangeRegex = regexp.MustCompile(`(\d{1,2}:\d{2})\s*(?:to|-)\s*(\d{1,2}:\d{2})`)
)

// status prefixes appear verbatim at the head of a card descriptor.
var knownStatusPrefixes = []struct {
	prefix string
	status CardStatus
}{
	{"Cancelled,", CardCancelled},
	{"New Offer,", CardNewOffer},
	{"Viewed,", CardViewed},
}

// CardInfo is the parse of one list-card descriptor string.
type CardInfo struct {
	BookingID    string
	Status       CardStatus
	Postcode     string
	StartTimeRaw string
	EndTimeRaw   string
	Duration     string
	DurationRaw  string
	LanguagePair string
	Remote       bool
}

// Card parses a compound list-card descriptor. The day identifier is the
// only mandatory component: descriptors without one are not booking cards
// and return ok=false. Everything else is classified by shape over the
// comma-separated remainder.
func Card(ctx context.Context, desc string) (CardInfo, bool) {
	if desc == "" {
		return CardInfo{}, false
	}

	info := CardInfo{Status: CardNormal}
	remaining := desc
	for _, p := range knownStatusPrefixes {
		if strings.HasPrefix(remaining, p.prefix) {
			info.Status = p.status
			remaining = strings.TrimLeft(remaining[len(p.prefix):], " ,")
			break
		}
	}

	loc := mjaIDRegex.FindStringIndex(remaining)
	if loc == nil {
		slog.DebugContext(ctx, "descriptor has no booking id, not a card", "desc", desc)
		return CardInfo{}, false
	}
	info.BookingID = remaining[loc[0]:loc[1]]

	var parts []string
	for _, p := range strings.Split(strings.TrimLeft(remaining[loc[1]:], ", "), ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			parts = append(parts, p)
		}
	}

	claimed := make([]bool, len(parts))
	for i, part := range parts {
		if m := timeRangeRegex.FindStringSubmatch(part); m != nil {
			info.StartTimeRaw = m[1]
			info.EndTimeRaw = m[2]
			info.Duration = Duration(m[1], m[2])
			info.DurationRaw = m[1] + " to " + m[2]
			claimed[i] = true
			break
		}
	}
	for i, part := range parts {
		if claimed[i] {
			continue
		}
		if strings.EqualFold(part, "Remote") {
			info.Remote = true
			info.Postcode = ""
			claimed[i] = true
			break
		}
		if pc := textutil.SanitizePostcode(part); pc != "" {
			info.Postcode = pc
			info.Remote = false
			claimed[i] = true
			break
		}
	}

	// no postcode and no explicit "Remote" token: absence of a location is
	// evidence of a remote booking, not an error
	if info.Postcode == "" && !info.Remote {
		info.Remote = true
	}

	var leftovers []string
	for i, part := range parts {
		if !claimed[i] {
			leftovers = append(leftovers, part)
		}
	}
	if len(leftovers) > 0 {
		info.LanguagePair = leftovers[len(leftovers)-1]
		if len(leftovers) > 1 {
			slog.WarnContext(ctx, "multiple unclassified card fields, using last for language",
				"booking", info.BookingID, "unclassified", leftovers[:len(leftovers)-1])
		}
	}

	return info, true
}
