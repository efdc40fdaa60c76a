package parse

import (
	"context"
	"html"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// Canonical type-hint labels. The screen text varies slightly between app
// versions, so hints are matched by substring and snapped to one of these.
const (
	TypeFaceToFace  = "Face To Face"
	TypeVideoRemote = "Video Remote Interpreting"
	TypeRemote      = "Remote"
)

var (
	mjbIDRegex      = regexp.MustCompile(`Booking\s+#(MJB\d{8})`)
	mjrDescRegex    = regexp.MustCompile(`(MJR\d{8})[,\s]*(.*?)[,\s]*(?:Appointments\s*:\s*(\d+)|$)`)
	descAttrRegex   = regexp.MustCompile(`content-desc="([^"]*)"`)
	textAttrScanner = regexp.MustCompile(`text="([^"]*)"`)
)

// SecondaryInfo is everything the intermediate confirmation screen can tell
// us. MJRID is the caller's primary contract; the rest is independently
// optional.
type SecondaryInfo struct {
	MJBID                string
	MJRID                string
	TypeHint             string
	AppointmentCountHint int
}

func canonicalTypeHint(raw string) string {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, strings.ToLower(TypeFaceToFace)):
		return TypeFaceToFace
	case strings.Contains(lower, strings.ToLower(TypeVideoRemote)):
		return TypeVideoRemote
	case strings.Contains(lower, strings.ToLower(TypeRemote)):
		return TypeRemote
	default:
		return raw
	}
}

// Secondary scans the raw markup of the intermediate screen for the MJB
// identifier (in a text attribute) and the linked MJR identifier with its
// inline "type, Appointments : n" descriptor (in a content-desc attribute).
func Secondary(ctx context.Context, markup string) SecondaryInfo {
	info := SecondaryInfo{AppointmentCountHint: 1}

	for _, m := range descAttrRegex.FindAllStringSubmatch(markup, -1) {
		desc := strings.TrimSpace(html.UnescapeString(m[1]))
		dm := mjrDescRegex.FindStringSubmatch(desc)
		if dm == nil {
			continue
		}
		info.MJRID = dm[1]

		if hint := strings.Trim(dm[2], " ,"); hint != "" {
			info.TypeHint = canonicalTypeHint(hint)
		}

		if dm[3] == "" {
			slog.WarnContext(ctx, "no appointment count in descriptor, defaulting to 1",
				"mjr", info.MJRID)
		} else {
			n, err := strconv.Atoi(dm[3])
			if err != nil {
				slog.WarnContext(ctx, "unparseable appointment count, defaulting to 1",
					"raw", dm[3], "mjr", info.MJRID)
				n = 1
			}
			info.AppointmentCountHint = n
		}
		break
	}
	if info.MJRID == "" {
		slog.WarnContext(ctx, "no content descriptor carrying an mjr id was found")
	}

	for _, m := range textAttrScanner.FindAllStringSubmatch(markup, -1) {
		text := strings.TrimSpace(html.UnescapeString(m[1]))
		if bm := mjbIDRegex.FindStringSubmatch(text); bm != nil {
			info.MJBID = bm[1]
			break
		}
	}
	if info.MJBID == "" {
		slog.WarnContext(ctx, "no text fragment carrying an mjb id was found")
	}

	return info
}
