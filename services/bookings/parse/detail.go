package parse

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"wordsynk-backend/lib/textutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("wordsynk.services.bookings.parse")

// Fragments the detail screen renders verbatim. None of them are field
// labels in the usual sense; the parser keys off them positionally.
const (
	multidayMarker   = "Multiday"
	meetingLinkLabel = "Meeting Link"
	serviceLineLabel = "Service Line Item"
	totalLabel       = "TOTAL"
	disclaimerPrefix = "By accepting this assignment"

	defaultLanguageAnchor = "English to Polish"
)

var (
	mjrTitleRegex   = regexp.MustCompile(`Booking\s+#(MJR\d{8})`)
	mjaRefRegex     = regexp.MustCompile(`^MJA\d{8}`)
	distanceRegex   = regexp.MustCompile(`([\d.]+)\s+Miles`)
	phoneRegex      = regexp.MustCompile(`^(\+?44\s?\d{2,4}\s?\d{2,4}\s?\d{2,4}|\+?44\s?\d{3,5}\s?\d{3,5}|0\d{4}\s?\d{6}|0\d{3,5}\s?\d{3,5}\s?\d{0,3})$`)
	datePartRegex   = regexp.MustCompile(`^(\d{2}-\d{2}-\d{4})\s+At$`)
	timePartRegex   = regexp.MustCompile(`^(\d{1,2}:\d{2})\s*-\s*(\d{1,2}:\d{2})$`)
	meetingURLRegex = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b|\bhttps?://\S+`)
	apptCountRegex  = regexp.MustCompile(`(\d+)\s+Appointments\s*/\s*(\d+)\s+Days`)
)

// fragments that terminate the info block.
var infoBlockTerminators = map[string]bool{
	"Timesheets Download": true,
	"Open Directions":     true,
	serviceLineLabel:      true,
}

// exact payment labels; urgency and out-of-hours vary in wording and are
// matched by substring instead.
var paymentLabels = map[string]string{
	"service line item":              "sl",
	"travel distance line item":      "td",
	"travel time line item":          "tt",
	"automation enhancement payment": "aep",
}

const (
	urgencySubstring = "urgency"
	oohSubstring     = "uplift"
)

var (
	// ErrAnchorMissing reports that the language-pair anchor fragment was not
	// found; without it the info block cannot be scoped, which is fatal for
	// the whole detail parse.
	ErrAnchorMissing = errors.New("language anchor fragment not found")
	// ErrGroupIDMissing reports that no MJR group identifier could be
	// recovered for the screen.
	ErrGroupIDMissing = errors.New("mjr group identifier not found")
	// ErrPaymentBlocksMissing reports a multiday screen that yielded no
	// per-day payment sections, leaving nothing to persist for the group.
	ErrPaymentBlocksMissing = errors.New("no payment blocks found on multiday screen")
)

// Parser parses detail screens. The language anchor is the exact
// language-pair fragment the account's bookings render, e.g.
// "English to Polish"; it scopes the info block.
type Parser struct {
	LanguageAnchor string
}

func NewParser(languageAnchor string) *Parser {
	if languageAnchor == "" {
		languageAnchor = defaultLanguageAnchor
	}
	return &Parser{LanguageAnchor: languageAnchor}
}

// DetailHeader is the raw header material of a detail screen.
type DetailHeader struct {
	MJRID          string
	HeaderTotalRaw string
	// single-day two-line date/time idiom
	DatePartRaw string
	TimePartRaw string
	// multiday
	DateRangeRaw       string
	AppointmentInfoRaw string
}

// Header locates the title, header total and the date material, and reports
// whether the screen is a multiday booking and where the language anchor
// sits (-1 when absent).
func (p *Parser) Header(ctx context.Context, frags []string) (DetailHeader, bool, int) {
	ctx, span := tracer.Start(ctx, "Header")
	defer span.End()

	var header DetailHeader
	mjrIdx, multidayIdx, langIdx := -1, -1, -1
	for i, t := range frags {
		if mjrIdx == -1 && strings.HasPrefix(t, "Booking #MJR") {
			mjrIdx = i
		}
		if multidayIdx == -1 && t == multidayMarker {
			multidayIdx = i
		}
		if langIdx == -1 && t == p.LanguageAnchor {
			langIdx = i
		}
	}

	if mjrIdx != -1 {
		if m := mjrTitleRegex.FindStringSubmatch(frags[mjrIdx]); m != nil {
			header.MJRID = m[1]
		} else {
			header.MJRID = frags[mjrIdx]
		}
	}

	for i, t := range frags {
		if strings.HasPrefix(t, "£") && (langIdx == -1 || i < langIdx) {
			header.HeaderTotalRaw = t
			break
		}
	}

	multiday := multidayIdx != -1
	if multiday {
		if multidayIdx+2 < len(frags) && (langIdx == -1 || multidayIdx < langIdx) {
			header.DateRangeRaw = frags[multidayIdx+1]
			header.AppointmentInfoRaw = frags[multidayIdx+2]
		}
	} else {
		// the single-day date/time is rendered as two consecutive fragments:
		// "<DD-MM-YYYY> At" then "<HH:MM> - <HH:MM>", anywhere in the stream
		for i, t := range frags {
			if datePartRegex.MatchString(t) && i+1 < len(frags) && timePartRegex.MatchString(frags[i+1]) {
				header.DatePartRaw = t
				header.TimePartRaw = frags[i+1]
				break
			}
		}
		if header.DatePartRaw == "" {
			slog.DebugContext(ctx, "no two-line single day date/time found")
		}
	}

	span.SetAttributes(
		attribute.String("mjr", header.MJRID),
		attribute.Bool("multiday", multiday),
		attribute.Int("lang_idx", langIdx),
	)
	return header, multiday, langIdx
}

// InfoBlock is the contact/location section between the language anchor and
// the first payment identifier. Every field is optional.
type InfoBlock struct {
	LanguagePair string
	ClientName   string
	AddressLine1 string
	AddressLine2 string
	BookingType  string
	ContactName  string
	ContactPhone string
	DistanceRaw  string
	MeetingLink  string
}

var streetKeywords = []string{"street", "road", "court", "house", "centre", "lane", "building", "floor"}

// hasStreetShape reports whether a fragment reads like the venue line of a
// UK address: a street keyword without any of the shapes claimed by other
// fields.
func hasStreetShape(s string) bool {
	lower := strings.ToLower(s)
	keyword := false
	for _, kw := range streetKeywords {
		if strings.Contains(lower, kw) {
			keyword = true
			break
		}
	}
	return keyword &&
		!strings.Contains(s, "|") &&
		!distanceRegex.MatchString(s) &&
		!phoneRegex.MatchString(s) &&
		s != meetingLinkLabel
}

// InfoBlock greedily assigns the fragments after the language anchor to
// fields using an ordered list of shape rules. The boundary is heuristic:
// anything left unassigned is surfaced in the log rather than swallowed.
func (p *Parser) InfoBlock(ctx context.Context, frags []string, langIdx int) InfoBlock {
	ctx, span := tracer.Start(ctx, "InfoBlock")
	defer span.End()

	var info InfoBlock
	if langIdx < 0 || langIdx >= len(frags) {
		slog.ErrorContext(ctx, "invalid language anchor index", "idx", langIdx)
		return info
	}
	info.LanguagePair = frags[langIdx]

	end := len(frags)
	for i := langIdx + 1; i < len(frags); i++ {
		if mjaRefRegex.MatchString(frags[i]) || infoBlockTerminators[frags[i]] {
			end = i
			break
		}
	}
	window := frags[langIdx+1 : end]
	span.SetAttributes(attribute.Int("window", len(window)))

	ptr := 0
	if ptr < len(window) {
		c := window[ptr]
		if c != meetingLinkLabel && !distanceRegex.MatchString(c) && !strings.Contains(c, "|") {
			info.ClientName = c
			ptr++
		}
	}

	if ptr < len(window) && window[ptr] == meetingLinkLabel {
		ptr++
		if ptr < len(window) && meetingURLRegex.MatchString(window[ptr]) {
			info.MeetingLink = window[ptr]
			ptr++
		}
	}

	var addr1, addr2 string
	if ptr < len(window) {
		addr1 = window[ptr]
	}
	if ptr+1 < len(window) {
		addr2 = window[ptr+1]
	}
	switch {
	// line 2 carries the postcode, or line 1 is unmistakably a venue
	case addr1 != "" && addr2 != "" && (textutil.SanitizePostcode(addr2) != "" || hasStreetShape(addr1)):
		info.AddressLine1 = addr1
		info.AddressLine2 = addr2
		ptr += 2
	case addr1 != "" && (textutil.SanitizePostcode(addr1) != "" || hasStreetShape(addr1)):
		info.AddressLine1 = addr1
		ptr++
	}
	addressFound := info.AddressLine1 != ""

	if ptr < len(window) {
		c := window[ptr]
		// pipe-delimited is the definitive booking-type shape; otherwise the
		// slot is claimed when no address or meeting link preceded it
		if strings.Contains(c, "|") ||
			(!addressFound && info.MeetingLink == "" && !phoneRegex.MatchString(c) && !distanceRegex.MatchString(c)) {
			info.BookingType = c
			ptr++
		}
	}

	if ptr < len(window) {
		c := window[ptr]
		if !phoneRegex.MatchString(c) && !distanceRegex.MatchString(c) && !strings.Contains(c, "|") {
			info.ContactName = c
			ptr++
		}
	}

	if ptr < len(window) {
		c := window[ptr]
		if !distanceRegex.MatchString(c) {
			info.ContactPhone = c
			ptr++
		}
	}

	if ptr < len(window) && distanceRegex.MatchString(window[ptr]) {
		info.DistanceRaw = window[ptr]
		ptr++
	}

	if ptr < len(window) {
		slog.WarnContext(ctx, "unassigned info block fragments", "fragments", window[ptr:])
	}

	info.ContactName = scrubPlaceholder(info.ContactName)
	info.ContactPhone = scrubPlaceholder(info.ContactPhone)
	return info
}

func scrubPlaceholder(v string) string {
	lower := strings.ToLower(v)
	if strings.Contains(lower, "undefined") || strings.TrimSpace(v) == "0" || strings.TrimSpace(lower) == "null" {
		return ""
	}
	return v
}

// PaymentBlock is the raw (label, £value) pairs of one day's payment
// section. MJAID is empty for the implicit single-day block.
type PaymentBlock struct {
	MJAID string
	Raw   map[string]string // component key -> raw money fragment
}

func consumePaymentPairs(frags []string, start, end int, raw map[string]string) {
	idx := start
	for idx < end {
		if idx+1 >= end {
			idx++
			continue
		}
		label := strings.ToLower(frags[idx])
		value := frags[idx+1]
		if strings.HasPrefix(value, "£") {
			if key, ok := paymentLabels[label]; ok {
				raw[key] = value
			} else if strings.Contains(label, urgencySubstring) {
				raw["urg"] = value
			} else if strings.Contains(label, oohSubstring) {
				if _, seen := raw["ooh"]; !seen {
					raw["ooh"] = value
				}
			}
		}
		idx += 2
	}
}

// PaymentBlocks extracts per-day payment sections. Each day identifier
// fragment opens a block running to the next identifier, a TOTAL label, or
// the end of the stream. A stream without identifiers is the single-day
// topology: the service-line anchor onward forms one implicit block.
func (p *Parser) PaymentBlocks(ctx context.Context, frags []string) []PaymentBlock {
	ctx, span := tracer.Start(ctx, "PaymentBlocks")
	defer span.End()

	var mjaIndices []int
	for i, t := range frags {
		if mjaRefRegex.MatchString(t) {
			mjaIndices = append(mjaIndices, i)
		}
	}

	var blocks []PaymentBlock
	if len(mjaIndices) == 0 {
		slIdx := -1
		for i, t := range frags {
			if t == serviceLineLabel {
				slIdx = i
				break
			}
		}
		if slIdx == -1 {
			return nil
		}
		totalIdx := len(frags)
		for i := slIdx; i < len(frags); i++ {
			if frags[i] == totalLabel {
				totalIdx = i
				break
			}
		}
		raw := map[string]string{}
		consumePaymentPairs(frags, slIdx+1, totalIdx, raw)
		if len(raw) > 0 {
			blocks = append(blocks, PaymentBlock{Raw: raw})
		}
		return blocks
	}

	for i, start := range mjaIndices {
		end := len(frags)
		if i+1 < len(mjaIndices) {
			end = mjaIndices[i+1]
		}
		for j := start + 1; j < end; j++ {
			if frags[j] == totalLabel {
				end = j
				break
			}
		}
		raw := map[string]string{}
		consumePaymentPairs(frags, start+1, end, raw)
		if len(raw) > 0 {
			blocks = append(blocks, PaymentBlock{MJAID: frags[start], Raw: raw})
		}
	}
	span.SetAttributes(attribute.Int("blocks", len(blocks)))
	return blocks
}

// NotesTotal locates the overall total (the money fragment after the last
// TOTAL label before the disclaimer, so a per-day subtotal is never picked)
// and gathers the remaining free text up to the disclaimer as notes.
func (p *Parser) NotesTotal(ctx context.Context, frags []string) (notes, totalRaw string) {
	ctx, span := tracer.Start(ctx, "NotesTotal")
	defer span.End()

	disclaimerIdx := len(frags)
	for i, t := range frags {
		if strings.HasPrefix(t, disclaimerPrefix) {
			disclaimerIdx = i
			break
		}
	}

	totalIdx := -1
	for i := 0; i < disclaimerIdx; i++ {
		if frags[i] == totalLabel {
			totalIdx = i
		}
	}
	if totalIdx == -1 {
		return "", ""
	}

	notesStart := totalIdx + 1
	if totalIdx+1 < len(frags) && strings.HasPrefix(frags[totalIdx+1], "£") {
		totalRaw = frags[totalIdx+1]
		notesStart = totalIdx + 2
	}

	var kept []string
	for i := notesStart; i < disclaimerIdx && i < len(frags); i++ {
		t := frags[i]
		if infoBlockTerminators[t] || mjaRefRegex.MatchString(t) {
			continue
		}
		kept = append(kept, t)
	}
	notes = strings.TrimSpace(strings.Join(kept, "\n"))
	return notes, totalRaw
}

// DayPayments is the parsed monetary breakdown of one booking day.
type DayPayments struct {
	ServiceLine    *float64
	OutOfHours     *float64
	Urgency        *float64
	TravelDistance *float64
	TravelTime     *float64
	Automation     *float64
}

func parseDayPayments(raw map[string]string) DayPayments {
	return DayPayments{
		ServiceLine:    ParseMoney(raw["sl"]),
		OutOfHours:     ParseMoney(raw["ooh"]),
		Urgency:        ParseMoney(raw["urg"]),
		TravelDistance: ParseMoney(raw["td"]),
		TravelTime:     ParseMoney(raw["tt"]),
		Automation:     ParseMoney(raw["aep"]),
	}
}

// DetailDay is one schedulable day of a multiday booking.
type DetailDay struct {
	MJAID       string
	BookingDate string
	Payments    DayPayments
}

// Detail is the consolidated parse of a detail screen.
type Detail struct {
	MJRID    string
	Multiday bool

	HeaderTotal  *float64
	OverallTotal *float64
	DayTotal     *float64

	// single-day schedule; always empty for multiday (the detail screen
	// does not expose per-day times)
	BookingDate string
	StartTime   string
	EndTime     string
	Duration    string

	DateRange       string
	AppointmentInfo string

	LanguagePair   string
	ClientName     string
	Address        string
	BookingType    string
	ContactName    string
	ContactPhone   string
	MeetingLink    string
	TravelDistance *float64
	Notes          string

	// single-day
	MJAID    string
	Payments DayPayments

	// multiday
	Days []DetailDay
}

// Consolidate combines the staged extractions into one Detail. Field-level
// gaps degrade to zero values; only the structural anchors are fatal, and
// those are enforced by the caller.
func (p *Parser) Consolidate(ctx context.Context, header DetailHeader, multiday bool, info InfoBlock, blocks []PaymentBlock, notes, totalRaw string) Detail {
	ctx, span := tracer.Start(ctx, "Consolidate")
	defer span.End()

	d := Detail{
		MJRID:           header.MJRID,
		Multiday:        multiday,
		HeaderTotal:     ParseMoney(header.HeaderTotalRaw),
		OverallTotal:    ParseMoney(totalRaw),
		DateRange:       header.DateRangeRaw,
		AppointmentInfo: header.AppointmentInfoRaw,
		LanguagePair:    info.LanguagePair,
		ClientName:      info.ClientName,
		BookingType:     info.BookingType,
		ContactName:     info.ContactName,
		ContactPhone:    textutil.ValidatePhone(info.ContactPhone),
		MeetingLink:     info.MeetingLink,
		Notes:           notes,
	}

	var addrParts []string
	for _, l := range []string{info.AddressLine1, info.AddressLine2} {
		if l != "" {
			addrParts = append(addrParts, l)
		}
	}
	d.Address = strings.Join(addrParts, "\n")

	if info.DistanceRaw != "" {
		if m := distanceRegex.FindStringSubmatch(info.DistanceRaw); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				d.TravelDistance = &v
			} else {
				slog.WarnContext(ctx, "unparseable travel distance", "raw", info.DistanceRaw)
			}
		}
	}

	if multiday {
		p.consolidateMultiday(ctx, &d, header, blocks)
	} else {
		p.consolidateSingleDay(ctx, &d, header, blocks)
	}

	// the link sometimes only appears in the free-text notes
	if (d.MeetingLink == "" || d.MeetingLink == meetingLinkLabel) && d.Notes != "" {
		if m := meetingURLRegex.FindString(d.Notes); m != "" {
			d.MeetingLink = m
			slog.InfoContext(ctx, "recovered meeting link from notes", "link", m)
		}
	}
	if d.MeetingLink == meetingLinkLabel {
		d.MeetingLink = ""
	}

	return d
}

func (p *Parser) consolidateSingleDay(ctx context.Context, d *Detail, header DetailHeader, blocks []PaymentBlock) {
	if header.DatePartRaw != "" {
		if m := datePartRegex.FindStringSubmatch(header.DatePartRaw); m != nil {
			d.BookingDate = ParseUKDate(m[1])
		}
	}
	if header.TimePartRaw != "" {
		if m := timePartRegex.FindStringSubmatch(header.TimePartRaw); m != nil {
			d.StartTime = ParseTime(m[1])
			d.EndTime = ParseTime(m[2])
			d.Duration = Duration(m[1], m[2])
		}
	}
	if header.DatePartRaw == "" && header.TimePartRaw == "" {
		slog.WarnContext(ctx, "no single day date/time material in header", "mjr", d.MJRID)
	}

	if len(blocks) > 0 {
		d.MJAID = blocks[0].MJAID
		d.Payments = parseDayPayments(blocks[0].Raw)
	}
	d.DayTotal = d.OverallTotal
}

func (p *Parser) consolidateMultiday(ctx context.Context, d *Detail, header DetailHeader, blocks []PaymentBlock) {
	var rangeStart time.Time
	haveStart := false
	if header.DateRangeRaw != "" {
		startRaw, _, _ := strings.Cut(header.DateRangeRaw, " - ")
		if uk := ParseUKDate(startRaw); uk != "" {
			t, err := time.Parse("02-01-2006", uk)
			if err == nil {
				rangeStart = t
				haveStart = true
			}
		}
		if !haveStart {
			slog.ErrorContext(ctx, "unparseable multiday range start", "raw", header.DateRangeRaw)
		}
	}

	for i, block := range blocks {
		day := DetailDay{
			MJAID:    block.MJAID,
			Payments: parseDayPayments(block.Raw),
		}
		if haveStart {
			day.BookingDate = rangeStart.AddDate(0, 0, i).Format("02-01-2006")
		}
		d.Days = append(d.Days, day)
	}

	numDays := 0
	if header.AppointmentInfoRaw != "" {
		if m := apptCountRegex.FindStringSubmatch(header.AppointmentInfoRaw); m != nil {
			raw := m[2]
			if raw == "" {
				raw = m[1]
			}
			if n, err := strconv.Atoi(raw); err == nil {
				numDays = n
			}
		}
	}
	if numDays == 0 {
		numDays = len(d.Days)
	}
	if numDays > 0 && d.OverallTotal != nil {
		avg := math.Round(*d.OverallTotal/float64(numDays)*100) / 100
		d.DayTotal = &avg
	}
}

// Detail runs all stages over one fragment stream. The scroll-accumulating
// processor drives the stages itself; this single-view form serves the
// simple case and the test suite.
func (p *Parser) Detail(ctx context.Context, frags []string) (Detail, error) {
	ctx, span := tracer.Start(ctx, "Detail")
	defer span.End()

	header, multiday, langIdx := p.Header(ctx, frags)
	if langIdx == -1 {
		return Detail{}, ErrAnchorMissing
	}
	info := p.InfoBlock(ctx, frags, langIdx)
	blocks := p.PaymentBlocks(ctx, frags)
	notes, totalRaw := p.NotesTotal(ctx, frags)

	d := p.Consolidate(ctx, header, multiday, info, blocks, notes, totalRaw)
	if d.MJRID == "" {
		return Detail{}, ErrGroupIDMissing
	}
	return d, nil
}

// MultidayFromMarkup is a cheap pre-check for the multiday marker without a
// full fragment parse.
func MultidayFromMarkup(markup string) bool {
	for _, t := range textutil.Fragments(markup) {
		if strings.Contains(t, multidayMarker) {
			return true
		}
	}
	return false
}
