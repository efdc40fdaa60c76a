// Package store persists booking records across the three scrape passes:
// base rows from list cards, id links from the secondary screen, full detail
// rows from the detail screen.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"wordsynk-backend/services/bookings/parse"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("wordsynk.services.bookings.store")

// Status is the processing status of one booking row.
type Status string

const (
	StatusPending            Status = "pending"
	StatusSecondaryProcessed Status = "secondary_processed"
	StatusScraped            Status = "scraped"
	StatusCancelledOnList    Status = "cancelled_on_list"

	StatusErrorList          Status = "error_list"
	StatusErrorNavSecondary  Status = "error_nav_secondary"
	StatusErrorSecondaryInfo Status = "error_secondary_info"
	StatusErrorClickMJR      Status = "error_click_mjr"
	StatusErrorNavDetail     Status = "error_nav_detail"
	StatusErrorDetailExtract Status = "error_detail_extract"
	StatusErrorSave          Status = "error_save"
	StatusErrorUnknown       Status = "error_unknown"
	StatusSkippedDuplicate   Status = "skipped_duplicate"
	StatusSkippedManual      Status = "skipped_manual"
	StatusSkippedOfferViewed Status = "skipped_offer_viewed"
)

// StatusForCard maps a list-card status to the initial processing status of
// the row. Cancelled and offer/viewed cards never proceed past the list.
func StatusForCard(cs parse.CardStatus) Status {
	switch cs {
	case parse.CardCancelled:
		return StatusCancelledOnList
	case parse.CardNewOffer, parse.CardViewed:
		return StatusSkippedOfferViewed
	default:
		return StatusPending
	}
}

var ErrBookingNotFound = errors.New("booking not found")

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) Store {
	return Store{db: db}
}

// a scraped row is terminal: the only list-pass transition out of it is the
// booking getting cancelled
var insertBookingBaseSQL = fmt.Sprintf(`
INSERT INTO bookings (
	booking_id, postcode, start_time, end_time, duration,
	language_pair, isRemote, status, card_status, last_updated
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(booking_id) DO UPDATE SET
	postcode = excluded.postcode,
	start_time = excluded.start_time,
	end_time = excluded.end_time,
	duration = excluded.duration,
	language_pair = excluded.language_pair,
	isRemote = excluded.isRemote,
	status = CASE
		WHEN bookings.status = '%[1]s' AND excluded.status = '%[2]s' THEN excluded.status
		WHEN bookings.status = '%[1]s' THEN bookings.status
		ELSE excluded.status
	END,
	card_status = excluded.card_status,
	last_updated = CURRENT_TIMESTAMP
WHERE
	ifnull(bookings.postcode, '') <> ifnull(excluded.postcode, '') OR
	ifnull(bookings.start_time, '') <> ifnull(excluded.start_time, '') OR
	ifnull(bookings.end_time, '') <> ifnull(excluded.end_time, '') OR
	ifnull(bookings.duration, '') <> ifnull(excluded.duration, '') OR
	ifnull(bookings.language_pair, '') <> ifnull(excluded.language_pair, '') OR
	ifnull(bookings.isRemote, 0) <> ifnull(excluded.isRemote, 0) OR
	ifnull(bookings.card_status, '') <> ifnull(excluded.card_status, '') OR
	(ifnull(bookings.status, '') <> excluded.status AND NOT (
		ifnull(bookings.status, '') = '%[1]s' AND excluded.status <> '%[2]s'
	))
`, StatusScraped, StatusCancelledOnList)

// InsertBookingBase upserts the row for one list card. Re-upserting an
// identical card affects no rows and leaves last_updated alone; the returned
// bool reports whether anything actually changed.
func (s Store) InsertBookingBase(ctx context.Context, card parse.CardInfo) (bool, error) {
	ctx, span := tracer.Start(ctx, "InsertBookingBase")
	defer span.End()
	span.SetAttributes(attribute.String("booking", card.BookingID))

	if card.BookingID == "" {
		return false, errors.New("card has no booking id")
	}

	remote := 0
	if card.Remote {
		remote = 1
	}
	res, err := s.db.ExecContext(ctx, insertBookingBaseSQL,
		card.BookingID,
		nullStr(card.Postcode),
		nullStr(parse.ParseTime(card.StartTimeRaw)),
		nullStr(parse.ParseTime(card.EndTimeRaw)),
		nullStr(card.Duration),
		nullStr(card.LanguagePair),
		remote,
		string(StatusForCard(card.Status)),
		string(card.Status),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const updateSecondaryIDsSQL = `
UPDATE bookings
SET
	creation_id = ?,
	processing_id = ?,
	mjr_id = ?,
	appointment_count_hint = ?,
	type_hint = ?,
	last_updated = CURRENT_TIMESTAMP
WHERE booking_id = ?
AND (
	ifnull(creation_id, '') <> ifnull(?, '') OR
	ifnull(processing_id, '') <> ifnull(?, '') OR
	ifnull(mjr_id, '') <> ifnull(?, '') OR
	ifnull(appointment_count_hint, -1) <> ifnull(?, -1) OR
	ifnull(type_hint, '') <> ifnull(?, '')
)
`

// UpdateSecondaryIDs links a booking to the ids and hints read off its
// secondary screen. The write is skipped when nothing differs so re-visits
// do not churn last_updated.
func (s Store) UpdateSecondaryIDs(ctx context.Context, bookingID string, info parse.SecondaryInfo) error {
	ctx, span := tracer.Start(ctx, "UpdateSecondaryIDs")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking", bookingID),
		attribute.String("mjr", info.MJRID),
	)

	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM bookings WHERE booking_id = ?", bookingID,
	).Scan(&exists)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrBookingNotFound, bookingID)
	}

	creation := nullStr(info.MJBID)
	processing := nullStr(info.MJRID)
	count := nullInt(info.AppointmentCountHint)
	hint := nullStr(info.TypeHint)
	res, err := s.db.ExecContext(ctx, updateSecondaryIDsSQL,
		creation, processing, processing, count, hint, bookingID,
		creation, processing, processing, count, hint,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		slog.DebugContext(ctx, "secondary ids already current", "booking", bookingID)
	}
	return nil
}

// DetailRecord is one fully parsed booking day, ready to persist.
type DetailRecord struct {
	BookingID    string
	MJRID        string
	CreationID   string
	ProcessingID string
	CardStatus   parse.CardStatus

	Multiday             bool
	AppointmentSequence  int
	AppointmentCountHint int
	TypeHint             string

	LanguagePair   string
	ClientName     string
	Address        string
	BookingType    string
	ContactName    string
	ContactPhone   string
	TravelDistance *float64
	MeetingLink    string

	BookingDate string
	StartTime   string
	EndTime     string
	Duration    string

	Payments parse.DayPayments
	DayTotal *float64

	Notes    string
	Postcode string
	Remote   bool

	ScrapeAttempt int
	Status        Status
}

const saveBookingDetailsSQL = `
INSERT INTO bookings (
	booking_id, mjr_id, creation_id, processing_id, card_status,
	is_multiday, appointment_sequence, appointment_count_hint, type_hint,
	language_pair, client_name, address, booking_type,
	contact_name, contact_phone, travel_distance, meeting_link,
	booking_date, start_time, end_time, duration,
	day_pay_sl, day_pay_ooh, day_pay_urg, day_pay_td, day_pay_tt, day_pay_aep,
	day_total, notes, postcode, isRemote,
	scrape_attempt, status, last_updated
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(booking_id) DO UPDATE SET
	mjr_id = excluded.mjr_id,
	creation_id = excluded.creation_id,
	processing_id = excluded.processing_id,
	card_status = excluded.card_status,
	is_multiday = excluded.is_multiday,
	appointment_sequence = excluded.appointment_sequence,
	appointment_count_hint = excluded.appointment_count_hint,
	type_hint = excluded.type_hint,
	language_pair = excluded.language_pair,
	client_name = excluded.client_name,
	address = excluded.address,
	booking_type = excluded.booking_type,
	contact_name = excluded.contact_name,
	contact_phone = excluded.contact_phone,
	travel_distance = excluded.travel_distance,
	meeting_link = excluded.meeting_link,
	booking_date = excluded.booking_date,
	start_time = excluded.start_time,
	end_time = excluded.end_time,
	duration = excluded.duration,
	day_pay_sl = excluded.day_pay_sl,
	day_pay_ooh = excluded.day_pay_ooh,
	day_pay_urg = excluded.day_pay_urg,
	day_pay_td = excluded.day_pay_td,
	day_pay_tt = excluded.day_pay_tt,
	day_pay_aep = excluded.day_pay_aep,
	day_total = excluded.day_total,
	notes = excluded.notes,
	postcode = excluded.postcode,
	isRemote = excluded.isRemote,
	scrape_attempt = excluded.scrape_attempt,
	status = excluded.status,
	last_updated = CURRENT_TIMESTAMP
`

// SaveBookingDetails overwrites the row with the full detail parse. A detail
// save is authoritative for every field it carries.
func (s Store) SaveBookingDetails(ctx context.Context, rec DetailRecord) error {
	ctx, span := tracer.Start(ctx, "SaveBookingDetails")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking", rec.BookingID),
		attribute.String("mjr", rec.MJRID),
	)

	if rec.BookingID == "" {
		return errors.New("detail record has no booking id")
	}
	status := rec.Status
	if status == "" {
		status = StatusScraped
	}
	multiday := 0
	if rec.Multiday {
		multiday = 1
	}
	remote := 0
	if rec.Remote {
		remote = 1
	}

	_, err := s.db.ExecContext(ctx, saveBookingDetailsSQL,
		rec.BookingID,
		nullStr(rec.MJRID),
		nullStr(rec.CreationID),
		nullStr(rec.ProcessingID),
		nullStr(string(rec.CardStatus)),
		multiday,
		nullInt(rec.AppointmentSequence),
		nullInt(rec.AppointmentCountHint),
		nullStr(rec.TypeHint),
		nullStr(rec.LanguagePair),
		nullStr(rec.ClientName),
		nullStr(rec.Address),
		nullStr(rec.BookingType),
		nullStr(rec.ContactName),
		nullStr(rec.ContactPhone),
		nullFloat(rec.TravelDistance),
		nullStr(rec.MeetingLink),
		nullStr(rec.BookingDate),
		nullStr(rec.StartTime),
		nullStr(rec.EndTime),
		nullStr(rec.Duration),
		nullFloat(rec.Payments.ServiceLine),
		nullFloat(rec.Payments.OutOfHours),
		nullFloat(rec.Payments.Urgency),
		nullFloat(rec.Payments.TravelDistance),
		nullFloat(rec.Payments.TravelTime),
		nullFloat(rec.Payments.Automation),
		nullFloat(rec.DayTotal),
		nullStr(rec.Notes),
		nullStr(rec.Postcode),
		remote,
		rec.ScrapeAttempt,
		string(status),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	slog.InfoContext(ctx, "saved booking details",
		"booking", rec.BookingID, "mjr", rec.MJRID, "status", status)
	return nil
}

// UpsertMultidayHeader records MJR-level header material that has no home on
// per-day rows.
func (s Store) UpsertMultidayHeader(ctx context.Context, mjrID, dateRange, appointmentInfo string, overallTotal, headerTotal *float64) error {
	ctx, span := tracer.Start(ctx, "UpsertMultidayHeader")
	defer span.End()
	span.SetAttributes(attribute.String("mjr", mjrID))

	if mjrID == "" {
		return errors.New("multiday header has no mjr id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO multiday_headers (mjr_id, date_range, appointment_info, overall_total, header_total, last_updated)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(mjr_id) DO UPDATE SET
			date_range = excluded.date_range,
			appointment_info = excluded.appointment_info,
			overall_total = excluded.overall_total,
			header_total = excluded.header_total,
			last_updated = CURRENT_TIMESTAMP
	`, mjrID, nullStr(dateRange), nullStr(appointmentInfo), nullFloat(overallTotal), nullFloat(headerTotal))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// UpdateStatus sets a booking's status unless it already has it.
func (s Store) UpdateStatus(ctx context.Context, bookingID string, status Status) error {
	ctx, span := tracer.Start(ctx, "UpdateStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking", bookingID),
		attribute.String("status", string(status)),
	)

	_, err := s.db.ExecContext(ctx, `
		UPDATE bookings SET status = ?, last_updated = CURRENT_TIMESTAMP
		WHERE booking_id = ? AND status <> ?
	`, string(status), bookingID, string(status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// UpdateStatusForMJR sets the status of every booking day of a group and
// returns how many rows changed.
func (s Store) UpdateStatusForMJR(ctx context.Context, mjrID string, status Status) (int64, error) {
	ctx, span := tracer.Start(ctx, "UpdateStatusForMJR")
	defer span.End()
	span.SetAttributes(
		attribute.String("mjr", mjrID),
		attribute.String("status", string(status)),
	)

	res, err := s.db.ExecContext(ctx, `
		UPDATE bookings SET status = ?, last_updated = CURRENT_TIMESTAMP
		WHERE mjr_id = ? AND status <> ?
	`, string(status), mjrID, string(status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	return res.RowsAffected()
}

// MJRForBooking returns the group id a booking is linked to, or "" when it
// is not linked yet.
func (s Store) MJRForBooking(ctx context.Context, bookingID string) (string, error) {
	ctx, span := tracer.Start(ctx, "MJRForBooking")
	defer span.End()

	var mjr sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT mjr_id FROM bookings WHERE booking_id = ?", bookingID,
	).Scan(&mjr)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return mjr.String, nil
}

// BookingIDsForMJR returns every booking day linked to a group.
func (s Store) BookingIDsForMJR(ctx context.Context, mjrID string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "BookingIDsForMJR")
	defer span.End()

	rows, err := s.db.QueryContext(ctx,
		"SELECT booking_id FROM bookings WHERE mjr_id = ? ORDER BY booking_id", mjrID,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// IsMJRFullyScraped reports whether every expected booking day of a group is
// already scraped, judged against the appointment count hint. Without a
// hint the answer is false: guessing "done" would silently drop days.
func (s Store) IsMJRFullyScraped(ctx context.Context, mjrID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "IsMJRFullyScraped")
	defer span.End()
	span.SetAttributes(attribute.String("mjr", mjrID))

	var hint sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT appointment_count_hint FROM bookings
		WHERE mjr_id = ? AND appointment_count_hint IS NOT NULL
		LIMIT 1
	`, mjrID).Scan(&hint)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}
	if !hint.Valid || hint.Int64 <= 0 {
		return false, nil
	}

	var scraped int64
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(booking_id) FROM bookings WHERE mjr_id = ? AND status = ?",
		mjrID, string(StatusScraped),
	).Scan(&scraped)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}
	return scraped >= hint.Int64, nil
}

// SecondaryHints is the count and type hint recorded for a group on the
// secondary pass.
type SecondaryHints struct {
	AppointmentCount int
	TypeHint         string
}

// SecondaryHintsForMJR returns the hints from the earliest booking day of a
// group that carries both, or ok=false when none does.
func (s Store) SecondaryHintsForMJR(ctx context.Context, mjrID string) (SecondaryHints, bool, error) {
	ctx, span := tracer.Start(ctx, "SecondaryHintsForMJR")
	defer span.End()

	var hints SecondaryHints
	err := s.db.QueryRowContext(ctx, `
		SELECT appointment_count_hint, type_hint FROM bookings
		WHERE mjr_id = ?
		  AND appointment_count_hint IS NOT NULL
		  AND type_hint IS NOT NULL
		ORDER BY ifnull(appointment_sequence, 999999) ASC, booking_id ASC
		LIMIT 1
	`, mjrID).Scan(&hints.AppointmentCount, &hints.TypeHint)
	if errors.Is(err, sql.ErrNoRows) {
		return SecondaryHints{}, false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SecondaryHints{}, false, err
	}
	return hints, true, nil
}

// UpdateHintsForMJR stamps the same hints onto every booking day of a group.
func (s Store) UpdateHintsForMJR(ctx context.Context, mjrID string, count int, typeHint string) error {
	ctx, span := tracer.Start(ctx, "UpdateHintsForMJR")
	defer span.End()
	span.SetAttributes(attribute.String("mjr", mjrID))

	if count <= 0 && typeHint == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE bookings
		SET appointment_count_hint = COALESCE(?, appointment_count_hint),
		    type_hint = COALESCE(?, type_hint),
		    last_updated = CURRENT_TIMESTAMP
		WHERE mjr_id = ?
	`, nullInt(count), nullStr(typeHint), mjrID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// ProcessedBookingIDs returns every booking id that already settled in a
// past session. Rows still pending or only half processed stay eligible for
// another visit.
func (s Store) ProcessedBookingIDs(ctx context.Context) (map[string]struct{}, error) {
	ctx, span := tracer.Start(ctx, "ProcessedBookingIDs")
	defer span.End()

	rows, err := s.db.QueryContext(ctx,
		`SELECT booking_id FROM bookings
		 WHERE ifnull(status, 'pending') NOT IN ('pending', 'secondary_processed')`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	span.SetAttributes(attribute.Int("count", len(ids)))
	return ids, rows.Err()
}

// IncrementScrapeAttempt bumps and returns the booking's detail-visit
// counter. The counter lives on the row so retry limits survive restarts.
func (s Store) IncrementScrapeAttempt(ctx context.Context, bookingID string) (int, error) {
	ctx, span := tracer.Start(ctx, "IncrementScrapeAttempt")
	defer span.End()

	var attempt int
	err := s.db.QueryRowContext(ctx, `
		UPDATE bookings
		SET scrape_attempt = ifnull(scrape_attempt, 0) + 1
		WHERE booking_id = ?
		RETURNING scrape_attempt`, bookingID,
	).Scan(&attempt)
	if errors.Is(err, sql.ErrNoRows) {
		// no row yet; the visit still counts as the first attempt
		return 1, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	return attempt, nil
}

// CardContext is the list-pass and secondary-pass material already on a
// booking row. A detail save is authoritative for its own fields but must
// carry these forward, since the detail screen does not restate them.
type CardContext struct {
	CardStatus           parse.CardStatus
	Postcode             string
	Remote               bool
	CreationID           string
	ProcessingID         string
	AppointmentCountHint int
	TypeHint             string
}

// CardContextForBooking returns the carried-forward fields for a booking,
// or zero values when the row does not exist yet. Multiday sibling days are
// routinely saved before their card has ever been seen on the list.
func (s Store) CardContextForBooking(ctx context.Context, bookingID string) (CardContext, error) {
	ctx, span := tracer.Start(ctx, "CardContextForBooking")
	defer span.End()

	var (
		cc     CardContext
		status string
		remote int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			ifnull(card_status, ''), ifnull(postcode, ''), ifnull(isRemote, 0),
			ifnull(creation_id, ''), ifnull(processing_id, ''),
			ifnull(appointment_count_hint, 0), ifnull(type_hint, '')
		FROM bookings WHERE booking_id = ?`, bookingID,
	).Scan(&status, &cc.Postcode, &remote,
		&cc.CreationID, &cc.ProcessingID,
		&cc.AppointmentCountHint, &cc.TypeHint)
	if errors.Is(err, sql.ErrNoRows) {
		return CardContext{}, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return CardContext{}, err
	}
	cc.CardStatus = parse.CardStatus(status)
	cc.Remote = remote != 0
	return cc, nil
}

// BookingStatus returns the current status of a booking.
func (s Store) BookingStatus(ctx context.Context, bookingID string) (Status, error) {
	ctx, span := tracer.Start(ctx, "BookingStatus")
	defer span.End()

	var status sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT status FROM bookings WHERE booking_id = ?", bookingID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrBookingNotFound, bookingID)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return Status(status.String), nil
}

// StatusCounts returns how many bookings sit in each status.
func (s Store) StatusCounts(ctx context.Context) (map[Status]int, error) {
	ctx, span := tracer.Start(ctx, "StatusCounts")
	defer span.End()

	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM bookings GROUP BY status ORDER BY status",
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status sql.NullString
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[Status(status.String)] = n
	}
	return counts, rows.Err()
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n > 0}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
