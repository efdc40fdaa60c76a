package bookings_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"wordsynk-backend/lib/telemetry"
	"wordsynk-backend/lib/uiauto"
	"wordsynk-backend/services/bookings"
	"wordsynk-backend/services/bookings/db"
	"wordsynk-backend/services/bookings/session"
	"wordsynk-backend/services/bookings/store"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const fakeListSource = `<hierarchy>
  <androidx.recyclerview.widget.RecyclerView>
    <android.view.ViewGroup content-desc="MJA00300359, 10:00 to 13:00, LS1 3BY, English to Polish" />
    <android.view.ViewGroup content-desc="Cancelled, MJA00300360, 09:00 to 09:30, M1 1AA, English to Polish" />
  </androidx.recyclerview.widget.RecyclerView>
</hierarchy>`

const fakeSecondarySource = `<hierarchy>
  <android.widget.TextView text="Booking #MJB00112233" />
  <android.view.ViewGroup content-desc="MJR00225672, Face To Face, Appointments : 1" />
</hierarchy>`

const fakeDetailSource = `<hierarchy>
  <node text="Booking #MJR00225672" />
  <node text="£ 89.93" />
  <node text="01-05-2025 At &#10;10:00 - 13:00" />
  <node text="English to Polish" />
  <node text="Leeds Magistrates' Court - Crime" />
  <node text="Leeds District Magistrates' Court" />
  <node text="Westgate Leeds England LS1 3BY" />
  <node text="Crime - Magistrates' Court | Trial" />
  <node text="Peter McArthur" />
  <node text="0" />
  <node text="9.82 Miles" />
  <node text="Open Directions" />
  <node text="Timesheets Download" />
  <node text="MJA00300359" />
  <node text="Service Line Item" />
  <node text="£ 78" />
  <node text="Travel Distance Line Item" />
  <node text="£ 1.93" />
  <node text="Automation Enhancement Payment" />
  <node text="£ 10" />
  <node text="TOTAL" />
  <node text="£ 89.93" />
  <node text="13WD0282624 - Courtroom 08" />
  <node text="By accepting this assignment" />
</hierarchy>`

// fakeApp plays the booking app from the driver's side of the wire. Element
// lookups resolve against per-screen rules, and clicking the right elements
// walks the screen stack the way the real app does.
type fakeApp struct {
	mu      sync.Mutex
	screen  string
	server  *httptest.Server
	sources map[string]string
	rules   map[string][]fakeRule
}

type fakeRule struct {
	substr string
	id     string
}

func newFakeApp(t *testing.T, sources map[string]string, rules map[string][]fakeRule) *fakeApp {
	f := &fakeApp{screen: "list", sources: sources, rules: rules}
	mux := http.NewServeMux()

	reply := func(w http.ResponseWriter, v any) {
		_ = json.NewEncoder(w).Encode(map[string]any{"value": v})
	}
	replyErr := func(w http.ResponseWriter, status int, name string) {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"value": map[string]string{"error": name, "message": name},
		})
	}

	mux.HandleFunc("POST /session", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]string{"sessionId": "app-session"})
	})
	mux.HandleFunc("DELETE /session/app-session", func(w http.ResponseWriter, r *http.Request) {
		reply(w, nil)
	})
	mux.HandleFunc("GET /session/app-session/source", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		reply(w, f.sources[f.screen])
	})
	mux.HandleFunc("POST /session/app-session/element", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Value string `json:"value"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, rule := range f.rules[f.screen] {
			if strings.Contains(req.Value, rule.substr) {
				reply(w, map[string]string{
					"element-6066-11e4-a52e-4f735466cecf": rule.id,
				})
				return
			}
		}
		replyErr(w, http.StatusNotFound, "no such element")
	})
	mux.HandleFunc("POST /session/app-session/element/{id}/click", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		switch r.PathValue("id") {
		case "el-card":
			f.screen = "secondary"
		case "el-mjr-link":
			f.screen = "detail"
		}
		f.mu.Unlock()
		reply(w, nil)
	})
	mux.HandleFunc("GET /session/app-session/element/{id}/rect", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]int{"x": 0, "y": 600, "width": 1080, "height": 200})
	})
	mux.HandleFunc("GET /session/app-session/element/{id}/displayed", func(w http.ResponseWriter, r *http.Request) {
		reply(w, true)
	})
	mux.HandleFunc("GET /session/app-session/window/rect", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]int{"x": 0, "y": 0, "width": 1080, "height": 2400})
	})
	mux.HandleFunc("POST /session/app-session/execute/sync", func(w http.ResponseWriter, r *http.Request) {
		reply(w, nil)
	})
	mux.HandleFunc("POST /session/app-session/back", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		switch f.screen {
		case "detail":
			f.screen = "secondary"
		case "secondary":
			f.screen = "list"
		}
		f.mu.Unlock()
		reply(w, nil)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func testCrawlDB(t *testing.T) *sql.DB {
	t.Helper()
	sqlite, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqlite.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlite.Close() })
	_, err = sqlite.Exec(db.Schema)
	require.NoError(t, err)
	return sqlite
}

func TestCrawlerSingleDayEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("walks fixed settle delays")
	}
	defer telemetry.SetupForTesting(t, "bookings/crawler")()
	ctx := context.Background()

	app := newFakeApp(t,
		map[string]string{
			"list":      fakeListSource,
			"secondary": fakeSecondarySource,
			"detail":    fakeDetailSource,
		},
		map[string][]fakeRule{
			"list": {
				{"androidx.recyclerview.widget.RecyclerView", "el-list"},
				{"MJA00300359", "el-card"},
				{"MJA00300360", "el-cancelled"},
			},
			"secondary": {
				{"Booking #MJB", "el-mjb-title"},
				{"MJR00225672", "el-mjr-link"},
			},
			"detail": {
				{"Booking #MJR", "el-detail-title"},
				{"By accepting this assignment", "el-disclaimer"},
			},
		})
	sqlite := testCrawlDB(t)

	tracker, err := session.LoadOrCreate(ctx, sqlite)
	require.NoError(t, err)
	require.Equal(t, session.StateNavigatingToList, tracker.State())

	ui, err := uiauto.NewSession(ctx, uiauto.Options{
		ServerURL:    app.server.URL,
		Capabilities: map[string]any{"platformName": "Android"},
	})
	require.NoError(t, err)

	cfg := bookings.Config{}.WithDefaults()
	crawler := bookings.NewCrawler(cfg, ui, sqlite, tracker)
	require.NoError(t, crawler.Run(ctx))

	st := store.NewStore(sqlite)

	status, err := st.BookingStatus(ctx, "MJA00300359")
	require.NoError(t, err)
	require.Equal(t, store.StatusScraped, status)

	status, err = st.BookingStatus(ctx, "MJA00300360")
	require.NoError(t, err)
	require.Equal(t, store.StatusCancelledOnList, status)

	ids, err := st.BookingIDsForMJR(ctx, "MJR00225672")
	require.NoError(t, err)
	require.Equal(t, []string{"MJA00300359"}, ids)

	var dayTotal float64
	var seq int
	var bookingDate, notes, address string
	err = sqlite.QueryRow(`
		SELECT day_total, appointment_sequence, booking_date, notes, address
		FROM bookings WHERE booking_id = 'MJA00300359'`,
	).Scan(&dayTotal, &seq, &bookingDate, &notes, &address)
	require.NoError(t, err)
	require.Equal(t, 89.93, dayTotal)
	require.Equal(t, 1, seq)
	require.Equal(t, "01-05-2025", bookingDate)
	require.Equal(t, "13WD0282624 - Courtroom 08", notes)
	require.Equal(t, "Leeds District Magistrates' Court\nWestgate Leeds England LS1 3BY", address)

	scraped, err := st.IsMJRFullyScraped(ctx, "MJR00225672")
	require.NoError(t, err)
	require.True(t, scraped)

	// the clicked booking kept its list-pass material through the detail save
	cc, err := st.CardContextForBooking(ctx, "MJA00300359")
	require.NoError(t, err)
	require.Equal(t, "LS1 3BY", cc.Postcode)
	require.Equal(t, "MJB00112233", cc.CreationID)
	require.Equal(t, "Face To Face", cc.TypeHint)
}

const fakeBlocklessListSource = `<hierarchy>
  <androidx.recyclerview.widget.RecyclerView>
    <android.view.ViewGroup content-desc="MJA00400001, 10:00 to 13:00, LS1 3BY, English to Polish" />
  </androidx.recyclerview.widget.RecyclerView>
</hierarchy>`

const fakeBlocklessSecondarySource = `<hierarchy>
  <android.widget.TextView text="Booking #MJB00445566" />
  <android.view.ViewGroup content-desc="MJR00335577, Face To Face, Appointments : 2" />
</hierarchy>`

// a multiday header with the disclaimer already visible and no per-day
// payment sections at all
const fakeBlocklessDetailSource = `<hierarchy>
  <node text="Booking #MJR00335577" />
  <node text="£ 332" />
  <node text="Multiday" />
  <node text="01-07-2025 - 02-07-2025" />
  <node text="2 Appointments / 2 Days" />
  <node text="English to Polish" />
  <node text="London South ET" />
  <node text="Montague Court" />
  <node text="101 London Road West Croydon CR0 2RF" />
  <node text="Employment Tribunal | Hearing" />
  <node text="TOTAL" />
  <node text="£ 332" />
  <node text="By accepting this assignment" />
</hierarchy>`

func TestCrawlerMultidayWithoutPaymentBlocks(t *testing.T) {
	if testing.Short() {
		t.Skip("walks fixed settle delays")
	}
	defer telemetry.SetupForTesting(t, "bookings/crawler")()
	ctx := context.Background()

	app := newFakeApp(t,
		map[string]string{
			"list":      fakeBlocklessListSource,
			"secondary": fakeBlocklessSecondarySource,
			"detail":    fakeBlocklessDetailSource,
		},
		map[string][]fakeRule{
			"list": {
				{"androidx.recyclerview.widget.RecyclerView", "el-list"},
				{"MJA00400001", "el-card"},
			},
			"secondary": {
				{"Booking #MJB", "el-mjb-title"},
				{"MJR00335577", "el-mjr-link"},
			},
			"detail": {
				{"Booking #MJR", "el-detail-title"},
				{"By accepting this assignment", "el-disclaimer"},
			},
		})
	sqlite := testCrawlDB(t)

	tracker, err := session.LoadOrCreate(ctx, sqlite)
	require.NoError(t, err)

	ui, err := uiauto.NewSession(ctx, uiauto.Options{
		ServerURL:    app.server.URL,
		Capabilities: map[string]any{"platformName": "Android"},
	})
	require.NoError(t, err)

	cfg := bookings.Config{}.WithDefaults()
	crawler := bookings.NewCrawler(cfg, ui, sqlite, tracker)
	require.NoError(t, crawler.Run(ctx))

	st := store.NewStore(sqlite)

	// a group page with nothing to persist must never settle as scraped
	status, err := st.BookingStatus(ctx, "MJA00400001")
	require.NoError(t, err)
	require.Equal(t, store.StatusErrorDetailExtract, status)

	var attempts int
	require.NoError(t, sqlite.QueryRow(
		"SELECT scrape_attempt FROM bookings WHERE booking_id = 'MJA00400001'",
	).Scan(&attempts))
	require.Equal(t, 3, attempts)

	var headers int
	require.NoError(t, sqlite.QueryRow(
		"SELECT count(*) FROM multiday_headers WHERE mjr_id = 'MJR00335577'",
	).Scan(&headers))
	require.Zero(t, headers)
}
