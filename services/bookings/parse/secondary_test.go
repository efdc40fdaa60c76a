package parse_test

import (
	"context"
	"testing"

	"wordsynk-backend/services/bookings/parse"

	"github.com/stretchr/testify/require"
)

func TestSecondary(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		name     string
		markup   string
		expected parse.SecondaryInfo
	}{
		{
			name: "face to face with count",
			markup: `<hierarchy rotation="0">
  <node index="0" class="android.widget.FrameLayout">
    <node index="1" class="android.widget.LinearLayout">
        <node index="0" class="android.widget.TextView" text="Booking #MJB00247605" />
        <node index="1" class="android.view.ViewGroup">
            <node index="0" class="android.view.ViewGroup" content-desc="MJR00236264, Face To Face, Appointments : 1"/>
        </node>
    </node>
  </node>
</hierarchy>`,
			expected: parse.SecondaryInfo{
				MJBID:                "MJB00247605",
				MJRID:                "MJR00236264",
				TypeHint:             parse.TypeFaceToFace,
				AppointmentCountHint: 1,
			},
		},
		{
			name: "video remote with multiple appointments",
			markup: `<hierarchy>
  <node text="Booking #MJB12345678" />
  <node content-desc="MJR87654321, Video Remote Interpreting, Appointments : 3"/>
</hierarchy>`,
			expected: parse.SecondaryInfo{
				MJBID:                "MJB12345678",
				MJRID:                "MJR87654321",
				TypeHint:             parse.TypeVideoRemote,
				AppointmentCountHint: 3,
			},
		},
		{
			name: "plain remote",
			markup: `<hierarchy>
  <node text="Booking #MJB00000001" />
  <node content-desc="MJR00000002, Remote, Appointments : 1" />
</hierarchy>`,
			expected: parse.SecondaryInfo{
				MJBID:                "MJB00000001",
				MJRID:                "MJR00000002",
				TypeHint:             parse.TypeRemote,
				AppointmentCountHint: 1,
			},
		},
		{
			name: "count absent defaults to one",
			markup: `<hierarchy>
  <node text="Booking #MJB99998888" />
  <node content-desc="MJR11122333, Face To Face" />
</hierarchy>`,
			expected: parse.SecondaryInfo{
				MJBID:                "MJB99998888",
				MJRID:                "MJR11122333",
				TypeHint:             parse.TypeFaceToFace,
				AppointmentCountHint: 1,
			},
		},
		{
			name: "descriptor without group id",
			markup: `<hierarchy>
  <node text="Booking #MJB77776666" />
  <node content-desc="Some other description without a group id" />
</hierarchy>`,
			expected: parse.SecondaryInfo{
				MJBID:                "MJB77776666",
				AppointmentCountHint: 1,
			},
		},
		{
			name: "secondary id missing",
			markup: `<hierarchy>
  <node text="Some other title" />
  <node content-desc="MJR55554444, Face To Face, Appointments : 1" />
</hierarchy>`,
			expected: parse.SecondaryInfo{
				MJRID:                "MJR55554444",
				TypeHint:             parse.TypeFaceToFace,
				AppointmentCountHint: 1,
			},
		},
		{
			name:     "empty hierarchy",
			markup:   `<hierarchy />`,
			expected: parse.SecondaryInfo{AppointmentCountHint: 1},
		},
		{
			name: "html entities in type hint",
			markup: `<hierarchy>
  <node text="Booking #MJB00000009" />
  <node content-desc="MJR00000009, Face &amp; To &lt; Face, Appointments : 1" />
</hierarchy>`,
			expected: parse.SecondaryInfo{
				MJBID: "MJB00000009",
				MJRID: "MJR00000009",
				// no canonical label matches, the raw hint survives
				TypeHint:             "Face & To < Face",
				AppointmentCountHint: 1,
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, parse.Secondary(ctx, tc.markup))
		})
	}
}
