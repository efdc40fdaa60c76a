package parse_test

import (
	"context"
	"testing"

	"wordsynk-backend/services/bookings/parse"

	"github.com/stretchr/testify/require"
)

func TestCard(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		name     string
		desc     string
		expected parse.CardInfo
	}{
		{
			name: "plain in person booking",
			desc: "MJA00000001, AB1 2CD, 09:00 to 10:00, English to Polish",
			expected: parse.CardInfo{
				BookingID:    "MJA00000001",
				Status:       parse.CardNormal,
				Postcode:     "AB1 2CD",
				StartTimeRaw: "09:00",
				EndTimeRaw:   "10:00",
				Duration:     "01:00",
				DurationRaw:  "09:00 to 10:00",
				LanguagePair: "English to Polish",
			},
		},
		{
			name: "viewed prefix with compact postcode and dash time range",
			desc: "Viewed, MJA00000002, M11AA, 14:30 - 15:30, English to French",
			expected: parse.CardInfo{
				BookingID:    "MJA00000002",
				Status:       parse.CardViewed,
				Postcode:     "M1 1AA",
				StartTimeRaw: "14:30",
				EndTimeRaw:   "15:30",
				Duration:     "01:00",
				DurationRaw:  "14:30 to 15:30",
				LanguagePair: "English to French",
			},
		},
		{
			name: "cancelled remote booking",
			desc: "Cancelled, MJA00000003, Remote, 10:00 to 11:00, English to Spanish",
			expected: parse.CardInfo{
				BookingID:    "MJA00000003",
				Status:       parse.CardCancelled,
				StartTimeRaw: "10:00",
				EndTimeRaw:   "11:00",
				Duration:     "01:00",
				DurationRaw:  "10:00 to 11:00",
				LanguagePair: "English to Spanish",
				Remote:       true,
			},
		},
		{
			name: "new offer without postcode or times",
			desc: "New Offer, MJA00000004, English to German",
			expected: parse.CardInfo{
				BookingID:    "MJA00000004",
				Status:       parse.CardNewOffer,
				LanguagePair: "English to German",
				Remote:       true,
			},
		},
		{
			name: "bare booking id",
			desc: "MJA00000005",
			expected: parse.CardInfo{
				BookingID: "MJA00000005",
				Status:    parse.CardNormal,
				Remote:    true,
			},
		},
		{
			name: "status prefix with bare booking id",
			desc: "Viewed, MJA00000006",
			expected: parse.CardInfo{
				BookingID: "MJA00000006",
				Status:    parse.CardViewed,
				Remote:    true,
			},
		},
		{
			// unrecognized prefixes are not statuses; the booking stays normal
			name: "unknown prefix",
			desc: "UnknownStatus, MJA00000007, AB1 2CD, 09:00 to 10:00, English to Polish",
			expected: parse.CardInfo{
				BookingID:    "MJA00000007",
				Status:       parse.CardNormal,
				Postcode:     "AB1 2CD",
				StartTimeRaw: "09:00",
				EndTimeRaw:   "10:00",
				Duration:     "01:00",
				DurationRaw:  "09:00 to 10:00",
				LanguagePair: "English to Polish",
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parse.Card(ctx, tc.desc)
			require.True(t, ok)
			require.Equal(t, tc.expected, got)
		})
	}
}

func TestCardNotABooking(t *testing.T) {
	ctx := context.Background()

	for _, desc := range []string{
		"",
		"InvalidDescription",
		"Cancelled, NoIDHere, AB1 2CD, 09:00 to 10:00, English to Polish",
	} {
		_, ok := parse.Card(ctx, desc)
		require.False(t, ok, "desc=%q", desc)
	}
}
