package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFragments(t *testing.T) {
	markup := `
	<hierarchy>
	  <node text="Booking #MJR00225672" />
	  <node text="£ 89.93" bounds="[0,0][100,100]" />
	  <node text="01-05-2025 At &#10;10:00 - 13:00" />
	  <node text="" />
	  <node text="  padded  " />
	`
	// deliberately truncated markup above: the scan must still succeed
	got := Fragments(markup)
	require.Equal(t, []string{
		"Booking #MJR00225672",
		"£ 89.93",
		"01-05-2025 At",
		"10:00 - 13:00",
		"padded",
	}, got)
}

func TestFragmentsEntityDecoding(t *testing.T) {
	got := Fragments(`<node text="Bradford &amp; Calderdale (TPS)" />`)
	require.Equal(t, []string{"Bradford & Calderdale (TPS)"}, got)
}

func TestSanitizePostcode(t *testing.T) {
	for _, tc := range []struct {
		raw  string
		want string
	}{
		{"AB1 2CD", "AB1 2CD"},
		{"M11AA", "M1 1AA"},
		{"sw1a0aa", "SW1A 0AA"},
		{"Westgate Leeds England LS1 3BY", "LS1 3BY"},
		{"Remote", ""},
		{"", ""},
	} {
		require.Equal(t, tc.want, SanitizePostcode(tc.raw), "raw=%q", tc.raw)
	}
}

func TestValidatePhone(t *testing.T) {
	for _, tc := range []struct {
		raw  string
		want string
	}{
		{"0113 123 4567", "0113 123 4567"},
		{"+44 7700 900123", "+44 7700 900123"},
		{"undefined", ""},
		{"null", ""},
		{"0", ""},
		{"123", ""},
		{"  ", ""},
	} {
		require.Equal(t, tc.want, ValidatePhone(tc.raw), "raw=%q", tc.raw)
	}
}
