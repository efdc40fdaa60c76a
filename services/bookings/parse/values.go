package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ukDateRegex    = regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`)
	moneyStripping = strings.NewReplacer("£", "", ",", "")
)

// ParseMoney parses a currency fragment like "£ 89.93". The currency symbol
// is mandatory: a bare number in a money slot is a type mismatch, not noise,
// so it yields nil rather than zero.
func ParseMoney(raw string) *float64 {
	if !strings.Contains(raw, "£") {
		return nil
	}
	cleaned := strings.TrimSpace(moneyStripping.Replace(raw))
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ParseUKDate validates the leading token of raw as a calendar-valid
// DD-MM-YYYY date and returns it, or "" when it is not one.
func ParseUKDate(raw string) string {
	datePart, _, _ := strings.Cut(strings.TrimSpace(raw), " ")
	if !ukDateRegex.MatchString(datePart) {
		return ""
	}
	if _, err := time.Parse("02-01-2006", datePart); err != nil {
		return ""
	}
	return datePart
}

func parseClock(raw string) (hour, minute int, ok bool) {
	h, m, found := strings.Cut(strings.TrimSpace(raw), ":")
	if !found {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return 0, 0, false
	}
	minute, err = strconv.Atoi(strings.TrimSpace(m))
	if err != nil {
		return 0, 0, false
	}
	if hour < 0 || hour >= 24 || minute < 0 || minute >= 60 {
		return 0, 0, false
	}
	return hour, minute, true
}

// ParseTime canonicalizes an H:MM / HH:MM fragment to HH:MM:00, or "" when
// the value is out of range or not a clock time at all.
func ParseTime(raw string) string {
	hour, minute, ok := parseClock(raw)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%02d:%02d:00", hour, minute)
}

// Duration computes end minus start as an HH:MM string from raw clock
// fragments. An end before the start rolls over midnight; identical times
// yield "00:00". Unparseable input yields "".
func Duration(startRaw, endRaw string) string {
	sh, sm, ok := parseClock(startRaw)
	if !ok {
		return ""
	}
	eh, em, ok := parseClock(endRaw)
	if !ok {
		return ""
	}

	start := sh*60 + sm
	end := eh*60 + em
	if end < start {
		end += 24 * 60
	}
	minutes := end - start
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
