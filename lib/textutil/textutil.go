package textutil

import (
	"html"
	"regexp"
	"strings"
)

// The accessibility dumps are machine-generated and occasionally truncated
// mid-element, so fragments are pulled out with a plain attribute scan
// rather than a strict markup parser.
var textAttrRegex = regexp.MustCompile(`text="([^"]*)"`)

// Fragments flattens an accessibility-tree dump into the ordered sequence of
// non-empty text fragments every screen parser consumes. Entities are
// decoded and embedded newlines split into separate fragments.
func Fragments(markup string) []string {
	var out []string
	for _, m := range textAttrRegex.FindAllStringSubmatch(markup, -1) {
		decoded := html.UnescapeString(m[1])
		for _, line := range strings.Split(decoded, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				out = append(out, line)
			}
		}
	}
	return out
}

var postcodeRegex = regexp.MustCompile(`(?i)\b([A-Z]{1,2}\d{1,2}[A-Z]?\s*\d[A-Z]{2})\b`)

// SanitizePostcode finds the first UK-shaped postcode in raw and normalizes
// it to uppercase with a single space before the inward code. Returns ""
// when nothing postcode-shaped is present.
func SanitizePostcode(raw string) string {
	m := postcodeRegex.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	postcode := strings.ToUpper(m[1])

	if !strings.Contains(postcode, " ") {
		if len(postcode) >= 5 {
			return postcode[:len(postcode)-3] + " " + postcode[len(postcode)-3:]
		}
		return postcode
	}

	parts := strings.Fields(postcode)
	if len(parts) == 2 {
		return parts[0] + " " + parts[1]
	}
	return strings.Join(parts, " ")
}

// Obvious non-entries seen in the contact phone slot.
var invalidPhonePlaceholders = map[string]bool{
	"undefined": true,
	"null":      true,
	"na":        true,
	"n/a":       true,
	"0":         true,
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// ValidatePhone rejects obvious placeholder values for a phone number and
// returns the trimmed string otherwise. It is deliberately lenient: oddly
// formatted but plausibly real numbers pass through untouched.
func ValidatePhone(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return ""
	}
	if invalidPhonePlaceholders[strings.ToLower(cleaned)] {
		return ""
	}
	if isAllDigits(cleaned) && len(cleaned) <= 4 {
		return ""
	}
	return cleaned
}
