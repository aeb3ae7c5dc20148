// Package phone normalizes applicant phone numbers to strict E.164.
package phone

import (
	"regexp"
	"strings"
)

// e164 matches a plus sign, a non-zero country code digit, then 7 to 14
// further digits, per the E.164 numbering plan.
var e164 = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)

// NormalizeE164 converts raw input to canonical E.164 form. A bare ten-digit
// number is assumed to be US/Canada and gains a +1 country code; anything
// else must already reduce to +<country><number>. The boolean reports
// whether the input was acceptable.
func NormalizeE164(raw string) (string, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	if cleaned == "" {
		return "", false
	}

	if !strings.HasPrefix(cleaned, "+") {
		if len(cleaned) == 10 && allDigits(cleaned) {
			cleaned = "+1" + cleaned
		} else if allDigits(cleaned) {
			cleaned = "+" + cleaned
		} else {
			return "", false
		}
	}

	if !e164.MatchString(cleaned) {
		return "", false
	}
	return cleaned, true
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
