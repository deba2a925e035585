package dispatch

import (
	"fmt"
	"strings"
)

// NormalizePhone reduces a user-entered phone number to the digits-only
// form the transport expects. Formatting characters and a leading + are
// tolerated; anything else is rejected.
func NormalizePhone(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "+")

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// formatting noise
		default:
			return "", fmt.Errorf("%w: phone number contains invalid character %q", ErrValidation, r)
		}
	}

	digits := b.String()
	if len(digits) < 8 || len(digits) > 15 {
		return "", fmt.Errorf("%w: phone number must have 8-15 digits, got %d", ErrValidation, len(digits))
	}
	return digits, nil
}
