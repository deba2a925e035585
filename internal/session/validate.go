package session

import (
	"fmt"
	"regexp"
)

var orgRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateOrg checks that an organization id is safe to use as a directory
// name and session key.
func ValidateOrg(org string) error {
	if !orgRegexp.MatchString(org) {
		return fmt.Errorf("invalid organization id %q: must match ^[a-z0-9_-]{1,64}$", org)
	}
	return nil
}
