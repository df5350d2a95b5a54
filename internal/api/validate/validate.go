package validate

import (
	"fmt"
	"regexp"
)

// tribeNameRx allows letters, digits, single spaces and a few separators.
var tribeNameRx = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 \-_']*$`)

// idRx accepts UUIDs and other opaque identifiers up to 64 chars.
var idRx = regexp.MustCompile(`^[A-Za-z0-9\-_:.]{1,64}$`)

// TribeName validates a tribe display name:
// - 1-80 bytes
// - letters/digits/space/hyphen/underscore/apostrophe only
// - no leading space
func TribeName(v string) error {
	if v == "" {
		return fmt.Errorf("name is required")
	}
	if len(v) > 80 {
		return fmt.Errorf("name exceeds 80 characters")
	}
	if !tribeNameRx.MatchString(v) {
		return fmt.Errorf("name contains invalid characters; allowed letters, digits, space, hyphen")
	}
	return nil
}

// ID validates an identifier path or query parameter.
func ID(field, v string) error {
	if v == "" {
		return fmt.Errorf("%s is required", field)
	}
	if !idRx.MatchString(v) {
		return fmt.Errorf("%s is not a valid identifier", field)
	}
	return nil
}

func NonEmpty(field, v string) error {
	if v == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

// MemberCount validates tribe size bounds.
func MemberCount(min, max int) error {
	if min < 2 {
		return fmt.Errorf("minMembers must be at least 2")
	}
	if max < min {
		return fmt.Errorf("maxMembers must be >= minMembers")
	}
	if max > 12 {
		return fmt.Errorf("maxMembers exceeds 12")
	}
	return nil
}
