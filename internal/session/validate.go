package session

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidName is returned for session names outside ^[a-z0-9_-]{1,64}$.
var ErrInvalidName = errors.New("invalid session name")

var nameRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateName checks that name is usable as a directory under sessions/.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("%w %q: use 1-64 of a-z, 0-9, '-' or '_'", ErrInvalidName, name)
	}
	return nil
}
