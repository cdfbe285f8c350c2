package event

import (
	"errors"
	"fmt"
)

// ErrInvalidName is returned for event names outside [A-Za-z0-9-/:_].
var ErrInvalidName = errors.New("invalid event name")

// ValidateName checks that name is non-empty and only uses alphanumerics,
// '-', '/', ':' and '_'.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '/', r == ':', r == '_':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}
