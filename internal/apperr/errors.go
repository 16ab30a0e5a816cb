package apperr

import (
	"errors"
	"fmt"
)

// Sentinel kinds for the booking domain. Callers classify with errors.Is and
// wrap with E to keep the kind while adding detail.
var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrNotFound             = errors.New("not found")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrOutOfWorkingHours    = errors.New("outside working hours")
	ErrConflict             = errors.New("conflict")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidState         = errors.New("invalid state")
	ErrInternal             = errors.New("internal error")
)

// E wraps a sentinel kind with a formatted message. The result satisfies
// errors.Is(err, kind).
func E(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
