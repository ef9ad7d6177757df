// Package failure defines the error categories that guarded operations use to
// signal what went wrong. The session guard classifies wrapped failures by
// checking for these sentinels with errors.Is.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDataAccess marks failures of the persistence layer.
	ErrDataAccess = errors.New("data access failure")
	// ErrInvalidArgument marks input rejected by the operation itself.
	ErrInvalidArgument = errors.New("invalid argument")
)

// DataAccess wraps err as a data access failure for the named operation.
// Both the category and the original cause remain reachable via errors.Is.
func DataAccess(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrDataAccess, op, err)
}

// InvalidArgument builds an invalid-argument failure with a formatted detail.
// A %w verb in format keeps the wrapped cause in the chain.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %w", ErrInvalidArgument, fmt.Errorf(format, args...))
}

// Detail strips the category prefix and returns the operation-specific part
// of a failure message. Errors outside the taxonomy are returned verbatim.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, category := range []error{ErrDataAccess, ErrInvalidArgument} {
		if !errors.Is(err, category) {
			continue
		}
		if rest, ok := strings.CutPrefix(msg, category.Error()+": "); ok {
			return rest
		}
	}
	return msg
}
