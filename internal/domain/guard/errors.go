package guard

import (
	"errors"
	"net/http"

	"github.com/Sentinel-Gate/sessiongate/internal/domain/failure"
)

// ErrMissingSession is returned when a guarded call carries no session
// handle at all. This is a wiring defect of the host, not a client error.
var ErrMissingSession = errors.New("guarded call has no session context")

// Kind classifies a failure of the wrapped operation.
type Kind int

const (
	// KindUnexpected covers every failure outside the other categories.
	KindUnexpected Kind = iota
	// KindDataAccess marks persistence failures.
	KindDataAccess
	// KindInvalidArgument marks input rejected by the operation.
	KindInvalidArgument
)

func (k Kind) String() string {
	switch k {
	case KindDataAccess:
		return "data_access"
	case KindInvalidArgument:
		return "invalid_argument"
	default:
		return "unexpected"
	}
}

// OperationError reports a failure raised by the wrapped operation.
// Cause is always the original error.
type OperationError struct {
	Kind Kind
	// Message is the localized category message.
	Message string
	Cause   error
}

func (e *OperationError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	if e.nested() != nil {
		return e.Cause.Error()
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *OperationError) Unwrap() error { return e.Cause }

// Status returns the HTTP status a host should answer with.
func (e *OperationError) Status() int {
	if e.Kind == KindInvalidArgument {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the text that may be shown to clients. Data access
// failures never expose their cause.
func (e *OperationError) PublicMessage() string {
	if inner := e.nested(); inner != nil {
		return inner.PublicMessage()
	}
	if e.Kind == KindDataAccess || e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + failure.Detail(e.Cause)
}

// nested returns an OperationError wrapped somewhere in Cause, if any.
func (e *OperationError) nested() *OperationError {
	var inner *OperationError
	if errors.As(e.Cause, &inner) {
		return inner
	}
	return nil
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, failure.ErrDataAccess):
		return KindDataAccess
	case errors.Is(err, failure.ErrInvalidArgument):
		return KindInvalidArgument
	default:
		return KindUnexpected
	}
}
