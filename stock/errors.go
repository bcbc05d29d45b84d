package stock

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport covers timeouts, connection failures and non-2xx responses.
	ErrTransport = errors.New("stock api transport error")
	// ErrInvalidShape means the stock payload lacked the expected structure.
	ErrInvalidShape = errors.New("stock api returned an unexpected shape")
)

// ErrorKind classifies a fetch failure.
type ErrorKind int

const (
	KindTransport ErrorKind = iota
	KindInvalidShape
)

// String returns a human-readable name for the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindInvalidShape:
		return "invalid_shape"
	default:
		return "unknown"
	}
}

// FetchError is returned by Fetcher.Fetch. Both kinds are recoverable; callers
// report them and keep their schedule.
type FetchError struct {
	Kind     ErrorKind
	Endpoint string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.Endpoint, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrInvalidShape:
		return e.Kind == KindInvalidShape
	}
	return false
}

// Classify returns the kind of a fetch error, defaulting to KindTransport for
// errors that did not come from this package.
func Classify(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, ErrInvalidShape) {
		return KindInvalidShape
	}
	return KindTransport
}
