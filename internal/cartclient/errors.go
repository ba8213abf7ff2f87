package cartclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	ErrTransport       = errors.New("cart transport failure")
	ErrServer          = errors.New("cart server failure")
	ErrAuthRequired    = errors.New("authentication required")
	ErrLocalStateMiss  = errors.New("item not found in local cart")
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")

	// ErrTimeout matches ErrServer as well.
	ErrTimeout = fmt.Errorf("request timed out: %w", ErrServer)
)

// StatusError is a non-200 answer from the cart API.
// A 401 on a mutating call matches ErrAuthRequired, every other status matches ErrServer.
type StatusError struct {
	Op       string
	Code     int
	Message  string
	Mutating bool
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.Code)
}

func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrAuthRequired:
		return e.authRequired()
	case ErrServer:
		return !e.authRequired()
	}
	return false
}

func (e *StatusError) authRequired() bool {
	return e.Mutating && e.Code == http.StatusUnauthorized
}

func transportFailure(op string, err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrTransport, err)
}
