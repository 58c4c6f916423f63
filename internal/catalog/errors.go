package catalog

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-storefront/internal/domain/product"
)

// ErrUnavailable is returned while the circuit breaker rejects calls to the
// catalog API.
var ErrUnavailable = errors.New("catalog temporarily unavailable")

// StatusError is a non-2xx response from the catalog API.
type StatusError struct {
	Code int
	// Message is the "message" field of the response body, if any.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("catalog: status %d", e.Code)
	}
	return fmt.Sprintf("catalog: status %d: %s", e.Code, e.Message)
}

// Is makes a 404 match product.ErrNotFound.
func (e *StatusError) Is(target error) bool {
	return target == product.ErrNotFound && e.Code == http.StatusNotFound
}

// ErrorMessage maps any catalog failure into a display string: the server's
// message when the API returned one, otherwise the error text. It returns ""
// only for a nil error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "request failed"
}
