package fetcher

import (
	"errors"
	"fmt"
)

var (
	// ErrNoURL is returned for a request without a target.
	ErrNoURL = errors.New("fetcher: target URL is mandatory")
	// ErrBodyTooLarge is returned when a response body exceeds HTTP.MaxBody.
	ErrBodyTooLarge = errors.New("fetcher: response body too large")
)

// ResponseError reports a completed call whose response indicates failure.
// Payload is the body parsed the same way a successful body would be.
type ResponseError struct {
	Status  int
	Payload any
	Message string
}

func newResponseError(status int, payload any) *ResponseError {
	return &ResponseError{
		Status:  status,
		Payload: payload,
		Message: fmt.Sprintf("Error %d", status),
	}
}

func (e *ResponseError) Error() string { return e.Message }

// StatusOf returns the status carried by err, or 0 for transport failures.
func StatusOf(err error) int {
	var re *ResponseError
	if errors.As(err, &re) {
		return re.Status
	}
	return 0
}
