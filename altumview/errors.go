package altumview

import (
	"fmt"
	"net/http"
)

// StatusError is returned when the API answers with anything other than 200.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
	Body       string // The start of the response body.
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("request to %s failed: %s", e.URL, e.Status)
	}
	return fmt.Sprintf("request to %s failed: %s: %s", e.URL, e.Status, e.Body)
}

// Retryable returns true if the same request may succeed later.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
