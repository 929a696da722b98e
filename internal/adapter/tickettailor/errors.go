package tickettailor

import "fmt"

// APIError is returned for every failed request. StatusCode is zero for
// transport failures (timeouts, DNS, refused connections).
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Transport reports whether the request never produced an HTTP response.
func (e *APIError) Transport() bool {
	return e.StatusCode == 0
}

func transportError(err error) *APIError {
	return &APIError{Message: err.Error(), Err: err}
}

func statusError(code int, message string) *APIError {
	if message == "" {
		message = fmt.Sprintf("HTTP %d", code)
	}
	return &APIError{StatusCode: code, Message: message}
}
