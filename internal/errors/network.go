package errors

import "fmt"

// HTTPError reports a non-retryable 4xx/5xx HTTP response.
type HTTPError struct {
	Base   Error `json:"error"`
	URL    string `json:"url"`
	Status int    `json:"status"`
}

// NewHTTPError creates an HTTPError.
func NewHTTPError(url string, status int) *HTTPError {
	return &HTTPError{
		Base: Error{
			Category: CategoryNetwork,
			Code:     CodeHTTPError,
			Message:  fmt.Sprintf("request failed with status %d", status),
		},
		URL:    url,
		Status: status,
	}
}

func (e *HTTPError) Error() string     { return fmt.Sprintf("%s: %s", e.Base.Message, e.URL) }
func (e *HTTPError) ErrorCode() Code   { return e.Base.Code }
func (e *HTTPError) Is(target error) bool {
	t, ok := target.(*HTTPError)
	if !ok {
		return false
	}
	return e.Status == t.Status
}
