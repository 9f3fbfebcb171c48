package crm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a page could not be fetched.
type ErrorKind string

const (
	// KindRequest means the request could not be built (bad page number, bad URL).
	KindRequest ErrorKind = "request"
	// KindTransport covers connection failures, timeouts and cancellations.
	KindTransport ErrorKind = "transport"
	// KindStatus means the CRM answered with a non-200 status.
	KindStatus ErrorKind = "status"
	// KindDecode means the body was not valid JSON.
	KindDecode ErrorKind = "decode"
)

// FetchError reports a failed page fetch.
type FetchError struct {
	Kind       ErrorKind
	Page       int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("crm: page %d: %s", e.Page, e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the underlying error.
func (e *FetchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf extracts the ErrorKind from err, or "" when err is not a FetchError.
func KindOf(err error) ErrorKind {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) && fetchErr != nil {
		return fetchErr.Kind
	}
	return ""
}
