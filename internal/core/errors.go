package core

import "fmt"

// HTTPError carries the status code an error should be answered with.
type HTTPError struct {
	StatusCode int
	Wrapped    error
}

func (e HTTPError) Error() string {
	return e.Wrapped.Error()
}

func (e HTTPError) Unwrap() error {
	return e.Wrapped
}

func NewHTTPError(statusCode int, err error) HTTPError {
	return HTTPError{
		StatusCode: statusCode,
		Wrapped:    err,
	}
}

// HTTPErrorf is NewHTTPError with a formatted error.
func HTTPErrorf(statusCode int, format string, args ...any) HTTPError {
	return NewHTTPError(statusCode, fmt.Errorf(format, args...))
}
