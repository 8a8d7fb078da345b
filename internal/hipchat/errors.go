package hipchat

import (
	"errors"
	"fmt"
)

// ErrInvalidTokenResponse means the token endpoint answered 2xx without the fields a
// credential needs. It points to a misconfigured installation, retrying won't help.
var ErrInvalidTokenResponse = errors.New("invalid token response")

// ErrMissingHostURLs means the host capabilities document lacks the token or API url.
var ErrMissingHostURLs = errors.New("host capabilities document is missing tokenUrl or api url")

// UpstreamError is a non-2xx answer from the host.
type UpstreamError struct {
	Op         string
	URL        string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s answered with status %d", e.Op, e.URL, e.StatusCode)
}
