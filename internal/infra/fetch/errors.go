package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUpstreamFetchFailed  = errors.New("upstream fetch failed")
	ErrDownloadLinkNotFound = errors.New("download link not found in resolver stream")
)

// StatusError carries the upstream HTTP status of a failed fetch.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: upstream %s returned %d %s", ErrUpstreamFetchFailed, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *StatusError) Unwrap() error {
	return ErrUpstreamFetchFailed
}

// Permanent reports whether retrying the same request cannot succeed.
func (e *StatusError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests && e.StatusCode != http.StatusRequestTimeout
}

// IsPermanent reports whether err is a fetch failure not worth retrying.
func IsPermanent(err error) bool {
	if errors.Is(err, ErrDownloadLinkNotFound) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Permanent()
}
