// Package scraper holds what every retailer scraping step shares: the error taxonomy.
//
// scraping a retailer is read-only and mostly stateless, each method depends solely on its
// input. EXCEPT for the session cookies, those are an implied input primed per fetch.
//
// each scraping step generally has this structure:
// 1. make assertions on input validity (supported retailer, parseable url).
// 2. transform input into an HTTP request (url, identity headers, cookies).
// 3. make the request, retrying according to the status.
// 4. make assertions on response validity (status, body present).
// 5. transform the markup into output with an ordered list of goquery selectors.
//
// the fetch package owns 2-4, the stores package owns 5 and the discovery package
// combines both into a search across retailers.
package scraper

import (
	"errors"
	"fmt"
)

// Cause is the tag carried by a ScraperError.
type Cause string

const (
	CauseForbidden        Cause = "forbidden"
	CauseRateLimited      Cause = "rate_limited"
	CauseServerError      Cause = "server_error"
	CauseTimeout          Cause = "timeout"
	CauseConnectionFailed Cause = "connection_failed"
	CauseUnsupported      Cause = "unsupported"
	CauseNotFound         Cause = "not_found"
)

// ScraperError is returned by every step of the scraping pipeline when it cannot
// ultimately succeed.
type ScraperError struct {
	Cause Cause
	// URL is empty when the failure happened before a request was made.
	URL string
	Err error
}

func (e *ScraperError) Error() string {
	msg := fmt.Sprintf("scraper: %s", e.Cause)
	if e.URL != "" {
		msg += fmt.Sprintf(" (%s)", e.URL)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ScraperError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, scraper.ErrForbidden) match any ScraperError with the same cause.
func (e *ScraperError) Is(target error) bool {
	t, ok := target.(*ScraperError)
	if !ok {
		return false
	}
	return t.URL == "" && t.Err == nil && t.Cause == e.Cause
}

var (
	ErrForbidden        = &ScraperError{Cause: CauseForbidden}
	ErrRateLimited      = &ScraperError{Cause: CauseRateLimited}
	ErrServerError      = &ScraperError{Cause: CauseServerError}
	ErrTimeout          = &ScraperError{Cause: CauseTimeout}
	ErrConnectionFailed = &ScraperError{Cause: CauseConnectionFailed}
	ErrUnsupported      = &ScraperError{Cause: CauseUnsupported}
	ErrNotFound         = &ScraperError{Cause: CauseNotFound}
)

// Errorf creates a ScraperError with a formatted underlying error.
func Errorf(cause Cause, url string, format string, args ...any) *ScraperError {
	return &ScraperError{Cause: cause, URL: url, Err: fmt.Errorf(format, args...)}
}

// CauseOf returns the cause of the first ScraperError in err's chain, or "" if there is none.
func CauseOf(err error) Cause {
	var se *ScraperError
	if errors.As(err, &se) {
		return se.Cause
	}
	return ""
}
