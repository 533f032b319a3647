package google

import (
	"errors"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/guilherme-santos/davsync/internal"
)

// mapError turns API errors into the transient and authorization errors the
// sync run classifies on.
func mapError(err error) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		return &internal.UnauthorizedError{Err: err}
	}

	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		return err
	}

	switch {
	case gErr.Code == http.StatusServiceUnavailable,
		gErr.Code == http.StatusTooManyRequests,
		shouldRetry(err):
		return &internal.ServiceUnavailableError{
			RetryAfter: internal.ParseRetryAfter(gErr.Header.Get("Retry-After"), time.Now()),
			Err:        err,
		}
	case gErr.Code == http.StatusUnauthorized,
		gErr.Code == http.StatusForbidden:
		return &internal.UnauthorizedError{Err: err}
	}
	return err
}

func shouldRetry(err error) bool {
	return errIsReason(err, "rateLimitExceeded") || errIsReason(err, "userRateLimitExceeded")
}

func syncTokenExpired(err error) bool {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code == http.StatusGone {
		return true
	}
	return errIsReason(err, "fullSyncRequired")
}

func errIsReason(err error, reason string) bool {
	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		return false
	}

	for _, err := range gErr.Errors {
		switch err.Reason {
		case reason:
			return true
		}
	}
	return false
}
