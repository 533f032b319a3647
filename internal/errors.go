package internal

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnsupportedService = errors.New("service type not supported by provider")
)

// ServiceUnavailableError is returned when the remote signals a temporary
// outage. RetryAfter is zero when the server did not suggest a delay.
type ServiceUnavailableError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ServiceUnavailableError) Error() string {
	msg := "service unavailable"
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ServiceUnavailableError) Unwrap() error {
	return e.Err
}

// UnauthorizedError is returned when the remote rejects the credentials.
type UnauthorizedError struct {
	Err error
}

func (e *UnauthorizedError) Error() string {
	if e.Err != nil {
		return "unauthorized: " + e.Err.Error()
	}
	return "unauthorized"
}

func (e *UnauthorizedError) Unwrap() error {
	return e.Err
}

func IsServiceUnavailable(err error) (*ServiceUnavailableError, bool) {
	var target *ServiceUnavailableError
	ok := errors.As(err, &target)
	return target, ok
}

func IsUnauthorized(err error) bool {
	var target *UnauthorizedError
	return errors.As(err, &target)
}

// ParseRetryAfter reads a Retry-After header value, either delta seconds or
// an HTTP date. It returns zero when the value is absent or unusable.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}
