package internal

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		value string
		want  time.Duration
	}{
		"empty":      {"", 0},
		"seconds":    {"120", 120 * time.Second},
		"padded":     {" 30 ", 30 * time.Second},
		"negative":   {"-5", 0},
		"http date":  {"Fri, 01 Mar 2024 10:02:00 GMT", 2 * time.Minute},
		"past date":  {"Fri, 01 Mar 2024 09:00:00 GMT", 0},
		"unparsable": {"soon", 0},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRetryAfter(tt.value, now))
		})
	}
}

func TestErrorHelpers(t *testing.T) {
	unavailable := fmt.Errorf("refreshing: %w", &ServiceUnavailableError{RetryAfter: time.Minute})
	e, ok := IsServiceUnavailable(unavailable)
	assert.True(t, ok)
	assert.Equal(t, time.Minute, e.RetryAfter)
	assert.EqualError(t, unavailable, "refreshing: service unavailable (retry after 1m0s)")

	cause := errors.New("401 Unauthorized")
	unauthorized := fmt.Errorf("sync: %w", &UnauthorizedError{Err: cause})
	assert.True(t, IsUnauthorized(unauthorized))
	assert.ErrorIs(t, unauthorized, cause)

	_, ok = IsServiceUnavailable(unauthorized)
	assert.False(t, ok)
	assert.False(t, IsUnauthorized(unavailable))
}
