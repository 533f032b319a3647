package dav

import (
	"fmt"
	"net/http"
	"time"

	"github.com/emersion/go-webdav"

	"github.com/guilherme-santos/davsync/internal"
)

// statusClient turns the HTTP statuses the sync run treats specially into
// typed errors before the DAV client parses the response.
type statusClient struct {
	base webdav.HTTPClient
	now  func() time.Time

	// err is the last status error returned, kept because the DAV client
	// does not always wrap the transport error it received.
	err error
}

func newStatusClient(base webdav.HTTPClient) *statusClient {
	return &statusClient{base: base, now: time.Now}
}

func (c *statusClient) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}

	cause := fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, resp.Status)
	switch resp.StatusCode {
	case http.StatusServiceUnavailable, http.StatusTooManyRequests:
		retryAfter := internal.ParseRetryAfter(resp.Header.Get("Retry-After"), c.now())
		resp.Body.Close()
		c.err = &internal.ServiceUnavailableError{RetryAfter: retryAfter, Err: cause}
		return nil, c.err
	case http.StatusUnauthorized, http.StatusForbidden:
		resp.Body.Close()
		c.err = &internal.UnauthorizedError{Err: cause}
		return nil, c.err
	}
	return resp, nil
}

// wrap returns err, or the status error behind it when the DAV client lost
// the error chain.
func (c *statusClient) wrap(err error) error {
	if err == nil || c.err == nil {
		return err
	}
	if _, ok := internal.IsServiceUnavailable(err); ok || internal.IsUnauthorized(err) {
		return err
	}
	return c.err
}
