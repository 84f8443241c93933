package oauth

import (
	"net/http"
	"time"
)

// RetryingDoer retries transient transport failures: network errors and 5xx
// responses. 4xx responses pass through untouched; they are vendor verdicts,
// not weather.
//
// Retry lives here, at the transport layer, and nowhere else. In particular
// the refresh-coordination logic never retries on its own, so a flaky vendor
// cannot trigger a refresh storm.
type RetryingDoer struct {
	Base       Doer
	MaxRetries int
	Backoff    time.Duration

	// sleep is injectable for tests.
	sleep func(time.Duration)
}

func NewRetryingDoer(base Doer) *RetryingDoer {
	return &RetryingDoer{Base: base, MaxRetries: 2, Backoff: 500 * time.Millisecond}
}

func (d *RetryingDoer) Do(req *http.Request) (*http.Response, error) {
	maxRetries := d.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := d.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	sleep := d.sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var resp *http.Response
	var err error
	for attempt := 0; ; attempt++ {
		resp, err = d.Base.Do(req)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}
		if attempt >= maxRetries {
			return resp, err
		}
		if req.Context().Err() != nil {
			return resp, err
		}
		if resp != nil {
			resp.Body.Close()
		}
		// Requests with a body need GetBody to be replayable.
		if req.Body != nil {
			if req.GetBody == nil {
				return resp, err
			}
			body, rewindErr := req.GetBody()
			if rewindErr != nil {
				return resp, err
			}
			req.Body = body
		}
		sleep(backoff * time.Duration(1<<attempt))
	}
}
