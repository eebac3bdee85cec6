package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/tunerover/core/telegram/netutil"
)

const (
	defaultClientTimeout = 60 * time.Second
	// Bot API answers getUpdates only after the long poll expires.
	headerSlack = 10 * time.Second

	retryAttempts = 3
	retryBackoff  = 2 * time.Second
)

// BuildHTTPClient returns the client used for Bot API calls and file
// downloads. Timeouts are stretched past longPoll so getUpdates can block.
func BuildHTTPClient(longPoll time.Duration) *http.Client {
	longPoll = max(longPoll, 0)
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: longPoll + headerSlack,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   max(defaultClientTimeout, longPoll+2*headerSlack),
		Transport: &retrying{next: base, retries: retryAttempts, backoff: retryBackoff},
	}
}

// retrying repeats requests that failed with a transient network error.
// Requests with a body that cannot be rewound are sent once.
type retrying struct {
	next    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *retrying) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	resp, err := next.RoundTrip(req)
	for attempt := 1; err != nil && attempt <= t.retries && netutil.ShouldRetry(err); attempt++ {
		if req.Body != nil && req.GetBody == nil {
			break
		}
		if werr := t.wait(req, attempt); werr != nil {
			return nil, werr
		}
		again := req.Clone(req.Context())
		if req.GetBody != nil {
			body, berr := req.GetBody()
			if berr != nil {
				return nil, berr
			}
			again.Body = body
		}
		resp, err = next.RoundTrip(again)
	}
	return resp, err
}

// wait sleeps a linearly growing backoff or returns the request's ctx error.
func (t *retrying) wait(req *http.Request, attempt int) error {
	delay := t.backoff * time.Duration(attempt)
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-req.Context().Done():
		return req.Context().Err()
	case <-timer.C:
		return nil
	}
}
