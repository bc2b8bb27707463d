package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/jakovchuk/socalska-report-bot/core/telegram/netutil"
)

// Long polling holds a request open for the poll timeout, so the client
// timeout must stay above the largest allowed LongPollTimeoutSeconds.
const (
	clientTimeout       = 75 * time.Second
	dialTimeout         = 5 * time.Second
	tlsHandshakeTimeout = 5 * time.Second
	idleConnTimeout     = 90 * time.Second
	retryBackoff        = time.Second
)

// BuildHTTPClient returns the client telebot uses for API calls. retries
// bounds how often a request that never reached Telegram is re-sent.
func BuildHTTPClient(retries int) *http.Client {
	var rt http.RoundTripper = &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     idleConnTimeout,
		TLSHandshakeTimeout: tlsHandshakeTimeout,
	}
	if retries > 0 {
		rt = &retryTransport{base: rt, maxRetries: retries, backoff: retryBackoff}
	}
	return &http.Client{Timeout: clientTimeout, Transport: rt}
}

type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	for attempt := 1; err != nil && attempt <= t.maxRetries && netutil.ShouldRetry(err); attempt++ {
		next, rerr := rewind(req)
		if rerr != nil {
			return nil, err
		}
		if werr := t.wait(req, attempt); werr != nil {
			return nil, werr
		}
		resp, err = t.base.RoundTrip(next)
	}
	return resp, err
}

func (t *retryTransport) wait(req *http.Request, attempt int) error {
	if t.backoff <= 0 {
		return nil
	}
	timer := time.NewTimer(t.backoff * time.Duration(attempt))
	defer timer.Stop()
	select {
	case <-req.Context().Done():
		return req.Context().Err()
	case <-timer.C:
		return nil
	}
}

// rewind clones req with a fresh body for another attempt.
func rewind(req *http.Request) (*http.Request, error) {
	next := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return next, nil
	}
	if req.GetBody == nil {
		return nil, http.ErrBodyNotAllowed
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	next.Body = body
	return next, nil
}
