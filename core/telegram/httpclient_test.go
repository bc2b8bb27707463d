package telegram

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyTransport struct {
	calls int
	fails int
	err   error
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.calls++
	if f.calls <= f.fails {
		return nil, f.err
	}
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
}

var dialErr = &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

func TestBuildHTTPClientNoRetriesByDefault(t *testing.T) {
	c := BuildHTTPClient(0)
	_, isRetry := c.Transport.(*retryTransport)
	assert.False(t, isRetry)

	c = BuildHTTPClient(2)
	rt, isRetry := c.Transport.(*retryTransport)
	require.True(t, isRetry)
	assert.Equal(t, 2, rt.maxRetries)
}

func TestRetryTransportRetriesDialErrors(t *testing.T) {
	base := &flakyTransport{fails: 1, err: dialErr}
	rt := &retryTransport{base: base, maxRetries: 2}

	req, err := http.NewRequest(http.MethodPost, "https://api.telegram.org/x", strings.NewReader("a=b"))
	require.NoError(t, err)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, base.calls)
}

func TestRetryTransportGivesUp(t *testing.T) {
	base := &flakyTransport{fails: 10, err: dialErr}
	rt := &retryTransport{base: base, maxRetries: 2}

	req, err := http.NewRequest(http.MethodGet, "https://api.telegram.org/x", nil)
	require.NoError(t, err)
	_, err = rt.RoundTrip(req)
	assert.Error(t, err)
	assert.Equal(t, 3, base.calls)
}

func TestRetryTransportSkipsPermanentErrors(t *testing.T) {
	base := &flakyTransport{fails: 10, err: errors.New("x509: certificate signed by unknown authority")}
	rt := &retryTransport{base: base, maxRetries: 2}

	req, err := http.NewRequest(http.MethodGet, "https://api.telegram.org/x", nil)
	require.NoError(t, err)
	_, err = rt.RoundTrip(req)
	assert.Error(t, err)
	assert.Equal(t, 1, base.calls)
}
