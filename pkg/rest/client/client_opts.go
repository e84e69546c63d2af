package client

import (
	"net/http"
	"time"
)

// Option adjusts the client configuration.
type Option func(*options)

type options struct {
	transport http.RoundTripper
	timeout   time.Duration
}

func defaultOptions() *options {
	return &options{
		timeout: 30 * time.Second,
	}
}

// WithTimeout overrides the default 30 second request timeout. Long-poll
// calls hold a request open for up to 25 seconds, so values below that will
// truncate NextMessage.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// WithTransport sets the HTTP transport used for requests.
func WithTransport(transport http.RoundTripper) Option {
	return func(o *options) {
		o.transport = transport
	}
}
