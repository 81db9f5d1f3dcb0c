package httpclient

import (
	"context"
	"net/http"

	"tilepipe/pkg/driver"
	"tilepipe/pkg/logging"
	"tilepipe/pkg/version"
)

// Driver provides the HTTP client used to download source rasters.
type Driver interface {
	Client() *http.Client
}

// Client returns the client of the active driver, wrapped with request logging.
func Client(ctx context.Context) (*http.Client, error) {
	d, err := driver.Get[Driver](ctx)
	if err != nil {
		return nil, err
	}
	return WithLogging(d).Client(), nil
}

// WithLogging wraps a Driver so that every HTTP request logs the URL at Debug
// level and carries the tilepipe User-Agent.
func WithLogging(d Driver) Driver {
	return &loggingDriver{inner: d}
}

type loggingDriver struct {
	inner Driver
}

func (d *loggingDriver) Client() *http.Client {
	c := d.inner.Client()
	base := c.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	clone := *c
	clone.Transport = &loggingTransport{base: base}
	return &clone
}

type loggingTransport struct {
	base http.RoundTripper
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	logging.GetLogger(req.Context()).Debug("http request", "method", req.Method, "url", req.URL.String())
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", "tilepipe/"+version.Version())
	}
	return t.base.RoundTrip(req)
}
