// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/ioutil"
	"net"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPTransport is the primary strategy.  It uses net/http with
// keep-alives disabled, wrapped in OpenTelemetry instrumentation so
// every call produces a client span against the global tracer
// provider.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport creates an HTTPTransport.  If dial is non-nil it is
// used to open every connection, regardless of the URL's host.
func NewHTTPTransport(dial DialFunc) *HTTPTransport {
	base := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		DisableKeepAlives: true,
	}
	if dial != nil {
		base.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return dial(network, addr)
		}
	}
	return &HTTPTransport{
		client: &http.Client{
			Transport: otelhttp.NewTransport(base),
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Name returns "http".
func (t *HTTPTransport) Name() string {
	return HTTP
}

// RoundTrip performs the request through net/http.
func (t *HTTPTransport) RoundTrip(r *Request) (*Response, error) {
	var body io.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequest(r.Method, r.URL.String(), body)
	if err != nil {
		return nil, err
	}
	for k, v := range r.Header {
		if strings.EqualFold(k, "Host") {
			req.Host = v
			continue
		}
		// Assign directly so the key keeps the caller's case
		req.Header[k] = []string{v}
	}
	if r.Username != "" {
		req.SetBasicAuth(r.Username, r.Password)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, classifyHTTPError(err)
	}
	defer resp.Body.Close()

	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, &ErrProtocol{Status: resp.Status, StatusCode: resp.StatusCode, Err: err}
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// classifyHTTPError separates connection failures, which net/http
// reports as *net.OpError, from failures to parse what the server
// sent back.
func classifyHTTPError(err error) error {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return err
	}
	return &ErrProtocol{Err: err}
}
