// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package transport moves one HTTP request to a CouchDB server and
// brings back its response.  There are two interchangeable
// implementations: HTTPTransport, built on net/http, and RawTransport,
// which writes HTTP/1.1 by hand over a bare TCP connection.  Which one
// is used is chosen once, through a Strategy value.
//
// Transports do exactly one round trip per request.  They do not
// retry, pool connections, or follow redirects.
package transport

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// Header holds request headers.  Keys are sent exactly as supplied,
// including their case.
type Header map[string]string

// Clone returns a copy of h that can be modified freely.
func (h Header) Clone() Header {
	out := make(Header, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Request is a fully resolved request envelope.
type Request struct {
	// Method is the upper-case HTTP verb.
	Method string

	// URL is the absolute target URL.
	URL *url.URL

	// Header holds every header to send, including Host.
	Header Header

	// Body, if non-empty, is sent as the request body.
	Body []byte

	// Username and Password are sent as HTTP basic authentication
	// if Username is non-empty.
	Username string
	Password string
}

// Response is a complete HTTP response with its body already read.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// Transport performs one HTTP round trip.
type Transport interface {
	// RoundTrip sends req and reads the entire response.  Errors
	// describing a malformed exchange are of type *ErrProtocol;
	// anything else is a connection-level failure.
	RoundTrip(req *Request) (*Response, error)

	// Name identifies the strategy, e.g. "http" or "raw".
	Name() string
}

// DialFunc opens a connection to addr.  It has the signature of
// net.Dial.
type DialFunc func(network, addr string) (net.Conn, error)

// ErrProtocol is returned when the server's response could not be
// understood as HTTP, or when the exchange broke off mid-response.
type ErrProtocol struct {
	// Status is the status line, if one was read.
	Status string

	// StatusCode is the numeric status, if one was read.
	StatusCode int

	// Err is the underlying failure.
	Err error
}

func (e *ErrProtocol) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("protocol error: %v", e.Err)
	}
	return fmt.Sprintf("protocol error after %q: %v", e.Status, e.Err)
}

// Unwrap returns the underlying failure.
func (e *ErrProtocol) Unwrap() error {
	return e.Err
}
