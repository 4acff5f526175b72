// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package couchclient

// This file provides the single path through which every call is
// turned into an authenticated HTTP request.

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-couchdb/couchdata"
	"github.com/diffeo/go-couchdb/transport"
	"github.com/jtacoma/uritemplates"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http/httpguts"
)

// Call describes one request relative to an entity.
type Call struct {
	// Endpoint is appended to the entity's base URL.  It may
	// carry a query string.
	Endpoint string

	// Method is the HTTP verb.  Defaults to GET.
	Method string

	// Header holds caller-supplied headers.  If it is empty,
	// "Accept: application/json" is sent.  Host and Referer are
	// always replaced.
	Header transport.Header

	// Raw, if non-empty, is sent verbatim as the body and takes
	// precedence over JSON.
	Raw []byte

	// JSON, if non-nil and Raw is empty, is encoded as the body.
	JSON interface{}

	// Admin selects the administrative listener.
	Admin bool
}

// Dispatcher performs calls.  It holds no per-call state and may be
// shared by any number of entities.
type Dispatcher struct {
	// Transport carries the request.  Required.
	Transport transport.Transport

	// Logger receives debug traces and failure reports.  Defaults
	// to the logrus standard logger.
	Logger *logrus.Logger

	// Clock times calls.  Defaults to wall-clock time.
	Clock clock.Clock
}

func (d *Dispatcher) logger() *logrus.Logger {
	if d.Logger == nil {
		return logrus.StandardLogger()
	}
	return d.Logger
}

func (d *Dispatcher) clock() clock.Clock {
	if d.Clock == nil {
		return clock.New()
	}
	return d.Clock
}

// Dispatch performs one call on behalf of entity.  It never panics
// and never returns an error value: every failure is reported in the
// returned Result.
func (d *Dispatcher) Dispatch(entity Entity, call Call) (result Result) {
	method := strings.ToUpper(call.Method)
	if method == "" {
		method = http.MethodGet
	}
	if d.Transport == nil {
		return Failure(&Error{Kind: KindRequest, Message: "no transport configured"})
	}
	strategy := d.Transport.Name()
	start := d.clock().Now()
	defer func() {
		if obj := recover(); obj != nil {
			result = Failure(&Error{
				Kind:     KindTransport,
				Strategy: strategy,
				Message:  fmt.Sprintf("%v", obj),
			})
		}
		observe(method, strategy, result, d.clock().Now().Sub(start))
	}()

	target := entity.resolve(call.Admin)
	req, failure := buildRequest(target, method, call)
	if failure != nil {
		d.logger().WithFields(logrus.Fields{
			"url":    target.BaseURL + call.Endpoint,
			"method": method,
			"err":    failure.Message,
		}).Error("Could not build CouchDB request")
		return Failure(failure)
	}

	log := d.logger().WithFields(logrus.Fields{
		"url":       req.URL.String(),
		"method":    method,
		"transport": strategy,
	})
	log.WithField("headers", redacted(req.Header)).Debug("Dispatching CouchDB request")

	resp, err := d.Transport.RoundTrip(req)
	if err != nil {
		failure := transportFailure(strategy, err)
		log.WithFields(logrus.Fields{
			"kind": failure.Kind,
			"err":  err,
		}).Warn("CouchDB request failed")
		return Failure(failure)
	}

	result = decodeResponse(resp)
	if f := result.Failure(); f != nil {
		log.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"err":    f.Message,
		}).Warn("Undecodable CouchDB response")
	} else {
		log.WithField("status", resp.StatusCode).Debug("CouchDB response")
	}
	return result
}

// buildRequest assembles the request envelope.  A non-nil *Error
// means the request could not be built.
func buildRequest(target Target, method string, call Call) (*transport.Request, *Error) {
	u, err := url.Parse(target.BaseURL + call.Endpoint)
	if err != nil {
		return nil, &Error{Kind: KindRequest, Message: err.Error()}
	}

	header := call.Header.Clone()
	if len(call.Header) == 0 {
		header["Accept"] = couchdata.JSONMediaType
	}
	setHeader(header, "Host", target.Host)
	setHeader(header, "Referer", target.Referer)
	if err := validateHeader(header); err != nil {
		return nil, &Error{Kind: KindRequest, Message: err.Error()}
	}

	var body []byte
	switch {
	case len(call.Raw) > 0:
		body = call.Raw
	case call.JSON != nil:
		body, err = couchdata.EncodeJSON(call.JSON)
		if err != nil {
			return nil, &Error{Kind: KindRequest, Message: err.Error()}
		}
		if !hasHeader(header, "Content-Type") {
			header["Content-Type"] = couchdata.JSONMediaType
		}
	}

	return &transport.Request{
		Method:   method,
		URL:      u,
		Header:   header,
		Body:     body,
		Username: target.Credentials.Username,
		Password: target.Credentials.Password,
	}, nil
}

// setHeader replaces every spelling of key with a single entry.
func setHeader(header transport.Header, key, value string) {
	for k := range header {
		if strings.EqualFold(k, key) {
			delete(header, k)
		}
	}
	header[key] = value
}

func hasHeader(header transport.Header, key string) bool {
	for k := range header {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

// validateHeader rejects header names that are not HTTP tokens and
// values carrying control characters, so that no strategy can put a
// line break on the wire.
func validateHeader(header transport.Header) error {
	for k, v := range header {
		if !httpguts.ValidHeaderFieldName(k) {
			return fmt.Errorf("invalid header name %q", k)
		}
		if !httpguts.ValidHeaderFieldValue(v) {
			return fmt.Errorf("invalid value for header %s", k)
		}
	}
	return nil
}

// redacted returns a copy of header safe to log.
func redacted(header transport.Header) transport.Header {
	out := header.Clone()
	for k := range out {
		if strings.EqualFold(k, "Authorization") {
			out[k] = "<redacted>"
		}
	}
	return out
}

// transportFailure converts a transport error into a failure.
func transportFailure(strategy string, err error) *Error {
	var protocol *transport.ErrProtocol
	if errors.As(err, &protocol) {
		return &Error{
			Kind:       KindProtocol,
			Strategy:   strategy,
			Message:    err.Error(),
			StatusCode: protocol.StatusCode,
			Reason:     protocol.Status,
		}
	}
	return &Error{
		Kind:     KindTransport,
		Strategy: strategy,
		Message:  err.Error(),
	}
}

// decodeResponse decodes the body of a received response.
func decodeResponse(resp *transport.Response) Result {
	body, err := couchdata.DecodeJSON(resp.Body)
	if err != nil {
		return Failure(&Error{
			Kind:       KindDecode,
			StatusCode: resp.StatusCode,
			Reason:     resp.Status,
			Message:    err.Error(),
			Content:    string(resp.Body),
		})
	}
	return Success(resp.StatusCode, body)
}

// expand fills in a URI template such as "_config{/section,key}".
// Values that are empty strings are left out entirely.
func expand(template string, vars map[string]interface{}) (string, error) {
	tmpl, err := uritemplates.Parse(template)
	if err != nil {
		return "", err
	}
	values := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		if s, isString := v.(string); isString && s == "" {
			continue
		}
		values[k] = v
	}
	return tmpl.Expand(values)
}

// templateCall builds a call whose endpoint is a URI template.  If
// the template cannot be expanded the returned Result is a
// KindRequest failure and ok is false.
func templateCall(template string, vars map[string]interface{}, call Call) (Call, Result, bool) {
	endpoint, err := expand(template, vars)
	if err != nil {
		return call, Failure(&Error{Kind: KindRequest, Message: err.Error()}), false
	}
	call.Endpoint = endpoint
	return call, Result{}, true
}
