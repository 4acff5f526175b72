// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package couchclient

import (
	"fmt"

	"github.com/diffeo/go-couchdb/couchdata"
	"github.com/diffeo/go-couchdb/transport"
)

// Kind classifies why a call produced no usable response.
type Kind int

const (
	// KindRequest means the request could not be built; no I/O
	// was attempted.
	KindRequest Kind = iota + 1

	// KindTransport means the connection failed: refused, reset,
	// unresolvable, and so on.
	KindTransport

	// KindProtocol means the server answered with something that
	// was not a well-formed HTTP response.
	KindProtocol

	// KindDecode means the response body was not JSON.
	KindDecode

	// KindPrecondition means an entity refused to issue the call,
	// for instance creating a database that already exists.
	KindPrecondition
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindDecode:
		return "decode"
	case KindPrecondition:
		return "precondition"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error describes a failed call.
type Error struct {
	Kind Kind

	// Message is a human-readable description.
	Message string

	// Strategy names the transport that failed, for transport
	// and protocol failures.
	Strategy string

	// StatusCode is the HTTP status, if one was received.
	StatusCode int

	// Reason is the HTTP status line, for protocol failures.
	Reason string

	// Content is the raw response body or protocol detail, if any.
	Content string

	// Code is the error code of a precondition failure, "400" or
	// "500".
	Code string

	// Body carries structured detail of a precondition failure.
	Body map[string]interface{}
}

func (e *Error) Error() string {
	return fmt.Sprintf("couchdb %v error: %s", e.Kind, e.Message)
}

// Result is the outcome of one call.  If the call failed, Failure()
// is non-nil and there is no body.  Otherwise Body holds the decoded
// JSON response, which may still be a CouchDB error object; see
// RemoteError().
type Result struct {
	// StatusCode is the HTTP status of the response, or 0 if
	// there was none.
	StatusCode int

	// Body is the decoded response: map[string]interface{},
	// []interface{}, a scalar, or nil.
	Body interface{}

	failure *Error
}

// Success creates a successful Result.
func Success(status int, body interface{}) Result {
	return Result{StatusCode: status, Body: body}
}

// Failure creates a failed Result.
func Failure(e *Error) Result {
	return Result{StatusCode: e.StatusCode, failure: e}
}

// precondition creates the failure an entity returns when it refuses
// to issue a call.
func precondition(code, message string) Result {
	return Failure(&Error{Kind: KindPrecondition, Code: code, Message: message})
}

// OK returns true if a response was received and decoded.
func (r Result) OK() bool {
	return r.failure == nil
}

// Failure returns the failure, or nil on success.
func (r Result) Failure() *Error {
	return r.failure
}

// Err returns the failure as an error, or nil on success.  CouchDB
// error bodies are not failures; see RemoteError().
func (r Result) Err() error {
	if r.failure == nil {
		return nil
	}
	return r.failure
}

// Object returns the body if it is a JSON object, or nil.
func (r Result) Object() map[string]interface{} {
	obj, _ := r.Body.(map[string]interface{})
	return obj
}

// List returns the body if it is a JSON array, or nil.
func (r Result) List() []interface{} {
	list, _ := r.Body.([]interface{})
	return list
}

// Has returns true if the body is an object containing key.
func (r Result) Has(key string) bool {
	_, present := r.Object()[key]
	return present
}

// Get returns a key of an object body, or nil.
func (r Result) Get(key string) interface{} {
	return r.Object()[key]
}

// GetString returns a string-valued key of an object body, or "".
func (r Result) GetString(key string) string {
	s, _ := r.Get(key).(string)
	return s
}

// GetBool returns a boolean-valued key of an object body, or false.
func (r Result) GetBool(key string) bool {
	b, _ := r.Get(key).(bool)
	return b
}

// GetStrings returns the string members of an array-valued key of an
// object body, or of the body itself if key is "".
func (r Result) GetStrings(key string) []string {
	var list []interface{}
	if key == "" {
		list = r.List()
	} else {
		list, _ = r.Get(key).([]interface{})
	}
	return toStrings(list)
}

// RemoteError returns CouchDB's own error object if the body is one.
func (r Result) RemoteError() *couchdata.ErrorResponse {
	if r.failure != nil {
		return nil
	}
	return couchdata.ErrorFromValue(r.Body)
}

// Decode fills out, which must be of pointer type, from the body.
func (r Result) Decode(out interface{}) error {
	if r.failure != nil {
		return r.failure
	}
	return couchdata.FromValue(r.Body, out)
}

// Map renders the result as a single mapping.  On success this is
// the body if it is an object, and nil for an array or scalar body;
// use Value() to get any body.  On failure it is a synthesized
// mapping whose "status" is "error", carrying "fullerror" for
// connection failures, "headers" (net/http) or "reason" and
// "content" (raw sockets) for protocol failures, and "errcode" and
// "errmsg" for precondition failures.
func (r Result) Map() map[string]interface{} {
	if r.failure == nil {
		return r.Object()
	}
	e := r.failure
	m := map[string]interface{}{"status": "error"}
	switch e.Kind {
	case KindProtocol:
		if e.Strategy == transport.Raw {
			m["reason"] = e.Reason
			m["content"] = e.Message
		} else {
			m["headers"] = map[string]interface{}{}
		}
	case KindPrecondition:
		m["errcode"] = e.Code
		m["errmsg"] = e.Message
		if e.Body != nil {
			m["body"] = e.Body
		}
	case KindDecode:
		m["fullerror"] = e.Message
		m["content"] = e.Content
	default:
		m["fullerror"] = e.Message
	}
	return m
}

// Value returns the body on success and Map() on failure.
func (r Result) Value() interface{} {
	if r.failure == nil {
		return r.Body
	}
	return r.Map()
}

func toStrings(list []interface{}) []string {
	if list == nil {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, isString := item.(string); isString {
			out = append(out, s)
		}
	}
	return out
}
