// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package couchdata

import "fmt"

// ErrorResponse is the body CouchDB returns with a failing status,
// for instance
//
//     {"error": "not_found", "reason": "Database does not exist."}
type ErrorResponse struct {
	Error  string `json:"error" mapstructure:"error"`
	Reason string `json:"reason" mapstructure:"reason"`
}

// Well-known CouchDB error identifiers.
const (
	ErrorNotFound     = "not_found"
	ErrorConflict     = "conflict"
	ErrorFileExists   = "file_exists"
	ErrorUnauthorized = "unauthorized"
	ErrorForbidden    = "forbidden"
	ErrorBadRequest   = "bad_request"
)

// ErrorFromValue extracts an ErrorResponse from a decoded body.  It
// returns nil unless value is an object with a string "error" key.
func ErrorFromValue(value interface{}) *ErrorResponse {
	obj, isMap := value.(map[string]interface{})
	if !isMap {
		return nil
	}
	e, isString := obj["error"].(string)
	if !isString {
		return nil
	}
	resp := &ErrorResponse{Error: e}
	if reason, ok := obj["reason"].(string); ok {
		resp.Reason = reason
	}
	return resp
}

func (e *ErrorResponse) String() string {
	if e.Reason == "" {
		return e.Error
	}
	return fmt.Sprintf("%s: %s", e.Error, e.Reason)
}

// NotFound returns true if this is CouchDB's not_found error.
func (e *ErrorResponse) NotFound() bool {
	return e != nil && e.Error == ErrorNotFound
}
