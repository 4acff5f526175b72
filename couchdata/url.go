// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package couchdata

import (
	"net/url"
	"strings"
)

// Document ID prefixes that CouchDB routes on and that keep their
// literal slash in a URL.
var reservedPrefixes = []string{"_design/", "_local/"}

// EscapeName escapes a database or node name so that it can be used as
// exactly one URL path segment.
func EscapeName(name string) string {
	return url.PathEscape(name)
}

// EscapeDocID escapes a document ID for use in a URL path.  Everything
// but a leading "_design/" or "_local/" is escaped as one segment, so
// "_design/a/b" becomes "_design/a%2Fb".
func EscapeDocID(id string) string {
	for _, prefix := range reservedPrefixes {
		if strings.HasPrefix(id, prefix) && len(id) > len(prefix) {
			return prefix + url.PathEscape(id[len(prefix):])
		}
	}
	return url.PathEscape(id)
}

// UnescapeDocID reverses EscapeDocID, and also accepts the fully
// escaped form ("_design%2Ffoo").
func UnescapeDocID(escaped string) (string, error) {
	return url.PathUnescape(escaped)
}
