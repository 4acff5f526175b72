// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package transport

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// RawTransport is the fallback strategy.  It opens a bare TCP
// connection per request, writes an HTTP/1.1 request by hand with
// headers in exactly the case supplied, and reads one response.
type RawTransport struct {
	Dial DialFunc
}

// NewRawTransport creates a RawTransport.  If dial is nil, net.Dial
// is used.
func NewRawTransport(dial DialFunc) *RawTransport {
	if dial == nil {
		dial = net.Dial
	}
	return &RawTransport{Dial: dial}
}

// Name returns "raw".
func (t *RawTransport) Name() string {
	return Raw
}

// SplitURL splits an absolute URL into its network address and its
// request path.  The address runs from after the scheme's "//" to the
// next "/"; the path is everything from that "/" on, or "/" if there
// is none.
func SplitURL(raw string) (addr, path string) {
	rest := raw
	if i := strings.Index(rest, "//"); i >= 0 {
		rest = rest[i+2:]
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[:i], rest[i:]
	}
	return rest, "/"
}

// BasicAuth returns the value of an Authorization header for HTTP
// basic authentication.
func BasicAuth(username, password string) string {
	token := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return "Basic " + token
}

// RoundTrip performs the request over a fresh connection.
func (t *RawTransport) RoundTrip(r *Request) (*Response, error) {
	addr, path := SplitURL(r.URL.String())
	if addr == "" {
		return nil, fmt.Errorf("no host in URL %q", r.URL)
	}
	if !strings.Contains(addr, ":") {
		addr = addr + ":80"
	}

	conn, err := t.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	writer := bufio.NewWriter(conn)
	if err = writeRequest(writer, r, addr, path); err != nil {
		return nil, err
	}
	if err = writer.Flush(); err != nil {
		return nil, err
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		return nil, &ErrProtocol{Err: err}
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

// writeRequest writes the request line, headers and body.  Host goes
// first; the remaining caller headers follow in sorted order so the
// wire form is deterministic.
func writeRequest(w *bufio.Writer, r *Request, addr, path string) error {
	host := addr
	keys := make([]string, 0, len(r.Header))
	for k, v := range r.Header {
		switch strings.ToLower(k) {
		case "host":
			host = v
		case "content-length", "connection", "authorization":
			// computed below
		default:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	if _, err := fmt.Fprintf(w, "%s %s HTTP/1.1\r\nHost: %s\r\n", r.Method, path, host); err != nil {
		return err
	}
	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "%s: %s\r\n", k, r.Header[k]); err != nil {
			return err
		}
	}
	if r.Username != "" {
		if _, err := fmt.Fprintf(w, "Authorization: %s\r\n", BasicAuth(r.Username, r.Password)); err != nil {
			return err
		}
	}
	if len(r.Body) > 0 || r.Method == http.MethodPut || r.Method == http.MethodPost {
		if _, err := fmt.Fprintf(w, "Content-Length: %s\r\n", strconv.Itoa(len(r.Body))); err != nil {
			return err
		}
	}
	if _, err := w.WriteString("Connection: close\r\n\r\n"); err != nil {
		return err
	}
	_, err := w.Write(r.Body)
	return err
}
