// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package transport

import (
	"bufio"
	"io/ioutil"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seen records what an httptest handler received.
type seen struct {
	Method string
	Host   string
	Path   string
	Header http.Header
	Body   string
}

func recordingServer(t *testing.T, status int, body string) (*httptest.Server, *seen) {
	s := &seen{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := ioutil.ReadAll(r.Body)
		s.Method = r.Method
		s.Host = r.Host
		s.Path = r.URL.RequestURI()
		s.Header = r.Header
		s.Body = string(data)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, s
}

// dialTo returns a DialFunc that always connects to addr.
func dialTo(addr string) DialFunc {
	return func(network, _ string) (net.Conn, error) {
		return net.Dial(network, addr)
	}
}

func strategies() []Strategy {
	return []Strategy{{Implementation: HTTP}, {Implementation: Raw}}
}

func TestRoundTrip(t *testing.T) {
	for _, strategy := range strategies() {
		t.Run(strategy.String(), func(t *testing.T) {
			server, s := recordingServer(t, http.StatusCreated, `{"ok":true}`)
			u, err := url.Parse("http://couch.example:5984/testdb/doc?rev=1-a")
			require.NoError(t, err)
			tr := strategy.Transport(dialTo(server.Listener.Addr().String()))

			resp, err := tr.RoundTrip(&Request{
				Method:   http.MethodPut,
				URL:      u,
				Header:   Header{"Host": "couch.example:5984", "X-Trace": "abc"},
				Body:     []byte(`{"a":1}`),
				Username: "admin",
				Password: "secret",
			})
			require.NoError(t, err)
			assert.Equal(t, http.StatusCreated, resp.StatusCode)
			assert.Equal(t, `{"ok":true}`, string(resp.Body))

			assert.Equal(t, http.MethodPut, s.Method)
			assert.Equal(t, "couch.example:5984", s.Host)
			assert.Equal(t, "/testdb/doc?rev=1-a", s.Path)
			assert.Equal(t, "abc", s.Header.Get("X-Trace"))
			assert.Equal(t, BasicAuth("admin", "secret"), s.Header.Get("Authorization"))
			assert.Equal(t, `{"a":1}`, s.Body)
		})
	}
}

func TestRoundTripNoCredentials(t *testing.T) {
	for _, strategy := range strategies() {
		t.Run(strategy.String(), func(t *testing.T) {
			server, s := recordingServer(t, http.StatusOK, `{}`)
			u, _ := url.Parse(server.URL + "/")
			_, err := strategy.Transport(nil).RoundTrip(&Request{
				Method: http.MethodGet,
				URL:    u,
				Header: Header{},
			})
			require.NoError(t, err)
			assert.Empty(t, s.Header.Get("Authorization"))
			assert.Equal(t, "", s.Body)
		})
	}
}

func TestConnectionRefused(t *testing.T) {
	// Grab a port and close it so nothing is listening
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	for _, strategy := range strategies() {
		t.Run(strategy.String(), func(t *testing.T) {
			u, _ := url.Parse("http://" + addr + "/")
			_, err := strategy.Transport(nil).RoundTrip(&Request{Method: "GET", URL: u})
			if assert.Error(t, err) {
				_, isProtocol := err.(*ErrProtocol)
				assert.False(t, isProtocol, "connection refused is not a protocol error: %v", err)
			}
		})
	}
}

// garbageServer accepts one connection, reads the request head, and
// answers with something that is not HTTP.
func garbageServer(t *testing.T, reply string) string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			reader := bufio.NewReader(conn)
			for {
				line, err := reader.ReadString('\n')
				if err != nil || line == "\r\n" {
					break
				}
			}
			conn.Write([]byte(reply))
			conn.Close()
		}
	}()
	return ln.Addr().String()
}

func TestMalformedResponse(t *testing.T) {
	addr := garbageServer(t, "SMTP ready\r\n\r\n")
	for _, strategy := range strategies() {
		t.Run(strategy.String(), func(t *testing.T) {
			u, _ := url.Parse("http://" + addr + "/")
			_, err := strategy.Transport(nil).RoundTrip(&Request{Method: "GET", URL: u})
			if assert.Error(t, err) {
				assert.IsType(t, &ErrProtocol{}, err)
			}
		})
	}
}

func TestSplitURL(t *testing.T) {
	tests := []struct{ url, addr, path string }{
		{"http://h:5984/", "h:5984", "/"},
		{"http://h:5984/testdb/_all_docs", "h:5984", "/testdb/_all_docs"},
		{"http://h:5986/_node/_local/_nodes/a?rev=1", "h:5986", "/_node/_local/_nodes/a?rev=1"},
		{"http://h:5984", "h:5984", "/"},
	}
	for _, test := range tests {
		addr, path := SplitURL(test.url)
		assert.Equal(t, test.addr, addr, test.url)
		assert.Equal(t, test.path, path, test.url)
	}
}

func TestRawHeaderCase(t *testing.T) {
	var head []string
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		reader := bufio.NewReader(conn)
		for {
			line, err := reader.ReadString('\n')
			if err != nil || line == "\r\n" {
				break
			}
			head = append(head, strings.TrimRight(line, "\r\n"))
		}
		conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\nConnection: close\r\n\r\n{}"))
	}()

	u, _ := url.Parse("http://" + ln.Addr().String() + "/x")
	resp, err := NewRawTransport(nil).RoundTrip(&Request{
		Method: "GET",
		URL:    u,
		Header: Header{"Host": "h:5984", "accept": "application/json"},
	})
	require.NoError(t, err)
	assert.Equal(t, "{}", string(resp.Body))
	<-done
	assert.Equal(t, []string{
		"GET /x HTTP/1.1",
		"Host: h:5984",
		"accept: application/json",
		"Connection: close",
	}, head)
}
