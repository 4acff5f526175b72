// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package couchclient

import (
	"errors"
	"net"
	"net/http"
	"testing"

	"github.com/diffeo/go-couchdb/couchtest"
	"github.com/diffeo/go-couchdb/transport"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// refusingDial returns a dial function that connects to a port
// nothing listens on.
func refusingDial(t *testing.T) transport.DialFunc {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()
	return func(network, _ string) (net.Conn, error) {
		return net.Dial(network, addr)
	}
}

// garbageDial returns a dial function that connects to a server that
// answers every connection with something that is not HTTP.
func garbageDial(t *testing.T) transport.DialFunc {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			buf := make([]byte, 4096)
			conn.Read(buf)
			conn.Write([]byte("SPEAK FRIEND AND ENTER\r\n\r\n"))
			conn.Close()
		}
	}()
	return func(network, _ string) (net.Conn, error) {
		return net.Dial(network, l.Addr().String())
	}
}

func TestHostAndRefererOverride(t *testing.T) {
	eachStrategy(t, func(t *testing.T, fake *couchtest.Server, s *Server) {
		s.Endpoint(Call{
			Endpoint: "_up",
			Header: transport.Header{
				"host":     "evil.example",
				"REFERER":  "http://evil.example/",
				"X-Custom": "kept",
			},
		})
		last := fake.Last()
		assert.Equal(t, "h:5984", last.Host)
		assert.Equal(t, []string{"http://h:5984/"}, last.Header["Referer"])
		assert.Equal(t, "kept", last.Header.Get("X-Custom"))
	})
}

func TestDefaultAccept(t *testing.T) {
	eachStrategy(t, func(t *testing.T, fake *couchtest.Server, s *Server) {
		s.Endpoint(Call{Endpoint: "_up"})
		assert.Equal(t, "application/json", fake.Last().Header.Get("Accept"))

		s.Endpoint(Call{Endpoint: "_up", Header: transport.Header{"X-Only": "this"}})
		assert.Equal(t, "", fake.Last().Header.Get("Accept"))
		assert.Equal(t, "this", fake.Last().Header.Get("X-Only"))
	})
}

func TestCredentialsSent(t *testing.T) {
	eachStrategy(t, func(t *testing.T, fake *couchtest.Server, s *Server) {
		r := s.Endpoint(Call{Endpoint: "_up"})
		require.True(t, r.OK())
		assert.Equal(t, 200, r.StatusCode)
		assert.Equal(t, "ok", r.GetString("status"))
		assert.Equal(t, "Basic YWRtaW46c2VjcmV0", fake.Last().Header.Get("Authorization"))
	})
}

func TestRawBodyWins(t *testing.T) {
	eachStrategy(t, func(t *testing.T, fake *couchtest.Server, s *Server) {
		fake.CreateDB("db")
		db := s.Database("db")
		db.do(Call{
			Endpoint: "_find",
			Method:   "POST",
			Raw:      []byte(`{"selector":{"raw":true}}`),
			JSON:     map[string]interface{}{"selector": map[string]interface{}{}},
		})
		last := fake.Last()
		assert.Equal(t, `{"selector":{"raw":true}}`, string(last.Body))
		assert.Equal(t, "", last.Header.Get("Content-Type"))
	})
}

func TestJSONBody(t *testing.T) {
	eachStrategy(t, func(t *testing.T, fake *couchtest.Server, s *Server) {
		fake.CreateDB("db")
		db := s.Database("db")
		db.do(Call{
			Endpoint: "_find",
			Method:   "post",
			Header:   transport.Header{"X-Any": "1"},
			JSON:     map[string]interface{}{"selector": map[string]interface{}{}},
		})
		last := fake.Last()
		assert.Equal(t, "POST", last.Method)
		assert.Equal(t, `{"selector":{}}`, string(last.Body))
		assert.Equal(t, "application/json", last.Header.Get("Content-Type"))
	})
}

func TestConnectionRefused(t *testing.T) {
	for _, strategy := range strategies() {
		t.Run(strategy.String(), func(t *testing.T) {
			s := &Server{config: Config{Hostname: "h"}, host: "h:5984", adminHost: "h:5986"}
			s.dispatcher = &Dispatcher{
				Transport: strategy.Transport(refusingDial(t)),
				Logger:    quietLogger(),
			}
			r := s.Up()
			assert.False(t, r.OK())
			require.NotNil(t, r.Failure())
			assert.Equal(t, KindTransport, r.Failure().Kind)
			assert.Error(t, r.Err())
			m := r.Map()
			assert.Equal(t, "error", m["status"])
			assert.Contains(t, m, "fullerror")
		})
	}
}

func TestMalformedResponse(t *testing.T) {
	for _, strategy := range strategies() {
		t.Run(strategy.String(), func(t *testing.T) {
			s := &Server{config: Config{Hostname: "h"}, host: "h:5984", adminHost: "h:5986"}
			s.dispatcher = &Dispatcher{
				Transport: strategy.Transport(garbageDial(t)),
				Logger:    quietLogger(),
			}
			r := s.Up()
			require.NotNil(t, r.Failure())
			assert.Equal(t, KindProtocol, r.Failure().Kind)
			m := r.Map()
			assert.Equal(t, "error", m["status"])
			if strategy.Implementation == transport.Raw {
				assert.Contains(t, m, "reason")
				assert.Contains(t, m, "content")
			} else {
				assert.Equal(t, map[string]interface{}{}, m["headers"])
			}
		})
	}
}

func TestUndecodableBody(t *testing.T) {
	for _, body := range []string{
		"<html>not json</html>",
		`{"status":"ok"}<html>garbage</html>`,
	} {
		body := body
		t.Run(body, func(t *testing.T) {
			eachStrategy(t, func(t *testing.T, fake *couchtest.Server, s *Server) {
				fake.Override("GET", "/_up", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.Write([]byte(body))
				}))
				r := s.Up()
				require.NotNil(t, r.Failure())
				assert.Equal(t, KindDecode, r.Failure().Kind)
				assert.Equal(t, 200, r.StatusCode)
				m := r.Map()
				assert.Equal(t, "error", m["status"])
				assert.Equal(t, body, m["content"])
			})
		})
	}
}

func TestInvalidHeadersRejected(t *testing.T) {
	for _, header := range []transport.Header{
		{"X-A": "v\r\nX-Injected: yes"},
		{"X-A": "v\nX-Injected: yes"},
		{"X A": "v"},
		{"X-A\r\nX-Injected": "yes"},
		{"": "v"},
	} {
		eachStrategy(t, func(t *testing.T, fake *couchtest.Server, s *Server) {
			r := s.Endpoint(Call{Endpoint: "_up", Header: header})
			require.NotNil(t, r.Failure())
			assert.Equal(t, KindRequest, r.Failure().Kind)
			assert.Equal(t, "error", r.Map()["status"])
			assert.Empty(t, fake.Requests())
		})
	}
}

func TestEmptyBody(t *testing.T) {
	eachStrategy(t, func(t *testing.T, fake *couchtest.Server, s *Server) {
		fake.Override("GET", "/_up", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		r := s.Up()
		assert.True(t, r.OK())
		assert.Equal(t, http.StatusNoContent, r.StatusCode)
		assert.Nil(t, r.Body)
	})
}

type panickingTransport struct{}

func (panickingTransport) Name() string { return "panic" }

func (panickingTransport) RoundTrip(*transport.Request) (*transport.Response, error) {
	panic("the wire caught fire")
}

type failingTransport struct{ err error }

func (failingTransport) Name() string { return "failing" }

func (f failingTransport) RoundTrip(*transport.Request) (*transport.Response, error) {
	return nil, f.err
}

func TestDispatchRecoversPanics(t *testing.T) {
	s := &Server{config: Config{Hostname: "h"}, host: "h:5984", adminHost: "h:5986"}
	s.dispatcher = &Dispatcher{Transport: panickingTransport{}, Logger: quietLogger()}
	r := s.Up()
	require.NotNil(t, r.Failure())
	assert.Equal(t, KindTransport, r.Failure().Kind)
	assert.Equal(t, "the wire caught fire", r.Failure().Message)
}

func TestDispatchWithoutTransport(t *testing.T) {
	s := &Server{config: Config{Hostname: "h"}, host: "h:5984", adminHost: "h:5986"}
	s.dispatcher = &Dispatcher{}
	r := s.Up()
	require.NotNil(t, r.Failure())
	assert.Equal(t, KindRequest, r.Failure().Kind)
}

func TestDispatchBadEndpoint(t *testing.T) {
	s := &Server{config: Config{Hostname: "h"}, host: "h:5984", adminHost: "h:5986"}
	s.dispatcher = &Dispatcher{Transport: panickingTransport{}, Logger: quietLogger()}
	r := s.Endpoint(Call{Endpoint: "%zz"})
	require.NotNil(t, r.Failure())
	assert.Equal(t, KindRequest, r.Failure().Kind)
}

func TestDispatchProtocolError(t *testing.T) {
	s := &Server{config: Config{Hostname: "h"}, host: "h:5984", adminHost: "h:5986"}
	s.dispatcher = &Dispatcher{
		Transport: failingTransport{err: &transport.ErrProtocol{
			Status:     "999 Odd",
			StatusCode: 999,
			Err:        errors.New("bad header line"),
		}},
		Logger: quietLogger(),
	}
	r := s.Up()
	require.NotNil(t, r.Failure())
	assert.Equal(t, KindProtocol, r.Failure().Kind)
	assert.Equal(t, 999, r.StatusCode)
	assert.Equal(t, "999 Odd", r.Failure().Reason)
	assert.Equal(t, "failing", r.Failure().Strategy)
}

func TestMetrics(t *testing.T) {
	eachStrategy(t, func(t *testing.T, fake *couchtest.Server, s *Server) {
		name := s.dispatcher.Transport.Name()
		ok := requestsTotal.WithLabelValues("GET", name, "ok")
		before := testutil.ToFloat64(ok)
		s.Up()
		s.Up()
		assert.Equal(t, before+2, testutil.ToFloat64(ok))

		fake.Override("GET", "/_up", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("nope"))
		}))
		decode := requestsTotal.WithLabelValues("GET", name, "decode")
		before = testutil.ToFloat64(decode)
		s.Up()
		assert.Equal(t, before+1, testutil.ToFloat64(decode))
	})
}
