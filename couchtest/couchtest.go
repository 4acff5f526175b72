// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package couchtest provides an in-memory fake of the parts of the
// CouchDB 2.x HTTP API that the couchclient package uses.  It keeps
// databases, documents, security documents, cluster membership, and
// node configuration in memory, and records every request it receives
// so tests can check exactly what was sent.
//
// The fake listens on a loopback port, but clients usually address
// it by some other name ("h:5984", "h:5986") and connect through
// Dial, so that the Host header they send is still meaningful:
//
//     fake := couchtest.New(couchtest.Config{})
//     defer fake.Close()
//     s, err := couchclient.New(couchclient.Config{
//         Hostname: "h",
//         Dial:     fake.Dial,
//     })
package couchtest

import (
	"bytes"
	"io/ioutil"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"

	"github.com/diffeo/go-couchdb/couchdata"
	"github.com/gorilla/mux"
	"github.com/urfave/negroni"
)

// Version is the CouchDB version the fake reports.
const Version = "2.3.1"

// Config sets up a fake server.
type Config struct {
	// Username and Password, if Username is non-empty, are
	// required as basic authentication on every request.
	Username string
	Password string
}

// Request is one request as the fake received it.
type Request struct {
	Method string

	// Path is the escaped URL path.
	Path string

	// Query is the parsed query string.
	Query url.Values

	// Host is the Host header.
	Host string

	Header http.Header
	Body   []byte
}

// Server is a running fake CouchDB.
type Server struct {
	// HTTP is the underlying test server.
	HTTP *httptest.Server

	config Config

	lock      sync.Mutex
	requests  []Request
	overrides map[string]http.Handler

	dbs          map[string]*database
	updateSeq    int
	membership   couchdata.Membership
	nodeDocs     map[string]*document
	nodeConfig   map[string]map[string]string
	activeTasks  []interface{}
	setupState   string
	setupActions []map[string]interface{}
	seedNodes    []string
}

// New starts a fake server.  Call Close() when done with it.
func New(config Config) *Server {
	s := &Server{
		config:     config,
		overrides:  make(map[string]http.Handler),
		dbs:        make(map[string]*database),
		nodeDocs:   make(map[string]*document),
		nodeConfig: defaultNodeConfig(),
		membership: couchdata.Membership{
			AllNodes:     []string{"couchdb@127.0.0.1"},
			ClusterNodes: []string{"couchdb@127.0.0.1"},
		},
		activeTasks: []interface{}{},
		setupState:  "cluster_disabled",
	}
	recovery := negroni.NewRecovery()
	recovery.PrintStack = false
	n := negroni.New(recovery, negroni.HandlerFunc(s.intercept))
	n.UseHandler(s.router())
	s.HTTP = httptest.NewServer(n)
	return s
}

// Close shuts down the fake server.
func (s *Server) Close() {
	s.HTTP.Close()
}

// Addr returns the address the fake actually listens on.
func (s *Server) Addr() string {
	return s.HTTP.Listener.Addr().String()
}

// Dial connects to the fake server regardless of addr.  It can be
// used as a transport.DialFunc.
func (s *Server) Dial(network, addr string) (net.Conn, error) {
	return net.Dial("tcp", s.Addr())
}

// Requests returns a copy of every request received so far.
func (s *Server) Requests() []Request {
	s.lock.Lock()
	defer s.lock.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Last returns the most recent request, or a zero Request.
func (s *Server) Last() Request {
	s.lock.Lock()
	defer s.lock.Unlock()
	if len(s.requests) == 0 {
		return Request{}
	}
	return s.requests[len(s.requests)-1]
}

// Matching returns the recorded requests with the given method and
// escaped path.
func (s *Server) Matching(method, path string) []Request {
	var out []Request
	for _, req := range s.Requests() {
		if req.Method == method && req.Path == path {
			out = append(out, req)
		}
	}
	return out
}

// ResetRequests forgets the recorded requests.
func (s *Server) ResetRequests() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.requests = nil
}

// Override replaces the handling of one method and escaped path.  The
// request is still recorded.
func (s *Server) Override(method, path string, handler http.Handler) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.overrides[method+" "+path] = handler
}

// intercept is the negroni middleware that records the request,
// checks credentials, and applies overrides.
func (s *Server) intercept(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	body, _ := ioutil.ReadAll(r.Body)
	r.Body = ioutil.NopCloser(bytes.NewReader(body))
	s.lock.Lock()
	s.requests = append(s.requests, Request{
		Method: r.Method,
		Path:   r.URL.EscapedPath(),
		Query:  r.URL.Query(),
		Host:   r.Host,
		Header: r.Header.Clone(),
		Body:   body,
	})
	override := s.overrides[r.Method+" "+r.URL.EscapedPath()]
	s.lock.Unlock()

	if override != nil {
		override.ServeHTTP(w, r)
		return
	}
	if s.config.Username != "" {
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.config.Username || pass != s.config.Password {
			reply(w, http.StatusUnauthorized, errorBody(couchdata.ErrorUnauthorized,
				"Name or password is incorrect."))
			return
		}
	}
	next(w, r)
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter().UseEncodedPath()
	r.Path("/").HandlerFunc(s.handleRoot)
	s.populateServer(r)
	s.populateNode(r)
	s.populateDatabase(r)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusNotFound, errorBody(couchdata.ErrorNotFound, "missing"))
	})
	return r
}

// reply writes v as a JSON response.
func reply(w http.ResponseWriter, status int, v interface{}) {
	body, err := couchdata.EncodeJSON(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"unknown_error","reason":"encoding failed"}`)
	}
	w.Header().Set("Content-Type", couchdata.JSONMediaType)
	w.WriteHeader(status)
	w.Write(body)
}

func errorBody(e, reason string) couchdata.ErrorResponse {
	return couchdata.ErrorResponse{Error: e, Reason: reason}
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	reply(w, http.StatusMethodNotAllowed, errorBody("method_not_allowed",
		"Only some methods are allowed here, not "+r.Method))
}

func badRequest(w http.ResponseWriter, reason string) {
	reply(w, http.StatusBadRequest, errorBody(couchdata.ErrorBadRequest, reason))
}

// readBody decodes the JSON request body.
func readBody(r *http.Request) (interface{}, error) {
	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	return couchdata.DecodeJSON(body)
}

// readObject decodes a JSON object request body; an empty body is an
// empty object.
func readObject(r *http.Request) (map[string]interface{}, bool) {
	v, err := readBody(r)
	if err != nil {
		return nil, false
	}
	if v == nil {
		return map[string]interface{}{}, true
	}
	obj, isMap := v.(map[string]interface{})
	return obj, isMap
}

// pathVar returns an unescaped mux path variable.
func pathVar(r *http.Request, name string) string {
	v := mux.Vars(r)[name]
	if unescaped, err := url.PathUnescape(v); err == nil {
		return unescaped
	}
	return v
}
