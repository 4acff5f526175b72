// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package couchclient

import (
	"testing"

	"github.com/diffeo/go-couchdb/couchtest"
	"github.com/diffeo/go-couchdb/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresHostname(t *testing.T) {
	_, err := New(Config{Logger: quietLogger()})
	assert.Equal(t, ErrNoHostname, err)
}

func TestNewRejectsBadConfig(t *testing.T) {
	for name, config := range map[string]Config{
		"port":      {Hostname: "h", Port: 70000},
		"adminport": {Hostname: "h", AdminPort: -1},
		"loglevel":  {Hostname: "h", LogLevel: "chatty"},
		"transport": {Hostname: "h", Transport: transport.Strategy{Implementation: "carrier-pigeon"}},
	} {
		t.Run(name, func(t *testing.T) {
			config.Logger = quietLogger()
			_, err := New(config)
			assert.Error(t, err)
		})
	}
}

func TestNewProbesServer(t *testing.T) {
	eachStrategy(t, func(t *testing.T, fake *couchtest.Server, s *Server) {
		assert.Equal(t, couchtest.Version, s.Info.Version)
		assert.Equal(t, "http://h:5984/", s.URL())
		assert.Equal(t, "h", s.Hostname())
		assert.Equal(t, DefaultPort, s.Port())
	})
}

func TestNewSurvivesUnreachableServer(t *testing.T) {
	s, err := New(Config{
		Hostname: "h",
		Logger:   quietLogger(),
		Dial:     refusingDial(t),
	})
	require.NoError(t, err)
	assert.Equal(t, "", s.Info.Version)
}

func TestNewWrongCredentials(t *testing.T) {
	fake := couchtest.New(couchtest.Config{Username: "admin", Password: "secret"})
	defer fake.Close()
	s, err := New(Config{
		Hostname: "h",
		Username: "admin",
		Password: "wrong",
		Logger:   quietLogger(),
		Dial:     fake.Dial,
	})
	require.NoError(t, err)
	assert.Equal(t, "", s.Info.Version)

	r := s.Up()
	require.True(t, r.OK())
	assert.Equal(t, 401, r.StatusCode)
	assert.Equal(t, "unauthorized", r.RemoteError().Error)
}
