// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package couchclient

import (
	"io/ioutil"
	"testing"

	"github.com/diffeo/go-couchdb/couchtest"
	"github.com/diffeo/go-couchdb/transport"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// quietLogger returns a logger that discards everything.
func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = ioutil.Discard
	return logger
}

func strategies() []transport.Strategy {
	return []transport.Strategy{
		{Implementation: transport.HTTP},
		{Implementation: transport.Raw},
	}
}

// fixture starts a fake CouchDB and a Server talking to it as host
// "h", with the default ports.
func fixture(t *testing.T, strategy transport.Strategy) (*couchtest.Server, *Server) {
	fake := couchtest.New(couchtest.Config{Username: "admin", Password: "secret"})
	t.Cleanup(fake.Close)
	s, err := New(Config{
		Hostname:  "h",
		Username:  "admin",
		Password:  "secret",
		Transport: strategy,
		Logger:    quietLogger(),
		Dial:      fake.Dial,
	})
	require.NoError(t, err)
	fake.ResetRequests()
	return fake, s
}

// eachStrategy runs f once per transport strategy against a fresh
// fake.
func eachStrategy(t *testing.T, f func(t *testing.T, fake *couchtest.Server, s *Server)) {
	for _, strategy := range strategies() {
		strategy := strategy
		t.Run(strategy.String(), func(t *testing.T) {
			fake, s := fixture(t, strategy)
			f(t, fake, s)
		})
	}
}
