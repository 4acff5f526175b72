// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package couchclient

import (
	"testing"

	"github.com/diffeo/go-couchdb/couchtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeConfig(t *testing.T) {
	eachStrategy(t, func(t *testing.T, fake *couchtest.Server, s *Server) {
		node := s.Node("_local")
		assert.Equal(t, "http://h:5984/_node/_local/", node.URL())

		assert.True(t, node.Config("", "").Has("chttpd"))
		assert.Equal(t, "/_node/_local/_config", fake.Last().Path)

		assert.Equal(t, "5984", node.Config("chttpd", "").GetString("port"))
		assert.Equal(t, "/_node/_local/_config/chttpd", fake.Last().Path)

		assert.Equal(t, "5984", node.Config("chttpd", "port").Body)
		assert.Equal(t, "/_node/_local/_config/chttpd/port", fake.Last().Path)

		assert.Equal(t, "/_node/_local/_config", func() string {
			node.Config("", "ignored")
			return fake.Last().Path
		}())
	})
}

func TestNodeSetDeleteConfig(t *testing.T) {
	eachStrategy(t, func(t *testing.T, fake *couchtest.Server, s *Server) {
		node := s.Node("_local")

		r := node.SetConfig("log", "level", "debug")
		require.True(t, r.OK())
		assert.Equal(t, "", r.Body)
		assert.Equal(t, `"debug"`, string(fake.Last().Body))
		value, present := fake.ConfigValue("log", "level")
		assert.True(t, present)
		assert.Equal(t, "debug", value)

		r = node.DeleteConfig("log", "level")
		assert.Equal(t, "debug", r.Body)
		_, present = fake.ConfigValue("log", "level")
		assert.False(t, present)

		r = node.DeleteConfig("log", "level")
		assert.True(t, r.RemoteError().NotFound())

		fake.ResetRequests()
		assert.NotNil(t, node.SetConfig("log", "", "x").Failure())
		assert.NotNil(t, node.DeleteConfig("", "level").Failure())
		assert.Empty(t, fake.Requests())
	})
}

func TestNodeStats(t *testing.T) {
	eachStrategy(t, func(t *testing.T, fake *couchtest.Server, s *Server) {
		node := s.Node("couchdb@127.0.0.1")
		assert.True(t, node.Stats().Has("couchdb"))
		assert.Equal(t, "/_node/couchdb@127.0.0.1/_stats", fake.Last().Path)
		assert.True(t, node.System().Has("uptime"))
		assert.Equal(t, "/_node/couchdb@127.0.0.1/_system", fake.Last().Path)
	})
}
