// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package couchclient

import (
	"testing"

	"github.com/diffeo/go-couchdb/couchdata"
	"github.com/diffeo/go-couchdb/couchtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDBList(t *testing.T) {
	tests := map[string][]string{
		"a,b,c":    {"a", "b", "c"},
		"a, b , c": {"a", "b", "c"},
		"a b  c":   {"a", "b", "c"},
		"single":   {"single"},
		"":         {},
		" , x ,, ": {"x"},
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseDBList(in), "%q", in)
	}
}

func TestServerEndpoints(t *testing.T) {
	eachStrategy(t, func(t *testing.T, fake *couchtest.Server, s *Server) {
		fake.CreateDB("b")
		fake.CreateDB("a")

		assert.Equal(t, []string{"a", "b"}, s.AllDBs().GetStrings(""))
		assert.Equal(t, "ok", s.Up().GetString("status"))
		assert.Equal(t, []interface{}{}, s.ActiveTasks().Body)
		assert.Equal(t, "cluster_disabled", s.ClusterSetupStatus().GetString("state"))
		assert.True(t, s.DBUpdates().Has("results"))
		assert.True(t, s.SchedulerJobs().Has("jobs"))
		assert.True(t, s.SchedulerDocs().Has("docs"))

		var m couchdata.Membership
		require.NoError(t, s.Membership().Decode(&m))
		assert.Equal(t, []string{"couchdb@127.0.0.1"}, m.ClusterNodes)

		r := s.Refresh()
		assert.True(t, r.OK())
		assert.Equal(t, couchtest.Version, s.Info.Version)
		assert.Equal(t, "The Apache Software Foundation", s.Info.Vendor.Name)
	})
}

func TestDBsInfo(t *testing.T) {
	eachStrategy(t, func(t *testing.T, fake *couchtest.Server, s *Server) {
		fake.CreateDB("a")
		fake.CreateDB("b")

		r := s.DBsInfo()
		require.True(t, r.OK())
		assert.Len(t, r.List(), 2)
		assert.Equal(t, `{"keys":["a","b"]}`, string(fake.Last().Body))

		r = s.DBsInfo("a", "missing")
		rows := r.List()
		require.Len(t, rows, 2)
		assert.Equal(t, "not_found", rows[1].(map[string]interface{})["error"])
	})
}

func TestUUIDs(t *testing.T) {
	eachStrategy(t, func(t *testing.T, fake *couchtest.Server, s *Server) {
		var list couchdata.UUIDList
		require.NoError(t, s.UUIDs(3).Decode(&list))
		assert.Len(t, list.UUIDs, 3)
		assert.Equal(t, "3", fake.Last().Query.Get("count"))

		require.NoError(t, s.UUIDs(0).Decode(&list))
		assert.Len(t, list.UUIDs, 1)
		assert.Equal(t, "/_uuids", fake.Last().Path)
		assert.Empty(t, fake.Last().Query)
	})
}

func TestBatchOperations(t *testing.T) {
	eachStrategy(t, func(t *testing.T, fake *couchtest.Server, s *Server) {
		fake.CreateDB("a")
		fake.CreateDB("b")

		batch := s.CompactAll()
		assert.NoError(t, batch.Err())
		assert.Equal(t, 2, batch.Processed)
		assert.Equal(t, []string{"a", "b"}, batch.Names())

		batch = s.SyncAllShards()
		assert.NoError(t, batch.Err())
		for _, name := range []string{"a", "b"} {
			compacted, synced := fake.Compactions(name)
			assert.Equal(t, 1, compacted, name)
			assert.Equal(t, 1, synced, name)
		}

		value, _ := batch.Value().(map[string]interface{})
		assert.Equal(t, 2, value["processed"])
	})
}

func TestBatchListingFailure(t *testing.T) {
	s := &Server{config: Config{Hostname: "h"}, host: "h:5984", adminHost: "h:5986", logger: quietLogger()}
	s.dispatcher = &Dispatcher{
		Transport: strategies()[0].Transport(refusingDial(t)),
		Logger:    quietLogger(),
	}
	batch := s.CompactAll()
	assert.Equal(t, 0, batch.Processed)
	assert.Error(t, batch.Err())
	value, _ := batch.Value().(map[string]interface{})
	assert.Equal(t, "error", value["status"])
}
