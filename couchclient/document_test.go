// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package couchclient

import (
	"regexp"
	"testing"

	"github.com/diffeo/go-couchdb/couchtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentProbe(t *testing.T) {
	eachStrategy(t, func(t *testing.T, fake *couchtest.Server, s *Server) {
		rev := fake.PutDoc("db", map[string]interface{}{"_id": "d", "n": "one"})
		db := s.Database("db")

		doc := db.Document("d")
		assert.True(t, doc.Exists)
		assert.Equal(t, rev, doc.Revision)
		assert.Equal(t, "one", doc.Content["n"])
		assert.Equal(t, "http://h:5984/db/d", doc.URL())

		missing := db.Document("nope")
		assert.False(t, missing.Exists)
		assert.Equal(t, "", missing.Revision)
		assert.False(t, missing.IsThere())
	})
}

func TestDocumentCreateUpdate(t *testing.T) {
	eachStrategy(t, func(t *testing.T, fake *couchtest.Server, s *Server) {
		fake.CreateDB("db")
		db := s.Database("db")

		doc := db.Document("d")
		require.False(t, doc.Exists)
		doc.Content["color"] = "red"
		r := doc.Create()
		require.True(t, r.GetBool("ok"))
		assert.True(t, doc.Exists)
		rev1 := doc.Revision
		assert.Equal(t, r.GetString("rev"), rev1)
		assert.NotEmpty(t, rev1)

		r = doc.Create()
		require.NotNil(t, r.Failure())
		assert.Equal(t, "Document already exists!", r.Failure().Message)

		doc.Content["color"] = "blue"
		r = doc.Update()
		require.True(t, r.GetBool("ok"))
		put := fake.Matching("PUT", "/db/d")
		require.Len(t, put, 2)
		assert.Equal(t, rev1, put[1].Header.Get("If-Match"))
		rev2 := doc.Revision
		assert.NotEqual(t, rev1, rev2)
		assert.Equal(t, rev2, doc.Content["_rev"])

		stored, exists := fake.Doc("db", "d")
		require.True(t, exists)
		assert.Equal(t, "blue", stored["color"])
		assert.Equal(t, rev2, stored["_rev"])
	})
}

func TestDocumentUpdateMissing(t *testing.T) {
	eachStrategy(t, func(t *testing.T, fake *couchtest.Server, s *Server) {
		fake.CreateDB("db")
		doc := s.Database("db").Document("ghost")
		r := doc.Update()
		require.NotNil(t, r.Failure())
		assert.Equal(t, KindPrecondition, r.Failure().Kind)
		assert.Equal(t, "Document does not exist!", r.Map()["errmsg"])
		assert.Empty(t, fake.Matching("PUT", "/db/ghost"))
	})
}

func TestDocumentWritesReportUnreachableServer(t *testing.T) {
	eachStrategy(t, func(t *testing.T, fake *couchtest.Server, s *Server) {
		fake.PutDoc("db", map[string]interface{}{"_id": "d", "n": "one"})
		doc := s.Database("db").Document("d")
		require.True(t, doc.Exists)
		fresh := s.Database("db").Document("e")
		fresh.Content["n"] = "two"

		strategy := s.config.Transport
		s.dispatcher.Transport = strategy.Transport(refusingDial(t))

		doc.Content["n"] = "changed"
		r := doc.Update()
		require.NotNil(t, r.Failure())
		assert.Equal(t, KindTransport, r.Failure().Kind)
		assert.Equal(t, "changed", doc.Content["n"])

		r = fresh.Create()
		require.NotNil(t, r.Failure())
		assert.Equal(t, KindTransport, r.Failure().Kind)
		assert.False(t, fresh.Exists)

		r = doc.Delete()
		require.NotNil(t, r.Failure())
		assert.Equal(t, KindTransport, r.Failure().Kind)
	})
}

func TestDocumentDelete(t *testing.T) {
	eachStrategy(t, func(t *testing.T, fake *couchtest.Server, s *Server) {
		rev := fake.PutDoc("db", map[string]interface{}{"_id": "d"})
		doc := s.Database("db").Document("d")

		r := doc.Delete()
		require.True(t, r.GetBool("ok"))
		assert.Equal(t, rev, fake.Last().Header.Get("If-Match"))
		assert.False(t, doc.Exists)
		_, exists := fake.Doc("db", "d")
		assert.False(t, exists)

		r = doc.Delete()
		require.NotNil(t, r.Failure())
		assert.Equal(t, "Document doesn't exist!", r.Failure().Message)
	})
}

func TestDocumentCurrentRevision(t *testing.T) {
	eachStrategy(t, func(t *testing.T, fake *couchtest.Server, s *Server) {
		fake.PutDoc("db", map[string]interface{}{"_id": "d", "v": "1"})
		doc := s.Database("db").Document("d")
		rev := fake.PutDoc("db", map[string]interface{}{"_id": "d", "v": "2"})

		assert.True(t, doc.CurrentRevision().OK())
		assert.Equal(t, rev, doc.Revision)
		assert.Equal(t, "2", doc.Content["v"])
	})
}

func TestNewDocument(t *testing.T) {
	eachStrategy(t, func(t *testing.T, fake *couchtest.Server, s *Server) {
		fake.CreateDB("db")
		db := s.Database("db")

		doc := db.NewDocument(map[string]interface{}{"x": "y"})
		assert.Regexp(t, regexp.MustCompile("^[0-9a-f]{32}$"), doc.ID)
		assert.Equal(t, doc.ID, doc.Content["_id"])
		assert.False(t, doc.Exists)

		require.True(t, doc.Create().GetBool("ok"))
		stored, exists := fake.Doc("db", doc.ID)
		require.True(t, exists)
		assert.Equal(t, "y", stored["x"])
	})
}

func TestDesignDocumentPath(t *testing.T) {
	eachStrategy(t, func(t *testing.T, fake *couchtest.Server, s *Server) {
		fake.CreateDB("db")
		doc := s.Database("db").Document("_design/a/b")
		assert.Equal(t, "/db/_design/a%2Fb", fake.Last().Path)
		assert.Equal(t, "http://h:5984/db/_design/a%2Fb", doc.URL())
	})
}
