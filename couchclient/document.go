// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package couchclient

import (
	"encoding/hex"

	"github.com/diffeo/go-couchdb/couchdata"
	"github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
)

// Document is a handle on one document in a Database.  Content and
// Revision are a local copy; they are not safe for concurrent use.
type Document struct {
	database *Database
	path     string

	// ID is the document ID.
	ID string

	// Revision is the last revision this handle saw, or "".
	Revision string

	// Content is the document body, including "_id" and "_rev"
	// once loaded from the server.
	Content map[string]interface{}

	// Exists is true if the last probe or write found the document
	// on the server.
	Exists bool
}

// newDocument creates a handle without contacting the server.
func (db *Database) newDocument(id string, content map[string]interface{}) *Document {
	if content == nil {
		content = map[string]interface{}{}
	}
	return &Document{
		database: db,
		path:     db.path + couchdata.EscapeDocID(id),
		ID:       id,
		Content:  content,
	}
}

// Document returns a handle on the document with the given ID,
// loading its content and revision if it exists.
func (db *Database) Document(id string) *Document {
	doc := db.newDocument(id, nil)
	doc.load()
	return doc
}

// NewDocument returns a handle on a document that does not yet exist,
// with a freshly generated ID not in use on the server.  Nothing is
// written until Create is called.
func (db *Database) NewDocument(content map[string]interface{}) *Document {
	for {
		id := hex.EncodeToString(uuid.NewV4().Bytes())
		doc := db.newDocument(id, content)
		probe := doc.get()
		if probe.OK() && probe.Has("_id") {
			db.log().WithField("id", id).Debug("Generated document ID in use, retrying")
			continue
		}
		doc.Content["_id"] = id
		return doc
	}
}

// URL returns the public absolute URL of the document.
func (doc *Document) URL() string {
	return doc.database.server.URL() + doc.path
}

// Database returns the database this document belongs to.
func (doc *Document) Database() *Database {
	return doc.database
}

func (doc *Document) log() *logrus.Entry {
	return doc.database.log().WithField("doc", doc.ID)
}

func (doc *Document) do(call Call) Result {
	return doc.database.server.dispatcher.Dispatch(doc, call)
}

func (doc *Document) get() Result {
	return doc.do(Call{Header: acceptHeader()})
}

// load fetches the document, replacing the local copy if it exists.
func (doc *Document) load() Result {
	result := doc.get()
	if result.OK() && result.Has("_id") {
		doc.Exists = true
		doc.Revision = result.GetString("_rev")
		doc.Content = result.Object()
	} else {
		doc.Exists = false
	}
	return result
}

// IsThere probes the server and reports whether the document exists.
// Local content is not changed.
func (doc *Document) IsThere() bool {
	result := doc.get()
	doc.Exists = result.OK() && result.Has("_id")
	return doc.Exists
}

// CurrentRevision reloads the document's revision and content from
// the server.
func (doc *Document) CurrentRevision() Result {
	return doc.load()
}

// Create writes Content as a new document.  It refuses if the
// document already exists.
func (doc *Document) Create() Result {
	probe := doc.get()
	if !probe.OK() {
		return probe
	}
	if doc.Exists = probe.Has("_id"); doc.Exists {
		doc.log().Warn("Document exists already, no need to create it")
		return precondition("400", "Document already exists!")
	}
	result := doc.do(Call{Method: "PUT", Header: jsonHeader(), JSON: doc.Content})
	if rev := result.GetString("rev"); rev != "" {
		doc.Revision = rev
		doc.Exists = true
	}
	return result
}

// Update replaces the stored document with Content, conditional on
// the current server revision.
func (doc *Document) Update() Result {
	content := doc.Content
	probe := doc.load()
	if !probe.OK() {
		doc.Content = content
		return probe
	}
	if !doc.Exists {
		doc.Content = content
		doc.log().Warn("Document not found")
		return precondition("400", "Document does not exist!")
	}
	body := make(map[string]interface{}, len(content))
	for k, v := range content {
		if k != "_rev" {
			body[k] = v
		}
	}
	header := jsonHeader()
	header["If-Match"] = doc.Revision
	result := doc.do(Call{Method: "PUT", Header: header, JSON: body})
	if rev := result.GetString("rev"); rev != "" {
		doc.Revision = rev
		body["_rev"] = rev
	}
	doc.Content = body
	return result
}

// Delete removes the document, conditional on its current revision.
func (doc *Document) Delete() Result {
	if probe := doc.load(); !doc.Exists {
		if !probe.OK() {
			return probe
		}
		doc.log().Warn("Document does not exist, no need to delete it")
		return precondition("400", "Document doesn't exist!")
	}
	header := acceptHeader()
	header["If-Match"] = doc.Revision
	result := doc.do(Call{Method: "DELETE", Header: header})
	if result.GetBool("ok") {
		doc.Exists = false
		doc.Revision = result.GetString("rev")
	}
	return result
}
