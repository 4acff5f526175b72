// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package couchclient

import (
	"github.com/diffeo/go-couchdb/couchdata"
	"github.com/sirupsen/logrus"
)

// Database is a handle on one database of a Server.
type Database struct {
	server *Server
	path   string

	// Name is the database name, as reported by the server if it
	// exists.
	Name string

	// Exists is true if the last probe found the database.
	Exists bool
}

// URL returns the public absolute URL of the database.
func (db *Database) URL() string {
	return db.server.URL() + db.path
}

// Server returns the server this database belongs to.
func (db *Database) Server() *Server {
	return db.server
}

func (db *Database) String() string {
	return db.URL()
}

func (db *Database) log() *logrus.Entry {
	return db.server.logger.WithField("db", db.Name)
}

// do dispatches a call relative to the database URL.
func (db *Database) do(call Call) Result {
	return db.server.dispatcher.Dispatch(db, call)
}

// Refresh probes the database and updates Exists and Name.
func (db *Database) Refresh() Result {
	result := db.do(Call{Header: jsonHeader()})
	if name := result.GetString("db_name"); result.OK() && name != "" {
		db.Name = name
		db.Exists = true
	} else {
		db.Exists = false
	}
	db.log().WithField("exists", db.Exists).Debug("Probed database")
	return result
}

// Info returns the database information document.
func (db *Database) Info() Result {
	return db.do(Call{Header: jsonHeader()})
}

// Create creates the database.  It refuses if the database is known to
// exist.
func (db *Database) Create() Result {
	if db.Exists {
		db.log().Warn("Database exists already, no need to create it")
		return precondition("400", "Database already exists!")
	}
	result := db.do(Call{Method: "PUT", Header: jsonHeader()})
	if result.GetBool("ok") {
		db.Exists = true
	}
	return result
}

// Delete deletes the database.  It refuses if the database is not known
// to exist.
func (db *Database) Delete() Result {
	if !db.Exists {
		db.log().Warn("Database does not exist, no need to delete it")
		return precondition("400", "Database doesn't exist!")
	}
	result := db.do(Call{Method: "DELETE", Header: jsonHeader()})
	if result.GetBool("ok") {
		db.Exists = false
	}
	return result
}

// AllDocs lists every document.
func (db *Database) AllDocs() Result {
	return db.do(Call{Endpoint: "_all_docs"})
}

// Changes returns the change feed.
func (db *Database) Changes() Result {
	return db.do(Call{Endpoint: "_changes"})
}

// FindByID returns a handle on the document with the given ID.
func (db *Database) FindByID(id string) *Document {
	return db.Document(id)
}

// Find runs a Mango query.
func (db *Database) Find(query map[string]interface{}) Result {
	if query == nil {
		query = map[string]interface{}{"selector": map[string]interface{}{}}
	}
	return db.do(Call{
		Endpoint: "_find",
		Method:   "POST",
		Header:   jsonHeader(),
		JSON:     query,
	})
}

// BulkCreate writes many documents at once.
func (db *Database) BulkCreate(docs []interface{}) Result {
	if docs == nil {
		docs = []interface{}{}
	}
	return db.do(Call{
		Endpoint: "_bulk_docs",
		Method:   "POST",
		Header:   jsonHeader(),
		JSON:     map[string]interface{}{"docs": docs},
	})
}

// validateIndex returns a description of what is wrong with def, or
// "" if it is usable.
func validateIndex(def couchdata.IndexDefinition) string {
	switch {
	case len(def.Index.Fields) == 0:
		return "Missing fields in index definition"
	case def.Name == "":
		return "Missing name in index definition"
	case def.Type == "":
		return "Missing type in index definition"
	case def.Type != couchdata.IndexTypeJSON && def.Type != couchdata.IndexTypeText:
		return "Wrong type in index definition, must be either json or text"
	}
	return ""
}

// CreateIndex creates a Mango index.  Invalid definitions are refused
// without contacting the server.
func (db *Database) CreateIndex(def couchdata.IndexDefinition) Result {
	if problem := validateIndex(def); problem != "" {
		db.log().WithField("index", def.Name).Warn(problem)
		return precondition("400", problem)
	}
	return db.do(Call{
		Endpoint: "_index",
		Method:   "POST",
		Header:   jsonHeader(),
		JSON:     def,
	})
}

// CreateView creates the design document "_design/<name>" with the
// given content.
func (db *Database) CreateView(name string, definition map[string]interface{}) Result {
	view := db.newDocument("_design/"+name, definition)
	return view.Create()
}

// PurgeAll permanently removes every deleted document revision still
// reported by the change feed.
func (db *Database) PurgeAll() Result {
	changes := db.do(Call{
		Endpoint: "_changes?filter=_selector",
		Method:   "POST",
		Header:   jsonHeader(),
		JSON: map[string]interface{}{
			"selector": map[string]interface{}{"_deleted": true},
		},
	})
	if !changes.OK() || changes.RemoteError() != nil {
		return changes
	}
	var feed couchdata.Changes
	if err := changes.Decode(&feed); err != nil {
		return Failure(&Error{Kind: KindDecode, Message: err.Error()})
	}

	purge := map[string]interface{}{}
	for _, change := range feed.Results {
		if !change.Deleted {
			continue
		}
		revs := make([]interface{}, 0, len(change.Changes))
		for _, rev := range change.Changes {
			revs = append(revs, rev.Rev)
		}
		purge[change.ID] = revs
	}
	db.log().WithField("documents", len(purge)).Debug("Purging deleted documents")
	return db.do(Call{
		Endpoint: "_purge",
		Method:   "POST",
		Header:   jsonHeader(),
		JSON:     purge,
	})
}

// DeleteAllDocs deletes every document and then purges them.  The
// per-document results are keyed by document ID; the purge result is
// keyed "_purge".
func (db *Database) DeleteAllDocs() BatchResult {
	batch := newBatchResult()
	batch.Listing = db.AllDocs()
	if resultError(batch.Listing) != nil {
		return batch
	}
	var docs couchdata.AllDocs
	if err := batch.Listing.Decode(&docs); err != nil {
		batch.Listing = Failure(&Error{Kind: KindDecode, Message: err.Error()})
		return batch
	}
	for _, row := range docs.Rows {
		doc := db.Document(row.ID)
		batch.add(row.ID, doc.Delete())
	}
	batch.add("_purge", db.PurgeAll())
	return batch
}

// SyncShards forces shard synchronization.
func (db *Database) SyncShards() Result {
	return db.do(Call{Endpoint: "_sync_shards", Method: "POST", Header: jsonHeader()})
}

// Compact starts database compaction.
func (db *Database) Compact() Result {
	return db.do(Call{Endpoint: "_compact", Method: "POST", Header: jsonHeader()})
}
