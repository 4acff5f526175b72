// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package couchtest

import (
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/diffeo/go-couchdb/couchdata"
	"github.com/gorilla/mux"
)

type document struct {
	id      string
	rev     string
	revNum  int
	body    map[string]interface{}
	deleted bool
	seq     int
}

// bump assigns the next revision.
func (d *document) bump() {
	d.revNum++
	d.rev = fmt.Sprintf("%d-%s", d.revNum, newUUID())
}

// value returns the document as CouchDB serves it.
func (d *document) value() map[string]interface{} {
	out := make(map[string]interface{}, len(d.body)+2)
	for k, v := range d.body {
		out[k] = v
	}
	out["_id"] = d.id
	out["_rev"] = d.rev
	return out
}

type database struct {
	name       string
	docs       map[string]*document
	security   map[string]interface{}
	indexes    []interface{}
	seq        int
	compacted  int
	shardSyncs int
}

func newDatabase(name string) *database {
	return &database{
		name:     name,
		docs:     make(map[string]*document),
		security: map[string]interface{}{},
	}
}

func (db *database) info() map[string]interface{} {
	live, deleted := 0, 0
	for _, doc := range db.docs {
		if doc.deleted {
			deleted++
		} else {
			live++
		}
	}
	return map[string]interface{}{
		"db_name":         db.name,
		"doc_count":       live,
		"doc_del_count":   deleted,
		"update_seq":      strconv.Itoa(db.seq) + "-g1AAAA",
		"compact_running": false,
	}
}

// write stores body as a new revision of id.  rev is the revision the
// client claims to be replacing.  It returns the HTTP status and the
// reply.
func (s *Server) write(db *database, id, rev string, body map[string]interface{}, deleted bool) (int, interface{}) {
	doc := db.docs[id]
	if doc != nil && !doc.deleted && rev != doc.rev {
		return http.StatusConflict, errorBody(couchdata.ErrorConflict, "Document update conflict.")
	}
	if doc == nil {
		if deleted {
			return http.StatusNotFound, errorBody(couchdata.ErrorNotFound, "missing")
		}
		doc = &document{id: id}
		db.docs[id] = doc
	} else if doc.deleted && deleted {
		return http.StatusNotFound, errorBody(couchdata.ErrorNotFound, "deleted")
	}
	clean := make(map[string]interface{}, len(body))
	for k, v := range body {
		if k != "_id" && k != "_rev" {
			clean[k] = v
		}
	}
	doc.body = clean
	doc.deleted = deleted
	doc.bump()
	db.seq++
	s.updateSeq++
	doc.seq = db.seq
	status := http.StatusCreated
	if deleted {
		status = http.StatusOK
	}
	return status, couchdata.DocWriteResponse{OK: true, ID: id, Rev: doc.rev}
}

// CreateDB creates an empty database if it does not exist.
func (s *Server) CreateDB(name string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.dbs[name] == nil {
		s.dbs[name] = newDatabase(name)
	}
}

// PutDoc stores a document directly, creating the database if
// needed, and returns its new revision.
func (s *Server) PutDoc(dbName string, body map[string]interface{}) string {
	s.lock.Lock()
	defer s.lock.Unlock()
	db := s.dbs[dbName]
	if db == nil {
		db = newDatabase(dbName)
		s.dbs[dbName] = db
	}
	id, _ := body["_id"].(string)
	if id == "" {
		id = newUUID()
	}
	rev := ""
	if doc := db.docs[id]; doc != nil {
		rev = doc.rev
	}
	s.write(db, id, rev, body, false)
	return db.docs[id].rev
}

// Doc returns a stored document and whether it exists.
func (s *Server) Doc(dbName, id string) (map[string]interface{}, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	db := s.dbs[dbName]
	if db == nil {
		return nil, false
	}
	doc := db.docs[id]
	if doc == nil || doc.deleted {
		return nil, false
	}
	return doc.value(), true
}

// HasDocRecord returns true if the database holds any record of id,
// including a deletion tombstone.
func (s *Server) HasDocRecord(dbName, id string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	db := s.dbs[dbName]
	return db != nil && db.docs[id] != nil
}

// Security returns a database's security document.
func (s *Server) Security(dbName string) map[string]interface{} {
	s.lock.Lock()
	defer s.lock.Unlock()
	if db := s.dbs[dbName]; db != nil {
		return db.security
	}
	return nil
}

// SetSecurity replaces a database's security document.
func (s *Server) SetSecurity(dbName string, security map[string]interface{}) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if db := s.dbs[dbName]; db != nil {
		db.security = security
	}
}

// Compactions returns how many times a database was compacted and
// had its shards synced.
func (s *Server) Compactions(dbName string) (compacted, shardSyncs int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if db := s.dbs[dbName]; db != nil {
		return db.compacted, db.shardSyncs
	}
	return 0, 0
}

func (s *Server) populateDatabase(r *mux.Router) {
	r.Path("/{db}").HandlerFunc(s.handleDB)
	r.Path("/{db}/").HandlerFunc(s.handleDB)
	r.Path("/{db}/_all_docs").HandlerFunc(s.withDB(s.handleAllDocs))
	r.Path("/{db}/_changes").HandlerFunc(s.withDB(s.handleChanges))
	r.Path("/{db}/_security").HandlerFunc(s.withDB(s.handleSecurity))
	r.Path("/{db}/_find").HandlerFunc(s.withDB(s.handleFind))
	r.Path("/{db}/_bulk_docs").HandlerFunc(s.withDB(s.handleBulkDocs))
	r.Path("/{db}/_index").HandlerFunc(s.withDB(s.handleIndex))
	r.Path("/{db}/_purge").HandlerFunc(s.withDB(s.handlePurge))
	r.Path("/{db}/_compact").HandlerFunc(s.withDB(s.handleCompact))
	r.Path("/{db}/_sync_shards").HandlerFunc(s.withDB(s.handleSyncShards))
	r.Path("/{db}/_design/{doc}").HandlerFunc(s.withDB(s.handleDoc("_design/")))
	r.Path("/{db}/_local/{doc}").HandlerFunc(s.withDB(s.handleDoc("_local/")))
	r.Path("/{db}/{doc}").HandlerFunc(s.withDB(s.handleDoc("")))
}

// dbHandler handles a request on an existing database.  It is called
// with the server lock held.
type dbHandler func(http.ResponseWriter, *http.Request, *database)

// withDB looks up the database named in the path, replying not_found
// if it is missing.
func (s *Server) withDB(h dbHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := pathVar(r, "db")
		s.lock.Lock()
		defer s.lock.Unlock()
		db := s.dbs[name]
		if db == nil {
			reply(w, http.StatusNotFound, errorBody(couchdata.ErrorNotFound, "Database does not exist."))
			return
		}
		h(w, r, db)
	}
}

func (s *Server) handleDB(w http.ResponseWriter, r *http.Request) {
	name := pathVar(r, "db")
	s.lock.Lock()
	defer s.lock.Unlock()
	db := s.dbs[name]
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		if db == nil {
			reply(w, http.StatusNotFound, errorBody(couchdata.ErrorNotFound, "Database does not exist."))
			return
		}
		reply(w, http.StatusOK, db.info())
	case http.MethodPut:
		if db != nil {
			reply(w, http.StatusPreconditionFailed, errorBody(couchdata.ErrorFileExists,
				"The database could not be created, the file already exists."))
			return
		}
		s.dbs[name] = newDatabase(name)
		reply(w, http.StatusCreated, map[string]interface{}{"ok": true})
	case http.MethodDelete:
		if db == nil {
			reply(w, http.StatusNotFound, errorBody(couchdata.ErrorNotFound, "Database does not exist."))
			return
		}
		delete(s.dbs, name)
		reply(w, http.StatusOK, map[string]interface{}{"ok": true})
	default:
		methodNotAllowed(w, r)
	}
}

func (db *database) liveIDs() []string {
	ids := make([]string, 0, len(db.docs))
	for id, doc := range db.docs {
		if !doc.deleted {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (s *Server) handleAllDocs(w http.ResponseWriter, r *http.Request, db *database) {
	ids := db.liveIDs()
	rows := make([]couchdata.AllDocsRow, len(ids))
	for i, id := range ids {
		rows[i] = couchdata.AllDocsRow{
			ID:    id,
			Key:   id,
			Value: couchdata.AllDocsValue{Rev: db.docs[id].rev},
		}
	}
	reply(w, http.StatusOK, couchdata.AllDocs{TotalRows: int64(len(rows)), Rows: rows})
}

// docsBySeq returns every document record in update order.
func (db *database) docsBySeq() []*document {
	docs := make([]*document, 0, len(db.docs))
	for _, doc := range db.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].seq < docs[j].seq })
	return docs
}

// handleChanges serves the change feed.  POST with
// filter=_selector supports only the {"_deleted": true} selector and
// selectors matched by matchSelector.
func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request, db *database) {
	var selector map[string]interface{}
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		if r.URL.Query().Get("filter") == "_selector" {
			body, ok := readObject(r)
			selector, _ = body["selector"].(map[string]interface{})
			if !ok || selector == nil {
				badRequest(w, "Selector must be specified in POST payload")
				return
			}
		}
	default:
		methodNotAllowed(w, r)
		return
	}
	results := []couchdata.Change{}
	for _, doc := range db.docsBySeq() {
		if selector != nil {
			if want, has := selector["_deleted"]; has {
				if want != doc.deleted {
					continue
				}
			} else if doc.deleted || !matchSelector(selector, doc.value()) {
				continue
			}
		}
		results = append(results, couchdata.Change{
			Seq:     strconv.Itoa(doc.seq) + "-g1AAAA",
			ID:      doc.id,
			Changes: []couchdata.RevisionRef{{Rev: doc.rev}},
			Deleted: doc.deleted,
		})
	}
	reply(w, http.StatusOK, couchdata.Changes{
		Results: results,
		LastSeq: strconv.Itoa(db.seq) + "-g1AAAA",
	})
}

func (s *Server) handleSecurity(w http.ResponseWriter, r *http.Request, db *database) {
	switch r.Method {
	case http.MethodGet:
		reply(w, http.StatusOK, db.security)
	case http.MethodPut:
		body, ok := readObject(r)
		if !ok {
			badRequest(w, "Security document must be a JSON object")
			return
		}
		db.security = body
		reply(w, http.StatusOK, map[string]interface{}{"ok": true})
	default:
		methodNotAllowed(w, r)
	}
}

// matchSelector implements equality matching on top-level fields,
// which is all the tests need of Mango.
func matchSelector(selector, doc map[string]interface{}) bool {
	for k, want := range selector {
		if !reflect.DeepEqual(doc[k], want) {
			return false
		}
	}
	return true
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request, db *database) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	body, ok := readObject(r)
	selector, hasSelector := body["selector"].(map[string]interface{})
	if !ok || !hasSelector {
		badRequest(w, "Missing required key: selector")
		return
	}
	docs := []interface{}{}
	for _, id := range db.liveIDs() {
		value := db.docs[id].value()
		if matchSelector(selector, value) {
			docs = append(docs, value)
		}
	}
	reply(w, http.StatusOK, map[string]interface{}{"docs": docs})
}

func (s *Server) handleBulkDocs(w http.ResponseWriter, r *http.Request, db *database) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	body, ok := readObject(r)
	docs, hasDocs := body["docs"].([]interface{})
	if !ok || !hasDocs {
		badRequest(w, "POST body must include `docs` parameter.")
		return
	}
	out := make([]couchdata.DocWriteResponse, 0, len(docs))
	for _, item := range docs {
		doc, _ := item.(map[string]interface{})
		if doc == nil {
			badRequest(w, "Document must be a JSON object")
			return
		}
		id, _ := doc["_id"].(string)
		if id == "" {
			id = newUUID()
		}
		rev, _ := doc["_rev"].(string)
		deleted, _ := doc["_deleted"].(bool)
		_, result := s.write(db, id, rev, doc, deleted)
		switch result := result.(type) {
		case couchdata.DocWriteResponse:
			out = append(out, result)
		case couchdata.ErrorResponse:
			out = append(out, couchdata.DocWriteResponse{ID: id, Error: result.Error, Reason: result.Reason})
		}
	}
	reply(w, http.StatusCreated, out)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request, db *database) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	body, ok := readObject(r)
	index, hasIndex := body["index"].(map[string]interface{})
	if !ok || !hasIndex {
		badRequest(w, "Missing required key: index")
		return
	}
	if fields, _ := index["fields"].([]interface{}); len(fields) == 0 {
		badRequest(w, "Index fields must be a non-empty array")
		return
	}
	db.indexes = append(db.indexes, body)
	name, _ := body["name"].(string)
	reply(w, http.StatusOK, map[string]interface{}{
		"result": "created",
		"id":     "_design/" + newUUID(),
		"name":   name,
	})
}

// Indexes returns the index definitions posted to a database.
func (s *Server) Indexes(dbName string) []interface{} {
	s.lock.Lock()
	defer s.lock.Unlock()
	if db := s.dbs[dbName]; db != nil {
		return append([]interface{}{}, db.indexes...)
	}
	return nil
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request, db *database) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	body, ok := readObject(r)
	if !ok {
		badRequest(w, "Purge request must be a JSON object")
		return
	}
	purged := make(map[string]interface{}, len(body))
	for id, revs := range body {
		list, _ := revs.([]interface{})
		doc := db.docs[id]
		if doc == nil {
			continue
		}
		done := []interface{}{}
		for _, rev := range list {
			if rev == doc.rev {
				done = append(done, rev)
			}
		}
		if len(done) > 0 {
			delete(db.docs, id)
		}
		purged[id] = done
	}
	reply(w, http.StatusCreated, map[string]interface{}{
		"purge_seq": nil,
		"purged":    purged,
	})
}

func (s *Server) handleCompact(w http.ResponseWriter, r *http.Request, db *database) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	db.compacted++
	reply(w, http.StatusAccepted, map[string]interface{}{"ok": true})
}

func (s *Server) handleSyncShards(w http.ResponseWriter, r *http.Request, db *database) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	db.shardSyncs++
	reply(w, http.StatusAccepted, map[string]interface{}{"ok": true})
}

// revision finds the revision a write claims to replace, from If-Match,
// the rev query parameter, or the body's _rev.
func revision(r *http.Request, body map[string]interface{}) string {
	if rev := strings.Trim(r.Header.Get("If-Match"), `"`); rev != "" {
		return rev
	}
	if rev := r.URL.Query().Get("rev"); rev != "" {
		return rev
	}
	rev, _ := body["_rev"].(string)
	return rev
}

func (s *Server) handleDoc(prefix string) dbHandler {
	return func(w http.ResponseWriter, r *http.Request, db *database) {
		id := prefix + pathVar(r, "doc")
		doc := db.docs[id]
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			if doc == nil || doc.deleted {
				reason := "missing"
				if doc != nil {
					reason = "deleted"
				}
				reply(w, http.StatusNotFound, errorBody(couchdata.ErrorNotFound, reason))
				return
			}
			reply(w, http.StatusOK, doc.value())
		case http.MethodPut:
			body, ok := readObject(r)
			if !ok {
				badRequest(w, "Document must be a JSON object")
				return
			}
			status, out := s.write(db, id, revision(r, body), body, false)
			reply(w, status, out)
		case http.MethodDelete:
			status, out := s.write(db, id, revision(r, nil), nil, true)
			reply(w, status, out)
		default:
			methodNotAllowed(w, r)
		}
	}
}
