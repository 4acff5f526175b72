// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package couchtest

import (
	"encoding/hex"
	"net/http"
	"sort"
	"strconv"

	"github.com/diffeo/go-couchdb/couchdata"
	"github.com/gorilla/mux"
	"github.com/satori/go.uuid"
)

func (s *Server) populateServer(r *mux.Router) {
	r.Path("/_all_dbs").HandlerFunc(s.handleAllDBs)
	r.Path("/_dbs_info").HandlerFunc(s.handleDBsInfo)
	r.Path("/_active_tasks").HandlerFunc(s.handleActiveTasks)
	r.Path("/_membership").HandlerFunc(s.handleMembership)
	r.Path("/_up").HandlerFunc(s.handleUp)
	r.Path("/_uuids").HandlerFunc(s.handleUUIDs)
	r.Path("/_cluster_setup").HandlerFunc(s.handleClusterSetup)
	r.Path("/_db_updates").HandlerFunc(s.handleDBUpdates)
	r.Path("/_scheduler/jobs").HandlerFunc(s.handleSchedulerJobs)
	r.Path("/_scheduler/docs").HandlerFunc(s.handleSchedulerDocs)
}

func newUUID() string {
	return hex.EncodeToString(uuid.NewV4().Bytes())
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	reply(w, http.StatusOK, couchdata.ServerInfo{
		CouchDB:  "Welcome",
		Version:  Version,
		GitSHA:   "c298091a4",
		UUID:     "85fb71bf700c17267fef77535820e371",
		Features: []string{"scheduler"},
		Vendor:   couchdata.Vendor{Name: "The Apache Software Foundation"},
	})
}

// DBNames returns the names of every database, sorted.
func (s *Server) DBNames() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.dbNames()
}

func (s *Server) dbNames() []string {
	names := make([]string, 0, len(s.dbs))
	for name := range s.dbs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Server) handleAllDBs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	reply(w, http.StatusOK, s.DBNames())
}

func (s *Server) handleDBsInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	body, ok := readObject(r)
	keys, hasKeys := body["keys"].([]interface{})
	if !ok || !hasKeys {
		badRequest(w, "`keys` member must exist.")
		return
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	out := make([]interface{}, 0, len(keys))
	for _, key := range keys {
		name, _ := key.(string)
		if db := s.dbs[name]; db != nil {
			out = append(out, map[string]interface{}{"key": name, "info": db.info()})
		} else {
			out = append(out, map[string]interface{}{"key": name, "error": couchdata.ErrorNotFound})
		}
	}
	reply(w, http.StatusOK, out)
}

// SetActiveTasks sets the reply to GET /_active_tasks.
func (s *Server) SetActiveTasks(tasks []interface{}) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.activeTasks = tasks
}

func (s *Server) handleActiveTasks(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	defer s.lock.Unlock()
	reply(w, http.StatusOK, s.activeTasks)
}

func (s *Server) handleUp(w http.ResponseWriter, r *http.Request) {
	reply(w, http.StatusOK, couchdata.UpStatus{Status: "ok"})
}

func (s *Server) handleUUIDs(w http.ResponseWriter, r *http.Request) {
	count := 1
	if c := r.URL.Query().Get("count"); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil || n < 1 {
			badRequest(w, "count must be a positive integer")
			return
		}
		count = n
	}
	list := couchdata.UUIDList{UUIDs: make([]string, count)}
	for i := range list.UUIDs {
		list.UUIDs[i] = newUUID()
	}
	reply(w, http.StatusOK, list)
}

func (s *Server) handleDBUpdates(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	defer s.lock.Unlock()
	results := make([]interface{}, 0, len(s.dbs))
	for _, name := range s.dbNames() {
		results = append(results, map[string]interface{}{
			"db_name": name,
			"type":    "updated",
			"seq":     strconv.Itoa(s.dbs[name].seq) + "-g1AAAA",
		})
	}
	reply(w, http.StatusOK, map[string]interface{}{
		"results":  results,
		"last_seq": strconv.Itoa(s.updateSeq) + "-g1AAAA",
	})
}

func (s *Server) handleSchedulerJobs(w http.ResponseWriter, r *http.Request) {
	reply(w, http.StatusOK, map[string]interface{}{
		"total_rows": 0,
		"offset":     0,
		"jobs":       []interface{}{},
	})
}

func (s *Server) handleSchedulerDocs(w http.ResponseWriter, r *http.Request) {
	reply(w, http.StatusOK, map[string]interface{}{
		"total_rows": 0,
		"offset":     0,
		"docs":       []interface{}{},
	})
}
