// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package couchtest

import (
	"net/http"

	"github.com/diffeo/go-couchdb/couchdata"
	"github.com/gorilla/mux"
)

func defaultNodeConfig() map[string]map[string]string {
	return map[string]map[string]string{
		"couchdb": {
			"max_dbs_open":      "500",
			"database_dir":      "./data",
			"single_node":       "false",
			"default_engine":    "couchdb",
			"max_document_size": "8000000",
		},
		"chttpd": {
			"port":         "5984",
			"bind_address": "0.0.0.0",
		},
		"httpd": {
			"port": "5986",
		},
	}
}

func (s *Server) populateNode(r *mux.Router) {
	r.Path("/_node/{node}/_nodes/{name}").HandlerFunc(s.handleNodeDoc)
	r.Path("/_node/{node}/_config").HandlerFunc(s.handleConfig)
	r.Path("/_node/{node}/_config/{section}").HandlerFunc(s.handleConfig)
	r.Path("/_node/{node}/_config/{section}/{key}").HandlerFunc(s.handleConfig)
	r.Path("/_node/{node}/_stats").HandlerFunc(s.handleStats)
	r.Path("/_node/{node}/_system").HandlerFunc(s.handleSystem)
}

// SetMembership replaces the cluster membership.
func (s *Server) SetMembership(allNodes, clusterNodes []string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.membership = couchdata.Membership{
		AllNodes:     append([]string{}, allNodes...),
		ClusterNodes: append([]string{}, clusterNodes...),
	}
}

// Membership returns the current cluster membership.
func (s *Server) Membership() couchdata.Membership {
	s.lock.Lock()
	defer s.lock.Unlock()
	return couchdata.Membership{
		AllNodes:     append([]string{}, s.membership.AllNodes...),
		ClusterNodes: append([]string{}, s.membership.ClusterNodes...),
	}
}

func (s *Server) handleMembership(w http.ResponseWriter, r *http.Request) {
	reply(w, http.StatusOK, s.Membership())
}

// ClusterSetupActions returns every body posted to /_cluster_setup.
func (s *Server) ClusterSetupActions() []map[string]interface{} {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]map[string]interface{}{}, s.setupActions...)
}

// SeedNodes returns the hosts added with the add_node action.
func (s *Server) SeedNodes() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]string{}, s.seedNodes...)
}

func (s *Server) handleClusterSetup(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.lock.Lock()
		state := s.setupState
		s.lock.Unlock()
		reply(w, http.StatusOK, map[string]interface{}{"state": state})
	case http.MethodPost:
		body, ok := readObject(r)
		if !ok {
			badRequest(w, "invalid JSON body")
			return
		}
		action, _ := body["action"].(string)
		s.lock.Lock()
		defer s.lock.Unlock()
		switch action {
		case couchdata.ActionEnableCluster:
			s.setupState = "cluster_enabled"
		case couchdata.ActionAddNode:
			host, _ := body["host"].(string)
			s.seedNodes = append(s.seedNodes, host)
		case couchdata.ActionFinishCluster:
			s.setupState = "cluster_finished"
		default:
			badRequest(w, "Invalid action")
			return
		}
		s.setupActions = append(s.setupActions, body)
		reply(w, http.StatusCreated, map[string]interface{}{"ok": true})
	default:
		methodNotAllowed(w, r)
	}
}

// handleNodeDoc serves the node-local _nodes database.  Adding a node
// document joins the node to the cluster; deleting it leaves.
func (s *Server) handleNodeDoc(w http.ResponseWriter, r *http.Request) {
	name := pathVar(r, "name")
	s.lock.Lock()
	defer s.lock.Unlock()
	doc := s.nodeDocs[name]
	switch r.Method {
	case http.MethodGet:
		if doc == nil {
			reply(w, http.StatusNotFound, errorBody(couchdata.ErrorNotFound, "missing"))
			return
		}
		reply(w, http.StatusOK, doc.value())
	case http.MethodPut:
		if doc != nil {
			reply(w, http.StatusConflict, errorBody(couchdata.ErrorConflict, "Document update conflict."))
			return
		}
		doc = &document{id: name, body: map[string]interface{}{}}
		doc.bump()
		s.nodeDocs[name] = doc
		s.membership.AllNodes = addString(s.membership.AllNodes, name)
		s.membership.ClusterNodes = addString(s.membership.ClusterNodes, name)
		reply(w, http.StatusCreated, couchdata.DocWriteResponse{OK: true, ID: name, Rev: doc.rev})
	case http.MethodDelete:
		if doc == nil {
			reply(w, http.StatusNotFound, errorBody(couchdata.ErrorNotFound, "missing"))
			return
		}
		if r.URL.Query().Get("rev") != doc.rev {
			reply(w, http.StatusConflict, errorBody(couchdata.ErrorConflict, "Document update conflict."))
			return
		}
		delete(s.nodeDocs, name)
		s.membership.AllNodes = removeString(s.membership.AllNodes, name)
		s.membership.ClusterNodes = removeString(s.membership.ClusterNodes, name)
		doc.bump()
		reply(w, http.StatusOK, couchdata.DocWriteResponse{OK: true, ID: name, Rev: doc.rev})
	default:
		methodNotAllowed(w, r)
	}
}

// ConfigValue returns one node configuration value.
func (s *Server) ConfigValue(section, key string) (string, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	value, present := s.nodeConfig[section][key]
	return value, present
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	section := pathVar(r, "section")
	key := pathVar(r, "key")
	s.lock.Lock()
	defer s.lock.Unlock()

	if section == "" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r)
			return
		}
		all := make(map[string]interface{}, len(s.nodeConfig))
		for name, values := range s.nodeConfig {
			all[name] = stringMap(values)
		}
		reply(w, http.StatusOK, all)
		return
	}
	if key == "" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r)
			return
		}
		reply(w, http.StatusOK, stringMap(s.nodeConfig[section]))
		return
	}

	old, present := s.nodeConfig[section][key]
	switch r.Method {
	case http.MethodGet:
		if !present {
			reply(w, http.StatusNotFound, errorBody(couchdata.ErrorNotFound, "unknown_config_value"))
			return
		}
		reply(w, http.StatusOK, old)
	case http.MethodPut:
		v, err := readBody(r)
		value, isString := v.(string)
		if err != nil || !isString {
			badRequest(w, "Value must be a JSON string")
			return
		}
		if s.nodeConfig[section] == nil {
			s.nodeConfig[section] = make(map[string]string)
		}
		s.nodeConfig[section][key] = value
		reply(w, http.StatusOK, old)
	case http.MethodDelete:
		if !present {
			reply(w, http.StatusNotFound, errorBody(couchdata.ErrorNotFound, "unknown_config_value"))
			return
		}
		delete(s.nodeConfig[section], key)
		reply(w, http.StatusOK, old)
	default:
		methodNotAllowed(w, r)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	reply(w, http.StatusOK, map[string]interface{}{
		"couchdb": map[string]interface{}{
			"open_databases": map[string]interface{}{
				"value": len(s.DBNames()),
				"type":  "counter",
				"desc":  "number of open databases",
			},
		},
	})
}

func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	reply(w, http.StatusOK, map[string]interface{}{
		"uptime":          1234,
		"process_count":   512,
		"run_queue":       0,
		"ets_table_count": 100,
	})
}

func stringMap(in map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func addString(list []string, item string) []string {
	for _, s := range list {
		if s == item {
			return list
		}
	}
	return append(list, item)
}

func removeString(list []string, item string) []string {
	out := list[:0:0]
	for _, s := range list {
		if s != item {
			out = append(out, s)
		}
	}
	return out
}
