// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package couchclient

import (
	"strconv"
	"strings"

	"github.com/diffeo/go-couchdb/couchdata"
	"github.com/sirupsen/logrus"
)

// Server is the root connection to one CouchDB instance or cluster.
// It owns the credentials and both base URLs; every Database,
// Document, and Node created from it reads them through it.
type Server struct {
	config     Config
	logger     *logrus.Logger
	dispatcher *Dispatcher
	host       string
	adminHost  string

	// Info is the root document as of the last Refresh().
	Info couchdata.ServerInfo
}

// URL returns the public base URL, "http://host:port/".
func (s *Server) URL() string {
	return s.Context().BaseURL
}

// Hostname returns the configured host name.
func (s *Server) Hostname() string {
	return s.config.Hostname
}

// Port returns the public port.
func (s *Server) Port() int {
	return s.config.Port
}

// Compatible reports the configured compatibility flag.
func (s *Server) Compatible() bool {
	return s.config.Compatibility
}

// Dispatcher returns the dispatcher shared by this server's entities.
func (s *Server) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// Endpoint performs an arbitrary call relative to the server root.
func (s *Server) Endpoint(call Call) Result {
	return s.dispatcher.Dispatch(s, call)
}

// Refresh fetches the root document and records it in s.Info.
func (s *Server) Refresh() Result {
	result := s.Endpoint(Call{})
	if result.OK() && result.RemoteError() == nil {
		var info couchdata.ServerInfo
		if err := result.Decode(&info); err == nil {
			s.Info = info
		} else {
			s.logger.WithField("err", err).Warn("Unexpected CouchDB root document")
		}
	}
	return result
}

// ActiveTasks lists running tasks.
func (s *Server) ActiveTasks() Result {
	return s.Endpoint(Call{Endpoint: "_active_tasks"})
}

// AllDBs lists every database.
func (s *Server) AllDBs() Result {
	return s.Endpoint(Call{Endpoint: "_all_dbs", Header: jsonHeader()})
}

// ParseDBList splits a database list given as a single string.  Names
// are separated by commas, or by spaces if there are no commas.
func ParseDBList(list string) []string {
	parts := strings.Split(list, ",")
	if len(parts) == 1 {
		parts = strings.Split(list, " ")
	}
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	return names
}

// DBsInfo returns information about the named databases, or about
// every database if none are named.
func (s *Server) DBsInfo(names ...string) Result {
	if len(names) == 0 {
		all := s.AllDBs()
		if !all.OK() || all.RemoteError() != nil {
			return all
		}
		names = all.GetStrings("")
	}
	return s.Endpoint(Call{
		Endpoint: "_dbs_info",
		Method:   "POST",
		Header:   jsonHeader(),
		JSON:     map[string]interface{}{"keys": names},
	})
}

// ClusterSetupStatus returns the cluster setup state.
func (s *Server) ClusterSetupStatus() Result {
	return s.Endpoint(Call{Endpoint: "_cluster_setup", Header: jsonHeader()})
}

// DBUpdates returns the database event feed.
func (s *Server) DBUpdates() Result {
	return s.Endpoint(Call{Endpoint: "_db_updates", Header: jsonHeader()})
}

// Membership returns the cluster membership.
func (s *Server) Membership() Result {
	return s.Endpoint(Call{Endpoint: "_membership", Header: jsonHeader()})
}

// SchedulerJobs lists replication jobs.
func (s *Server) SchedulerJobs() Result {
	return s.Endpoint(Call{Endpoint: "_scheduler/jobs", Header: acceptHeader()})
}

// SchedulerDocs lists replication documents.
func (s *Server) SchedulerDocs() Result {
	return s.Endpoint(Call{Endpoint: "_scheduler/docs", Header: acceptHeader()})
}

// Up checks node health.
func (s *Server) Up() Result {
	return s.Endpoint(Call{Endpoint: "_up", Header: jsonHeader()})
}

// UUIDs asks the server for count fresh UUIDs; count <= 0 asks for the
// server's default of one.
func (s *Server) UUIDs(count int) Result {
	vars := map[string]interface{}{}
	if count > 0 {
		vars["count"] = strconv.Itoa(count)
	}
	call, failed, ok := templateCall("_uuids{?count}", vars, Call{Header: jsonHeader()})
	if !ok {
		return failed
	}
	return s.Endpoint(call)
}

// Database returns a handle on the named database, probing whether it
// exists.
func (s *Server) Database(name string) *Database {
	db := &Database{
		server: s,
		path:   couchdata.EscapeName(name) + "/",
		Name:   name,
	}
	db.Refresh()
	return db
}

// Node returns a handle on the named cluster node, such as
// "couchdb@10.0.0.1" or "_local".  No request is made.
func (s *Server) Node(name string) *Node {
	return &Node{
		server: s,
		path:   "_node/" + couchdata.EscapeName(name) + "/",
		Name:   name,
	}
}
