// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package couchdata defines the wire structures exchanged with a
// CouchDB 2.x server, shared between the couchclient and couchtest
// packages.
//
// Responses are decoded generically (see DecodeJSON) into plain maps
// and slices; the structures here describe the documented shape of
// specific responses and are filled from those maps with
// mapstructure.  Request bodies that the client builds itself are
// encoded from these structures with their json tags.
//
// Names and Identifiers
//
// Database names may contain "/" and must be escaped as a single path
// segment.  Document IDs are escaped the same way, except that the
// "_design/" and "_local/" prefixes keep their literal slash, since
// CouchDB routes on them.  See EscapeName and EscapeDocID.
package couchdata

// JSONMediaType is the only media type CouchDB speaks for its API.
const JSONMediaType = "application/json"

// Vendor identifies the distributor of a CouchDB build.
type Vendor struct {
	Name    string `json:"name" mapstructure:"name"`
	Version string `json:"version,omitempty" mapstructure:"version"`
}

// ServerInfo is returned by GET on the server root.
type ServerInfo struct {
	CouchDB  string   `json:"couchdb" mapstructure:"couchdb"`
	Version  string   `json:"version" mapstructure:"version"`
	GitSHA   string   `json:"git_sha,omitempty" mapstructure:"git_sha"`
	UUID     string   `json:"uuid,omitempty" mapstructure:"uuid"`
	Features []string `json:"features,omitempty" mapstructure:"features"`
	Vendor   Vendor   `json:"vendor" mapstructure:"vendor"`
}

// Membership is returned by GET /_membership.  AllNodes are the nodes
// this node knows about; ClusterNodes are the nodes that are part of
// the configured cluster.
type Membership struct {
	AllNodes     []string `json:"all_nodes" mapstructure:"all_nodes"`
	ClusterNodes []string `json:"cluster_nodes" mapstructure:"cluster_nodes"`
}

// DatabaseInfo is the subset of GET /{db} this library relies on.
type DatabaseInfo struct {
	DBName   string `json:"db_name" mapstructure:"db_name"`
	DocCount int64  `json:"doc_count" mapstructure:"doc_count"`
	DelCount int64  `json:"doc_del_count" mapstructure:"doc_del_count"`
}

// SecurityGroup is one half of a security document.
type SecurityGroup struct {
	Names []string `json:"names" mapstructure:"names"`
	Roles []string `json:"roles" mapstructure:"roles"`
}

// Security is the /{db}/_security document.
type Security struct {
	Admins  SecurityGroup `json:"admins" mapstructure:"admins"`
	Members SecurityGroup `json:"members" mapstructure:"members"`
}

// Security document group and field names.
const (
	SecurityAdmins  = "admins"
	SecurityMembers = "members"
	SecurityNames   = "names"
	SecurityRoles   = "roles"
)

// DocWriteResponse is returned by document PUT and DELETE, and per
// document by _bulk_docs.
type DocWriteResponse struct {
	OK     bool   `json:"ok" mapstructure:"ok"`
	ID     string `json:"id" mapstructure:"id"`
	Rev    string `json:"rev" mapstructure:"rev"`
	Error  string `json:"error,omitempty" mapstructure:"error"`
	Reason string `json:"reason,omitempty" mapstructure:"reason"`
}

// RevisionRef names one leaf revision in a change record.
type RevisionRef struct {
	Rev string `json:"rev" mapstructure:"rev"`
}

// Change is one row of a _changes feed.
type Change struct {
	Seq     interface{}   `json:"seq" mapstructure:"seq"`
	ID      string        `json:"id" mapstructure:"id"`
	Changes []RevisionRef `json:"changes" mapstructure:"changes"`
	Deleted bool          `json:"deleted,omitempty" mapstructure:"deleted"`
}

// Changes is a complete (non-continuous) _changes response.
type Changes struct {
	Results []Change    `json:"results" mapstructure:"results"`
	LastSeq interface{} `json:"last_seq" mapstructure:"last_seq"`
	Pending int64       `json:"pending" mapstructure:"pending"`
}

// AllDocsValue is the value half of an _all_docs row.
type AllDocsValue struct {
	Rev string `json:"rev" mapstructure:"rev"`
}

// AllDocsRow is one row of an _all_docs response.
type AllDocsRow struct {
	ID    string       `json:"id" mapstructure:"id"`
	Key   string       `json:"key" mapstructure:"key"`
	Value AllDocsValue `json:"value" mapstructure:"value"`
}

// AllDocs is the _all_docs response.
type AllDocs struct {
	TotalRows int64        `json:"total_rows" mapstructure:"total_rows"`
	Offset    int64        `json:"offset" mapstructure:"offset"`
	Rows      []AllDocsRow `json:"rows" mapstructure:"rows"`
}

// IndexFields is the "index" member of a Mango index definition.
type IndexFields struct {
	Fields []interface{} `json:"fields" mapstructure:"fields"`
}

// IndexDefinition is the body of POST /{db}/_index.
type IndexDefinition struct {
	Index IndexFields `json:"index" mapstructure:"index"`
	Name  string      `json:"name" mapstructure:"name"`
	Type  string      `json:"type" mapstructure:"type"`
	DDoc  string      `json:"ddoc,omitempty" mapstructure:"ddoc"`
}

// Index types accepted by CouchDB.
const (
	IndexTypeJSON = "json"
	IndexTypeText = "text"
)

// ClusterSetupRequest is the body of POST /_cluster_setup.  Only the
// fields relevant to Action are sent.
type ClusterSetupRequest struct {
	Action      string `json:"action"`
	BindAddress string `json:"bind_address,omitempty"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
	NodeCount   string `json:"node_count,omitempty"`
	Host        string `json:"host,omitempty"`
	Port        int    `json:"port,omitempty"`
}

// Cluster setup actions.
const (
	ActionEnableCluster = "enable_cluster"
	ActionAddNode       = "add_node"
	ActionFinishCluster = "finish_cluster"
)

// UpStatus is returned by GET /_up.
type UpStatus struct {
	Status string `json:"status" mapstructure:"status"`
}

// UUIDList is returned by GET /_uuids.
type UUIDList struct {
	UUIDs []string `json:"uuids" mapstructure:"uuids"`
}

// User is the content of an org.couchdb.user document in _users.
type User struct {
	Name     string   `json:"name"`
	Password string   `json:"password,omitempty"`
	Roles    []string `json:"roles"`
	Type     string   `json:"type"`
}

// UserDocPrefix prefixes the document ID of every user in _users.
const UserDocPrefix = "org.couchdb.user:"

// System databases created during cluster setup.
const (
	UsersDB         = "_users"
	ReplicatorDB    = "_replicator"
	GlobalChangesDB = "_global_changes"
)
