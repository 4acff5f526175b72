// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package couchclient

import "github.com/diffeo/go-couchdb/couchdata"

// Node is a handle on one node of a cluster, addressed through the
// public listener's /_node/{name}/ API.  The name "_local" means
// whichever node receives the request.
type Node struct {
	server *Server
	path   string

	// Name is the Erlang node name, such as "couchdb@10.0.0.1".
	Name string
}

// URL returns the public absolute URL of the node.
func (n *Node) URL() string {
	return n.server.URL() + n.path
}

func (n *Node) do(call Call) Result {
	return n.server.dispatcher.Dispatch(n, call)
}

// configCall builds a call on _config, _config/{section}, or
// _config/{section}/{key}.  A key without a section is ignored.
func configCall(section, key string, call Call) (Call, Result, bool) {
	if section == "" {
		key = ""
	}
	return templateCall("_config{/section,key}", map[string]interface{}{
		"section": section,
		"key":     key,
	}, call)
}

// Config reads the node configuration, a section of it, or a single
// key.
func (n *Node) Config(section, key string) Result {
	call, failed, ok := configCall(section, key, Call{Header: acceptHeader()})
	if !ok {
		return failed
	}
	return n.do(call)
}

// SetConfig sets one configuration key.  The server returns the
// previous value.
func (n *Node) SetConfig(section, key, value string) Result {
	if section == "" || key == "" {
		return precondition("400", "Both section and key are required")
	}
	call, failed, ok := configCall(section, key, Call{
		Method: "PUT",
		Header: jsonHeader(),
		JSON:   value,
	})
	if !ok {
		return failed
	}
	return n.do(call)
}

// DeleteConfig removes one configuration key.
func (n *Node) DeleteConfig(section, key string) Result {
	if section == "" || key == "" {
		return precondition("400", "Both section and key are required")
	}
	call, failed, ok := configCall(section, key, Call{
		Method: "DELETE",
		Header: acceptHeader(),
	})
	if !ok {
		return failed
	}
	return n.do(call)
}

// Stats returns the node statistics.
func (n *Node) Stats() Result {
	return n.do(Call{Endpoint: "_stats"})
}

// System returns the node's Erlang VM statistics.
func (n *Node) System() Result {
	return n.do(Call{Endpoint: "_system"})
}

// nodeDocPath returns the node-local _nodes document endpoint for n.
func nodeDocPath(name string) string {
	return "_node/_local/_nodes/" + couchdata.EscapeName(name)
}
