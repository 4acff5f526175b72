// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package couchclient

// This file resolves which host, Referer, base URL, and credentials
// apply to a call, given the entity making it.

// Entity is anything a request can be made on behalf of.  The set of
// entities is closed: *Server, *Database, *Document, and *Node.  Each
// resolves its own context by walking to the Server that owns it.
type Entity interface {
	// resolve returns the connection parameters for one call.
	// This performs no I/O and cannot fail.
	resolve(admin bool) Target

	// URL returns the public absolute URL of the entity.
	URL() string
}

// EndpointContext holds everything a Server knows about how to reach
// it.  It is derived from the Server's configuration on every call.
type EndpointContext struct {
	// BaseURL is the public root, "http://host:port/".
	BaseURL string

	// AdminBaseURL is the admin root, "http://host:admin_port/".
	AdminBaseURL string

	// Host is the public Host header value, "host:port".
	Host string

	// AdminHost is the admin Host header value.
	AdminHost string

	Credentials Credentials
}

// Target is the resolved destination of one call.  Exactly one of the
// public and admin variants is chosen.
type Target struct {
	// Host is sent as the Host header.
	Host string

	// Referer is sent as the Referer header.
	Referer string

	// BaseURL is the entity's absolute URL on the chosen listener;
	// the call's endpoint is appended to it.
	BaseURL string

	Credentials Credentials
}

// target picks the public or admin parameters for an entity whose
// path relative to the server root is rel.
func (ctx EndpointContext) target(admin bool, rel string) Target {
	if admin {
		return Target{
			Host:        ctx.AdminHost,
			Referer:     ctx.AdminBaseURL,
			BaseURL:     ctx.AdminBaseURL + rel,
			Credentials: ctx.Credentials,
		}
	}
	return Target{
		Host:        ctx.Host,
		Referer:     ctx.BaseURL,
		BaseURL:     ctx.BaseURL + rel,
		Credentials: ctx.Credentials,
	}
}

// Context returns the server's current endpoint context.
func (s *Server) Context() EndpointContext {
	return EndpointContext{
		BaseURL:      "http://" + s.host + "/",
		AdminBaseURL: "http://" + s.adminHost + "/",
		Host:         s.host,
		AdminHost:    s.adminHost,
		Credentials: Credentials{
			Username: s.config.Username,
			Password: s.config.Password,
		},
	}
}

func (s *Server) resolve(admin bool) Target {
	return s.Context().target(admin, "")
}

func (db *Database) resolve(admin bool) Target {
	return db.server.Context().target(admin, db.path)
}

func (doc *Document) resolve(admin bool) Target {
	return doc.database.server.Context().target(admin, doc.path)
}

func (n *Node) resolve(admin bool) Target {
	return n.server.Context().target(admin, n.path)
}
