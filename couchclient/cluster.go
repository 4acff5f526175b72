// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package couchclient

import (
	"fmt"
	"sort"
	"strings"

	"github.com/diffeo/go-couchdb/couchdata"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// initialDBs are the system databases a new cluster needs, in the
// order they are created.
var initialDBs = []string{
	couchdata.GlobalChangesDB,
	couchdata.UsersDB,
	couchdata.ReplicatorDB,
}

// CreateInitialDBs creates whichever system databases are missing.
// The batch has one row per database that was created.
func (s *Server) CreateInitialDBs() BatchResult {
	batch := newBatchResult()
	for _, name := range initialDBs {
		db := s.Database(name)
		if !db.Exists {
			batch.add(name, db.Create())
		}
	}
	return batch
}

// ClusterSetup reports each step of SetupCluster.
type ClusterSetup struct {
	// AlreadySetUp is true if the cluster was found configured and
	// the seeds were only added as nodes.
	AlreadySetUp bool

	// Databases holds the system database creations.
	Databases BatchResult

	// Enable is the enable_cluster action.
	Enable Result

	// Nodes holds one add_node action (or AddNode call) per seed.
	Nodes map[string]Result

	// Finish is the finish_cluster action.
	Finish Result
}

// Err aggregates every failed step.
func (c ClusterSetup) Err() error {
	var errs *multierror.Error
	if err := c.Databases.Err(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if !c.AlreadySetUp {
		if err := resultError(c.Enable); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("enable_cluster: %w", err))
		}
	}
	names := make([]string, 0, len(c.Nodes))
	for name := range c.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := resultError(c.Nodes[name]); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if !c.AlreadySetUp {
		if err := resultError(c.Finish); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("finish_cluster: %w", err))
		}
	}
	return errs.ErrorOrNil()
}

// Value renders the setup as a single mapping.
func (c ClusterSetup) Value() interface{} {
	nodes := make(map[string]interface{}, len(c.Nodes))
	for name, r := range c.Nodes {
		nodes[name] = r.Value()
	}
	v := map[string]interface{}{
		"already_set_up": c.AlreadySetUp,
		"databases":      c.Databases.Value(),
		"nodes":          nodes,
	}
	if !c.AlreadySetUp {
		v["enable"] = c.Enable.Value()
		v["finish"] = c.Finish.Value()
	}
	return v
}

// seedHost returns the host part of a seed given either as a bare
// host or as an Erlang node name "name@host".
func seedHost(seed string) string {
	if at := strings.LastIndex(seed, "@"); at >= 0 {
		return seed[at+1:]
	}
	return seed
}

// SetupCluster bootstraps a cluster through this server.  If the
// _global_changes database does not exist, the system databases are
// created and the enable_cluster, add_node (once per seed), and
// finish_cluster actions are posted to _cluster_setup.  Otherwise the
// cluster is taken to be set up and each seed is registered with
// AddNode.
func (s *Server) SetupCluster(username, password string, seeds []string) ClusterSetup {
	setup := ClusterSetup{
		Databases: newBatchResult(),
		Nodes:     make(map[string]Result, len(seeds)),
	}
	log := s.logger.WithFields(logrus.Fields{
		"host":  s.host,
		"seeds": seeds,
	})

	if s.Database(couchdata.GlobalChangesDB).Exists {
		log.Info("Cluster already set up, adding seed nodes")
		setup.AlreadySetUp = true
		for _, seed := range seeds {
			setup.Nodes[seed] = s.AddNode(s.Node(seed))
		}
		return setup
	}

	setup.Databases = s.CreateInitialDBs()
	log.Info("Enabling cluster")
	setup.Enable = s.clusterAction(couchdata.ClusterSetupRequest{
		Action:      couchdata.ActionEnableCluster,
		BindAddress: "0.0.0.0",
		Username:    username,
		Password:    password,
		NodeCount:   fmt.Sprintf("%d", len(seeds)),
	})
	for _, seed := range seeds {
		setup.Nodes[seed] = s.clusterAction(couchdata.ClusterSetupRequest{
			Action:   couchdata.ActionAddNode,
			Host:     seedHost(seed),
			Port:     s.config.Port,
			Username: username,
			Password: password,
		})
	}
	setup.Finish = s.clusterAction(couchdata.ClusterSetupRequest{
		Action: couchdata.ActionFinishCluster,
	})
	return setup
}

func (s *Server) clusterAction(req couchdata.ClusterSetupRequest) Result {
	return s.Endpoint(Call{
		Endpoint: "_cluster_setup",
		Method:   "POST",
		Header:   jsonHeader(),
		JSON:     req,
	})
}

// nodePrecondition refuses a node operation.
func nodePrecondition(code string, node *Node, message string) Result {
	return Failure(&Error{
		Kind:    KindPrecondition,
		Code:    code,
		Message: message,
		Body: map[string]interface{}{
			"node":    node.Name,
			"message": message,
		},
	})
}

// membership fetches and decodes the cluster membership, or returns
// a precondition failure.
func (s *Server) membership(node *Node) (couchdata.Membership, Result, bool) {
	var m couchdata.Membership
	result := s.Membership()
	if !result.OK() || !result.Has("all_nodes") || result.Decode(&m) != nil {
		s.logger.WithField("node", node.Name).Error("Error trying to get membership")
		return m, nodePrecondition("500", node, "Error trying to get membership"), false
	}
	return m, result, true
}

func contains(list []string, item string) bool {
	for _, s := range list {
		if s == item {
			return true
		}
	}
	return false
}

// AddNode registers node in the node-local _nodes database through
// the admin listener.  It refuses if the node is already known.
func (s *Server) AddNode(node *Node) Result {
	m, failed, ok := s.membership(node)
	if !ok {
		return failed
	}
	if contains(m.AllNodes, node.Name) {
		s.logger.WithField("node", node.Name).Warn("Node is already a member of the cluster")
		return nodePrecondition("400", node, "Node already registered")
	}
	return s.Endpoint(Call{
		Endpoint: nodeDocPath(node.Name),
		Method:   "PUT",
		Header:   jsonHeader(),
		JSON:     map[string]interface{}{},
		Admin:    true,
	})
}

// RemoveNode deletes node from the node-local _nodes database through
// the admin listener.  It refuses if the node is not part of the
// cluster.
func (s *Server) RemoveNode(node *Node) Result {
	m, failed, ok := s.membership(node)
	if !ok {
		return failed
	}
	log := s.logger.WithField("node", node.Name)
	if !contains(m.ClusterNodes, node.Name) {
		log.Warn("Node is not part of the cluster")
		return nodePrecondition("400", node, "Node is not part of the cluster")
	}
	if contains(m.AllNodes, node.Name) {
		log.Warn("Node is still visible to the cluster")
	}
	current := s.Endpoint(Call{
		Endpoint: nodeDocPath(node.Name),
		Header:   acceptHeader(),
		Admin:    true,
	})
	rev := current.GetString("_rev")
	if rev == "" {
		return current
	}
	call, failed, ok := templateCall(nodeDocPath(node.Name)+"{?rev}",
		map[string]interface{}{"rev": rev},
		Call{Method: "DELETE", Header: acceptHeader(), Admin: true})
	if !ok {
		return failed
	}
	return s.Endpoint(call)
}

// AddUser creates a user document in _users.  It refuses if the user
// exists.
func (s *Server) AddUser(name, password string, roles []string) Result {
	if roles == nil {
		roles = []string{}
	}
	users := s.Database(couchdata.UsersDB)
	doc := users.Document(couchdata.UserDocPrefix + name)
	if doc.Exists {
		doc.log().Warn("User already exists")
		return precondition("400", "User already exists!")
	}
	content, err := couchdata.ToValue(couchdata.User{
		Name:     name,
		Password: password,
		Roles:    roles,
		Type:     "user",
	})
	if err != nil {
		return Failure(&Error{Kind: KindRequest, Message: err.Error()})
	}
	doc.Content, _ = content.(map[string]interface{})
	doc.Content["_id"] = doc.ID
	return doc.Create()
}

// DeleteUser deletes a user document from _users.
func (s *Server) DeleteUser(name string) Result {
	users := s.Database(couchdata.UsersDB)
	doc := users.Document(couchdata.UserDocPrefix + name)
	if !doc.Exists {
		doc.log().Error("User does not exist. Nothing to do")
		return precondition("400", "User does not exist!")
	}
	return doc.Delete()
}
