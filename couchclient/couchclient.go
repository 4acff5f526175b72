// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package couchclient provides object access to the HTTP API of a
// CouchDB 2.x server or cluster: the server itself, its databases,
// their documents, and the cluster's nodes.
//
// Call New() with the connection parameters; for instance,
//
//     s, err := couchclient.New(couchclient.Config{
//         Hostname: "localhost",
//         Username: "admin",
//         Password: "secret",
//     })
//     db := s.Database("accounts")
//     if !db.Exists {
//         db.Create()
//     }
//
// Every remote operation returns a Result rather than an error.  A
// Result is either a decoded JSON body, which may be CouchDB's own
// {"error": ...} object, or a failure describing why no usable
// response arrived.  Nothing in this package panics or returns a Go
// error because of the network.
package couchclient

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-couchdb/couchdata"
	"github.com/diffeo/go-couchdb/transport"
	"github.com/sirupsen/logrus"
)

// Default ports of the CouchDB public and node-local admin listeners.
const (
	DefaultPort      = 5984
	DefaultAdminPort = 5986
)

// Credentials are the username and password sent as HTTP basic
// authentication.  An empty Username sends no authentication.
type Credentials struct {
	Username string
	Password string
}

// Config describes how to reach a CouchDB server.  The yaml tags let
// it be read directly from a configuration file.
type Config struct {
	// Hostname is the DNS name or address of the server.  Required.
	Hostname string `yaml:"hostname"`

	// Port is the public API port.  Defaults to 5984.
	Port int `yaml:"port"`

	// AdminPort is the node-local administrative port.  Defaults
	// to 5986.
	AdminPort int `yaml:"admin_port"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Compatibility is carried for callers that need to know
	// whether they asked for legacy behavior; the client itself
	// does not change behavior based on it.
	Compatibility bool `yaml:"compatibility"`

	// LogLevel, if set, is parsed with logrus.ParseLevel and
	// applied to Logger.
	LogLevel string `yaml:"log_level"`

	// Transport selects the transport strategy.  The zero value
	// selects the net/http transport.
	Transport transport.Strategy `yaml:"transport"`

	// Logger receives all log output.  Defaults to the logrus
	// standard logger.
	Logger *logrus.Logger `yaml:"-"`

	// Dial, if set, opens every connection instead of net.Dial.
	// Only test code should need this.
	Dial transport.DialFunc `yaml:"-"`

	// Clock times requests for metrics.  Only test code should
	// need to set this.
	Clock clock.Clock `yaml:"-"`
}

// ErrNoHostname is returned from New() if Config.Hostname is empty.
var ErrNoHostname = errors.New("no CouchDB hostname configured")

// withDefaults returns a copy of c with defaults filled in, or an
// error if c cannot describe a server.
func (c Config) withDefaults() (Config, error) {
	if c.Hostname == "" {
		return c, ErrNoHostname
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.AdminPort == 0 {
		c.AdminPort = DefaultAdminPort
	}
	if c.Port < 0 || c.Port > 65535 {
		return c, fmt.Errorf("invalid port %d", c.Port)
	}
	if c.AdminPort < 0 || c.AdminPort > 65535 {
		return c, fmt.Errorf("invalid admin port %d", c.AdminPort)
	}
	if err := c.Transport.Validate(); err != nil {
		return c, err
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	if c.LogLevel != "" {
		level, err := logrus.ParseLevel(c.LogLevel)
		if err != nil {
			return c, err
		}
		c.Logger.SetLevel(level)
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	return c, nil
}

// New creates a Server for the configured CouchDB instance and probes
// its root document.  It returns an error only if the configuration
// is unusable; a failed probe is logged and recorded in the Server's
// Info remaining empty.
func New(config Config) (*Server, error) {
	config, err := config.withDefaults()
	if err != nil {
		return nil, err
	}
	s := &Server{
		config: config,
		logger: config.Logger,
		dispatcher: &Dispatcher{
			Transport: config.Transport.Transport(config.Dial),
			Logger:    config.Logger,
			Clock:     config.Clock,
		},
	}
	s.host = config.Hostname + ":" + strconv.Itoa(config.Port)
	s.adminHost = config.Hostname + ":" + strconv.Itoa(config.AdminPort)

	probe := s.Refresh()
	fields := logrus.Fields{
		"host":      s.host,
		"transport": s.dispatcher.Transport.Name(),
	}
	switch {
	case !probe.OK():
		fields["err"] = probe.Err()
		s.logger.WithFields(fields).Error("Could not connect to CouchDB")
	case probe.RemoteError() != nil:
		fields["err"] = probe.RemoteError().String()
		s.logger.WithFields(fields).Error("CouchDB refused the connection probe")
	case s.Info.Version != "":
		fields["version"] = s.Info.Version
		s.logger.WithFields(fields).Info("Connected to CouchDB")
	default:
		s.logger.WithFields(fields).Info("Connected to CouchDB instance")
	}
	return s, nil
}

// jsonHeader returns the headers sent with most JSON requests.
func jsonHeader() transport.Header {
	return transport.Header{
		"Accept":       couchdata.JSONMediaType,
		"Content-Type": couchdata.JSONMediaType,
	}
}

// acceptHeader returns a header that only asks for JSON back.
func acceptHeader() transport.Header {
	return transport.Header{"Accept": couchdata.JSONMediaType}
}
